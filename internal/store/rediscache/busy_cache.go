// Package rediscache caches busy-slot lookups in Redis in front of an
// AppointmentRepository.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

const keyPrefix = "slotbook:busy:"

// Client is the subset of redis commands the cache uses. *redis.Client
// satisfies it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// BusyCache serves ListBusyStarts from Redis. Every write bumps a per-staff
// generation counter, so entries cached before the write are never read
// again and age out through their TTL. Redis errors fall through to the
// underlying repository.
type BusyCache struct {
	store.AppointmentRepository

	client Client
	ttl    time.Duration
	log    *slog.Logger
}

var _ store.AppointmentRepository = (*BusyCache)(nil)

func NewBusyCache(repo store.AppointmentRepository, client Client, ttl time.Duration, logger *slog.Logger) *BusyCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &BusyCache{
		AppointmentRepository: repo,
		client:                client,
		ttl:                   ttl,
		log:                   logger.With(slog.String("component", "busy_cache")),
	}
}

func (c *BusyCache) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, bool, error) {
	out, created, err := c.AppointmentRepository.Create(ctx, appt)
	if err != nil {
		return out, created, err
	}
	if created {
		c.invalidate(ctx, out.StaffID)
	}
	return out, created, nil
}

func (c *BusyCache) Modify(ctx context.Context, appointmentID uuid.UUID, fn func(appt *domain.Appointment) error) (domain.Appointment, error) {
	var previousStaff uuid.UUID
	out, err := c.AppointmentRepository.Modify(ctx, appointmentID, func(appt *domain.Appointment) error {
		previousStaff = appt.StaffID
		return fn(appt)
	})
	if err != nil {
		return out, err
	}
	c.invalidate(ctx, out.StaffID)
	if previousStaff != uuid.Nil && previousStaff != out.StaffID {
		c.invalidate(ctx, previousStaff)
	}
	return out, nil
}

func (c *BusyCache) ListBusyStarts(ctx context.Context, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]time.Time, error) {
	gen, err := c.generation(ctx, staffID)
	if err != nil {
		c.log.Warn("busy cache generation read failed", slog.String("staff_id", staffID.String()), slog.Any("err", err))
		return c.AppointmentRepository.ListBusyStarts(ctx, staffID, windowStart, windowEnd)
	}

	key := entryKey(staffID, gen, windowStart, windowEnd)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var starts []time.Time
		if err := json.Unmarshal(raw, &starts); err == nil {
			return starts, nil
		}
		c.log.Warn("busy cache entry unreadable", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("busy cache read failed", slog.String("key", key), slog.Any("err", err))
	}

	starts, err := c.AppointmentRepository.ListBusyStarts(ctx, staffID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	if starts == nil {
		starts = []time.Time{}
	}
	b, err := json.Marshal(starts)
	if err != nil {
		return starts, nil
	}
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.log.Warn("busy cache write failed", slog.String("key", key), slog.Any("err", err))
	}
	return starts, nil
}

func (c *BusyCache) generation(ctx context.Context, staffID uuid.UUID) (int64, error) {
	v, err := c.client.Get(ctx, generationKey(staffID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (c *BusyCache) invalidate(ctx context.Context, staffID uuid.UUID) {
	if err := c.client.Incr(ctx, generationKey(staffID)).Err(); err != nil {
		c.log.Warn("busy cache invalidation failed", slog.String("staff_id", staffID.String()), slog.Any("err", err))
	}
}

func generationKey(staffID uuid.UUID) string {
	return keyPrefix + staffID.String() + ":gen"
}

func entryKey(staffID uuid.UUID, gen int64, windowStart, windowEnd time.Time) string {
	return fmt.Sprintf("%s%s:%d:%d-%d", keyPrefix, staffID, gen, windowStart.UTC().Unix(), windowEnd.UTC().Unix())
}
