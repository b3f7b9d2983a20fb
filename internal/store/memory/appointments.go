// Package memory keeps appointments in process. It backs local runs and the
// service tests, and follows the same reservation rules as the Postgres store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

type slotKey struct {
	staffID uuid.UUID
	start   int64
}

func keyOf(staffID uuid.UUID, start time.Time) slotKey {
	return slotKey{staffID: staffID, start: start.UTC().UnixMicro()}
}

type AppointmentRepo struct {
	mu           sync.Mutex
	policy       store.SlotPolicy
	appointments map[uuid.UUID]domain.Appointment
	reservations map[slotKey]uuid.UUID
}

func NewAppointmentRepo(policy store.SlotPolicy) *AppointmentRepo {
	return &AppointmentRepo{
		policy:       policy,
		appointments: make(map[uuid.UUID]domain.Appointment),
		reservations: make(map[slotKey]uuid.UUID),
	}
}

var _ store.AppointmentRepository = (*AppointmentRepo)(nil)

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, bool, error) {
	var (
		out     domain.Appointment
		created bool
	)
	err := r.InTransaction(ctx, func(ctx context.Context, tx store.AppointmentTx) error {
		a, ok, err := store.CreateAppointment(ctx, tx, appt)
		if err != nil {
			return err
		}
		out, created = a, ok
		return nil
	})
	if err != nil {
		return domain.Appointment{}, false, err
	}
	return out, created, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Appointment{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[appointmentID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return appt, nil
}

func (r *AppointmentRepo) Modify(ctx context.Context, appointmentID uuid.UUID, fn func(appt *domain.Appointment) error) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.InTransaction(ctx, func(ctx context.Context, tx store.AppointmentTx) error {
		a, err := store.ModifyAppointment(ctx, tx, r.policy, appointmentID, fn)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) ListBusyStarts(ctx context.Context, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var starts []time.Time
	for _, a := range r.appointments {
		if a.StaffID != staffID || a.Cancelled() {
			continue
		}
		if a.StartTime.Before(windowStart) || !a.StartTime.Before(windowEnd) {
			continue
		}
		starts = append(starts, a.StartTime.UTC())
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return starts, nil
}

// InTransaction runs fn against a staged copy of the data and publishes the
// copy only when fn succeeds. Transactions are serialized.
func (r *AppointmentRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.AppointmentTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &appointmentTx{
		appointments: make(map[uuid.UUID]domain.Appointment, len(r.appointments)),
		reservations: make(map[slotKey]uuid.UUID, len(r.reservations)),
	}
	for k, v := range r.appointments {
		tx.appointments[k] = v
	}
	for k, v := range r.reservations {
		tx.reservations[k] = v
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.appointments = tx.appointments
	r.reservations = tx.reservations
	return nil
}

type appointmentTx struct {
	appointments map[uuid.UUID]domain.Appointment
	reservations map[slotKey]uuid.UUID
}

func (t *appointmentTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, bool, error) {
	if appt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, false, err
		}
		appt.ID = id
	}
	if existing, ok := t.appointments[appt.ID]; ok {
		if existing.CustomerID != appt.CustomerID ||
			existing.StaffID != appt.StaffID ||
			existing.ServiceID != appt.ServiceID ||
			existing.Notes != appt.Notes ||
			!existing.StartTime.Equal(appt.StartTime) {
			return domain.Appointment{}, false, store.ErrIdempotencyConflict
		}
		return existing, false, nil
	}

	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	if appt.UpdatedAt.IsZero() {
		appt.UpdatedAt = now
	}
	appt.StartTime = appt.StartTime.UTC()
	appt.EndTime = appt.EndTime.UTC()
	t.appointments[appt.ID] = appt
	return appt, true, nil
}

func (t *appointmentTx) GetAppointmentForUpdate(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	appt, ok := t.appointments[appointmentID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return appt, nil
}

func (t *appointmentTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) error {
	if _, ok := t.appointments[appt.ID]; !ok {
		return store.ErrNotFound
	}
	t.appointments[appt.ID] = appt
	return nil
}

func (t *appointmentTx) Reserve(ctx context.Context, res domain.SlotReservation) error {
	k := keyOf(res.StaffID, res.StartTime)
	if _, taken := t.reservations[k]; taken {
		return store.ErrConflict
	}
	t.reservations[k] = res.AppointmentID
	return nil
}

func (t *appointmentTx) ReleaseReservations(ctx context.Context, appointmentID uuid.UUID) error {
	for k, id := range t.reservations {
		if id == appointmentID {
			delete(t.reservations, k)
		}
	}
	return nil
}
