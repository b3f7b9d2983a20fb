package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

func TestPostgresIntegration_ReservationsEnforceOneBookingPerSlot(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("SLOTBOOK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("SLOTBOOK_TEST_DATABASE_URL not set")
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "slotbook_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema).Exec(ctx); err != nil {
			return err
		}
		if err := applyMigrations(ctx, tx); err != nil {
			return err
		}

		customer := domain.Customer{ID: uuid.MustParse("00000000-0000-0000-0000-000000000a01"), Name: "c"}
		staff := domain.Staff{ID: uuid.MustParse("00000000-0000-0000-0000-000000000b01"), Name: "s"}
		service := domain.Service{ID: uuid.MustParse("00000000-0000-0000-0000-000000000c01"), Name: "cut", DurationMinutes: 30}
		for _, m := range []any{&customer, &staff, &service} {
			if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
				return err
			}
		}

		c := appointmentTx{tx: tx}
		start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

		newAppt := func(id string, at time.Time) domain.Appointment {
			return domain.Appointment{
				ID:         uuid.MustParse(id),
				CustomerID: customer.ID,
				StaffID:    staff.ID,
				ServiceID:  service.ID,
				StartTime:  at,
				EndTime:    at.Add(service.Duration()),
				Status:     domain.StatusScheduled,
			}
		}

		a1, created, err := store.CreateAppointment(ctx, c, newAppt("00000000-0000-0000-0000-000000000901", start))
		if err != nil {
			return err
		}
		if !created {
			return fmt.Errorf("created = false, want true")
		}

		err = inSavepoint(ctx, tx, func() error {
			_, _, err := store.CreateAppointment(ctx, c, newAppt("00000000-0000-0000-0000-000000000902", start))
			return err
		})
		if !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("duplicate slot err = %v, want %v", err, store.ErrConflict)
		}

		replayed, created, err := store.CreateAppointment(ctx, c, newAppt(a1.ID.String(), start))
		if err != nil {
			return err
		}
		if created || replayed.ID != a1.ID {
			return fmt.Errorf("replay created=%v id=%s, want false %s", created, replayed.ID, a1.ID)
		}

		moved, err := store.ModifyAppointment(ctx, c, store.SlotPolicy{}, a1.ID, func(appt *domain.Appointment) error {
			appt.StartTime = start.Add(time.Hour)
			appt.EndTime = appt.StartTime.Add(service.Duration())
			return nil
		})
		if err != nil {
			return err
		}
		if !moved.StartTime.Equal(start.Add(time.Hour)) {
			return fmt.Errorf("moved start = %v", moved.StartTime)
		}

		// The vacated 10:00 slot is free again.
		if _, _, err := store.CreateAppointment(ctx, c, newAppt("00000000-0000-0000-0000-000000000903", start)); err != nil {
			return fmt.Errorf("rebook vacated slot: %w", err)
		}

		busy, err := listBusyStartsTx(ctx, tx, staff.ID, start.Add(-time.Hour), start.Add(3*time.Hour))
		if err != nil {
			return err
		}
		if len(busy) != 2 {
			return fmt.Errorf("len(busy) = %d, want 2", len(busy))
		}

		return nil
	})
	if err != nil {
		t.Fatalf("tx error: %v", err)
	}
}

func listBusyStartsTx(ctx context.Context, tx bun.Tx, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]time.Time, error) {
	var starts []time.Time
	err := tx.NewSelect().
		Model((*domain.Appointment)(nil)).
		Column("start_time").
		Where("staff_id = ?", staffID).
		Where("status <> ?", domain.StatusCancelled).
		Where("start_time >= ?", windowStart).
		Where("start_time < ?", windowEnd).
		Scan(ctx, &starts)
	return starts, err
}

func inSavepoint(ctx context.Context, tx bun.Tx, fn func() error) error {
	if _, err := tx.NewRaw("SAVEPOINT probe").Exec(ctx); err != nil {
		return err
	}
	fnErr := fn()
	if fnErr != nil {
		if _, err := tx.NewRaw("ROLLBACK TO SAVEPOINT probe").Exec(ctx); err != nil {
			return err
		}
		return fnErr
	}
	_, err := tx.NewRaw("RELEASE SAVEPOINT probe").Exec(ctx)
	return err
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	const (
		upMarker   = "-- +goose Up"
		downMarker = "-- +goose Down"
	)

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
