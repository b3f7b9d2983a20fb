package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

const (
	pgUniqueViolation = "23505"

	appointmentsPKey     = "appointments_pkey"
	slotReservationsPKey = "slot_reservations_pkey"
)

type AppointmentRepo struct {
	db     *bun.DB
	policy store.SlotPolicy
}

func NewAppointmentRepo(db *bun.DB, policy store.SlotPolicy) *AppointmentRepo {
	return &AppointmentRepo{db: db, policy: policy}
}

type appointmentTx struct {
	tx bun.Tx
}

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
	var out domain.Appointment
	err := r.db.NewSelect().
		Model(&out).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return out, nil
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
	var starts []time.Time
	err := r.db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Column("start_time").
		Where("staff_id = ?", staffID).
		Where("status <> ?", domain.StatusCancelled).
		Where("start_time >= ?", windowStart).
		Where("start_time < ?", windowEnd).
		OrderExpr("start_time ASC").
		Scan(ctx, &starts)
	if err != nil {
		return nil, err
	}
	for i := range starts {
		starts[i] = starts[i].UTC()
	}
	return starts, nil
}

func (r *AppointmentRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.AppointmentTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, appointmentTx{tx: tx})
	})
}

func (r appointmentTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, bool, error) {
	m := domain.Appointment{
		ID:         appt.ID,
		CustomerID: appt.CustomerID,
		StaffID:    appt.StaffID,
		ServiceID:  appt.ServiceID,
		StartTime:  appt.StartTime,
		EndTime:    appt.EndTime,
		Status:     appt.Status,
		Notes:      appt.Notes,
		CreatedAt:  appt.CreatedAt,
		UpdatedAt:  appt.UpdatedAt,
	}

	// ON CONFLICT DO NOTHING keeps the transaction usable when the id was
	// already taken by an earlier attempt with the same idempotency key.
	res, err := r.tx.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, false, translate(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, false, err
	}
	if affected == 1 {
		return m, true, nil
	}

	var existing domain.Appointment
	if err := r.tx.NewSelect().
		Model(&existing).
		Where("id = ?", m.ID).
		Limit(1).
		Scan(ctx); err != nil {
		return domain.Appointment{}, false, err
	}
	if existing.CustomerID != appt.CustomerID ||
		existing.StaffID != appt.StaffID ||
		existing.ServiceID != appt.ServiceID ||
		existing.Notes != appt.Notes ||
		!existing.StartTime.Equal(appt.StartTime) {
		return domain.Appointment{}, false, store.ErrIdempotencyConflict
	}
	return existing, false, nil
}

func (r appointmentTx) GetAppointmentForUpdate(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.tx.NewSelect().
		Model(&out).
		Where("id = ?", appointmentID).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r appointmentTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) error {
	m := appt
	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("staff_id", "service_id", "start_time", "end_time", "status", "notes", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return translate(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r appointmentTx) Reserve(ctx context.Context, res domain.SlotReservation) error {
	m := domain.SlotReservation{
		StaffID:       res.StaffID,
		StartTime:     res.StartTime.UTC(),
		AppointmentID: res.AppointmentID,
		CreatedAt:     res.CreatedAt,
	}
	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	return translate(err)
}

func (r appointmentTx) ReleaseReservations(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := r.tx.NewDelete().
		Model((*domain.SlotReservation)(nil)).
		Where("appointment_id = ?", appointmentID).
		Exec(ctx)
	return err
}

// translate maps constraint violations onto store errors. Everything else is
// returned as is.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case slotReservationsPKey:
			return store.ErrConflict
		case appointmentsPKey:
			return store.ErrIdempotencyConflict
		}
	}
	return err
}
