package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
)

type AppointmentTx interface {
	// InsertAppointment reports inserted=false when a row with the same ID
	// and the same booking details already exists.
	InsertAppointment(ctx context.Context, appt domain.Appointment) (out domain.Appointment, inserted bool, err error)
	GetAppointmentForUpdate(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) error
	Reserve(ctx context.Context, res domain.SlotReservation) error
	ReleaseReservations(ctx context.Context, appointmentID uuid.UUID) error
}

// CreateAppointment inserts appt and claims its slot in one transaction. A
// replayed insert returns the stored row with created=false and claims
// nothing.
func CreateAppointment(ctx context.Context, tx AppointmentTx, appt domain.Appointment) (domain.Appointment, bool, error) {
	out, inserted, err := tx.InsertAppointment(ctx, appt)
	if err != nil {
		return domain.Appointment{}, false, err
	}
	if !inserted {
		return out, false, nil
	}
	if err := tx.Reserve(ctx, domain.SlotReservation{
		StaffID:       out.StaffID,
		StartTime:     out.StartTime,
		AppointmentID: out.ID,
	}); err != nil {
		return domain.Appointment{}, false, err
	}
	return out, true, nil
}

// ModifyAppointment runs fn against the locked row and brings the slot
// reservation in line with the result.
func ModifyAppointment(ctx context.Context, tx AppointmentTx, policy SlotPolicy, appointmentID uuid.UUID, fn func(appt *domain.Appointment) error) (domain.Appointment, error) {
	before, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}

	after := before
	if err := fn(&after); err != nil {
		return domain.Appointment{}, err
	}
	after.ID = before.ID
	after.CustomerID = before.CustomerID
	after.StartTime = after.StartTime.UTC()
	after.EndTime = after.EndTime.UTC()
	after.UpdatedAt = time.Now().UTC()

	if err := syncReservation(ctx, tx, policy, before, after); err != nil {
		return domain.Appointment{}, err
	}
	if err := tx.UpdateAppointment(ctx, after); err != nil {
		return domain.Appointment{}, err
	}
	return after, nil
}

func syncReservation(ctx context.Context, tx AppointmentTx, policy SlotPolicy, before, after domain.Appointment) error {
	if after.Cancelled() {
		if !before.Cancelled() && policy.ReleaseCancelled {
			return tx.ReleaseReservations(ctx, before.ID)
		}
		return nil
	}

	moved := before.StaffID != after.StaffID || !before.StartTime.Equal(after.StartTime)
	if !moved && !before.Cancelled() {
		return nil
	}

	// The appointment's own claim goes first so it never conflicts with itself.
	if err := tx.ReleaseReservations(ctx, before.ID); err != nil {
		return err
	}
	return tx.Reserve(ctx, domain.SlotReservation{
		StaffID:       after.StaffID,
		StartTime:     after.StartTime,
		AppointmentID: after.ID,
	})
}
