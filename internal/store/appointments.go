package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
)

// AppointmentRepository persists appointments. Implementations must enforce
// that at most one reservation exists per (staff, start) and report a
// violation as ErrConflict.
type AppointmentRepository interface {
	// Create reports created=false when appt.ID was already stored with the
	// same details (an idempotent replay).
	Create(ctx context.Context, appt domain.Appointment) (out domain.Appointment, created bool, err error)
	Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	// Modify loads the appointment under a row lock, lets fn mutate it and
	// writes the result together with any reservation change. An error from
	// fn aborts the transaction and is returned unchanged.
	Modify(ctx context.Context, appointmentID uuid.UUID, fn func(appt *domain.Appointment) error) (domain.Appointment, error)
	ListBusyStarts(ctx context.Context, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]time.Time, error)
}

// Directory reads entities owned by other services.
type Directory interface {
	GetCustomer(ctx context.Context, customerID uuid.UUID) (domain.Customer, error)
	GetStaff(ctx context.Context, staffID uuid.UUID) (domain.Staff, error)
	GetService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error)
}

// SlotPolicy controls what happens to a reservation when its appointment is
// cancelled. The zero value keeps the reservation, so a cancelled start stays
// unbookable for that staff member.
type SlotPolicy struct {
	ReleaseCancelled bool
}
