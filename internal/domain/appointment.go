package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID         uuid.UUID         `bun:"id,pk,type:uuid"`
	CustomerID uuid.UUID         `bun:"customer_id,notnull,type:uuid"`
	StaffID    uuid.UUID         `bun:"staff_id,notnull,type:uuid"`
	ServiceID  uuid.UUID         `bun:"service_id,notnull,type:uuid"`
	StartTime  time.Time         `bun:"start_time,notnull"`
	EndTime    time.Time         `bun:"end_time,notnull"`
	Status     AppointmentStatus `bun:"status,notnull"`
	Notes      string            `bun:"notes"`
	CreatedAt  time.Time         `bun:"created_at,notnull"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) Cancelled() bool {
	return a.Status == StatusCancelled
}

// SlotReservation is the storage-level claim on (staff, start). Its primary
// key is what serializes concurrent writers targeting the same slot.
type SlotReservation struct {
	bun.BaseModel `bun:"table:slot_reservations"`

	StaffID       uuid.UUID `bun:"staff_id,pk,type:uuid"`
	StartTime     time.Time `bun:"start_time,pk"`
	AppointmentID uuid.UUID `bun:"appointment_id,notnull,type:uuid"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func (r *SlotReservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}
