// Package jobs defines the follow-up work emitted by the appointment engines
// and the queue plumbing that carries it.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
)

type Kind string

const (
	KindConfirmation Kind = "appointment:confirmation"
	KindReminder     Kind = "appointment:reminder"
	KindCancellation Kind = "appointment:cancellation"
	KindReschedule   Kind = "appointment:reschedule"
)

func Kinds() []Kind {
	return []Kind{KindConfirmation, KindReminder, KindCancellation, KindReschedule}
}

type Payload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	StaffID       uuid.UUID `json:"staff_id"`
	ServiceID     uuid.UUID `json:"service_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`

	// Set on reschedule notices only.
	PreviousStaffID   *uuid.UUID `json:"previous_staff_id,omitempty"`
	PreviousStartTime *time.Time `json:"previous_start_time,omitempty"`
	PreviousEndTime   *time.Time `json:"previous_end_time,omitempty"`
}

// Job is one unit of deferred work. A zero ProcessAt means run as soon as a
// worker is free. A non-empty TaskID lets the queue drop duplicates.
type Job struct {
	Kind      Kind
	Payload   Payload
	ProcessAt time.Time
	TaskID    string
}

type Scheduler interface {
	Enqueue(ctx context.Context, job Job) error
}

func payloadOf(appt domain.Appointment) Payload {
	return Payload{
		AppointmentID: appt.ID,
		CustomerID:    appt.CustomerID,
		StaffID:       appt.StaffID,
		ServiceID:     appt.ServiceID,
		StartTime:     appt.StartTime.UTC(),
		EndTime:       appt.EndTime.UTC(),
	}
}

func NewConfirmation(appt domain.Appointment) Job {
	return Job{Kind: KindConfirmation, Payload: payloadOf(appt)}
}

// NewReminder schedules a reminder lead before the appointment starts. It
// reports false when that moment is not after now.
func NewReminder(appt domain.Appointment, lead time.Duration, now time.Time) (Job, bool) {
	fireAt := appt.StartTime.Add(-lead).UTC()
	if !fireAt.After(now) {
		return Job{}, false
	}
	return Job{
		Kind:      KindReminder,
		Payload:   payloadOf(appt),
		ProcessAt: fireAt,
		TaskID:    fmt.Sprintf("reminder:%s:%d", appt.ID, appt.StartTime.UTC().Unix()),
	}, true
}

func NewCancellation(appt domain.Appointment) Job {
	return Job{Kind: KindCancellation, Payload: payloadOf(appt)}
}

func NewReschedule(before, after domain.Appointment) Job {
	p := payloadOf(after)
	prevStaff := before.StaffID
	prevStart := before.StartTime.UTC()
	prevEnd := before.EndTime.UTC()
	p.PreviousStaffID = &prevStaff
	p.PreviousStartTime = &prevStart
	p.PreviousEndTime = &prevEnd
	return Job{Kind: KindReschedule, Payload: p}
}
