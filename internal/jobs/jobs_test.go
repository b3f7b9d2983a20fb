package jobs

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
)

func testAppointment(start time.Time) domain.Appointment {
	return domain.Appointment{
		ID:         uuid.MustParse("00000000-0000-0000-0000-00000000a001"),
		CustomerID: uuid.MustParse("00000000-0000-0000-0000-00000000c001"),
		StaffID:    uuid.MustParse("00000000-0000-0000-0000-00000000d001"),
		ServiceID:  uuid.MustParse("00000000-0000-0000-0000-00000000e001"),
		StartTime:  start,
		EndTime:    start.Add(30 * time.Minute),
		Status:     domain.StatusScheduled,
	}
}

func TestNewReminder_Gating(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		start  time.Time
		wantOK bool
	}{
		{name: "ten hours away", start: now.Add(10 * time.Hour), wantOK: false},
		{name: "exactly one day away", start: now.Add(24 * time.Hour), wantOK: false},
		{name: "two days away", start: now.Add(48 * time.Hour), wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, ok := NewReminder(testAppointment(tt.start), 24*time.Hour, now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if job.Kind != KindReminder {
				t.Fatalf("kind = %q", job.Kind)
			}
			if !job.ProcessAt.Equal(tt.start.Add(-24 * time.Hour)) {
				t.Fatalf("process at = %v", job.ProcessAt)
			}
			if job.TaskID == "" {
				t.Fatalf("expected task id")
			}
		})
	}
}

func TestNewReminder_TaskIDFollowsStart(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	a, _ := NewReminder(testAppointment(now.Add(72*time.Hour)), 24*time.Hour, now)
	b, _ := NewReminder(testAppointment(now.Add(72*time.Hour)), 24*time.Hour, now)
	c, _ := NewReminder(testAppointment(now.Add(96*time.Hour)), 24*time.Hour, now)

	if a.TaskID != b.TaskID {
		t.Fatalf("same appointment and start gave %q and %q", a.TaskID, b.TaskID)
	}
	if a.TaskID == c.TaskID {
		t.Fatalf("moved start reused task id %q", a.TaskID)
	}
}

func TestNewReschedule_CarriesBothTimes(t *testing.T) {
	start := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	before := testAppointment(start)
	after := before
	after.StartTime = start.Add(time.Hour)
	after.EndTime = after.StartTime.Add(30 * time.Minute)

	job := NewReschedule(before, after)
	if job.Kind != KindReschedule || !job.ProcessAt.IsZero() {
		t.Fatalf("job = %+v", job)
	}
	if job.Payload.PreviousStartTime == nil || !job.Payload.PreviousStartTime.Equal(start) {
		t.Fatalf("previous start = %v", job.Payload.PreviousStartTime)
	}
	if !job.Payload.StartTime.Equal(after.StartTime) {
		t.Fatalf("start = %v", job.Payload.StartTime)
	}
}
