package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

type fakeReader struct {
	getFn func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
}

func (f *fakeReader) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, appointmentID)
}

type fakeNotifier struct {
	calls []Kind
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, kind Kind, p Payload) error {
	f.calls = append(f.calls, kind)
	return f.err
}

func taskFor(t *testing.T, job Job) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(job.Payload)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	return asynq.NewTask(string(job.Kind), b)
}

func TestWorker_ImmediateJobsNotify(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWorker(&fakeReader{}, n, nil)
	appt := testAppointment(time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC))

	for _, job := range []Job{NewConfirmation(appt), NewCancellation(appt), NewReschedule(appt, appt)} {
		if err := w.ProcessTask(context.Background(), taskFor(t, job)); err != nil {
			t.Fatalf("ProcessTask(%s) error: %v", job.Kind, err)
		}
	}
	if len(n.calls) != 3 {
		t.Fatalf("notify calls = %v", n.calls)
	}
}

func TestWorker_Reminder(t *testing.T) {
	start := time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC)
	appt := testAppointment(start)
	job := Job{Kind: KindReminder, Payload: payloadOf(appt)}

	moved := appt
	moved.StartTime = start.Add(time.Hour)
	cancelled := appt
	cancelled.Status = domain.StatusCancelled
	infra := errors.New("db down")

	tests := []struct {
		name       string
		stored     domain.Appointment
		getErr     error
		wantNotify bool
		wantErr    error
	}{
		{name: "still due", stored: appt, wantNotify: true},
		{name: "moved", stored: moved},
		{name: "cancelled", stored: cancelled},
		{name: "gone", getErr: store.ErrNotFound},
		{name: "lookup failure retries", getErr: infra, wantErr: infra},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &fakeNotifier{}
			w := NewWorker(&fakeReader{
				getFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
					return tt.stored, tt.getErr
				},
			}, n, nil)

			err := w.ProcessTask(context.Background(), taskFor(t, job))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := len(n.calls) == 1; got != tt.wantNotify {
				t.Fatalf("notified = %v, want %v", got, tt.wantNotify)
			}
		})
	}
}

func TestWorker_BadPayloadSkipsRetry(t *testing.T) {
	w := NewWorker(&fakeReader{}, &fakeNotifier{}, nil)
	err := w.ProcessTask(context.Background(), asynq.NewTask(string(KindConfirmation), []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}

func TestWorker_NotifyErrorRetries(t *testing.T) {
	boom := errors.New("smtp down")
	w := NewWorker(&fakeReader{}, &fakeNotifier{err: boom}, nil)
	err := w.ProcessTask(context.Background(), taskFor(t, NewConfirmation(testAppointment(time.Now()))))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	appt := testAppointment(time.Now())
	_ = r.Enqueue(context.Background(), NewConfirmation(appt))
	_ = r.Enqueue(context.Background(), NewCancellation(appt))
	if r.Count(KindConfirmation) != 1 || len(r.Jobs()) != 2 {
		t.Fatalf("jobs = %+v", r.Jobs())
	}

	r.Err = errors.New("down")
	if err := r.Enqueue(context.Background(), NewConfirmation(appt)); err == nil {
		t.Fatalf("expected error")
	}
	if len(r.Jobs()) != 2 {
		t.Fatalf("failed enqueue recorded")
	}
}

func TestNewServer_NilLoggerFallsBackToDefault(t *testing.T) {
	srv := NewServer(asynq.RedisClientOpt{Addr: "127.0.0.1:0"}, ServerConfig{}, nil)
	if srv == nil {
		t.Fatalf("NewServer returned nil")
	}
	// Never started, so Shutdown returns without touching redis.
	srv.Shutdown()
}
