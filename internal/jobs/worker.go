package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

// AppointmentReader is what the worker needs to tell a stale reminder from a
// live one.
type AppointmentReader interface {
	Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
}

type Worker struct {
	appointments AppointmentReader
	notifier     Notifier
	log          *slog.Logger
}

func NewWorker(appointments AppointmentReader, notifier Notifier, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		appointments: appointments,
		notifier:     notifier,
		log:          logger.With(slog.String("component", "notifications_worker")),
	}
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for _, k := range Kinds() {
		mux.Handle(string(k), w)
	}
	return mux
}

func (w *Worker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	kind := Kind(task.Type())
	log := w.log.With(slog.String("kind", string(kind)))

	var p Payload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		log.Error("invalid payload", slog.Any("err", err))
		return fmt.Errorf("decode %s payload: %v: %w", kind, err, asynq.SkipRetry)
	}
	log = log.With(slog.String("appointment_id", p.AppointmentID.String()))

	if kind == KindReminder {
		live, err := w.reminderStillDue(ctx, p)
		if err != nil {
			return err
		}
		if !live {
			log.Info("stale reminder skipped")
			return nil
		}
	}

	if err := w.notifier.Notify(ctx, kind, p); err != nil {
		log.Warn("notify failed", slog.Any("err", err))
		return err
	}
	return nil
}

func (w *Worker) reminderStillDue(ctx context.Context, p Payload) (bool, error) {
	appt, err := w.appointments.Get(ctx, p.AppointmentID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if appt.Status != domain.StatusScheduled {
		return false, nil
	}
	return appt.StartTime.Equal(p.StartTime), nil
}

type ServerConfig struct {
	Queue       string
	Concurrency int
}

// NewServer builds an asynq server that consumes only the appointment queue
// and logs through logger.
func NewServer(redis asynq.RedisConnOpt, cfg ServerConfig, logger *slog.Logger) *asynq.Server {
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      asynqLogger{log: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn("task failed", slog.String("kind", task.Type()), slog.Any("err", err))
		}),
	})
}

type asynqLogger struct {
	log *slog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }

func (l asynqLogger) Fatal(args ...any) {
	l.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}
