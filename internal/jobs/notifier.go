package jobs

import (
	"context"
	"log/slog"
)

// Notifier delivers a notification for a job. Rendering and transport belong
// to the implementation.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, p Payload) error
}

// LogNotifier writes each notification to the log instead of delivering it.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, kind Kind, p Payload) error {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	attrs := []any{
		slog.String("kind", string(kind)),
		slog.String("appointment_id", p.AppointmentID.String()),
		slog.String("customer_id", p.CustomerID.String()),
		slog.String("staff_id", p.StaffID.String()),
		slog.Time("start_time", p.StartTime),
	}
	if p.PreviousStartTime != nil {
		attrs = append(attrs, slog.Time("previous_start_time", *p.PreviousStartTime))
	}
	log.InfoContext(ctx, "notification", attrs...)
	return nil
}
