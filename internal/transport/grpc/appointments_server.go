package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/service/appointments"
)

type AppointmentsServer struct {
	svc appointmentsService
	log *slog.Logger
}

var _ AppointmentsServiceServer = (*AppointmentsServer)(nil)

type appointmentsService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Reschedule(ctx context.Context, in appointments.RescheduleInput) (domain.Appointment, error)
	Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) (domain.Appointment, error)
	Get(ctx context.Context, appointmentID, requesterID uuid.UUID) (domain.Appointment, error)
	BusySlots(ctx context.Context, staffID uuid.UUID, date string) (domain.SlotSet, error)
	Availability(ctx context.Context, staffID, serviceID uuid.UUID, date string) (appointments.Availability, error)
}

func NewAppointmentsServer(svc appointmentsService, log *slog.Logger) *AppointmentsServer {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.appointments")),
	}
}

func (s *AppointmentsServer) CheckAvailability(ctx context.Context, req *CheckAvailabilityRequest) (*CheckAvailabilityResponse, error) {
	log := s.log.With(slog.String("rpc", "CheckAvailability"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	staffID, err := parseID(req.StaffID, "staff_id")
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}
	serviceID, err := parseID(req.ServiceID, "service_id")
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}

	av, err := s.svc.Availability(ctx, staffID, serviceID, req.Date)
	if err != nil {
		return nil, s.toStatus(log, err, slog.String("staff_id", req.StaffID), slog.String("date", req.Date))
	}

	log.Debug(
		"availability checked",
		slog.String("staff_id", req.StaffID),
		slog.String("date", av.Date),
		slog.Int("free", len(av.Slots)),
		slog.Int("booked", len(av.BookedSlots)),
	)

	return &CheckAvailabilityResponse{
		Date:        av.Date,
		Slots:       toProtoTimes(av.Slots),
		BookedSlots: toProtoTimes(av.BookedSlots),
	}, nil
}

func (s *AppointmentsServer) ListBusySlots(ctx context.Context, req *ListBusySlotsRequest) (*ListBusySlotsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListBusySlots"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	staffID, err := parseID(req.StaffID, "staff_id")
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}

	busy, err := s.svc.BusySlots(ctx, staffID, req.Date)
	if err != nil {
		return nil, s.toStatus(log, err, slog.String("staff_id", req.StaffID), slog.String("date", req.Date))
	}
	return &ListBusySlotsResponse{BusySlots: toProtoTimes(busy.Sorted())}, nil
}

func (s *AppointmentsServer) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	customerID, err := callerID(ctx)
	if err != nil {
		log.Warn("unauthenticated", slog.String("reason", "missing_user_id"))
		return nil, err
	}
	if req.StartTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_start_time"), slog.String("user_id", customerID.String()))
		return nil, status.Error(codes.InvalidArgument, "start_time is required")
	}
	staffID, err := parseID(req.StaffID, "staff_id")
	if err != nil {
		return nil, err
	}
	serviceID, err := parseID(req.ServiceID, "service_id")
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Create(ctx, appointments.CreateInput{
		CustomerID:     customerID,
		StaffID:        staffID,
		ServiceID:      serviceID,
		StartTime:      req.StartTime.AsTime(),
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.toStatus(log, err,
			slog.String("user_id", customerID.String()),
			slog.String("staff_id", req.StaffID),
			slog.Time("start_time", req.StartTime.AsTime()),
		)
	}

	log.Info(
		"appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("user_id", appt.CustomerID.String()),
		slog.String("staff_id", appt.StaffID.String()),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)

	return &AppointmentResponse{Appointment: toProtoAppointment(appt)}, nil
}

func (s *AppointmentsServer) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "GetAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	requesterID, err := callerID(ctx)
	if err != nil {
		log.Warn("unauthenticated", slog.String("reason", "missing_user_id"))
		return nil, err
	}
	id, err := parseID(req.AppointmentID, "appointment_id")
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Get(ctx, id, requesterID)
	if err != nil {
		return nil, s.toStatus(log, err, slog.String("appointment_id", req.AppointmentID), slog.String("user_id", requesterID.String()))
	}
	return &AppointmentResponse{Appointment: toProtoAppointment(appt)}, nil
}

func (s *AppointmentsServer) RescheduleAppointment(ctx context.Context, req *RescheduleAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "RescheduleAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	requesterID, err := callerID(ctx)
	if err != nil {
		log.Warn("unauthenticated", slog.String("reason", "missing_user_id"))
		return nil, err
	}
	id, err := parseID(req.AppointmentID, "appointment_id")
	if err != nil {
		return nil, err
	}
	if req.StartTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_start_time"), slog.String("appointment_id", req.AppointmentID))
		return nil, status.Error(codes.InvalidArgument, "start_time is required")
	}
	staffID, err := parseOptionalID(req.StaffID, "staff_id")
	if err != nil {
		return nil, err
	}
	serviceID, err := parseOptionalID(req.ServiceID, "service_id")
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Reschedule(ctx, appointments.RescheduleInput{
		AppointmentID: id,
		RequesterID:   requesterID,
		NewStartTime:  req.StartTime.AsTime(),
		NewStaffID:    staffID,
		NewServiceID:  serviceID,
	})
	if err != nil {
		return nil, s.toStatus(log, err,
			slog.String("appointment_id", req.AppointmentID),
			slog.String("user_id", requesterID.String()),
			slog.Time("start_time", req.StartTime.AsTime()),
		)
	}

	log.Info(
		"appointment rescheduled",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("staff_id", appt.StaffID.String()),
		slog.Time("start_time", appt.StartTime),
	)
	return &AppointmentResponse{Appointment: toProtoAppointment(appt)}, nil
}

func (s *AppointmentsServer) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	requesterID, err := callerID(ctx)
	if err != nil {
		log.Warn("unauthenticated", slog.String("reason", "missing_user_id"))
		return nil, err
	}
	id, err := parseID(req.AppointmentID, "appointment_id")
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Cancel(ctx, id, requesterID)
	if err != nil {
		return nil, s.toStatus(log, err, slog.String("appointment_id", req.AppointmentID), slog.String("user_id", requesterID.String()))
	}

	log.Info("appointment cancelled", slog.String("appointment_id", appt.ID.String()), slog.String("user_id", requesterID.String()))
	return &AppointmentResponse{Appointment: toProtoAppointment(appt)}, nil
}

// toStatus maps service errors onto gRPC codes and logs at a level that
// matches who is at fault.
func (s *AppointmentsServer) toStatus(log *slog.Logger, err error, attrs ...any) error {
	args := append([]any{slog.Any("err", err)}, attrs...)

	var vErr *appointments.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case appointments.IsNotFound(err):
		log.Info("not found", args...)
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, appointments.ErrForbidden):
		log.Warn("forbidden", args...)
		return status.Error(codes.PermissionDenied, "You can only change your own appointments.")
	case errors.Is(err, appointments.ErrSlotUnavailable):
		log.Info("slot conflict", args...)
		return status.Error(codes.AlreadyExists, "That time is already booked. Pick a different slot.")
	case errors.Is(err, appointments.ErrAlreadyCancelled):
		log.Info("already cancelled", args...)
		return status.Error(codes.FailedPrecondition, "appointment already cancelled")
	case errors.Is(err, appointments.ErrIdempotencyConflict):
		log.Info("idempotency conflict", args...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different appointment. Try again.")
	}
	log.Error("request failed", args...)
	return status.Error(codes.Internal, "internal error")
}

func callerID(ctx context.Context) (uuid.UUID, error) {
	raw := firstMetadata(ctx, "x-user-id")
	if raw == "" {
		return uuid.Nil, status.Error(codes.Unauthenticated, "x-user-id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Error(codes.Unauthenticated, "x-user-id must be a UUID")
	}
	return id, nil
}

func idempotencyKey(ctx context.Context) string {
	if v := firstMetadata(ctx, "idempotency-key"); v != "" {
		return v
	}
	return firstMetadata(ctx, "x-idempotency-key")
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, field+" must be a UUID")
	}
	return id, nil
}

func parseOptionalID(raw, field string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, nil
	}
	return parseID(raw, field)
}

func toProtoTimes(ts []time.Time) []*timestamppb.Timestamp {
	out := make([]*timestamppb.Timestamp, 0, len(ts))
	for _, t := range ts {
		out = append(out, timestamppb.New(t))
	}
	return out
}

func toProtoAppointment(a domain.Appointment) *Appointment {
	return &Appointment{
		ID:         a.ID.String(),
		CustomerID: a.CustomerID.String(),
		StaffID:    a.StaffID.String(),
		ServiceID:  a.ServiceID.String(),
		StartTime:  timestamppb.New(a.StartTime),
		EndTime:    timestamppb.New(a.EndTime),
		Status:     string(a.Status),
		Notes:      a.Notes,
		CreatedAt:  timestamppb.New(a.CreatedAt),
		UpdatedAt:  timestamppb.New(a.UpdatedAt),
	}
}
