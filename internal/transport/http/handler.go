package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/service/appointments"
)

type appointmentsService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Reschedule(ctx context.Context, in appointments.RescheduleInput) (domain.Appointment, error)
	Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) (domain.Appointment, error)
	Get(ctx context.Context, appointmentID, requesterID uuid.UUID) (domain.Appointment, error)
	BusySlots(ctx context.Context, staffID uuid.UUID, date string) (domain.SlotSet, error)
	Availability(ctx context.Context, staffID, serviceID uuid.UUID, date string) (appointments.Availability, error)
}

type Handler struct {
	svc appointmentsService
	log *slog.Logger
}

func NewHandler(svc appointmentsService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log.With(slog.String("component", "http.appointments"))}
}

// Router builds the gin engine serving the appointment endpoints.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	v1 := r.Group("/v1")
	v1.GET("/staff/:staffId/availability", h.checkAvailability)
	v1.GET("/staff/:staffId/busy", h.listBusySlots)

	appts := v1.Group("/appointments", requireCaller())
	appts.POST("", h.createAppointment)
	appts.GET("/:id", h.getAppointment)
	appts.POST("/:id/reschedule", h.rescheduleAppointment)
	appts.POST("/:id/cancel", h.cancelAppointment)

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

type appointmentDTO struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	StaffID    string    `json:"staffId"`
	ServiceID  string    `json:"serviceId"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toDTO(a domain.Appointment) appointmentDTO {
	return appointmentDTO{
		ID:         a.ID.String(),
		CustomerID: a.CustomerID.String(),
		StaffID:    a.StaffID.String(),
		ServiceID:  a.ServiceID.String(),
		StartTime:  a.StartTime.UTC(),
		EndTime:    a.EndTime.UTC(),
		Status:     string(a.Status),
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt.UTC(),
		UpdatedAt:  a.UpdatedAt.UTC(),
	}
}

type availabilityDTO struct {
	StaffID     string      `json:"staffId"`
	ServiceID   string      `json:"serviceId"`
	Date        string      `json:"date"`
	Slots       []time.Time `json:"slots"`
	BookedSlots []time.Time `json:"bookedSlots"`
}

func (h *Handler) checkAvailability(c *gin.Context) {
	staffID, ok := pathID(c, "staffId")
	if !ok {
		return
	}
	serviceID, err := uuid.Parse(strings.TrimSpace(c.Query("serviceId")))
	if err != nil {
		failure(c, http.StatusBadRequest, "serviceId must be a UUID")
		return
	}

	av, err := h.svc.Availability(c.Request.Context(), staffID, serviceID, c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, "Availability retrieved", availabilityDTO{
		StaffID:     av.StaffID.String(),
		ServiceID:   av.ServiceID.String(),
		Date:        av.Date,
		Slots:       nonNil(av.Slots),
		BookedSlots: nonNil(av.BookedSlots),
	})
}

func (h *Handler) listBusySlots(c *gin.Context) {
	staffID, ok := pathID(c, "staffId")
	if !ok {
		return
	}
	busy, err := h.svc.BusySlots(c.Request.Context(), staffID, c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, "Busy slots retrieved", gin.H{"bookedSlots": nonNil(busy.Sorted())})
}

type createAppointmentRequest struct {
	StaffID   string    `json:"staffId" binding:"required,uuid"`
	ServiceID string    `json:"serviceId" binding:"required,uuid"`
	StartTime time.Time `json:"startTime" binding:"required"`
	Notes     string    `json:"notes"`
}

func (h *Handler) createAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	appt, err := h.svc.Create(c.Request.Context(), appointments.CreateInput{
		CustomerID:     caller(c),
		StaffID:        uuid.MustParse(req.StaffID),
		ServiceID:      uuid.MustParse(req.ServiceID),
		StartTime:      req.StartTime,
		Notes:          req.Notes,
		IdempotencyKey: c.GetHeader(idempotencyKeyHeader),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, "Appointment booked", toDTO(appt))
}

func (h *Handler) getAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	appt, err := h.svc.Get(c.Request.Context(), id, caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, "Appointment retrieved", toDTO(appt))
}

type rescheduleAppointmentRequest struct {
	StartTime time.Time `json:"startTime" binding:"required"`
	StaffID   string    `json:"staffId" binding:"omitempty,uuid"`
	ServiceID string    `json:"serviceId" binding:"omitempty,uuid"`
}

func (h *Handler) rescheduleAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req rescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	in := appointments.RescheduleInput{
		AppointmentID: id,
		RequesterID:   caller(c),
		NewStartTime:  req.StartTime,
	}
	if req.StaffID != "" {
		in.NewStaffID = uuid.MustParse(req.StaffID)
	}
	if req.ServiceID != "" {
		in.NewServiceID = uuid.MustParse(req.ServiceID)
	}

	appt, err := h.svc.Reschedule(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, "Appointment rescheduled", toDTO(appt))
}

func (h *Handler) cancelAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	appt, err := h.svc.Cancel(c.Request.Context(), id, caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, "Appointment cancelled", toDTO(appt))
}

func (h *Handler) fail(c *gin.Context, err error) {
	var vErr *appointments.ValidationError
	switch {
	case errors.As(err, &vErr):
		failure(c, http.StatusBadRequest, vErr.Error())
	case appointments.IsNotFound(err):
		failure(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appointments.ErrForbidden):
		failure(c, http.StatusForbidden, "You can only change your own appointments.")
	case errors.Is(err, appointments.ErrSlotUnavailable):
		failure(c, http.StatusConflict, "That time is already booked. Pick a different slot.")
	case errors.Is(err, appointments.ErrAlreadyCancelled):
		failure(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, appointments.ErrIdempotencyConflict):
		failure(c, http.StatusConflict, err.Error())
	default:
		h.log.Error("request failed", slog.String("route", c.FullPath()), slog.Any("err", err))
		failure(c, http.StatusInternalServerError, "internal error")
	}
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		failure(c, http.StatusBadRequest, name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func nonNil(ts []time.Time) []time.Time {
	if ts == nil {
		return []time.Time{}
	}
	return ts
}
