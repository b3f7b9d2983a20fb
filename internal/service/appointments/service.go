package appointments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/jobs"
	"slotbook/backend/internal/store"
)

const (
	DefaultReminderLead = 24 * time.Hour

	maxNotesLength          = 2000
	maxIdempotencyKeyLength = 256
)

type Options struct {
	Location     *time.Location
	Hours        domain.BusinessHours
	ReminderLead time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

type Service struct {
	repo      store.AppointmentRepository
	directory store.Directory
	scheduler jobs.Scheduler

	loc          *time.Location
	hours        domain.BusinessHours
	reminderLead time.Duration
	now          func() time.Time
	log          *slog.Logger
}

func NewService(repo store.AppointmentRepository, directory store.Directory, scheduler jobs.Scheduler, opts Options) *Service {
	s := &Service{
		repo:         repo,
		directory:    directory,
		scheduler:    scheduler,
		loc:          opts.Location,
		hours:        opts.Hours,
		reminderLead: opts.ReminderLead,
		now:          opts.Now,
		log:          opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.hours == (domain.BusinessHours{}) {
		s.hours = domain.BusinessHours{OpenHour: 9, CloseHour: 22}
	}
	if s.reminderLead <= 0 {
		s.reminderLead = DefaultReminderLead
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With(slog.String("component", "appointments"))
	return s
}

type CreateInput struct {
	CustomerID     uuid.UUID
	StaffID        uuid.UUID
	ServiceID      uuid.UUID
	StartTime      time.Time
	Notes          string
	IdempotencyKey string
}

// Create books a slot. Whichever concurrent caller's reservation lands first
// wins; the others get ErrSlotUnavailable.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	if in.CustomerID == uuid.Nil {
		return domain.Appointment{}, validationError("customer_id is required")
	}
	if in.StaffID == uuid.Nil {
		return domain.Appointment{}, validationError("staff_id is required")
	}
	if in.ServiceID == uuid.Nil {
		return domain.Appointment{}, validationError("service_id is required")
	}
	if in.StartTime.IsZero() {
		return domain.Appointment{}, validationError("start_time is required")
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > maxNotesLength {
		return domain.Appointment{}, validationError("notes too long")
	}

	if _, err := s.directory.GetCustomer(ctx, in.CustomerID); err != nil {
		return domain.Appointment{}, lookupError(err, ErrCustomerNotFound)
	}
	if _, err := s.directory.GetStaff(ctx, in.StaffID); err != nil {
		return domain.Appointment{}, lookupError(err, ErrStaffNotFound)
	}
	svc, err := s.directory.GetService(ctx, in.ServiceID)
	if err != nil {
		return domain.Appointment{}, lookupError(err, ErrServiceNotFound)
	}
	if svc.DurationMinutes <= 0 {
		return domain.Appointment{}, validationError("service has no duration")
	}

	start := domain.NormalizeStart(in.StartTime)
	appt := domain.Appointment{
		CustomerID: in.CustomerID,
		StaffID:    in.StaffID,
		ServiceID:  in.ServiceID,
		StartTime:  start,
		EndTime:    start.Add(svc.Duration()),
		Status:     domain.StatusScheduled,
		Notes:      notes,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxIdempotencyKeyLength {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("slotbook:create_appointment:"+in.CustomerID.String()+":"+key))
	}

	out, created, err := s.repo.Create(ctx, appt)
	if err != nil {
		return domain.Appointment{}, writeError(err)
	}
	if !created {
		return out, nil
	}

	s.enqueue(ctx, jobs.NewConfirmation(out))
	if job, ok := jobs.NewReminder(out, s.reminderLead, s.now()); ok {
		s.enqueue(ctx, job)
	}
	return out, nil
}

type RescheduleInput struct {
	AppointmentID uuid.UUID
	RequesterID   uuid.UUID
	NewStartTime  time.Time
	// Nil keeps the current staff member or service.
	NewStaffID   uuid.UUID
	NewServiceID uuid.UUID
}

// Reschedule moves an appointment to a new start and optionally to another
// staff member or service. The appointment's own slot never counts as a
// conflict.
func (s *Service) Reschedule(ctx context.Context, in RescheduleInput) (domain.Appointment, error) {
	if in.AppointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if in.RequesterID == uuid.Nil {
		return domain.Appointment{}, validationError("requester_id is required")
	}
	if in.NewStartTime.IsZero() {
		return domain.Appointment{}, validationError("start_time is required")
	}

	current, err := s.repo.Get(ctx, in.AppointmentID)
	if err != nil {
		return domain.Appointment{}, lookupError(err, ErrAppointmentNotFound)
	}
	if current.CustomerID != in.RequesterID {
		return domain.Appointment{}, ErrForbidden
	}

	if in.NewStaffID != uuid.Nil && in.NewStaffID != current.StaffID {
		if _, err := s.directory.GetStaff(ctx, in.NewStaffID); err != nil {
			return domain.Appointment{}, lookupError(err, ErrStaffNotFound)
		}
	}
	serviceID := current.ServiceID
	if in.NewServiceID != uuid.Nil {
		serviceID = in.NewServiceID
	}
	svc, err := s.rescheduleService(ctx, serviceID)
	if err != nil {
		return domain.Appointment{}, err
	}

	start := domain.NormalizeStart(in.NewStartTime)
	var before domain.Appointment
	after, err := s.repo.Modify(ctx, in.AppointmentID, func(appt *domain.Appointment) error {
		if appt.CustomerID != in.RequesterID {
			return ErrForbidden
		}
		// Unchanged fields follow the locked row, not the earlier read.
		if in.NewServiceID == uuid.Nil && appt.ServiceID != serviceID {
			locked, err := s.rescheduleService(ctx, appt.ServiceID)
			if err != nil {
				return err
			}
			serviceID, svc = appt.ServiceID, locked
		}
		before = *appt
		if in.NewStaffID != uuid.Nil {
			appt.StaffID = in.NewStaffID
		}
		appt.ServiceID = serviceID
		appt.StartTime = start
		appt.EndTime = start.Add(svc.Duration())
		appt.Status = domain.StatusScheduled
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrAppointmentNotFound
		}
		return domain.Appointment{}, writeError(err)
	}

	s.enqueue(ctx, jobs.NewReschedule(before, after))
	if job, ok := jobs.NewReminder(after, s.reminderLead, s.now()); ok {
		s.enqueue(ctx, job)
	}
	return after, nil
}

// rescheduleService loads the service that sizes a rescheduled appointment.
func (s *Service) rescheduleService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
	svc, err := s.directory.GetService(ctx, serviceID)
	if err != nil {
		return domain.Service{}, lookupError(err, ErrServiceNotFound)
	}
	if svc.DurationMinutes <= 0 {
		return domain.Service{}, validationError("service has no duration")
	}
	return svc, nil
}

// Cancel marks an appointment cancelled. Cancelling twice is an error.
func (s *Service) Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if requesterID == uuid.Nil {
		return domain.Appointment{}, validationError("requester_id is required")
	}

	out, err := s.repo.Modify(ctx, appointmentID, func(appt *domain.Appointment) error {
		if appt.CustomerID != requesterID {
			return ErrForbidden
		}
		if appt.Cancelled() {
			return ErrAlreadyCancelled
		}
		appt.Status = domain.StatusCancelled
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrAppointmentNotFound
		}
		return domain.Appointment{}, err
	}

	s.enqueue(ctx, jobs.NewCancellation(out))
	return out, nil
}

func (s *Service) Get(ctx context.Context, appointmentID, requesterID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	appt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, lookupError(err, ErrAppointmentNotFound)
	}
	if appt.CustomerID != requesterID {
		return domain.Appointment{}, ErrForbidden
	}
	return appt, nil
}

// BusySlots returns the starts of every non-cancelled appointment the staff
// member has on the given business day (YYYY-MM-DD).
func (s *Service) BusySlots(ctx context.Context, staffID uuid.UUID, date string) (domain.SlotSet, error) {
	if staffID == uuid.Nil {
		return nil, validationError("staff_id is required")
	}
	day, err := domain.ParseDate(date, s.loc)
	if err != nil {
		return nil, validationError(err.Error())
	}
	return s.busySet(ctx, staffID, day)
}

func (s *Service) busySet(ctx context.Context, staffID uuid.UUID, day time.Time) (domain.SlotSet, error) {
	from, to := domain.DayBounds(day, s.loc)
	starts, err := s.repo.ListBusyStarts(ctx, staffID, from, to)
	if err != nil {
		return nil, err
	}
	return domain.NewSlotSet(starts...), nil
}

type Availability struct {
	StaffID   uuid.UUID
	ServiceID uuid.UUID
	Date      string
	// Slots are the bookable starts, ascending. Starts already in the past
	// are left out.
	Slots       []time.Time
	BookedSlots []time.Time
}

func (s *Service) Availability(ctx context.Context, staffID, serviceID uuid.UUID, date string) (Availability, error) {
	if staffID == uuid.Nil {
		return Availability{}, validationError("staff_id is required")
	}
	if serviceID == uuid.Nil {
		return Availability{}, validationError("service_id is required")
	}
	day, err := domain.ParseDate(date, s.loc)
	if err != nil {
		return Availability{}, validationError(err.Error())
	}

	if _, err := s.directory.GetStaff(ctx, staffID); err != nil {
		return Availability{}, lookupError(err, ErrStaffNotFound)
	}
	svc, err := s.directory.GetService(ctx, serviceID)
	if err != nil {
		return Availability{}, lookupError(err, ErrServiceNotFound)
	}

	candidates, err := domain.GenerateSlots(day, s.loc, s.hours, svc.DurationMinutes)
	if err != nil {
		return Availability{}, validationError(err.Error())
	}
	busy, err := s.busySet(ctx, staffID, day)
	if err != nil {
		return Availability{}, err
	}

	return Availability{
		StaffID:     staffID,
		ServiceID:   serviceID,
		Date:        day.Format(domain.DateLayout),
		Slots:       domain.FreeSlots(candidates, busy, s.now()),
		BookedSlots: busy.Sorted(),
	}, nil
}

// enqueue hands a job to the scheduler after the write has committed. A
// failure is logged and never undoes the write.
func (s *Service) enqueue(ctx context.Context, job jobs.Job) {
	if s.scheduler == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.scheduler.Enqueue(ctx, job); err != nil {
		s.log.Warn(
			"job enqueue failed",
			slog.String("kind", string(job.Kind)),
			slog.String("appointment_id", job.Payload.AppointmentID.String()),
			slog.Any("err", err),
		)
	}
}

func lookupError(err, notFound error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return err
}

func writeError(err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return ErrSlotUnavailable
	case errors.Is(err, store.ErrIdempotencyConflict):
		return ErrIdempotencyConflict
	}
	return err
}
