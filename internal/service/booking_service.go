package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	"github.com/gw-connect/connect-api/pkg/clock"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
)

type bookingAppointmentRepository interface {
	Create(ctx context.Context, req *models.AppointmentRequest) error
	FindByID(ctx context.Context, id string) (*models.AppointmentRequest, error)
	ListConfirmedByPersonDate(ctx context.Context, personID string, date time.Time) ([]models.AppointmentRequest, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error)
	UpdateStatusCAS(ctx context.Context, id string, from, to models.AppointmentStatus) error
	Reschedule(ctx context.Context, oldID string, replacement *models.AppointmentRequest) error
	Delete(ctx context.Context, id string) error
}

type bookingPersonReader interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
}

type bookingSlotSource interface {
	GenerateSlots(ctx context.Context, personID string, date time.Time) ([]dto.Slot, error)
	InvalidateSlotsFor(ctx context.Context, personID string)
}

type bookingNotifier interface {
	Dispatch(ctx context.Context, userID, event string, payload map[string]interface{})
}

type bookingMetrics interface {
	RecordTransition(from, to models.AppointmentStatus)
}

// BookingServiceConfig tunes booking workflow behaviour.
type BookingServiceConfig struct {
	AutoConfirmEnabled bool
}

// BookingService drives the appointment request lifecycle. Transitions are
// one-directional per the lifecycle table on AppointmentStatus; reschedule is
// the only way to move a booking, and it terminates the old request while
// creating a fresh requested one referencing it.
type BookingService struct {
	appointments bookingAppointmentRepository
	people       bookingPersonReader
	slots        bookingSlotSource
	notifier     bookingNotifier
	metrics      bookingMetrics
	clk          clock.Clock
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          BookingServiceConfig
}

// NewBookingService constructs a BookingService.
func NewBookingService(appointments bookingAppointmentRepository, people bookingPersonReader, slots bookingSlotSource, notifier bookingNotifier, metrics bookingMetrics, clk clock.Clock, validate *validator.Validate, logger *zap.Logger, cfg BookingServiceConfig) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	return &BookingService{
		appointments: appointments,
		people:       people,
		slots:        slots,
		notifier:     notifier,
		metrics:      metrics,
		clk:          clk,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
	}
}

// Create submits a new appointment request for a previously generated slot.
// The slot must still be valid at submission time; if it is not, the caller
// gets SLOT_CONFLICT and should regenerate slots. When the person opted into
// auto-confirm the request is confirmed in the same call where possible.
func (s *BookingService) Create(ctx context.Context, requesterID string, req dto.CreateAppointmentRequest) (*models.AppointmentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	person, err := s.requirePerson(ctx, req.PersonID)
	if err != nil {
		return nil, err
	}
	if person.UserID == requesterID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot book an appointment with yourself")
	}
	if err := s.requireFormatAllowed(person, req.Format); err != nil {
		return nil, err
	}
	if err := s.requireSlotValid(ctx, person.ID, date, req.StartMinute, req.EndMinute); err != nil {
		return nil, err
	}

	appt := &models.AppointmentRequest{
		PersonID:    person.ID,
		RequesterID: requesterID,
		Date:        date,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		Format:      req.Format,
		Topic:       req.Topic,
		Notes:       req.Notes,
		Status:      models.AppointmentRequested,
	}
	if len(req.Attachments) > 0 {
		appt.Attachments = marshalAttachments(req.Attachments)
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment request")
	}
	s.notify(ctx, person.UserID, "appointment.requested", appt)

	if s.cfg.AutoConfirmEnabled && person.AutoConfirm {
		if err := s.confirm(ctx, person, appt); err != nil {
			// Auto-confirm losing the slot race is not an error for the
			// requester; the request stays in requested for manual handling.
			if !appErrors.Is(err, appErrors.ErrSlotConflict) {
				return nil, err
			}
			s.logger.Info("auto-confirm skipped, slot conflict",
				zap.String("appointment_id", appt.ID))
		}
	}
	return appt, nil
}

// Get returns an appointment request visible to the acting user. Only the
// requester and the target person may read it.
func (s *BookingService) Get(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error) {
	appt, person, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.RequesterID != actorUserID && person.UserID != actorUserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a party to this appointment")
	}
	return appt, nil
}

// List returns the acting user's appointments, either as requester or as the
// target person when a person filter they own is supplied.
func (s *BookingService) List(ctx context.Context, actorUserID string, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error) {
	if filter.PersonID != "" {
		person, err := s.requirePerson(ctx, filter.PersonID)
		if err != nil {
			return nil, 0, err
		}
		if person.UserID != actorUserID {
			return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "cannot list another person's appointments")
		}
	} else {
		filter.RequesterID = actorUserID
	}

	reqs, total, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointment requests")
	}
	return reqs, total, nil
}

// Confirm moves a requested appointment to confirmed. Only the target person
// may confirm. Availability is re-validated at confirm time: if another
// confirmed request has since taken the interval the caller gets
// SLOT_CONFLICT and the request stays requested for manual resolution.
func (s *BookingService) Confirm(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error) {
	appt, person, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if person.UserID != actorUserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the target person may confirm")
	}
	if err := s.confirm(ctx, person, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// Decline moves a requested appointment to declined. Only the target person
// may decline.
func (s *BookingService) Decline(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error) {
	appt, person, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if person.UserID != actorUserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the target person may decline")
	}
	if err := s.transition(ctx, appt, models.AppointmentDeclined); err != nil {
		return nil, err
	}
	s.notify(ctx, appt.RequesterID, "appointment.declined", appt)
	return appt, nil
}

// Cancel moves a confirmed appointment to cancelled. Either party may cancel,
// but only before the appointment's start time.
func (s *BookingService) Cancel(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error) {
	appt, person, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.RequesterID != actorUserID && person.UserID != actorUserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a party to this appointment")
	}
	if !s.clk.Now().Before(slotTime(appt.Date, appt.StartMinute)) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "appointment has already started")
	}
	if err := s.transition(ctx, appt, models.AppointmentCancelled); err != nil {
		return nil, err
	}
	s.slots.InvalidateSlotsFor(ctx, appt.PersonID)
	s.notify(ctx, s.counterparty(appt, person, actorUserID), "appointment.cancelled", appt)
	return appt, nil
}

// Complete moves a confirmed appointment to completed once its end time has
// elapsed. Only the target person may complete.
func (s *BookingService) Complete(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error) {
	appt, person, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if person.UserID != actorUserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the target person may complete")
	}
	if s.clk.Now().Before(slotTime(appt.Date, appt.EndMinute)) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "appointment has not ended yet")
	}
	if err := s.transition(ctx, appt, models.AppointmentCompleted); err != nil {
		return nil, err
	}
	s.notify(ctx, appt.RequesterID, "appointment.completed", appt)
	return appt, nil
}

// Reschedule terminates a confirmed appointment as rescheduled and creates a
// fresh requested one for the new slot, referencing the old request. Either
// party may reschedule; the new slot must be valid at call time.
func (s *BookingService) Reschedule(ctx context.Context, actorUserID, id string, req dto.RescheduleAppointmentRequest) (*models.AppointmentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	newDate, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	appt, person, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.RequesterID != actorUserID && person.UserID != actorUserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a party to this appointment")
	}
	if !appt.Status.CanTransitionTo(models.AppointmentRescheduled) {
		return nil, invalidTransition(appt.Status, models.AppointmentRescheduled)
	}
	if err := s.requireSlotValid(ctx, appt.PersonID, newDate, req.StartMinute, req.EndMinute); err != nil {
		return nil, err
	}

	replacement := &models.AppointmentRequest{
		PersonID:    appt.PersonID,
		RequesterID: appt.RequesterID,
		Date:        newDate,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		Format:      appt.Format,
		Topic:       appt.Topic,
		Notes:       appt.Notes,
		Attachments: appt.Attachments,
	}
	if err := s.appointments.Reschedule(ctx, appt.ID, replacement); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.transitionRace(ctx, appt.ID, models.AppointmentRescheduled)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule appointment")
	}
	s.recordTransition(appt.Status, models.AppointmentRescheduled)
	appt.Status = models.AppointmentRescheduled

	s.slots.InvalidateSlotsFor(ctx, appt.PersonID)
	s.notify(ctx, s.counterparty(appt, person, actorUserID), "appointment.rescheduled", replacement)
	return replacement, nil
}

// Archive removes a terminal appointment request. Either party may archive;
// live requests cannot be removed implicitly.
func (s *BookingService) Archive(ctx context.Context, actorUserID, id string) error {
	appt, person, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if appt.RequesterID != actorUserID && person.UserID != actorUserID {
		return appErrors.Clone(appErrors.ErrForbidden, "not a party to this appointment")
	}
	if !appt.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("cannot archive a %s appointment", appt.Status))
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive appointment")
	}
	return nil
}

func (s *BookingService) confirm(ctx context.Context, person *models.Person, appt *models.AppointmentRequest) error {
	if !appt.Status.CanTransitionTo(models.AppointmentConfirmed) {
		return invalidTransition(appt.Status, models.AppointmentConfirmed)
	}

	confirmed, err := s.appointments.ListConfirmedByPersonDate(ctx, appt.PersonID, appt.Date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-validate slot")
	}
	for _, other := range confirmed {
		if other.ID != appt.ID && other.Overlaps(appt.StartMinute, appt.EndMinute) {
			return appErrors.Clone(appErrors.ErrSlotConflict, "slot was taken by another confirmed appointment")
		}
	}
	if person.MaxPerDay > 0 && len(confirmed) >= person.MaxPerDay {
		return appErrors.Clone(appErrors.ErrSlotConflict, "daily appointment limit reached")
	}

	if err := s.appointments.UpdateStatusCAS(ctx, appt.ID, appt.Status, models.AppointmentConfirmed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.transitionRace(ctx, appt.ID, models.AppointmentConfirmed)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm appointment")
	}
	s.recordTransition(appt.Status, models.AppointmentConfirmed)
	appt.Status = models.AppointmentConfirmed

	s.slots.InvalidateSlotsFor(ctx, appt.PersonID)
	s.notify(ctx, appt.RequesterID, "appointment.confirmed", appt)
	return nil
}

func (s *BookingService) transition(ctx context.Context, appt *models.AppointmentRequest, to models.AppointmentStatus) error {
	if !appt.Status.CanTransitionTo(to) {
		return invalidTransition(appt.Status, to)
	}
	if err := s.appointments.UpdateStatusCAS(ctx, appt.ID, appt.Status, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.transitionRace(ctx, appt.ID, to)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment status")
	}
	s.recordTransition(appt.Status, to)
	appt.Status = to
	return nil
}

// transitionRace reports a lost compare-and-swap as an invalid transition
// from whatever status the request has now.
func (s *BookingService) transitionRace(ctx context.Context, id string, to models.AppointmentStatus) error {
	current, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload appointment after lost update")
	}
	return invalidTransition(current.Status, to)
}

func (s *BookingService) requireSlotValid(ctx context.Context, personID string, date time.Time, startMinute, endMinute int) error {
	slots, err := s.slots.GenerateSlots(ctx, personID, date)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if slot.Contains(startMinute, endMinute) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrSlotConflict, "slot is no longer available")
}

func (s *BookingService) requireFormatAllowed(person *models.Person, format models.AppointmentFormat) error {
	switch format {
	case models.FormatVirtual:
		if !person.AllowsVirtual {
			return appErrors.Clone(appErrors.ErrValidation, "person does not offer virtual appointments")
		}
	case models.FormatInPerson:
		if !person.AllowsInPerson {
			return appErrors.Clone(appErrors.ErrValidation, "person does not offer in-person appointments")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown appointment format")
	}
	return nil
}

func (s *BookingService) load(ctx context.Context, id string) (*models.AppointmentRequest, *models.Person, error) {
	appt, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	person, err := s.requirePerson(ctx, appt.PersonID)
	if err != nil {
		return nil, nil, err
	}
	return appt, person, nil
}

func (s *BookingService) requirePerson(ctx context.Context, personID string) (*models.Person, error) {
	person, err := s.people.FindByID(ctx, personID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return person, nil
}

// counterparty picks the user to notify: whichever party did not act.
func (s *BookingService) counterparty(appt *models.AppointmentRequest, person *models.Person, actorUserID string) string {
	if actorUserID == appt.RequesterID {
		return person.UserID
	}
	return appt.RequesterID
}

// notify is fire-and-forget: delivery failures are the notifier's concern and
// never block a transition.
func (s *BookingService) notify(ctx context.Context, userID, event string, appt *models.AppointmentRequest) {
	if s.notifier == nil || userID == "" {
		return
	}
	s.notifier.Dispatch(ctx, userID, event, map[string]interface{}{
		"appointment_id": appt.ID,
		"person_id":      appt.PersonID,
		"date":           appt.Date.Format("2006-01-02"),
		"start":          FormatMinute(appt.StartMinute),
		"end":            FormatMinute(appt.EndMinute),
		"topic":          appt.Topic,
		"status":         string(appt.Status),
	})
}

func (s *BookingService) recordTransition(from, to models.AppointmentStatus) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordTransition(from, to)
}

func invalidTransition(from, to models.AppointmentStatus) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot transition from %s to %s", from, to))
}

func parseDate(value string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", value))
	}
	return date, nil
}

func slotTime(date time.Time, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).
		Add(time.Duration(minute) * time.Minute)
}

func marshalAttachments(items []string) []byte {
	raw, err := json.Marshal(items)
	if err != nil {
		return []byte("[]")
	}
	return raw
}
