package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	"github.com/gw-connect/connect-api/pkg/clock"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
)

type apptRepoStub struct {
	items map[string]*models.AppointmentRequest
	next  int
}

func newApptRepoStub() *apptRepoStub {
	return &apptRepoStub{items: map[string]*models.AppointmentRequest{}}
}

func (s *apptRepoStub) Create(ctx context.Context, req *models.AppointmentRequest) error {
	if req.ID == "" {
		s.next++
		req.ID = fmt.Sprintf("appt-%d", s.next)
	}
	copied := *req
	s.items[req.ID] = &copied
	return nil
}

func (s *apptRepoStub) FindByID(ctx context.Context, id string) (*models.AppointmentRequest, error) {
	appt, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *appt
	return &copied, nil
}

func (s *apptRepoStub) ListConfirmedByPersonDate(ctx context.Context, personID string, date time.Time) ([]models.AppointmentRequest, error) {
	var result []models.AppointmentRequest
	for _, appt := range s.items {
		if appt.PersonID == personID && appt.Status == models.AppointmentConfirmed && appt.Date.Equal(date) {
			result = append(result, *appt)
		}
	}
	return result, nil
}

func (s *apptRepoStub) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error) {
	var result []models.AppointmentRequest
	for _, appt := range s.items {
		if filter.PersonID != "" && appt.PersonID != filter.PersonID {
			continue
		}
		if filter.RequesterID != "" && appt.RequesterID != filter.RequesterID {
			continue
		}
		result = append(result, *appt)
	}
	return result, len(result), nil
}

func (s *apptRepoStub) UpdateStatusCAS(ctx context.Context, id string, from, to models.AppointmentStatus) error {
	appt, ok := s.items[id]
	if !ok || appt.Status != from {
		return sql.ErrNoRows
	}
	appt.Status = to
	return nil
}

func (s *apptRepoStub) Reschedule(ctx context.Context, oldID string, replacement *models.AppointmentRequest) error {
	if err := s.UpdateStatusCAS(ctx, oldID, models.AppointmentConfirmed, models.AppointmentRescheduled); err != nil {
		return err
	}
	replacement.Status = models.AppointmentRequested
	replacement.RescheduledFromID = &oldID
	return s.Create(ctx, replacement)
}

func (s *apptRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.items, id)
	return nil
}

type personReaderStub struct {
	people map[string]*models.Person
}

func (s *personReaderStub) FindByID(ctx context.Context, id string) (*models.Person, error) {
	person, ok := s.people[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *person
	return &copied, nil
}

type slotSourceStub struct {
	slots       []dto.Slot
	invalidated []string
}

func (s *slotSourceStub) GenerateSlots(ctx context.Context, personID string, date time.Time) ([]dto.Slot, error) {
	return s.slots, nil
}

func (s *slotSourceStub) InvalidateSlotsFor(ctx context.Context, personID string) {
	s.invalidated = append(s.invalidated, personID)
}

type notifierStub struct {
	events []string
	users  []string
}

func (s *notifierStub) Dispatch(ctx context.Context, userID, event string, payload map[string]interface{}) {
	s.users = append(s.users, userID)
	s.events = append(s.events, event)
}

type bookingFixture struct {
	repo     *apptRepoStub
	people   *personReaderStub
	slots    *slotSourceStub
	notifier *notifierStub
	clk      *clock.Fixed
	svc      *BookingService
}

func newBookingFixture(cfg BookingServiceConfig) *bookingFixture {
	f := &bookingFixture{
		repo:     newApptRepoStub(),
		people:   &personReaderStub{people: map[string]*models.Person{"person-1": testPerson()}},
		slots:    &slotSourceStub{slots: mondaySlots()},
		notifier: &notifierStub{},
		clk:      clock.NewFixed(testNow),
	}
	f.svc = NewBookingService(f.repo, f.people, f.slots, f.notifier, nil, f.clk, validator.New(), nil, cfg)
	return f
}

func mondaySlots() []dto.Slot {
	return []dto.Slot{
		{Date: "2026-09-07", StartMinute: 840, EndMinute: 870, Start: "14:00", End: "14:30"},
		{Date: "2026-09-07", StartMinute: 885, EndMinute: 915, Start: "14:45", End: "15:15"},
		{Date: "2026-09-07", StartMinute: 930, EndMinute: 960, Start: "15:30", End: "16:00"},
	}
}

func createRequest() dto.CreateAppointmentRequest {
	return dto.CreateAppointmentRequest{
		PersonID:    "person-1",
		Date:        "2026-09-07",
		StartMinute: 840,
		EndMinute:   870,
		Format:      models.FormatVirtual,
		Topic:       "office hours",
	}
}

func TestBookingCreate(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})

	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentRequested, appt.Status)
	assert.Equal(t, "person-1", appt.PersonID)
	assert.Equal(t, "user-2", appt.RequesterID)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "appointment.requested", f.notifier.events[0])
	assert.Equal(t, "user-1", f.notifier.users[0])
}

func TestBookingCreateSlotNotOffered(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})

	req := createRequest()
	req.StartMinute = 845
	req.EndMinute = 875
	_, err := f.svc.Create(context.Background(), "user-2", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotConflict.Code, appErrors.FromError(err).Code)
}

func TestBookingCreateFormatNotAllowed(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	f.people.people["person-1"].AllowsInPerson = false

	req := createRequest()
	req.Format = models.FormatInPerson
	_, err := f.svc.Create(context.Background(), "user-2", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookingCreateSelfBookingRejected(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})

	_, err := f.svc.Create(context.Background(), "user-1", createRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookingCreateAutoConfirm(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{AutoConfirmEnabled: true})
	f.people.people["person-1"].AutoConfirm = true

	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentConfirmed, appt.Status)
	assert.Contains(t, f.notifier.events, "appointment.confirmed")
	assert.Contains(t, f.slots.invalidated, "person-1")
}

func TestBookingConfirm(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentConfirmed, confirmed.Status)
	assert.Contains(t, f.slots.invalidated, "person-1")
	assert.Contains(t, f.notifier.events, "appointment.confirmed")

	stored, _ := f.repo.FindByID(context.Background(), appt.ID)
	assert.Equal(t, models.AppointmentConfirmed, stored.Status)
}

func TestBookingConfirmOnlyTarget(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), "user-2", appt.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestBookingConfirmSlotTakenLeavesRequested(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	first, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)
	second, err := f.svc.Create(context.Background(), "user-3", createRequest())
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), "user-1", first.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), "user-1", second.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotConflict.Code, appErrors.FromError(err).Code)

	stored, _ := f.repo.FindByID(context.Background(), second.ID)
	assert.Equal(t, models.AppointmentRequested, stored.Status)
}

func TestBookingDeclineThenConfirmInvalidTransition(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)

	_, err = f.svc.Decline(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), "user-1", appt.ID)
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, typed.Code)
	assert.Contains(t, typed.Message, "declined")
	assert.Contains(t, typed.Message, "confirmed")
}

func TestBookingCancelBeforeStart(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), "user-2", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCancelled, cancelled.Status)
	// The requester cancelled, so the target person gets the notification.
	assert.Equal(t, "user-1", f.notifier.users[len(f.notifier.users)-1])
}

func TestBookingCancelAfterStartFails(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)

	f.clk.Set(time.Date(2026, 9, 7, 14, 5, 0, 0, time.UTC))
	_, err = f.svc.Cancel(context.Background(), "user-2", appt.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestBookingCompleteRequiresElapsedEnd(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), "user-1", appt.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	f.clk.Set(time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC))
	completed, err := f.svc.Complete(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, completed.Status)
}

func TestBookingReschedule(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)

	replacement, err := f.svc.Reschedule(context.Background(), "user-2", appt.ID, dto.RescheduleAppointmentRequest{
		Date:        "2026-09-07",
		StartMinute: 930,
		EndMinute:   960,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentRequested, replacement.Status)
	require.NotNil(t, replacement.RescheduledFromID)
	assert.Equal(t, appt.ID, *replacement.RescheduledFromID)

	old, _ := f.repo.FindByID(context.Background(), appt.ID)
	assert.Equal(t, models.AppointmentRescheduled, old.Status)
	assert.Contains(t, f.notifier.events, "appointment.rescheduled")
}

func TestBookingRescheduleRequestedInvalid(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)

	_, err = f.svc.Reschedule(context.Background(), "user-2", appt.ID, dto.RescheduleAppointmentRequest{
		Date:        "2026-09-07",
		StartMinute: 930,
		EndMinute:   960,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestBookingTerminalStatesRejectEverything(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})

	for _, status := range []models.AppointmentStatus{
		models.AppointmentDeclined,
		models.AppointmentCancelled,
		models.AppointmentCompleted,
		models.AppointmentRescheduled,
	} {
		appt := &models.AppointmentRequest{
			ID:          "appt-" + string(status),
			PersonID:    "person-1",
			RequesterID: "user-2",
			Date:        testMonday,
			StartMinute: 840,
			EndMinute:   870,
			Status:      status,
		}
		require.NoError(t, f.repo.Create(context.Background(), appt))

		_, err := f.svc.Confirm(context.Background(), "user-1", appt.ID)
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code, string(status))
		_, err = f.svc.Decline(context.Background(), "user-1", appt.ID)
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code, string(status))
		_, err = f.svc.Cancel(context.Background(), "user-2", appt.ID)
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code, string(status))
	}
}

func TestBookingArchiveOnlyTerminal(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	appt, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)

	err = f.svc.Archive(context.Background(), "user-2", appt.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Decline(context.Background(), "user-1", appt.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Archive(context.Background(), "user-2", appt.ID))

	_, err = f.svc.Get(context.Background(), "user-2", appt.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBookingListScopesToActor(t *testing.T) {
	f := newBookingFixture(BookingServiceConfig{})
	_, err := f.svc.Create(context.Background(), "user-2", createRequest())
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), "user-3", createRequest())
	require.NoError(t, err)

	mine, total, err := f.svc.List(context.Background(), "user-2", models.AppointmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, mine, 1)
	assert.Equal(t, "user-2", mine[0].RequesterID)

	_, _, err = f.svc.List(context.Background(), "user-2", models.AppointmentFilter{PersonID: "person-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
