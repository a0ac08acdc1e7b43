package service

import (
	"context"
	"database/sql"
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

// 2026-09-07 is a Monday.
var (
	testMonday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	testNow    = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
)

type personRepoStub struct {
	person   *models.Person
	windows  []models.AvailabilityWindow
	replaced []models.AvailabilityWindow
}

func (s *personRepoStub) FindByID(ctx context.Context, id string) (*models.Person, error) {
	if s.person == nil || s.person.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *s.person
	return &copied, nil
}

func (s *personRepoStub) FindByUserID(ctx context.Context, userID string) (*models.Person, error) {
	if s.person == nil || s.person.UserID != userID {
		return nil, sql.ErrNoRows
	}
	copied := *s.person
	return &copied, nil
}

func (s *personRepoStub) ListWindows(ctx context.Context, personID string) ([]models.AvailabilityWindow, error) {
	return s.windows, nil
}

func (s *personRepoStub) ReplaceWindows(ctx context.Context, personID string, windows []models.AvailabilityWindow) error {
	s.replaced = windows
	s.windows = windows
	return nil
}

func (s *personRepoStub) UpdatePolicy(ctx context.Context, person *models.Person) error {
	copied := *person
	s.person = &copied
	return nil
}

type appointmentReaderStub struct {
	confirmed []models.AppointmentRequest
}

func (s *appointmentReaderStub) ListConfirmedByPersonDate(ctx context.Context, personID string, date time.Time) ([]models.AppointmentRequest, error) {
	return s.confirmed, nil
}

func testPerson() *models.Person {
	return &models.Person{
		ID:                     "person-1",
		UserID:                 "user-1",
		Name:                   "Dr. Ada Moore",
		Role:                   models.PersonRoleFaculty,
		DefaultDurationMinutes: 30,
		BufferMinutes:          15,
		AdvanceNoticeHours:     0,
		AllowsVirtual:          true,
		AllowsInPerson:         true,
	}
}

func mondayAfternoon() []models.AvailabilityWindow {
	return []models.AvailabilityWindow{
		{PersonID: "person-1", DayOfWeek: 1, StartMinute: 14 * 60, EndMinute: 16 * 60},
	}
}

func newAvailabilityService(people *personRepoStub, appts *appointmentReaderStub, now time.Time) *AvailabilityService {
	return NewAvailabilityService(people, appts, nil, clock.NewFixed(now), nil, validator.New(), nil, AvailabilityServiceConfig{})
}

func TestGenerateSlotsTilesWindowWithBuffer(t *testing.T) {
	people := &personRepoStub{person: testPerson(), windows: mondayAfternoon()}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	slots, err := svc.GenerateSlots(context.Background(), "person-1", testMonday)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, dto.Slot{Date: "2026-09-07", StartMinute: 840, EndMinute: 870, Start: "14:00", End: "14:30"}, slots[0])
	assert.Equal(t, 885, slots[1].StartMinute)
	assert.Equal(t, 915, slots[1].EndMinute)
	assert.Equal(t, 930, slots[2].StartMinute)
	assert.Equal(t, 960, slots[2].EndMinute)
}

func TestGenerateSlotsPairwiseNonOverlapping(t *testing.T) {
	people := &personRepoStub{person: testPerson(), windows: []models.AvailabilityWindow{
		{PersonID: "person-1", DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60},
		{PersonID: "person-1", DayOfWeek: 1, StartMinute: 11 * 60, EndMinute: 13 * 60},
		{PersonID: "person-1", DayOfWeek: 1, StartMinute: 14 * 60, EndMinute: 16 * 60},
	}}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	slots, err := svc.GenerateSlots(context.Background(), "person-1", testMonday)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for i := 1; i < len(slots); i++ {
		assert.GreaterOrEqual(t, slots[i].StartMinute, slots[i-1].EndMinute)
	}
}

func TestGenerateSlotsPastDateIsEmptyNotError(t *testing.T) {
	people := &personRepoStub{person: testPerson(), windows: mondayAfternoon()}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	slots, err := svc.GenerateSlots(context.Background(), "person-1", time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateSlotsNoMatchingWindows(t *testing.T) {
	people := &personRepoStub{person: testPerson(), windows: mondayAfternoon()}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	// 2026-09-08 is a Tuesday; the only window is on Monday.
	slots, err := svc.GenerateSlots(context.Background(), "person-1", testMonday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateSlotsSkipsConfirmedOverlap(t *testing.T) {
	people := &personRepoStub{person: testPerson(), windows: mondayAfternoon()}
	appts := &appointmentReaderStub{confirmed: []models.AppointmentRequest{
		{PersonID: "person-1", StartMinute: 840, EndMinute: 870, Status: models.AppointmentConfirmed},
	}}
	svc := newAvailabilityService(people, appts, testNow)

	slots, err := svc.GenerateSlots(context.Background(), "person-1", testMonday)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 885, slots[0].StartMinute)
	assert.Equal(t, 930, slots[1].StartMinute)
}

func TestGenerateSlotsAdvanceNoticeCutoff(t *testing.T) {
	person := testPerson()
	person.AdvanceNoticeHours = 5
	people := &personRepoStub{person: person, windows: mondayAfternoon()}
	// Asking for today's slots at 10:00 with 5h notice leaves only the
	// 15:30 slot.
	now := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	svc := newAvailabilityService(people, &appointmentReaderStub{}, now)

	slots, err := svc.GenerateSlots(context.Background(), "person-1", testMonday)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 930, slots[0].StartMinute)
}

func TestGenerateSlotsIdempotent(t *testing.T) {
	people := &personRepoStub{person: testPerson(), windows: mondayAfternoon()}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	first, err := svc.GenerateSlots(context.Background(), "person-1", testMonday)
	require.NoError(t, err)
	second, err := svc.GenerateSlots(context.Background(), "person-1", testMonday)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateSlotsMaxPerDayCap(t *testing.T) {
	person := testPerson()
	person.MaxPerDay = 1
	people := &personRepoStub{person: person, windows: mondayAfternoon()}
	appts := &appointmentReaderStub{confirmed: []models.AppointmentRequest{
		{PersonID: "person-1", StartMinute: 600, EndMinute: 630, Status: models.AppointmentConfirmed},
	}}
	svc := newAvailabilityService(people, appts, testNow)

	slots, err := svc.GenerateSlots(context.Background(), "person-1", testMonday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateSlotsMaxPerDayRemainingCapacity(t *testing.T) {
	person := testPerson()
	person.MaxPerDay = 2
	people := &personRepoStub{person: person, windows: mondayAfternoon()}
	// One confirmed morning appointment leaves capacity for a single offered
	// slot, not the full tiling of the afternoon window.
	appts := &appointmentReaderStub{confirmed: []models.AppointmentRequest{
		{PersonID: "person-1", StartMinute: 600, EndMinute: 630, Status: models.AppointmentConfirmed},
	}}
	svc := newAvailabilityService(people, appts, testNow)

	slots, err := svc.GenerateSlots(context.Background(), "person-1", testMonday)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 840, slots[0].StartMinute)
}

func TestGenerateSlotsMaxPerDayNoConfirmed(t *testing.T) {
	person := testPerson()
	person.MaxPerDay = 2
	people := &personRepoStub{person: person, windows: mondayAfternoon()}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	slots, err := svc.GenerateSlots(context.Background(), "person-1", testMonday)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 840, slots[0].StartMinute)
	assert.Equal(t, 885, slots[1].StartMinute)
}

func TestGenerateSlotsWindowShorterThanDuration(t *testing.T) {
	people := &personRepoStub{person: testPerson(), windows: []models.AvailabilityWindow{
		{PersonID: "person-1", DayOfWeek: 1, StartMinute: 14 * 60, EndMinute: 14*60 + 20},
	}}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	slots, err := svc.GenerateSlots(context.Background(), "person-1", testMonday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateSlotsUnknownPerson(t *testing.T) {
	svc := newAvailabilityService(&personRepoStub{}, &appointmentReaderStub{}, testNow)

	_, err := svc.GenerateSlots(context.Background(), "nope", testMonday)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGenerateSlotsDateTooFarOut(t *testing.T) {
	people := &personRepoStub{person: testPerson(), windows: mondayAfternoon()}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	_, err := svc.GenerateSlots(context.Background(), "person-1", testNow.AddDate(1, 0, 0))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReplaceWindowsNormalizesAndStores(t *testing.T) {
	people := &personRepoStub{person: testPerson()}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	windows, err := svc.ReplaceWindows(context.Background(), "user-1", "person-1", dto.UpsertAvailabilityRequest{
		Windows: []dto.WindowPayload{
			{Day: "Monday", Start: "15:00", End: "17:00"},
			{Day: "Monday", Start: "14:00", End: "16:00"},
		},
	})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 14*60, windows[0].StartMinute)
	assert.Equal(t, 17*60, windows[0].EndMinute)
	assert.Equal(t, windows, people.replaced)
}

func TestReplaceWindowsForbiddenForNonOwner(t *testing.T) {
	people := &personRepoStub{person: testPerson()}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	_, err := svc.ReplaceWindows(context.Background(), "intruder", "person-1", dto.UpsertAvailabilityRequest{
		Windows: []dto.WindowPayload{{Day: "Monday", Start: "14:00", End: "16:00"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestImportWindowsParsesFreeText(t *testing.T) {
	people := &personRepoStub{person: testPerson()}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	windows, err := svc.ImportWindows(context.Background(), "user-1", "person-1", dto.ImportAvailabilityRequest{
		Entries: []string{"Monday 2-4 PM", "Wed 9:00-11:30"},
	})
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, 1, windows[0].DayOfWeek)
	assert.Equal(t, 14*60, windows[0].StartMinute)
	assert.Equal(t, 3, windows[1].DayOfWeek)
	assert.Equal(t, 11*60+30, windows[1].EndMinute)
}

func TestUpdatePolicyRequiresAFormat(t *testing.T) {
	people := &personRepoStub{person: testPerson()}
	svc := newAvailabilityService(people, &appointmentReaderStub{}, testNow)

	_, err := svc.UpdatePolicy(context.Background(), "user-1", "person-1", dto.UpdateBookingPolicyRequest{
		DefaultDurationMinutes: 30,
		AllowsVirtual:          false,
		AllowsInPerson:         false,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
