package service

import (
	"context"
	"database/sql"
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

type availabilityPersonRepository interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
	FindByUserID(ctx context.Context, userID string) (*models.Person, error)
	ListWindows(ctx context.Context, personID string) ([]models.AvailabilityWindow, error)
	ReplaceWindows(ctx context.Context, personID string, windows []models.AvailabilityWindow) error
	UpdatePolicy(ctx context.Context, person *models.Person) error
}

type availabilityAppointmentReader interface {
	ListConfirmedByPersonDate(ctx context.Context, personID string, date time.Time) ([]models.AppointmentRequest, error)
}

type slotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type availabilityMetrics interface {
	ObserveSlotGeneration(slots int)
}

// AvailabilityServiceConfig tunes slot derivation behaviour.
type AvailabilityServiceConfig struct {
	SlotCacheTTL       time.Duration
	MaxGenerateDaysOut int
}

// AvailabilityService manages recurring availability windows and derives the
// concrete bookable slots for a person on a target date. Slots are never
// persisted; they are recomputed (or served from cache) on demand.
type AvailabilityService struct {
	people       availabilityPersonRepository
	appointments availabilityAppointmentReader
	cache        slotCache
	clk          clock.Clock
	metrics      availabilityMetrics
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          AvailabilityServiceConfig
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(people availabilityPersonRepository, appointments availabilityAppointmentReader, cache slotCache, clk clock.Clock, metrics availabilityMetrics, validate *validator.Validate, logger *zap.Logger, cfg AvailabilityServiceConfig) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	if cfg.SlotCacheTTL <= 0 {
		cfg.SlotCacheTTL = 2 * time.Minute
	}
	if cfg.MaxGenerateDaysOut <= 0 {
		cfg.MaxGenerateDaysOut = 90
	}
	return &AvailabilityService{
		people:       people,
		appointments: appointments,
		cache:        cache,
		clk:          clk,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
	}
}

// GetPerson loads a bookable person by id.
func (s *AvailabilityService) GetPerson(ctx context.Context, personID string) (*models.Person, error) {
	return s.requirePerson(ctx, personID)
}

// GetPersonByUser resolves the person record owned by a portal user, used for
// "my availability" routes.
func (s *AvailabilityService) GetPersonByUser(ctx context.Context, userID string) (*models.Person, error) {
	person, err := s.people.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no bookable profile for this user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return person, nil
}

// ListWindows returns a person's weekly availability windows.
func (s *AvailabilityService) ListWindows(ctx context.Context, personID string) ([]models.AvailabilityWindow, error) {
	if _, err := s.requirePerson(ctx, personID); err != nil {
		return nil, err
	}
	windows, err := s.people.ListWindows(ctx, personID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability windows")
	}
	return windows, nil
}

// ReplaceWindows swaps a person's full weekly availability with the provided
// structured windows. Overlapping windows on the same day are merged before
// storage so the stored set is always normalized.
func (s *AvailabilityService) ReplaceWindows(ctx context.Context, actorUserID, personID string, req dto.UpsertAvailabilityRequest) ([]models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	person, err := s.requireOwnedPerson(ctx, actorUserID, personID)
	if err != nil {
		return nil, err
	}

	windows := make([]models.AvailabilityWindow, 0, len(req.Windows))
	for i, payload := range req.Windows {
		day, ok := ParseDayToken(payload.Day)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window %d: unknown weekday %q", i+1, payload.Day))
		}
		start, err := ParseTimeOfDay(payload.Start)
		if err != nil {
			return nil, err
		}
		end, err := ParseTimeOfDay(payload.End)
		if err != nil {
			return nil, err
		}
		windows = append(windows, models.AvailabilityWindow{DayOfWeek: day, StartMinute: start, EndMinute: end})
	}

	return s.storeWindows(ctx, person, windows)
}

// ImportWindows parses free-text declarations such as "Monday 2-4 PM" and
// replaces the person's availability with the parsed result.
func (s *AvailabilityService) ImportWindows(ctx context.Context, actorUserID, personID string, req dto.ImportAvailabilityRequest) ([]models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	person, err := s.requireOwnedPerson(ctx, actorUserID, personID)
	if err != nil {
		return nil, err
	}

	windows, err := ParseWindowEntries(req.Entries)
	if err != nil {
		return nil, err
	}
	return s.storeWindows(ctx, person, windows)
}

// UpdatePolicy adjusts the slot derivation parameters for a person.
func (s *AvailabilityService) UpdatePolicy(ctx context.Context, actorUserID, personID string, req dto.UpdateBookingPolicyRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking policy payload")
	}
	person, err := s.requireOwnedPerson(ctx, actorUserID, personID)
	if err != nil {
		return nil, err
	}

	person.DefaultDurationMinutes = req.DefaultDurationMinutes
	person.BufferMinutes = req.BufferMinutes
	person.AdvanceNoticeHours = req.AdvanceNoticeHours
	person.MaxPerDay = req.MaxPerDay
	person.AllowsVirtual = req.AllowsVirtual
	person.AllowsInPerson = req.AllowsInPerson
	person.Location = req.Location
	person.VirtualLink = req.VirtualLink
	person.AutoConfirm = req.AutoConfirm

	if !person.AllowsVirtual && !person.AllowsInPerson {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one meeting format must be allowed")
	}

	if err := s.people.UpdatePolicy(ctx, person); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking policy")
	}
	s.invalidateSlots(ctx, personID)
	return person, nil
}

// GenerateSlots derives the ordered, non-overlapping bookable slots for a
// person on the target date. A past date yields an empty sequence, not an
// error. Only confirmed appointments block slots; pending requests do not.
func (s *AvailabilityService) GenerateSlots(ctx context.Context, personID string, date time.Time) ([]dto.Slot, error) {
	person, err := s.requirePerson(ctx, personID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, date.Location())
	if dayStart.Before(todayStart) {
		return []dto.Slot{}, nil
	}
	if dayStart.After(todayStart.AddDate(0, 0, s.cfg.MaxGenerateDaysOut)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date is more than %d days out", s.cfg.MaxGenerateDaysOut))
	}

	cacheKey := slotCacheKey(personID, dayStart)
	if s.cache != nil {
		var cached []dto.Slot
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("slot cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	windows, err := s.people.ListWindows(ctx, personID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability windows")
	}

	confirmed, err := s.appointments.ListConfirmedByPersonDate(ctx, personID, dayStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list confirmed appointments")
	}

	slots := deriveSlots(person, windows, confirmed, dayStart, now)

	if s.metrics != nil {
		s.metrics.ObserveSlotGeneration(len(slots))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, slots, s.cfg.SlotCacheTTL); err != nil {
			s.logger.Warn("slot cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return slots, nil
}

// deriveSlots is the pure tiling core: weekday filter, merge-normalization,
// tiling by duration with buffer stride, confirmed-overlap removal, the
// advance-notice cutoff and the per-day cap.
func deriveSlots(person *models.Person, windows []models.AvailabilityWindow, confirmed []models.AppointmentRequest, dayStart, now time.Time) []dto.Slot {
	slots := []dto.Slot{}

	duration := person.DefaultDurationMinutes
	if duration <= 0 {
		return slots
	}

	// Confirmed appointments count against the per-day cap, so only the
	// remaining capacity is offered.
	remaining := -1
	if person.MaxPerDay > 0 {
		remaining = person.MaxPerDay - len(confirmed)
		if remaining <= 0 {
			return slots
		}
	}

	targetDay := weekdayIndex(dayStart)
	matching := make([]models.AvailabilityWindow, 0, len(windows))
	for _, w := range windows {
		if w.DayOfWeek == targetDay {
			matching = append(matching, w)
		}
	}
	matching = normalizeWindows(matching)

	stride := duration + person.BufferMinutes
	cutoff := now.Add(time.Duration(person.AdvanceNoticeHours) * time.Hour)
	dateLabel := dayStart.Format("2006-01-02")

	for _, w := range matching {
		for start := w.StartMinute; start+duration <= w.EndMinute; start += stride {
			end := start + duration
			if overlapsConfirmed(confirmed, start, end) {
				continue
			}
			if dayStart.Add(time.Duration(start) * time.Minute).Before(cutoff) {
				continue
			}
			slots = append(slots, dto.Slot{
				Date:        dateLabel,
				StartMinute: start,
				EndMinute:   end,
				Start:       FormatMinute(start),
				End:         FormatMinute(end),
			})
			if remaining > 0 && len(slots) == remaining {
				return slots
			}
		}
	}
	return slots
}

func overlapsConfirmed(confirmed []models.AppointmentRequest, start, end int) bool {
	for _, appt := range confirmed {
		if appt.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// weekdayIndex maps time.Weekday (Sunday=0) to the 1 (Monday) .. 7 (Sunday)
// convention used by AvailabilityWindow.
func weekdayIndex(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func slotCacheKey(personID string, date time.Time) string {
	return fmt.Sprintf("slots:%s:%s", personID, date.Format("2006-01-02"))
}

func (s *AvailabilityService) storeWindows(ctx context.Context, person *models.Person, windows []models.AvailabilityWindow) ([]models.AvailabilityWindow, error) {
	if err := validateWindows(windows); err != nil {
		return nil, err
	}
	normalized := normalizeWindows(windows)
	if err := s.people.ReplaceWindows(ctx, person.ID, normalized); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace availability windows")
	}
	s.invalidateSlots(ctx, person.ID)
	return normalized, nil
}

func (s *AvailabilityService) requirePerson(ctx context.Context, personID string) (*models.Person, error) {
	person, err := s.people.FindByID(ctx, personID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return person, nil
}

func (s *AvailabilityService) requireOwnedPerson(ctx context.Context, actorUserID, personID string) (*models.Person, error) {
	person, err := s.requirePerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	if person.UserID != actorUserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner may manage availability")
	}
	return person, nil
}

func (s *AvailabilityService) invalidateSlots(ctx context.Context, personID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("slots:%s:*", personID)); err != nil {
		s.logger.Warn("slot cache invalidation failed", zap.String("person_id", personID), zap.Error(err))
	}
}

// InvalidateSlotsFor clears cached slots for a person, used by the booking
// workflow after a transition changes what is bookable.
func (s *AvailabilityService) InvalidateSlotsFor(ctx context.Context, personID string) {
	s.invalidateSlots(ctx, personID)
}
