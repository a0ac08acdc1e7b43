package service

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
)

// Free-text availability adapter. Entries such as "Monday 2-4 PM",
// "Tue 9:30-11 am" or "Wednesday 14:00-16:00" are parsed into structured
// windows before any slot arithmetic happens; everything downstream works on
// minutes since midnight only.

const minutesPerDay = 24 * 60

var dayTokens = map[string]int{
	"monday": 1, "mon": 1,
	"tuesday": 2, "tue": 2, "tues": 2,
	"wednesday": 3, "wed": 3,
	"thursday": 4, "thu": 4, "thur": 4, "thurs": 4,
	"friday": 5, "fri": 5,
	"saturday": 6, "sat": 6,
	"sunday": 7, "sun": 7,
}

var dayNames = [8]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// windowEntryPattern accepts "<day> <start><sep><end>" where each endpoint is
// h, h:mm or hh:mm with an optional am/pm marker and the separator is a
// hyphen, an en/em dash or the word "to".
var windowEntryPattern = regexp.MustCompile(`(?i)^\s*([a-z]+)\.?\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*(?:-|–|—|to)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*$`)

// ParseDayToken resolves a weekday name or abbreviation to 1 (Monday) through
// 7 (Sunday).
func ParseDayToken(token string) (int, bool) {
	day, ok := dayTokens[strings.ToLower(strings.TrimSpace(token))]
	return day, ok
}

// DayName returns the English weekday name for a 1..7 day index.
func DayName(day int) string {
	if day < 1 || day > 7 {
		return "unknown"
	}
	return dayNames[day]
}

// ParseTimeOfDay converts a wall-clock string ("14:00", "9:05") into minutes
// since midnight.
func ParseTimeOfDay(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid time %q, expected HH:MM", value))
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid hour in %q", value))
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid minute in %q", value))
	}
	return hour*60 + minute, nil
}

// FormatMinute renders minutes since midnight as "HH:MM".
func FormatMinute(minute int) string {
	if minute < 0 {
		minute = 0
	}
	minute %= minutesPerDay
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseWindowEntry parses one free-text declaration into a structured window.
// A meridiem given only on the end time carries over to the start ("2-4 PM"
// reads as 14:00-16:00); if that carry-over would invert the range, the start
// falls back to the morning ("11-2 PM" reads as 11:00-14:00).
func ParseWindowEntry(entry string) (models.AvailabilityWindow, error) {
	match := windowEntryPattern.FindStringSubmatch(entry)
	if match == nil {
		return models.AvailabilityWindow{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unrecognized availability entry %q", entry))
	}

	day, ok := ParseDayToken(match[1])
	if !ok {
		return models.AvailabilityWindow{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown weekday %q", match[1]))
	}

	startHour, startMin, err := parseClockFields(match[2], match[3], entry)
	if err != nil {
		return models.AvailabilityWindow{}, err
	}
	endHour, endMin, err := parseClockFields(match[5], match[6], entry)
	if err != nil {
		return models.AvailabilityWindow{}, err
	}

	startMer := strings.ToLower(match[4])
	endMer := strings.ToLower(match[7])
	inherited := false
	if startMer == "" && endMer != "" && startHour >= 1 && startHour <= 12 {
		startMer = endMer
		inherited = true
	}

	start, err := toMinutes(startHour, startMin, startMer, entry)
	if err != nil {
		return models.AvailabilityWindow{}, err
	}
	end, err := toMinutes(endHour, endMin, endMer, entry)
	if err != nil {
		return models.AvailabilityWindow{}, err
	}
	if start >= end && inherited && startMer == "pm" {
		start -= 12 * 60
	}
	if start >= end {
		return models.AvailabilityWindow{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("availability entry %q does not end after it starts", entry))
	}

	return models.AvailabilityWindow{DayOfWeek: day, StartMinute: start, EndMinute: end}, nil
}

// ParseWindowEntries parses a batch of free-text declarations, failing on the
// first invalid entry.
func ParseWindowEntries(entries []string) ([]models.AvailabilityWindow, error) {
	windows := make([]models.AvailabilityWindow, 0, len(entries))
	for i, entry := range entries {
		window, err := ParseWindowEntry(entry)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %d: %s", i+1, appErrors.FromError(err).Message))
		}
		windows = append(windows, window)
	}
	return windows, nil
}

func parseClockFields(hourField, minuteField, entry string) (int, int, error) {
	hour, err := strconv.Atoi(hourField)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid hour in availability entry %q", entry))
	}
	minute := 0
	if minuteField != "" {
		minute, err = strconv.Atoi(minuteField)
		if err != nil || minute < 0 || minute > 59 {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid minute in availability entry %q", entry))
		}
	}
	return hour, minute, nil
}

func toMinutes(hour, minute int, meridiem, entry string) (int, error) {
	switch meridiem {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("hour out of range for am in %q", entry))
		}
		return (hour%12)*60 + minute, nil
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("hour out of range for pm in %q", entry))
		}
		return (hour%12+12)*60 + minute, nil
	default:
		return hour*60 + minute, nil
	}
}

// normalizeWindows sorts windows by day and start and merges any that overlap
// or touch on the same day. The operation is idempotent: normalizing an
// already normalized set returns it unchanged.
func normalizeWindows(windows []models.AvailabilityWindow) []models.AvailabilityWindow {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]models.AvailabilityWindow, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DayOfWeek != sorted[j].DayOfWeek {
			return sorted[i].DayOfWeek < sorted[j].DayOfWeek
		}
		if sorted[i].StartMinute != sorted[j].StartMinute {
			return sorted[i].StartMinute < sorted[j].StartMinute
		}
		return sorted[i].EndMinute < sorted[j].EndMinute
	})

	merged := make([]models.AvailabilityWindow, 0, len(sorted))
	for _, w := range sorted {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.DayOfWeek == w.DayOfWeek && w.StartMinute <= last.EndMinute {
				if w.EndMinute > last.EndMinute {
					last.EndMinute = w.EndMinute
				}
				continue
			}
		}
		merged = append(merged, w)
	}
	return merged
}

// validateWindows rejects windows with out-of-range days or inverted bounds.
func validateWindows(windows []models.AvailabilityWindow) error {
	for _, w := range windows {
		if w.DayOfWeek < 1 || w.DayOfWeek > 7 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("day_of_week %d out of range", w.DayOfWeek))
		}
		if w.StartMinute < 0 || w.EndMinute > minutesPerDay || w.StartMinute >= w.EndMinute {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window %s %s-%s is invalid", DayName(w.DayOfWeek), FormatMinute(w.StartMinute), FormatMinute(w.EndMinute)))
		}
	}
	return nil
}
