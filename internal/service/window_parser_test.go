package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
)

func TestParseWindowEntry(t *testing.T) {
	cases := []struct {
		entry string
		day   int
		start int
		end   int
	}{
		{"Monday 2-4 PM", 1, 14 * 60, 16 * 60},
		{"monday 2 pm - 4 pm", 1, 14 * 60, 16 * 60},
		{"Mon 2:30-4 PM", 1, 14*60 + 30, 16 * 60},
		{"Tue 9-11 am", 2, 9 * 60, 11 * 60},
		{"Wednesday 14:00-16:00", 3, 14 * 60, 16 * 60},
		{"Thu 9:15 to 10:45", 4, 9*60 + 15, 10*60 + 45},
		{"Friday 11-2 PM", 5, 11 * 60, 14 * 60},
		{"Sat 12-1 PM", 6, 12 * 60, 13 * 60},
		{"sunday 8-9", 7, 8 * 60, 9 * 60},
	}

	for _, tc := range cases {
		window, err := ParseWindowEntry(tc.entry)
		require.NoError(t, err, tc.entry)
		assert.Equal(t, tc.day, window.DayOfWeek, tc.entry)
		assert.Equal(t, tc.start, window.StartMinute, tc.entry)
		assert.Equal(t, tc.end, window.EndMinute, tc.entry)
	}
}

func TestParseWindowEntryRejectsMalformed(t *testing.T) {
	for _, entry := range []string{
		"",
		"Monday",
		"Someday 2-4 PM",
		"Monday 4-2 PM",
		"Monday 14:00-14:00",
		"Monday 25:00-26:00",
		"Monday 2-4 XM",
	} {
		_, err := ParseWindowEntry(entry)
		require.Error(t, err, entry)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code, entry)
	}
}

func TestParseWindowEntriesReportsEntryIndex(t *testing.T) {
	_, err := ParseWindowEntries([]string{"Monday 2-4 PM", "garbage"})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "entry 2")
}

func TestParseTimeOfDay(t *testing.T) {
	minute, err := ParseTimeOfDay("14:05")
	require.NoError(t, err)
	assert.Equal(t, 14*60+5, minute)

	_, err = ParseTimeOfDay("14")
	require.Error(t, err)
	_, err = ParseTimeOfDay("24:00")
	require.Error(t, err)
}

func TestFormatMinute(t *testing.T) {
	assert.Equal(t, "00:00", FormatMinute(0))
	assert.Equal(t, "09:05", FormatMinute(9*60+5))
	assert.Equal(t, "16:00", FormatMinute(16*60))
}

func TestNormalizeWindowsMergesOverlaps(t *testing.T) {
	windows := []models.AvailabilityWindow{
		{DayOfWeek: 1, StartMinute: 15 * 60, EndMinute: 17 * 60},
		{DayOfWeek: 1, StartMinute: 14 * 60, EndMinute: 16 * 60},
		{DayOfWeek: 2, StartMinute: 9 * 60, EndMinute: 10 * 60},
	}

	merged := normalizeWindows(windows)
	require.Len(t, merged, 2)
	assert.Equal(t, 14*60, merged[0].StartMinute)
	assert.Equal(t, 17*60, merged[0].EndMinute)
	assert.Equal(t, 2, merged[1].DayOfWeek)
}

func TestNormalizeWindowsIdempotent(t *testing.T) {
	windows := []models.AvailabilityWindow{
		{DayOfWeek: 1, StartMinute: 14 * 60, EndMinute: 16 * 60},
		{DayOfWeek: 1, StartMinute: 15 * 60, EndMinute: 17 * 60},
	}
	once := normalizeWindows(windows)
	twice := normalizeWindows(once)
	assert.Equal(t, once, twice)
}

func TestValidateWindowsRejectsInverted(t *testing.T) {
	err := validateWindows([]models.AvailabilityWindow{{DayOfWeek: 1, StartMinute: 600, EndMinute: 600}})
	require.Error(t, err)

	err = validateWindows([]models.AvailabilityWindow{{DayOfWeek: 8, StartMinute: 0, EndMinute: 60}})
	require.Error(t, err)

	err = validateWindows([]models.AvailabilityWindow{{DayOfWeek: 7, StartMinute: 0, EndMinute: 24 * 60}})
	require.NoError(t, err)
}
