package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppointmentTransitionClosure(t *testing.T) {
	all := []AppointmentStatus{
		AppointmentRequested,
		AppointmentConfirmed,
		AppointmentDeclined,
		AppointmentCancelled,
		AppointmentCompleted,
		AppointmentRescheduled,
	}

	allowed := map[AppointmentStatus][]AppointmentStatus{
		AppointmentRequested: {AppointmentConfirmed, AppointmentDeclined},
		AppointmentConfirmed: {AppointmentCancelled, AppointmentCompleted, AppointmentRescheduled},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestAppointmentTerminalStates(t *testing.T) {
	assert.False(t, AppointmentRequested.Terminal())
	assert.False(t, AppointmentConfirmed.Terminal())
	assert.True(t, AppointmentDeclined.Terminal())
	assert.True(t, AppointmentCancelled.Terminal())
	assert.True(t, AppointmentCompleted.Terminal())
	assert.True(t, AppointmentRescheduled.Terminal())
}

func TestAppointmentOverlaps(t *testing.T) {
	appt := AppointmentRequest{StartMinute: 840, EndMinute: 870}

	assert.True(t, appt.Overlaps(840, 870))
	assert.True(t, appt.Overlaps(850, 860))
	assert.True(t, appt.Overlaps(860, 900))
	assert.False(t, appt.Overlaps(870, 900))
	assert.False(t, appt.Overlaps(800, 840))
}
