package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AppointmentStatus enumerates the lifecycle states of an appointment request.
type AppointmentStatus string

const (
	AppointmentRequested   AppointmentStatus = "requested"
	AppointmentConfirmed   AppointmentStatus = "confirmed"
	AppointmentDeclined    AppointmentStatus = "declined"
	AppointmentCancelled   AppointmentStatus = "cancelled"
	AppointmentCompleted   AppointmentStatus = "completed"
	AppointmentRescheduled AppointmentStatus = "rescheduled"
)

// appointmentTransitions is the full transition table. Anything absent here
// is rejected with INVALID_TRANSITION.
var appointmentTransitions = map[AppointmentStatus]map[AppointmentStatus]bool{
	AppointmentRequested: {
		AppointmentConfirmed: true,
		AppointmentDeclined:  true,
	},
	AppointmentConfirmed: {
		AppointmentCancelled:   true,
		AppointmentCompleted:   true,
		AppointmentRescheduled: true,
	},
}

// CanTransitionTo reports whether the transition is listed in the table.
func (s AppointmentStatus) CanTransitionTo(target AppointmentStatus) bool {
	allowed, ok := appointmentTransitions[s]
	if !ok {
		return false
	}
	return allowed[target]
}

// Terminal reports whether no further transitions exist for this status.
func (s AppointmentStatus) Terminal() bool {
	return len(appointmentTransitions[s]) == 0
}

// Valid reports whether the status is a known lifecycle state.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentRequested, AppointmentConfirmed, AppointmentDeclined,
		AppointmentCancelled, AppointmentCompleted, AppointmentRescheduled:
		return true
	}
	return false
}

// AppointmentFormat describes how the meeting takes place.
type AppointmentFormat string

const (
	FormatVirtual  AppointmentFormat = "virtual"
	FormatInPerson AppointmentFormat = "in_person"
)

// AppointmentRequest is the stateful record of one member's attempt to book a
// slot with another. Slot bounds are minutes since midnight on Date.
type AppointmentRequest struct {
	ID                string            `db:"id" json:"id"`
	PersonID          string            `db:"person_id" json:"person_id"`
	RequesterID       string            `db:"requester_id" json:"requester_id"`
	Date              time.Time         `db:"date" json:"date"`
	StartMinute       int               `db:"start_minute" json:"start_minute"`
	EndMinute         int               `db:"end_minute" json:"end_minute"`
	Format            AppointmentFormat `db:"format" json:"format"`
	Topic             string            `db:"topic" json:"topic"`
	Notes             string            `db:"notes" json:"notes"`
	Attachments       types.JSONText    `db:"attachments" json:"attachments"`
	Status            AppointmentStatus `db:"status" json:"status"`
	RescheduledFromID *string           `db:"rescheduled_from_id" json:"rescheduled_from_id,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether the appointment interval intersects [start, end).
func (a AppointmentRequest) Overlaps(startMinute, endMinute int) bool {
	return a.StartMinute < endMinute && startMinute < a.EndMinute
}

// AppointmentFilter captures list query criteria.
type AppointmentFilter struct {
	PersonID    string
	RequesterID string
	Status      *AppointmentStatus
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
}
