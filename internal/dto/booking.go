package dto

import "github.com/gw-connect/connect-api/internal/models"

// Slot is a derived, never-persisted bookable interval on a concrete date.
// Minutes are since midnight in the person's local civil time; the formatted
// fields exist for display only.
type Slot struct {
	Date        string `json:"date"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

// Contains reports whether [startMinute, endMinute) lies inside the slot.
func (s Slot) Contains(startMinute, endMinute int) bool {
	return startMinute >= s.StartMinute && endMinute <= s.EndMinute && startMinute < endMinute
}

// WindowPayload is one availability window in upsert requests, expressed in
// wall-clock form ("14:00") rather than raw minutes.
type WindowPayload struct {
	Day   string `json:"day" validate:"required"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// UpsertAvailabilityRequest replaces a person's weekly availability.
type UpsertAvailabilityRequest struct {
	Windows []WindowPayload `json:"windows" validate:"required,dive"`
}

// ImportAvailabilityRequest carries free-text window declarations such as
// "Monday 2-4 PM" for the parser adapter.
type ImportAvailabilityRequest struct {
	Entries []string `json:"entries" validate:"required,min=1"`
}

// UpdateBookingPolicyRequest adjusts slot derivation parameters for a person.
type UpdateBookingPolicyRequest struct {
	DefaultDurationMinutes int     `json:"default_duration_minutes" validate:"required,min=5,max=480"`
	BufferMinutes          int     `json:"buffer_minutes" validate:"min=0,max=240"`
	AdvanceNoticeHours     int     `json:"advance_notice_hours" validate:"min=0,max=720"`
	MaxPerDay              int     `json:"max_per_day" validate:"min=0,max=48"`
	AllowsVirtual          bool    `json:"allows_virtual"`
	AllowsInPerson         bool    `json:"allows_in_person"`
	Location               *string `json:"location,omitempty"`
	VirtualLink            *string `json:"virtual_link,omitempty"`
	AutoConfirm            bool    `json:"auto_confirm"`
}

// CreateAppointmentRequest submits a booking for a previously generated slot.
type CreateAppointmentRequest struct {
	PersonID    string                   `json:"person_id" validate:"required"`
	Date        string                   `json:"date" validate:"required"`
	StartMinute int                      `json:"start_minute" validate:"min=0,max=1439"`
	EndMinute   int                      `json:"end_minute" validate:"required,min=1,max=1440"`
	Format      models.AppointmentFormat `json:"format" validate:"required,oneof=virtual in_person"`
	Topic       string                   `json:"topic" validate:"required,max=200"`
	Notes       string                   `json:"notes" validate:"max=2000"`
	Attachments []string                 `json:"attachments,omitempty"`
}

// RescheduleAppointmentRequest moves a confirmed appointment to a new slot.
// The old request terminates as rescheduled and a fresh requested record is
// created referencing it.
type RescheduleAppointmentRequest struct {
	Date        string `json:"date" validate:"required"`
	StartMinute int    `json:"start_minute" validate:"min=0,max=1439"`
	EndMinute   int    `json:"end_minute" validate:"required,min=1,max=1440"`
}
