package models

import "time"

// PersonRole restricts who may publish bookable availability.
type PersonRole string

const (
	PersonRoleFaculty PersonRole = "FACULTY"
	PersonRoleAlumni  PersonRole = "ALUMNI"
)

// Person is a community member offering appointments, together with the
// booking policy applied when slots are derived from their availability.
type Person struct {
	ID                     string     `db:"id" json:"id"`
	UserID                 string     `db:"user_id" json:"user_id"`
	Name                   string     `db:"name" json:"name"`
	Role                   PersonRole `db:"role" json:"role"`
	DefaultDurationMinutes int        `db:"default_duration_minutes" json:"default_duration_minutes"`
	BufferMinutes          int        `db:"buffer_minutes" json:"buffer_minutes"`
	AdvanceNoticeHours     int        `db:"advance_notice_hours" json:"advance_notice_hours"`
	MaxPerDay              int        `db:"max_per_day" json:"max_per_day"`
	AllowsVirtual          bool       `db:"allows_virtual" json:"allows_virtual"`
	AllowsInPerson         bool       `db:"allows_in_person" json:"allows_in_person"`
	Location               *string    `db:"location" json:"location,omitempty"`
	VirtualLink            *string    `db:"virtual_link" json:"virtual_link,omitempty"`
	AutoConfirm            bool       `db:"auto_confirm" json:"auto_confirm"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// AvailabilityWindow is a recurring weekly interval during which a person is
// bookable. Times are minutes since midnight in the person's local civil
// time; DayOfWeek runs 1 (Monday) through 7 (Sunday).
type AvailabilityWindow struct {
	ID          string    `db:"id" json:"id"`
	PersonID    string    `db:"person_id" json:"person_id"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	StartMinute int       `db:"start_minute" json:"start_minute"`
	EndMinute   int       `db:"end_minute" json:"end_minute"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
