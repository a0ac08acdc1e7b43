package models

import "time"

// StudyGroup is a member-run group around a course or topic.
type StudyGroup struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Course      string    `db:"course" json:"course"`
	Description string    `db:"description" json:"description"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	Capacity    int       `db:"capacity" json:"capacity"`
	MeetingInfo string    `db:"meeting_info" json:"meeting_info"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StudyGroupMember links a user to a group.
type StudyGroupMember struct {
	GroupID  string    `db:"group_id" json:"group_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// StudyGroupFilter captures list query criteria.
type StudyGroupFilter struct {
	Course   string
	Search   string
	OwnerID  string
	Page     int
	PageSize int
}
