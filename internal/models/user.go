package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// UserRole represents the community roles surfaced in the directory.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleFaculty UserRole = "FACULTY"
	RoleAlumni  UserRole = "ALUMNI"
	RoleStaff   UserRole = "STAFF"
)

// User represents a portal member stored in the users table.
type User struct {
	ID         string         `db:"id" json:"id"`
	Email      string         `db:"email" json:"email"`
	FullName   string         `db:"full_name" json:"full_name"`
	Role       UserRole       `db:"role" json:"role"`
	Department string         `db:"department" json:"department"`
	Title      string         `db:"title" json:"title"`
	Bio        string         `db:"bio" json:"bio"`
	Interests  types.JSONText `db:"interests" json:"interests"`
	AvatarURL  string         `db:"avatar_url" json:"avatar_url"`
	Active     bool           `db:"active" json:"active"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for directory search.
type UserFilter struct {
	Role       *UserRole
	Department string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
