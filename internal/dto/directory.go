package dto

import "github.com/gw-connect/connect-api/internal/models"

// DirectoryQuery captures the directory search parameters bound from the
// query string.
type DirectoryQuery struct {
	Role       string `form:"role" validate:"omitempty,oneof=STUDENT FACULTY ALUMNI STAFF"`
	Department string `form:"department"`
	Search     string `form:"q"`
	Page       int    `form:"page" validate:"min=0"`
	PageSize   int    `form:"page_size" validate:"min=0,max=100"`
	SortBy     string `form:"sort_by" validate:"omitempty,oneof=full_name department created_at"`
	SortOrder  string `form:"sort_order" validate:"omitempty,oneof=asc desc"`
}

// UpdateProfileRequest modifies the caller's own directory profile.
type UpdateProfileRequest struct {
	FullName   string   `json:"full_name" validate:"required,max=120"`
	Department string   `json:"department" validate:"max=120"`
	Title      string   `json:"title" validate:"max=120"`
	Bio        string   `json:"bio" validate:"max=2000"`
	Interests  []string `json:"interests" validate:"max=20,dive,max=60"`
	AvatarURL  string   `json:"avatar_url" validate:"omitempty,url"`
}

// DirectoryEntry is the public projection of a profile.
type DirectoryEntry struct {
	ID         string          `json:"id"`
	FullName   string          `json:"full_name"`
	Role       models.UserRole `json:"role"`
	Department string          `json:"department"`
	Title      string          `json:"title"`
	Bio        string          `json:"bio"`
	Interests  []string        `json:"interests"`
	AvatarURL  string          `json:"avatar_url"`
	Bookable   bool            `json:"bookable"`
	PersonID   string          `json:"person_id,omitempty"`
}
