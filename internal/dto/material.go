package dto

import "time"

// UpdateMaterialRequest edits metadata of an uploaded material, owner only.
type UpdateMaterialRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Course      string `json:"course" validate:"max=60"`
}

// DownloadLink is a time-limited signed reference to a stored file.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportResult describes a rendered agenda export available for download.
type ExportResult struct {
	FileName  string    `json:"file_name"`
	Format    string    `json:"format"`
	SizeBytes int       `json:"size_bytes"`
	Download  string    `json:"download"`
	ExpiresAt time.Time `json:"expires_at"`
}
