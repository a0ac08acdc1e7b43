package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Notification is an in-app inbox entry produced by booking transitions and
// other portal events. Delivery beyond the inbox is out of scope.
type Notification struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	Event     string         `db:"event" json:"event"`
	Payload   types.JSONText `db:"payload" json:"payload"`
	Read      bool           `db:"read" json:"read"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
