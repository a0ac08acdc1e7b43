package models

// Identity is the authenticated actor extracted from a bearer token. Token
// issuance lives outside the portal; only validation happens here.
type Identity struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}
