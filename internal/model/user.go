package model

import "time"

// User represents a platform account as stored in the `users`
// collection. Documents are keyed by the identity id issued at
// registration, so ID always equals the JWT subject.
//
// Fields:
//
//	ID                  – identity id (document key).
//	Email               – unique, lower-cased email address.
//	PasswordHash        – bcrypt hashed password.
//	Role                – stored role; authoritative over the claim.
//	ProfileComplete     – whether onboarding finished.
//	ExperienceYears     – declared professional experience, used by scoring.
//	TeamSize            – declared team size, used by scoring.
//	PreferredCategories – investor category filter for idea fan-out; empty means all.
//	DeviceToken         – push token of the user's latest device (optional).
//	RoleHistory         – append-only list of role changes.
//	CreatedAt           – timestamp of creation.
//	UpdatedAt           – timestamp of last update.
type User struct {
	ID                  string             `json:"id"`
	Email               string             `json:"email"`
	PasswordHash        string             `json:"passwordHash,omitempty"`
	Role                string             `json:"role"`
	ProfileComplete     bool               `json:"profileComplete"`
	ExperienceYears     float64            `json:"experienceYears"`
	TeamSize            int                `json:"teamSize"`
	PreferredCategories []string           `json:"preferredCategories,omitempty"`
	DeviceToken         string             `json:"deviceToken,omitempty"`
	RoleHistory         []RoleHistoryEntry `json:"roleHistory,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

// RoleHistoryEntry records a single role change on a user document.
type RoleHistoryEntry struct {
	PreviousRole string    `json:"previousRole"`
	NewRole      string    `json:"newRole"`
	ChangedBy    string    `json:"changedBy"`
	ChangedAt    time.Time `json:"changedAt"`
}

// RefreshToken models an entry in the `refreshTokens` collection. The
// plain token is never stored; the document key is its SHA-256 hash.
//
// Fields:
//
//	UserID    – owner of the token.
//	ExpiresAt – expiration timestamp of the token.
//	Revoked   – whether the token was revoked.
//	CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"createdAt"`
}
