package staff

import "time"

// Status describes the lifecycle state of a staff account.
type Status string

const (
	// StatusPendingVerification marks an account that logged in via Discord
	// but has not yet proven control of a Roblox profile.
	StatusPendingVerification Status = "pending_verification"
	// StatusActive marks an account that passed verification at least once.
	StatusActive Status = "active"
	// StatusInactive marks an account disabled by an administrator.
	StatusInactive Status = "inactive"
)

// User represents a staff identity record. Rank is sourced from the Roblox
// group and is nil until the account is verified; nil rank grants no default
// permissions.
type User struct {
	ID          int64
	DiscordID   string
	DiscordName string
	RobloxID    *int64
	RobloxName  *string
	Rank        *int
	RankName    *string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}

// Linked reports whether a Roblox identity has been attached.
func (u *User) Linked() bool {
	return u != nil && u.RobloxID != nil
}
