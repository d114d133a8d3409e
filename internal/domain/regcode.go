package domain

import "time"

// RegistrationCode gates account creation. A code is single-use and may
// carry an expiry.
type RegistrationCode struct {
	ID             string
	Code           string
	Used           bool
	UsedBy         *string
	UsedByUsername string
	UsedAt         *time.Time
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

// Usable reports whether the code can still redeem a registration.
func (c RegistrationCode) Usable(now time.Time) bool {
	if c.Used {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}
