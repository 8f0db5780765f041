package domain

import "time"

// User is a resource owner. The core reads credentials, records last login
// and upgrades outdated password hashes; everything else is provisioning.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Enabled      bool
	Verified     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
}
