package domain

import "time"

const (
	// MaxOTPAttempts is the number of verification calls a single issued code
	// can absorb. The next call deletes the record without comparing.
	MaxOTPAttempts = 5

	DefaultOTPLength = 6
)

// OTPRecord is the outstanding verification challenge for one phone number.
// The code itself is never stored, only its bcrypt hash.
type OTPRecord struct {
	Phone     string
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
}

// Expired reports whether the record is void at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
