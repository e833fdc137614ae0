package audit

import "time"

// Action names a consent transition in the audit trail.
type Action string

const (
	ActionGranted Action = "granted"
	ActionRevoked Action = "revoked"
)

// IsValid checks if the action is one of the supported enum values.
func (a Action) IsValid() bool {
	return a == ActionGranted || a == ActionRevoked
}

// Entry is one append-only consent-log record. UserIDEnc is the
// reversible ciphertext of the raw platform user ID; it is the only
// place in the system where a raw identity is recoverable, and it exists
// so an operator can prove compliance or answer an erasure request.
type Entry struct {
	ID        int64
	UserIDEnc string
	Action    Action
	Timestamp time.Time
}
