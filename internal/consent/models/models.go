package models

// Status represents the derived consent lifecycle state for one subject.
// It is a view over the tracked-user table and the audit trail, not a
// stored column: a subject with a tracked row is GRANTED, a subject whose
// last audit action is a revocation is REVOKED, anyone else is ABSENT.
type Status string

const (
	StatusAbsent  Status = "absent"
	StatusGranted Status = "granted"
	StatusRevoked Status = "revoked"
)

// DefaultRank is stored until a real rank is known for a subject.
const DefaultRank = "undefined"

// TrackedUser is one consenting subject. UserIDHash is the deterministic
// one-way digest of the platform user ID and the only identity ever
// stored here; Rank is the self-reported tier captured at the most
// recent grant.
type TrackedUser struct {
	UserIDHash string
	Rank       string
}
