// Package privacy provides the one-way transformations that keep
// personally identifiable information out of storage.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
)

// SubjectDigest returns the deterministic SHA-256 hex digest of a platform
// user ID. It is intentionally unsalted: the same user must map to the
// same digest across sessions so consent lookups and dedup work without
// ever persisting the raw ID.
func SubjectDigest(rawUserID string) string {
	sum := sha256.Sum256([]byte(rawUserID))
	return hex.EncodeToString(sum[:])
}

// RowDigest returns the dedup key for one captured message: a SHA-256 hex
// digest over the plaintext content and the subject digest. Re-ingesting
// the same (user, content) pair always produces the same row digest.
func RowDigest(subjectDigest, plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext + subjectDigest))
	return hex.EncodeToString(sum[:])
}

// Abbrev shortens a digest for log fields. Full digests are join keys and
// never belong in logs.
func Abbrev(digest string) string {
	if len(digest) <= 6 {
		return digest
	}
	return digest[:6]
}
