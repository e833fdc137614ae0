package models

import "time"

// Message is one inbound chat message before anonymization. UserID and
// Text are the only fields that ever carry personal data and they stay
// inside the ingestion pipeline; nothing downstream of it sees them.
type Message struct {
	UserID    string
	Rank      string
	Text      string
	Timestamp time.Time
}

// Record is one captured row as persisted. The subject is reduced to a
// one-way digest, the content is ciphertext, and RowHash deduplicates
// re-deliveries of the same (subject, plaintext) pair.
type Record struct {
	ID         int64
	UserIDHash string
	MessageEnc string
	RowHash    string
}

// Outcome classifies what happened to one ingested message.
type Outcome string

const (
	OutcomeStored    Outcome = "stored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDenied    Outcome = "denied"
)
