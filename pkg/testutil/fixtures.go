package testutil

import (
	"fmt"
	"time"

	consentmodels "chatvault/internal/consent/models"
	ingestmodels "chatvault/internal/ingest/models"
	"chatvault/internal/platform/privacy"
)

// MessageBuilder provides a fluent interface for building test messages.
type MessageBuilder struct {
	msg ingestmodels.Message
}

// NewMessageBuilder creates a new MessageBuilder with sensible defaults.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		msg: ingestmodels.Message{
			UserID:    "test-user",
			Rank:      consentmodels.DefaultRank,
			Text:      "test message",
			Timestamp: time.Now().UTC(),
		},
	}
}

func (b *MessageBuilder) WithUserID(userID string) *MessageBuilder {
	b.msg.UserID = userID
	return b
}

func (b *MessageBuilder) WithRank(rank string) *MessageBuilder {
	b.msg.Rank = rank
	return b
}

func (b *MessageBuilder) WithText(text string) *MessageBuilder {
	b.msg.Text = text
	return b
}

func (b *MessageBuilder) WithTimestamp(t time.Time) *MessageBuilder {
	b.msg.Timestamp = t
	return b
}

func (b *MessageBuilder) Build() ingestmodels.Message {
	return b.msg
}

// Quick helper functions for simple test cases

// NewTestMessage creates a test message from one user.
func NewTestMessage(userID, text string) ingestmodels.Message {
	return NewMessageBuilder().WithUserID(userID).WithText(text).Build()
}

// NewTestMessages creates n distinct messages from one user.
func NewTestMessages(userID string, n int) []ingestmodels.Message {
	msgs := make([]ingestmodels.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, NewTestMessage(userID, fmt.Sprintf("message %d", i)))
	}
	return msgs
}

// NewTrackedUser creates a tracked subject keyed by the digest of userID.
func NewTrackedUser(userID, rank string) *consentmodels.TrackedUser {
	return &consentmodels.TrackedUser{
		UserIDHash: privacy.SubjectDigest(userID),
		Rank:       rank,
	}
}
