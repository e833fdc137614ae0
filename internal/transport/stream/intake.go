// Package stream adapts chat-platform message events from Kafka into the
// ingestion pipeline.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"chatvault/internal/ingest/models"
	dErrors "chatvault/pkg/domain-errors"
)

// Event is the wire shape published by the chat-platform collaborator.
type Event struct {
	UserID    string    `json:"user_id"`
	Rank      string    `json:"rank"`
	Text      string    `json:"text"`
	ChannelID string    `json:"channel_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Pipeline is the ingestion entry point events are fed into.
type Pipeline interface {
	Ingest(ctx context.Context, msg models.Message) (models.Outcome, error)
}

// Intake turns Kafka records into pipeline calls. Only events from the
// configured channel are ingested; everything else is dropped.
type Intake struct {
	pipeline  Pipeline
	channelID string
	logger    *slog.Logger
}

func NewIntake(pipeline Pipeline, channelID string, logger *slog.Logger) *Intake {
	return &Intake{pipeline: pipeline, channelID: channelID, logger: logger}
}

// Handle processes one record. It returns an error only for transient
// failures worth surfacing to the consumer loop; malformed events,
// out-of-scope channels, and consent denials are final and silent, so the
// consumer never stalls on them.
func (i *Intake) Handle(ctx context.Context, _, value []byte) error {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		i.logger.Warn("malformed message event dropped", "error", err)
		return nil
	}
	if i.channelID != "" && event.ChannelID != i.channelID {
		return nil
	}

	// Denied and duplicate outcomes are no-ops here; in particular a
	// denial is never logged with any identity.
	_, err := i.pipeline.Ingest(ctx, models.Message{
		UserID:    event.UserID,
		Rank:      event.Rank,
		Text:      event.Text,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			i.logger.Warn("invalid message event dropped", "error", err)
			return nil
		}
		return err
	}
	return nil
}
