// Package kafka wraps the franz-go client behind the small consuming
// surface the live intake needs.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Handler processes one consumed record. Errors are logged and the record
// is skipped: the ingestion pipeline is idempotent, so replays on the
// next collection pass are safe.
type Handler func(ctx context.Context, key, value []byte) error

// Config holds consumer configuration.
type Config struct {
	Brokers string
	Topic   string
	GroupID string
}

// Consumer wraps a franz-go client consuming a single topic.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New creates a consumer for the configured topic.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is cancelled. It blocks and is meant to be
// launched as its own goroutine from main.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		fetches.EachRecord(func(record *kgo.Record) {
			if err := c.handler(ctx, record.Key, record.Value); err != nil {
				c.logger.Error("live intake handler failed",
					"topic", record.Topic,
					"offset", record.Offset,
					"error", err,
				)
			}
		})
	}
}

// Close shuts the underlying client down.
func (c *Consumer) Close() {
	c.client.Close()
}
