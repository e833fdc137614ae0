// Package collect runs bounded history-collection passes: fetch a window
// of channel history, feed every message through the ingestion pipeline,
// then refresh the rank of every tracked subject.
package collect

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	consentmodels "chatvault/internal/consent/models"
	"chatvault/internal/ingest/models"
	"chatvault/internal/platform/privacy"
	dErrors "chatvault/pkg/domain-errors"
)

// HistorySource yields a bounded window of messages from one channel.
// The chat-platform adapter implements it; tests stub it.
type HistorySource interface {
	History(ctx context.Context, channelID string, limit int) ([]models.Message, error)
}

// RankSource resolves the current rank for a subject digest. The second
// return reports whether a rank could be resolved at all.
type RankSource interface {
	HighestRank(ctx context.Context, subjectDigest string) (string, bool, error)
}

// SubjectDirectory is the slice of the tracked-subject store the rank
// refresh walks.
type SubjectDirectory interface {
	List(ctx context.Context) ([]*consentmodels.TrackedUser, error)
	UpdateRank(ctx context.Context, userIDHash, rank string) error
}

// Pipeline is the ingestion entry point each collected message goes
// through.
type Pipeline interface {
	Ingest(ctx context.Context, msg models.Message) (models.Outcome, error)
}

// Summary aggregates one collection pass. It carries counts only; the
// command layer must never see content or raw IDs.
type Summary struct {
	Scanned        int64 `json:"scanned"`
	Stored         int64 `json:"stored"`
	Duplicates     int64 `json:"duplicates"`
	Skipped        int64 `json:"skipped"`
	Failed         int64 `json:"failed"`
	RanksRefreshed int64 `json:"ranks_refreshed"`
}

const (
	defaultWorkers    = 8
	defaultMaxRetries = 3
	retryBaseDelay    = 100 * time.Millisecond
)

// Option configures the Collector.
type Option func(*Collector)

// WithWorkers sets the ingestion concurrency for a pass.
func WithWorkers(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Collector drives one collection pass over a single configured channel.
type Collector struct {
	source    HistorySource
	ranks     RankSource
	directory SubjectDirectory
	pipeline  Pipeline
	channelID string
	limit     int
	workers   int
	logger    *slog.Logger
}

func NewCollector(source HistorySource, ranks RankSource, directory SubjectDirectory, pipeline Pipeline, channelID string, limit int, logger *slog.Logger, opts ...Option) *Collector {
	c := &Collector{
		source:    source,
		ranks:     ranks,
		directory: directory,
		pipeline:  pipeline,
		channelID: channelID,
		limit:     limit,
		workers:   defaultWorkers,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one pass. Each message is an independent idempotent unit:
// a failure on one message is counted and does not abort the rest, and
// re-running after a crash dedups against already stored rows. Only
// context cancellation stops a pass early.
func (c *Collector) Run(ctx context.Context) (Summary, error) {
	messages, err := c.fetchHistory(ctx)
	if err != nil {
		return Summary{}, err
	}

	var stored, duplicates, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, msg := range messages {
		g.Go(func() error {
			outcome, err := c.ingestWithRetry(gctx, msg)
			switch {
			case err != nil:
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				c.logger.Warn("message ingest failed", "error", err)
			case outcome == models.OutcomeStored:
				stored.Add(1)
			case outcome == models.OutcomeDuplicate:
				duplicates.Add(1)
			case outcome == models.OutcomeDenied:
				skipped.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	refreshed, err := c.refreshRanks(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Scanned:        int64(len(messages)),
		Stored:         stored.Load(),
		Duplicates:     duplicates.Load(),
		Skipped:        skipped.Load(),
		Failed:         failed.Load(),
		RanksRefreshed: refreshed,
	}
	c.logger.Info("collection pass finished",
		"channel_id", c.channelID,
		"scanned", summary.Scanned,
		"stored", summary.Stored,
		"duplicates", summary.Duplicates,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"ranks_refreshed", summary.RanksRefreshed,
	)
	return summary, nil
}

func (c *Collector) fetchHistory(ctx context.Context) ([]models.Message, error) {
	var messages []models.Message
	err := retry.Do(ctx, retry.WithMaxRetries(defaultMaxRetries, retry.NewFibonacci(retryBaseDelay)), func(ctx context.Context) error {
		var err error
		messages, err = c.source.History(ctx, c.channelID, c.limit)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to fetch channel history")
	}
	return messages, nil
}

// ingestWithRetry retries transient storage failures only. Validation
// errors and consent decisions are final on the first attempt.
func (c *Collector) ingestWithRetry(ctx context.Context, msg models.Message) (models.Outcome, error) {
	var outcome models.Outcome
	err := retry.Do(ctx, retry.WithMaxRetries(defaultMaxRetries, retry.NewFibonacci(retryBaseDelay)), func(ctx context.Context) error {
		var err error
		outcome, err = c.pipeline.Ingest(ctx, msg)
		if err != nil && dErrors.HasCode(err, dErrors.CodeStorage) {
			return retry.RetryableError(err)
		}
		return err
	})
	return outcome, err
}

// refreshRanks re-resolves the rank of every tracked subject. A subject
// whose rank cannot be resolved keeps its previous value.
func (c *Collector) refreshRanks(ctx context.Context) (int64, error) {
	users, err := c.directory.List(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list tracked subjects")
	}

	var refreshed int64
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		rank, ok, err := c.ranks.HighestRank(ctx, user.UserIDHash)
		if err != nil {
			c.logger.Warn("rank resolution failed", "subject", privacy.Abbrev(user.UserIDHash), "error", err)
			continue
		}
		if !ok || rank == user.Rank {
			continue
		}
		if err := c.directory.UpdateRank(ctx, user.UserIDHash, rank); err != nil {
			c.logger.Warn("rank update failed", "subject", privacy.Abbrev(user.UserIDHash), "error", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}
