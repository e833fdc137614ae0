package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher captures consent transitions. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. The
// default mode is synchronous: consent transitions are rare and their
// audit entry must not be lost to a full buffer.
type Publisher struct {
	store   Store
	entries chan Entry
	wg      sync.WaitGroup
	logger  *slog.Logger
	async   bool
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Entries are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.entries = make(chan Entry, size)
			p.async = true
		}
	}
}

// WithLogger sets a logger for async error reporting.
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for entry := range p.entries {
		if err := p.store.Append(context.Background(), entry); err != nil {
			if p.logger != nil {
				p.logger.Error("failed to persist audit entry",
					"error", err,
					"action", entry.Action,
				)
			}
		}
	}
}

// Close shuts down the async publisher and waits for pending entries to drain.
func (p *Publisher) Close() {
	if p.async && p.entries != nil {
		close(p.entries)
		p.wg.Wait()
	}
}

// Append records one consent transition. Timestamps are normalized to
// UTC; a zero timestamp is filled in.
func (p *Publisher) Append(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()

	if p.async {
		select {
		case p.entries <- entry:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.store.Append(ctx, entry)
}

// List returns the full consent log for operator queries.
func (p *Publisher) List(ctx context.Context) ([]Entry, error) {
	return p.store.List(ctx)
}
