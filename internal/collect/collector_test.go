package collect

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatvault/internal/consent/models"
	consentstore "chatvault/internal/consent/store"
	ingestmodels "chatvault/internal/ingest/models"
	dErrors "chatvault/pkg/domain-errors"
	"chatvault/pkg/testutil"
)

type stubHistory struct {
	messages []ingestmodels.Message
	failures int32
	calls    atomic.Int32
}

func (h *stubHistory) History(_ context.Context, _ string, _ int) ([]ingestmodels.Message, error) {
	if h.calls.Add(1) <= h.failures {
		return nil, dErrors.New(dErrors.CodeStorage, "history unavailable")
	}
	return h.messages, nil
}

type stubRanks struct {
	ranks map[string]string
}

func (r *stubRanks) HighestRank(_ context.Context, digest string) (string, bool, error) {
	rank, ok := r.ranks[digest]
	return rank, ok, nil
}

// stubPipeline scripts per-text outcomes and can fail the first
// attempts of a given text to exercise retry.
type stubPipeline struct {
	mu        sync.Mutex
	outcomes  map[string]ingestmodels.Outcome
	transient map[string]int
	attempts  map[string]int
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{
		outcomes:  make(map[string]ingestmodels.Outcome),
		transient: make(map[string]int),
		attempts:  make(map[string]int),
	}
}

func (p *stubPipeline) Ingest(_ context.Context, msg ingestmodels.Message) (ingestmodels.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[msg.Text]++
	if p.attempts[msg.Text] <= p.transient[msg.Text] {
		return "", dErrors.New(dErrors.CodeStorage, "insert timeout")
	}
	return p.outcomes[msg.Text], nil
}

func (p *stubPipeline) attemptCount(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[text]
}

func newCollector(t *testing.T, history *stubHistory, ranks *stubRanks, directory SubjectDirectory, pipeline Pipeline) *Collector {
	t.Helper()
	return NewCollector(
		history,
		ranks,
		directory,
		pipeline,
		"channel-1",
		100,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithWorkers(4),
	)
}

func TestRunCountsOutcomes(t *testing.T) {
	pipeline := newStubPipeline()
	pipeline.outcomes["a"] = ingestmodels.OutcomeStored
	pipeline.outcomes["b"] = ingestmodels.OutcomeStored
	pipeline.outcomes["c"] = ingestmodels.OutcomeDuplicate
	pipeline.outcomes["d"] = ingestmodels.OutcomeDenied

	history := &stubHistory{messages: []ingestmodels.Message{
		testutil.NewTestMessage("u1", "a"),
		testutil.NewTestMessage("u1", "b"),
		testutil.NewTestMessage("u1", "c"),
		testutil.NewTestMessage("u2", "d"),
	}}

	c := newCollector(t, history, &stubRanks{}, consentstore.New(), pipeline)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.Scanned)
	assert.Equal(t, int64(2), summary.Stored)
	assert.Equal(t, int64(1), summary.Duplicates)
	assert.Equal(t, int64(1), summary.Skipped)
	assert.Zero(t, summary.Failed)
}

func TestRunRetriesTransientStorageErrors(t *testing.T) {
	pipeline := newStubPipeline()
	pipeline.outcomes["a"] = ingestmodels.OutcomeStored
	pipeline.transient["a"] = 2

	history := &stubHistory{messages: []ingestmodels.Message{testutil.NewTestMessage("u1", "a")}}
	c := newCollector(t, history, &stubRanks{}, consentstore.New(), pipeline)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Stored)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 3, pipeline.attemptCount("a"))
}

func TestRunIsolatesPerMessageFailures(t *testing.T) {
	pipeline := newStubPipeline()
	pipeline.outcomes["a"] = ingestmodels.OutcomeStored
	// More transient failures than retries: this message fails for good.
	pipeline.transient["b"] = 10

	history := &stubHistory{messages: []ingestmodels.Message{
		testutil.NewTestMessage("u1", "a"),
		testutil.NewTestMessage("u1", "b"),
	}}
	c := newCollector(t, history, &stubRanks{}, consentstore.New(), pipeline)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Stored)
	assert.Equal(t, int64(1), summary.Failed)
}

func TestRunRetriesHistoryFetch(t *testing.T) {
	pipeline := newStubPipeline()
	pipeline.outcomes["a"] = ingestmodels.OutcomeStored

	history := &stubHistory{
		messages: []ingestmodels.Message{testutil.NewTestMessage("u1", "a")},
		failures: 2,
	}
	c := newCollector(t, history, &stubRanks{}, consentstore.New(), pipeline)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Scanned)
}

func TestRunFailsWhenHistoryStaysDown(t *testing.T) {
	history := &stubHistory{failures: 100}
	c := newCollector(t, history, &stubRanks{}, consentstore.New(), newStubPipeline())

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStorage))
}

func TestRunRefreshesRanks(t *testing.T) {
	directory := consentstore.New()
	ctx := context.Background()
	require.NoError(t, directory.Upsert(ctx, &models.TrackedUser{UserIDHash: "digest-1", Rank: models.DefaultRank}))
	require.NoError(t, directory.Upsert(ctx, &models.TrackedUser{UserIDHash: "digest-2", Rank: "gold"}))
	require.NoError(t, directory.Upsert(ctx, &models.TrackedUser{UserIDHash: "digest-3", Rank: "silver"}))

	ranks := &stubRanks{ranks: map[string]string{
		"digest-1": "gold", // changed
		"digest-2": "gold", // unchanged
		"digest-3": "bronze",
	}}

	history := &stubHistory{}
	c := newCollector(t, history, ranks, directory, newStubPipeline())

	summary, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.RanksRefreshed)

	user, err := directory.Find(ctx, "digest-1")
	require.NoError(t, err)
	assert.Equal(t, "gold", user.Rank)
	user, err = directory.Find(ctx, "digest-2")
	require.NoError(t, err)
	assert.Equal(t, "gold", user.Rank)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	history := &stubHistory{messages: []ingestmodels.Message{testutil.NewTestMessage("u1", "a")}}
	c := newCollector(t, history, &stubRanks{}, consentstore.New(), newStubPipeline())

	_, err := c.Run(ctx)
	require.Error(t, err)
}
