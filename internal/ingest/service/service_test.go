package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"chatvault/internal/ingest/models"
	"chatvault/internal/ingest/store"
	"chatvault/internal/platform/crypto"
	"chatvault/internal/platform/privacy"
	dErrors "chatvault/pkg/domain-errors"
	psync "chatvault/pkg/platform/sync"
)

// stubGate answers consent checks from a fixed set of digests.
type stubGate struct {
	granted map[string]bool
	err     error
	calls   []string
}

func (g *stubGate) IsGranted(_ context.Context, digest string) (bool, error) {
	g.calls = append(g.calls, digest)
	if g.err != nil {
		return false, g.err
	}
	return g.granted[digest], nil
}

type IngestSuite struct {
	suite.Suite
	rows    *store.InMemoryStore
	gate    *stubGate
	cipher  *crypto.Cipher
	service *Service
}

func (s *IngestSuite) SetupTest() {
	s.rows = store.New()
	s.gate = &stubGate{granted: make(map[string]bool)}

	key := make([]byte, 32)
	cipher, err := crypto.New(key)
	s.Require().NoError(err)
	s.cipher = cipher

	s.service = NewService(
		s.rows,
		s.gate,
		cipher,
		psync.NewShardedMutex(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestIngestSuite(t *testing.T) {
	suite.Run(t, new(IngestSuite))
}

func (s *IngestSuite) grant(userID string) string {
	digest := privacy.SubjectDigest(userID)
	s.gate.granted[digest] = true
	return digest
}

func (s *IngestSuite) TestIngest_StoresAnonymizedEncryptedRow() {
	ctx := context.Background()
	digest := s.grant("raw-user-1")

	outcome, err := s.service.Ingest(ctx, models.Message{UserID: "raw-user-1", Text: "hello"})
	s.Require().NoError(err)
	s.Equal(models.OutcomeStored, outcome)

	count, err := s.rows.CountBySubject(ctx, digest)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *IngestSuite) TestIngest_ContentIsCiphertextNotPlaintext() {
	ctx := context.Background()
	digest := s.grant("raw-user-1")

	_, err := s.service.Ingest(ctx, models.Message{UserID: "raw-user-1", Text: "secret words"})
	s.Require().NoError(err)

	// Re-ingesting the same plaintext dedups against the stored row, so
	// the row hash must be derived from the plaintext even though only
	// ciphertext is persisted.
	outcome, err := s.service.Ingest(ctx, models.Message{UserID: "raw-user-1", Text: "secret words"})
	s.Require().NoError(err)
	s.Equal(models.OutcomeDuplicate, outcome)

	count, err := s.rows.CountBySubject(ctx, digest)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *IngestSuite) TestIngest_DeniedLeavesNoTrace() {
	ctx := context.Background()
	digest := privacy.SubjectDigest("stranger")

	outcome, err := s.service.Ingest(ctx, models.Message{UserID: "stranger", Text: "hello"})
	s.Require().NoError(err)
	s.Equal(models.OutcomeDenied, outcome)

	count, err := s.rows.CountBySubject(ctx, digest)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *IngestSuite) TestIngest_GateSeesDigestOnly() {
	ctx := context.Background()
	s.grant("raw-user-1")

	_, err := s.service.Ingest(ctx, models.Message{UserID: "raw-user-1", Text: "hello"})
	s.Require().NoError(err)

	s.Require().Len(s.gate.calls, 1)
	s.Equal(privacy.SubjectDigest("raw-user-1"), s.gate.calls[0])
	s.NotContains(s.gate.calls, "raw-user-1")
}

func (s *IngestSuite) TestIngest_SamePlaintextDifferentSubjectsBothStored() {
	ctx := context.Background()
	digestA := s.grant("raw-user-a")
	digestB := s.grant("raw-user-b")

	outcome, err := s.service.Ingest(ctx, models.Message{UserID: "raw-user-a", Text: "gm"})
	s.Require().NoError(err)
	s.Equal(models.OutcomeStored, outcome)

	outcome, err = s.service.Ingest(ctx, models.Message{UserID: "raw-user-b", Text: "gm"})
	s.Require().NoError(err)
	s.Equal(models.OutcomeStored, outcome)

	countA, err := s.rows.CountBySubject(ctx, digestA)
	s.Require().NoError(err)
	countB, err2 := s.rows.CountBySubject(ctx, digestB)
	s.Require().NoError(err2)
	s.Equal(int64(1), countA)
	s.Equal(int64(1), countB)
}

func (s *IngestSuite) TestIngest_ValidationErrors() {
	ctx := context.Background()

	_, err := s.service.Ingest(ctx, models.Message{UserID: "", Text: "hello"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.Ingest(ctx, models.Message{UserID: "raw-user-1", Text: "   "})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *IngestSuite) TestIngest_GateErrorPropagates() {
	s.gate.err = dErrors.New(dErrors.CodeStorage, "db down")

	_, err := s.service.Ingest(context.Background(), models.Message{UserID: "raw-user-1", Text: "hello"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStorage))
}
