package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chatvault/internal/ingest/models"
	"chatvault/internal/platform/crypto"
	"chatvault/internal/platform/metrics"
	"chatvault/internal/platform/privacy"
	"chatvault/internal/sentinel"
	dErrors "chatvault/pkg/domain-errors"
	psync "chatvault/pkg/platform/sync"
)

// Store is the slice of the row store the pipeline writes through.
type Store interface {
	Insert(ctx context.Context, record *models.Record) (int64, error)
	ExistsByRowHash(ctx context.Context, rowHash string) (bool, error)
}

// ConsentGate answers whether a subject digest may be captured. It takes
// the digest, never the raw ID: by the time consent is consulted the
// identity has already been anonymized.
type ConsentGate interface {
	IsGranted(ctx context.Context, subjectDigest string) (bool, error)
}

// Option configures the Service.
type Option func(*Service)

// Service is the ingestion pipeline: anonymize, gate on consent,
// deduplicate, encrypt, persist. A message from a non-consenting subject
// leaves no trace anywhere, including logs.
type Service struct {
	store   Store
	gate    ConsentGate
	cipher  *crypto.Cipher
	locks   *psync.ShardedMutex
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(store Store, gate ConsentGate, cipher *crypto.Cipher, locks *psync.ShardedMutex, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:  store,
		gate:   gate,
		cipher: cipher,
		locks:  locks,
		logger: logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Ingest runs one message through the pipeline and reports the outcome.
//
// The subject lock is the same sharded mutex the consent service locks
// for revocation, so a revoke never interleaves with an in-flight insert
// for that subject: either the row lands before the cascading erasure,
// or the consent check sees the revocation and the row is never written.
func (s *Service) Ingest(ctx context.Context, msg models.Message) (models.Outcome, error) {
	start := time.Now()

	if msg.UserID == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id must not be empty")
	}
	if strings.TrimSpace(msg.Text) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "message text must not be empty")
	}

	digest := privacy.SubjectDigest(msg.UserID)
	s.locks.Lock(digest)
	defer s.locks.Unlock(digest)

	granted, err := s.gate.IsGranted(ctx, digest)
	if err != nil {
		return "", err
	}
	if !granted {
		if s.metrics != nil {
			s.metrics.ConsentDenied.Inc()
		}
		return models.OutcomeDenied, nil
	}

	rowHash := privacy.RowDigest(digest, msg.Text)
	exists, err := s.store.ExistsByRowHash(ctx, rowHash)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeStorage, "failed to check for duplicate row")
	}
	if exists {
		return s.duplicate(digest), nil
	}

	encText, err := s.cipher.Encrypt(msg.Text)
	if err != nil {
		return "", err
	}

	record := &models.Record{UserIDHash: digest, MessageEnc: encText, RowHash: rowHash}
	if _, err := s.store.Insert(ctx, record); err != nil {
		// Lost a race against another writer of the same row.
		if errors.Is(err, sentinel.ErrDuplicate) {
			return s.duplicate(digest), nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeStorage, "failed to store row")
	}

	if s.metrics != nil {
		s.metrics.MessagesIngested.Inc()
		s.metrics.IngestLatency.Observe(time.Since(start).Seconds())
	}
	s.logger.Debug("message stored", "subject", privacy.Abbrev(digest))
	return models.OutcomeStored, nil
}

func (s *Service) duplicate(digest string) models.Outcome {
	if s.metrics != nil {
		s.metrics.DuplicatesSkipped.Inc()
	}
	s.logger.Debug("duplicate skipped", "subject", privacy.Abbrev(digest))
	return models.OutcomeDuplicate
}
