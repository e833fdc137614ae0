package service

import (
	"context"
	"log/slog"
	"time"

	"chatvault/internal/audit"
	"chatvault/internal/consent/models"
	"chatvault/internal/platform/crypto"
	"chatvault/internal/platform/metrics"
	"chatvault/internal/platform/privacy"
	dErrors "chatvault/pkg/domain-errors"
	psync "chatvault/pkg/platform/sync"
)

// Store defines the persistence interface for tracked subjects.
// Error Contract:
// - Find returns sentinel.ErrNotFound when no record exists
// - Other methods return nil on success or wrapped errors on failure
type Store interface {
	Upsert(ctx context.Context, user *models.TrackedUser) error
	Exists(ctx context.Context, userIDHash string) (bool, error)
	Delete(ctx context.Context, userIDHash string) (bool, error)
}

// DataStore is the slice of the captured-row store the consent lifecycle
// needs: revocation cascades into deleting every row the subject owns.
type DataStore interface {
	DeleteBySubject(ctx context.Context, userIDHash string) (int64, error)
}

// TxRunner executes fn against transaction-bound stores so the
// tracked-subject delete and the cascading data delete commit or roll
// back together. There is no intermediate state where consent is
// withdrawn but data remains.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, users Store, data DataStore) error) error
}

// Option configures the Service.
type Option func(*Service)

// Service owns the per-subject consent lifecycle: absent, granted,
// revoked, and back again. It is the single gate consulted before any
// message is captured.
type Service struct {
	store   Store
	tx      TxRunner
	cipher  *crypto.Cipher
	auditor *audit.Publisher
	locks   *psync.ShardedMutex
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(store Store, tx TxRunner, cipher *crypto.Cipher, auditor *audit.Publisher, locks *psync.ShardedMutex, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		tx:      tx,
		cipher:  cipher,
		auditor: auditor,
		locks:   locks,
		logger:  logger,
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

// Grant records a subject's opt-in. It upserts the tracked subject with
// the supplied rank (the newest self-reported rank always wins, also on
// re-grant) and appends a granted entry to the consent log. Granting an
// already granted subject refreshes the rank and is otherwise idempotent.
func (s *Service) Grant(ctx context.Context, userID, rank string) error {
	if userID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "user id must not be empty")
	}
	if rank == "" {
		rank = models.DefaultRank
	}

	digest := privacy.SubjectDigest(userID)
	s.locks.Lock(digest)
	defer s.locks.Unlock(digest)

	wasGranted, err := s.store.Exists(ctx, digest)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to read consent")
	}

	if err := s.store.Upsert(ctx, &models.TrackedUser{UserIDHash: digest, Rank: rank}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to save consent")
	}

	if err := s.appendAudit(ctx, userID, audit.ActionGranted); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ConsentsGranted.Inc()
		if !wasGranted {
			s.metrics.TrackedSubjects.Inc()
		}
	}
	s.logger.Debug("consent granted", "subject", privacy.Abbrev(digest), "rank", rank)
	return nil
}

// Revoke withdraws a subject's consent: the tracked subject and every
// captured row are deleted in one transaction, then a revoked entry is
// appended to the consent log.
//
// The audit entry is appended even when the subject was already absent
// or revoked. The revocation intent is always worth logging; redundant
// entries are harmless, a missing one is not.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "user id must not be empty")
	}

	digest := privacy.SubjectDigest(userID)
	s.locks.Lock(digest)
	defer s.locks.Unlock(digest)

	var hadConsent bool
	var erased int64
	err := s.tx.RunInTx(ctx, func(ctx context.Context, users Store, data DataStore) error {
		var err error
		if erased, err = data.DeleteBySubject(ctx, digest); err != nil {
			return err
		}
		hadConsent, err = users.Delete(ctx, digest)
		return err
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to revoke consent")
	}

	if err := s.appendAudit(ctx, userID, audit.ActionRevoked); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ConsentsRevoked.Inc()
		s.metrics.ErasedRows.Add(float64(erased))
		if hadConsent {
			s.metrics.TrackedSubjects.Dec()
		}
	}
	s.logger.Debug("consent revoked",
		"subject", privacy.Abbrev(digest),
		"erased_rows", erased,
		"had_consent", hadConsent,
	)
	return nil
}

// IsGranted reports whether the subject behind the digest currently has
// active consent. It is the gate for all ingestion and deliberately takes
// the digest, not the raw ID: the pipeline anonymizes first and never
// hands the raw identity further down.
func (s *Service) IsGranted(ctx context.Context, subjectDigest string) (bool, error) {
	granted, err := s.store.Exists(ctx, subjectDigest)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeStorage, "failed to read consent")
	}
	return granted, nil
}

// Status derives the lifecycle state for a subject. GRANTED comes from
// the tracked-subject table; distinguishing REVOKED from ABSENT requires
// walking the consent log and decrypting each entry, since the log keys
// identities by reversible ciphertext only. The command layer calls this
// rarely, so the scan is acceptable.
func (s *Service) Status(ctx context.Context, userID string) (models.Status, error) {
	if userID == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id must not be empty")
	}

	digest := privacy.SubjectDigest(userID)
	granted, err := s.store.Exists(ctx, digest)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeStorage, "failed to read consent")
	}
	if granted {
		return models.StatusGranted, nil
	}

	entries, err := s.auditor.List(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeStorage, "failed to read consent log")
	}
	status := models.StatusAbsent
	for _, entry := range entries {
		plain, err := s.cipher.Decrypt(entry.UserIDEnc)
		if err != nil {
			return "", err
		}
		if plain != userID {
			continue
		}
		if entry.Action == audit.ActionRevoked {
			status = models.StatusRevoked
		} else {
			status = models.StatusAbsent
		}
	}
	return status, nil
}

func (s *Service) appendAudit(ctx context.Context, userID string, action audit.Action) error {
	encID, err := s.cipher.Encrypt(userID)
	if err != nil {
		return err
	}
	entry := audit.Entry{UserIDEnc: encID, Action: action, Timestamp: time.Now().UTC()}
	if err := s.auditor.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to append consent log entry")
	}
	return nil
}
