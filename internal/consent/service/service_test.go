package service_test

//go:generate mockgen -destination=mocks/mocks.go -package=mocks chatvault/internal/consent/service Store,DataStore,TxRunner

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"chatvault/internal/audit"
	"chatvault/internal/consent/models"
	"chatvault/internal/consent/service"
	"chatvault/internal/consent/service/mocks"
	"chatvault/internal/platform/crypto"
	"chatvault/internal/platform/privacy"
	dErrors "chatvault/pkg/domain-errors"
	psync "chatvault/pkg/platform/sync"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	mockStore  *mocks.MockStore
	mockData   *mocks.MockDataStore
	mockTx     *mocks.MockTxRunner
	cipher     *crypto.Cipher
	auditStore *audit.InMemoryStore
	service    *service.Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockData = mocks.NewMockDataStore(s.ctrl)
	s.mockTx = mocks.NewMockTxRunner(s.ctrl)

	key := make([]byte, 32)
	cipher, err := crypto.New(key)
	s.Require().NoError(err)
	s.cipher = cipher

	s.auditStore = audit.NewInMemoryStore()
	auditor := audit.NewPublisher(s.auditStore)

	s.service = service.NewService(
		s.mockStore,
		s.mockTx,
		cipher,
		auditor,
		psync.NewShardedMutex(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// expectRunInTx routes the transactional closure to the suite's mock stores.
func (s *ServiceSuite) expectRunInTx() *gomock.Call {
	return s.mockTx.EXPECT().
		RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, service.Store, service.DataStore) error) error {
			return fn(ctx, s.mockStore, s.mockData)
		})
}

func (s *ServiceSuite) TestGrant_StoresDigestNotRawID() {
	digest := privacy.SubjectDigest("raw-user-1")

	s.mockStore.EXPECT().Exists(gomock.Any(), digest).Return(false, nil)
	s.mockStore.EXPECT().
		Upsert(gomock.Any(), &models.TrackedUser{UserIDHash: digest, Rank: "gold"}).
		Return(nil)

	err := s.service.Grant(context.Background(), "raw-user-1", "gold")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestGrant_AppendsEncryptedAuditEntry() {
	digest := privacy.SubjectDigest("raw-user-1")
	s.mockStore.EXPECT().Exists(gomock.Any(), digest).Return(false, nil)
	s.mockStore.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	err := s.service.Grant(context.Background(), "raw-user-1", "gold")
	s.Require().NoError(err)

	entries, err := s.auditStore.List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionGranted, entries[0].Action)

	// The log never contains the raw ID in the clear, but the cipher
	// can recover it for compliance queries.
	s.NotEqual("raw-user-1", entries[0].UserIDEnc)
	plain, err := s.cipher.Decrypt(entries[0].UserIDEnc)
	s.Require().NoError(err)
	s.Equal("raw-user-1", plain)
}

func (s *ServiceSuite) TestGrant_EmptyRankDefaults() {
	digest := privacy.SubjectDigest("raw-user-1")
	s.mockStore.EXPECT().Exists(gomock.Any(), digest).Return(false, nil)
	s.mockStore.EXPECT().
		Upsert(gomock.Any(), &models.TrackedUser{UserIDHash: digest, Rank: models.DefaultRank}).
		Return(nil)

	err := s.service.Grant(context.Background(), "raw-user-1", "")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestGrant_ValidationErrors() {
	err := s.service.Grant(context.Background(), "", "gold")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "expected CodeInvalidInput for missing userID")
}

func (s *ServiceSuite) TestGrant_StoreErrorPropagation() {
	s.T().Run("exists error propagates as CodeStorage", func(t *testing.T) {
		s.mockStore.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, assert.AnError)

		err := s.service.Grant(context.Background(), "raw-user-1", "gold")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStorage), "expected CodeStorage for store exists error")
	})

	s.T().Run("upsert error propagates as CodeStorage", func(t *testing.T) {
		s.mockStore.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
		s.mockStore.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(assert.AnError)

		err := s.service.Grant(context.Background(), "raw-user-1", "gold")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStorage), "expected CodeStorage for store upsert error")
	})
}

func (s *ServiceSuite) TestRevoke_ErasesInOneTransaction() {
	digest := privacy.SubjectDigest("raw-user-1")

	s.expectRunInTx()
	s.mockData.EXPECT().DeleteBySubject(gomock.Any(), digest).Return(int64(3), nil)
	s.mockStore.EXPECT().Delete(gomock.Any(), digest).Return(true, nil)

	err := s.service.Revoke(context.Background(), "raw-user-1")
	s.Require().NoError(err)

	entries, err := s.auditStore.List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionRevoked, entries[0].Action)
}

func (s *ServiceSuite) TestRevoke_AuditedEvenWhenAbsent() {
	digest := privacy.SubjectDigest("nobody")

	s.expectRunInTx()
	s.mockData.EXPECT().DeleteBySubject(gomock.Any(), digest).Return(int64(0), nil)
	s.mockStore.EXPECT().Delete(gomock.Any(), digest).Return(false, nil)

	err := s.service.Revoke(context.Background(), "nobody")
	s.Require().NoError(err)

	entries, err := s.auditStore.List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionRevoked, entries[0].Action)
}

func (s *ServiceSuite) TestRevoke_TxErrorLeavesNoAuditEntry() {
	s.mockTx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).Return(assert.AnError)

	err := s.service.Revoke(context.Background(), "raw-user-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStorage), "expected CodeStorage for tx error")

	entries, listErr := s.auditStore.List(context.Background())
	s.Require().NoError(listErr)
	s.Empty(entries, "failed revocation must not be recorded as completed")
}

func (s *ServiceSuite) TestRevoke_ValidationErrors() {
	err := s.service.Revoke(context.Background(), "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "expected CodeInvalidInput for missing userID")
}

func (s *ServiceSuite) TestIsGranted() {
	s.T().Run("granted subject", func(t *testing.T) {
		s.mockStore.EXPECT().Exists(gomock.Any(), "digest-1").Return(true, nil)

		granted, err := s.service.IsGranted(context.Background(), "digest-1")
		require.NoError(t, err)
		assert.True(t, granted)
	})

	s.T().Run("unknown subject", func(t *testing.T) {
		s.mockStore.EXPECT().Exists(gomock.Any(), "digest-2").Return(false, nil)

		granted, err := s.service.IsGranted(context.Background(), "digest-2")
		require.NoError(t, err)
		assert.False(t, granted)
	})

	s.T().Run("store error propagates as CodeStorage", func(t *testing.T) {
		s.mockStore.EXPECT().Exists(gomock.Any(), "digest-3").Return(false, assert.AnError)

		_, err := s.service.IsGranted(context.Background(), "digest-3")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStorage))
	})
}

func (s *ServiceSuite) TestStatus_Lifecycle() {
	ctx := context.Background()
	digest := privacy.SubjectDigest("raw-user-1")

	s.T().Run("absent with empty log", func(t *testing.T) {
		s.mockStore.EXPECT().Exists(gomock.Any(), digest).Return(false, nil)

		status, err := s.service.Status(ctx, "raw-user-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusAbsent, status)
	})

	s.T().Run("granted when tracked", func(t *testing.T) {
		s.mockStore.EXPECT().Exists(gomock.Any(), digest).Return(true, nil)

		status, err := s.service.Status(ctx, "raw-user-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusGranted, status)
	})

	s.T().Run("revoked when last log action is a revocation", func(t *testing.T) {
		enc, err := s.cipher.Encrypt("raw-user-1")
		require.NoError(t, err)
		require.NoError(t, s.auditStore.Append(ctx, audit.Entry{UserIDEnc: enc, Action: audit.ActionGranted}))
		enc, err = s.cipher.Encrypt("raw-user-1")
		require.NoError(t, err)
		require.NoError(t, s.auditStore.Append(ctx, audit.Entry{UserIDEnc: enc, Action: audit.ActionRevoked}))

		s.mockStore.EXPECT().Exists(gomock.Any(), digest).Return(false, nil)

		status, err := s.service.Status(ctx, "raw-user-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusRevoked, status)
	})

	s.T().Run("log entries for other subjects are ignored", func(t *testing.T) {
		otherDigest := privacy.SubjectDigest("raw-user-2")
		s.mockStore.EXPECT().Exists(gomock.Any(), otherDigest).Return(false, nil)

		status, err := s.service.Status(ctx, "raw-user-2")
		require.NoError(t, err)
		assert.Equal(t, models.StatusAbsent, status)
	})
}
