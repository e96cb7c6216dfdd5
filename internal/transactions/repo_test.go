package transactions

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelvaldez/creatorkit-backend/pkg/db/models"
	"github.com/angelvaldez/creatorkit-backend/pkg/enums"
	pkgerrors "github.com/angelvaldez/creatorkit-backend/pkg/errors"
)

func setupTransactionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS payment_transactions (
  id TEXT PRIMARY KEY,
  package_id TEXT NOT NULL,
  package_title TEXT NOT NULL,
  creator_id TEXT NOT NULL,
  creator_name TEXT NOT NULL,
  buyer_alias TEXT NOT NULL,
  buyer_email TEXT,
  buyer_whatsapp TEXT,
  amount_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL,
  creator_payout_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  stripe_session_id TEXT UNIQUE,
  stripe_payment_intent_id TEXT,
  reward_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func newPendingTransaction(t *testing.T, db *gorm.DB) *models.PaymentTransaction {
	t.Helper()

	transaction := &models.PaymentTransaction{
		ID:                 uuid.New(),
		PackageID:          uuid.New(),
		PackageTitle:       "Lightroom Preset Bundle",
		CreatorID:          uuid.New(),
		CreatorName:        "Marisol",
		BuyerAlias:         "fan_017",
		AmountCents:        2500,
		PlatformFeeCents:   250,
		CreatorPayoutCents: 2250,
		Currency:           "usd",
		Status:             enums.TransactionStatusPending,
	}
	require.NoError(t, db.Create(transaction).Error)
	return transaction
}

func TestRepositoryCreateAndFind(t *testing.T) {
	db := setupTransactionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created := newPendingTransaction(t, db)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, enums.TransactionStatusPending, found.Status)
	assert.Equal(t, int64(250), found.PlatformFeeCents)
	assert.Equal(t, int64(2250), found.CreatorPayoutCents)
}

func TestRepositoryAttachSession(t *testing.T) {
	db := setupTransactionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	transaction := newPendingTransaction(t, db)
	require.NoError(t, repo.AttachSession(ctx, transaction.ID, "cs_test_abc"))

	found, err := repo.FindByID(ctx, transaction.ID)
	require.NoError(t, err)
	require.NotNil(t, found.StripeSessionID)
	assert.Equal(t, "cs_test_abc", *found.StripeSessionID)

	err = repo.AttachSession(ctx, uuid.New(), "cs_test_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryMarkCompletedSingleWinner(t *testing.T) {
	db := setupTransactionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	transaction := newPendingTransaction(t, db)

	won, err := repo.MarkCompleted(ctx, transaction.ID, "pi_test_1")
	require.NoError(t, err)
	assert.True(t, won)

	// A redelivered event finds the pre-image gone and loses cleanly.
	won, err = repo.MarkCompleted(ctx, transaction.ID, "pi_test_2")
	require.NoError(t, err)
	assert.False(t, won)

	found, err := repo.FindByID(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, found.Status)
	require.NotNil(t, found.StripePaymentIntentID)
	assert.Equal(t, "pi_test_1", *found.StripePaymentIntentID)
}

func TestRepositoryMarkCompletedConcurrentDeliveries(t *testing.T) {
	db := setupTransactionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	transaction := newPendingTransaction(t, db)

	const deliveries = 8
	var wg sync.WaitGroup
	wins := make(chan bool, deliveries)
	errs := make(chan error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			won, err := repo.MarkCompleted(ctx, transaction.ID, fmt.Sprintf("pi_test_%d", n))
			if err != nil {
				errs <- err
				return
			}
			wins <- won
		}(i)
	}
	wg.Wait()
	close(wins)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one delivery must win the transition")
}

func TestRepositoryMarkTerminal(t *testing.T) {
	db := setupTransactionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	expired := newPendingTransaction(t, db)
	won, err := repo.MarkTerminal(ctx, expired.ID, enums.TransactionStatusExpired)
	require.NoError(t, err)
	assert.True(t, won)

	// Expiry arriving after completion never downgrades the row.
	completed := newPendingTransaction(t, db)
	won, err = repo.MarkCompleted(ctx, completed.ID, "pi_test_9")
	require.NoError(t, err)
	require.True(t, won)

	won, err = repo.MarkTerminal(ctx, completed.ID, enums.TransactionStatusExpired)
	require.NoError(t, err)
	assert.False(t, won)

	found, err := repo.FindByID(ctx, completed.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, found.Status)

	_, err = repo.MarkTerminal(ctx, completed.ID, enums.TransactionStatusCompleted)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.As(err).Code())
}

func TestRepositoryLinkRewardWriteOnce(t *testing.T) {
	db := setupTransactionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	transaction := newPendingTransaction(t, db)

	// Pending transactions are not eligible.
	err := repo.LinkReward(ctx, transaction.ID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	won, err := repo.MarkCompleted(ctx, transaction.ID, "pi_test_1")
	require.NoError(t, err)
	require.True(t, won)

	rewardID := uuid.New()
	require.NoError(t, repo.LinkReward(ctx, transaction.ID, rewardID))

	// Second linkage attempt hits the write-once predicate.
	err = repo.LinkReward(ctx, transaction.ID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	found, err := repo.FindByID(ctx, transaction.ID)
	require.NoError(t, err)
	require.NotNil(t, found.RewardID)
	assert.Equal(t, rewardID, *found.RewardID)
}

func TestRepositoryListByCreator(t *testing.T) {
	db := setupTransactionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	creatorID := uuid.New()
	for i := 0; i < 3; i++ {
		transaction := newPendingTransaction(t, db)
		require.NoError(t, db.Model(transaction).UpdateColumn("creator_id", creatorID).Error)
	}
	newPendingTransaction(t, db)

	rows, err := repo.ListByCreator(ctx, creatorID, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, creatorID, row.CreatorID)
	}
}
