package rewards

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelvaldez/creatorkit-backend/internal/transactions"
	"github.com/angelvaldez/creatorkit-backend/pkg/db"
	"github.com/angelvaldez/creatorkit-backend/pkg/db/models"
	pkgerrors "github.com/angelvaldez/creatorkit-backend/pkg/errors"
)

// AccessWindow is the fixed validity period of a reward credential.
const AccessWindow = 30 * 24 * time.Hour

const tokenBytes = 32

// Service mints reward credentials for completed transactions and validates
// tokens presented by content-access readers.
type Service interface {
	Issue(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*models.Reward, error)
	Validate(ctx context.Context, token string) (*Access, error)
	ForTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Reward, error)
}

// Access is the reader view of a reward lookup.
type Access struct {
	Reward      *models.Reward
	Transaction *models.PaymentTransaction
	Valid       bool
}

type service struct {
	repo    Repository
	txnRepo transactions.Repository
	now     func() time.Time
}

// NewService builds the reward issuer.
func NewService(repo Repository, txnRepo transactions.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rewards repository required")
	}
	if txnRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	return &service{
		repo:    repo,
		txnRepo: txnRepo,
		now:     time.Now,
	}, nil
}

// Issue mints a single reward for the transaction and records the reward
// reference on the transaction row. Both writes run against the supplied DB
// transaction so a failed insert leaves no dangling reference behind.
//
// Callers must only invoke Issue after winning the pending -> completed
// transition; Issue itself enforces write-once linkage as a second guard.
func (s *service) Issue(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*models.Reward, error) {
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	token, err := newAccessToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate access token")
	}

	now := s.now()
	reward := &models.Reward{
		ID:            uuid.New(),
		TransactionID: transactionID,
		Token:         token,
		ExpiresAt:     now.Add(AccessWindow),
		CreatedAt:     now,
	}

	if err := s.repo.WithTx(tx).Create(ctx, reward); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "reward already issued for transaction")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reward")
	}
	if err := s.txnRepo.WithTx(tx).LinkReward(ctx, transactionID, reward.ID); err != nil {
		return nil, err
	}
	return reward, nil
}

func (s *service) Validate(ctx context.Context, token string) (*Access, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token required")
	}

	reward, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reward not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup reward")
	}

	transaction, err := s.txnRepo.FindByID(ctx, reward.TransactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup transaction")
	}

	return &Access{
		Reward:      reward,
		Transaction: transaction,
		Valid:       reward.Valid(s.now()),
	}, nil
}

// ForTransaction returns the reward minted for a settled transaction, used
// by the post-payment status view to hand the buyer their access token.
func (s *service) ForTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Reward, error) {
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	reward, err := s.repo.FindByTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reward not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup reward")
	}
	return reward, nil
}

func newAccessToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
