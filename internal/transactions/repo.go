package transactions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelvaldez/creatorkit-backend/pkg/db/models"
	"github.com/angelvaldez/creatorkit-backend/pkg/enums"
	pkgerrors "github.com/angelvaldez/creatorkit-backend/pkg/errors"
)

// Repository exposes persistence helpers for payment transactions.
//
// All lifecycle mutations are conditional single-statement updates keyed on
// the pre-image status, so concurrent webhook deliveries racing on the same
// transaction resolve to exactly one winner without any read-then-write gap.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.PaymentTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error)
	MarkTerminal(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) (bool, error)
	LinkReward(ctx context.Context, id, rewardID uuid.UUID) error
	ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]models.PaymentTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var transaction models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		UpdateColumn("stripe_session_id", sessionID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkCompleted transitions pending -> completed and records the gateway
// payment reference. The boolean reports whether this caller won the
// transition; a false return with no error means the transaction had already
// left pending.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error) {
	updates := map[string]any{
		"status": enums.TransactionStatusCompleted,
	}
	if paymentIntentID != "" {
		updates["stripe_payment_intent_id"] = paymentIntentID
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkTerminal transitions pending -> expired|failed. Completed transactions
// are never downgraded: the status predicate simply matches zero rows.
func (r *repository) MarkTerminal(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) (bool, error) {
	if status != enums.TransactionStatusExpired && status != enums.TransactionStatusFailed {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "terminal status must be expired or failed")
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		UpdateColumn("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// LinkReward records the reward reference on a completed transaction. The
// reward_id IS NULL predicate keeps the linkage write-once.
func (r *repository) LinkReward(ctx context.Context, id, rewardID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ? AND reward_id IS NULL", id, enums.TransactionStatusCompleted).
		UpdateColumn("reward_id", rewardID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "transaction not eligible for reward linkage")
	}
	return nil
}

func (r *repository) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]models.PaymentTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var rows []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
