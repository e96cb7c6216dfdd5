package rewards

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelvaldez/creatorkit-backend/pkg/db/models"
)

// Repository exposes persistence helpers for rewards.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reward *models.Reward) error
	FindByToken(ctx context.Context, token string) (*models.Reward, error)
	FindByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Reward, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a rewards repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reward *models.Reward) error {
	return r.db.WithContext(ctx).Create(reward).Error
}

func (r *repository) FindByToken(ctx context.Context, token string) (*models.Reward, error) {
	var reward models.Reward
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&reward).Error
	if err != nil {
		return nil, err
	}
	return &reward, nil
}

func (r *repository) FindByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Reward, error) {
	var reward models.Reward
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&reward).Error
	if err != nil {
		return nil, err
	}
	return &reward, nil
}
