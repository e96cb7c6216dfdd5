package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelvaldez/creatorkit-backend/pkg/enums"
)

// PaymentTransaction records one purchase attempt, its fee split, and its
// lifecycle status. PlatformFeeCents + CreatorPayoutCents always equals
// AmountCents; both legs are computed once at creation and never recomputed.
type PaymentTransaction struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PackageID     uuid.UUID `gorm:"column:package_id;type:uuid;not null;index"`
	PackageTitle  string    `gorm:"column:package_title;not null"`
	CreatorID     uuid.UUID `gorm:"column:creator_id;type:uuid;not null;index"`
	CreatorName   string    `gorm:"column:creator_name;not null"`
	BuyerAlias    string    `gorm:"column:buyer_alias;not null"`
	BuyerEmail    *string   `gorm:"column:buyer_email"`
	BuyerWhatsApp *string   `gorm:"column:buyer_whatsapp"`

	AmountCents        int64  `gorm:"column:amount_cents;not null"`
	PlatformFeeCents   int64  `gorm:"column:platform_fee_cents;not null"`
	CreatorPayoutCents int64  `gorm:"column:creator_payout_cents;not null"`
	Currency           string `gorm:"column:currency;not null;default:'usd'"`

	Status enums.TransactionStatus `gorm:"column:status;not null;default:'pending';index"`

	StripeSessionID       *string    `gorm:"column:stripe_session_id;unique"`
	StripePaymentIntentID *string    `gorm:"column:stripe_payment_intent_id"`
	RewardID              *uuid.UUID `gorm:"column:reward_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
