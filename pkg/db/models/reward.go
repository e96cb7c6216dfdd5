package models

import (
	"time"

	"github.com/google/uuid"
)

// Reward is the time-limited access credential minted once for a completed
// transaction. The token is opaque: high-entropy random bytes with no
// structural relationship to the owning transaction.
type Reward struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;not null;unique"`
	Token         string    `gorm:"column:token;not null;unique"`
	ExpiresAt     time.Time `gorm:"column:expires_at;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Valid reports whether the credential still grants access at the given time.
func (r Reward) Valid(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}
