package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelvaldez/creatorkit-backend/api/responses"
	rewardsvc "github.com/angelvaldez/creatorkit-backend/internal/rewards"
	"github.com/angelvaldez/creatorkit-backend/internal/transactions"
	"github.com/angelvaldez/creatorkit-backend/pkg/db/models"
	pkgerrors "github.com/angelvaldez/creatorkit-backend/pkg/errors"
	"github.com/angelvaldez/creatorkit-backend/pkg/logger"
)

// GetTransaction returns the lifecycle view of a single transaction. The
// storefront polls it from the return page while the webhook settles; once a
// reward is linked the response carries the access token for the buyer.
func GetTransaction(repo transactions.Repository, rewardSvc rewardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions repository unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction id"))
			return
		}

		transaction, err := repo.FindByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction"))
			return
		}

		resp := newTransactionResponse(transaction)
		if transaction.RewardID != nil && rewardSvc != nil {
			reward, err := rewardSvc.ForTransaction(r.Context(), transaction.ID)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithTransactionID(r.Context(), transaction.ID.String()), "linked reward could not be loaded")
				}
			} else {
				resp.RewardToken = reward.Token
				resp.RewardExpiresAt = &reward.ExpiresAt
			}
		}

		responses.WriteSuccess(w, resp)
	}
}

// ListCreatorTransactions returns a creator's recent sales, newest first.
func ListCreatorTransactions(repo transactions.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions repository unavailable"))
			return
		}

		creatorID, err := uuid.Parse(chi.URLParam(r, "creatorID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid creator id"))
			return
		}

		rows, err := repo.ListByCreator(r.Context(), creatorID, parseLimit(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions"))
			return
		}

		out := make([]transactionResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newTransactionResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"transactions": out})
	}
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0
		}
		limit = limit*10 + int(c-'0')
		if limit > 100 {
			return 100
		}
	}
	return limit
}

type transactionResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PackageID          uuid.UUID  `json:"package_id"`
	PackageTitle       string     `json:"package_title"`
	CreatorID          uuid.UUID  `json:"creator_id"`
	CreatorName        string     `json:"creator_name"`
	BuyerAlias         string     `json:"buyer_alias"`
	AmountCents        int64      `json:"amount_cents"`
	PlatformFeeCents   int64      `json:"platform_fee_cents"`
	CreatorPayoutCents int64      `json:"creator_payout_cents"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	RewardID           *uuid.UUID `json:"reward_id,omitempty"`
	RewardToken        string     `json:"reward_token,omitempty"`
	RewardExpiresAt    *time.Time `json:"reward_expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func newTransactionResponse(transaction *models.PaymentTransaction) transactionResponse {
	return transactionResponse{
		ID:                 transaction.ID,
		PackageID:          transaction.PackageID,
		PackageTitle:       transaction.PackageTitle,
		CreatorID:          transaction.CreatorID,
		CreatorName:        transaction.CreatorName,
		BuyerAlias:         transaction.BuyerAlias,
		AmountCents:        transaction.AmountCents,
		PlatformFeeCents:   transaction.PlatformFeeCents,
		CreatorPayoutCents: transaction.CreatorPayoutCents,
		Currency:           transaction.Currency,
		Status:             transaction.Status.String(),
		RewardID:           transaction.RewardID,
		CreatedAt:          transaction.CreatedAt,
		UpdatedAt:          transaction.UpdatedAt,
	}
}
