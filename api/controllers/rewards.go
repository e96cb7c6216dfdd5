package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelvaldez/creatorkit-backend/api/responses"
	rewardsvc "github.com/angelvaldez/creatorkit-backend/internal/rewards"
	pkgerrors "github.com/angelvaldez/creatorkit-backend/pkg/errors"
	"github.com/angelvaldez/creatorkit-backend/pkg/logger"
)

// GetReward resolves an access token to its grant state. Expired tokens are
// reported as valid=false rather than an error so the storefront can show a
// renewal prompt.
func GetReward(svc rewardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rewards service unavailable"))
			return
		}

		token := chi.URLParam(r, "token")
		access, err := svc.Validate(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rewardResponse{
			RewardID:      access.Reward.ID,
			TransactionID: access.Reward.TransactionID,
			PackageID:     access.Transaction.PackageID,
			PackageTitle:  access.Transaction.PackageTitle,
			CreatorID:     access.Transaction.CreatorID,
			Valid:         access.Valid,
			ExpiresAt:     access.Reward.ExpiresAt,
		})
	}
}

type rewardResponse struct {
	RewardID      uuid.UUID `json:"reward_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	PackageID     uuid.UUID `json:"package_id"`
	PackageTitle  string    `json:"package_title"`
	CreatorID     uuid.UUID `json:"creator_id"`
	Valid         bool      `json:"valid"`
	ExpiresAt     time.Time `json:"expires_at"`
}
