package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelvaldez/creatorkit-backend/api/responses"
	"github.com/angelvaldez/creatorkit-backend/api/validators"
	checkoutsvc "github.com/angelvaldez/creatorkit-backend/internal/checkout"
	pkgerrors "github.com/angelvaldez/creatorkit-backend/pkg/errors"
	"github.com/angelvaldez/creatorkit-backend/pkg/logger"
	"github.com/angelvaldez/creatorkit-backend/pkg/metrics"
)

// Checkout accepts a purchase request and returns the hosted payment redirect.
func Checkout(svc checkoutsvc.Service, pm *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			pm.IncCheckout("rejected")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.InitiateCheckout(r.Context(), checkoutsvc.CheckoutInput{
			PackageID:     payload.PackageID,
			PackageTitle:  payload.PackageTitle,
			PriceCents:    payload.PriceCents,
			CreatorID:     payload.CreatorID,
			CreatorName:   payload.CreatorName,
			BuyerAlias:    payload.BuyerAlias,
			BuyerEmail:    payload.BuyerEmail,
			BuyerWhatsApp: payload.BuyerWhatsApp,
		})
		if err != nil {
			pm.IncCheckout(checkoutOutcome(err))
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pm.IncCheckout("created")
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			TransactionID: result.TransactionID,
			RedirectURL:   result.RedirectURL,
		})
	}
}

func checkoutOutcome(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation:
		return "rejected"
	case pkgerrors.CodeGateway:
		return "gateway_error"
	default:
		return "error"
	}
}

type checkoutRequest struct {
	PackageID     uuid.UUID `json:"package_id" validate:"required"`
	PackageTitle  string    `json:"package_title" validate:"required,max=200"`
	PriceCents    int64     `json:"price_cents" validate:"required,gt=0"`
	CreatorID     uuid.UUID `json:"creator_id" validate:"required"`
	CreatorName   string    `json:"creator_name" validate:"required,max=120"`
	BuyerAlias    string    `json:"buyer_alias" validate:"required,max=120"`
	BuyerEmail    *string   `json:"buyer_email,omitempty" validate:"omitempty,email"`
	BuyerWhatsApp *string   `json:"buyer_whatsapp,omitempty" validate:"omitempty,max=32"`
}

type checkoutResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	RedirectURL   string    `json:"redirect_url"`
}
