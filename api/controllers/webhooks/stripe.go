package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelvaldez/creatorkit-backend/api/responses"
	pkgerrors "github.com/angelvaldez/creatorkit-backend/pkg/errors"
	"github.com/angelvaldez/creatorkit-backend/pkg/logger"
	"github.com/angelvaldez/creatorkit-backend/pkg/metrics"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string)
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook verifies and dispatches payment lifecycle events.
//
// Signature verification happens on the raw body before any parsing; an
// unverifiable payload is rejected without touching the event content.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, pm *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			pm.IncWebhook("unknown", "signature_rejected")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			pm.IncWebhook("unknown", "signature_rejected")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify signature"))
			return
		}

		firstDelivery := true
		if guard != nil {
			firstDelivery, err = guard.CheckAndMark(ctx, event.ID)
			if err != nil && logg != nil {
				logg.Warn(logg.WithEventID(ctx, event.ID), "idempotency check failed, processing anyway")
			}
		}
		if !firstDelivery {
			pm.IncWebhook(string(event.Type), "duplicate")
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if guard != nil {
				guard.Release(ctx, event.ID)
			}
			pm.IncWebhook(string(event.Type), "error")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s processed", event.ID))
		}
		pm.IncWebhook(string(event.Type), "processed")
		responses.WriteSuccess(w, nil)
	}
}
