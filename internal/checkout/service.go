package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v84"

	"github.com/angelvaldez/creatorkit-backend/internal/transactions"
	"github.com/angelvaldez/creatorkit-backend/pkg/config"
	"github.com/angelvaldez/creatorkit-backend/pkg/db/models"
	"github.com/angelvaldez/creatorkit-backend/pkg/enums"
	pkgerrors "github.com/angelvaldez/creatorkit-backend/pkg/errors"
	pkgstripe "github.com/angelvaldez/creatorkit-backend/pkg/stripe"
)

type sessionCreator interface {
	CreateCheckoutSession(ctx context.Context, params pkgstripe.CheckoutSessionParams) (*stripego.CheckoutSession, error)
}

// Service turns a buyer's purchase intent into a pending transaction and a
// hosted payment session redirect.
type Service interface {
	InitiateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
}

// CheckoutInput carries the package, creator, and buyer fields supplied by
// the storefront collaborators.
type CheckoutInput struct {
	PackageID     uuid.UUID
	PackageTitle  string
	PriceCents    int64
	CreatorID     uuid.UUID
	CreatorName   string
	BuyerAlias    string
	BuyerEmail    *string
	BuyerWhatsApp *string
}

// CheckoutResult is returned to the storefront for the browser redirect.
type CheckoutResult struct {
	TransactionID uuid.UUID
	RedirectURL   string
}

type service struct {
	txnRepo transactions.Repository
	gateway sessionCreator
	cfg     config.CheckoutConfig
}

// NewService builds the checkout service.
func NewService(txnRepo transactions.Repository, gateway sessionCreator, cfg config.CheckoutConfig) (Service, error) {
	if txnRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway client required")
	}
	return &service{
		txnRepo: txnRepo,
		gateway: gateway,
		cfg:     cfg,
	}, nil
}

func (s *service) InitiateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	fee, payout := SplitAmount(input.PriceCents)

	transaction := &models.PaymentTransaction{
		ID:                 uuid.New(),
		PackageID:          input.PackageID,
		PackageTitle:       strings.TrimSpace(input.PackageTitle),
		CreatorID:          input.CreatorID,
		CreatorName:        strings.TrimSpace(input.CreatorName),
		BuyerAlias:         strings.TrimSpace(input.BuyerAlias),
		BuyerEmail:         input.BuyerEmail,
		BuyerWhatsApp:      input.BuyerWhatsApp,
		AmountCents:        input.PriceCents,
		PlatformFeeCents:   fee,
		CreatorPayoutCents: payout,
		Currency:           s.cfg.Currency,
		Status:             enums.TransactionStatusPending,
	}

	if err := s.txnRepo.Create(ctx, transaction); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}

	// The gateway call is bounded: a hung session request must fail the
	// checkout rather than hold the buyer's request open.
	gatewayCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	sess, err := s.gateway.CreateCheckoutSession(gatewayCtx, pkgstripe.CheckoutSessionParams{
		ReferenceID: transaction.ID.String(),
		Description: sessionDescription(transaction),
		AmountCents: transaction.AmountCents,
		Currency:    transaction.Currency,
		SuccessURL:  s.successURL(transaction.ID),
		CancelURL:   s.cfg.CancelURL,
	})
	if err != nil {
		// The pending row stays behind as an audit trail; the expiry
		// webhook or manual cleanup reconciles it later. Input checks
		// all ran before the write, so whatever the gateway rejected
		// is reported as a gateway fault.
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeGateway {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create payment session")
	}

	if err := s.txnRepo.AttachSession(ctx, transaction.ID, sess.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach session reference")
	}

	return &CheckoutResult{
		TransactionID: transaction.ID,
		RedirectURL:   sess.URL,
	}, nil
}

func validateInput(input CheckoutInput) error {
	if input.PackageID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "package id is required")
	}
	if strings.TrimSpace(input.PackageTitle) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "package title is required")
	}
	if input.CreatorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "creator id is required")
	}
	if strings.TrimSpace(input.BuyerAlias) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer alias is required")
	}
	if input.PriceCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	return nil
}

func sessionDescription(transaction *models.PaymentTransaction) string {
	if transaction.CreatorName == "" {
		return transaction.PackageTitle
	}
	return fmt.Sprintf("%s by %s", transaction.PackageTitle, transaction.CreatorName)
}

// successURL carries the transaction id plus Stripe's session placeholder,
// which the gateway substitutes before redirecting the buyer back.
func (s *service) successURL(transactionID uuid.UUID) string {
	sep := "?"
	if strings.Contains(s.cfg.SuccessURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%stransaction_id=%s&session_id={CHECKOUT_SESSION_ID}", s.cfg.SuccessURL, sep, transactionID)
}
