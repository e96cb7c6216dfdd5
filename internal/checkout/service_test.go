package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelvaldez/creatorkit-backend/internal/transactions"
	"github.com/angelvaldez/creatorkit-backend/pkg/config"
	"github.com/angelvaldez/creatorkit-backend/pkg/db/models"
	"github.com/angelvaldez/creatorkit-backend/pkg/enums"
	pkgerrors "github.com/angelvaldez/creatorkit-backend/pkg/errors"
	pkgstripe "github.com/angelvaldez/creatorkit-backend/pkg/stripe"
)

type stubTxnRepo struct {
	created  []*models.PaymentTransaction
	attached map[uuid.UUID]string
	createFn func(ctx context.Context, transaction *models.PaymentTransaction) error
}

func newStubTxnRepo() *stubTxnRepo {
	return &stubTxnRepo{attached: make(map[uuid.UUID]string)}
}

func (s *stubTxnRepo) WithTx(tx *gorm.DB) transactions.Repository { return s }
func (s *stubTxnRepo) Create(ctx context.Context, transaction *models.PaymentTransaction) error {
	if s.createFn != nil {
		return s.createFn(ctx, transaction)
	}
	s.created = append(s.created, transaction)
	return nil
}
func (s *stubTxnRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubTxnRepo) AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	s.attached[id] = sessionID
	return nil
}
func (s *stubTxnRepo) MarkCompleted(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error) {
	return false, nil
}
func (s *stubTxnRepo) MarkTerminal(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) (bool, error) {
	return false, nil
}
func (s *stubTxnRepo) LinkReward(ctx context.Context, id, rewardID uuid.UUID) error { return nil }
func (s *stubTxnRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]models.PaymentTransaction, error) {
	return nil, nil
}

type stubGateway struct {
	lastParams *stubGatewayCall
	fn         func() (*stripego.CheckoutSession, error)
}

type stubGatewayCall struct {
	ReferenceID string
	AmountCents int64
	SuccessURL  string
}

func (s *stubGateway) CreateCheckoutSession(ctx context.Context, params pkgstripe.CheckoutSessionParams) (*stripego.CheckoutSession, error) {
	s.lastParams = &stubGatewayCall{
		ReferenceID: params.ReferenceID,
		AmountCents: params.AmountCents,
		SuccessURL:  params.SuccessURL,
	}
	if s.fn != nil {
		return s.fn()
	}
	return &stripego.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.com/pay/cs_test_123"}, nil
}

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		SuccessURL:     "https://creatorkit.example/purchases/complete",
		CancelURL:      "https://creatorkit.example/purchases/cancelled",
		GatewayTimeout: 5 * time.Second,
		Currency:       "usd",
	}
}

func validInput() CheckoutInput {
	return CheckoutInput{
		PackageID:    uuid.New(),
		PackageTitle: "Premium Preset Pack",
		PriceCents:   4999,
		CreatorID:    uuid.New(),
		CreatorName:  "Lena",
		BuyerAlias:   "fan_042",
	}
}

func TestInitiateCheckoutHappyPath(t *testing.T) {
	repo := newStubTxnRepo()
	gateway := &stubGateway{}
	svc, err := NewService(repo, gateway, testCheckoutConfig())
	if err != nil {
		t.Fatalf("service setup: %v", err)
	}

	result, err := svc.InitiateCheckout(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RedirectURL != "https://checkout.stripe.com/pay/cs_test_123" {
		t.Fatalf("unexpected redirect url %q", result.RedirectURL)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one transaction, got %d", len(repo.created))
	}

	transaction := repo.created[0]
	if transaction.Status != enums.TransactionStatusPending {
		t.Fatalf("expected pending status, got %s", transaction.Status)
	}
	if transaction.PlatformFeeCents != 499 || transaction.CreatorPayoutCents != 4500 {
		t.Fatalf("unexpected fee split %d/%d", transaction.PlatformFeeCents, transaction.CreatorPayoutCents)
	}
	if got := repo.attached[transaction.ID]; got != "cs_test_123" {
		t.Fatalf("session not attached, got %q", got)
	}
	if gateway.lastParams.ReferenceID != transaction.ID.String() {
		t.Fatalf("reference id mismatch: %q", gateway.lastParams.ReferenceID)
	}
	if !strings.Contains(gateway.lastParams.SuccessURL, "transaction_id="+transaction.ID.String()) {
		t.Fatalf("success url missing transaction id: %q", gateway.lastParams.SuccessURL)
	}
	if !strings.Contains(gateway.lastParams.SuccessURL, "{CHECKOUT_SESSION_ID}") {
		t.Fatalf("success url missing session placeholder: %q", gateway.lastParams.SuccessURL)
	}
}

func TestInitiateCheckoutRejectsInvalidInput(t *testing.T) {
	repo := newStubTxnRepo()
	gateway := &stubGateway{}
	svc, _ := NewService(repo, gateway, testCheckoutConfig())

	cases := map[string]func(*CheckoutInput){
		"zero price":        func(in *CheckoutInput) { in.PriceCents = 0 },
		"negative price":    func(in *CheckoutInput) { in.PriceCents = -100 },
		"missing package":   func(in *CheckoutInput) { in.PackageID = uuid.Nil },
		"blank title":       func(in *CheckoutInput) { in.PackageTitle = "   " },
		"missing creator":   func(in *CheckoutInput) { in.CreatorID = uuid.Nil },
		"blank buyer alias": func(in *CheckoutInput) { in.BuyerAlias = "" },
	}
	for name, mutate := range cases {
		input := validInput()
		mutate(&input)
		_, err := svc.InitiateCheckout(context.Background(), input)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if len(repo.created) != 0 {
		t.Fatalf("validation failures must not persist transactions, got %d", len(repo.created))
	}
	if gateway.lastParams != nil {
		t.Fatal("validation failures must not reach the gateway")
	}
}

func TestInitiateCheckoutGatewayFailureLeavesPendingRow(t *testing.T) {
	repo := newStubTxnRepo()
	gateway := &stubGateway{
		fn: func() (*stripego.CheckoutSession, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc, _ := NewService(repo, gateway, testCheckoutConfig())

	_, err := svc.InitiateCheckout(context.Background(), validInput())
	if err == nil {
		t.Fatal("expected gateway error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeGateway {
		t.Fatalf("expected gateway error code, got %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("pending transaction should remain, got %d rows", len(repo.created))
	}
	if len(repo.attached) != 0 {
		t.Fatal("no session should be attached after gateway failure")
	}
}

func TestInitiateCheckoutGatewayRejectionIsGatewayError(t *testing.T) {
	repo := newStubTxnRepo()
	gateway := &stubGateway{
		fn: func() (*stripego.CheckoutSession, error) {
			// Stripe rejecting the session request, e.g. an amount
			// below the gateway minimum. Input checks passed, so the
			// caller must not see this as a validation failure.
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, errors.New("amount too small"), "stripe create checkout session rejected")
		},
	}
	svc, _ := NewService(repo, gateway, testCheckoutConfig())

	_, err := svc.InitiateCheckout(context.Background(), validInput())
	if err == nil {
		t.Fatal("expected gateway error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeGateway {
		t.Fatalf("post-write gateway rejection must map to gateway error, got %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("pending transaction should remain, got %d rows", len(repo.created))
	}
}
