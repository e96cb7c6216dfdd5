package stripe

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelvaldez/creatorkit-backend/internal/rewards"
	"github.com/angelvaldez/creatorkit-backend/internal/transactions"
	"github.com/angelvaldez/creatorkit-backend/pkg/db/models"
	"github.com/angelvaldez/creatorkit-backend/pkg/enums"
	"github.com/angelvaldez/creatorkit-backend/pkg/logger"
)

type stubTxnRepo struct {
	transaction   *models.PaymentTransaction
	completedWins bool
	terminalWins  bool

	markCompletedCalls int
	markTerminalCalls  []enums.TransactionStatus
	lastPaymentIntent  string
}

func (s *stubTxnRepo) WithTx(tx *gorm.DB) transactions.Repository { return s }
func (s *stubTxnRepo) Create(ctx context.Context, transaction *models.PaymentTransaction) error {
	return nil
}
func (s *stubTxnRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	if s.transaction == nil || s.transaction.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.transaction, nil
}
func (s *stubTxnRepo) AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return nil
}
func (s *stubTxnRepo) MarkCompleted(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error) {
	s.markCompletedCalls++
	s.lastPaymentIntent = paymentIntentID
	return s.completedWins, nil
}
func (s *stubTxnRepo) MarkTerminal(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) (bool, error) {
	s.markTerminalCalls = append(s.markTerminalCalls, status)
	return s.terminalWins, nil
}
func (s *stubTxnRepo) LinkReward(ctx context.Context, id, rewardID uuid.UUID) error { return nil }
func (s *stubTxnRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]models.PaymentTransaction, error) {
	return nil, nil
}

type stubRewards struct {
	issued []uuid.UUID
}

func (s *stubRewards) Issue(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*models.Reward, error) {
	s.issued = append(s.issued, transactionID)
	return &models.Reward{ID: uuid.New(), TransactionID: transactionID}, nil
}

func (s *stubRewards) Validate(ctx context.Context, token string) (*rewards.Access, error) {
	return nil, nil
}

func (s *stubRewards) ForTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Reward, error) {
	return nil, nil
}

type stubRunner struct {
	calls int
}

func (s *stubRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.calls++
	return fn(nil)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func sessionCompletedEvent(t *testing.T, transactionID uuid.UUID) *stripego.Event {
	t.Helper()
	raw, err := json.Marshal(&stripego.CheckoutSession{
		ID:                "cs_test_123",
		ClientReferenceID: transactionID.String(),
		PaymentIntent:     &stripego.PaymentIntent{ID: "pi_test_123"},
	})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripego.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripego.EventTypeCheckoutSessionCompleted,
		Data: &stripego.EventData{Raw: raw},
	}
}

func sessionExpiredEvent(t *testing.T, transactionID uuid.UUID) *stripego.Event {
	t.Helper()
	raw, err := json.Marshal(&stripego.CheckoutSession{
		ID:                "cs_test_123",
		ClientReferenceID: transactionID.String(),
	})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripego.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripego.EventTypeCheckoutSessionExpired,
		Data: &stripego.EventData{Raw: raw},
	}
}

func TestHandleEventCompletedIssuesReward(t *testing.T) {
	transactionID := uuid.New()
	repo := &stubTxnRepo{
		transaction:   &models.PaymentTransaction{ID: transactionID, Status: enums.TransactionStatusPending},
		completedWins: true,
	}
	rewardSvc := &stubRewards{}
	runner := &stubRunner{}
	svc, err := NewService(repo, rewardSvc, runner, testLogger())
	if err != nil {
		t.Fatalf("service setup: %v", err)
	}

	if err := svc.HandleEvent(context.Background(), sessionCompletedEvent(t, transactionID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.markCompletedCalls != 1 {
		t.Fatalf("expected one completion attempt, got %d", repo.markCompletedCalls)
	}
	if repo.lastPaymentIntent != "pi_test_123" {
		t.Fatalf("payment intent not recorded: %q", repo.lastPaymentIntent)
	}
	if len(rewardSvc.issued) != 1 || rewardSvc.issued[0] != transactionID {
		t.Fatalf("expected one reward for %s, got %v", transactionID, rewardSvc.issued)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one db transaction, got %d", runner.calls)
	}
}

func TestHandleEventDuplicateDeliverySkipsReward(t *testing.T) {
	transactionID := uuid.New()
	repo := &stubTxnRepo{
		transaction:   &models.PaymentTransaction{ID: transactionID, Status: enums.TransactionStatusCompleted},
		completedWins: false,
	}
	rewardSvc := &stubRewards{}
	svc, _ := NewService(repo, rewardSvc, &stubRunner{}, testLogger())

	if err := svc.HandleEvent(context.Background(), sessionCompletedEvent(t, transactionID)); err != nil {
		t.Fatalf("duplicate delivery must be acknowledged, got %v", err)
	}
	if len(rewardSvc.issued) != 0 {
		t.Fatalf("duplicate delivery must not issue a reward, got %v", rewardSvc.issued)
	}
}

func TestHandleEventUnknownTransactionAcknowledged(t *testing.T) {
	repo := &stubTxnRepo{}
	rewardSvc := &stubRewards{}
	runner := &stubRunner{}
	svc, _ := NewService(repo, rewardSvc, runner, testLogger())

	if err := svc.HandleEvent(context.Background(), sessionCompletedEvent(t, uuid.New())); err != nil {
		t.Fatalf("unknown transaction must be acknowledged, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatal("no db transaction expected for unknown reference")
	}
}

func TestHandleEventExpiredAfterCompletionIsNoop(t *testing.T) {
	transactionID := uuid.New()
	repo := &stubTxnRepo{
		transaction:  &models.PaymentTransaction{ID: transactionID, Status: enums.TransactionStatusCompleted},
		terminalWins: false,
	}
	svc, _ := NewService(repo, &stubRewards{}, &stubRunner{}, testLogger())

	if err := svc.HandleEvent(context.Background(), sessionExpiredEvent(t, transactionID)); err != nil {
		t.Fatalf("late expiry must be acknowledged, got %v", err)
	}
	if len(repo.markTerminalCalls) != 1 || repo.markTerminalCalls[0] != enums.TransactionStatusExpired {
		t.Fatalf("expected one expired attempt, got %v", repo.markTerminalCalls)
	}
}

func TestHandleEventPaymentFailedMarksTransaction(t *testing.T) {
	transactionID := uuid.New()
	repo := &stubTxnRepo{terminalWins: true}
	svc, _ := NewService(repo, &stubRewards{}, &stubRunner{}, testLogger())

	raw, err := json.Marshal(&stripego.PaymentIntent{
		ID:       "pi_test_456",
		Metadata: map[string]string{"transaction_id": transactionID.String()},
	})
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	event := &stripego.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripego.EventTypePaymentIntentPaymentFailed,
		Data: &stripego.EventData{Raw: raw},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.markTerminalCalls) != 1 || repo.markTerminalCalls[0] != enums.TransactionStatusFailed {
		t.Fatalf("expected one failed attempt, got %v", repo.markTerminalCalls)
	}
}

func TestHandleEventForeignSessionAcknowledged(t *testing.T) {
	repo := &stubTxnRepo{}
	rewardSvc := &stubRewards{}
	runner := &stubRunner{}
	svc, _ := NewService(repo, rewardSvc, runner, testLogger())

	// A session opened directly on the gateway account carries no
	// client reference; the delivery must still be acknowledged.
	raw, err := json.Marshal(&stripego.CheckoutSession{ID: "cs_foreign_1"})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	event := &stripego.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripego.EventTypeCheckoutSessionCompleted,
		Data: &stripego.EventData{Raw: raw},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("foreign completed session must be acknowledged, got %v", err)
	}
	if runner.calls != 0 || len(rewardSvc.issued) != 0 {
		t.Fatal("foreign session must not trigger settlement")
	}
}

func TestHandleEventForeignReferenceAcknowledged(t *testing.T) {
	repo := &stubTxnRepo{}
	svc, _ := NewService(repo, &stubRewards{}, &stubRunner{}, testLogger())

	raw, err := json.Marshal(&stripego.CheckoutSession{
		ID:                "cs_foreign_2",
		ClientReferenceID: "order-20260831-0042",
	})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	event := &stripego.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripego.EventTypeCheckoutSessionExpired,
		Data: &stripego.EventData{Raw: raw},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("foreign expired session must be acknowledged, got %v", err)
	}
	if len(repo.markTerminalCalls) != 0 {
		t.Fatal("foreign reference must not touch the repository")
	}
}

func TestHandleEventIgnoresUnknownType(t *testing.T) {
	repo := &stubTxnRepo{}
	svc, _ := NewService(repo, &stubRewards{}, &stubRunner{}, testLogger())

	event := &stripego.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripego.EventType("charge.refunded"),
		Data: &stripego.EventData{Raw: []byte("{}")},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unhandled types must be acknowledged, got %v", err)
	}
	if repo.markCompletedCalls != 0 || len(repo.markTerminalCalls) != 0 {
		t.Fatal("unhandled types must not touch the repository")
	}
}
