package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelvaldez/creatorkit-backend/internal/rewards"
	"github.com/angelvaldez/creatorkit-backend/internal/transactions"
	"github.com/angelvaldez/creatorkit-backend/pkg/enums"
	pkgerrors "github.com/angelvaldez/creatorkit-backend/pkg/errors"
	"github.com/angelvaldez/creatorkit-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service applies verified gateway events to the transaction lifecycle.
//
// Handlers are idempotent at the database level: every status transition is a
// conditional update on the pending pre-image, so redelivered or out-of-order
// events collapse into no-ops instead of double-applying.
type Service interface {
	HandleEvent(ctx context.Context, event *stripego.Event) error
}

type service struct {
	txnRepo transactions.Repository
	rewards rewards.Service
	runner  txRunner
	logger  *logger.Logger
}

// NewService builds the webhook event processor.
func NewService(txnRepo transactions.Repository, rewardSvc rewards.Service, runner txRunner, logg *logger.Logger) (Service, error) {
	if txnRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if rewardSvc == nil {
		return nil, fmt.Errorf("rewards service required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		txnRepo: txnRepo,
		rewards: rewardSvc,
		runner:  runner,
		logger:  logg,
	}, nil
}

func (s *service) HandleEvent(ctx context.Context, event *stripego.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}

	ctx = s.logger.WithEventID(ctx, event.ID)

	switch event.Type {
	case stripego.EventTypeCheckoutSessionCompleted:
		return s.handleSessionCompleted(ctx, event)
	case stripego.EventTypeCheckoutSessionExpired:
		return s.handleSessionExpired(ctx, event)
	case stripego.EventTypePaymentIntentPaymentFailed:
		return s.handlePaymentFailed(ctx, event)
	default:
		// Unrecognized types are acknowledged so the gateway stops
		// retrying them.
		s.logger.Info(s.logger.WithField(ctx, "event_type", string(event.Type)), "ignoring unhandled webhook event")
		return nil
	}
}

// handleSessionCompleted settles a paid session: it transitions the
// transaction pending -> completed and, only when this delivery wins the
// transition, mints the reward inside the same database transaction.
func (s *service) handleSessionCompleted(ctx context.Context, event *stripego.Event) error {
	var sess stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session payload")
	}

	transactionID, ok := s.sessionReference(ctx, &sess, "completed")
	if !ok {
		return nil
	}
	ctx = s.logger.WithTransactionID(ctx, transactionID.String())

	if _, err := s.txnRepo.FindByID(ctx, transactionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unknown reference, likely a session created outside this
			// system. Acknowledge so the gateway stops retrying.
			s.logger.Warn(ctx, "completed session references unknown transaction")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}

	paymentIntentID := ""
	if sess.PaymentIntent != nil {
		paymentIntentID = sess.PaymentIntent.ID
	}

	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.txnRepo.WithTx(tx).MarkCompleted(ctx, transactionID, paymentIntentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction completed")
		}
		if !won {
			s.logger.Info(ctx, "transaction already settled, skipping reward issuance")
			return nil
		}

		reward, err := s.rewards.Issue(ctx, tx, transactionID)
		if err != nil {
			return err
		}

		s.logger.Info(s.logger.WithField(ctx, "reward_id", reward.ID.String()), "transaction completed and reward issued")
		return nil
	})
}

func (s *service) handleSessionExpired(ctx context.Context, event *stripego.Event) error {
	var sess stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session payload")
	}

	transactionID, ok := s.sessionReference(ctx, &sess, "expired")
	if !ok {
		return nil
	}
	ctx = s.logger.WithTransactionID(ctx, transactionID.String())

	return s.markTerminal(ctx, transactionID, enums.TransactionStatusExpired)
}

func (s *service) handlePaymentFailed(ctx context.Context, event *stripego.Event) error {
	var intent stripego.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent payload")
	}

	reference := intent.Metadata["transaction_id"]
	if reference == "" {
		// Intents created outside the checkout flow carry no reference.
		s.logger.Warn(ctx, "failed payment intent carries no transaction reference")
		return nil
	}

	transactionID, err := uuid.Parse(reference)
	if err != nil {
		// Foreign metadata on the same account, not ours to settle.
		s.logger.Warn(s.logger.WithField(ctx, "reference", reference), "failed payment intent reference is not a transaction id")
		return nil
	}
	ctx = s.logger.WithTransactionID(ctx, transactionID.String())

	return s.markTerminal(ctx, transactionID, enums.TransactionStatusFailed)
}

// sessionReference extracts the transaction id a checkout session was opened
// with. Sessions created outside this system on the same gateway account
// carry no reference (or an arbitrary one); those are logged and dropped so
// the gateway does not keep redelivering an event nobody can settle.
func (s *service) sessionReference(ctx context.Context, sess *stripego.CheckoutSession, phase string) (uuid.UUID, bool) {
	if sess.ClientReferenceID == "" {
		s.logger.Warn(ctx, phase+" session carries no transaction reference")
		return uuid.Nil, false
	}
	transactionID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "reference", sess.ClientReferenceID), phase+" session reference is not a transaction id")
		return uuid.Nil, false
	}
	return transactionID, true
}

// markTerminal applies pending -> expired|failed. Losing the race against a
// completed (or other terminal) transition is expected and acknowledged.
func (s *service) markTerminal(ctx context.Context, transactionID uuid.UUID, status enums.TransactionStatus) error {
	won, err := s.txnRepo.MarkTerminal(ctx, transactionID, status)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction "+status.String())
	}
	if !won {
		s.logger.Info(s.logger.WithField(ctx, "target_status", status.String()), "transaction no longer pending, ignoring transition")
		return nil
	}
	s.logger.Info(ctx, "transaction marked "+status.String())
	return nil
}
