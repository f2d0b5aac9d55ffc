// Package payments records successful Stars payments and serves them back
// as the refund engine's payment-history lookup.
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// Repository interface for payment persistence
type Repository interface {
	Record(ctx context.Context, p *entities.StarPayment) (inserted bool, err error)
	ListEligible(ctx context.Context, userID int64, currency entities.Currency, paidAfter time.Time) ([]*entities.StarPayment, error)
	MarkRefunded(ctx context.Context, chargeID string) error
}

// Ledger interface for crediting incoming payments
type Ledger interface {
	Credit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error
}

// Service records incoming payments and exposes refund eligibility
type Service struct {
	repo   Repository
	ledger Ledger
	logger *logger.Logger
}

// NewService creates a new payments service
func NewService(repo Repository, ledger Ledger, log *logger.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, logger: log}
}

// RecordPayment stores a successful payment and credits the user's
// balance. The charge id is the idempotency key: a replayed webhook
// records nothing and credits nothing.
func (s *Service) RecordPayment(ctx context.Context, userID int64, chargeID string, amount decimal.Decimal, currency entities.Currency, paidAt time.Time) error {
	if chargeID == "" {
		return errors.New("charge id is required")
	}
	if !amount.IsPositive() {
		return errors.New("payment amount must be positive")
	}

	p := &entities.StarPayment{
		ChargeID: chargeID,
		UserID:   userID,
		Amount:   amount,
		Currency: currency,
		PaidAt:   paidAt,
	}
	inserted, err := s.repo.Record(ctx, p)
	if err != nil {
		return err
	}
	if !inserted {
		// Replayed charge: already recorded and credited.
		s.logger.Debug("Duplicate payment ignored", "user_id", userID)
		return nil
	}

	if err := s.ledger.Credit(ctx, userID, currency, amount, entities.TransactionTypeDeposit, chargeID); err != nil {
		return err
	}

	s.logger.Info("Payment recorded",
		"user_id", userID,
		"amount", amount.String(),
		"currency", currency)
	return nil
}

// ListEligible returns unconsumed payments in the lookback window, newest
// first.
func (s *Service) ListEligible(ctx context.Context, userID int64, currency entities.Currency, paidAfter time.Time) ([]*entities.StarPayment, error) {
	return s.repo.ListEligible(ctx, userID, currency, paidAfter)
}

// MarkRefunded consumes a charge after a successful gateway refund
func (s *Service) MarkRefunded(ctx context.Context, chargeID string) error {
	return s.repo.MarkRefunded(ctx, chargeID)
}
