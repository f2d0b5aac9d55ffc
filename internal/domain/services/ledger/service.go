// Package ledger owns per-user balances. All mutations go through atomic
// debit/credit operations backed by guarded SQL updates; the engine and
// the raffle service hold no balance state of their own.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// Repository interface for balance persistence
type Repository interface {
	Debit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error
	Credit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error
	GetBalance(ctx context.Context, userID int64, currency entities.Currency) (decimal.Decimal, error)
	ListUnmatchedWithdrawalDebits(ctx context.Context) ([]*entities.Transaction, error)
}

// Service provides atomic balance operations
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService creates a new ledger service
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// Debit atomically subtracts amount from a balance. Returns
// ErrInsufficientBalance when the balance cannot cover the amount, and
// ErrLedgerUnavailable on transient storage failures.
func (s *Service) Debit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error {
	if !amount.IsPositive() {
		return errors.New("debit amount must be positive")
	}
	err := s.repo.Debit(ctx, userID, currency, amount, txType, reference)
	if err != nil && !errors.Is(err, entities.ErrInsufficientBalance) {
		s.logger.Error("Ledger debit failed",
			"user_id", userID,
			"currency", currency,
			"amount", amount.String(),
			"error", err)
		return entities.ErrLedgerUnavailable
	}
	return err
}

// Credit atomically adds amount to a balance
func (s *Service) Credit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error {
	if !amount.IsPositive() {
		return errors.New("credit amount must be positive")
	}
	if err := s.repo.Credit(ctx, userID, currency, amount, txType, reference); err != nil {
		s.logger.Error("Ledger credit failed",
			"user_id", userID,
			"currency", currency,
			"amount", amount.String(),
			"error", err)
		return entities.ErrLedgerUnavailable
	}
	return nil
}

// GetBalance returns the user's spendable amount in a currency
func (s *Service) GetBalance(ctx context.Context, userID int64, currency entities.Currency) (decimal.Decimal, error) {
	return s.repo.GetBalance(ctx, userID, currency)
}

// ReconcileUnmatchedDebits reports withdrawal debits that have no
// persisted request behind them. The service never auto-heals these; a
// crash between debit and request creation is handed to a human with the
// full journal context.
func (s *Service) ReconcileUnmatchedDebits(ctx context.Context) ([]*entities.Transaction, error) {
	return s.repo.ListUnmatchedWithdrawalDebits(ctx)
}
