// Package raffle runs paid-entry draws: users buy in from their balance,
// and once the participant threshold is reached a winner is picked
// through a signed randomness provider and paid from the pot minus the
// house commission.
package raffle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/logger"
	"github.com/raffle-service/raffle_service/pkg/metrics"
)

// Repository interface for raffle persistence
type Repository interface {
	Create(ctx context.Context, raffle *entities.Raffle) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Raffle, error)
	ListActive(ctx context.Context) ([]*entities.Raffle, error)
	AddParticipant(ctx context.Context, raffleID uuid.UUID, userID int64) (*entities.Participant, error)
	CountParticipants(ctx context.Context, raffleID uuid.UUID) (int, error)
	GetParticipantByNumber(ctx context.Context, raffleID uuid.UUID, number int) (*entities.Participant, error)
	Finish(ctx context.Context, raffleID uuid.UUID, winnerID int64, prize decimal.Decimal, proof []byte) error
}

// Ledger interface for entry fees and prize credits
type Ledger interface {
	Debit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error
	Credit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error
}

// RandomSource interface for verifiable winner selection
type RandomSource interface {
	SignedIntBetween(ctx context.Context, min, max int) (*entities.DrawResult, error)
}

// WinnerNotifier interface for telling the winner and the operators about
// a finished draw. Best-effort.
type WinnerNotifier interface {
	NotifyRaffleWon(ctx context.Context, userID int64, raffleID uuid.UUID, prize decimal.Decimal, currency entities.Currency) error
}

// Service coordinates the raffle lifecycle
type Service struct {
	repo     Repository
	ledger   Ledger
	random   RandomSource
	notifier WinnerNotifier
	logger   *logger.Logger
}

// NewService creates a new raffle service
func NewService(repo Repository, ledger Ledger, random RandomSource, notifier WinnerNotifier, log *logger.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, random: random, notifier: notifier, logger: log}
}

// CreateRaffle opens a new raffle for entries
func (s *Service) CreateRaffle(ctx context.Context, minParticipants int, maxParticipants *int, entryFee decimal.Decimal, currency entities.Currency, commissionPercent decimal.Decimal) (*entities.Raffle, error) {
	raffle := &entities.Raffle{
		ID:                uuid.New(),
		MinParticipants:   minParticipants,
		MaxParticipants:   maxParticipants,
		EntryFee:          entryFee,
		Currency:          currency,
		CommissionPercent: commissionPercent,
		Status:            entities.RaffleStatusActive,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, raffle); err != nil {
		return nil, err
	}

	s.logger.Info("Raffle created",
		"raffle_id", raffle.ID.String(),
		"entry_fee", entryFee.String(),
		"currency", currency,
		"min_participants", minParticipants)
	return raffle, nil
}

// Join debits the entry fee and adds the user to the raffle. The debit
// happens first; if adding the participant fails afterwards the fee is
// credited back.
func (s *Service) Join(ctx context.Context, raffleID uuid.UUID, userID int64) (*entities.Participant, error) {
	raffle, err := s.repo.GetByID(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if raffle.Status != entities.RaffleStatusActive {
		return nil, entities.ErrRaffleNotJoinable
	}
	if raffle.MaxParticipants != nil {
		count, err := s.repo.CountParticipants(ctx, raffleID)
		if err != nil {
			return nil, err
		}
		if count >= *raffle.MaxParticipants {
			return nil, entities.ErrRaffleNotJoinable
		}
	}

	if err := s.ledger.Debit(ctx, userID, raffle.Currency, raffle.EntryFee, entities.TransactionTypeRaffleEntry, raffleID.String()); err != nil {
		return nil, err
	}

	participant, err := s.repo.AddParticipant(ctx, raffleID, userID)
	if err != nil {
		if creditErr := s.ledger.Credit(ctx, userID, raffle.Currency, raffle.EntryFee, entities.TransactionTypeRefund, raffleID.String()); creditErr != nil {
			s.logger.Error("Entry fee compensation failed",
				"raffle_id", raffleID.String(),
				"user_id", userID,
				"error", creditErr)
		}
		return nil, err
	}

	s.logger.Info("Raffle joined",
		"raffle_id", raffleID.String(),
		"user_id", userID,
		"number", participant.Number)
	return participant, nil
}

// Draw picks a winner once the participant threshold is met, credits the
// prize (pot minus commission) to the winner's balance and stores the
// signed randomness proof with the raffle.
func (s *Service) Draw(ctx context.Context, raffleID uuid.UUID) (*entities.Raffle, error) {
	raffle, err := s.repo.GetByID(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if raffle.Status != entities.RaffleStatusActive {
		return nil, entities.ErrInvalidState
	}

	count, err := s.repo.CountParticipants(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if count < raffle.MinParticipants {
		return nil, entities.ErrRaffleNotDrawable
	}

	result, err := s.random.SignedIntBetween(ctx, 1, count)
	if err != nil {
		return nil, err
	}

	winner, err := s.repo.GetParticipantByNumber(ctx, raffleID, result.WinnerNumber)
	if err != nil {
		return nil, err
	}

	pot := raffle.EntryFee.Mul(decimal.NewFromInt(int64(count)))
	commission := pot.Mul(raffle.CommissionPercent).Div(decimal.NewFromInt(100))
	prize := pot.Sub(commission)

	// Guarded transition first so a concurrent draw cannot pay twice.
	if err := s.repo.Finish(ctx, raffleID, winner.UserID, prize, result.RawResponse); err != nil {
		return nil, err
	}

	if err := s.ledger.Credit(ctx, winner.UserID, raffle.Currency, prize, entities.TransactionTypeRaffleWin, raffleID.String()); err != nil {
		s.logger.Error("Prize credit failed, needs reconciliation",
			"raffle_id", raffleID.String(),
			"winner_id", winner.UserID,
			"prize", prize.String(),
			"error", err)
		return nil, err
	}

	metrics.RaffleDraws.Inc()
	s.logger.Info("Raffle drawn",
		"raffle_id", raffleID.String(),
		"winner_id", winner.UserID,
		"winner_number", result.WinnerNumber,
		"prize", prize.String(),
		"random_serial", result.SerialNumber)

	if s.notifier != nil {
		if err := s.notifier.NotifyRaffleWon(ctx, winner.UserID, raffleID, prize, raffle.Currency); err != nil {
			s.logger.Warn("Winner notification failed",
				"raffle_id", raffleID.String(),
				"winner_id", winner.UserID,
				"error", err)
		}
	}

	return s.repo.GetByID(ctx, raffleID)
}

// GetRaffle returns one raffle
func (s *Service) GetRaffle(ctx context.Context, raffleID uuid.UUID) (*entities.Raffle, error) {
	return s.repo.GetByID(ctx, raffleID)
}

// ListActive returns raffles currently accepting entries
func (s *Service) ListActive(ctx context.Context) ([]*entities.Raffle, error) {
	return s.repo.ListActive(ctx)
}
