// Package withdrawal implements the payout reconciliation engine. A
// withdrawal debits the user's balance up front and is then resolved by a
// hybrid protocol: automatic refunds of the user's recent Stars payments,
// with the remainder handed to a human operator for an out-of-band
// transfer that is later confirmed back into the system.
package withdrawal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/internal/pkg/util"
	"github.com/raffle-service/raffle_service/pkg/circuitbreaker"
	"github.com/raffle-service/raffle_service/pkg/logger"
	"github.com/raffle-service/raffle_service/pkg/metrics"
)

// Ledger interface for atomic balance mutations
type Ledger interface {
	Debit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error
	Credit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error
}

// PaymentHistory interface for the prior-payment lookup
type PaymentHistory interface {
	ListEligible(ctx context.Context, userID int64, currency entities.Currency, paidAfter time.Time) ([]*entities.StarPayment, error)
	MarkRefunded(ctx context.Context, chargeID string) error
}

// RefundGateway interface for reversing one specific prior payment.
// A refund is all-or-nothing per charge; there are no partial refunds.
type RefundGateway interface {
	RefundPayment(ctx context.Context, userID int64, chargeID string) error
}

// OperatorNotifier interface for delivering manual-send instructions to a
// human operator. Delivery is best-effort and never awaited for
// correctness.
type OperatorNotifier interface {
	Notify(ctx context.Context, instruction *entities.OperatorInstruction) error
}

// Repository interface for withdrawal persistence
type Repository interface {
	Create(ctx context.Context, w *entities.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.WithdrawalRequest, error)
	GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*entities.WithdrawalRequest, error)
	CountToday(ctx context.Context, userID int64) (int, error)
	AppendRefundAttempt(ctx context.Context, a *entities.RefundAttempt) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkRejected(ctx context.Context, id uuid.UUID, reason string) error
	ConfirmManualSend(ctx context.Context, id uuid.UUID, operatorID int64, amount decimal.Decimal) error
	ListRefundAttempts(ctx context.Context, id uuid.UUID) ([]*entities.RefundAttempt, error)
	GetManualSendConfirmation(ctx context.Context, id uuid.UUID) (*entities.ManualSendConfirmation, error)
}

// Limits bounds what a single user may submit. A zero value disables the
// corresponding check.
type Limits struct {
	// MinAmountStars is the smallest accepted Stars withdrawal.
	MinAmountStars decimal.Decimal
	// MaxPerDay caps how many requests one user may create per calendar
	// day, counted across all statuses.
	MaxPerDay int
}

// Service is the withdrawal reconciliation engine. It exclusively owns
// WithdrawalRequest mutation; balances and payment history belong to their
// collaborators and are only touched through the interfaces above.
type Service struct {
	repo           Repository
	ledger         Ledger
	payments       PaymentHistory
	gateway        RefundGateway
	notifier       OperatorNotifier
	logger         *logger.Logger
	gatewayBreaker *circuitbreaker.CircuitBreaker

	// refundLookback bounds how old a payment may be and still be
	// reversible through the gateway (Telegram enforces 21 days).
	refundLookback time.Duration

	limits Limits

	// requestLocks serializes operations per withdrawal id. Two
	// concurrent refund passes or confirmations on the same request must
	// not interleave; different requests may proceed in parallel.
	requestLocks *util.KeyedMutex
}

// NewService creates the payout engine
func NewService(
	repo Repository,
	ledger Ledger,
	payments PaymentHistory,
	gateway RefundGateway,
	notifier OperatorNotifier,
	refundLookback time.Duration,
	limits Limits,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:           repo,
		ledger:         ledger,
		payments:       payments,
		gateway:        gateway,
		notifier:       notifier,
		logger:         log,
		gatewayBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("refund-gateway")),
		refundLookback: refundLookback,
		limits:         limits,
		requestLocks:   util.NewKeyedMutex(),
	}
}

// Submit debits the requested amount and creates a pending withdrawal.
// The debit comes first and is atomic at the ledger: two concurrent
// submissions cannot both succeed on the same funds, which is what makes
// the request irreversible from the user's perspective the moment it
// exists. Callers are responsible for not submitting the same logical
// withdrawal twice; every call creates a distinct request and a new debit.
func (s *Service) Submit(ctx context.Context, req *entities.SubmitWithdrawalRequest) (*entities.SubmitWithdrawalResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.New("amount must be positive")
	}
	if !req.Currency.IsValid() {
		return nil, errors.New("unsupported currency")
	}
	if req.Currency == entities.CurrencyStars && s.limits.MinAmountStars.IsPositive() && req.Amount.LessThan(s.limits.MinAmountStars) {
		return nil, entities.ErrAmountBelowMinimum
	}

	if s.limits.MaxPerDay > 0 {
		todayCount, err := s.repo.CountToday(ctx, req.UserID)
		if err != nil {
			s.logger.Error("Failed to count today's withdrawals",
				"user_id", req.UserID,
				"error", err)
			return nil, err
		}
		if todayCount >= s.limits.MaxPerDay {
			return nil, entities.ErrDailyLimitReached
		}
	}

	id := uuid.New()

	if err := s.ledger.Debit(ctx, req.UserID, req.Currency, req.Amount, entities.TransactionTypeWithdrawal, id.String()); err != nil {
		if errors.Is(err, entities.ErrInsufficientBalance) {
			return nil, entities.ErrInsufficientBalance
		}
		s.logger.Error("Ledger debit failed",
			"user_id", req.UserID,
			"amount", req.Amount.String(),
			"error", err)
		return nil, entities.ErrLedgerUnavailable
	}

	now := time.Now().UTC()
	w := &entities.WithdrawalRequest{
		ID:              id,
		UserID:          req.UserID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          entities.WithdrawalStatusPending,
		AutoRefundTotal: decimal.Zero,
		ManualSendTotal: decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, w); err != nil {
		// The debit is already journaled under this request id; the
		// unmatched-debit reconciliation report will surface it for the
		// auditor. See ReconcileUnmatchedDebits.
		s.logger.Error("Withdrawal request not persisted after debit, needs reconciliation",
			"withdrawal_id", id.String(),
			"user_id", req.UserID,
			"amount", req.Amount.String(),
			"error", err)
		return nil, err
	}

	metrics.WithdrawalsSubmitted.WithLabelValues(string(req.Currency)).Inc()
	s.logger.Info("Withdrawal submitted",
		"withdrawal_id", id.String(),
		"user_id", req.UserID,
		"amount", req.Amount.String(),
		"currency", req.Currency)

	return &entities.SubmitWithdrawalResponse{WithdrawalID: id, Status: w.Status}, nil
}

// ProcessAutomaticRefunds runs one refund pass over a pending request.
//
// Selection is greedy and deliberately non-optimal: payments are tried
// newest-first as the history lookup returns them, and any record whose
// full amount would push the refunded total past the requested amount is
// skipped rather than split, because the gateway cannot do partial
// refunds. No subset-sum search is performed; attempting records in time
// order keeps the audit trail predictable, at the cost of sometimes
// leaving a larger shortfall than an optimal selection would.
//
// Individual gateway failures are recorded in the audit trail and
// contribute zero; they never abort the pass.
func (s *Service) ProcessAutomaticRefunds(ctx context.Context, withdrawalID uuid.UUID) (*entities.RefundRunResult, error) {
	s.requestLocks.Lock(withdrawalID.String())
	defer s.requestLocks.Unlock(withdrawalID.String())

	w, err := s.repo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != entities.WithdrawalStatusPending {
		return nil, entities.ErrInvalidState
	}

	need := w.Amount.Sub(w.AutoRefundTotal)
	refunded := w.AutoRefundTotal

	if w.Currency.Refundable() && need.IsPositive() {
		cutoff := time.Now().UTC().Add(-s.refundLookback)
		payments, err := s.payments.ListEligible(ctx, w.UserID, w.Currency, cutoff)
		if err != nil {
			return nil, err
		}

		for _, p := range payments {
			if !need.IsPositive() {
				break
			}
			if p.Amount.GreaterThan(need) {
				// Skip-on-overshoot: refunds are full-amount only, and
				// the refunded total must never exceed the request.
				continue
			}

			attempt := &entities.RefundAttempt{
				ID:           uuid.New(),
				WithdrawalID: w.ID,
				ChargeID:     p.ChargeID,
				Amount:       p.Amount,
				AttemptedAt:  time.Now().UTC(),
			}

			refundErr := s.gatewayBreaker.Execute(ctx, func() error {
				return s.gateway.RefundPayment(ctx, w.UserID, p.ChargeID)
			})
			if refundErr != nil {
				msg := refundErr.Error()
				attempt.Outcome = entities.RefundOutcomeFailed
				attempt.ErrorMessage = &msg
				metrics.RefundAttempts.WithLabelValues(string(entities.RefundOutcomeFailed)).Inc()
				s.logger.Warn("Refund attempt failed",
					"withdrawal_id", w.ID.String(),
					"charge", util.RedactChargeID(p.ChargeID),
					"amount", p.Amount.String(),
					"error", refundErr)
			} else {
				attempt.Outcome = entities.RefundOutcomeSucceeded
				metrics.RefundAttempts.WithLabelValues(string(entities.RefundOutcomeSucceeded)).Inc()
			}

			// The attempt row and the total update land in one
			// transaction; a failed gateway call can never move the
			// total.
			if err := s.repo.AppendRefundAttempt(ctx, attempt); err != nil {
				return nil, err
			}

			if attempt.Outcome == entities.RefundOutcomeSucceeded {
				if err := s.payments.MarkRefunded(ctx, p.ChargeID); err != nil {
					s.logger.Error("Failed to mark payment consumed",
						"withdrawal_id", w.ID.String(),
						"charge", util.RedactChargeID(p.ChargeID),
						"error", err)
				}
				refunded = refunded.Add(p.Amount)
				need = need.Sub(p.Amount)
			}
		}
	}

	status := entities.WithdrawalStatusPending
	if need.IsZero() {
		if err := s.repo.MarkCompleted(ctx, w.ID); err != nil {
			return nil, err
		}
		status = entities.WithdrawalStatusCompleted
		metrics.WithdrawalsCompleted.WithLabelValues("auto").Inc()
		s.logger.Info("Withdrawal fully resolved by automatic refunds",
			"withdrawal_id", w.ID.String(),
			"refunded_total", refunded.String())
	} else {
		s.logger.Info("Automatic refund pass left a shortfall",
			"withdrawal_id", w.ID.String(),
			"refunded_total", refunded.String(),
			"shortfall", need.String())
	}

	return &entities.RefundRunResult{
		WithdrawalID:       w.ID,
		RefundedTotal:      refunded,
		RemainingShortfall: need,
		Status:             status,
	}, nil
}

// RequestManualSend emits an instruction to the operator channel for the
// outstanding shortfall. The request stays pending; notification delivery
// is fire-and-forget and a delivery failure does not invalidate the
// returned instruction.
func (s *Service) RequestManualSend(ctx context.Context, withdrawalID uuid.UUID) (*entities.OperatorInstruction, error) {
	s.requestLocks.Lock(withdrawalID.String())
	defer s.requestLocks.Unlock(withdrawalID.String())

	w, err := s.repo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != entities.WithdrawalStatusPending {
		return nil, entities.ErrInvalidState
	}

	shortfall := w.Shortfall()
	if !shortfall.IsPositive() {
		return nil, entities.ErrNoShortfall
	}

	instruction := &entities.OperatorInstruction{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Amount:       shortfall,
		Currency:     w.Currency,
		RequestedAt:  time.Now().UTC(),
	}

	if err := s.notifier.Notify(ctx, instruction); err != nil {
		s.logger.Warn("Operator notification delivery failed",
			"withdrawal_id", w.ID.String(),
			"error", err)
	} else {
		metrics.OperatorInstructions.Inc()
	}

	return instruction, nil
}

// ConfirmManualSend records that the operator transferred the shortfall
// out of band and completes the request. The confirmed amount must equal
// the outstanding shortfall exactly; the system takes the operator at
// their word, so the books have to reconcile to the unit. Confirming an
// already-completed request returns ErrInvalidState rather than
// double-recording.
func (s *Service) ConfirmManualSend(ctx context.Context, withdrawalID uuid.UUID, operatorID int64, confirmedAmount decimal.Decimal) (*entities.WithdrawalRequest, error) {
	s.requestLocks.Lock(withdrawalID.String())
	defer s.requestLocks.Unlock(withdrawalID.String())

	w, err := s.repo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != entities.WithdrawalStatusPending {
		return nil, entities.ErrInvalidState
	}

	shortfall := w.Shortfall()
	if !shortfall.IsPositive() {
		return nil, entities.ErrInvalidState
	}
	if !confirmedAmount.Equal(shortfall) {
		return nil, entities.ErrAmountMismatch
	}

	if err := s.repo.ConfirmManualSend(ctx, w.ID, operatorID, confirmedAmount); err != nil {
		return nil, err
	}

	metrics.WithdrawalsCompleted.WithLabelValues("manual").Inc()
	s.logger.Info("Manual send confirmed",
		"withdrawal_id", w.ID.String(),
		"operator_id", operatorID,
		"amount", confirmedAmount.String())

	return s.repo.GetByID(ctx, w.ID)
}

// Reject cancels a pending withdrawal and returns the full debit to the
// user's balance. The guarded status transition runs first so a
// concurrent second reject cannot credit twice; a crash between the
// transition and the credit shows up in the transaction journal as a
// rejected request without a matching refund entry.
func (s *Service) Reject(ctx context.Context, withdrawalID uuid.UUID, reason string) (*entities.WithdrawalRequest, error) {
	s.requestLocks.Lock(withdrawalID.String())
	defer s.requestLocks.Unlock(withdrawalID.String())

	w, err := s.repo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != entities.WithdrawalStatusPending {
		return nil, entities.ErrInvalidState
	}

	if err := s.repo.MarkRejected(ctx, w.ID, reason); err != nil {
		return nil, err
	}

	if err := s.ledger.Credit(ctx, w.UserID, w.Currency, w.Amount, entities.TransactionTypeRefund, w.ID.String()); err != nil {
		s.logger.Error("Rejection credit failed, needs reconciliation",
			"withdrawal_id", w.ID.String(),
			"user_id", w.UserID,
			"amount", w.Amount.String(),
			"error", err)
		return nil, entities.ErrLedgerUnavailable
	}

	metrics.WithdrawalsRejected.Inc()
	s.logger.Info("Withdrawal rejected",
		"withdrawal_id", w.ID.String(),
		"reason", reason)

	return s.repo.GetByID(ctx, w.ID)
}

// GetWithdrawal returns one request
func (s *Service) GetWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*entities.WithdrawalRequest, error) {
	return s.repo.GetByID(ctx, withdrawalID)
}

// GetUserWithdrawals returns a user's requests, newest first
func (s *Service) GetUserWithdrawals(ctx context.Context, userID int64, limit, offset int) ([]*entities.WithdrawalRequest, error) {
	return s.repo.GetByUserID(ctx, userID, limit, offset)
}

// GetAuditTrail returns the full resolution breakdown for one request:
// every refund attempt with its outcome, and the manual-send confirmation
// when one exists.
func (s *Service) GetAuditTrail(ctx context.Context, withdrawalID uuid.UUID) (*entities.AuditTrail, error) {
	w, err := s.repo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.repo.ListRefundAttempts(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	manual, err := s.repo.GetManualSendConfirmation(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	return &entities.AuditTrail{
		WithdrawalID:    w.ID,
		UserID:          w.UserID,
		Status:          w.Status,
		Amount:          w.Amount,
		AutoRefundTotal: w.AutoRefundTotal,
		ManualSendTotal: w.ManualSendTotal,
		RefundAttempts:  attempts,
		ManualSend:      manual,
	}, nil
}
