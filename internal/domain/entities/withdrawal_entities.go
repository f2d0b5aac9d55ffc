package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus represents the status of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"   // Debited, awaiting automatic and/or manual resolution
	WithdrawalStatusCompleted WithdrawalStatus = "completed" // Terminal: fully paid out
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"  // Terminal: debit returned to balance
)

// ValidWithdrawalStatuses contains all valid withdrawal statuses
var ValidWithdrawalStatuses = map[WithdrawalStatus]bool{
	WithdrawalStatusPending:   true,
	WithdrawalStatusCompleted: true,
	WithdrawalStatusRejected:  true,
}

// ValidWithdrawalTransitions defines allowed status transitions
var ValidWithdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:   {WithdrawalStatusCompleted, WithdrawalStatusRejected},
	WithdrawalStatusCompleted: {}, // Terminal
	WithdrawalStatusRejected:  {}, // Terminal
}

// IsValid checks if the status is valid
func (s WithdrawalStatus) IsValid() bool {
	return ValidWithdrawalStatuses[s]
}

// CanTransitionTo checks if transition to new status is allowed
func (s WithdrawalStatus) CanTransitionTo(newStatus WithdrawalStatus) bool {
	allowed, exists := ValidWithdrawalTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusCompleted || s == WithdrawalStatusRejected
}

// ValidateTransition validates and returns error if transition is invalid
func (s WithdrawalStatus) ValidateTransition(newStatus WithdrawalStatus) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid withdrawal status: %s", newStatus)
	}
	if !s.CanTransitionTo(newStatus) {
		return fmt.Errorf("invalid status transition from %s to %s", s, newStatus)
	}
	return nil
}

// RefundOutcome represents the result of one automatic refund attempt.
type RefundOutcome string

const (
	RefundOutcomeSucceeded RefundOutcome = "succeeded"
	RefundOutcomeFailed    RefundOutcome = "failed"
)

// RefundAttempt is one entry of the withdrawal audit trail. An attempt is
// recorded for every refund call, success or failure, in the order the
// payment records were tried.
type RefundAttempt struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	WithdrawalID uuid.UUID       `json:"withdrawal_id" db:"withdrawal_id"`
	ChargeID     string          `json:"charge_id" db:"charge_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Outcome      RefundOutcome   `json:"outcome" db:"outcome"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	AttemptedAt  time.Time       `json:"attempted_at" db:"attempted_at"`
}

// ManualSendConfirmation records the operator's confirmation that the
// outstanding shortfall was transferred out of band.
type ManualSendConfirmation struct {
	WithdrawalID uuid.UUID       `json:"withdrawal_id" db:"withdrawal_id"`
	OperatorID   int64           `json:"operator_id" db:"operator_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	ConfirmedAt  time.Time       `json:"confirmed_at" db:"confirmed_at"`
}

// WithdrawalRequest represents one withdrawal of a user's balance. The
// requested amount is debited immediately on creation; resolution happens
// through automatic refunds of prior payments plus an optional manual
// operator transfer. For a completed request
// AutoRefundTotal + ManualSendTotal always equals Amount.
type WithdrawalRequest struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	UserID          int64            `json:"user_id" db:"user_id"`
	Amount          decimal.Decimal  `json:"amount" db:"amount"`
	Currency        Currency         `json:"currency" db:"currency"`
	Status          WithdrawalStatus `json:"status" db:"status"`
	AutoRefundTotal decimal.Decimal  `json:"auto_refund_total" db:"auto_refund_total"`
	ManualSendTotal decimal.Decimal  `json:"manual_send_total" db:"manual_send_total"`
	RejectionReason *string          `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
}

// Shortfall returns the portion of the request not yet covered by
// successful automatic refunds or a confirmed manual send.
func (w *WithdrawalRequest) Shortfall() decimal.Decimal {
	return w.Amount.Sub(w.AutoRefundTotal).Sub(w.ManualSendTotal)
}

// AuditTrail is the operator-facing breakdown of how a withdrawal was
// resolved.
type AuditTrail struct {
	WithdrawalID    uuid.UUID               `json:"withdrawal_id"`
	UserID          int64                   `json:"user_id"`
	Status          WithdrawalStatus        `json:"status"`
	Amount          decimal.Decimal         `json:"amount"`
	AutoRefundTotal decimal.Decimal         `json:"auto_refund_total"`
	ManualSendTotal decimal.Decimal         `json:"manual_send_total"`
	RefundAttempts  []*RefundAttempt        `json:"refund_attempts"`
	ManualSend      *ManualSendConfirmation `json:"manual_send,omitempty"`
}

// SubmitWithdrawalRequest represents an incoming withdrawal submission
type SubmitWithdrawalRequest struct {
	UserID   int64           `json:"user_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// SubmitWithdrawalResponse represents the response to a withdrawal submission
type SubmitWithdrawalResponse struct {
	WithdrawalID uuid.UUID        `json:"withdrawal_id"`
	Status       WithdrawalStatus `json:"status"`
}

// RefundRunResult is the outcome of one automatic refund pass over a
// pending withdrawal.
type RefundRunResult struct {
	WithdrawalID       uuid.UUID        `json:"withdrawal_id"`
	RefundedTotal      decimal.Decimal  `json:"refunded_total"`
	RemainingShortfall decimal.Decimal  `json:"remaining_shortfall"`
	Status             WithdrawalStatus `json:"status"`
}

// OperatorInstruction is the payload delivered to the admin channel when a
// shortfall needs a manual transfer.
type OperatorInstruction struct {
	WithdrawalID uuid.UUID       `json:"withdrawal_id"`
	UserID       int64           `json:"user_id"`
	Username     string          `json:"username,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     Currency        `json:"currency"`
	RequestedAt  time.Time       `json:"requested_at"`
}
