package entities

import "errors"

// Withdrawal engine error taxonomy. Collaborator failures are translated
// into these at the operation boundary; none of them leaves a request in a
// partially mutated accounting state.
var (
	// ErrInsufficientBalance is returned when the ledger debit fails at
	// submission; no request is created.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidState is returned when an operation is attempted on a
	// request whose status forbids it.
	ErrInvalidState = errors.New("operation not allowed in current withdrawal state")

	// ErrAmountMismatch is returned when a manual-send confirmation does
	// not equal the outstanding shortfall exactly.
	ErrAmountMismatch = errors.New("confirmed amount does not match outstanding shortfall")

	// ErrLedgerUnavailable is returned on transient ledger failures; the
	// request stays in its pre-operation state and the caller may retry.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrWithdrawalNotFound is returned for lookups of unknown requests.
	ErrWithdrawalNotFound = errors.New("withdrawal request not found")

	// ErrNoShortfall is returned when a manual send is requested for a
	// request that is already fully covered.
	ErrNoShortfall = errors.New("withdrawal has no outstanding shortfall")

	// ErrAmountBelowMinimum is returned when a submission is smaller than
	// the configured minimum withdrawal amount.
	ErrAmountBelowMinimum = errors.New("amount is below the minimum withdrawal")

	// ErrDailyLimitReached is returned when the user has already created
	// the allowed number of withdrawal requests today.
	ErrDailyLimitReached = errors.New("daily withdrawal limit reached")
)

// Raffle errors
var (
	ErrRaffleNotFound     = errors.New("raffle not found")
	ErrRaffleNotJoinable  = errors.New("raffle is not accepting participants")
	ErrAlreadyParticipant = errors.New("user already joined this raffle")
	ErrRaffleNotDrawable  = errors.New("raffle has not reached the participant threshold")
)

// ErrorResponse is the standard error envelope for API responses
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
