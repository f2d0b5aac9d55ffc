package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency identifies the unit a balance or payment is denominated in.
type Currency string

const (
	CurrencyStars Currency = "stars" // Telegram Stars (XTR on the Bot API)
	CurrencyRub   Currency = "rub"
	CurrencyTon   Currency = "ton"
)

// IsValid checks if the currency is supported
func (c Currency) IsValid() bool {
	return c == CurrencyStars || c == CurrencyRub || c == CurrencyTon
}

// Refundable reports whether payments in this currency can be reversed
// through the refund gateway. Only Stars payments have an API-level refund.
func (c Currency) Refundable() bool {
	return c == CurrencyStars
}

// StarPayment is a read-only view of a prior successful payment, keyed by
// the Telegram payment charge id. A charge can back at most one successful
// refund; RefundedAt marks consumption.
type StarPayment struct {
	ChargeID   string          `json:"charge_id" db:"charge_id"`
	UserID     int64           `json:"user_id" db:"user_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Currency   Currency        `json:"currency" db:"currency"`
	PaidAt     time.Time       `json:"paid_at" db:"paid_at"`
	RefundedAt *time.Time      `json:"refunded_at,omitempty" db:"refunded_at"`
}

// TransactionType classifies ledger movements
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdrawal  TransactionType = "withdrawal"
	TransactionTypeRaffleEntry TransactionType = "raffle_entry"
	TransactionTypeRaffleWin   TransactionType = "raffle_win"
	TransactionTypeRefund      TransactionType = "refund"
)

// Transaction is one movement against a user balance. Every debit and
// credit the ledger performs leaves a transaction row behind, which is what
// the external auditor reconciles against.
type Transaction struct {
	ID          int64           `json:"id" db:"id"`
	UserID      int64           `json:"user_id" db:"user_id"`
	Type        TransactionType `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Currency    Currency        `json:"currency" db:"currency"`
	Reference   *string         `json:"reference,omitempty" db:"reference"`
	Description *string         `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Balance is a user's spendable amount in one currency
type Balance struct {
	UserID    int64           `json:"user_id" db:"user_id"`
	Currency  Currency        `json:"currency" db:"currency"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
