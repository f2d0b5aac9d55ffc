package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RaffleStatus represents the lifecycle of a raffle
type RaffleStatus string

const (
	RaffleStatusActive    RaffleStatus = "active"
	RaffleStatusFinished  RaffleStatus = "finished"
	RaffleStatusCancelled RaffleStatus = "cancelled"
)

// Raffle is one paid-entry draw. The pot accumulates entry fees; once the
// participant threshold is reached a winner is picked through the signed
// randomness provider and the prize (pot minus commission) is credited to
// the winner's balance.
type Raffle struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	MinParticipants   int             `json:"min_participants" db:"min_participants"`
	MaxParticipants   *int            `json:"max_participants,omitempty" db:"max_participants"`
	EntryFee          decimal.Decimal `json:"entry_fee" db:"entry_fee"`
	Currency          Currency        `json:"currency" db:"currency"`
	CommissionPercent decimal.Decimal `json:"commission_percent" db:"commission_percent"`
	Status            RaffleStatus    `json:"status" db:"status"`
	WinnerID          *int64          `json:"winner_id,omitempty" db:"winner_id"`
	PrizeAmount       *decimal.Decimal `json:"prize_amount,omitempty" db:"prize_amount"`
	DrawProof         []byte          `json:"draw_proof,omitempty" db:"draw_proof"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	FinishedAt        *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
}

// Participant is one paid entry in a raffle. Numbers are assigned in join
// order and are what the random draw indexes into.
type Participant struct {
	ID       int64     `json:"id" db:"id"`
	RaffleID uuid.UUID `json:"raffle_id" db:"raffle_id"`
	UserID   int64     `json:"user_id" db:"user_id"`
	Number   int       `json:"number" db:"number"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// DrawResult carries the signed randomness backing a finished raffle, kept
// verbatim so third parties can verify the draw.
type DrawResult struct {
	WinnerNumber int    `json:"winner_number"`
	SerialNumber int64  `json:"serial_number"`
	Signature    string `json:"signature"`
	RawResponse  []byte `json:"raw_response"`
}
