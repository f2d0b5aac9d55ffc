package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
)

// RaffleRepository persists raffles and their participants
type RaffleRepository struct {
	db *sqlx.DB
}

// NewRaffleRepository creates a new raffle repository
func NewRaffleRepository(db *sqlx.DB) *RaffleRepository {
	return &RaffleRepository{db: db}
}

// Create inserts a new raffle
func (r *RaffleRepository) Create(ctx context.Context, raffle *entities.Raffle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO raffles (id, min_participants, max_participants, entry_fee, currency,
		                     commission_percent, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		raffle.ID, raffle.MinParticipants, raffle.MaxParticipants, raffle.EntryFee,
		raffle.Currency, raffle.CommissionPercent, raffle.Status, raffle.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create raffle: %w", err)
	}
	return nil
}

// GetByID returns a raffle by id
func (r *RaffleRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Raffle, error) {
	raffle := &entities.Raffle{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, min_participants, max_participants, entry_fee, currency, commission_percent,
		       status, winner_id, prize_amount, draw_proof, created_at, finished_at
		FROM raffles WHERE id = $1`, id).
		Scan(&raffle.ID, &raffle.MinParticipants, &raffle.MaxParticipants, &raffle.EntryFee,
			&raffle.Currency, &raffle.CommissionPercent, &raffle.Status, &raffle.WinnerID,
			&raffle.PrizeAmount, &raffle.DrawProof, &raffle.CreatedAt, &raffle.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, entities.ErrRaffleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	return raffle, nil
}

// ListActive returns raffles still accepting participants
func (r *RaffleRepository) ListActive(ctx context.Context) ([]*entities.Raffle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, min_participants, max_participants, entry_fee, currency, commission_percent,
		       status, winner_id, prize_amount, draw_proof, created_at, finished_at
		FROM raffles WHERE status = $1 ORDER BY created_at DESC`, entities.RaffleStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list raffles: %w", err)
	}
	defer rows.Close()

	var raffles []*entities.Raffle
	for rows.Next() {
		raffle := &entities.Raffle{}
		if err := rows.Scan(&raffle.ID, &raffle.MinParticipants, &raffle.MaxParticipants,
			&raffle.EntryFee, &raffle.Currency, &raffle.CommissionPercent, &raffle.Status,
			&raffle.WinnerID, &raffle.PrizeAmount, &raffle.DrawProof, &raffle.CreatedAt,
			&raffle.FinishedAt); err != nil {
			return nil, err
		}
		raffles = append(raffles, raffle)
	}
	return raffles, rows.Err()
}

// AddParticipant appends a user to a raffle with the next sequential
// number. The unique constraint on (raffle_id, user_id) turns a double
// join into ErrAlreadyParticipant.
func (r *RaffleRepository) AddParticipant(ctx context.Context, raffleID uuid.UUID, userID int64) (*entities.Participant, error) {
	p := &entities.Participant{RaffleID: raffleID, UserID: userID}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO participants (raffle_id, user_id, number)
		VALUES ($1, $2, (SELECT COALESCE(MAX(number), 0) + 1 FROM participants WHERE raffle_id = $1))
		RETURNING id, number, joined_at`,
		raffleID, userID).Scan(&p.ID, &p.Number, &p.JoinedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, entities.ErrAlreadyParticipant
		}
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}
	return p, nil
}

// CountParticipants returns the number of entries in a raffle
func (r *RaffleRepository) CountParticipants(ctx context.Context, raffleID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE raffle_id = $1`, raffleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// GetParticipantByNumber resolves the entry the draw landed on
func (r *RaffleRepository) GetParticipantByNumber(ctx context.Context, raffleID uuid.UUID, number int) (*entities.Participant, error) {
	p := &entities.Participant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, raffle_id, user_id, number, joined_at
		FROM participants WHERE raffle_id = $1 AND number = $2`,
		raffleID, number).Scan(&p.ID, &p.RaffleID, &p.UserID, &p.Number, &p.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("participant number %d not found in raffle %s", number, raffleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// Finish records the winner, prize and draw proof and closes the raffle.
// The status guard keeps a concurrent double draw from finishing twice.
func (r *RaffleRepository) Finish(ctx context.Context, raffleID uuid.UUID, winnerID int64, prize decimal.Decimal, proof []byte) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE raffles
		SET status = $2, winner_id = $3, prize_amount = $4, draw_proof = $5, finished_at = now()
		WHERE id = $1 AND status = $6`,
		raffleID, entities.RaffleStatusFinished, winnerID, prize, proof, entities.RaffleStatusActive)
	if err != nil {
		return fmt.Errorf("failed to finish raffle: %w", err)
	}
	return requireOneRow(res)
}
