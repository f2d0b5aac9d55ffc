package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
)

// PaymentRepository persists successful Stars payments. The refund engine
// reads it as the payment-history lookup.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Record stores a successful payment keyed by its Telegram charge id and
// reports whether a row was inserted. Replays of the same charge insert
// nothing.
func (r *PaymentRepository) Record(ctx context.Context, p *entities.StarPayment) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO star_payments (charge_id, user_id, amount, currency, paid_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (charge_id) DO NOTHING`,
		p.ChargeID, p.UserID, p.Amount, p.Currency, p.PaidAt)
	if err != nil {
		return false, fmt.Errorf("failed to record payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to record payment: %w", err)
	}
	return n > 0, nil
}

// ListEligible returns the user's unconsumed payments in the given
// currency paid after the cutoff, newest first. This ordering is the
// contract the refund selection algorithm iterates in.
func (r *PaymentRepository) ListEligible(ctx context.Context, userID int64, currency entities.Currency, paidAfter time.Time) ([]*entities.StarPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT charge_id, user_id, amount, currency, paid_at, refunded_at
		FROM star_payments
		WHERE user_id = $1 AND currency = $2 AND paid_at > $3 AND refunded_at IS NULL
		ORDER BY paid_at DESC`,
		userID, currency, paidAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible payments: %w", err)
	}
	defer rows.Close()

	var payments []*entities.StarPayment
	for rows.Next() {
		p := &entities.StarPayment{}
		if err := rows.Scan(&p.ChargeID, &p.UserID, &p.Amount, &p.Currency, &p.PaidAt, &p.RefundedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkRefunded consumes a charge after a successful gateway refund so it
// can never back a second refund.
func (r *PaymentRepository) MarkRefunded(ctx context.Context, chargeID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE star_payments SET refunded_at = now() WHERE charge_id = $1 AND refunded_at IS NULL`,
		chargeID)
	if err != nil {
		return fmt.Errorf("failed to mark payment refunded: %w", err)
	}
	return nil
}
