package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
)

// WithdrawalRepository persists withdrawal requests, their refund-attempt
// audit trail and manual-send confirmations.
type WithdrawalRepository struct {
	db *sqlx.DB
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create inserts a new withdrawal request
func (r *WithdrawalRepository) Create(ctx context.Context, w *entities.WithdrawalRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO withdrawal_requests
			(id, user_id, amount, currency, status, auto_refund_total, manual_send_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.ID, w.UserID, w.Amount, w.Currency, w.Status, w.AutoRefundTotal, w.ManualSendTotal, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return nil
}

// GetByID returns a withdrawal request by id
func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.WithdrawalRequest, error) {
	w := &entities.WithdrawalRequest{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, currency, status, auto_refund_total, manual_send_total,
		       rejection_reason, created_at, updated_at, completed_at
		FROM withdrawal_requests WHERE id = $1`, id).
		Scan(&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.Status, &w.AutoRefundTotal,
			&w.ManualSendTotal, &w.RejectionReason, &w.CreatedAt, &w.UpdatedAt, &w.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, entities.ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	return w, nil
}

// GetByUserID returns a user's withdrawal requests, newest first
func (r *WithdrawalRepository) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*entities.WithdrawalRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, currency, status, auto_refund_total, manual_send_total,
		       rejection_reason, created_at, updated_at, completed_at
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer rows.Close()
	return scanWithdrawals(rows)
}

// AppendRefundAttempt adds one audit-trail entry and, for a successful
// attempt, bumps the request's auto-refund total in the same transaction.
func (r *WithdrawalRepository) AppendRefundAttempt(ctx context.Context, a *entities.RefundAttempt) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refund_attempts (id, withdrawal_id, charge_id, amount, outcome, error_message, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.WithdrawalID, a.ChargeID, a.Amount, a.Outcome, a.ErrorMessage, a.AttemptedAt)
	if err != nil {
		return fmt.Errorf("failed to append refund attempt: %w", err)
	}

	if a.Outcome == entities.RefundOutcomeSucceeded {
		_, err = tx.ExecContext(ctx, `
			UPDATE withdrawal_requests
			SET auto_refund_total = auto_refund_total + $2, updated_at = now()
			WHERE id = $1`, a.WithdrawalID, a.Amount)
		if err != nil {
			return fmt.Errorf("failed to update auto refund total: %w", err)
		}
	}

	return tx.Commit()
}

// MarkCompleted transitions a pending request to completed
func (r *WithdrawalRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, entities.WithdrawalStatusCompleted, entities.WithdrawalStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark withdrawal completed: %w", err)
	}
	return requireOneRow(res)
}

// MarkRejected transitions a pending request to rejected with a reason
func (r *WithdrawalRepository) MarkRejected(ctx context.Context, id uuid.UUID, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, rejection_reason = $3, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4`,
		id, entities.WithdrawalStatusRejected, reason, entities.WithdrawalStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark withdrawal rejected: %w", err)
	}
	return requireOneRow(res)
}

// ConfirmManualSend records the operator confirmation, sets the manual
// total and completes the request, all in one transaction. The status
// guard on the UPDATE makes a second confirmation fail instead of
// double-recording.
func (r *WithdrawalRepository) ConfirmManualSend(ctx context.Context, id uuid.UUID, operatorID int64, amount decimal.Decimal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET manual_send_total = $2, status = $3, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4`,
		id, amount, entities.WithdrawalStatusCompleted, entities.WithdrawalStatusPending)
	if err != nil {
		return fmt.Errorf("failed to complete withdrawal: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO manual_send_confirmations (withdrawal_id, operator_id, amount, confirmed_at)
		VALUES ($1, $2, $3, now())`,
		id, operatorID, amount)
	if err != nil {
		return fmt.Errorf("failed to record manual send confirmation: %w", err)
	}

	return tx.Commit()
}

// ListRefundAttempts returns the audit trail of one request in attempt order
func (r *WithdrawalRepository) ListRefundAttempts(ctx context.Context, id uuid.UUID) ([]*entities.RefundAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, withdrawal_id, charge_id, amount, outcome, error_message, attempted_at
		FROM refund_attempts
		WHERE withdrawal_id = $1
		ORDER BY attempted_at`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list refund attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*entities.RefundAttempt
	for rows.Next() {
		a := &entities.RefundAttempt{}
		if err := rows.Scan(&a.ID, &a.WithdrawalID, &a.ChargeID, &a.Amount, &a.Outcome, &a.ErrorMessage, &a.AttemptedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// GetManualSendConfirmation returns the confirmation for a request, or nil
// when none was recorded.
func (r *WithdrawalRepository) GetManualSendConfirmation(ctx context.Context, id uuid.UUID) (*entities.ManualSendConfirmation, error) {
	c := &entities.ManualSendConfirmation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT withdrawal_id, operator_id, amount, confirmed_at
		FROM manual_send_confirmations WHERE withdrawal_id = $1`, id).
		Scan(&c.WithdrawalID, &c.OperatorID, &c.Amount, &c.ConfirmedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manual send confirmation: %w", err)
	}
	return c, nil
}

// CountToday counts withdrawal requests a user created today
func (r *WithdrawalRepository) CountToday(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM withdrawal_requests
		WHERE user_id = $1 AND created_at >= CURRENT_DATE`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}
	return count, nil
}

// ListPendingOlderThan returns pending requests created before the cutoff,
// oldest first. The reminder worker feeds on this.
func (r *WithdrawalRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.WithdrawalRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, currency, status, auto_refund_total, manual_send_total,
		       rejection_reason, created_at, updated_at, completed_at
		FROM withdrawal_requests
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`, entities.WithdrawalStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale withdrawals: %w", err)
	}
	defer rows.Close()
	return scanWithdrawals(rows)
}

func scanWithdrawals(rows *sql.Rows) ([]*entities.WithdrawalRequest, error) {
	var withdrawals []*entities.WithdrawalRequest
	for rows.Next() {
		w := &entities.WithdrawalRequest{}
		if err := rows.Scan(&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.Status, &w.AutoRefundTotal,
			&w.ManualSendTotal, &w.RejectionReason, &w.CreatedAt, &w.UpdatedAt, &w.CompletedAt); err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

func requireOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return entities.ErrInvalidState
	}
	return nil
}
