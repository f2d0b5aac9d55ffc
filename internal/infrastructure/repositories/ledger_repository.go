package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
)

// LedgerRepository persists user balances and the transaction journal.
// Debit and credit each run in a single database transaction so a balance
// change and its journal row land together or not at all.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Debit atomically subtracts amount from the user's balance. The guarded
// UPDATE is what prevents two concurrent debits from both passing a
// balance check: only one of them can match amount >= $3.
func (r *LedgerRepository) Debit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE balances
		SET amount = amount - $3, updated_at = now()
		WHERE user_id = $1 AND currency = $2 AND amount >= $3`,
		userID, currency, amount)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read debit result: %w", err)
	}
	if affected == 0 {
		return entities.ErrInsufficientBalance
	}

	if err := insertTransaction(ctx, tx, userID, txType, amount.Neg(), currency, reference); err != nil {
		return err
	}

	return tx.Commit()
}

// Credit atomically adds amount to the user's balance, creating the
// balance row on first use.
func (r *LedgerRepository) Credit(ctx context.Context, userID int64, currency entities.Currency, amount decimal.Decimal, txType entities.TransactionType, reference string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, currency, amount, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, currency)
		DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = now()`,
		userID, currency, amount)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}

	if err := insertTransaction(ctx, tx, userID, txType, amount, currency, reference); err != nil {
		return err
	}

	return tx.Commit()
}

// GetBalance returns the user's balance in the given currency. A missing
// row reads as zero.
func (r *LedgerRepository) GetBalance(ctx context.Context, userID int64, currency entities.Currency) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT amount FROM balances WHERE user_id = $1 AND currency = $2`,
		userID, currency).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount, nil
}

// ListUnmatchedWithdrawalDebits returns withdrawal journal entries whose
// reference does not correspond to any persisted withdrawal request. These
// are the debit-then-crash survivors the external auditor reconciles by
// hand.
func (r *LedgerRepository) ListUnmatchedWithdrawalDebits(ctx context.Context) ([]*entities.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.type, t.amount, t.currency, t.reference, t.description, t.created_at
		FROM transactions t
		WHERE t.type = 'withdrawal'
		  AND NOT EXISTS (
			SELECT 1 FROM withdrawal_requests w WHERE w.id::text = t.reference
		  )
		ORDER BY t.created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched debits: %w", err)
	}
	defer rows.Close()

	var txs []*entities.Transaction
	for rows.Next() {
		t := &entities.Transaction{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Currency, &t.Reference, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, userID int64, txType entities.TransactionType, amount decimal.Decimal, currency entities.Currency, reference string) error {
	var ref *string
	if reference != "" {
		ref = &reference
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, type, amount, currency, reference)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, txType, amount, currency, ref)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}
