package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/leadexport-service/internal/entity"
	"github.com/user/leadexport-service/internal/repository"
)

// LedgerRepoImpl implements CreditLedgerRepository over PostgreSQL. The
// table is strictly append-only; balances are derived with an aggregate sum
// on every read.
type LedgerRepoImpl struct {
	db *pgxpool.Pool
}

// NewLedgerRepo creates a new instance of LedgerRepoImpl.
func NewLedgerRepo(db *pgxpool.Pool) *LedgerRepoImpl {
	return &LedgerRepoImpl{db: db}
}

// Balance returns the signed sum of the user's transactions.
func (r *LedgerRepoImpl) Balance(ctx context.Context, userID string) (int, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1;`

	var balance int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("%w: summing balance: %v", repository.ErrStorageUnavailable, err)
	}
	return balance, nil
}

// Record appends one transaction row.
func (r *LedgerRepoImpl) Record(ctx context.Context, tx *entity.CreditTransaction) (string, error) {
	query := `
		INSERT INTO credit_transactions (id, user_id, amount, kind, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.db.Exec(ctx, query, tx.ID, tx.UserID, tx.Amount, tx.Kind, tx.Description, tx.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("%w: inserting transaction: %v", repository.ErrStorageUnavailable, err)
	}
	return tx.ID, nil
}

// HistoryByUser returns the user's transactions, newest first.
func (r *LedgerRepoImpl) HistoryByUser(ctx context.Context, userID string) ([]*entity.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, kind, description, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC;
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying history: %v", repository.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var history []*entity.CreditTransaction
	for rows.Next() {
		var tx entity.CreditTransaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Kind, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning transaction: %v", repository.ErrStorageUnavailable, err)
		}
		history = append(history, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating history: %v", repository.ErrStorageUnavailable, err)
	}
	return history, nil
}
