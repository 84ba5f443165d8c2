package repository

import (
	"context"

	"github.com/user/leadexport-service/internal/entity"
)

// CreditLedgerRepository is the append-and-read contract over the credit
// transaction log. Implementations must never update or delete rows.
type CreditLedgerRepository interface {
	// Balance returns the signed sum of all of the user's transaction
	// amounts; 0 when the user has no transactions.
	Balance(ctx context.Context, userID string) (int, error)

	// Record appends one transaction and returns its id.
	Record(ctx context.Context, tx *entity.CreditTransaction) (string, error)

	// HistoryByUser returns the user's transactions, newest first.
	HistoryByUser(ctx context.Context, userID string) ([]*entity.CreditTransaction, error)
}
