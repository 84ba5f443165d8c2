package entity

import "time"

// TransactionKind tags the business reason for a ledger entry.
type TransactionKind string

const (
	KindPurchase    TransactionKind = "purchase"
	KindConsumption TransactionKind = "consumption"
	KindRefund      TransactionKind = "refund"
)

// CreditTransaction mirrors the `credit_transactions` PostgreSQL table. The
// ledger is append-only: rows are never updated or deleted, and a user's
// balance is always the signed sum of their rows rather than a maintained
// counter.
type CreditTransaction struct {
	ID          string
	UserID      string
	Amount      int // positive = credit, negative = consumption
	Kind        TransactionKind
	Description string
	CreatedAt   time.Time
}
