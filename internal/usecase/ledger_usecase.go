package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/user/leadexport-service/internal/entity"
	"github.com/user/leadexport-service/internal/repository"
)

// CreditLedger exposes the per-user prepaid balance. The balance is always
// re-derived from the transaction log; there is no mutable counter to drift.
type CreditLedger interface {
	Balance(ctx context.Context, userID string) (int, error)
	Purchase(ctx context.Context, userID string, amount int, description string) (*entity.CreditTransaction, error)
	History(ctx context.Context, userID string) ([]*entity.CreditTransaction, error)

	// CheckAndReserve is the non-mutating admission check: it verifies the
	// balance covers cost but writes nothing. The actual deduction happens
	// only at settlement, so failed work is never charged.
	CheckAndReserve(ctx context.Context, userID string, cost int) error
}

type ledgerUseCase struct {
	ledgerRepo repository.CreditLedgerRepository
}

// NewCreditLedger creates the ledger use case.
func NewCreditLedger(ledgerRepo repository.CreditLedgerRepository) CreditLedger {
	return &ledgerUseCase{ledgerRepo: ledgerRepo}
}

func (uc *ledgerUseCase) Balance(ctx context.Context, userID string) (int, error) {
	balance, err := uc.ledgerRepo.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reading balance for user %s: %w", userID, err)
	}
	return balance, nil
}

func (uc *ledgerUseCase) Purchase(ctx context.Context, userID string, amount int, description string) (*entity.CreditTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("purchase amount must be positive, got %d", amount)
	}

	tx := &entity.CreditTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Kind:        entity.KindPurchase,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := uc.ledgerRepo.Record(ctx, tx); err != nil {
		return nil, fmt.Errorf("recording purchase for user %s: %w", userID, err)
	}

	slog.Info("Credits purchased", "user_id", userID, "amount", amount)
	return tx, nil
}

func (uc *ledgerUseCase) History(ctx context.Context, userID string) ([]*entity.CreditTransaction, error) {
	return uc.ledgerRepo.HistoryByUser(ctx, userID)
}

func (uc *ledgerUseCase) CheckAndReserve(ctx context.Context, userID string, cost int) error {
	if cost <= 0 {
		return fmt.Errorf("export cost must be positive, got %d", cost)
	}
	balance, err := uc.ledgerRepo.Balance(ctx, userID)
	if err != nil {
		return fmt.Errorf("reading balance for admission check: %w", err)
	}
	if balance < cost {
		return repository.ErrInsufficientCredits
	}
	return nil
}
