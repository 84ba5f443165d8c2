package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/leadexport-service/internal/entity"
	"github.com/user/leadexport-service/internal/repository"
)

func TestPurchaseIncreasesBalance(t *testing.T) {
	repo := &memLedgerRepo{}
	uc := NewCreditLedger(repo)
	ctx := context.Background()

	tx, err := uc.Purchase(ctx, "user-1", 50, "starter pack")
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, entity.KindPurchase, tx.Kind)

	balance, err := uc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, balance)
}

func TestPurchaseRejectsNonPositiveAmount(t *testing.T) {
	uc := NewCreditLedger(&memLedgerRepo{})
	ctx := context.Background()

	_, err := uc.Purchase(ctx, "user-1", 0, "")
	assert.Error(t, err)
	_, err = uc.Purchase(ctx, "user-1", -10, "")
	assert.Error(t, err)

	balance, err := uc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestBalanceIsPerUser(t *testing.T) {
	repo := &memLedgerRepo{}
	uc := NewCreditLedger(repo)
	ctx := context.Background()

	_, err := uc.Purchase(ctx, "alice", 30, "")
	require.NoError(t, err)
	_, err = uc.Purchase(ctx, "bob", 7, "")
	require.NoError(t, err)

	balance, err := uc.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 30, balance)

	balance, err = uc.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 7, balance)
}

func TestBalanceReflectsConsumption(t *testing.T) {
	repo := &memLedgerRepo{}
	uc := NewCreditLedger(repo)
	ctx := context.Background()

	_, err := uc.Purchase(ctx, "user-1", 50, "")
	require.NoError(t, err)

	_, err = repo.Record(ctx, &entity.CreditTransaction{
		ID:     "tx-consume",
		UserID: "user-1",
		Amount: -12,
		Kind:   entity.KindConsumption,
	})
	require.NoError(t, err)

	balance, err := uc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 38, balance)
}

func TestCheckAndReserve(t *testing.T) {
	repo := &memLedgerRepo{}
	uc := NewCreditLedger(repo)
	ctx := context.Background()

	_, err := uc.Purchase(ctx, "user-1", 3, "")
	require.NoError(t, err)

	assert.ErrorIs(t, uc.CheckAndReserve(ctx, "user-1", 5), repository.ErrInsufficientCredits)
	assert.NoError(t, uc.CheckAndReserve(ctx, "user-1", 3))
	assert.Error(t, uc.CheckAndReserve(ctx, "user-1", 0))

	// The admission check writes nothing; the balance is untouched either way.
	balance, err := uc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, balance)
}

func TestHistoryNewestFirst(t *testing.T) {
	repo := &memLedgerRepo{}
	uc := NewCreditLedger(repo)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := uc.Purchase(ctx, "user-1", i*10, fmt.Sprintf("batch %d", i))
		require.NoError(t, err)
	}

	history, err := uc.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 30, history[0].Amount)
	assert.Equal(t, 10, history[2].Amount)
}

// The balance must always equal the signed sum of the transaction log, no
// matter what sequence of credits and debits was applied.
func TestBalanceEqualsSignedSumOfLog(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("balance equals signed sum", prop.ForAll(
		func(amounts []int) bool {
			repo := &memLedgerRepo{}
			uc := NewCreditLedger(repo)
			ctx := context.Background()

			sum := 0
			for i, amount := range amounts {
				kind := entity.KindPurchase
				if amount < 0 {
					kind = entity.KindConsumption
				}
				_, err := repo.Record(ctx, &entity.CreditTransaction{
					ID:        fmt.Sprintf("tx-%d", i),
					UserID:    "prop-user",
					Amount:    amount,
					Kind:      kind,
					CreatedAt: time.Now().UTC(),
				})
				if err != nil {
					return false
				}
				sum += amount
			}

			balance, err := uc.Balance(ctx, "prop-user")
			return err == nil && balance == sum
		},
		gen.SliceOf(gen.IntRange(-50, 100)),
	))

	properties.TestingRun(t)
}
