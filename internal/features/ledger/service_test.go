package ledger

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/storage"
	"serotonyl.ru/wellness-engine/internal/storage/memory"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	_, _, _, err := store.CreateAccount(context.Background(), "u1", now)
	require.NoError(t, err)
	return store
}

func credit(store storage.AccountStore, userID string, amount int64, txType, description string) error {
	return store.WithAccount(context.Background(), userID, func(tx storage.Tx) error {
		return Credit(tx, amount, txType, description, now)
	})
}

func debit(store storage.AccountStore, userID string, amount int64, txType, description string) error {
	return store.WithAccount(context.Background(), userID, func(tx storage.Tx) error {
		return Debit(tx, amount, txType, description, now)
	})
}

func balance(t *testing.T, store storage.AccountStore) *domain.Account {
	t.Helper()
	acc, err := store.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	return acc
}

func TestCreditAndDebit(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, credit(store, "u1", 100, domain.TxTypeMood, "настроение"))
	assert.Equal(t, int64(100), balance(t, store).PointsBalance)

	require.NoError(t, debit(store, "u1", 30, domain.TxTypePurchase, "горшок"))
	assert.Equal(t, int64(70), balance(t, store).PointsBalance)

	history, err := NewService(store).History(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.KindDebit, history[0].Kind)
	assert.Equal(t, domain.KindCredit, history[1].Kind)
	assert.Equal(t, "горшок", history[0].Description)
}

func TestDebitInsufficientFundsLeavesBalance(t *testing.T) {
	store := newStore(t)

	require.NoError(t, credit(store, "u1", 50, domain.TxTypeJournal, ""))

	err := debit(store, "u1", 60, domain.TxTypePurchase, "")
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)

	acc := balance(t, store)
	assert.Equal(t, int64(50), acc.PointsBalance)
	assert.Equal(t, int64(0), acc.TotalSpent)
}

func TestInvalidAmounts(t *testing.T) {
	store := newStore(t)

	assert.ErrorIs(t, credit(store, "u1", 0, domain.TxTypeMood, ""), common.ErrInvalidAmount)
	assert.ErrorIs(t, debit(store, "u1", -5, domain.TxTypePurchase, ""), common.ErrInvalidAmount)

	history, err := NewService(store).History(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUnknownAccount(t *testing.T) {
	store := newStore(t)

	assert.ErrorIs(t, credit(store, "ghost", 10, domain.TxTypeMood, ""), common.ErrNotFound)
	_, err := NewService(store).History(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

// Баланс никогда не отрицательный и равен сумме начислений минус успешные списания.
func TestBalanceMatchesJournal(t *testing.T) {
	store := newStore(t)
	rnd := rand.New(rand.NewSource(42))

	var credited, debited int64
	for i := 0; i < 300; i++ {
		amount := rnd.Int63n(50) + 1
		if rnd.Intn(2) == 0 {
			require.NoError(t, credit(store, "u1", amount, domain.TxTypeTask, ""))
			credited += amount
			continue
		}
		err := debit(store, "u1", amount, domain.TxTypePurchase, "")
		switch {
		case err == nil:
			debited += amount
		case errors.Is(err, common.ErrInsufficientFunds):
		default:
			t.Fatalf("неожиданная ошибка: %v", err)
		}

		require.GreaterOrEqual(t, balance(t, store).PointsBalance, int64(0))
	}

	acc := balance(t, store)
	assert.Equal(t, credited-debited, acc.PointsBalance)
	assert.Equal(t, credited, acc.TotalEarned)
	assert.Equal(t, debited, acc.TotalSpent)
}
