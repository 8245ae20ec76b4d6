package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// Интеграционные тесты идут только при заданной ENGINE_TEST_DATABASE_URL.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("ENGINE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ENGINE_TEST_DATABASE_URL не задана")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn, 10, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	// Повторный прогон миграций ничего не ломает
	require.NoError(t, Migrate(ctx, pool))

	return NewStore(pool, 3)
}

func TestStoreAccountLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := "it-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Second)

	acc, plant, created, err := s.CreateAccount(ctx, userID, now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, acc.BadgesEarned)
	assert.Equal(t, 100, plant.Health)

	_, _, created, err = s.CreateAccount(ctx, userID, now)
	require.NoError(t, err)
	assert.False(t, created)

	day := common.DateOf(now)
	err = s.WithAccount(ctx, userID, func(tx storage.Tx) error {
		a := tx.Account()
		a.PointsBalance = 40
		a.TotalEarned = 40
		a.CurrentStreak = 1
		a.LongestStreak = 1
		a.LastActivityDate = &day
		a.BadgesEarned = append(a.BadgesEarned, "seedling")
		a.Inventory = append(a.Inventory, "pot")
		a.UpdatedAt = now
		tx.Plant().Health = 90
		tx.AddTask(&domain.DailyTask{Description: "mood", Category: domain.TaskCategoryMood, PointsValue: 5, AssignedDate: day})
		tx.Record(domain.Transaction{Kind: domain.KindCredit, Amount: 40, Type: domain.TxTypeMood, CreatedAt: now})
		return nil
	})
	require.NoError(t, err)

	acc, err = s.GetAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), acc.PointsBalance)
	assert.Equal(t, []string{"seedling"}, acc.BadgesEarned)
	assert.Equal(t, []string{"pot"}, acc.Inventory)
	require.NotNil(t, acc.LastActivityDate)
	assert.True(t, acc.LastActivityDate.Equal(day))

	tasks, err := s.ListTasksForDay(ctx, userID, day)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	history, err := s.ListTransactions(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(40), history[0].Amount)
}

func TestStoreConcurrentIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := "it-" + uuid.NewString()
	_, _, _, err := s.CreateAccount(ctx, userID, time.Now())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.WithAccount(ctx, userID, func(tx storage.Tx) error {
				tx.Account().PointsBalance++
				return nil
			}))
		}()
	}
	wg.Wait()

	acc, err := s.GetAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), acc.PointsBalance)
}

func TestStoreUnknownAccount(t *testing.T) {
	s := newTestStore(t)
	err := s.WithAccount(context.Background(), "it-missing-"+uuid.NewString(), func(storage.Tx) error { return nil })
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestIsRetryable(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	deadlock := &pgconn.PgError{Code: "40P01"}
	unique := &pgconn.PgError{Code: "23505"}

	assert.True(t, isRetryable(serialization))
	assert.True(t, isRetryable(fmt.Errorf("ошибка получения задания: %w", deadlock)))
	assert.False(t, isRetryable(unique))
	assert.False(t, isRetryable(common.ErrConflict))
}
