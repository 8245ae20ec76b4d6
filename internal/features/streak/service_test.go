package streak

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/storage"
	"serotonyl.ru/wellness-engine/internal/storage/memory"
)

var (
	now       = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	today     = common.DateOf(now)
	yesterday = common.Yesterday(now)
)

func dayPtr(t time.Time) *time.Time { return &t }

func TestAdvanceTransitions(t *testing.T) {
	cases := []struct {
		name       string
		last       *time.Time
		streak     int
		wantStreak int
		wantChange bool
	}{
		{"первая активность", nil, 0, 1, true},
		{"вчера → продолжение", dayPtr(yesterday), 3, 4, true},
		{"сегодня → без изменений", dayPtr(today), 3, 3, false},
		{"позавчера → заново", dayPtr(today.AddDate(0, 0, -2)), 7, 1, true},
		{"давно и серия уже 0", dayPtr(today.AddDate(0, 0, -30)), 0, 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc := &domain.Account{LastActivityDate: tc.last, CurrentStreak: tc.streak, LongestStreak: tc.streak}

			changed := Advance(acc, now)

			assert.Equal(t, tc.wantChange, changed)
			assert.Equal(t, tc.wantStreak, acc.CurrentStreak)
			require.NotNil(t, acc.LastActivityDate)
			if tc.wantChange {
				assert.True(t, acc.LastActivityDate.Equal(today))
			}
			assert.GreaterOrEqual(t, acc.LongestStreak, acc.CurrentStreak)
		})
	}
}

func TestAdvanceIdempotentWithinDay(t *testing.T) {
	once := &domain.Account{LastActivityDate: dayPtr(yesterday), CurrentStreak: 3}
	twice := once.Clone()

	Advance(once, now)
	Advance(twice, now)
	Advance(twice, now.Add(5*time.Hour))

	assert.Equal(t, once, twice)
}

func TestAdvanceUsesLocalCalendarDay(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*60*60+30*60)
	// 00:30 по Калькутте 11 марта — это ещё 10 марта по UTC
	moment := time.Date(2025, 3, 11, 0, 30, 0, 0, kolkata)
	acc := &domain.Account{LastActivityDate: dayPtr(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)), CurrentStreak: 2}

	Advance(acc, moment)

	assert.Equal(t, 3, acc.CurrentStreak)
	assert.True(t, acc.LastActivityDate.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)))
}

func newService(t *testing.T, at time.Time) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewService(store, common.ClockFunc(func() time.Time { return at })), store
}

func seed(t *testing.T, store *memory.Store, userID string, last *time.Time, streakDays int) {
	t.Helper()
	ctx := context.Background()
	_, _, _, err := store.CreateAccount(ctx, userID, now.AddDate(0, 0, -10))
	require.NoError(t, err)
	require.NoError(t, store.WithAccount(ctx, userID, func(tx storage.Tx) error {
		tx.Account().LastActivityDate = last
		tx.Account().CurrentStreak = streakDays
		tx.Account().LongestStreak = streakDays
		return nil
	}))
}

func TestRecordActivityScenario(t *testing.T) {
	s, store := newService(t, now)
	seed(t, store, "u1", dayPtr(yesterday), 3)

	acc, err := s.RecordActivity(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, acc.CurrentStreak)
	assert.True(t, acc.LastActivityDate.Equal(today))

	acc, err = s.RecordActivity(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, acc.CurrentStreak)
}

func TestRecordActivityUnknownUser(t *testing.T) {
	s, _ := newService(t, now)
	_, err := s.RecordActivity(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestResetSweep(t *testing.T) {
	s, store := newService(t, now)
	ctx := context.Background()

	seed(t, store, "active-today", dayPtr(today), 5)
	seed(t, store, "active-yesterday", dayPtr(yesterday), 2)
	seed(t, store, "two-days", dayPtr(today.AddDate(0, 0, -2)), 4)
	seed(t, store, "month", dayPtr(today.AddDate(0, 0, -30)), 9)

	result, err := s.ResetSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 0, result.Failed)

	streaks := map[string]int{}
	for _, id := range []string{"active-today", "active-yesterday", "two-days", "month"} {
		acc, err := store.GetAccount(ctx, id)
		require.NoError(t, err)
		streaks[id] = acc.CurrentStreak
	}
	assert.Equal(t, map[string]int{"active-today": 5, "active-yesterday": 2, "two-days": 0, "month": 0}, streaks)

	// Рекорд не трогаем
	acc, err := store.GetAccount(ctx, "month")
	require.NoError(t, err)
	assert.Equal(t, 9, acc.LongestStreak)

	// Повторный прогон ничего не меняет
	result, err = s.ResetSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.SweepResult{}, result)
}
