package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/storage/memory"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=65536,t=3,p=2$")

	assert.True(t, VerifyPassword("s3cret", hash))
	assert.False(t, VerifyPassword("wrong", hash))
	assert.False(t, VerifyPassword("s3cret", "not-a-hash"))

	other, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "соль должна быть случайной")
}

func TestAuthenticateThrottles(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	clock := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := NewService(memory.New(), hash, common.ClockFunc(func() time.Time { return clock }))

	require.NoError(t, s.Authenticate("1.2.3.4", "s3cret"))

	for i := 0; i < maxFailedAttempts; i++ {
		assert.ErrorIs(t, s.Authenticate("1.2.3.4", "nope"), common.ErrWrongPassword)
	}
	// Даже верный пароль не принимается, пока действует блокировка
	assert.ErrorIs(t, s.Authenticate("1.2.3.4", "s3cret"), common.ErrTooManyAttempts)
	// Другие клиенты не затронуты
	assert.NoError(t, s.Authenticate("5.6.7.8", "s3cret"))

	clock = clock.Add(attemptWindow + time.Minute)
	assert.NoError(t, s.Authenticate("1.2.3.4", "s3cret"))
}

func TestAuthenticateDisabled(t *testing.T) {
	s := NewService(memory.New(), "", common.ClockFunc(time.Now))
	assert.False(t, s.Enabled())
	assert.ErrorIs(t, s.Authenticate("x", "anything"), common.ErrForbidden)
}

func TestUpsertValidation(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	s := NewService(store, "", common.ClockFunc(time.Now))

	err := s.UpsertBadge(ctx, domain.Badge{ID: " ", Name: "x"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	err = s.UpsertBadge(ctx, domain.Badge{ID: "b", Name: "B", PointsRequired: -1})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	err = s.UpsertStoreItem(ctx, domain.StoreItem{ID: "i", Name: "I", Cost: 10, Category: "weapons"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Category")

	require.NoError(t, s.UpsertStoreItem(ctx, domain.StoreItem{ID: "i", Name: "I", Cost: 10, Category: "plant-pot", IsActive: true}))
	item, err := store.GetStoreItem(ctx, "i")
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.Cost)
}

func TestSeedCatalog(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	s := NewService(store, "", common.ClockFunc(time.Now))

	badgeSet := []domain.Badge{{ID: "b1", Name: "B1", PointsRequired: 10}}
	items := []domain.StoreItem{{ID: "i1", Name: "I1", Cost: 5, IsActive: true}}
	require.NoError(t, s.SeedCatalog(ctx, badgeSet, items))
	// Повторный запуск безопасен
	require.NoError(t, s.SeedCatalog(ctx, badgeSet, items))

	got, err := store.ListBadges(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	list, err := store.ListStoreItems(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
