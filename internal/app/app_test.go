package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/wellness-engine/internal/config"
	"serotonyl.ru/wellness-engine/internal/features/badges"
	"serotonyl.ru/wellness-engine/internal/features/shop"
	"serotonyl.ru/wellness-engine/internal/httpapi/middleware"
)

func TestNewInMemory(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)

	badgeList, err := a.Store.ListBadges(ctx)
	require.NoError(t, err)
	assert.Len(t, badgeList, len(badges.DefaultCatalog))
	items, err := a.Store.ListStoreItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, len(shop.DefaultCatalog))

	// Повторное заполнение ничего не дублирует
	require.NoError(t, a.Seed(ctx))
	badgeList, err = a.Store.ListBadges(ctx)
	require.NoError(t, err)
	assert.Len(t, badgeList, len(badges.DefaultCatalog))

	token, err := middleware.IssueToken([]byte(cfg.HTTPJWTSecret), "u1", time.Hour, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/register", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	assert.ElementsMatch(t, []string{"decay", "streaks", "tasks"}, a.Scheduler.Names())
}

func TestNewSkipsSeedWhenDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.AppSeedCatalog = false

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	list, err := a.Store.ListBadges(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNewUnknownStorage(t *testing.T) {
	cfg := config.Default()
	cfg.AppStorage = "mongo"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.HTTPAddr = "127.0.0.1:0"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}
}
