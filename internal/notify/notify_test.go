package notify

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

var at = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestNewEvent(t *testing.T) {
	a := NewEvent("u1", KindBadgeUnlocked, "Новый значок", "Росток", at)
	b := NewEvent("u1", KindBadgeUnlocked, "Новый значок", "Росток", at)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotNil(t, a.Data)
}

func TestMultiDeliversToAll(t *testing.T) {
	failing := &recorder{err: errors.New("down")}
	ok := &recorder{}

	err := Multi{failing, ok}.Notify(context.Background(), NewEvent("u1", KindPlantWilting, "t", "b", at))

	assert.Error(t, err)
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, ok.count())
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, 16)
	d.Start()

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Notify(context.Background(), NewEvent("u1", KindBadgeUnlocked, "t", "b", at)))
	}
	d.Close()

	assert.Equal(t, 10, rec.count())
	assert.ErrorIs(t, d.Notify(context.Background(), Event{}), ErrClosed)
	// Повторный Close безопасен
	d.Close()
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(&recorder{}, 1)
	// Без Start очередь никто не читает
	require.NoError(t, d.Notify(context.Background(), Event{ID: "1"}))
	assert.ErrorIs(t, d.Notify(context.Background(), Event{ID: "2"}), ErrQueueFull)
}

func TestFormatTelegramEscapes(t *testing.T) {
	ev := NewEvent("u<1>", KindBadgeUnlocked, "Значок <b>", "текст & ещё", at)
	text := FormatTelegram(ev)

	assert.Contains(t, text, "🏅")
	assert.Contains(t, text, "Значок &lt;b&gt;")
	assert.Contains(t, text, "текст &amp; ещё")
	assert.Contains(t, text, "u&lt;1&gt;")
}

func TestRedisNotifierPublishes(t *testing.T) {
	addr := os.Getenv("ENGINE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ENGINE_TEST_REDIS_ADDR не задана")
	}
	ctx := context.Background()
	stream := "engine:test:" + NewEvent("", "", "", "", at).ID

	n, err := NewRedisNotifier(ctx, addr, "", 0, stream)
	require.NoError(t, err)
	defer n.Close()

	ev := NewEvent("u1", KindBadgeUnlocked, "Новый значок", "Росток", at)
	ev.Data["badge_id"] = "seedling"
	require.NoError(t, n.Notify(ctx, ev))

	msgs, err := n.client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, ev.ID, msgs[0].Values["id"])
	assert.Equal(t, `{"badge_id":"seedling"}`, msgs[0].Values["data"])

	require.NoError(t, n.client.Del(ctx, stream).Err())
}
