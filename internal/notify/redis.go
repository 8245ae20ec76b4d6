package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/metrics"
)

// streamMaxLen — сколько событий держать в стриме (приблизительно).
const streamMaxLen = 10000

// RedisNotifier публикует события в Redis Stream. Клиентские сокет-шлюзы
// читают стрим и пушат событие в соединение пользователя.
type RedisNotifier struct {
	client *redis.Client
	stream string
}

// NewRedisNotifier подключается к Redis и проверяет соединение.
func NewRedisNotifier(ctx context.Context, addr, password string, db int, stream string) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis недоступен (%s): %w", addr, err)
	}

	log.WithField("addr", addr).Info("Подключение к Redis установлено")
	return &RedisNotifier{client: client, stream: stream}, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	err = n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":         ev.ID,
			"user_id":    ev.UserID,
			"kind":       ev.Kind,
			"title":      ev.Title,
			"body":       ev.Body,
			"data":       string(data),
			"created_at": ev.CreatedAt.Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		metrics.Notifications.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("ошибка публикации в стрим %s: %w", n.stream, err)
	}

	metrics.Notifications.WithLabelValues("redis", "ok").Inc()
	return nil
}

// Close закрывает соединение с Redis.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
