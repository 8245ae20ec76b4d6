// Package notify доставляет пользователю события движка: разблокировку значков,
// предупреждения о вянущем растении.
//
// Канал — «выстрелил и забыл» с доставкой хотя бы один раз: ошибка доставки
// никогда не откатывает изменения очков. У каждого события есть ID,
// по которому получатель может отбросить дубли.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/metrics"
)

// Виды событий
const (
	KindBadgeUnlocked = "badge_unlocked"
	KindPlantWilting  = "plant_wilting"
)

// Event — одно уведомление для пользователя.
type Event struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NewEvent создаёт событие с новым ID.
func NewEvent(userID, kind, title, body string, now time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Data:      map[string]string{},
		CreatedAt: now,
	}
}

// Notifier — канал уведомлений. Передаётся в сервисы через конструктор.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier пишет события в лог. Используется по умолчанию, когда внешних каналов нет.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, ev Event) error {
	log.WithFields(log.Fields{
		"event_id": ev.ID,
		"user_id":  ev.UserID,
		"kind":     ev.Kind,
	}).Info(ev.Title)
	metrics.Notifications.WithLabelValues("log", "ok").Inc()
	return nil
}

// Multi рассылает событие во все каналы. Ошибка одного канала не мешает остальным.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop ничего не делает.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
