// Package streak — service.go: запись активности и ночной сброс серий.
package streak

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/metrics"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// Record засчитывает активность внутри транзакции аккаунта.
func Record(tx storage.Tx, now time.Time) bool {
	acc := tx.Account()
	if !Advance(acc, now) {
		return false
	}
	acc.UpdatedAt = now
	return true
}

// Service управляет сериями.
type Service struct {
	store storage.AccountStore
	clock common.Clock
}

// NewService создаёт сервис серий.
func NewService(store storage.AccountStore, clock common.Clock) *Service {
	return &Service{store: store, clock: clock}
}

// RecordActivity засчитывает активность пользователя за сегодня.
func (s *Service) RecordActivity(ctx context.Context, userID string) (*domain.Account, error) {
	var acc *domain.Account
	err := s.store.WithAccount(ctx, userID, func(tx storage.Tx) error {
		Record(tx, s.clock.Now())
		acc = tx.Account().Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// ResetSweep обнуляет серии всех, у кого не было активности вчера.
// Каждый аккаунт обрабатывается отдельной транзакцией: ошибка на одном
// не останавливает обход. Повторный запуск ничего не меняет.
func (s *Service) ResetSweep(ctx context.Context) (common.SweepResult, error) {
	now := s.clock.Now()
	var result common.SweepResult

	ids, err := s.store.StaleStreaks(ctx, common.Yesterday(now))
	if err != nil {
		return result, fmt.Errorf("ошибка поиска серий для сброса: %w", err)
	}
	result.Matched = len(ids)

	for _, userID := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var reset bool
		err := s.store.WithAccount(ctx, userID, func(tx storage.Tx) error {
			acc := tx.Account()
			// Пока ждали блокировку, пользователь мог отметиться
			reset = IsStale(acc, now)
			if !reset {
				return nil
			}
			log.WithFields(log.Fields{
				"user_id": userID,
				"streak":  fmt.Sprintf("%d %s", acc.CurrentStreak, common.PluralizeDays(acc.CurrentStreak)),
			}).Debug("Серия сброшена")
			acc.CurrentStreak = 0
			acc.UpdatedAt = now
			return nil
		})
		if err != nil {
			result.Failed++
			metrics.SweepAccounts.WithLabelValues("streak_reset", "failed").Inc()
			log.WithError(err).WithField("user_id", userID).Error("Ошибка сброса серии")
			continue
		}
		if reset {
			result.Updated++
			metrics.SweepAccounts.WithLabelValues("streak_reset", "updated").Inc()
		}
	}

	return result, nil
}
