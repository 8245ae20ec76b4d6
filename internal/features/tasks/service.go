// Package tasks — ежедневные задания: выдача набора на день и отметка о выполнении.
package tasks

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

// Template — шаблон задания из ежедневного набора.
type Template struct {
	Category    string
	Description string
	Points      int64
}

// DailySet — фиксированный набор, который получает каждый пользователь.
var DailySet = []Template{
	{Category: domain.TaskCategoryBreathing, Description: "Complete a 5-minute bubble breathing exercise.", Points: 15},
	{Category: domain.TaskCategoryJournaling, Description: "Write a short journal entry about your day.", Points: 10},
	{Category: domain.TaskCategoryMood, Description: "Log your mood for today.", Points: 5},
}

// Assign выдаёт набор заданий на день внутри транзакции аккаунта.
// Если задания на этот день уже есть — ничего не делает и возвращает false.
func Assign(ctx context.Context, tx storage.Tx, set []Template, now time.Time) (bool, error) {
	today := common.DateOf(now)
	has, err := tx.HasTasks(ctx, today)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}

	for _, tpl := range set {
		tx.AddTask(&domain.DailyTask{
			Description:  tpl.Description,
			Category:     tpl.Category,
			PointsValue:  tpl.Points,
			AssignedDate: today,
		})
	}
	return true, nil
}

// Complete отмечает задание выполненным.
// Порядок проверок: задание существует → принадлежит пользователю → ещё не выполнено.
func Complete(ctx context.Context, tx storage.Tx, taskID string, now time.Time) (*domain.DailyTask, error) {
	task, err := tx.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != tx.Account().UserID {
		return nil, common.ErrForbidden
	}
	if task.IsCompleted {
		return nil, common.ErrAlreadyCompleted
	}

	task.IsCompleted = true
	completedAt := now
	task.CompletedAt = &completedAt
	return task, nil
}

// Service управляет ежедневными заданиями.
type Service struct {
	store storage.AccountStore
	clock common.Clock
	set   []Template
}

// NewService создаёт сервис заданий. Пустой set — используется DailySet.
func NewService(store storage.AccountStore, clock common.Clock, set []Template) *Service {
	if len(set) == 0 {
		set = DailySet
	}
	return &Service{store: store, clock: clock, set: set}
}

// ListToday возвращает задания пользователя на сегодня.
func (s *Service) ListToday(ctx context.Context, userID string) ([]*domain.DailyTask, error) {
	if _, err := s.store.GetAccount(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListTasksForDay(ctx, userID, common.DateOf(s.clock.Now()))
}

// AssignToday выдаёт задания на сегодня одному пользователю.
func (s *Service) AssignToday(ctx context.Context, userID string) (bool, error) {
	var assigned bool
	err := s.store.WithAccount(ctx, userID, func(tx storage.Tx) error {
		var err error
		assigned, err = Assign(ctx, tx, s.set, s.clock.Now())
		return err
	})
	return assigned, err
}

// AssignSweep — ежедневный обход: всем аккаунтам выдаётся набор на сегодня.
// Аккаунты, у которых задания на сегодня уже есть, пропускаются,
// поэтому повторный запуск в тот же день ничего не дублирует.
func (s *Service) AssignSweep(ctx context.Context) (common.SweepResult, error) {
	var result common.SweepResult

	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("ошибка получения списка аккаунтов: %w", err)
	}
	result.Matched = len(ids)

	for _, userID := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		assigned, err := s.AssignToday(ctx, userID)
		if err != nil {
			result.Failed++
			metrics.SweepAccounts.WithLabelValues("task_assignment", "failed").Inc()
			log.WithError(err).WithField("user_id", userID).Error("Ошибка выдачи ежедневных заданий")
			continue
		}
		if assigned {
			result.Updated++
			metrics.SweepAccounts.WithLabelValues("task_assignment", "updated").Inc()
		}
	}

	return result, nil
}
