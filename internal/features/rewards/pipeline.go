// Package rewards — конвейер наград: единая точка входа для действий пользователя.
//
// Каждое действие выполняется в два шага:
//  1. Одна транзакция аккаунта: само действие + начисление очков + обновление серии.
//  2. После фиксации — проверка значков по новому балансу (отдельная транзакция).
//
// Ошибки второго шага пишутся в лог и не откатывают начисление.
package rewards

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/features/badges"
	"serotonyl.ru/wellness-engine/internal/features/ledger"
	"serotonyl.ru/wellness-engine/internal/features/plant"
	"serotonyl.ru/wellness-engine/internal/features/shop"
	"serotonyl.ru/wellness-engine/internal/features/streak"
	"serotonyl.ru/wellness-engine/internal/features/tasks"
	"serotonyl.ru/wellness-engine/internal/metrics"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// Amounts — сколько очков даётся за действия.
type Amounts struct {
	Mood                  int64
	Journal               int64
	BreathingSecondsPerPt int
}

// DefaultAmounts — значения по умолчанию.
var DefaultAmounts = Amounts{Mood: 5, Journal: 10, BreathingSecondsPerPt: 5}

// Outcome — результат действия.
type Outcome struct {
	Account   *domain.Account   `json:"account"`
	Plant     *domain.Plant     `json:"plant,omitempty"`
	Task      *domain.DailyTask `json:"task,omitempty"`
	Credited  int64             `json:"credited"`
	NewBadges []domain.Badge    `json:"newBadges"`
}

// Pipeline — конвейер наград.
type Pipeline struct {
	store   storage.Store
	clock   common.Clock
	badges  *badges.Evaluator
	shop    *shop.Service
	amounts Amounts
	policy  plant.Policy
}

// NewPipeline создаёт конвейер наград.
func NewPipeline(store storage.Store, clock common.Clock, evaluator *badges.Evaluator, shopSvc *shop.Service, amounts Amounts, policy plant.Policy) *Pipeline {
	return &Pipeline{
		store:   store,
		clock:   clock,
		badges:  evaluator,
		shop:    shopSvc,
		amounts: amounts,
		policy:  policy,
	}
}

// BreathingPoints — сколько очков (и очков роста) даёт сессия дыхания.
func (p *Pipeline) BreathingPoints(durationSeconds int) int64 {
	return int64(durationSeconds / p.amounts.BreathingSecondsPerPt)
}

// OnTaskCompleted — пользователь выполнил ежедневное задание.
// Ошибки: ErrTaskNotFound, ErrForbidden (чужое задание), ErrAlreadyCompleted.
func (p *Pipeline) OnTaskCompleted(ctx context.Context, userID, taskID string) (*Outcome, error) {
	var task *domain.DailyTask
	out, err := p.run(ctx, userID, domain.TxTypeTask, func(tx storage.Tx, now time.Time) (int64, error) {
		t, err := tasks.Complete(ctx, tx, taskID, now)
		if err != nil {
			return 0, err
		}
		if t.PointsValue > 0 {
			if err := ledger.Credit(tx, t.PointsValue, domain.TxTypeTask, fmt.Sprintf("Задание: %s", t.Description), now); err != nil {
				return 0, err
			}
		}
		streak.Record(tx, now)
		task = t.Clone()
		return t.PointsValue, nil
	})
	if err != nil {
		return nil, err
	}
	out.Task = task
	return out, nil
}

// OnMoodLogged — пользователь отметил настроение.
func (p *Pipeline) OnMoodLogged(ctx context.Context, userID string) (*Outcome, error) {
	return p.creditWithStreak(ctx, userID, p.amounts.Mood, domain.TxTypeMood, "Отметка настроения")
}

// OnJournalEntryCreated — пользователь написал запись в дневнике.
func (p *Pipeline) OnJournalEntryCreated(ctx context.Context, userID string) (*Outcome, error) {
	return p.creditWithStreak(ctx, userID, p.amounts.Journal, domain.TxTypeJournal, "Запись в дневнике")
}

func (p *Pipeline) creditWithStreak(ctx context.Context, userID string, amount int64, txType, description string) (*Outcome, error) {
	return p.run(ctx, userID, txType, func(tx storage.Tx, now time.Time) (int64, error) {
		if err := ledger.Credit(tx, amount, txType, description, now); err != nil {
			return 0, err
		}
		streak.Record(tx, now)
		return amount, nil
	})
}

// OnBreathingSessionLogged — пользователь завершил дыхательное упражнение.
// Очки = длительность / 5 (с округлением вниз); столько же очков роста получает растение.
// Короткая сессия (0 очков) всё равно засчитывается в серию.
func (p *Pipeline) OnBreathingSessionLogged(ctx context.Context, userID string, durationSeconds int) (*Outcome, error) {
	if durationSeconds < 0 {
		return nil, fmt.Errorf("%w: длительность не может быть отрицательной", common.ErrInvalidAmount)
	}
	points := p.BreathingPoints(durationSeconds)

	var pl *domain.Plant
	out, err := p.run(ctx, userID, domain.TxTypeBreathing, func(tx storage.Tx, now time.Time) (int64, error) {
		if points > 0 {
			desc := fmt.Sprintf("Дыхательное упражнение, %d сек", durationSeconds)
			if err := ledger.Credit(tx, points, domain.TxTypeBreathing, desc, now); err != nil {
				return 0, err
			}
			if err := plant.AddGrowth(tx, points, now); err != nil {
				return 0, err
			}
		}
		streak.Record(tx, now)
		pl = tx.Plant().Clone()
		return points, nil
	})
	if err != nil {
		return nil, err
	}
	out.Plant = pl
	return out, nil
}

// OnPlantWatered — пользователь полил растение. Полив не влияет на серию.
func (p *Pipeline) OnPlantWatered(ctx context.Context, userID string) (*Outcome, error) {
	var pl *domain.Plant
	out, err := p.run(ctx, userID, domain.TxTypeWater, func(tx storage.Tx, now time.Time) (int64, error) {
		credited, err := plant.Water(tx, p.policy, now)
		if err != nil {
			return 0, err
		}
		pl = tx.Plant().Clone()
		return credited, nil
	})
	if err != nil {
		return nil, err
	}
	out.Plant = pl
	return out, nil
}

// OnPurchaseRequested — пользователь покупает товар.
// Покупка только уменьшает баланс, поэтому значки не проверяются.
func (p *Pipeline) OnPurchaseRequested(ctx context.Context, userID, itemID string) (*Outcome, error) {
	acc, err := p.shop.Purchase(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	return &Outcome{Account: acc, NewBadges: []domain.Badge{}}, nil
}

// GrantPoints — ручное начисление очков администратором. Серию не двигает.
func (p *Pipeline) GrantPoints(ctx context.Context, userID string, amount int64, reason string) (*Outcome, error) {
	if reason == "" {
		reason = "Начисление администратором"
	}
	return p.run(ctx, userID, domain.TxTypeAdminGrant, func(tx storage.Tx, now time.Time) (int64, error) {
		if err := ledger.Credit(tx, amount, domain.TxTypeAdminGrant, reason, now); err != nil {
			return 0, err
		}
		return amount, nil
	})
}

// run выполняет действие в транзакции аккаунта, затем проверяет значки.
// action может быть вызвана повторно при конфликте записи.
func (p *Pipeline) run(ctx context.Context, userID, txType string, action func(tx storage.Tx, now time.Time) (int64, error)) (*Outcome, error) {
	var (
		acc      *domain.Account
		credited int64
	)
	err := p.store.WithAccount(ctx, userID, func(tx storage.Tx) error {
		var err error
		credited, err = action(tx, p.clock.Now())
		if err != nil {
			return err
		}
		acc = tx.Account().Clone()
		return nil
	})
	if err != nil {
		if !common.IsValidation(err) {
			log.WithError(err).WithFields(log.Fields{
				"user_id": userID,
				"action":  txType,
			}).Error("Ошибка обработки действия")
		}
		return nil, err
	}

	if credited > 0 {
		metrics.PointsCredited.WithLabelValues(txType).Add(float64(credited))
	}
	log.WithFields(log.Fields{
		"user_id":  userID,
		"action":   txType,
		"credited": common.FormatPointsAmount(credited),
		"balance":  acc.PointsBalance,
		"streak":   acc.CurrentStreak,
	}).Debug("Действие обработано")

	out := &Outcome{Account: acc, Credited: credited, NewBadges: []domain.Badge{}}
	if credited > 0 {
		out.NewBadges = p.evaluateBadges(ctx, userID, acc)
	}
	return out, nil
}

// evaluateBadges проверяет значки после фиксации начисления.
// Ошибки не возвращаются: начисление уже состоялось.
// Отмена запроса проверку не прерывает: начисленное должно получить свои значки.
func (p *Pipeline) evaluateBadges(ctx context.Context, userID string, acc *domain.Account) []domain.Badge {
	unlocked, err := p.badges.Evaluate(context.WithoutCancel(ctx), userID, acc.PointsBalance)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось проверить значки")
		return []domain.Badge{}
	}
	if len(unlocked) == 0 {
		return []domain.Badge{}
	}
	for _, b := range unlocked {
		acc.BadgesEarned = append(acc.BadgesEarned, b.ID)
	}
	return unlocked
}
