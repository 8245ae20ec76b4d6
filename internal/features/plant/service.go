// Package plant — service.go: полив, рост и ночное увядание.
package plant

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/features/ledger"
	"serotonyl.ru/wellness-engine/internal/metrics"
	"serotonyl.ru/wellness-engine/internal/notify"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// Policy — числовые правила растения.
type Policy struct {
	WaterAmount  int           // +здоровья за полив
	DecayAmount  int           // -здоровья за ночь без полива
	NeglectAfter time.Duration // Сколько можно не поливать без последствий
	WaterReward  int64         // Очки за полив
	// Начислять очки за полив растения, у которого уже 100 здоровья
	RewardFullWatering bool
}

// DefaultPolicy — значения по умолчанию.
var DefaultPolicy = Policy{
	WaterAmount:        25,
	DecayAmount:        10,
	NeglectAfter:       24 * time.Hour,
	WaterReward:        10,
	RewardFullWatering: true,
}

// Water поливает растение внутри транзакции аккаунта и начисляет очки.
// Полив полного растения — не ошибка: здоровье остаётся 100, время полива обновляется.
// Возвращает начисленную сумму (0, если за полив полного растения не платим).
func Water(tx storage.Tx, policy Policy, now time.Time) (int64, error) {
	p := tx.Plant()
	wasFull := p.Health >= MaxHealth

	p.Health = min(MaxHealth, p.Health+policy.WaterAmount)
	p.LastWateredAt = now
	p.UpdatedAt = now

	if policy.WaterReward <= 0 || (wasFull && !policy.RewardFullWatering) {
		return 0, nil
	}
	if err := ledger.Credit(tx, policy.WaterReward, domain.TxTypeWater, "Полив растения", now); err != nil {
		return 0, err
	}
	return policy.WaterReward, nil
}

// AddGrowth добавляет очки роста и пересчитывает уровень. Рост никогда не уменьшается.
func AddGrowth(tx storage.Tx, points int64, now time.Time) error {
	if points < 0 {
		return common.ErrInvalidAmount
	}
	if points == 0 {
		return nil
	}
	p := tx.Plant()
	p.GrowthPoints += points
	p.GrowthLevel = LevelFor(p.GrowthPoints)
	p.UpdatedAt = now
	return nil
}

// Decay применяет увядание за день, если растение заброшено.
// За один календарный день увядание применяется не больше одного раза.
func Decay(p *domain.Plant, policy Policy, now time.Time) bool {
	today := common.DateOf(now)
	if p.Health <= 0 || now.Sub(p.LastWateredAt) <= policy.NeglectAfter {
		return false
	}
	if p.LastDecayDate != nil && common.SameDay(*p.LastDecayDate, today) {
		return false
	}

	p.Health = max(0, p.Health-policy.DecayAmount)
	p.LastDecayDate = &today
	p.UpdatedAt = now
	return true
}

// Service управляет растениями.
type Service struct {
	store    storage.AccountStore
	notifier notify.Notifier
	clock    common.Clock
	policy   Policy
}

// NewService создаёт сервис растений.
func NewService(store storage.AccountStore, notifier notify.Notifier, clock common.Clock, policy Policy) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{store: store, notifier: notifier, clock: clock, policy: policy}
}

// Get возвращает растение пользователя.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	p, err := s.store.GetPlant(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return NewView(p), nil
}

// DecaySweep — ночной обход: увядание всех растений, которые не поливали дольше порога.
// Каждое растение — отдельная транзакция; ошибки не останавливают обход.
func (s *Service) DecaySweep(ctx context.Context) (common.SweepResult, error) {
	now := s.clock.Now()
	var result common.SweepResult

	ids, err := s.store.NeglectedPlants(ctx, now.Add(-s.policy.NeglectAfter))
	if err != nil {
		return result, fmt.Errorf("ошибка поиска заброшенных растений: %w", err)
	}
	result.Matched = len(ids)

	for _, userID := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var decayed, wilted bool
		var health int
		var lastWatered time.Time
		err := s.store.WithAccount(ctx, userID, func(tx storage.Tx) error {
			p := tx.Plant()
			before := HealthStatus(p.Health)
			decayed = Decay(p, s.policy, now)
			health = p.Health
			lastWatered = p.LastWateredAt
			wilted = decayed && before != StatusWilting && HealthStatus(p.Health) == StatusWilting
			return nil
		})
		if err != nil {
			result.Failed++
			metrics.SweepAccounts.WithLabelValues("plant_decay", "failed").Inc()
			log.WithError(err).WithField("user_id", userID).Error("Ошибка увядания растения")
			continue
		}
		if !decayed {
			continue
		}

		result.Updated++
		metrics.SweepAccounts.WithLabelValues("plant_decay", "updated").Inc()
		if wilted {
			s.warnWilting(ctx, userID, health, lastWatered, now)
		}
	}

	return result, nil
}

func (s *Service) warnWilting(ctx context.Context, userID string, health int, lastWatered, now time.Time) {
	ev := notify.NewEvent(userID, notify.KindPlantWilting,
		"Растение вянет",
		fmt.Sprintf("Здоровье растения упало до %d, последний полив %s. Полейте его, чтобы оно восстановилось.",
			health, common.FormatDate(lastWatered)),
		now)
	ev.Data["health"] = fmt.Sprint(health)

	if err := s.notifier.Notify(ctx, ev); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось отправить предупреждение о растении")
	}
}
