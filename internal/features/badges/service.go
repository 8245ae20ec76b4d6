// Package badges выдаёт значки за накопленные очки.
//
// Проверка «значок ещё не получен» и добавление значка выполняются в одной
// транзакции аккаунта, поэтому два параллельных начисления не выдадут
// один значок дважды. Уведомление уходит только после фиксации.
package badges

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/metrics"
	"serotonyl.ru/wellness-engine/internal/notify"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// Qualifying возвращает значки, которые положены при балансе pointsBalance
// и ещё не получены. Порядок — по порогу.
func Qualifying(catalog []domain.Badge, earned []string, pointsBalance int64) []domain.Badge {
	var result []domain.Badge
	for _, b := range catalog {
		if b.PointsRequired <= pointsBalance && !slices.Contains(earned, b.ID) {
			result = append(result, b)
		}
	}
	slices.SortStableFunc(result, func(a, b domain.Badge) int {
		return cmp.Compare(a.PointsRequired, b.PointsRequired)
	})
	return result
}

// Status — значок каталога с отметкой, получен ли он пользователем.
type Status struct {
	domain.Badge
	Earned bool `json:"earned"`
}

// Evaluator проверяет и выдаёт значки.
type Evaluator struct {
	store    storage.Store
	notifier notify.Notifier
	clock    common.Clock
}

// NewEvaluator создаёт проверку значков. Канал уведомлений передаётся явно.
func NewEvaluator(store storage.Store, notifier notify.Notifier, clock common.Clock) *Evaluator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Evaluator{store: store, notifier: notifier, clock: clock}
}

// Evaluate выдаёт все значки, положенные при балансе pointsBalance, и отправляет
// по одному уведомлению на каждый новый значок. Возвращает новые значки.
// Значки никогда не отзываются.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, pointsBalance int64) ([]domain.Badge, error) {
	catalog, err := e.store.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога значков: %w", err)
	}

	var unlocked []domain.Badge
	now := e.clock.Now()
	err = e.store.WithAccount(ctx, userID, func(tx storage.Tx) error {
		acc := tx.Account()
		unlocked = Qualifying(catalog, acc.BadgesEarned, pointsBalance)
		if len(unlocked) == 0 {
			return nil
		}
		for _, b := range unlocked {
			acc.BadgesEarned = append(acc.BadgesEarned, b.ID)
		}
		acc.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, b := range unlocked {
		metrics.BadgesUnlocked.Inc()
		log.WithFields(log.Fields{
			"user_id":  userID,
			"badge_id": b.ID,
		}).Info("Значок получен")

		ev := notify.NewEvent(userID, notify.KindBadgeUnlocked,
			fmt.Sprintf("Новый значок: %s", b.Name),
			fmt.Sprintf("%s\nПорог: %s", b.Description, common.FormatPoints(b.PointsRequired)), now)
		ev.Data["badge_id"] = b.ID
		ev.Data["icon"] = b.IconRef
		if err := e.notifier.Notify(ctx, ev); err != nil {
			// Значок уже выдан, уведомление — не критично
			log.WithError(err).WithFields(log.Fields{
				"user_id":  userID,
				"badge_id": b.ID,
			}).Warn("Не удалось отправить уведомление о значке")
		}
	}

	return unlocked, nil
}

// ListForUser возвращает весь каталог с отметками о полученных значках.
func (e *Evaluator) ListForUser(ctx context.Context, userID string) ([]Status, error) {
	acc, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := e.store.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога значков: %w", err)
	}

	result := make([]Status, 0, len(catalog))
	for _, b := range catalog {
		result = append(result, Status{Badge: b, Earned: acc.HasBadge(b.ID)})
	}
	return result, nil
}
