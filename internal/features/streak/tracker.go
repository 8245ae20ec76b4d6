// Package streak считает серию дней подряд с активностью.
// tracker.go — чистые переходы состояния, без хранилища.
package streak

import (
	"time"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
)

// Advance засчитывает активность за день today.
//
//   - последняя активность вчера → серия +1
//   - сегодня уже была активность → ничего не меняется (возвращает false)
//   - иначе (давно или никогда) → серия начинается заново с 1
//
// Повторный вызов в тот же день ничего не меняет.
func Advance(acc *domain.Account, today time.Time) bool {
	today = common.DateOf(today)
	last := acc.LastActivityDate

	switch {
	case last != nil && common.SameDay(*last, today):
		return false
	case last != nil && common.SameDay(*last, common.Yesterday(today)):
		acc.CurrentStreak++
	default:
		acc.CurrentStreak = 1
	}

	acc.LongestStreak = max(acc.LongestStreak, acc.CurrentStreak)
	acc.LastActivityDate = &today
	return true
}

// IsStale — серию пора обнулить: за вчерашний день активности не было.
func IsStale(acc *domain.Account, today time.Time) bool {
	if acc.CurrentStreak == 0 {
		return false
	}
	if acc.LastActivityDate == nil {
		return true
	}
	return common.DateOf(*acc.LastActivityDate).Before(common.Yesterday(today))
}
