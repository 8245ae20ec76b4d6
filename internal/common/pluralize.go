// Package common — pluralize.go склоняет русские числительные для текстов уведомлений.
package common

import "fmt"

// pluralForm выбирает форму слова по правилам русского языка.
//
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralForm(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizePoints возвращает форму слова «очко» для числа n.
//
//	PluralizePoints(1)  → "очко"
//	PluralizePoints(3)  → "очка"
//	PluralizePoints(11) → "очков"
func PluralizePoints(n int64) string {
	return pluralForm(n, "очко", "очка", "очков")
}

// PluralizeDays возвращает форму слова «день» для числа n.
func PluralizeDays(n int) string {
	return pluralForm(int64(n), "день", "дня", "дней")
}

// FormatPoints форматирует количество очков: FormatPoints(150) → "150 очков".
func FormatPoints(n int64) string {
	return fmt.Sprintf("%d %s", n, PluralizePoints(n))
}

// FormatPointsAmount создаёт строку вида "+100 очков" или "-50 очков".
func FormatPointsAmount(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%d %s", amount, PluralizePoints(amount))
	}
	return fmt.Sprintf("%d %s", amount, PluralizePoints(amount))
}
