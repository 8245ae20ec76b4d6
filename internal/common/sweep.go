package common

import "fmt"

// SweepResult — итог ночного обхода.
// Обход считается выполненным, даже если часть аккаунтов упала с ошибкой.
type SweepResult struct {
	Matched int // Сколько аккаунтов подошло под условие
	Updated int // Сколько реально изменено
	Failed  int // Сколько пропущено из-за ошибок
}

func (r SweepResult) String() string {
	return fmt.Sprintf("найдено=%d изменено=%d ошибок=%d", r.Matched, r.Updated, r.Failed)
}
