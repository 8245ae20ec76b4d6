// Package common — errors.go определяет ошибки, которые используются во всех модулях движка.
// Обработчики различают их через errors.Is и превращают в понятные ответы.
package common

import (
	"errors"
	"fmt"
)

// ErrNotFound — базовая ошибка «не найдено». Все частные случаи оборачивают её.
var ErrNotFound = errors.New("не найдено")

// Частные случаи «не найдено»
var (
	// ErrAccountNotFound — аккаунт пользователя не зарегистрирован
	ErrAccountNotFound = fmt.Errorf("аккаунт: %w", ErrNotFound)
	// ErrItemNotFound — товара нет в каталоге (или он снят с продажи)
	ErrItemNotFound = fmt.Errorf("товар: %w", ErrNotFound)
	// ErrTaskNotFound — задания нет
	ErrTaskNotFound = fmt.Errorf("задание: %w", ErrNotFound)
	// ErrBadgeNotFound — значка нет в каталоге
	ErrBadgeNotFound = fmt.Errorf("значок: %w", ErrNotFound)
)

// Ошибки экономики (очки, покупки)
var (
	// ErrInsufficientFunds — недостаточно очков на счёте
	ErrInsufficientFunds = errors.New("недостаточно очков на счёте")
	// ErrAlreadyOwned — товар уже есть в инвентаре
	ErrAlreadyOwned = errors.New("товар уже куплен")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
)

// ErrInvalidInput — некорректные входные данные (ID, поля каталога)
var ErrInvalidInput = errors.New("некорректные данные")

// Ошибки заданий
var (
	// ErrAlreadyCompleted — задание уже выполнено
	ErrAlreadyCompleted = errors.New("задание уже выполнено")
	// ErrForbidden — задание принадлежит другому пользователю
	ErrForbidden = errors.New("нет доступа к чужому заданию")
)

// ErrConflict — параллельная запись не удалась после всех повторов
var ErrConflict = errors.New("конфликт параллельной записи, повторите запрос")

// Ошибки админки
var (
	// ErrWrongPassword — неверный пароль администратора
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
)

// IsValidation сообщает, является ли ошибка ожидаемой ошибкой валидации.
// Такие ошибки отдаются вызывающему как есть и не пишутся в лог как сбой.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrAlreadyOwned) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound — сокращение для errors.Is(err, ErrNotFound).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
