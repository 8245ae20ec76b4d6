// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с календарными днями и часовым поясом, часы, русская плюрализация.
package common

import (
	"time"
)

// Clock возвращает текущее время. Сервисы получают его через конструктор,
// чтобы тесты могли подставить фиксированный момент.
type Clock interface {
	Now() time.Time
}

// ClockFunc превращает обычную функцию в Clock.
type ClockFunc func() time.Time

// Now реализует Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock — настоящие часы в часовом поясе приложения.
type SystemClock struct {
	Location *time.Location
}

// Now возвращает текущее время в поясе приложения.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// LoadLocation загружает часовой пояс по имени.
// Если tzdata недоступна — возвращает UTC, чтобы приложение всё равно стартовало.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DateOf возвращает календарный день момента t (в его собственном поясе)
// в виде полуночи UTC. Так даты одинаково сравниваются в памяти и в колонке DATE.
//
// Пример:
//
//	DateOf(2025-03-10 01:30 +05:30) → 2025-03-10 00:00 UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Yesterday возвращает предыдущий календарный день.
func Yesterday(day time.Time) time.Time {
	return DateOf(day).AddDate(0, 0, -1)
}

// SameDay проверяет, что два момента приходятся на один календарный день.
// Оба значения должны быть результатами DateOf.
func SameDay(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// FormatDate форматирует день как "02.01.2006".
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}
