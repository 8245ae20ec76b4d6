// Package storage описывает хранилище движка.
// Сервисы работают только с этими интерфейсами; реализации — memory (процесс)
// и postgres (боевое хранилище).
//
// Единица конкуренции — аккаунт пользователя вместе с его растением и заданиями.
// Всё чтение-изменение-запись по аккаунту выполняется внутри WithAccount:
// параллельные вызовы для одного пользователя выполняются строго по очереди,
// для разных пользователей — не блокируют друг друга.
package storage

import (
	"context"
	"time"

	"serotonyl.ru/wellness-engine/internal/domain"
)

// Tx — атомарная единица работы над одним аккаунтом.
//
// Account и Plant возвращают изменяемые снимки: всё, что функция в них запишет,
// будет сохранено при успешном завершении. Если функция вернула ошибку —
// ничего не сохраняется.
type Tx interface {
	Account() *domain.Account
	Plant() *domain.Plant

	// Task возвращает задание по ID (любого пользователя — проверку владельца делает вызывающий).
	// Изменения в задании текущего пользователя сохраняются вместе с транзакцией.
	Task(ctx context.Context, taskID string) (*domain.DailyTask, error)
	// HasTasks проверяет, выданы ли пользователю задания на указанный день.
	HasTasks(ctx context.Context, day time.Time) (bool, error)
	// AddTask выдаёт новое задание пользователю.
	AddTask(task *domain.DailyTask)
	// Record добавляет запись в журнал операций.
	Record(entry domain.Transaction)
}

// AccountStore хранит аккаунты, растения, задания и журнал операций.
type AccountStore interface {
	// CreateAccount создаёт аккаунт и растение. Повторный вызов возвращает
	// существующие записи и created=false.
	CreateAccount(ctx context.Context, userID string, now time.Time) (acc *domain.Account, plant *domain.Plant, created bool, err error)
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)
	GetPlant(ctx context.Context, userID string) (*domain.Plant, error)

	// WithAccount выполняет fn под эксклюзивной блокировкой аккаунта.
	// Реализация может вызвать fn повторно (повтор транзакции при конфликте),
	// поэтому fn не должна копить состояние между вызовами.
	WithAccount(ctx context.Context, userID string, fn func(tx Tx) error) error

	// Выборки для ночных обходов
	ListUserIDs(ctx context.Context) ([]string, error)
	// StaleStreaks — пользователи со стриком > 0 и последней активностью раньше before.
	StaleStreaks(ctx context.Context, before time.Time) ([]string, error)
	// NeglectedPlants — растения со здоровьем > 0, которые не поливали с wateredBefore.
	NeglectedPlants(ctx context.Context, wateredBefore time.Time) ([]string, error)

	ListTasksForDay(ctx context.Context, userID string, day time.Time) ([]*domain.DailyTask, error)
	// ListTransactions возвращает последние операции пользователя, новые первыми.
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
}

// CatalogStore хранит каталоги значков и товаров (в основном чтение).
type CatalogStore interface {
	ListBadges(ctx context.Context) ([]domain.Badge, error)
	UpsertBadge(ctx context.Context, badge domain.Badge) error
	ListStoreItems(ctx context.Context) ([]domain.StoreItem, error)
	GetStoreItem(ctx context.Context, itemID string) (*domain.StoreItem, error)
	UpsertStoreItem(ctx context.Context, item domain.StoreItem) error
}

// Store — полное хранилище движка.
type Store interface {
	AccountStore
	CatalogStore
}
