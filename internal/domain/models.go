// Package domain описывает сущности движка вовлечённости:
// аккаунт, растение, значки, товары магазина, ежедневные задания и журнал операций.
// Пакет не зависит ни от хранилища, ни от транспорта.
package domain

import (
	"slices"
	"time"
)

// Account — состояние пользователя: баланс очков, стрик, значки и инвентарь.
// Один аккаунт на пользователя, создаётся при регистрации.
type Account struct {
	UserID           string     `json:"userId" db:"user_id"`
	PointsBalance    int64      `json:"pointsBalance" db:"points_balance"`       // Никогда не бывает < 0
	TotalEarned      int64      `json:"totalEarned" db:"total_earned"`           // Сколько всего начислено
	TotalSpent       int64      `json:"totalSpent" db:"total_spent"`             // Сколько всего потрачено
	CurrentStreak    int        `json:"currentStreak" db:"current_streak"`       // Дней подряд с активностью
	LongestStreak    int        `json:"longestStreak" db:"longest_streak"`       // Личный рекорд
	LastActivityDate *time.Time `json:"lastActivityDate" db:"last_activity_date"` // Календарный день (UTC-полночь)
	BadgesEarned     []string   `json:"badgesEarned"`
	Inventory        []string   `json:"inventory"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// HasBadge проверяет, получен ли значок.
func (a *Account) HasBadge(badgeID string) bool {
	return slices.Contains(a.BadgesEarned, badgeID)
}

// Owns проверяет, есть ли товар в инвентаре.
func (a *Account) Owns(itemID string) bool {
	return slices.Contains(a.Inventory, itemID)
}

// Clone возвращает глубокую копию аккаунта.
func (a *Account) Clone() *Account {
	c := *a
	c.BadgesEarned = slices.Clone(a.BadgesEarned)
	c.Inventory = slices.Clone(a.Inventory)
	if a.LastActivityDate != nil {
		d := *a.LastActivityDate
		c.LastActivityDate = &d
	}
	return &c
}

// Plant — виртуальное растение пользователя (1:1 с аккаунтом).
type Plant struct {
	UserID        string     `json:"userId" db:"user_id"`
	GrowthPoints  int64      `json:"growthPoints" db:"growth_points"`     // Только растёт
	GrowthLevel   int        `json:"growthLevel" db:"growth_level"`       // Производное от GrowthPoints
	Health        int        `json:"health" db:"health"`                  // 0..100
	LastWateredAt time.Time  `json:"lastWateredAt" db:"last_watered_at"`
	LastDecayDate *time.Time `json:"lastDecayDate,omitempty" db:"last_decay_date"` // День последнего увядания
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

// Clone возвращает копию растения.
func (p *Plant) Clone() *Plant {
	c := *p
	if p.LastDecayDate != nil {
		d := *p.LastDecayDate
		c.LastDecayDate = &d
	}
	return &c
}

// Badge — значок из каталога. Выдаётся, когда баланс достигает PointsRequired.
type Badge struct {
	ID             string `json:"id" db:"id" validate:"required,max=64"`
	Name           string `json:"name" db:"name" validate:"required,max=128"`
	Description    string `json:"description" db:"description"`
	IconRef        string `json:"iconRef" db:"icon_ref"`
	Criteria       string `json:"criteria" db:"criteria"`
	PointsRequired int64  `json:"pointsRequired" db:"points_required" validate:"gte=0"`
}

// StoreItem — товар магазина.
type StoreItem struct {
	ID          string `json:"id" db:"id" validate:"required,max=64"`
	Name        string `json:"name" db:"name" validate:"required,max=128"`
	Description string `json:"description" db:"description"`
	Cost        int64  `json:"cost" db:"cost" validate:"gte=0"`
	Category    string `json:"category" db:"category" validate:"omitempty,oneof=plant-pot plant-decor plant-food plant-tools room-decor accessories"`
	Rarity      string `json:"rarity" db:"rarity" validate:"omitempty,oneof=common rare epic legendary"`
	ImageRef    string `json:"imageRef" db:"image_ref"`
	IsActive    bool   `json:"isActive" db:"is_active"`
}

// Категории ежедневных заданий
const (
	TaskCategoryBreathing   = "breathing"
	TaskCategoryJournaling  = "journaling"
	TaskCategoryMood        = "mood"
	TaskCategoryMindfulness = "mindfulness"
)

// DailyTask — задание, выданное пользователю на конкретный день.
// Переходит из «не выполнено» в «выполнено» ровно один раз.
type DailyTask struct {
	ID           string     `json:"id" db:"id"`
	UserID       string     `json:"userId" db:"user_id"`
	Description  string     `json:"description" db:"description"`
	Category     string     `json:"category" db:"category"`
	PointsValue  int64      `json:"pointsValue" db:"points_value"`
	AssignedDate time.Time  `json:"assignedDate" db:"assigned_date"`
	IsCompleted  bool       `json:"isCompleted" db:"is_completed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty" db:"completed_at"`
}

// Clone возвращает копию задания.
func (t *DailyTask) Clone() *DailyTask {
	c := *t
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	return &c
}

// Направление операции в журнале
const (
	KindCredit = "credit"
	KindDebit  = "debit"
)

// Типы операций
const (
	TxTypeTask       = "task"
	TxTypeMood       = "mood"
	TxTypeJournal    = "journal"
	TxTypeBreathing  = "breathing"
	TxTypeWater      = "water"
	TxTypePurchase   = "purchase"
	TxTypeAdminGrant = "admin_grant"
)

// Transaction — запись журнала движения очков.
// Пишется в той же транзакции, что и изменение баланса.
type Transaction struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Kind        string    `json:"kind" db:"kind"`     // credit | debit
	Amount      int64     `json:"amount" db:"amount"` // Всегда положительная
	Type        string    `json:"type" db:"transaction_type"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
