// Package memory — хранилище движка в памяти процесса.
// Используется в тестах и в режиме APP_STORAGE=memory.
//
// Данные защищены RWMutex, а каждая единица работы над аккаунтом —
// отдельным мьютексом этого аккаунта. Внутри WithAccount функция работает
// с копиями; копии записываются обратно только при успехе.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// Store хранит всё состояние движка в map'ах.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	plants       map[string]*domain.Plant
	tasks        map[string]*domain.DailyTask
	transactions map[string][]domain.Transaction // По пользователю, в порядке записи
	badges       map[string]domain.Badge
	items        map[string]domain.StoreItem

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // Блокировки аккаунтов
}

var _ storage.Store = (*Store)(nil)

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		plants:       make(map[string]*domain.Plant),
		tasks:        make(map[string]*domain.DailyTask),
		transactions: make(map[string][]domain.Transaction),
		badges:       make(map[string]domain.Badge),
		items:        make(map[string]domain.StoreItem),
		locks:        make(map[string]*sync.Mutex),
	}
}

// accountLock возвращает мьютекс аккаунта. Мьютекс заводится вместе с аккаунтом
// в CreateAccount, поэтому для неизвестных ID карта не растёт.
func (s *Store) accountLock(userID string) (*sync.Mutex, bool) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[userID]
	return l, ok
}

// lockCount — число заведённых блокировок (для тестов).
func (s *Store) lockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

func (s *Store) CreateAccount(_ context.Context, userID string, now time.Time) (*domain.Account, *domain.Plant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, ok := s.accounts[userID]; ok {
		return acc.Clone(), s.plants[userID].Clone(), false, nil
	}

	acc := &domain.Account{
		UserID:       userID,
		BadgesEarned: []string{},
		Inventory:    []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	plant := &domain.Plant{
		UserID:        userID,
		GrowthLevel:   1,
		Health:        100,
		LastWateredAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.locksMu.Lock()
	s.locks[userID] = &sync.Mutex{}
	s.locksMu.Unlock()

	s.accounts[userID] = acc
	s.plants[userID] = plant

	return acc.Clone(), plant.Clone(), true, nil
}

func (s *Store) GetAccount(_ context.Context, userID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *Store) GetPlant(_ context.Context, userID string) (*domain.Plant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plant, ok := s.plants[userID]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	return plant.Clone(), nil
}

// WithAccount выполняет fn под блокировкой аккаунта и сохраняет изменения при успехе.
func (s *Store) WithAccount(ctx context.Context, userID string, fn func(tx storage.Tx) error) error {
	lock, ok := s.accountLock(userID)
	if !ok {
		return common.ErrAccountNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	acc, ok := s.accounts[userID]
	if !ok {
		s.mu.RUnlock()
		return common.ErrAccountNotFound
	}
	tx := &memTx{
		store:   s,
		userID:  userID,
		account: acc.Clone(),
		plant:   s.plants[userID].Clone(),
		touched: make(map[string]*domain.DailyTask),
	}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[tx.userID] = tx.account
	s.plants[tx.userID] = tx.plant

	for id, task := range tx.touched {
		// Чужие задания только читаются
		if task.UserID == tx.userID {
			s.tasks[id] = task
		}
	}
	for _, task := range tx.added {
		s.tasks[task.ID] = task
	}
	s.transactions[tx.userID] = append(s.transactions[tx.userID], tx.records...)
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) StaleStreaks(_ context.Context, before time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, acc := range s.accounts {
		if acc.CurrentStreak > 0 && (acc.LastActivityDate == nil || acc.LastActivityDate.Before(before)) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) NeglectedPlants(_ context.Context, wateredBefore time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, plant := range s.plants {
		if plant.Health > 0 && plant.LastWateredAt.Before(wateredBefore) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListTasksForDay(_ context.Context, userID string, day time.Time) ([]*domain.DailyTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []*domain.DailyTask
	for _, task := range s.tasks {
		if task.UserID == userID && task.AssignedDate.Equal(day) {
			tasks = append(tasks, task.Clone())
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Category < tasks[j].Category })
	return tasks, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.transactions[userID]
	result := make([]domain.Transaction, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, all[i])
	}
	return result, nil
}

func (s *Store) ListBadges(_ context.Context) ([]domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	badges := make([]domain.Badge, 0, len(s.badges))
	for _, b := range s.badges {
		badges = append(badges, b)
	}
	sort.Slice(badges, func(i, j int) bool {
		if badges[i].PointsRequired != badges[j].PointsRequired {
			return badges[i].PointsRequired < badges[j].PointsRequired
		}
		return badges[i].ID < badges[j].ID
	})
	return badges, nil
}

func (s *Store) UpsertBadge(_ context.Context, badge domain.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.badges[badge.ID] = badge
	return nil
}

func (s *Store) ListStoreItems(_ context.Context) ([]domain.StoreItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.StoreItem, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Cost != items[j].Cost {
			return items[i].Cost < items[j].Cost
		}
		return strings.Compare(items[i].ID, items[j].ID) < 0
	})
	return items, nil
}

func (s *Store) GetStoreItem(_ context.Context, itemID string) (*domain.StoreItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[itemID]
	if !ok {
		return nil, common.ErrItemNotFound
	}
	return &it, nil
}

func (s *Store) UpsertStoreItem(_ context.Context, item domain.StoreItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.ID] = item
	return nil
}

// memTx — рабочая копия аккаунта внутри WithAccount.
type memTx struct {
	store   *Store
	userID  string
	account *domain.Account
	plant   *domain.Plant
	touched map[string]*domain.DailyTask
	added   []*domain.DailyTask
	records []domain.Transaction
}

func (t *memTx) Account() *domain.Account { return t.account }
func (t *memTx) Plant() *domain.Plant     { return t.plant }

func (t *memTx) Task(_ context.Context, taskID string) (*domain.DailyTask, error) {
	if task, ok := t.touched[taskID]; ok {
		return task, nil
	}
	for _, task := range t.added {
		if task.ID == taskID {
			return task, nil
		}
	}

	t.store.mu.RLock()
	task, ok := t.store.tasks[taskID]
	t.store.mu.RUnlock()
	if !ok {
		return nil, common.ErrTaskNotFound
	}

	c := task.Clone()
	t.touched[taskID] = c
	return c, nil
}

func (t *memTx) HasTasks(_ context.Context, day time.Time) (bool, error) {
	if slices.ContainsFunc(t.added, func(task *domain.DailyTask) bool { return task.AssignedDate.Equal(day) }) {
		return true, nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for _, task := range t.store.tasks {
		if task.UserID == t.userID && task.AssignedDate.Equal(day) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) AddTask(task *domain.DailyTask) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.UserID = t.userID
	t.added = append(t.added, task)
}

func (t *memTx) Record(entry domain.Transaction) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.UserID = t.userID
	t.records = append(t.records, entry)
}
