// Package postgres — store.go реализует storage.Store на PostgreSQL.
//
// Единица работы над аккаунтом — транзакция БД, в которой строки accounts и plants
// заблокированы через SELECT ... FOR UPDATE. Параллельные операции над одним
// пользователем ждут друг друга на блокировке строки, разные пользователи не пересекаются.
// Serialization failure и deadlock повторяются до DB_TX_RETRIES раз.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// Store — хранилище движка в PostgreSQL.
type Store struct {
	db      *pgxpool.Pool
	retries int
}

var _ storage.Store = (*Store)(nil)

// NewStore создаёт хранилище. retries — сколько раз пробовать транзакцию при конфликте.
func NewStore(db *pgxpool.Pool, retries int) *Store {
	if retries <= 0 {
		retries = 1
	}
	return &Store{db: db, retries: retries}
}

// querier — общее у пула и транзакции.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `user_id, points_balance, total_earned, total_spent, current_streak,
	longest_streak, last_activity_date, created_at, updated_at`

const plantColumns = `user_id, growth_points, growth_level, health, last_watered_at,
	last_decay_date, created_at, updated_at`

const taskColumns = `id, user_id, description, category, points_value, assigned_date,
	is_completed, completed_at`

func (s *Store) CreateAccount(ctx context.Context, userID string, now time.Time) (*domain.Account, *domain.Plant, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO accounts (user_id, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, now)
	if err != nil {
		return nil, nil, false, fmt.Errorf("ошибка создания аккаунта: %w", err)
	}
	created := tag.RowsAffected() == 1

	if created {
		_, err = tx.Exec(ctx, `
			INSERT INTO plants (user_id, growth_points, growth_level, health, last_watered_at, created_at, updated_at)
			VALUES ($1, 0, 1, 100, $2, $2, $2)
		`, userID, now)
		if err != nil {
			return nil, nil, false, fmt.Errorf("ошибка создания растения: %w", err)
		}
	}

	acc, err := loadAccount(ctx, tx, userID, false)
	if err != nil {
		return nil, nil, false, err
	}
	plant, err := loadPlant(ctx, tx, userID, false)
	if err != nil {
		return nil, nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, false, fmt.Errorf("ошибка фиксации аккаунта: %w", err)
	}
	return acc, plant, created, nil
}

func (s *Store) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	return loadAccount(ctx, s.db, userID, false)
}

func (s *Store) GetPlant(ctx context.Context, userID string) (*domain.Plant, error) {
	return loadPlant(ctx, s.db, userID, false)
}

// WithAccount выполняет fn в транзакции с блокировкой строк аккаунта и растения.
func (s *Store) WithAccount(ctx context.Context, userID string, fn func(tx storage.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.retries; attempt++ {
		err = s.withAccountOnce(ctx, userID, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		log.WithFields(log.Fields{
			"user_id": userID,
			"attempt": attempt,
		}).WithError(err).Warn("Конфликт транзакции, повторяем")
	}
	return fmt.Errorf("%w: %v", common.ErrConflict, err)
}

func (s *Store) withAccountOnce(ctx context.Context, userID string, fn func(tx storage.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	acc, err := loadAccount(ctx, tx, userID, true)
	if err != nil {
		return err
	}
	plant, err := loadPlant(ctx, tx, userID, true)
	if err != nil {
		return err
	}

	w := &pgTx{
		tx:            tx,
		userID:        userID,
		account:       acc,
		plant:         plant,
		origBadges:    slices.Clone(acc.BadgesEarned),
		origInventory: slices.Clone(acc.Inventory),
		touched:       make(map[string]*domain.DailyTask),
	}
	if err := fn(w); err != nil {
		return err
	}
	if err := w.flush(ctx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// isRetryable — serialization_failure (40001) и deadlock_detected (40P01).
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func loadAccount(ctx context.Context, q querier, userID string, lock bool) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var acc domain.Account
	err := q.QueryRow(ctx, query, userID).Scan(
		&acc.UserID, &acc.PointsBalance, &acc.TotalEarned, &acc.TotalSpent, &acc.CurrentStreak,
		&acc.LongestStreak, &acc.LastActivityDate, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения аккаунта: %w", err)
	}

	acc.BadgesEarned, err = collectStrings(ctx, q,
		`SELECT badge_id FROM account_badges WHERE user_id = $1 ORDER BY earned_at, badge_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения значков: %w", err)
	}
	acc.Inventory, err = collectStrings(ctx, q,
		`SELECT item_id FROM inventory_items WHERE user_id = $1 ORDER BY acquired_at, item_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвентаря: %w", err)
	}
	return &acc, nil
}

func loadPlant(ctx context.Context, q querier, userID string, lock bool) (*domain.Plant, error) {
	query := `SELECT ` + plantColumns + ` FROM plants WHERE user_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var p domain.Plant
	err := q.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.GrowthPoints, &p.GrowthLevel, &p.Health, &p.LastWateredAt,
		&p.LastDecayDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения растения: %w", err)
	}
	return &p, nil
}

func collectStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	result, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []string{}
	}
	return result, nil
}

func scanTask(row pgx.Row) (*domain.DailyTask, error) {
	var t domain.DailyTask
	err := row.Scan(&t.ID, &t.UserID, &t.Description, &t.Category, &t.PointsValue,
		&t.AssignedDate, &t.IsCompleted, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	ids, err := collectStrings(ctx, s.db, `SELECT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей: %w", err)
	}
	return ids, nil
}

func (s *Store) StaleStreaks(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := collectStrings(ctx, s.db, `
		SELECT user_id FROM accounts
		WHERE current_streak > 0
		  AND (last_activity_date IS NULL OR last_activity_date < $1)
		ORDER BY user_id
	`, before)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска устаревших стриков: %w", err)
	}
	return ids, nil
}

func (s *Store) NeglectedPlants(ctx context.Context, wateredBefore time.Time) ([]string, error) {
	ids, err := collectStrings(ctx, s.db, `
		SELECT user_id FROM plants
		WHERE health > 0 AND last_watered_at < $1
		ORDER BY user_id
	`, wateredBefore)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска заброшенных растений: %w", err)
	}
	return ids, nil
}

func (s *Store) ListTasksForDay(ctx context.Context, userID string, day time.Time) ([]*domain.DailyTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+` FROM daily_tasks
		WHERE user_id = $1 AND assigned_date = $2
		ORDER BY category
	`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заданий: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.DailyTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения задания: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, kind, amount, transaction_type, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Type, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения транзакции: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, icon_ref, criteria, points_required
		FROM badges
		ORDER BY points_required, id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения значков: %w", err)
	}
	badges, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Badge])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения значков: %w", err)
	}
	return badges, nil
}

func (s *Store) UpsertBadge(ctx context.Context, b domain.Badge) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO badges (id, name, description, icon_ref, criteria, points_required)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			icon_ref = EXCLUDED.icon_ref,
			criteria = EXCLUDED.criteria,
			points_required = EXCLUDED.points_required
	`, b.ID, b.Name, b.Description, b.IconRef, b.Criteria, b.PointsRequired)
	if err != nil {
		return fmt.Errorf("ошибка сохранения значка: %w", err)
	}
	return nil
}

const itemColumns = `id, name, description, cost, category, rarity, image_ref, is_active`

func (s *Store) ListStoreItems(ctx context.Context) ([]domain.StoreItem, error) {
	rows, err := s.db.Query(ctx, `SELECT `+itemColumns+` FROM store_items ORDER BY cost, id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения товаров: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.StoreItem])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения товаров: %w", err)
	}
	return items, nil
}

func (s *Store) GetStoreItem(ctx context.Context, itemID string) (*domain.StoreItem, error) {
	rows, err := s.db.Query(ctx, `SELECT `+itemColumns+` FROM store_items WHERE id = $1`, itemID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения товара: %w", err)
	}
	item, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByPos[domain.StoreItem])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения товара: %w", err)
	}
	return item, nil
}

func (s *Store) UpsertStoreItem(ctx context.Context, it domain.StoreItem) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO store_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			cost = EXCLUDED.cost,
			category = EXCLUDED.category,
			rarity = EXCLUDED.rarity,
			image_ref = EXCLUDED.image_ref,
			is_active = EXCLUDED.is_active
	`, it.ID, it.Name, it.Description, it.Cost, it.Category, it.Rarity, it.ImageRef, it.IsActive)
	if err != nil {
		return fmt.Errorf("ошибка сохранения товара: %w", err)
	}
	return nil
}

// pgTx — рабочая копия аккаунта внутри транзакции БД.
// Изменения пишутся одним батчем в flush перед COMMIT.
type pgTx struct {
	tx            pgx.Tx
	userID        string
	account       *domain.Account
	plant         *domain.Plant
	origBadges    []string
	origInventory []string
	touched       map[string]*domain.DailyTask
	added         []*domain.DailyTask
	records       []domain.Transaction
}

func (t *pgTx) Account() *domain.Account { return t.account }
func (t *pgTx) Plant() *domain.Plant     { return t.plant }

func (t *pgTx) Task(ctx context.Context, taskID string) (*domain.DailyTask, error) {
	if task, ok := t.touched[taskID]; ok {
		return task, nil
	}
	for _, task := range t.added {
		if task.ID == taskID {
			return task, nil
		}
	}

	task, err := scanTask(t.tx.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM daily_tasks WHERE id = $1`, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения задания: %w", err)
	}
	t.touched[taskID] = task
	return task, nil
}

func (t *pgTx) HasTasks(ctx context.Context, day time.Time) (bool, error) {
	if slices.ContainsFunc(t.added, func(task *domain.DailyTask) bool { return task.AssignedDate.Equal(day) }) {
		return true, nil
	}

	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM daily_tasks WHERE user_id = $1 AND assigned_date = $2)`,
		t.userID, day,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки заданий: %w", err)
	}
	return exists, nil
}

func (t *pgTx) AddTask(task *domain.DailyTask) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.UserID = t.userID
	t.added = append(t.added, task)
}

func (t *pgTx) Record(entry domain.Transaction) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.UserID = t.userID
	t.records = append(t.records, entry)
}

// flush записывает все изменения одним батчем.
func (t *pgTx) flush(ctx context.Context) error {
	acc, p := t.account, t.plant
	batch := &pgx.Batch{}

	batch.Queue(`
		UPDATE accounts SET
			points_balance = $2, total_earned = $3, total_spent = $4,
			current_streak = $5, longest_streak = $6, last_activity_date = $7,
			updated_at = $8
		WHERE user_id = $1
	`, t.userID, acc.PointsBalance, acc.TotalEarned, acc.TotalSpent,
		acc.CurrentStreak, acc.LongestStreak, acc.LastActivityDate, acc.UpdatedAt)

	batch.Queue(`
		UPDATE plants SET
			growth_points = $2, growth_level = $3, health = $4,
			last_watered_at = $5, last_decay_date = $6, updated_at = $7
		WHERE user_id = $1
	`, t.userID, p.GrowthPoints, p.GrowthLevel, p.Health, p.LastWateredAt, p.LastDecayDate, p.UpdatedAt)

	// Значки и инвентарь только добавляются
	for _, id := range acc.BadgesEarned {
		if !slices.Contains(t.origBadges, id) {
			batch.Queue(`
				INSERT INTO account_badges (user_id, badge_id, earned_at) VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING
			`, t.userID, id, acc.UpdatedAt)
		}
	}
	for _, id := range acc.Inventory {
		if !slices.Contains(t.origInventory, id) {
			batch.Queue(`
				INSERT INTO inventory_items (user_id, item_id, acquired_at) VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING
			`, t.userID, id, acc.UpdatedAt)
		}
	}

	for _, task := range t.touched {
		if task.UserID != t.userID {
			continue
		}
		batch.Queue(`
			UPDATE daily_tasks SET is_completed = $2, completed_at = $3 WHERE id = $1
		`, task.ID, task.IsCompleted, task.CompletedAt)
	}
	for _, task := range t.added {
		batch.Queue(`
			INSERT INTO daily_tasks (`+taskColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, task.ID, task.UserID, task.Description, task.Category, task.PointsValue,
			task.AssignedDate, task.IsCompleted, task.CompletedAt)
	}
	for _, r := range t.records {
		batch.Queue(`
			INSERT INTO transactions (id, user_id, kind, amount, transaction_type, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.ID, r.UserID, r.Kind, r.Amount, r.Type, r.Description, r.CreatedAt)
	}

	results := t.tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("ошибка записи изменений аккаунта: %w", err)
		}
	}
	return results.Close()
}
