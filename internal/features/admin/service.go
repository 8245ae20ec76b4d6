// Package admin — service.go содержит вход администратора и управление каталогами.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// Защита от перебора: 3 неудачные попытки = блокировка на 1 час
const (
	maxFailedAttempts = 3
	attemptWindow     = time.Hour
)

// Service управляет админкой.
type Service struct {
	store        storage.CatalogStore
	passwordHash string
	clock        common.Clock
	validate     *validator.Validate

	mu       sync.Mutex
	failures map[string][]time.Time // Неудачные попытки по клиенту
}

// NewService создаёт сервис админки. Пустой passwordHash отключает вход.
func NewService(store storage.CatalogStore, passwordHash string, clock common.Clock) *Service {
	return &Service{
		store:        store,
		passwordHash: passwordHash,
		clock:        clock,
		validate:     validator.New(),
		failures:     make(map[string][]time.Time),
	}
}

// Enabled сообщает, настроен ли пароль администратора.
func (s *Service) Enabled() bool {
	return s.passwordHash != ""
}

// Authenticate проверяет пароль администратора для клиента client (например, IP).
func (s *Service) Authenticate(client, password string) error {
	if !s.Enabled() {
		return common.ErrForbidden
	}

	now := s.clock.Now()
	if s.recentFailures(client, now) >= maxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	if !VerifyPassword(password, s.passwordHash) {
		s.recordFailure(client, now)
		log.WithField("client", client).Warn("Неудачная попытка входа в админку")
		return common.ErrWrongPassword
	}
	return nil
}

func (s *Service) recentFailures(client string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-attemptWindow)
	kept := s.failures[client][:0]
	for _, at := range s.failures[client] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(s.failures, client)
		return 0
	}
	s.failures[client] = kept
	return len(kept)
}

func (s *Service) recordFailure(client string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[client] = append(s.failures[client], now)
}

// UpsertBadge добавляет или обновляет значок каталога.
func (s *Service) UpsertBadge(ctx context.Context, badge domain.Badge) error {
	badge.ID = strings.TrimSpace(badge.ID)
	if err := s.check(badge); err != nil {
		return err
	}
	if err := s.store.UpsertBadge(ctx, badge); err != nil {
		return fmt.Errorf("ошибка сохранения значка: %w", err)
	}
	log.WithFields(log.Fields{
		"badge_id":        badge.ID,
		"points_required": badge.PointsRequired,
	}).Info("Значок сохранён")
	return nil
}

// UpsertStoreItem добавляет или обновляет товар магазина.
func (s *Service) UpsertStoreItem(ctx context.Context, item domain.StoreItem) error {
	item.ID = strings.TrimSpace(item.ID)
	if err := s.check(item); err != nil {
		return err
	}
	if err := s.store.UpsertStoreItem(ctx, item); err != nil {
		return fmt.Errorf("ошибка сохранения товара: %w", err)
	}
	log.WithFields(log.Fields{
		"item_id": item.ID,
		"cost":    item.Cost,
		"active":  item.IsActive,
	}).Info("Товар сохранён")
	return nil
}

// SeedCatalog заносит стартовые значки и товары. Существующие записи перезаписываются.
func (s *Service) SeedCatalog(ctx context.Context, badgeSet []domain.Badge, items []domain.StoreItem) error {
	for _, b := range badgeSet {
		if err := s.UpsertBadge(ctx, b); err != nil {
			return fmt.Errorf("значок %s: %w", b.ID, err)
		}
	}
	for _, it := range items {
		if err := s.UpsertStoreItem(ctx, it); err != nil {
			return fmt.Errorf("товар %s: %w", it.ID, err)
		}
	}
	log.WithFields(log.Fields{
		"badges": len(badgeSet),
		"items":  len(items),
	}).Info("Каталог заполнен")
	return nil
}

// check валидирует запись каталога по тегам validate.
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", common.ErrInvalidInput, strings.Join(fields, ", "))
}
