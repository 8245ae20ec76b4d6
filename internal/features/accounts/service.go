// Package accounts — регистрация пользователей движка.
// Регистрация создаёт аккаунт и растение; повторный вызов безопасен.
package accounts

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// maxUserIDLen — ограничение на длину внешнего ID пользователя.
const maxUserIDLen = 128

// Profile — аккаунт вместе с растением.
type Profile struct {
	Account *domain.Account `json:"account"`
	Plant   *domain.Plant   `json:"plant"`
}

// Service управляет аккаунтами.
type Service struct {
	store storage.AccountStore
	clock common.Clock
}

// NewService создаёт сервис аккаунтов.
func NewService(store storage.AccountStore, clock common.Clock) *Service {
	return &Service{store: store, clock: clock}
}

// Register создаёт аккаунт и растение пользователя.
// Если пользователь уже зарегистрирован — возвращает существующий профиль.
func (s *Service) Register(ctx context.Context, userID string) (*Profile, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || len(userID) > maxUserIDLen {
		return nil, false, fmt.Errorf("%w: некорректный ID пользователя", common.ErrInvalidInput)
	}

	acc, plant, created, err := s.store.CreateAccount(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, false, fmt.Errorf("ошибка регистрации пользователя: %w", err)
	}

	if created {
		log.WithField("user_id", userID).Info("Новый пользователь зарегистрирован")
	}
	return &Profile{Account: acc, Plant: plant}, created, nil
}

// Get возвращает профиль пользователя.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	acc, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	plant, err := s.store.GetPlant(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{Account: acc, Plant: plant}, nil
}

// Exists проверяет, зарегистрирован ли пользователь.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.store.GetAccount(ctx, userID)
	if err == nil {
		return true, nil
	}
	if common.IsNotFound(err) {
		return false, nil
	}
	return false, err
}
