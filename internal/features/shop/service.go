// Package shop — магазин: покупка предметов за очки.
//
// Порядок проверок: товар существует и продаётся → ещё не куплен → хватает очков.
// Проверки владения и баланса, списание и выдача предмета выполняются в одной
// транзакции аккаунта: либо списано и выдано, либо ничего.
package shop

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/features/ledger"
	"serotonyl.ru/wellness-engine/internal/metrics"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// Service управляет магазином.
type Service struct {
	store storage.Store
	clock common.Clock
}

// NewService создаёт сервис магазина.
func NewService(store storage.Store, clock common.Clock) *Service {
	return &Service{store: store, clock: clock}
}

// Items возвращает товары, доступные к покупке.
func (s *Service) Items(ctx context.Context) ([]domain.StoreItem, error) {
	all, err := s.store.ListStoreItems(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]domain.StoreItem, 0, len(all))
	for _, it := range all {
		if it.IsActive {
			items = append(items, it)
		}
	}
	return items, nil
}

// Purchase покупает предмет и возвращает обновлённый аккаунт.
func (s *Service) Purchase(ctx context.Context, userID, itemID string) (*domain.Account, error) {
	acc, err := s.purchase(ctx, userID, itemID)
	metrics.Purchases.WithLabelValues(purchaseResult(err)).Inc()
	return acc, err
}

func (s *Service) purchase(ctx context.Context, userID, itemID string) (*domain.Account, error) {
	item, err := s.store.GetStoreItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, common.ErrItemNotFound
	}

	var acc *domain.Account
	err = s.store.WithAccount(ctx, userID, func(tx storage.Tx) error {
		now := s.clock.Now()
		a := tx.Account()
		if a.Owns(item.ID) {
			return common.ErrAlreadyOwned
		}
		if item.Cost > 0 {
			err := ledger.Debit(tx, item.Cost, domain.TxTypePurchase, fmt.Sprintf("Покупка: %s", item.Name), now)
			if err != nil {
				return err
			}
		}
		a.Inventory = append(a.Inventory, item.ID)
		a.UpdatedAt = now
		acc = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if item.Cost > 0 {
		metrics.PointsDebited.WithLabelValues(domain.TxTypePurchase).Add(float64(item.Cost))
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"item_id": item.ID,
		"cost":    item.Cost,
		"balance": acc.PointsBalance,
	}).Info("Покупка выполнена")
	return acc, nil
}

func purchaseResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrAlreadyOwned):
		return "already_owned"
	case errors.Is(err, common.ErrInsufficientFunds):
		return "insufficient"
	default:
		return "error"
	}
}

// Inventory возвращает купленные пользователем товары.
// Товары, удалённые из каталога, возвращаются только с ID.
func (s *Service) Inventory(ctx context.Context, userID string) ([]domain.StoreItem, error) {
	acc, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.StoreItem, 0, len(acc.Inventory))
	for _, id := range acc.Inventory {
		it, err := s.store.GetStoreItem(ctx, id)
		if errors.Is(err, common.ErrItemNotFound) {
			items = append(items, domain.StoreItem{ID: id})
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, nil
}
