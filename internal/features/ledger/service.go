// Package ledger — счёт очков пользователя.
//
// Credit и Debit работают внутри storage.Tx: изменение баланса и запись журнала
// попадают в одну атомарную единицу вместе с тем, ради чего списание делалось
// (например, выдача товара). Service отдаёт журнал операций.
package ledger

import (
	"context"
	"fmt"
	"time"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/storage"
)

// Credit начисляет очки на счёт внутри транзакции аккаунта.
func Credit(tx storage.Tx, amount int64, txType, description string, now time.Time) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}

	acc := tx.Account()
	acc.PointsBalance += amount
	acc.TotalEarned += amount
	acc.UpdatedAt = now

	tx.Record(domain.Transaction{
		Kind:        domain.KindCredit,
		Amount:      amount,
		Type:        txType,
		Description: description,
		CreatedAt:   now,
	})
	return nil
}

// Debit списывает очки внутри транзакции аккаунта.
// Баланс никогда не уходит в минус: при нехватке возвращается ErrInsufficientFunds
// и ничего не меняется.
func Debit(tx storage.Tx, amount int64, txType, description string, now time.Time) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}

	acc := tx.Account()
	if acc.PointsBalance < amount {
		return fmt.Errorf("%w: нужно %d, есть %d", common.ErrInsufficientFunds, amount, acc.PointsBalance)
	}
	acc.PointsBalance -= amount
	acc.TotalSpent += amount
	acc.UpdatedAt = now

	tx.Record(domain.Transaction{
		Kind:        domain.KindDebit,
		Amount:      amount,
		Type:        txType,
		Description: description,
		CreatedAt:   now,
	})
	return nil
}

// Service отдаёт журнал операций по счёту.
type Service struct {
	store storage.AccountStore
}

// NewService создаёт сервис счёта.
func NewService(store storage.AccountStore) *Service {
	return &Service{store: store}
}

// History возвращает последние операции пользователя (не больше limit, по умолчанию 20).
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if _, err := s.store.GetAccount(ctx, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListTransactions(ctx, userID, limit)
}
