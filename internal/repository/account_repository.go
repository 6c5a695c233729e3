package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"mediavault/internal/domain"
)

// AccountRepository обслуживает счетчики квоты аккаунта.
// Резервирование места обязано выполняться в одной транзакции под
// блокировкой строки аккаунта, чтобы два конкурентных запроса не могли
// совместно переполнить квоту.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ReserveStorage(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amountBytes int64) error
	ReleaseStorage(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amountBytes int64) error
}

type PostgresAccountRepository struct {
	db *sqlx.DB
}

func NewPostgresAccountRepository(db *sqlx.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

// q возвращает исполнителя запросов: транзакцию, если она передана,
// иначе пул соединений
func (r *PostgresAccountRepository) q(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	err := r.db.GetContext(ctx, &account,
		`SELECT * FROM accounts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("account_id", "account not found")
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// ReserveStorage читает счетчики под FOR UPDATE, проверяет запас и
// увеличивает used_bytes. Блокировка держится до конца транзакции tx,
// поэтому внутрь нее нельзя помещать обращения к хранилищу объектов.
func (r *PostgresAccountRepository) ReserveStorage(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amountBytes int64) error {
	if tx == nil {
		return fmt.Errorf("storage reservation requires a transaction")
	}

	var account domain.Account
	err := tx.GetContext(ctx, &account,
		`SELECT id, storage_quota_bytes, storage_used_bytes FROM accounts WHERE id = $1 FOR UPDATE`,
		accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("account_id", "account not found")
		}
		return fmt.Errorf("failed to lock account row: %w", err)
	}

	available := account.StorageQuotaBytes - account.StorageUsedBytes
	if amountBytes > available {
		return domain.NewQuotaExceeded(available, amountBytes)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts
         SET storage_used_bytes = storage_used_bytes + $1,
             updated_at = CURRENT_TIMESTAMP
         WHERE id = $2`,
		amountBytes, accountID)
	if err != nil {
		return fmt.Errorf("failed to reserve storage: %w", err)
	}

	return nil
}

// ReleaseStorage уменьшает used_bytes, не давая счетчику уйти ниже нуля
func (r *PostgresAccountRepository) ReleaseStorage(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amountBytes int64) error {
	result, err := r.q(tx).ExecContext(ctx,
		`UPDATE accounts
         SET storage_used_bytes = GREATEST(0, storage_used_bytes - $1),
             updated_at = CURRENT_TIMESTAMP
         WHERE id = $2`,
		amountBytes, accountID)
	if err != nil {
		return fmt.Errorf("failed to release storage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.NewNotFound("account_id", "account not found")
	}

	return nil
}
