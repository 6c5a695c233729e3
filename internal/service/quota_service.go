package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"mediavault/internal/domain"
	"mediavault/internal/repository"
)

// Количество попыток резервирования при конфликтах сериализации
const maxReserveAttempts = 3

// StorageQuotaService - учетная книга квоты аккаунта. Квота списывается
// в момент создания записи о файле и не возвращается при нормальном
// завершении загрузки; возврат происходит только при удалении файла,
// который так и не был дозагружен.
type StorageQuotaService struct {
	txManager   repository.TxManager
	accountRepo repository.AccountRepository
	log         *zap.Logger
}

func NewStorageQuotaService(
	txManager repository.TxManager,
	accountRepo repository.AccountRepository,
	log *zap.Logger,
) *StorageQuotaService {
	return &StorageQuotaService{
		txManager:   txManager,
		accountRepo: accountRepo,
		log:         log,
	}
}

func (s *StorageQuotaService) GetQuotaInfo(ctx context.Context, accountID uuid.UUID) (*domain.QuotaInfo, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return domain.NewQuotaInfo(account), nil
}

// WithReservation резервирует amountBytes и выполняет fn в той же
// транзакции: запись о файле и списание квоты фиксируются или
// откатываются вместе. Конфликты сериализации повторяются ограниченное
// число раз, после чего наружу уходит ошибка conflict.
func (s *StorageQuotaService) WithReservation(ctx context.Context, accountID uuid.UUID, amountBytes int64, fn func(tx *sqlx.Tx) error) error {
	if amountBytes < 0 {
		return domain.NewValidation("file_size_bytes", "reservation amount cannot be negative")
	}

	var lastErr error
	for attempt := 1; attempt <= maxReserveAttempts; attempt++ {
		err := s.txManager.WithinTransaction(ctx, func(tx *sqlx.Tx) error {
			if err := s.accountRepo.ReserveStorage(ctx, tx, accountID, amountBytes); err != nil {
				return err
			}
			if fn != nil {
				return fn(tx)
			}
			return nil
		})
		if err == nil {
			return nil
		}
		if !isRetryableTxError(err) {
			return err
		}
		lastErr = err
		s.log.Warn("storage reservation conflict, retrying",
			zap.String("account_id", accountID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return domain.NewConflict("storage reservation conflict, retry the operation", lastErr)
}

// Reserve резервирует место без сопутствующей работы в транзакции
func (s *StorageQuotaService) Reserve(ctx context.Context, accountID uuid.UUID, amountBytes int64) error {
	return s.WithReservation(ctx, accountID, amountBytes, nil)
}

// Release возвращает место; tx может быть nil
func (s *StorageQuotaService) Release(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, amountBytes int64) error {
	return s.accountRepo.ReleaseStorage(ctx, tx, accountID, amountBytes)
}

// isRetryableTxError распознает конфликты сериализации и дедлоки Postgres
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
