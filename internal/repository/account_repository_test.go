package repository_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/domain"
	"mediavault/internal/repository"
)

// Вспомогательная функция: мок БД, репозиторий и открытая транзакция
func setupAccountRepoTx(t *testing.T) (*repository.PostgresAccountRepository, sqlmock.Sqlmock, *sqlx.Tx) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := repository.NewPostgresAccountRepository(sqlxDB)

	mock.ExpectBegin()
	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	return repo, mock, tx
}

func TestReserveStorage(t *testing.T) {
	accountID := uuid.New()

	tests := []struct {
		name        string
		amountBytes int64
		quota       int64
		used        int64
		wantErr     bool
		wantKind    domain.ErrorKind
	}{
		{
			name:        "Успешное резервирование",
			amountBytes: 50,
			quota:       200,
			used:        100,
		},
		{
			name:        "Резервирование впритык",
			amountBytes: 100,
			quota:       200,
			used:        100,
		},
		{
			name:        "Квота превышена",
			amountBytes: 150,
			quota:       200,
			used:        100,
			wantErr:     true,
			wantKind:    domain.ErrKindQuotaExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, tx := setupAccountRepoTx(t)

			rows := sqlmock.NewRows([]string{"id", "storage_quota_bytes", "storage_used_bytes"}).
				AddRow(accountID, tt.quota, tt.used)
			mock.ExpectQuery(`SELECT id, storage_quota_bytes, storage_used_bytes FROM accounts WHERE id = \$1 FOR UPDATE`).
				WithArgs(accountID).
				WillReturnRows(rows)

			if !tt.wantErr {
				mock.ExpectExec(`UPDATE accounts`).
					WithArgs(tt.amountBytes, accountID).
					WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := repo.ReserveStorage(context.Background(), tx, accountID, tt.amountBytes)

			if tt.wantErr {
				require.Error(t, err)
				domErr, ok := domain.AsError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantKind, domErr.Kind)
				assert.Equal(t, tt.quota-tt.used, domErr.AvailableBytes)
				assert.Equal(t, tt.amountBytes, domErr.RequestedBytes)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReserveStorageRequiresTransaction(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewPostgresAccountRepository(sqlx.NewDb(db, "sqlmock"))

	err = repo.ReserveStorage(context.Background(), nil, uuid.New(), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a transaction")
}

func TestReserveStorageAccountNotFound(t *testing.T) {
	repo, mock, tx := setupAccountRepoTx(t)
	accountID := uuid.New()

	mock.ExpectQuery(`SELECT id, storage_quota_bytes, storage_used_bytes FROM accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_quota_bytes", "storage_used_bytes"}))

	err := repo.ReserveStorage(context.Background(), tx, accountID, 100)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))
}

func TestReleaseStorage(t *testing.T) {
	accountID := uuid.New()

	t.Run("Счетчик не уходит ниже нуля", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := repository.NewPostgresAccountRepository(sqlx.NewDb(db, "sqlmock"))

		// Ограничение снизу обеспечивает GREATEST в самом запросе
		mock.ExpectExec(`GREATEST\(0, storage_used_bytes - \$1\)`).
			WithArgs(int64(500), accountID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.ReleaseStorage(context.Background(), nil, accountID, 500)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Аккаунт не найден", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := repository.NewPostgresAccountRepository(sqlx.NewDb(db, "sqlmock"))

		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(500), accountID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.ReleaseStorage(context.Background(), nil, accountID, 500)
		require.Error(t, err)
		assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))
	})
}
