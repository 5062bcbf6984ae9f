package db

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	return conn
}

func TestTransactionRetriesSerializationFailures(t *testing.T) {
	conn := openTestDB(t)

	calls := 0
	err := Transaction(context.Background(), conn, DefaultTxAttempts, func(tx *gorm.DB) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestTransactionGivesUpAfterAttempts(t *testing.T) {
	conn := openTestDB(t)

	calls := 0
	err := Transaction(context.Background(), conn, 2, func(tx *gorm.DB) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 2, calls)
}

func TestTransactionDoesNotRetryOtherErrors(t *testing.T) {
	conn := openTestDB(t)
	boom := errors.New("boom")

	calls := 0
	err := Transaction(context.Background(), conn, DefaultTxAttempts, func(tx *gorm.DB) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestForUpdateSkipsSQLite(t *testing.T) {
	conn := openTestDB(t)
	assert.Equal(t, "SELECT 1", ForUpdate(conn, "SELECT 1"))
}
