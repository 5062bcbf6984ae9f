package db

import (
	"context"

	"gorm.io/gorm"
)

const DefaultTxAttempts = 3

// Transaction runs fn inside a transaction and replays it when the database
// aborts it with a retryable error, up to attempts times.
func Transaction(ctx context.Context, db *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}
