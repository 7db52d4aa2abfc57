package datastore

import (
	"context"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

const (
	maxRetries = 3
	retryDelay = 50 * time.Millisecond
)

// MySQL server error numbers worth retrying.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

func errNotOpen() error {
	return errors.Newf("database connection is not initialized").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}

func dbError(operation string, err error) *errors.ErrorBuilder {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)
}

// isTransient reports lock contention that a retry can resolve.
func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDeadlock || mysqlErr.Number == mysqlLockWaitTimeout
	}
	return false
}

func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := range maxRetries {
		if err = op(); err == nil || !isTransient(err) {
			return err
		}
		GetLogger().Debug("retrying after lock contention")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay * time.Duration(attempt+1)):
		}
	}
	return err
}
