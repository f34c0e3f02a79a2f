package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/logger"
)

// errRollbackOnly signals a deliberate rollback of a successful dry run.
var errRollbackOnly = errors.New("rollback only")

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back on error.
func WithTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			logger.Error("failed to rollback transaction after error", logger.Err(rbErr))
		}
		return err
	}
	return tx.Commit().Error
}

// WithRollback runs fn inside a transaction that is always rolled back,
// whatever fn returns. Dry-run modes use this so every write is visible to
// fn yet nothing persists.
func WithRollback(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	err := WithTransaction(db, func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errRollbackOnly
	})
	if errors.Is(err, errRollbackOnly) {
		return nil
	}
	return err
}
