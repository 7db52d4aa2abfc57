package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/logger"
)

// DefaultTransferBatchSize is used when Transfer is given a non-positive size.
const DefaultTransferBatchSize = 500

// TransferStats summarises a Transfer.
type TransferStats struct {
	Source   int64         `json:"source"`
	Copied   int64         `json:"copied"`
	Skipped  int64         `json:"skipped"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration"`
}

type gormProvider interface {
	gormDB() *gorm.DB
	invalidateStats()
}

func (ds *DataStore) gormDB() *gorm.DB { return ds.DB }

func (ds *DataStore) invalidateStats() { ds.stats.invalidate() }

// Transfer copies every detection from src to dst, oldest first, typically
// from a local SQLite file into MySQL. Rows are matched by UUID: rows already
// in dst are skipped, so an interrupted transfer can simply be rerun. After
// each batch every UUID of the batch must be present in dst. IDs are
// reassigned by dst.
func Transfer(ctx context.Context, src, dst Interface, batchSize int) (*TransferStats, error) {
	from, ok := src.(gormProvider)
	if !ok {
		return nil, fmt.Errorf("unsupported source store %T", src)
	}
	to, ok := dst.(gormProvider)
	if !ok {
		return nil, fmt.Errorf("unsupported target store %T", dst)
	}
	srcDB, dstDB := from.gormDB(), to.gormDB()
	if srcDB == nil || dstDB == nil {
		return nil, errNotOpen()
	}
	if batchSize <= 0 {
		batchSize = DefaultTransferBatchSize
	}

	start := time.Now()
	stats := &TransferStats{}
	if err := srcDB.WithContext(ctx).Model(&Detection{}).Count(&stats.Source).Error; err != nil {
		return nil, dbError("transfer_count", err).Build()
	}

	log := GetLogger()
	var rows []Detection
	result := srcDB.WithContext(ctx).Order("id").FindInBatches(&rows, batchSize, func(tx *gorm.DB, batch int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		copied, err := copyBatch(ctx, dstDB, rows)
		if err != nil {
			return err
		}
		stats.Batches = batch
		stats.Copied += copied
		stats.Skipped += int64(len(rows)) - copied
		log.Debug("transfer batch committed",
			logger.Int("batch", batch),
			logger.Int("rows", len(rows)),
			logger.Int64("copied", copied))
		return nil
	})
	to.invalidateStats()
	stats.Duration = time.Since(start)
	if result.Error != nil {
		if errors.Is(result.Error, context.Canceled) || errors.Is(result.Error, context.DeadlineExceeded) {
			return stats, errors.New(result.Error).
				Component("datastore").
				Category(errors.CategoryCancellation).
				Build()
		}
		return stats, dbError("transfer", result.Error).
			Context("copied", stats.Copied).
			Build()
	}

	log.Info("detection history transferred",
		logger.Int64("source", stats.Source),
		logger.Int64("copied", stats.Copied),
		logger.Int64("skipped", stats.Skipped),
		logger.Duration("elapsed", stats.Duration))
	return stats, nil
}

// copyBatch inserts rows into db, ignoring UUIDs already present, and checks
// that every UUID of the batch ended up in db.
func copyBatch(ctx context.Context, db *gorm.DB, rows []Detection) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	batch := make([]Detection, len(rows))
	uuids := make([]string, len(rows))
	for i, r := range rows {
		r.ID = 0
		batch[i] = r
		uuids[i] = r.UUID
	}

	var copied int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoNothing: true,
		}).Create(&batch)
		if res.Error != nil {
			return res.Error
		}
		copied = res.RowsAffected

		var present int64
		if err := tx.Model(&Detection{}).Where("uuid IN ?", uuids).Count(&present).Error; err != nil {
			return err
		}
		if present != int64(len(uuids)) {
			return fmt.Errorf("verification failed: %d of %d rows present in target", present, len(uuids))
		}
		return nil
	})
	return copied, err
}
