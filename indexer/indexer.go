package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"daochain/core/runtime"
	"daochain/core/types"
)

var ErrNotFound = errors.New("indexer: record not found")

const defaultEventLimit = 100

// Indexer archives blocks, receipts and events into a SQL database. It is
// registered with the runtime as an event sink and fed sealed blocks by the
// node.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Dialector picks the driver for dsn: PostgreSQL URLs go to the postgres
// driver, anything else is treated as a SQLite path.
func Dialector(dsn string) gorm.Dialector {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// Open connects to dsn and migrates the schema.
func Open(dsn string, log *slog.Logger) (*Indexer, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("indexer: dsn required")
	}
	db, err := gorm.Open(Dialector(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	return New(db, log)
}

// New wraps an open database.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db, logger: log}, nil
}

func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Publish stores committed events. A sink cannot fail the commit that
// produced the events, so storage errors are logged.
func (ix *Indexer) Publish(height uint64, evts []*types.Event) {
	if len(evts) == 0 {
		return
	}
	records := make([]EventRecord, 0, len(evts))
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		module, kind := splitType(evt.Type)
		records = append(records, EventRecord{
			Height:     height,
			Module:     module,
			Type:       kind,
			Attributes: evt.Clone().Attributes,
		})
	}
	if err := ix.db.Create(&records).Error; err != nil {
		ix.logger.Error("indexer: store events", "height", height, "count", len(records), "error", err)
	}
}

// RecordBlock stores a sealed block with its receipts.
func (ix *Indexer) RecordBlock(ctx context.Context, result *runtime.BlockResult) error {
	if result == nil {
		return nil
	}
	issued := "0"
	if result.Issued != nil {
		issued = result.Issued.String()
	}
	block := BlockRecord{
		Height:            result.Height,
		Era:               result.Era,
		NewEra:            result.NewEra,
		Issued:            issued,
		Weight:            result.Weight,
		Extrinsics:        len(result.Receipts),
		UnregisterStatus:  result.Unregister.Status.String(),
		UnregisterDao:     result.Unregister.DaoID,
		UnregisterStepped: result.Unregister.Processed,
		ExtrinsicsRoot:    hashString(result.ExtrinsicsRoot),
		ReceiptsRoot:      hashString(result.ReceiptsRoot),
	}
	return ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&block).Error; err != nil {
			return fmt.Errorf("indexer: store block %d: %w", result.Height, err)
		}
		if len(result.Receipts) == 0 {
			return nil
		}
		records := make([]ExtrinsicRecord, 0, len(result.Receipts))
		for _, receipt := range result.Receipts {
			records = append(records, ExtrinsicRecord{
				Hash:    hashString(receipt.Hash),
				Height:  receipt.Height,
				Index:   receipt.Index,
				Call:    receipt.Call,
				Success: receipt.Success,
				Error:   truncate(receipt.Error, 512),
				Weight:  receipt.Weight,
			})
		}
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("indexer: store receipts of block %d: %w", result.Height, err)
		}
		return nil
	})
}

// Block returns the archived block at height.
func (ix *Indexer) Block(ctx context.Context, height uint64) (*BlockRecord, error) {
	var record BlockRecord
	err := ix.db.WithContext(ctx).First(&record, "height = ?", height).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Extrinsic returns the receipt archived under hash.
func (ix *Indexer) Extrinsic(ctx context.Context, hash [32]byte) (*ExtrinsicRecord, error) {
	var record ExtrinsicRecord
	err := ix.db.WithContext(ctx).First(&record, "hash = ?", hashString(hash)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// EventFilter narrows an event query. Zero fields match everything; Limit
// defaults to 100.
type EventFilter struct {
	Module     string
	Type       string
	FromHeight uint64
	ToHeight   uint64
	AfterID    uint64
	Limit      int
}

// Events returns archived events in commit order.
func (ix *Indexer) Events(ctx context.Context, filter EventFilter) ([]EventRecord, error) {
	query := ix.db.WithContext(ctx).Model(&EventRecord{})
	if filter.Module != "" {
		query = query.Where("module = ?", filter.Module)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.FromHeight > 0 {
		query = query.Where("height >= ?", filter.FromHeight)
	}
	if filter.ToHeight > 0 {
		query = query.Where("height <= ?", filter.ToHeight)
	}
	if filter.AfterID > 0 {
		query = query.Where("id > ?", filter.AfterID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	var records []EventRecord
	if err := query.Order("id ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func splitType(full string) (string, string) {
	module, kind, ok := strings.Cut(full, ".")
	if !ok {
		return "", full
	}
	return module, kind
}

func hashString(hash [32]byte) string {
	return "0x" + hex.EncodeToString(hash[:])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
