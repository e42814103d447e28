package indexer

import (
	"time"

	"gorm.io/gorm"
)

// BlockRecord summarises a sealed block.
type BlockRecord struct {
	Height            uint64 `gorm:"primaryKey;autoIncrement:false"`
	Era               uint32 `gorm:"index"`
	NewEra            bool
	Issued            string `gorm:"size:80"`
	Weight            uint64
	Extrinsics        int
	UnregisterStatus  string `gorm:"size:16"`
	UnregisterDao     uint32
	UnregisterStepped uint32
	ExtrinsicsRoot    string `gorm:"size:66"`
	ReceiptsRoot      string `gorm:"size:66"`
	CreatedAt         time.Time
}

// ExtrinsicRecord is the receipt of one applied extrinsic.
type ExtrinsicRecord struct {
	Hash      string `gorm:"primaryKey;size:66"`
	Height    uint64 `gorm:"index"`
	Index     uint32
	Call      string `gorm:"size:64;index"`
	Success   bool   `gorm:"index"`
	Error     string `gorm:"size:512"`
	Weight    uint64
	CreatedAt time.Time
}

// EventRecord is one committed event. ID preserves commit order.
type EventRecord struct {
	ID         uint64            `gorm:"primaryKey;autoIncrement"`
	Height     uint64            `gorm:"index"`
	Module     string            `gorm:"size:32;index:idx_event_kind"`
	Type       string            `gorm:"size:64;index:idx_event_kind"`
	Attributes map[string]string `gorm:"serializer:json"`
	CreatedAt  time.Time
}

// AutoMigrate performs all schema migrations for the archive.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&BlockRecord{},
		&ExtrinsicRecord{},
		&EventRecord{},
	)
}
