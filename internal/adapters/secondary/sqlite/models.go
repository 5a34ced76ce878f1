package sqlite

import (
	"time"

	"gorm.io/datatypes"
)

// snapshotIndexRow records one stored version. The rows themselves live in PhysicalTable.
type snapshotIndexRow struct {
	Version       int    `gorm:"primaryKey;autoIncrement:false"`
	UserID        string `gorm:"not null;index"`
	PhysicalTable string `gorm:"column:table_name;not null;uniqueIndex"`
	Columns       datatypes.JSON
	RowCount      int
	CreatedAt     time.Time
}

func (snapshotIndexRow) TableName() string { return "snapshot_index" }

// versionCounterRow holds the current max version. It is updated in the same
// transaction as the snapshot it counts.
type versionCounterRow struct {
	UserID     string `gorm:"primaryKey"`
	MaxVersion int    `gorm:"not null"`
	UpdatedAt  time.Time
}

func (versionCounterRow) TableName() string { return "version_counters" }
