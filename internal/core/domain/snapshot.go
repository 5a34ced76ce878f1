package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

type Origin string

const (
	OriginTemplate Origin = "template"
	OriginUploaded Origin = "uploaded"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateUserID guards user identities that end up in file paths and table names.
func ValidateUserID(userID string) error {
	if !userIDPattern.MatchString(userID) {
		return ErrInvalidUserID
	}
	return nil
}

// VersionWidth is the zero-pad width for a version number: the number of its decimal digits.
func VersionWidth(version int) int {
	return len(strconv.Itoa(version))
}

// SnapshotTableName is the physical entry name for a version, padded to width.
func SnapshotTableName(userID string, version, width int) string {
	return fmt.Sprintf("%s_table%0*d", userID, width, version)
}

// SnapshotMeta describes one stored version of a user's dataset.
type SnapshotMeta struct {
	UserID      string         `json:"user_id"`
	Version     int            `json:"version"`
	VersionID   string         `json:"version_id"`
	TableName   string         `json:"table_name"`
	StoragePath string         `json:"storage_path"`
	RowCount    int            `json:"row_count"`
	Columns     []SchemaColumn `json:"columns"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Snapshot struct {
	SnapshotMeta
	Table *Table
}

// ResolvedDataset is the table a user works with, tagged with where it came from.
// Snapshot is nil when Origin is OriginTemplate.
type ResolvedDataset struct {
	Origin   Origin
	Snapshot *SnapshotMeta
	Table    *Table
}

func Uploaded(s *Snapshot) *ResolvedDataset {
	meta := s.SnapshotMeta
	return &ResolvedDataset{Origin: OriginUploaded, Snapshot: &meta, Table: s.Table}
}

func UsingTemplate(t *Table) *ResolvedDataset {
	return &ResolvedDataset{Origin: OriginTemplate, Table: t}
}
