package sqlite

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"churn-insight-service/internal/core/domain"
)

// seedCounter initializes the version counter of a store that has none. Stores written
// before the index existed only hold "<user>_table<N>" tables; those are registered in the
// index and the counter starts at their highest N.
func seedCounter(db *gorm.DB, userID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var counter versionCounterRow
		err := tx.Where("user_id = ?", userID).Take(&counter).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		legacy, err := legacyTables(tx, userID)
		if err != nil {
			return err
		}
		if len(legacy) == 0 {
			return nil
		}

		versions := make([]int, 0, len(legacy))
		for v := range legacy {
			versions = append(versions, v)
		}
		sort.Ints(versions)

		for _, v := range versions {
			if err := registerLegacy(tx, userID, v, legacy[v]); err != nil {
				return err
			}
		}
		log.WithFields(log.Fields{"user_id": userID, "tables": len(versions)}).Info("Indexed legacy snapshot tables")
		return setCounter(tx, userID, versions[len(versions)-1])
	})
}

// legacyTables maps version numbers to physical table names.
func legacyTables(tx *gorm.DB, userID string) (map[int]string, error) {
	var names []string
	if err := tx.Raw("SELECT name FROM sqlite_master WHERE type = 'table'").Scan(&names).Error; err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	prefix := userID + "_table"
	out := make(map[int]string)
	for _, name := range names {
		suffix, ok := strings.CutPrefix(name, prefix)
		if !ok || suffix == "" || strings.Trim(suffix, "0123456789") != "" {
			continue
		}
		v, err := strconv.Atoi(suffix)
		if err != nil || v < 1 {
			continue
		}
		out[v] = name
	}
	return out, nil
}

func registerLegacy(tx *gorm.DB, userID string, version int, name string) error {
	var exists int64
	if err := tx.Model(&snapshotIndexRow{}).Where("table_name = ?", name).Count(&exists).Error; err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}

	types, err := tx.Migrator().ColumnTypes(name)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", name, err)
	}
	cols := make([]domain.SchemaColumn, 0, len(types))
	for _, ct := range types {
		typ := domain.ColumnCategorical
		switch strings.ToUpper(ct.DatabaseTypeName()) {
		case "REAL", "FLOAT", "DOUBLE", "INTEGER", "INT", "BIGINT", "NUMERIC":
			typ = domain.ColumnNumeric
		}
		cols = append(cols, domain.SchemaColumn{Name: ct.Name(), Type: typ})
	}
	// pandas writes the frame index as a leading "index" column
	if len(cols) > 0 && cols[0].Name == "index" {
		cols = cols[1:]
	}
	layout, err := json.Marshal(cols)
	if err != nil {
		return err
	}

	var count int64
	if err := tx.Table(name).Count(&count).Error; err != nil {
		return fmt.Errorf("count %s: %w", name, err)
	}

	return tx.Create(&snapshotIndexRow{
		Version:       version,
		UserID:        userID,
		PhysicalTable: name,
		Columns:       layout,
		RowCount:      int(count),
		CreatedAt:     time.Now().UTC(),
	}).Error
}
