package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"churn-insight-service/internal/core/domain"
	output "churn-insight-service/internal/core/ports/output"
)

const (
	insertBatchSize = 200

	storeSweepInterval = 5 * time.Minute
	storeIdleTimeout   = time.Hour
)

// userStore is one user's open database. refs counts in-flight calls; an entry is only
// closed by the idle sweep while refs is zero.
type userStore struct {
	db       *gorm.DB
	write    sync.Mutex
	refs     int
	lastUsed time.Time
}

// Store keeps every user's snapshots in a private SQLite file under root.
type Store struct {
	root string
	now  func() time.Time

	mu        sync.Mutex
	users     map[string]*userStore
	lastSweep time.Time
	opens     singleflight.Group
}

func NewSnapshotStore(root string) *Store {
	return &Store{
		root:      root,
		now:       time.Now,
		users:     make(map[string]*userStore),
		lastSweep: time.Now(),
	}
}

func (s *Store) path(userID string) string {
	return filepath.Join(s.root, userID, userID+".db")
}

// acquire returns the user's open store and pins it until release. With create unset, a
// user without a store file gets domain.ErrSnapshotNotFound and nothing is created.
func (s *Store) acquire(userID string, create bool) (*userStore, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	for {
		s.mu.Lock()
		s.sweepLocked()
		if u, ok := s.users[userID]; ok {
			u.refs++
			u.lastUsed = s.now()
			s.mu.Unlock()
			return u, nil
		}
		s.mu.Unlock()

		path := s.path(userID)
		if !create {
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return nil, domain.ErrSnapshotNotFound
			}
		}

		_, err, _ := s.opens.Do(userID, func() (interface{}, error) {
			s.mu.Lock()
			_, ok := s.users[userID]
			s.mu.Unlock()
			if ok {
				return nil, nil
			}

			db, err := s.open(userID, path)
			if err != nil {
				return nil, err
			}
			s.mu.Lock()
			s.users[userID] = &userStore{db: db, lastUsed: s.now()}
			s.mu.Unlock()
			return nil, nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: open store for %s: %v", domain.ErrPersistence, userID, err)
		}
	}
}

func (s *Store) release(u *userStore) {
	s.mu.Lock()
	u.refs--
	u.lastUsed = s.now()
	s.mu.Unlock()
}

// sweepLocked closes stores nobody has touched for storeIdleTimeout. It runs at most once
// per storeSweepInterval. Callers hold s.mu.
func (s *Store) sweepLocked() {
	now := s.now()
	if now.Sub(s.lastSweep) < storeSweepInterval {
		return
	}
	s.lastSweep = now

	for userID, u := range s.users {
		if u.refs > 0 || now.Sub(u.lastUsed) < storeIdleTimeout {
			continue
		}
		if sqlDB, err := u.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.WithFields(log.Fields{"user_id": userID}).WithError(err).Warn("Failed to close idle snapshot store")
			}
		}
		delete(s.users, userID)
		log.WithFields(log.Fields{"user_id": userID}).Debug("Closed idle snapshot store")
	}
}

func (s *Store) open(userID, path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One writer per file; appends are serialized anyway.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&snapshotIndexRow{}, &versionCounterRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	if err := seedCounter(db, userID); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("seed version counter: %w", err)
	}

	log.WithFields(log.Fields{"user_id": userID, "path": path}).Debug("Opened snapshot store")
	return db, nil
}

// Append stores table as the user's next version. Everything happens in one transaction.
func (s *Store) Append(ctx context.Context, userID string, table *domain.Table) (*domain.SnapshotMeta, error) {
	u, err := s.acquire(userID, true)
	if err != nil {
		return nil, err
	}
	defer s.release(u)

	u.write.Lock()
	defer u.write.Unlock()
	db := u.db

	columns := schemaColumns(table)
	layout, err := json.Marshal(columns)
	if err != nil {
		return nil, fmt.Errorf("%w: encode column layout: %v", domain.ErrPersistence, err)
	}

	var row snapshotIndexRow
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := currentVersion(tx, userID)
		if err != nil {
			return err
		}
		next := current + 1
		name := domain.SnapshotTableName(userID, next, domain.VersionWidth(next))

		if err := createTable(tx, name, table); err != nil {
			return err
		}
		if err := insertRows(tx, name, table); err != nil {
			return err
		}

		row = snapshotIndexRow{
			Version:       next,
			UserID:        userID,
			PhysicalTable: name,
			Columns:       layout,
			RowCount:      table.NumRows(),
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert snapshot index: %w", err)
		}
		return setCounter(tx, userID, next)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: append snapshot for %s: %v", domain.ErrPersistence, userID, err)
	}

	return s.meta(userID, row, row.Version), nil
}

func (s *Store) Latest(ctx context.Context, userID string) (*domain.Snapshot, error) {
	u, err := s.acquire(userID, false)
	if err != nil {
		return nil, err
	}
	defer s.release(u)
	db := u.db

	var row snapshotIndexRow
	err = db.WithContext(ctx).Where("user_id = ?", userID).Order("version DESC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: latest snapshot for %s: %v", domain.ErrPersistence, userID, err)
	}
	return s.load(ctx, db, userID, row, row.Version)
}

func (s *Store) Get(ctx context.Context, userID string, version int) (*domain.Snapshot, error) {
	u, err := s.acquire(userID, false)
	if err != nil {
		return nil, err
	}
	defer s.release(u)
	db := u.db

	var row snapshotIndexRow
	err = db.WithContext(ctx).Where("user_id = ? AND version = ?", userID, version).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: version %d", domain.ErrSnapshotNotFound, version)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get snapshot %d for %s: %v", domain.ErrPersistence, version, userID, err)
	}

	maxVersion, err := currentVersion(db.WithContext(ctx), userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return s.load(ctx, db, userID, row, maxVersion)
}

func (s *Store) List(ctx context.Context, userID string) ([]*domain.SnapshotMeta, error) {
	u, err := s.acquire(userID, false)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return []*domain.SnapshotMeta{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer s.release(u)
	db := u.db

	var rows []snapshotIndexRow
	if err := db.WithContext(ctx).Where("user_id = ?", userID).Order("version ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list snapshots for %s: %v", domain.ErrPersistence, userID, err)
	}

	out := make([]*domain.SnapshotMeta, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	maxVersion := rows[len(rows)-1].Version
	for i, r := range rows {
		out[i] = s.meta(userID, r, maxVersion)
	}
	return out, nil
}

// Close closes every open user store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for userID, u := range s.users {
		if sqlDB, err := u.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close store %s: %w", userID, err))
			}
		}
		delete(s.users, userID)
	}
	return errors.Join(errs...)
}

// meta renders the index row. The version id is padded to the width of maxVersion so ids
// of one user sort the same way as their numbers.
func (s *Store) meta(userID string, row snapshotIndexRow, maxVersion int) *domain.SnapshotMeta {
	var cols []domain.SchemaColumn
	if err := json.Unmarshal(row.Columns, &cols); err != nil {
		log.WithFields(log.Fields{"user_id": userID, "version": row.Version}).WithError(err).Warn("Corrupt snapshot column layout")
	}
	return &domain.SnapshotMeta{
		UserID:      userID,
		Version:     row.Version,
		VersionID:   domain.SnapshotTableName(userID, row.Version, domain.VersionWidth(maxVersion)),
		TableName:   row.PhysicalTable,
		StoragePath: s.path(userID),
		RowCount:    row.RowCount,
		Columns:     cols,
		CreatedAt:   row.CreatedAt,
	}
}

func (s *Store) load(ctx context.Context, db *gorm.DB, userID string, row snapshotIndexRow, maxVersion int) (*domain.Snapshot, error) {
	meta := s.meta(userID, row, maxVersion)
	table, err := readTable(db.WithContext(ctx), row.PhysicalTable, meta.Columns)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrPersistence, row.PhysicalTable, err)
	}
	return &domain.Snapshot{SnapshotMeta: *meta, Table: table}, nil
}

func currentVersion(tx *gorm.DB, userID string) (int, error) {
	var counter versionCounterRow
	err := tx.Where("user_id = ?", userID).Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read version counter: %w", err)
	}
	return counter.MaxVersion, nil
}

func setCounter(tx *gorm.DB, userID string, version int) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"max_version", "updated_at"}),
	}).Create(&versionCounterRow{UserID: userID, MaxVersion: version, UpdatedAt: time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("update version counter: %w", err)
	}
	return nil
}

func schemaColumns(t *domain.Table) []domain.SchemaColumn {
	cols := make([]domain.SchemaColumn, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = domain.SchemaColumn{Name: c.Name, Type: c.Type}
	}
	return cols
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTable(tx *gorm.DB, name string, t *domain.Table) error {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ := "TEXT"
		if c.IsNumeric() {
			typ = "REAL"
		}
		defs[i] = quoteIdent(c.Name) + " " + typ
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if err := tx.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	return nil
}

func insertRows(tx *gorm.DB, name string, t *domain.Table) error {
	if t.NumRows() == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, t.NumRows())
	for r := range rows {
		m := make(map[string]interface{}, len(t.Columns))
		for _, c := range t.Columns {
			m[c.Name] = c.Value(r)
		}
		rows[r] = m
	}
	if err := tx.Table(name).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("insert snapshot rows: %w", err)
	}
	return nil
}

func readTable(db *gorm.DB, name string, cols []domain.SchemaColumn) (*domain.Table, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("snapshot %s has no column layout", name)
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c.Name)
	}
	rows, err := db.Raw(fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(quoted, ", "), quoteIdent(name))).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := &domain.Table{Columns: make([]*domain.Column, len(cols))}
	for i, c := range cols {
		table.Columns[i] = &domain.Column{Name: c.Name, Type: c.Type}
	}

	dest := make([]interface{}, len(cols))
	for rows.Next() {
		for i, c := range cols {
			if c.Type == domain.ColumnNumeric {
				dest[i] = new(sql.NullFloat64)
			} else {
				dest[i] = new(sql.NullString)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, d := range dest {
			var cell domain.Cell
			switch v := d.(type) {
			case *sql.NullFloat64:
				cell = domain.Cell{Num: v.Float64, Valid: v.Valid}
				if v.Valid {
					cell.Text = strconv.FormatFloat(v.Float64, 'f', -1, 64)
				}
			case *sql.NullString:
				cell = domain.Cell{Text: v.String, Valid: v.Valid}
			}
			table.Columns[i].Cells = append(table.Columns[i].Cells, cell)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range table.Columns {
		if c.Cells == nil {
			c.Cells = []domain.Cell{}
		}
	}
	return table, nil
}

var _ output.SnapshotRepository = (*Store)(nil)
