package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/core/ports/output"
)

// DefaultNumericColumns are repaired from text to numbers on upload when they arrive as text.
var DefaultNumericColumns = []string{
	"tenure",
	"MonthlyCharges",
	"TotalCharges",
	"AvgMonthlyCharges",
	"MonthlyChargesToTotalChargesRatio",
}

// Upload is the raw file received for one ingestion request.
type Upload struct {
	Filename string
	Data     []byte
}

type IngestResult struct {
	Snapshot *domain.SnapshotMeta `json:"snapshot"`
	Warnings []string             `json:"warnings"`
	// Message is a transient confirmation for the UI. It is never persisted.
	Message string `json:"message"`
}

type IngestionService struct {
	decoder        ports.TableDecoder
	validator      *SchemaValidator
	repo           ports.SnapshotRepository
	archive        ports.RawArchive
	numericColumns []string
}

// NewIngestionService wires the pipeline. archive may be nil.
func NewIngestionService(
	decoder ports.TableDecoder,
	validator *SchemaValidator,
	repo ports.SnapshotRepository,
	archive ports.RawArchive,
	numericColumns []string,
) *IngestionService {
	if len(numericColumns) == 0 {
		numericColumns = DefaultNumericColumns
	}
	return &IngestionService{
		decoder:        decoder,
		validator:      validator,
		repo:           repo,
		archive:        archive,
		numericColumns: numericColumns,
	}
}

// Ingest parses, validates and stores an upload as the session user's next snapshot version.
func (s *IngestionService) Ingest(ctx context.Context, sess *domain.Session, upload Upload) (*IngestResult, error) {
	userID, err := sess.RequireUser()
	if err != nil {
		return nil, err
	}

	result, err := s.ingest(ctx, userID, upload)
	if err != nil {
		ingestTotal.WithLabelValues(outcomeLabel(err)).Inc()
		log.WithFields(log.Fields{
			"user_id":  userID,
			"filename": upload.Filename,
		}).WithError(err).Warn("Dataset upload rejected")
		return nil, err
	}

	ingestTotal.WithLabelValues("accepted").Inc()
	ingestRows.Observe(float64(result.Snapshot.RowCount))
	log.WithFields(log.Fields{
		"user_id":  userID,
		"version":  result.Snapshot.VersionID,
		"rows":     result.Snapshot.RowCount,
		"warnings": len(result.Warnings),
	}).Info("Dataset snapshot stored")
	return result, nil
}

func (s *IngestionService) ingest(ctx context.Context, userID string, upload Upload) (*IngestResult, error) {
	table, err := s.decoder.Decode(upload.Filename, upload.Data)
	if err != nil {
		return nil, err
	}
	if table.NumRows() == 0 {
		return nil, domain.ErrEmptyDataset
	}
	if err := s.validator.Validate(table); err != nil {
		return nil, err
	}

	warnings := s.coerceNumeric(table)

	meta, err := s.repo.Append(ctx, userID, table)
	if err != nil {
		if !errors.Is(err, domain.ErrPersistence) {
			err = fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		return nil, err
	}

	s.archiveRaw(ctx, userID, meta.Version, upload)

	return &IngestResult{
		Snapshot: meta,
		Warnings: warnings,
		Message:  fmt.Sprintf("Dataset uploaded as version %s (%d rows)", meta.VersionID, meta.RowCount),
	}, nil
}

// coerceNumeric forces the configured columns to numeric when they were inferred as text.
// Values that do not parse become missing.
func (s *IngestionService) coerceNumeric(table *domain.Table) []string {
	var warnings []string
	for _, name := range s.numericColumns {
		col, ok := table.ColumnFold(name)
		if !ok || col.IsNumeric() || col.Type == domain.ColumnIdentifier {
			continue
		}
		invalid := table.ForceNumeric(col.Name)
		msg := fmt.Sprintf("column %q was converted to numeric", col.Name)
		if invalid > 0 {
			msg = fmt.Sprintf("%s; %d non-numeric values set to missing", msg, invalid)
		}
		warnings = append(warnings, msg)
	}
	return warnings
}

func (s *IngestionService) archiveRaw(ctx context.Context, userID string, version int, upload Upload) {
	if s.archive == nil {
		return
	}
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	key := fmt.Sprintf("%s/%s_file%d%s", userID, userID, version, ext)
	location, err := s.archive.Put(ctx, key, upload.Data)
	if err != nil {
		log.WithFields(log.Fields{"user_id": userID, "key": key}).WithError(err).Warn("Failed to archive raw upload")
		return
	}
	log.WithFields(log.Fields{"user_id": userID, "location": location}).Debug("Raw upload archived")
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, domain.ErrParse):
		return "parse_error"
	case errors.Is(err, domain.ErrEmptyDataset):
		return "empty"
	case errors.Is(err, domain.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence_error"
	default:
		return "error"
	}
}
