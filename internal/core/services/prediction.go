package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/core/ports/output"
)

// sentinelColumns get 1 in place of zero or missing values before batch scoring,
// so derived ratio features never divide by zero.
var sentinelColumns = []string{"tenure", "TotalCharges"}

type PredictionConfig struct {
	Layout     domain.FeatureLayout
	Identifier string
	// BatchHistory controls whether batch predictions are appended to the history.
	BatchHistory bool
	Now          func() time.Time
}

type PredictionService struct {
	catalog  ports.ModelCatalog
	history  ports.HistoryWriter
	resolver *SnapshotResolver
	cfg      PredictionConfig
}

// NewPredictionService builds the adapter between tables and classifiers. history may be nil.
func NewPredictionService(catalog ports.ModelCatalog, history ports.HistoryWriter, resolver *SnapshotResolver, cfg PredictionConfig) *PredictionService {
	if len(cfg.Layout) == 0 {
		cfg.Layout = domain.DefaultFeatureLayout
	}
	if cfg.Identifier == "" {
		cfg.Identifier = domain.DefaultIdentifierColumn
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PredictionService{catalog: catalog, history: history, resolver: resolver, cfg: cfg}
}

func (s *PredictionService) Layout() domain.FeatureLayout {
	return s.cfg.Layout
}

// PredictRecord scores one interactively entered record. Field names must match the
// feature layout exactly; the result is always appended to the history.
func (s *PredictionService) PredictRecord(ctx context.Context, sess *domain.Session, modelID string, record map[string]interface{}) (*domain.PredictionResult, error) {
	if _, err := sess.RequireUser(); err != nil {
		return nil, err
	}
	row, err := s.recordToRow(record)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, modelID, []domain.FeatureRow{row}, nil, true)
}

// PredictBatch scores every row of table.
func (s *PredictionService) PredictBatch(ctx context.Context, sess *domain.Session, modelID string, table *domain.Table) (*domain.PredictionResult, error) {
	if _, err := sess.RequireUser(); err != nil {
		return nil, err
	}
	if table == nil || table.NumRows() == 0 {
		return nil, domain.ErrEmptyDataset
	}
	rows, ids, err := s.tableToRows(table)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, modelID, rows, ids, s.cfg.BatchHistory)
}

// PredictCurrent scores the session user's resolved dataset.
func (s *PredictionService) PredictCurrent(ctx context.Context, sess *domain.Session, modelID string) (*domain.PredictionResult, error) {
	resolved, err := s.resolver.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	return s.PredictBatch(ctx, sess, modelID, resolved.Table)
}

func (s *PredictionService) run(ctx context.Context, modelID string, rows []domain.FeatureRow, ids []string, appendHistory bool) (*domain.PredictionResult, error) {
	provider, err := s.catalog.Provider(ctx, modelID)
	if err != nil {
		if !errors.Is(err, domain.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %s: %v", domain.ErrModelUnavailable, modelID, err)
		}
		return nil, err
	}

	encoded, err := provider.Predict(ctx, rows)
	if err != nil {
		return nil, unavailable(modelID, "predict", err)
	}
	proba, err := provider.PredictProba(ctx, rows)
	if err != nil {
		return nil, unavailable(modelID, "predict_proba", err)
	}
	if len(encoded) != len(rows) || len(proba) != len(rows) {
		return nil, fmt.Errorf("%w: %s returned %d labels and %d probability rows for %d inputs",
			domain.ErrModelUnavailable, modelID, len(encoded), len(proba), len(rows))
	}

	result := &domain.PredictionResult{ModelID: modelID, Predictions: make([]domain.Prediction, len(rows))}
	for i, enc := range encoded {
		if enc < 0 || enc >= len(proba[i]) {
			return nil, fmt.Errorf("%w: %s returned class %d outside its probability vector", domain.ErrModelUnavailable, modelID, enc)
		}
		decoded, err := provider.DecodeLabel(enc)
		if err != nil {
			return nil, unavailable(modelID, "decode label", err)
		}
		p := domain.Prediction{
			Encoded:     enc,
			Label:       domain.DisplayLabel(enc),
			Decoded:     decoded,
			Probability: domain.RoundProbability(proba[i][enc]),
			Inputs:      rows[i],
		}
		if ids != nil {
			p.CustomerID = ids[i]
		}
		result.Predictions[i] = p
		predictionsTotal.WithLabelValues(modelID, p.Label).Inc()
	}

	if appendHistory {
		result.HistoryAppended = s.appendHistory(ctx, modelID, result.Predictions)
	}
	return result, nil
}

func unavailable(modelID, op string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", domain.ErrModelUnavailable, modelID, op, err)
}

// appendHistory records the predictions. A failure is logged and counted but never returned.
func (s *PredictionService) appendHistory(ctx context.Context, modelID string, predictions []domain.Prediction) bool {
	if s.history == nil {
		return false
	}
	modelUsed := s.displayName(modelID)
	now := s.cfg.Now()
	records := make([]domain.HistoryRecord, len(predictions))
	for i, p := range predictions {
		records[i] = domain.HistoryRecord{
			Inputs:         p.Inputs,
			PredictionTime: now,
			ModelUsed:      modelUsed,
			Prediction:     p.Decoded,
			Probability:    p.Probability,
		}
	}
	if err := s.history.Append(ctx, records); err != nil {
		historyAppendFailures.Inc()
		log.WithFields(log.Fields{"model": modelID, "rows": len(records)}).WithError(err).Error("Failed to append prediction history")
		return false
	}
	return true
}

func (s *PredictionService) displayName(modelID string) string {
	for _, m := range s.catalog.Models() {
		if m.ID == modelID && m.DisplayName != "" {
			return m.DisplayName
		}
	}
	return modelID
}

func (s *PredictionService) recordToRow(record map[string]interface{}) (domain.FeatureRow, error) {
	var unknown []string
	for name := range record {
		if s.cfg.Layout.Index(name) < 0 {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unknown feature %q", domain.ErrFeatureMismatch, unknown[0])
	}

	row := make(domain.FeatureRow, len(s.cfg.Layout))
	for i, f := range s.cfg.Layout {
		raw, ok := record[f.Name]
		if !ok || raw == nil {
			return nil, fmt.Errorf("%w: missing feature %q", domain.ErrFeatureMismatch, f.Name)
		}
		v, err := featureValue(f, raw)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func featureValue(f domain.FeatureSpec, raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case float64:
		if f.Numeric {
			return v, nil
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		if f.Numeric {
			return float64(v), nil
		}
		return strconv.Itoa(v), nil
	case string:
		if !f.Numeric {
			if strings.TrimSpace(v) == "" {
				return nil, fmt.Errorf("%w: feature %q is empty", domain.ErrFeatureMismatch, f.Name)
			}
			return v, nil
		}
		if n, ok := domain.ParseNumber(v); ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: feature %q has invalid value %v", domain.ErrFeatureMismatch, f.Name, raw)
}

// tableToRows prepares a batch: identifier dropped, numeric features forced, sentinels applied,
// columns projected onto the feature layout.
func (s *PredictionService) tableToRows(table *domain.Table) ([]domain.FeatureRow, []string, error) {
	t := table.Clone()

	var ids []string
	if idCol, ok := t.Column(s.cfg.Identifier); ok {
		ids = make([]string, t.NumRows())
		for i := range ids {
			ids[i] = idCol.Render(i)
		}
		t.DropColumn(s.cfg.Identifier)
	}

	cols := make([]*domain.Column, len(s.cfg.Layout))
	for i, f := range s.cfg.Layout {
		col, ok := t.Column(f.Name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: missing feature %q", domain.ErrFeatureMismatch, f.Name)
		}
		if f.Numeric {
			t.ForceNumeric(f.Name)
		}
		cols[i] = col
	}

	for _, name := range sentinelColumns {
		col, ok := t.Column(name)
		if !ok || !col.IsNumeric() {
			continue
		}
		for i, cell := range col.Cells {
			if !cell.Valid || cell.Num == 0 {
				col.Cells[i] = domain.Cell{Num: 1, Valid: true}
			}
		}
	}

	rows := make([]domain.FeatureRow, t.NumRows())
	for r := range rows {
		row := make(domain.FeatureRow, len(cols))
		for i, col := range cols {
			if col.IsNumeric() {
				row[i] = col.Value(r)
			} else {
				row[i] = col.Render(r)
			}
		}
		rows[r] = row
	}
	return rows, ids, nil
}
