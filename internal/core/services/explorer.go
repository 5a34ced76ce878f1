package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/core/ports/output"
)

// RangeFilter keeps rows whose numeric value lies in [Min, Max].
type RangeFilter struct {
	Column string
	Min    float64
	Max    float64
}

type FilterCriteria struct {
	Column     string
	Value      string
	CustomerID string
	Ranges     []RangeFilter
}

func (c FilterCriteria) IsZero() bool {
	return c.Column == "" && c.CustomerID == "" && len(c.Ranges) == 0
}

type CategoricalStats struct {
	Count  int    `json:"count"`
	Unique int    `json:"unique"`
	Top    string `json:"top"`
	Freq   int    `json:"freq"`
}

type Summary struct {
	Rows        int                         `json:"rows"`
	Numeric     map[string]NumericStats     `json:"numeric"`
	Categorical map[string]CategoricalStats `json:"categorical"`
}

// Export is a rendered download.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExplorerService serves read-only views over resolved datasets: filters, summaries,
// downloads, version listings and the prediction history.
type ExplorerService struct {
	resolver *SnapshotResolver
	repo     ports.SnapshotRepository
	schema   *domain.TemplateSchema
	encoders map[string]ports.TableEncoder
	history  ports.HistoryReader
}

func NewExplorerService(
	resolver *SnapshotResolver,
	repo ports.SnapshotRepository,
	schema *domain.TemplateSchema,
	encoders map[string]ports.TableEncoder,
	history ports.HistoryReader,
) *ExplorerService {
	return &ExplorerService{resolver: resolver, repo: repo, schema: schema, encoders: encoders, history: history}
}

func (s *ExplorerService) Schema() []domain.SchemaColumn {
	return s.schema.Columns()
}

func (s *ExplorerService) Identifier() string {
	return s.schema.Identifier()
}

// Formats lists the export format names in sorted order.
func (s *ExplorerService) Formats() []string {
	out := make([]string, 0, len(s.encoders))
	for name := range s.encoders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Current resolves the session user's dataset and applies criteria to it.
func (s *ExplorerService) Current(ctx context.Context, sess *domain.Session, criteria FilterCriteria) (*domain.ResolvedDataset, error) {
	resolved, err := s.resolver.Resolve(ctx, sess)
	if err != nil {
		return nil, err
	}
	filtered, err := Filter(resolved.Table, criteria)
	if err != nil {
		return nil, err
	}
	resolved.Table = filtered
	return resolved, nil
}

func (s *ExplorerService) Version(ctx context.Context, sess *domain.Session, version int) (*domain.ResolvedDataset, error) {
	return s.resolver.ResolveVersion(ctx, sess, version)
}

func (s *ExplorerService) Versions(ctx context.Context, sess *domain.Session) ([]*domain.SnapshotMeta, error) {
	userID, err := sess.RequireUser()
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, userID)
}

// Export renders the session user's (filtered) dataset in format.
func (s *ExplorerService) Export(ctx context.Context, sess *domain.Session, format string, criteria FilterCriteria) (*Export, error) {
	enc, ok := s.encoders[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: export format %q", domain.ErrUnsupportedFormat, format)
	}
	resolved, err := s.Current(ctx, sess, criteria)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, resolved.Table); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}

	name := "template_dataset"
	if resolved.Snapshot != nil {
		name = resolved.Snapshot.VersionID
	}
	return &Export{
		Filename:    name + enc.Extension(),
		ContentType: enc.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// History returns the shared prediction history.
func (s *ExplorerService) History(ctx context.Context, sess *domain.Session) (*domain.Table, error) {
	if _, err := sess.RequireUser(); err != nil {
		return nil, err
	}
	t, err := s.history.ReadAll(ctx)
	if err != nil {
		// A broken history file is a server fault, not a bad upload.
		return nil, fmt.Errorf("%w: %v", domain.ErrHistoryRead, err)
	}
	return t, nil
}

// Filter returns the rows of t matching every criterion.
func Filter(t *domain.Table, criteria FilterCriteria) (*domain.Table, error) {
	if criteria.IsZero() {
		return t, nil
	}

	var preds []func(int) bool

	if criteria.Column != "" {
		col, ok := t.Column(criteria.Column)
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q", domain.ErrInvalidFilter, criteria.Column)
		}
		want := criteria.Value
		preds = append(preds, func(r int) bool { return col.Render(r) == want })
	}

	if criteria.CustomerID != "" {
		key := t.Key
		if key == "" {
			key = domain.DefaultIdentifierColumn
		}
		col, ok := t.Column(key)
		if !ok {
			return nil, fmt.Errorf("%w: table has no identifier column", domain.ErrInvalidFilter)
		}
		id := criteria.CustomerID
		preds = append(preds, func(r int) bool { return col.Render(r) == id })
	}

	for _, rf := range criteria.Ranges {
		col, ok := t.Column(rf.Column)
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q", domain.ErrInvalidFilter, rf.Column)
		}
		if !col.IsNumeric() {
			return nil, fmt.Errorf("%w: column %q is not numeric", domain.ErrInvalidFilter, rf.Column)
		}
		if rf.Min > rf.Max {
			return nil, fmt.Errorf("%w: range on %q has min above max", domain.ErrInvalidFilter, rf.Column)
		}
		lo, hi := rf.Min, rf.Max
		preds = append(preds, func(r int) bool {
			cell := col.Cells[r]
			return cell.Valid && cell.Num >= lo && cell.Num <= hi
		})
	}

	return t.Filter(func(r int) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}), nil
}

// Summarize describes every non-key column of t.
func Summarize(t *domain.Table) *Summary {
	out := &Summary{
		Rows:        t.NumRows(),
		Numeric:     map[string]NumericStats{},
		Categorical: map[string]CategoricalStats{},
	}
	for _, col := range t.Columns {
		if col.Name == t.Key || col.Type == domain.ColumnIdentifier {
			continue
		}
		if col.IsNumeric() {
			out.Numeric[col.Name] = describeNumbers(col.Numbers())
			continue
		}
		out.Categorical[col.Name] = describeCategories(col)
	}
	return out
}

func describeCategories(col *domain.Column) CategoricalStats {
	counts := map[string]int{}
	var st CategoricalStats
	for _, cell := range col.Cells {
		if !cell.Valid {
			continue
		}
		st.Count++
		counts[cell.Text]++
	}
	st.Unique = len(counts)
	for v, n := range counts {
		if n > st.Freq || (n == st.Freq && v < st.Top) {
			st.Top, st.Freq = v, n
		}
	}
	return st
}
