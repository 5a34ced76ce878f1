package historyfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"churn-insight-service/internal/core/domain"
	output "churn-insight-service/internal/core/ports/output"
)

const dateLayout = "2006-01-02"

// File is the shared prediction history CSV. One Append is one write(2) on an O_APPEND
// descriptor, made under a process-wide lock, so rows from concurrent requests never interleave.
type File struct {
	path   string
	header []string
	mu     sync.Mutex
}

func NewFile(path string, layout domain.FeatureLayout) *File {
	return &File{path: path, header: layout.HistoryHeader()}
}

func (f *File) Append(ctx context.Context, records []domain.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrHistoryAppend, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("%w: create history dir: %v", domain.ErrHistoryAppend, err)
	}
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open history: %v", domain.ErrHistoryAppend, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat history: %v", domain.ErrHistoryAppend, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		w.Write(f.header)
	}
	for _, rec := range records {
		if len(rec.Inputs) != len(f.header)-4 {
			return fmt.Errorf("%w: record has %d inputs, history expects %d", domain.ErrHistoryAppend, len(rec.Inputs), len(f.header)-4)
		}
		w.Write(formatRecord(rec))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: encode history: %v", domain.ErrHistoryAppend, err)
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: write history: %v", domain.ErrHistoryAppend, err)
	}
	return nil
}

func formatRecord(rec domain.HistoryRecord) []string {
	row := make([]string, 0, len(rec.Inputs)+4)
	for _, v := range rec.Inputs {
		row = append(row, formatValue(v))
	}
	return append(row,
		rec.PredictionTime.Format(dateLayout),
		rec.ModelUsed,
		rec.Prediction,
		strconv.FormatFloat(rec.Probability, 'f', -1, 64),
	)
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// ReadAll returns the history as a table. A missing file is an empty history.
func (f *File) ReadAll(ctx context.Context) (*domain.Table, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewTable(f.header, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	r := csv.NewReader(bytes.NewReader(data))
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return domain.NewTable(f.header, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: history header: %v", domain.ErrParse, err)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: history rows: %v", domain.ErrParse, err)
	}
	table, err := domain.NewTable(header, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return table, nil
}

var (
	_ output.HistoryWriter = (*File)(nil)
	_ output.HistoryReader = (*File)(nil)
)
