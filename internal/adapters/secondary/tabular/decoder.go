package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"churn-insight-service/internal/core/domain"
	output "churn-insight-service/internal/core/ports/output"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type decoder struct{}

// NewDecoder returns the upload decoder for .csv and .xlsx files.
func NewDecoder() output.TableDecoder {
	return decoder{}
}

func (decoder) Decode(filename string, data []byte) (*domain.Table, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		header, rows, err = readCSV(data)
	case ".xlsx":
		header, rows, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %q (expected .csv or .xlsx)", domain.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	table, err := domain.NewTable(header, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return table, nil
}

func readCSV(data []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("file has no header row")
	}
	if err != nil {
		return nil, nil, err
	}
	// Header width is enforced for every record after the first
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return trimHeader(header), rows, nil
}

func readXLSX(data []byte) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheets")
	}
	all, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, errors.New("file has no header row")
	}

	header := trimHeader(all[0])
	rows := make([][]string, 0, len(all)-1)
	for i, row := range all[1:] {
		if len(row) > len(header) {
			return nil, nil, fmt.Errorf("row %d has %d cells, header has %d", i+2, len(row), len(header))
		}
		// excelize drops trailing empty cells
		padded := make([]string, len(header))
		copy(padded, row)
		rows = append(rows, padded)
	}
	return header, rows, nil
}

func trimHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
	}
	return out
}

var _ output.TableDecoder = decoder{}
