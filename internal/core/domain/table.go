package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type ColumnType string

const (
	ColumnNumeric     ColumnType = "numeric"
	ColumnCategorical ColumnType = "categorical"
	ColumnIdentifier  ColumnType = "identifier"
)

// Kind collapses a semantic type into the comparison class used for schema checks:
// numeric columns against everything text-like.
func (t ColumnType) Kind() string {
	if t == ColumnNumeric {
		return "numeric"
	}
	return "text"
}

// missingTokens are the trimmed cell values read as missing.
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
	"<NA>": true,
}

// IsMissingToken reports whether a raw cell is read as missing. Whitespace-only cells are missing.
func IsMissingToken(s string) bool {
	return missingTokens[strings.TrimSpace(s)]
}

// ParseNumber parses a numeric cell. Whitespace-only, NaN and infinite values are not numbers.
func ParseNumber(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Cell is a single table value. Numeric cells carry Num; Text always keeps the source text.
type Cell struct {
	Text  string
	Num   float64
	Valid bool
}

type Column struct {
	Name  string
	Type  ColumnType
	Cells []Cell
}

func (c *Column) IsNumeric() bool {
	return c.Type == ColumnNumeric
}

// Render formats row i for text outputs. Missing cells render as the empty string.
func (c *Column) Render(i int) string {
	cell := c.Cells[i]
	if !cell.Valid {
		return ""
	}
	if c.Type == ColumnNumeric {
		return strconv.FormatFloat(cell.Num, 'f', -1, 64)
	}
	return cell.Text
}

// Value returns the JSON-friendly value of row i: float64 for numeric, string for text, nil when missing.
func (c *Column) Value(i int) interface{} {
	cell := c.Cells[i]
	if !cell.Valid {
		return nil
	}
	if c.Type == ColumnNumeric {
		return cell.Num
	}
	return cell.Text
}

// Missing counts invalid cells.
func (c *Column) Missing() int {
	n := 0
	for _, cell := range c.Cells {
		if !cell.Valid {
			n++
		}
	}
	return n
}

// Numbers returns the valid numeric values of the column.
func (c *Column) Numbers() []float64 {
	out := make([]float64, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if cell.Valid {
			out = append(out, cell.Num)
		}
	}
	return out
}

func (c *Column) clone() *Column {
	cells := make([]Cell, len(c.Cells))
	copy(cells, c.Cells)
	return &Column{Name: c.Name, Type: c.Type, Cells: cells}
}

// Table is an ordered set of equally long typed columns. Key names the record identifier column, if set.
type Table struct {
	Columns []*Column
	Key     string
}

// NewTable builds a table from a header and raw string rows, inferring each column's type:
// a column is numeric when every non-missing value parses as a number.
func NewTable(header []string, rows [][]string) (*Table, error) {
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
	}

	raw := make([][]string, len(header))
	for i := range raw {
		raw[i] = make([]string, 0, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", r+1, len(row), len(header))
		}
		for i, v := range row {
			raw[i] = append(raw[i], v)
		}
	}

	t := &Table{Columns: make([]*Column, len(header))}
	for i, name := range header {
		t.Columns[i] = inferColumn(name, raw[i])
	}
	return t, nil
}

func inferColumn(name string, values []string) *Column {
	col := &Column{Name: name, Type: ColumnNumeric, Cells: make([]Cell, len(values))}
	for i, v := range values {
		col.Cells[i] = Cell{Text: v, Valid: !IsMissingToken(v)}
	}
	for i, cell := range col.Cells {
		if !cell.Valid {
			continue
		}
		num, ok := ParseNumber(cell.Text)
		if !ok {
			col.Type = ColumnCategorical
			break
		}
		col.Cells[i].Num = num
	}
	return col
}

func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnFold finds a column by case-insensitive name.
func (t *Table) ColumnFold(name string) (*Column, bool) {
	if c, ok := t.Column(name); ok {
		return c, true
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns)), Key: t.Key}
	for i, c := range t.Columns {
		out.Columns[i] = c.clone()
	}
	return out
}

// SetKey marks name as the record identifier column.
func (t *Table) SetKey(name string) error {
	col, ok := t.Column(name)
	if !ok {
		return fmt.Errorf("key column %q not found", name)
	}
	col.Type = ColumnIdentifier
	t.Key = name
	return nil
}

// DropColumn removes name from the table and reports whether it existed.
func (t *Table) DropColumn(name string) bool {
	for i, c := range t.Columns {
		if c.Name == name {
			t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
			if t.Key == name {
				t.Key = ""
			}
			return true
		}
	}
	return false
}

// Filter returns a new table holding only the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var rows []int
	for r := 0; r < t.NumRows(); r++ {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	out := &Table{Columns: make([]*Column, len(t.Columns)), Key: t.Key}
	for i, c := range t.Columns {
		cells := make([]Cell, len(rows))
		for j, r := range rows {
			cells[j] = c.Cells[r]
		}
		out.Columns[i] = &Column{Name: c.Name, Type: c.Type, Cells: cells}
	}
	return out
}

// CoerceNumeric converts a text column to numeric only if every non-missing value parses.
// It reports whether the column is numeric afterwards.
func (t *Table) CoerceNumeric(name string) bool {
	col, ok := t.Column(name)
	if !ok {
		return false
	}
	if col.Type == ColumnNumeric {
		return true
	}
	nums := make([]float64, len(col.Cells))
	for i, cell := range col.Cells {
		if !cell.Valid {
			continue
		}
		v, ok := ParseNumber(cell.Text)
		if !ok {
			return false
		}
		nums[i] = v
	}
	for i := range col.Cells {
		col.Cells[i].Num = nums[i]
	}
	col.Type = ColumnNumeric
	return true
}

// ForceNumeric converts a column to numeric, turning unparseable values into missing cells.
// It returns how many non-missing values were invalidated.
func (t *Table) ForceNumeric(name string) int {
	col, ok := t.Column(name)
	if !ok || col.Type == ColumnNumeric {
		return 0
	}
	invalid := 0
	for i, cell := range col.Cells {
		if !cell.Valid {
			continue
		}
		v, ok := ParseNumber(cell.Text)
		if !ok {
			col.Cells[i].Valid = false
			invalid++
			continue
		}
		col.Cells[i].Num = v
	}
	col.Type = ColumnNumeric
	return invalid
}

// Row renders row r in column order.
func (t *Table) Row(r int) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Render(r)
	}
	return out
}
