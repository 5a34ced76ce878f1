package tabular

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/xuri/excelize/v2"

	"churn-insight-service/internal/core/domain"
	output "churn-insight-service/internal/core/ports/output"
)

// Encoders returns every download format keyed by its query name.
func Encoders() map[string]output.TableEncoder {
	return map[string]output.TableEncoder{
		"csv":  csvEncoder{},
		"xlsx": xlsxEncoder{},
		"dta":  dtaEncoder{},
		"html": htmlEncoder{},
		"json": jsonEncoder{},
	}
}

type csvEncoder struct{}

func (csvEncoder) ContentType() string { return "text/csv" }
func (csvEncoder) Extension() string   { return ".csv" }

func (csvEncoder) Encode(w io.Writer, t *domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	for r := 0; r < t.NumRows(); r++ {
		if err := cw.Write(t.Row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type xlsxEncoder struct{}

func (xlsxEncoder) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (xlsxEncoder) Extension() string { return ".xlsx" }

func (xlsxEncoder) Encode(w io.Writer, t *domain.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	header := make([]interface{}, len(t.Columns))
	for i, name := range t.ColumnNames() {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for r := 0; r < t.NumRows(); r++ {
		values := make([]interface{}, len(t.Columns))
		for i, col := range t.Columns {
			values[i] = col.Value(r)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	_, err = f.WriteTo(w)
	return err
}

type jsonEncoder struct{}

func (jsonEncoder) ContentType() string { return "application/json" }
func (jsonEncoder) Extension() string   { return ".json" }

// Encode writes an array of records. Keys keep the table's column order.
func (jsonEncoder) Encode(w io.Writer, t *domain.Table) error {
	bw := bufio.NewWriter(w)
	keys := make([][]byte, len(t.Columns))
	for i, name := range t.ColumnNames() {
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	bw.WriteByte('[')
	for r := 0; r < t.NumRows(); r++ {
		if r > 0 {
			bw.WriteByte(',')
		}
		bw.WriteByte('{')
		for i, col := range t.Columns {
			if i > 0 {
				bw.WriteByte(',')
			}
			v, err := json.Marshal(col.Value(r))
			if err != nil {
				return fmt.Errorf("encode %s row %d: %w", col.Name, r, err)
			}
			bw.Write(keys[i])
			bw.WriteByte(':')
			bw.Write(v)
		}
		bw.WriteByte('}')
	}
	bw.WriteByte(']')
	return bw.Flush()
}

var htmlTable = template.Must(template.New("table").Parse(`<table border="1" class="dataframe">
  <thead>
    <tr style="text-align: right;">
{{- range .Header}}
      <th>{{.}}</th>
{{- end}}
    </tr>
  </thead>
  <tbody>
{{- range .Rows}}
    <tr>
{{- range .}}
      <td>{{.}}</td>
{{- end}}
    </tr>
{{- end}}
  </tbody>
</table>
`))

type htmlEncoder struct{}

func (htmlEncoder) ContentType() string { return "text/html; charset=utf-8" }
func (htmlEncoder) Extension() string   { return ".html" }

func (htmlEncoder) Encode(w io.Writer, t *domain.Table) error {
	rows := make([][]string, t.NumRows())
	for r := range rows {
		rows[r] = t.Row(r)
	}
	return htmlTable.Execute(w, struct {
		Header []string
		Rows   [][]string
	}{t.ColumnNames(), rows})
}

var (
	_ output.TableEncoder = csvEncoder{}
	_ output.TableEncoder = xlsxEncoder{}
	_ output.TableEncoder = jsonEncoder{}
	_ output.TableEncoder = htmlEncoder{}
	_ output.TableEncoder = dtaEncoder{}
)
