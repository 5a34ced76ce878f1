package tabular

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/testutil"
)

func TestDecode_CSV(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, testutil.ChurnCSV(testutil.ChurnHeader, testutil.ChurnRows)...)

	table, err := NewDecoder().Decode("user1_file.CSV", data)
	require.NoError(t, err)
	assert.Equal(t, testutil.ChurnHeader, table.ColumnNames())
	assert.Equal(t, 3, table.NumRows())

	tenure, _ := table.Column("tenure")
	assert.True(t, tenure.IsNumeric())
	gender, _ := table.Column("gender")
	assert.False(t, gender.IsNumeric())
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	_, err := NewDecoder().Decode("data.parquet", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = NewDecoder().Decode("noextension", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestDecode_ParseErrors(t *testing.T) {
	tests := map[string]struct {
		filename string
		data     string
	}{
		"ragged csv":       {"f.csv", "a,b\n1,2\n3\n"},
		"bad quote":        {"f.csv", "a,b\n\"1,2\n"},
		"empty csv":        {"f.csv", ""},
		"duplicate header": {"f.csv", "a,a\n1,2\n"},
		"not a workbook":   {"f.xlsx", "plain text"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewDecoder().Decode(tt.filename, []byte(tt.data))
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestDecode_HeaderOnlyIsEmpty(t *testing.T) {
	table, err := NewDecoder().Decode("f.csv", []byte("customerID,tenure\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, table.NumRows())
}

func TestXLSX_RoundTrip(t *testing.T) {
	src := testutil.ChurnTable(t)

	var buf bytes.Buffer
	require.NoError(t, xlsxEncoder{}.Encode(&buf, src))

	got, err := NewDecoder().Decode("export.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, src.ColumnNames(), got.ColumnNames())
	require.Equal(t, src.NumRows(), got.NumRows())
	for r := 0; r < src.NumRows(); r++ {
		assert.Equal(t, src.Row(r), got.Row(r))
	}

	total, _ := got.Column("TotalCharges")
	assert.True(t, total.IsNumeric())
	assert.False(t, total.Cells[1].Valid)
}

func TestDecode_XLSXFormattedNumbers(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"customerID", "TotalCharges"}))
	require.NoError(t, f.SetCellStr("Sheet1", "A2", "5575-GNVDE"))
	require.NoError(t, f.SetCellFloat("Sheet1", "B2", 1889.5, -1, 64))
	require.NoError(t, f.SetCellStr("Sheet1", "A3", "7590-VHVEG"))
	require.NoError(t, f.SetCellFloat("Sheet1", "B3", 29.85, -1, 64))

	// #,##0.00 displays 1889.5 as "1,889.50"
	style, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B3", style))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := NewDecoder().Decode("u.xlsx", buf.Bytes())
	require.NoError(t, err)

	total, ok := table.Column("TotalCharges")
	require.True(t, ok)
	assert.True(t, total.IsNumeric())
	assert.Equal(t, []float64{1889.5, 29.85}, total.Numbers())
}

func TestCSV_RoundTrip(t *testing.T) {
	src := testutil.ChurnTable(t)

	var buf bytes.Buffer
	require.NoError(t, csvEncoder{}.Encode(&buf, src))

	got, err := NewDecoder().Decode("export.csv", buf.Bytes())
	require.NoError(t, err)
	for r := 0; r < src.NumRows(); r++ {
		assert.Equal(t, src.Row(r), got.Row(r))
	}
}

func TestJSON_KeepsColumnOrder(t *testing.T) {
	table := testutil.NewTable(t, []string{"z", "a", "n"}, [][]string{{"x", "1", ""}, {"y", "2.5", "3"}})

	var buf bytes.Buffer
	require.NoError(t, jsonEncoder{}.Encode(&buf, table))
	assert.JSONEq(t, `[{"z":"x","a":1,"n":null},{"z":"y","a":2.5,"n":3}]`, buf.String())
	assert.True(t, strings.HasPrefix(buf.String(), `[{"z":"x","a":1,`))
}

func TestHTML_EscapesValues(t *testing.T) {
	table := testutil.NewTable(t, []string{"name"}, [][]string{{"<b>Bob</b>"}})

	var buf bytes.Buffer
	require.NoError(t, htmlEncoder{}.Encode(&buf, table))
	assert.Contains(t, buf.String(), `<table border="1" class="dataframe">`)
	assert.Contains(t, buf.String(), "<th>name</th>")
	assert.Contains(t, buf.String(), "&lt;b&gt;Bob&lt;/b&gt;")
}

func TestDTA_Layout(t *testing.T) {
	table := testutil.NewTable(t, []string{"customer ID", "tenure"}, [][]string{
		{"7590-VHVEG", "1"},
		{"5575", ""},
	})
	enc := dtaEncoder{now: func() time.Time { return time.Date(2026, 10, 18, 9, 5, 0, 0, time.UTC) }}

	var buf bytes.Buffer
	require.NoError(t, enc.Encode(&buf, table))
	b := buf.Bytes()

	const nvar = 2
	strWidth := len("7590-VHVEG")
	descriptors := nvar + nvar*dtaNameLen + 2*(nvar+1) + nvar*dtaFmtLen + nvar*dtaNameLen
	dataStart := 109 + descriptors + nvar*dtaLabelLen + 5
	require.Len(t, b, dataStart+2*(strWidth+8))

	assert.Equal(t, byte(114), b[0])
	assert.Equal(t, byte(2), b[1])
	assert.Equal(t, int16(nvar), int16(binary.LittleEndian.Uint16(b[4:6])))
	assert.Equal(t, int32(2), int32(binary.LittleEndian.Uint32(b[6:10])))
	assert.Equal(t, "18 Oct 2026 09:05", string(b[91:108]))

	typlist := b[109 : 109+nvar]
	assert.Equal(t, []byte{byte(strWidth), dtaTypeDouble}, typlist)

	firstName := b[109+nvar : 109+nvar+dtaNameLen]
	assert.Equal(t, "customer_ID", string(bytes.TrimRight(firstName, "\x00")))

	row1 := b[dataStart : dataStart+strWidth+8]
	assert.Equal(t, "7590-VHVEG", string(row1[:strWidth]))
	assert.Equal(t, 1.0, math.Float64frombits(binary.LittleEndian.Uint64(row1[strWidth:])))

	row2 := b[dataStart+strWidth+8:]
	assert.Equal(t, "5575", string(bytes.TrimRight(row2[:strWidth], "\x00")))
	assert.Equal(t, uint64(0x7fe0000000000000), binary.LittleEndian.Uint64(row2[strWidth:]))
}

func TestStataName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "_1st_col", uniqueName(stataName("1st col"), used))
	assert.Equal(t, "MonthlyChargesToTotalChargesRati", stataName("MonthlyChargesToTotalChargesRatio"))
	assert.Equal(t, "a_b", uniqueName(stataName("a-b"), used))
	assert.Equal(t, "a_b1", uniqueName(stataName("a b"), used))
}

func TestEncoders_Registry(t *testing.T) {
	encs := Encoders()
	for _, name := range []string{"csv", "xlsx", "dta", "html", "json"} {
		enc, ok := encs[name]
		require.True(t, ok, name)
		assert.Equal(t, "."+name, enc.Extension())
		assert.NotEmpty(t, enc.ContentType())
	}
}
