package tabular

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"churn-insight-service/internal/core/domain"
)

// Stata 114 (Stata 10+) layout constants.
const (
	dtaFormat       = 114
	dtaLOHI         = 2
	dtaTypeDouble   = 255
	dtaMaxStr       = 244
	dtaNameLen      = 33
	dtaFmtLen       = 49
	dtaLabelLen     = 81
	dtaTimestampLen = 18
)

// dtaMissingDouble is Stata's system missing value "." for doubles.
var dtaMissingDouble = math.Float64frombits(0x7fe0000000000000)

type dtaEncoder struct {
	now func() time.Time
}

func (dtaEncoder) ContentType() string { return "application/x-stata-dta" }
func (dtaEncoder) Extension() string   { return ".dta" }

type dtaVar struct {
	col   *domain.Column
	name  string
	typ   byte
	width int
}

// Encode writes a little-endian Stata 114 file. Numeric columns become doubles, text columns
// fixed-width strings truncated to 244 bytes.
func (e dtaEncoder) Encode(w io.Writer, t *domain.Table) error {
	if len(t.Columns) > math.MaxInt16 {
		return fmt.Errorf("dta: too many variables (%d)", len(t.Columns))
	}
	now := time.Now
	if e.now != nil {
		now = e.now
	}

	vars := dtaVariables(t)
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	// header
	bw.Write([]byte{dtaFormat, dtaLOHI, 1, 0})
	binary.Write(bw, le, int16(len(vars)))
	binary.Write(bw, le, int32(t.NumRows()))
	bw.Write(cstr("", dtaLabelLen))
	bw.Write(cstr(now().Format("02 Jan 2006 15:04"), dtaTimestampLen))

	// descriptors
	for _, v := range vars {
		bw.WriteByte(v.typ)
	}
	for _, v := range vars {
		bw.Write(cstr(v.name, dtaNameLen))
	}
	bw.Write(make([]byte, 2*(len(vars)+1)))
	for _, v := range vars {
		format := "%10.0g"
		if v.typ != dtaTypeDouble {
			format = "%" + strconv.Itoa(v.width) + "s"
		}
		bw.Write(cstr(format, dtaFmtLen))
	}
	for range vars {
		bw.Write(cstr("", dtaNameLen))
	}

	// variable labels keep the original column names
	for _, v := range vars {
		bw.Write(cstr(v.col.Name, dtaLabelLen))
	}

	// expansion fields terminator
	bw.Write(make([]byte, 5))

	var num [8]byte
	for r := 0; r < t.NumRows(); r++ {
		for _, v := range vars {
			cell := v.col.Cells[r]
			if v.typ == dtaTypeDouble {
				value := dtaMissingDouble
				if cell.Valid {
					value = cell.Num
				}
				le.PutUint64(num[:], math.Float64bits(value))
				bw.Write(num[:])
				continue
			}
			bw.Write(fixed(v.col.Render(r), v.width))
		}
	}
	return bw.Flush()
}

func dtaVariables(t *domain.Table) []dtaVar {
	used := map[string]bool{}
	vars := make([]dtaVar, len(t.Columns))
	for i, col := range t.Columns {
		v := dtaVar{col: col, name: uniqueName(stataName(col.Name), used), typ: dtaTypeDouble}
		if !col.IsNumeric() {
			width := 1
			for r := range col.Cells {
				if n := len(col.Render(r)); n > width {
					width = n
				}
			}
			if width > dtaMaxStr {
				width = dtaMaxStr
			}
			v.typ, v.width = byte(width), width
		}
		vars[i] = v
	}
	return vars
}

// stataName maps a column name onto Stata's variable name rules.
func stataName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "_" + out
	}
	if len(out) > dtaNameLen-1 {
		out = out[:dtaNameLen-1]
	}
	return out
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for i := 1; used[candidate]; i++ {
		suffix := strconv.Itoa(i)
		base := name
		if len(base)+len(suffix) > dtaNameLen-1 {
			base = base[:dtaNameLen-1-len(suffix)]
		}
		candidate = base + suffix
	}
	used[candidate] = true
	return candidate
}

// fixed returns s as a null padded field of n bytes.
func fixed(s string, n int) []byte {
	buf := make([]byte, n)
	copy(buf, s)
	return buf
}

// cstr is fixed with room for the terminating null.
func cstr(s string, n int) []byte {
	if len(s) > n-1 {
		s = s[:n-1]
	}
	return fixed(s, n)
}
