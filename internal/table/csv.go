package table

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ReadOptions controls how raw files become a Table.
type ReadOptions struct {
	// Delimiter for CSV. If 0, sniffs among ',', ';', '\t'.
	Delimiter rune
	// Encoding of the source bytes: "utf-8" (default), "cp949" or "euc-kr".
	Encoding string
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// MissingMarkers are cell values (after trimming) treated as missing.
	MissingMarkers []string
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
	// XLSX sheet selection. SheetIndex is 1-based and used when SheetName is empty.
	SheetName  string
	SheetIndex int
}

// DefaultReadOptions returns the options used when nothing is configured.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		Encoding:           "utf-8",
		DecimalSeparator:   '.',
		ThousandsSeparator: ',',
		MissingMarkers:     []string{"", "NA", "N/A", "NaN", "nan", "null", "-"},
		SheetIndex:         1,
	}
}

// ErrUnsupportedEncoding is returned for an unknown Encoding name.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "cp949", "euc-kr", "euckr", "ks_c_5601-1987":
		return korean.EUCKR, nil
	default:
		return nil, fmt.Errorf("%w: %s (use utf-8|cp949|euc-kr)", ErrUnsupportedEncoding, name)
	}
}

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv", ".txt":
		return true
	}
	return false
}

func (csvLoader) Load(r io.Reader, name string, opt ReadOptions) (*Table, error) {
	return ReadCSV(r, name, opt)
}

// ReadCSV parses delimited text into a Table named name.
func ReadCSV(src io.Reader, name string, opt ReadOptions) (*Table, error) {
	enc, err := decoderFor(opt.Encoding)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(transform.NewReader(src, enc.NewDecoder()), 64<<10)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name, br)
	}
	r := csv.NewReader(br)
	r.ReuseRecord = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(name)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)

	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		if opt.MaxRows > 0 && len(records) >= opt.MaxRows {
			break
		}
		records = append(records, append([]string(nil), rec...))
	}
	return fromRecords(name, header, records, opt)
}

// fromRecords infers column kinds and builds the table. A column is numeric
// when it has at least one value and every non-missing cell parses as a number.
func fromRecords(name string, header []string, records [][]string, opt ReadOptions) (*Table, error) {
	names := headerNames(header)
	ncol := len(names)
	missing := make(map[string]struct{}, len(opt.MissingMarkers))
	for _, m := range opt.MissingMarkers {
		missing[strings.TrimSpace(m)] = struct{}{}
	}
	isMissing := func(v string) bool {
		if v == "" {
			return true
		}
		_, ok := missing[v]
		return ok
	}

	cols := make([]*Column, ncol)
	for j := 0; j < ncol; j++ {
		raw := make([]string, len(records))
		for i, rec := range records {
			if j < len(rec) {
				raw[i] = strings.TrimSpace(strings.ReplaceAll(rec[j], "\u00a0", " "))
			}
			if isMissing(raw[i]) {
				raw[i] = ""
			}
		}
		nums := make([]float64, len(raw))
		numeric, seen := true, false
		for i, v := range raw {
			if v == "" {
				nums[i] = math.NaN()
				continue
			}
			seen = true
			x, ok := parseNumeric(v, opt.DecimalSeparator, opt.ThousandsSeparator)
			if !ok {
				numeric = false
				break
			}
			nums[i] = x
		}
		if numeric && seen {
			cols[j] = NewNumeric(names[j], nums...)
		} else {
			cols[j] = NewText(names[j], raw...)
		}
	}
	return New(name, cols...)
}

// headerNames trims and NFC-normalizes header cells, naming blanks
// "Unnamed: i" and suffixing repeats with ".1", ".2", ...
func headerNames(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		n := norm.NFC.String(strings.TrimSpace(h))
		if n == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
		}
		cand := n
		for k := 1; used[cand]; k++ {
			cand = fmt.Sprintf("%s.%d", n, k)
		}
		used[cand] = true
		out[i] = cand
	}
	return out
}

func sniffDelimiter(name string, br *bufio.Reader) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	peek, _ := br.Peek(br.Size())
	line := string(peek)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestN := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func parseNumeric(s string, dec, thou rune) (float64, bool) {
	raw := strings.TrimSpace(s)
	if strings.HasSuffix(raw, "%") {
		raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	}
	if raw == "" {
		return 0, false
	}
	if dec == 0 {
		// auto detect
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	// Remove thousands separators (common: ',', '.', space) if they differ from decimal
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// WriteCSV writes the table as comma-separated UTF-8 with a header row.
// Missing cells are written empty.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	cols := t.Columns()
	rec := make([]string, len(cols))
	for i := 0; i < t.Rows(); i++ {
		for j, c := range cols {
			rec[j] = c.Text(i)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
