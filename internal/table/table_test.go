package table

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
)

func TestReadCSVInfersKindsAndMissing(t *testing.T) {
	src := strings.Join([]string{
		"호선,역명,08시-09시,체중(kg),note",
		"1호선,서울역,\"1,200\",70.5,first",
		"2호선,강남,NA,,second",
		"1호선,시청,950,68,-",
	}, "\n")
	tb, err := ReadCSV(strings.NewReader(src), "rides.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if tb.Rows() != 3 || tb.Width() != 5 {
		t.Fatalf("shape = %dx%d, want 3x5", tb.Rows(), tb.Width())
	}
	want := map[string]Kind{"호선": KindText, "역명": KindText, "08시-09시": KindNumeric, "체중(kg)": KindNumeric, "note": KindText}
	for name, k := range want {
		c, ok := tb.Column(name)
		if !ok {
			t.Fatalf("missing column %q", name)
		}
		if c.Kind() != k {
			t.Fatalf("%s kind = %v, want %v", name, c.Kind(), k)
		}
	}
	hour, _ := tb.Column("08시-09시")
	if v, ok := hour.Float(0); !ok || v != 1200 {
		t.Fatalf("thousands separator not stripped: %v %v", v, ok)
	}
	if !hour.Missing(1) {
		t.Fatalf("NA should be missing")
	}
	note, _ := tb.Column("note")
	if !note.Missing(2) {
		t.Fatalf("'-' marker should be missing")
	}
	if got := note.MissingCount(); got != 1 {
		t.Fatalf("note missing = %d, want 1", got)
	}
}

func TestReadCSVSniffsSemicolonAndCommaDecimal(t *testing.T) {
	src := "Group;Score\nA;10,5\nB;9,25\n"
	opt := DefaultReadOptions()
	opt.DecimalSeparator = ','
	opt.ThousandsSeparator = '.'
	tb, err := ReadCSV(strings.NewReader(src), "scores.csv", opt)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	c, ok := tb.Column("Score")
	if !ok || !c.IsNumeric() {
		t.Fatalf("Score should be numeric")
	}
	if v, _ := c.Float(1); v != 9.25 {
		t.Fatalf("Score[1] = %v, want 9.25", v)
	}
}

func TestReadCSVDecodesEUCKR(t *testing.T) {
	src := "호선,승차\n2호선,10\n"
	enc, err := korean.EUCKR.NewEncoder().String(src)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	opt := DefaultReadOptions()
	opt.Encoding = "cp949"
	tb, err := ReadCSV(strings.NewReader(enc), "legacy.csv", opt)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	c, ok := tb.Column("호선")
	if !ok {
		t.Fatalf("header not decoded: %v", tb.Names())
	}
	if c.Text(0) != "2호선" {
		t.Fatalf("cell = %q", c.Text(0))
	}
	if _, err := ReadCSV(strings.NewReader(src), "x.csv", ReadOptions{Encoding: "latin9"}); err == nil {
		t.Fatalf("expected unsupported encoding error")
	}
}

func TestReadCSVStripsBOMAndNamesBlankHeaders(t *testing.T) {
	src := "\ufeffa,,a\n1,2,3\n"
	tb, err := ReadCSV(strings.NewReader(src), "bom.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	got := strings.Join(tb.Names(), "|")
	if got != "a|Unnamed: 1|a.1" {
		t.Fatalf("names = %q", got)
	}
}

func TestReadCSVMaxRows(t *testing.T) {
	src := "x\n1\n2\n3\n"
	opt := DefaultReadOptions()
	opt.MaxRows = 2
	tb, err := ReadCSV(strings.NewReader(src), "m.csv", opt)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if tb.Rows() != 2 {
		t.Fatalf("rows = %d, want 2", tb.Rows())
	}
}

func TestLoadFileXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetSheetRow("Sheet1", "A1", &[]any{"time", "value"})
	_ = f.SetSheetRow("Sheet1", "A2", &[]any{7, 12.5})
	_ = f.SetSheetRow("Sheet1", "A3", &[]any{8, 14})
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ridership.xlsx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	tb, err := LoadFile(path, DefaultReadOptions())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if tb.Name() != "ridership.xlsx" || tb.Rows() != 2 {
		t.Fatalf("table = %s rows=%d", tb.Name(), tb.Rows())
	}
	v, _ := tb.Column("value")
	if x, _ := v.Float(0); x != 12.5 {
		t.Fatalf("value[0] = %v", x)
	}

	opt := DefaultReadOptions()
	opt.SheetName = "Missing"
	if _, err := LoadFile(path, opt); err == nil || !strings.Contains(err.Error(), "Available sheets: Sheet1") {
		t.Fatalf("expected sheet-not-found error, got %v", err)
	}
}

func TestTableIsImmutable(t *testing.T) {
	tb := MustNew("t", NewNumeric("a", 1, math.NaN()), NewText("b", "x", ""))
	repl, err := tb.Replace(NewNumeric("a", 1, 0))
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	orig, _ := tb.Column("a")
	if !orig.Missing(1) {
		t.Fatalf("original table mutated")
	}
	next, _ := repl.Column("a")
	if next.Missing(1) {
		t.Fatalf("replacement not applied")
	}
	if _, err := New("bad", NewNumeric("a", 1), NewNumeric("a", 2)); err == nil {
		t.Fatalf("expected duplicate column error")
	}
	if _, err := New("bad", NewNumeric("a", 1), NewNumeric("b", 1, 2)); err == nil {
		t.Fatalf("expected ragged error")
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	tb := MustNew("long",
		NewText("역명", "강남", "시청"),
		NewNumeric("hour", 0, 23),
		NewNumeric("value", 1.5, math.NaN()),
	)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tb); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, want := buf.String(), "역명,hour,value\n강남,0,1.5\n시청,23,\n"; got != want {
		t.Fatalf("csv = %q, want %q", got, want)
	}
	back, err := ReadCSV(&buf, "long.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	v, ok := back.Column("value")
	if !ok || !v.Missing(1) || v.Kind() != KindNumeric {
		t.Fatalf("value column did not survive: %+v", v)
	}
}
