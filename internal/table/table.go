// Package table holds the immutable in-memory representation of an uploaded
// dataset and the loaders that build it from CSV and XLSX files.
package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind is the declared value kind of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumeric
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	default:
		return "text"
	}
}

// Column is an ordered sequence of values of a single kind. Missing cells are
// tracked explicitly so a numeric zero is never confused with "no value".
type Column struct {
	name  string
	kind  Kind
	num   []float64
	text  []string
	valid []bool
}

// NewNumeric builds a numeric column. NaN marks a missing cell.
func NewNumeric(name string, vals ...float64) *Column {
	c := &Column{name: name, kind: KindNumeric, num: make([]float64, len(vals)), valid: make([]bool, len(vals))}
	for i, v := range vals {
		if math.IsNaN(v) {
			c.num[i] = math.NaN()
			continue
		}
		c.num[i] = v
		c.valid[i] = true
	}
	return c
}

// NewText builds a text column. The empty string marks a missing cell.
func NewText(name string, vals ...string) *Column {
	c := &Column{name: name, kind: KindText, text: make([]string, len(vals)), valid: make([]bool, len(vals))}
	for i, v := range vals {
		c.text[i] = v
		c.valid[i] = v != ""
	}
	return c
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }

// Len returns the number of rows in the column.
func (c *Column) Len() int { return len(c.valid) }

// IsNumeric reports whether the column holds numbers.
func (c *Column) IsNumeric() bool { return c.kind == KindNumeric }

// Missing reports whether row i has no value.
func (c *Column) Missing(i int) bool { return !c.valid[i] }

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, ok := range c.valid {
		if !ok {
			n++
		}
	}
	return n
}

// Float returns the numeric value of row i. ok is false for text columns and
// missing cells.
func (c *Column) Float(i int) (float64, bool) {
	if c.kind != KindNumeric || !c.valid[i] {
		return math.NaN(), false
	}
	return c.num[i], true
}

// Text returns the cell as a string. Numeric cells are formatted with the
// shortest round-trip representation; missing cells return "".
func (c *Column) Text(i int) string {
	if !c.valid[i] {
		return ""
	}
	if c.kind == KindNumeric {
		return strconv.FormatFloat(c.num[i], 'f', -1, 64)
	}
	return c.text[i]
}

// Floats returns a copy of the numeric values with NaN for missing cells.
func (c *Column) Floats() []float64 {
	out := make([]float64, len(c.valid))
	for i := range out {
		out[i], _ = c.Float(i)
	}
	return out
}

// Rename returns a copy of the column with a different name.
func (c *Column) Rename(name string) *Column {
	cp := *c
	cp.name = name
	return &cp
}

// Table is an ordered set of equally long, uniquely named columns. It is
// immutable: transformations return new tables and share unchanged columns.
type Table struct {
	name  string
	cols  []*Column
	index map[string]int
	rows  int
}

var (
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrRaggedColumns   = errors.New("columns have different lengths")
)

// New builds a table from columns in order.
func New(name string, cols ...*Column) (*Table, error) {
	t := &Table{name: name, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := t.index[c.name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrRaggedColumns, c.name, c.Len(), t.rows)
		}
		t.index[c.name] = i
	}
	t.cols = append([]*Column(nil), cols...)
	return t, nil
}

// MustNew is New for fixtures; it panics on error.
func MustNew(name string, cols ...*Column) *Table {
	t, err := New(name, cols...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Name() string { return t.name }
func (t *Table) Rows() int    { return t.rows }
func (t *Table) Width() int   { return len(t.cols) }

// Columns returns the columns in insertion order. The slice is a copy.
func (t *Table) Columns() []*Column { return append([]*Column(nil), t.cols...) }

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.name
	}
	return out
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// NumericNames returns the names of numeric columns in insertion order.
func (t *Table) NumericNames() []string {
	var out []string
	for _, c := range t.cols {
		if c.IsNumeric() {
			out = append(out, c.name)
		}
	}
	return out
}

// Replace returns a new table in which the column with the same name as c is
// swapped for c. The original table is left untouched.
func (t *Table) Replace(c *Column) (*Table, error) {
	i, ok := t.index[c.name]
	if !ok {
		return nil, fmt.Errorf("replace: column %q not found", c.name)
	}
	if c.Len() != t.rows {
		return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrRaggedColumns, c.name, c.Len(), t.rows)
	}
	cols := t.Columns()
	cols[i] = c
	return New(t.name, cols...)
}

// Select returns a new table restricted to the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("select: column %q not found", n)
		}
		cols = append(cols, c)
	}
	return New(t.name, cols...)
}

// Take returns a new column holding the rows at the given indexes, in order.
// Indexes may repeat.
func (c *Column) Take(rows []int) *Column {
	out := &Column{name: c.name, kind: c.kind, valid: make([]bool, len(rows))}
	if c.kind == KindNumeric {
		out.num = make([]float64, len(rows))
	} else {
		out.text = make([]string, len(rows))
	}
	for k, i := range rows {
		out.valid[k] = c.valid[i]
		if c.kind == KindNumeric {
			out.num[k] = c.num[i]
		} else {
			out.text[k] = c.text[i]
		}
	}
	return out
}
