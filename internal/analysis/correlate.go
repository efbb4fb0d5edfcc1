package analysis

import (
	"fmt"
	"math"
	"sort"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/hourlens/internal/table"
)

// Correlation is the signed Pearson coefficient between the target and one
// attribute. R is NaN when either column is constant over the complete rows.
type Correlation struct {
	Attribute string
	R         float64
}

func (c Correlation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Attribute string   `json:"attribute"`
		R         *float64 `json:"r"`
	}{c.Attribute, finite(c.R)})
}

// Matrix is a square correlation matrix with labelled rows and columns.
type Matrix struct {
	Columns []string
	Values  [][]float64
}

// At returns the coefficient between columns i and j.
func (m Matrix) At(i, j int) float64 { return m.Values[i][j] }

func (m Matrix) MarshalJSON() ([]byte, error) {
	vals := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		vals[i] = make([]*float64, len(row))
		for j, v := range row {
			vals[i][j] = finite(v)
		}
	}
	return json.Marshal(struct {
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{m.Columns, vals})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// CorrelationResult lists the strongest attributes for a target and the
// sub-matrix over the target and those attributes.
type CorrelationResult struct {
	Target string `json:"target"`
	// Rows is the number of complete rows the coefficients were computed on.
	Rows        int           `json:"rows"`
	DroppedRows int           `json:"dropped_rows"`
	Top         []Correlation `json:"top"`
	Matrix      Matrix        `json:"matrix"`
}

// Rank computes Pearson correlations between target and every other numeric
// column over the rows that have no missing value in any numeric column, and
// returns the topN by absolute value. Ties keep column order; undefined
// coefficients sort last. topN <= 0 or beyond the available count returns
// every attribute.
func Rank(t *table.Table, target string, topN int) (*CorrelationResult, error) {
	numeric := t.NumericNames()
	ti := -1
	for i, n := range numeric {
		if n == target {
			ti = i
			break
		}
	}
	if ti < 0 {
		return nil, &TargetColumnMissingError{Target: target, Available: numeric}
	}

	cols := make([]*table.Column, len(numeric))
	for i, n := range numeric {
		cols[i], _ = t.Column(n)
	}
	data := make([]float64, 0, t.Rows()*len(cols))
	complete := 0
rows:
	for r := 0; r < t.Rows(); r++ {
		for _, c := range cols {
			if c.Missing(r) {
				continue rows
			}
		}
		for _, c := range cols {
			v, _ := c.Float(r)
			data = append(data, v)
		}
		complete++
	}
	res := &CorrelationResult{Target: target, Rows: complete, DroppedRows: t.Rows() - complete}
	if complete < 2 {
		return res, fmt.Errorf("correlate %s: %w: %d of %d", target, ErrInsufficientRows, complete, t.Rows())
	}

	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, mat.NewDense(complete, len(cols), data), nil)

	cands := make([]int, 0, len(numeric)-1)
	for i := range numeric {
		if i != ti {
			cands = append(cands, i)
		}
	}
	sort.SliceStable(cands, func(a, b int) bool {
		ra, rb := corr.At(ti, cands[a]), corr.At(ti, cands[b])
		if math.IsNaN(rb) {
			return !math.IsNaN(ra)
		}
		if math.IsNaN(ra) {
			return false
		}
		return math.Abs(ra) > math.Abs(rb)
	})
	if topN <= 0 || topN > len(cands) {
		topN = len(cands)
	}
	cands = cands[:topN]

	idx := append([]int{ti}, cands...)
	res.Top = make([]Correlation, len(cands))
	for k, i := range cands {
		res.Top[k] = Correlation{Attribute: numeric[i], R: corr.At(ti, i)}
	}
	res.Matrix = Matrix{Columns: make([]string, len(idx)), Values: make([][]float64, len(idx))}
	for a, i := range idx {
		res.Matrix.Columns[a] = numeric[i]
		res.Matrix.Values[a] = make([]float64, len(idx))
		for b, j := range idx {
			if a == b {
				res.Matrix.Values[a][b] = 1
				continue
			}
			res.Matrix.Values[a][b] = corr.At(i, j)
		}
	}
	return res, nil
}
