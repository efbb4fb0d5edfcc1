package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/hourlens/internal/table"
)

// MissingStrategy selects how missing metric values are imputed.
type MissingStrategy string

const (
	ZeroFill       MissingStrategy = "zero_fill"
	ColumnMeanFill MissingStrategy = "column_mean_fill"
)

// OutlierStrategy selects how outliers are handled after imputation.
type OutlierStrategy string

const (
	OutlierNone    OutlierStrategy = "none"
	OutlierIQRClip OutlierStrategy = "iqr_clip"
)

// DefaultIQRFactor is the k in [Q1-k*IQR, Q3+k*IQR].
const DefaultIQRFactor = 1.5

// Policy configures the cleaning pipeline.
type Policy struct {
	Missing  MissingStrategy `json:"missing_strategy" yaml:"missing_strategy"`
	Outliers OutlierStrategy `json:"outlier_strategy" yaml:"outlier_strategy"`
	// IQRFactor is k for iqr_clip; 0 means DefaultIQRFactor.
	IQRFactor float64 `json:"iqr_k,omitempty" yaml:"iqr_k"`
}

// DefaultPolicy zero-fills and keeps outliers.
func DefaultPolicy() Policy {
	return Policy{Missing: ZeroFill, Outliers: OutlierNone, IQRFactor: DefaultIQRFactor}
}

// ParseMissingStrategy accepts the config/flag spellings.
func ParseMissingStrategy(s string) (MissingStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero", "zero_fill":
		return ZeroFill, nil
	case "mean", "column_mean_fill":
		return ColumnMeanFill, nil
	}
	return "", fmt.Errorf("unsupported missing strategy: %s (use zero_fill|column_mean_fill)", s)
}

// ParseOutlierStrategy accepts the config/flag spellings.
func ParseOutlierStrategy(s string) (OutlierStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return OutlierNone, nil
	case "iqr", "iqr_clip":
		return OutlierIQRClip, nil
	}
	return "", fmt.Errorf("unsupported outlier strategy: %s (use none|iqr_clip)", s)
}

// Validate checks the strategies and factor.
func (p Policy) Validate() error {
	if _, err := ParseMissingStrategy(string(p.Missing)); err != nil {
		return err
	}
	if _, err := ParseOutlierStrategy(string(p.Outliers)); err != nil {
		return err
	}
	if p.IQRFactor < 0 || math.IsNaN(p.IQRFactor) || math.IsInf(p.IQRFactor, 0) {
		return fmt.Errorf("invalid iqr factor: %v", p.IQRFactor)
	}
	return nil
}

func (p Policy) factor() float64 {
	if p.IQRFactor == 0 {
		return DefaultIQRFactor
	}
	return p.IQRFactor
}

// ColumnCleaning records what the pipeline did to one metric column.
type ColumnCleaning struct {
	Column string `json:"column"`
	Filled int    `json:"filled"`
	// FillValue is the value written into missing cells.
	FillValue float64 `json:"fill_value"`
	// AllMissing is set when the column had no values and fell back to zero fill.
	AllMissing bool    `json:"all_missing,omitempty"`
	// Absent counts cells with no source column; they stay empty.
	Absent  int     `json:"absent,omitempty"`
	Clipped int     `json:"clipped"`
	Q1         float64 `json:"q1,omitempty"`
	Q3         float64 `json:"q3,omitempty"`
	Lower      float64 `json:"lower,omitempty"`
	Upper      float64 `json:"upper,omitempty"`

	Unavailable *Unavailable `json:"unavailable,omitempty"`
}

// CleanReport lists per-column outcomes in the order the metrics were given.
type CleanReport struct {
	Policy  Policy           `json:"policy"`
	Columns []ColumnCleaning `json:"columns"`
}

// Clean imputes and clips the named metric columns independently and returns
// a new table; t is not modified. A metric that is absent or not numeric is
// reported as unavailable and left out; other columns are still cleaned.
func Clean(t *table.Table, metrics []string, p Policy) (*table.Table, CleanReport, error) {
	return CleanMasked(t, metrics, p, nil)
}

// CleanMasked is Clean with structurally absent cells: rows marked in
// absent[column] are neither imputed nor used for statistics and remain
// missing in the output, so aggregation reports them as no data.
func CleanMasked(t *table.Table, metrics []string, p Policy, absent map[string][]bool) (*table.Table, CleanReport, error) {
	rep := CleanReport{Policy: p}
	if err := p.Validate(); err != nil {
		return nil, rep, err
	}
	if p.Missing == "" {
		p.Missing = ZeroFill
	}
	if p.Outliers == "" {
		p.Outliers = OutlierNone
	}
	rep.Columns = make([]ColumnCleaning, len(metrics))
	cleaned := make([]*table.Column, len(metrics))

	// one goroutine per column
	var g errgroup.Group
	for i, name := range metrics {
		g.Go(func() error {
			col, ok := t.Column(name)
			if !ok || !col.IsNumeric() {
				rep.Columns[i] = ColumnCleaning{Column: name,
					Unavailable: unavailable(fmt.Errorf("%w: numeric column %q", ErrColumnNotFound, name))}
				return nil
			}
			cleaned[i], rep.Columns[i] = cleanColumn(col, p, absent[name])
			return nil
		})
	}
	_ = g.Wait()

	out := t
	for _, c := range cleaned {
		if c == nil {
			continue
		}
		next, err := out.Replace(c)
		if err != nil {
			return nil, rep, fmt.Errorf("clean: %w", err)
		}
		out = next
	}
	return out, rep, nil
}

func cleanColumn(col *table.Column, p Policy, absent []bool) (*table.Column, ColumnCleaning) {
	cc := ColumnCleaning{Column: col.Name()}
	vals := col.Floats()
	isAbsent := func(i int) bool { return i < len(absent) && absent[i] }
	for i := range vals {
		if isAbsent(i) {
			cc.Absent++
		}
	}

	fill := 0.0
	if p.Missing == ColumnMeanFill {
		observed := make([]float64, 0, len(vals))
		for _, v := range vals {
			if !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if m, err := stats.Mean(observed); err == nil {
			fill = m
		}
	}
	if col.MissingCount() == col.Len() && col.Len() > cc.Absent {
		fill = 0
		cc.AllMissing = true
		cc.Unavailable = unavailable(fmt.Errorf("%w: %q zero filled", ErrAllMissingColumn, col.Name()))
	}
	cc.FillValue = fill
	present := make([]float64, 0, len(vals))
	for i, v := range vals {
		if isAbsent(i) {
			continue
		}
		if math.IsNaN(v) {
			vals[i] = fill
			cc.Filled++
		}
		present = append(present, vals[i])
	}

	if p.Outliers == OutlierIQRClip && len(present) > 0 {
		q1, q3 := quartiles(present)
		iqr := q3 - q1
		k := p.factor()
		lo, hi := q1-k*iqr, q3+k*iqr
		cc.Q1, cc.Q3, cc.Lower, cc.Upper = q1, q3, lo, hi
		for i, v := range vals {
			switch {
			case v < lo:
				vals[i] = lo
				cc.Clipped++
			case v > hi:
				vals[i] = hi
				cc.Clipped++
			}
		}
	}
	return table.NewNumeric(col.Name(), vals...), cc
}

// quartiles returns Q1 and Q3 as observed values (inverse empirical CDF), so
// clipping to bounds derived from them never moves Q1 or Q3 themselves.
func quartiles(vals []float64) (q1, q3 float64) {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return stat.Quantile(0.25, stat.Empirical, sorted, nil), stat.Quantile(0.75, stat.Empirical, sorted, nil)
}
