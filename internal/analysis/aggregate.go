package analysis

import (
	"fmt"
	"math"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/KaramelBytes/hourlens/internal/table"
)

// Hours is the size of the cyclic time domain.
const Hours = 24

// AggFunc is the per-bucket summary function.
type AggFunc string

const (
	AggMean AggFunc = "mean"
	AggSum  AggFunc = "sum"
)

// ParseAggFunc accepts "mean" (default) or "sum".
func ParseAggFunc(s string) (AggFunc, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mean", "avg":
		return AggMean, nil
	case "sum", "total":
		return AggSum, nil
	}
	return "", fmt.Errorf("unsupported aggregation: %s (use mean|sum)", s)
}

// Bucket is one hour of an aggregated series. A bucket without contributing
// rows has HasData false and a NaN value; it is never reported as zero.
type Bucket struct {
	Hour    int
	Value   float64
	Count   int
	HasData bool
}

// MarshalJSON writes "no data" buckets with a null value.
func (b Bucket) MarshalJSON() ([]byte, error) {
	out := struct {
		Hour  int      `json:"hour"`
		Value *float64 `json:"value"`
		Count int      `json:"count"`
	}{Hour: b.Hour, Count: b.Count}
	if b.HasData {
		v := b.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// Series is one metric aggregated over the full 0-23 domain.
type Series struct {
	Metric  string        `json:"metric"`
	Group   string        `json:"group,omitempty"`
	Buckets [Hours]Bucket `json:"buckets"`
}

func newSeries(metric, group string) *Series {
	s := &Series{Metric: metric, Group: group}
	for h := range s.Buckets {
		s.Buckets[h] = Bucket{Hour: h, Value: math.NaN()}
	}
	return s
}

// Value returns the bucket value for hour h; ok is false for "no data".
func (s *Series) Value(h int) (float64, bool) {
	b := s.Buckets[wrapHour(float64(h))]
	return b.Value, b.HasData
}

// HoursWithData counts buckets that received at least one row.
func (s *Series) HoursWithData() int {
	n := 0
	for _, b := range s.Buckets {
		if b.HasData {
			n++
		}
	}
	return n
}

// Partition holds the series of one category value. The ungrouped case is a
// single partition with an empty key.
type Partition struct {
	Key    string    `json:"key"`
	Rows   int       `json:"rows"`
	Series []*Series `json:"series"`
}

// Aggregation is the output of Aggregate.
type Aggregation struct {
	Func       AggFunc     `json:"func"`
	TimeColumn string      `json:"time_column"`
	GroupBy    string      `json:"group_by,omitempty"`
	Metrics    []string    `json:"metrics"`
	Partitions []Partition `json:"partitions"`
	// SkippedRows had no usable hour or group value.
	SkippedRows int `json:"skipped_rows"`
}

// Series finds the series for a group and metric.
func (a *Aggregation) Series(group, metric string) (*Series, bool) {
	for _, p := range a.Partitions {
		if p.Key != group {
			continue
		}
		for _, s := range p.Series {
			if s.Metric == metric {
				return s, true
			}
		}
	}
	return nil, false
}

// AggregateOptions selects the columns to aggregate.
type AggregateOptions struct {
	TimeColumn string
	Metrics    []string
	// GroupBy partitions rows by the text of this column when set.
	GroupBy string
	Func    AggFunc
}

type accum struct {
	sum   []float64
	count []int
}

// Aggregate buckets rows by hour of day. Numeric time values are reduced
// modulo 24; text values are parsed as clock times. Every series carries all
// 24 hours, with "no data" buckets where no row contributed.
func Aggregate(t *table.Table, opt AggregateOptions) (*Aggregation, error) {
	fn, err := ParseAggFunc(string(opt.Func))
	if err != nil {
		return nil, err
	}
	timeCol, ok := t.Column(opt.TimeColumn)
	if !ok {
		return nil, fmt.Errorf("aggregate: %w: time column %q", ErrColumnNotFound, opt.TimeColumn)
	}
	metricCols := make([]*table.Column, len(opt.Metrics))
	for i, m := range opt.Metrics {
		col, ok := t.Column(m)
		if !ok || !col.IsNumeric() {
			return nil, fmt.Errorf("aggregate: %w: numeric column %q", ErrColumnNotFound, m)
		}
		metricCols[i] = col
	}
	var groupCol *table.Column
	if opt.GroupBy != "" {
		if groupCol, ok = t.Column(opt.GroupBy); !ok {
			return nil, fmt.Errorf("aggregate: %w: group column %q", ErrColumnNotFound, opt.GroupBy)
		}
	}

	agg := &Aggregation{Func: fn, TimeColumn: opt.TimeColumn, GroupBy: opt.GroupBy, Metrics: append([]string(nil), opt.Metrics...)}
	var order []string
	parts := map[string][]accum{}
	rows := map[string]int{}
	for r := 0; r < t.Rows(); r++ {
		hour, ok := hourAt(timeCol, r)
		if !ok {
			agg.SkippedRows++
			continue
		}
		key := ""
		if groupCol != nil {
			if groupCol.Missing(r) {
				agg.SkippedRows++
				continue
			}
			key = strings.TrimSpace(groupCol.Text(r))
		}
		acc, seen := parts[key]
		if !seen {
			acc = make([]accum, len(metricCols))
			for i := range acc {
				acc[i] = accum{sum: make([]float64, Hours), count: make([]int, Hours)}
			}
			parts[key] = acc
			order = append(order, key)
		}
		rows[key]++
		for i, col := range metricCols {
			v, ok := col.Float(r)
			if !ok {
				continue
			}
			acc[i].sum[hour] += v
			acc[i].count[hour]++
		}
	}
	if groupCol == nil && len(order) == 0 {
		order = append(order, "")
		acc := make([]accum, len(metricCols))
		for i := range acc {
			acc[i] = accum{sum: make([]float64, Hours), count: make([]int, Hours)}
		}
		parts[""] = acc
	}

	for _, key := range order {
		p := Partition{Key: key, Rows: rows[key]}
		for i, m := range opt.Metrics {
			s := newSeries(m, key)
			a := parts[key][i]
			for h := 0; h < Hours; h++ {
				if a.count[h] == 0 {
					continue
				}
				b := &s.Buckets[h]
				b.Count = a.count[h]
				b.HasData = true
				b.Value = a.sum[h]
				if fn == AggMean {
					b.Value /= float64(a.count[h])
				}
			}
			p.Series = append(p.Series, s)
		}
		agg.Partitions = append(agg.Partitions, p)
	}
	return agg, nil
}

func hourAt(col *table.Column, r int) (int, bool) {
	if col.Missing(r) {
		return 0, false
	}
	if v, ok := col.Float(r); ok {
		if math.IsInf(v, 0) {
			return 0, false
		}
		return wrapHour(v), true
	}
	return parseHour(col.Text(r))
}
