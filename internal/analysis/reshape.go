package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/hourlens/internal/table"
)

// ReshapeStats summarizes a wide-to-long conversion.
type ReshapeStats struct {
	Entities    int             `json:"entities"`
	HourColumns int             `json:"hour_columns"`
	Rows        int             `json:"rows"`
	Hours       []int           `json:"hours"`
	HourColumn  string          `json:"hour_column"`
	Values      []string        `json:"value_columns"`
	Identity    []string        `json:"identity_columns"`
	Dropped     []DroppedColumn `json:"dropped,omitempty"`
	// Absent lists, per value column, the hours that have no source column.
	// Those cells are structurally empty, not missing readings.
	Absent map[string][]int `json:"absent,omitempty"`
}

// AbsentMask marks, per value column, the rows of the long table whose hour
// has no source column. It returns nil when every cell has a source.
func (s ReshapeStats) AbsentMask(long *table.Table) map[string][]bool {
	if len(s.Absent) == 0 {
		return nil
	}
	hourCol, ok := long.Column(s.HourColumn)
	if !ok {
		return nil
	}
	out := make(map[string][]bool, len(s.Absent))
	for name, hours := range s.Absent {
		skip := make(map[int]bool, len(hours))
		for _, h := range hours {
			skip[h] = true
		}
		mask := make([]bool, long.Rows())
		for r := range mask {
			if h, ok := hourCol.Float(r); ok {
				mask[r] = skip[int(h)]
			}
		}
		out[name] = mask
	}
	return out
}

// DroppedCount returns the number of hour-range columns that were excluded.
func (s ReshapeStats) DroppedCount() int { return len(s.Dropped) }

// Reshape turns a wide table (one row per entity, one column per hour bucket)
// into a long table with one row per entity and hour. Non-hour columns are
// carried over as identity columns, followed by an integer hour column and one
// value column per metric suffix. Malformed hour columns listed in c.Dropped
// are left out and reported.
func Reshape(t *table.Table, c Classification) (*table.Table, ReshapeStats, error) {
	st := ReshapeStats{Entities: t.Rows(), HourColumns: len(c.HourColumns), Dropped: c.Dropped}
	if len(c.HourColumns) == 0 {
		return nil, st, fmt.Errorf("reshape: %w", ErrNoTemporalStructure)
	}

	skip := make(map[string]bool, len(c.HourColumns)+len(c.Dropped))
	byHour := map[int]map[string]*table.Column{}
	for _, hc := range c.HourColumns {
		skip[hc.Column] = true
		col, ok := t.Column(hc.Column)
		if !ok {
			return nil, st, fmt.Errorf("reshape: %w: %q", ErrColumnNotFound, hc.Column)
		}
		if byHour[hc.Hour] == nil {
			byHour[hc.Hour] = map[string]*table.Column{}
			st.Hours = append(st.Hours, hc.Hour)
		}
		byHour[hc.Hour][hc.Metric] = col
	}
	for _, d := range c.Dropped {
		skip[d.Column] = true
	}
	sort.Ints(st.Hours)

	var identity []*table.Column
	used := map[string]bool{}
	for _, col := range t.Columns() {
		if skip[col.Name()] {
			continue
		}
		identity = append(identity, col)
		st.Identity = append(st.Identity, col.Name())
		used[col.Name()] = true
	}
	st.HourColumn = uniqueName("hour", used)
	metrics := c.Metrics
	if len(metrics) == 0 {
		metrics = []string{"value"}
	}
	valueNames := make([]string, len(metrics))
	for i, m := range metrics {
		valueNames[i] = uniqueName(m, used)
	}
	st.Values = valueNames
	for i, m := range metrics {
		for _, h := range st.Hours {
			if byHour[h][m] == nil {
				if st.Absent == nil {
					st.Absent = map[string][]int{}
				}
				st.Absent[valueNames[i]] = append(st.Absent[valueNames[i]], h)
			}
		}
	}

	n := t.Rows() * len(st.Hours)
	rows := make([]int, 0, n)
	hours := make([]float64, 0, n)
	values := make([][]float64, len(metrics))
	for i := range values {
		values[i] = make([]float64, 0, n)
	}
	for r := 0; r < t.Rows(); r++ {
		for _, h := range st.Hours {
			rows = append(rows, r)
			hours = append(hours, float64(h))
			for i, m := range metrics {
				v := math.NaN()
				if col := byHour[h][m]; col != nil {
					if x, ok := col.Float(r); ok {
						v = x
					}
				}
				values[i] = append(values[i], v)
			}
		}
	}
	st.Rows = len(rows)

	cols := make([]*table.Column, 0, len(identity)+1+len(metrics))
	for _, col := range identity {
		cols = append(cols, col.Take(rows))
	}
	cols = append(cols, table.NewNumeric(st.HourColumn, hours...))
	for i := range metrics {
		cols = append(cols, table.NewNumeric(valueNames[i], values[i]...))
	}
	long, err := table.New(t.Name(), cols...)
	if err != nil {
		return nil, st, fmt.Errorf("reshape: %w", err)
	}
	return long, st, nil
}

func uniqueName(base string, used map[string]bool) string {
	n := base
	for used[n] {
		n += "_"
	}
	used[n] = true
	return n
}
