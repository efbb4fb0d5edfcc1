package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/KaramelBytes/hourlens/internal/table"
)

// Role is the semantic role of a column.
type Role int

const (
	RoleUnknown Role = iota
	RoleTime
	RoleCategory
	RoleMetric
)

func (r Role) String() string {
	switch r {
	case RoleTime:
		return "time"
	case RoleCategory:
		return "category"
	case RoleMetric:
		return "metric"
	default:
		return "unknown"
	}
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ParseRole parses a role name.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "time":
		return RoleTime, true
	case "category":
		return RoleCategory, true
	case "metric":
		return RoleMetric, true
	case "unknown", "ignore":
		return RoleUnknown, true
	}
	return RoleUnknown, false
}

// Layout describes how time is encoded in a table.
type Layout string

const (
	LayoutNone Layout = "none"
	LayoutLong Layout = "long"
	LayoutWide Layout = "wide"
)

// Vocabulary holds the substrings that signal each role in a column name.
// Matching is case-insensitive.
type Vocabulary struct {
	Time     []string `json:"time"`
	Category []string `json:"category"`
	Metric   []string `json:"metric"`
	// HourToken marks an hour-range column such as "04시-05시".
	HourToken string `json:"hour_token"`
}

// DefaultVocabulary matches Seoul transit exports and common English headers.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Time:      []string{"시간", "time", "hour"},
		Category:  []string{"호선", "line", "category"},
		Metric:    []string{"승차", "하차", "up", "down"},
		HourToken: "시-",
	}
}

// hourLabelPattern captures the two-digit starting hour before the range
// token, skips the end of the range and keeps the suffix naming the measured
// quantity ("04시-05시 승차인원" -> 04, "승차인원"). The end of the range stops
// at the hour unit, so "04시-05시승차" still yields "승차".
func hourLabelPattern(token string) *regexp.Regexp {
	end := `\d{1,2}`
	if unit := strings.TrimRight(token, "-~ "); unit != "" {
		end += `(?:` + regexp.QuoteMeta(unit) + `)?`
	}
	return regexp.MustCompile(`^\s*(\d{2})` + regexp.QuoteMeta(token) + `(?:` + end + `)?\s*(.*)$`)
}

// HourColumn is a wide-format column holding one hour bucket.
type HourColumn struct {
	Column string `json:"column"`
	Hour   int    `json:"hour"`
	// Metric is the label suffix after the hour range, or "value".
	Metric string `json:"metric"`
}

// DroppedColumn records an hour-range column excluded from reshaping.
type DroppedColumn struct {
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// ClassifyOptions lets callers override inference.
type ClassifyOptions struct {
	Vocabulary Vocabulary
	// Overrides pin the role of named columns.
	Overrides map[string]Role
	// Target declares the metric of interest; it wins over inferred metrics.
	Target string
}

// Classification is the outcome of role inference.
type Classification struct {
	Names    []string        `json:"columns"`
	Roles    map[string]Role `json:"roles"`
	Layout   Layout          `json:"layout"`
	Time     string          `json:"time,omitempty"`
	Category string          `json:"category,omitempty"`
	Metrics  []string        `json:"metrics"`
	Target   string          `json:"target,omitempty"`
	// HourColumns lists wide-format columns in table order.
	HourColumns []HourColumn    `json:"hour_columns,omitempty"`
	Dropped     []DroppedColumn `json:"dropped,omitempty"`
}

// Temporal returns ErrNoTemporalStructure when the table cannot be time-aggregated.
func (c Classification) Temporal() error {
	if c.Layout == LayoutNone {
		return ErrNoTemporalStructure
	}
	return nil
}

// Role returns the role assigned to a column.
func (c Classification) Role(name string) Role { return c.Roles[name] }

func containsAny(name string, words []string) bool {
	n := strings.ToLower(name)
	for _, w := range words {
		if w != "" && strings.Contains(n, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// parseHourLabel extracts the starting hour and metric suffix from a wide
// column name. It fails when the label carries the range token but does not
// yield an hour in 0-23.
func parseHourLabel(re *regexp.Regexp, name string) (hour int, metric string, err error) {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return 0, "", &MalformedHourLabelError{Column: name, Reason: "expected two-digit hour before the range token"}
	}
	h, convErr := strconv.Atoi(m[1])
	if convErr != nil || h < 0 || h > 23 {
		return 0, "", &MalformedHourLabelError{Column: name, Reason: "hour " + m[1] + " outside 0-23"}
	}
	metric = strings.TrimSpace(m[2])
	if metric == "" {
		metric = "value"
	}
	return h, metric, nil
}

// Classify assigns a role to every column. Time and Category pick the first
// matching column in table order. A wide layout (hour-range columns) wins
// over a single Time column.
func Classify(t *table.Table, opt ClassifyOptions) Classification {
	voc := opt.Vocabulary
	if len(voc.Time) == 0 && len(voc.Category) == 0 && len(voc.Metric) == 0 && voc.HourToken == "" {
		voc = DefaultVocabulary()
	}
	c := Classification{Names: t.Names(), Roles: make(map[string]Role, t.Width()), Layout: LayoutNone}
	seenHour := map[string]bool{}
	var hourRe *regexp.Regexp
	if voc.HourToken != "" {
		hourRe = hourLabelPattern(voc.HourToken)
	}

	for _, col := range t.Columns() {
		name := col.Name()
		if r, ok := opt.Overrides[name]; ok {
			c.Roles[name] = r
			if r == RoleTime && c.Time == "" {
				c.Time = name
			}
			if r == RoleCategory && c.Category == "" {
				c.Category = name
			}
			continue
		}
		switch {
		case hourRe != nil && strings.Contains(name, voc.HourToken):
			c.Roles[name] = RoleTime
			h, metric, err := parseHourLabel(hourRe, name)
			if err == nil && !col.IsNumeric() && col.MissingCount() < col.Len() {
				err = &MalformedHourLabelError{Column: name, Reason: "hour bucket column is not numeric"}
			}
			if err == nil {
				key := strconv.Itoa(h) + "\x00" + metric
				if seenHour[key] {
					err = &MalformedHourLabelError{Column: name, Reason: "duplicate hour bucket"}
				}
				seenHour[key] = true
			}
			if err != nil {
				c.Dropped = append(c.Dropped, DroppedColumn{Column: name, Reason: err.Error()})
				continue
			}
			c.HourColumns = append(c.HourColumns, HourColumn{Column: name, Hour: h, Metric: metric})
		case containsAny(name, voc.Time):
			c.Roles[name] = RoleTime
			if c.Time == "" && timeBearing(col) {
				c.Time = name
			}
		case containsAny(name, voc.Category):
			c.Roles[name] = RoleCategory
			if c.Category == "" {
				c.Category = name
			}
		case col.IsNumeric():
			c.Roles[name] = RoleMetric
		default:
			c.Roles[name] = RoleUnknown
		}
	}

	switch {
	case len(c.HourColumns) > 0:
		c.Layout = LayoutWide
		c.Time = ""
	case c.Time != "":
		c.Layout = LayoutLong
	}

	if opt.Target != "" {
		if col, ok := t.Column(opt.Target); ok && col.IsNumeric() {
			c.Target = opt.Target
			for _, name := range c.Names {
				if c.Roles[name] == RoleMetric && name != opt.Target && !pinned(opt.Overrides, name) {
					c.Roles[name] = RoleUnknown
				}
			}
			c.Roles[opt.Target] = RoleMetric
		}
	}

	if c.Layout == LayoutWide {
		seen := map[string]bool{}
		for _, h := range c.HourColumns {
			if !seen[h.Metric] {
				seen[h.Metric] = true
				c.Metrics = append(c.Metrics, h.Metric)
			}
		}
		return c
	}
	// Metric-signal names come first, then the remaining numeric columns.
	var signal, rest []string
	for _, name := range c.Names {
		if c.Roles[name] != RoleMetric {
			continue
		}
		if containsAny(name, voc.Metric) {
			signal = append(signal, name)
		} else {
			rest = append(rest, name)
		}
	}
	c.Metrics = append(signal, rest...)
	return c
}

func pinned(overrides map[string]Role, name string) bool {
	_, ok := overrides[name]
	return ok
}

// timeBearing reports whether a Time-named column can yield hours: numeric
// values, or text that parses as a clock or timestamp.
func timeBearing(col *table.Column) bool {
	if col.IsNumeric() {
		return col.MissingCount() < col.Len()
	}
	checked := 0
	for i := 0; i < col.Len() && checked < 20; i++ {
		if col.Missing(i) {
			continue
		}
		checked++
		if _, ok := parseHour(col.Text(i)); !ok {
			return false
		}
	}
	return checked > 0
}
