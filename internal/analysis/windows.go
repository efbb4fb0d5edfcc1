package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
)

// HourRange is an inclusive span of hours. From > To wraps past midnight, so
// 22-6 covers 22,23,0,...,6.
type HourRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether h falls in the range.
func (r HourRange) Contains(h int) bool {
	if r.From <= r.To {
		return h >= r.From && h <= r.To
	}
	return h >= r.From || h <= r.To
}

func (r HourRange) String() string {
	if r.From == r.To {
		return strconv.Itoa(r.From)
	}
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// Window is a named subset of the 24-hour domain. Windows may overlap.
type Window struct {
	Name   string      `json:"name"`
	Ranges []HourRange `json:"ranges"`
}

// Contains reports whether h belongs to any of the window's ranges.
func (w Window) Contains(h int) bool {
	for _, r := range w.Ranges {
		if r.Contains(h) {
			return true
		}
	}
	return false
}

// Hours lists the member hours in ascending order.
func (w Window) Hours() []int {
	var out []int
	for h := 0; h < Hours; h++ {
		if w.Contains(h) {
			out = append(out, h)
		}
	}
	return out
}

// String renders the window in the form ParseWindow accepts.
func (w Window) String() string {
	parts := make([]string, len(w.Ranges))
	for i, r := range w.Ranges {
		parts[i] = r.String()
	}
	return w.Name + "=" + strings.Join(parts, ",")
}

// DefaultWindows returns night (22-6) and rush (7-9, 17-19).
func DefaultWindows() []Window {
	return []Window{
		{Name: "night", Ranges: []HourRange{{From: 22, To: 6}}},
		{Name: "rush", Ranges: []HourRange{{From: 7, To: 9}, {From: 17, To: 19}}},
	}
}

// ParseWindow parses "name=from-to[,from-to...]". A single hour ("lunch=12")
// is a one-hour range.
func ParseWindow(s string) (Window, error) {
	name, spec, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(spec) == "" {
		return Window{}, fmt.Errorf("invalid window %q (want name=from-to[,from-to])", s)
	}
	w := Window{Name: name}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fromS, toS, isRange := strings.Cut(part, "-")
		if !isRange {
			toS = fromS
		}
		from, err1 := strconv.Atoi(strings.TrimSpace(fromS))
		to, err2 := strconv.Atoi(strings.TrimSpace(toS))
		if err1 != nil || err2 != nil {
			return Window{}, fmt.Errorf("invalid window %q: range %q is not numeric", s, part)
		}
		if from < 0 || from >= Hours || to < 0 || to >= Hours {
			return Window{}, fmt.Errorf("invalid window %q: hours must be within 0-23", s)
		}
		w.Ranges = append(w.Ranges, HourRange{From: from, To: to})
	}
	if len(w.Ranges) == 0 {
		return Window{}, fmt.Errorf("invalid window %q: no ranges", s)
	}
	return w, nil
}

// ParseWindows parses a list of window specs and rejects duplicate names.
func ParseWindows(specs []string) ([]Window, error) {
	out := make([]Window, 0, len(specs))
	seen := map[string]bool{}
	for _, s := range specs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		w, err := ParseWindow(s)
		if err != nil {
			return nil, err
		}
		if seen[w.Name] {
			return nil, fmt.Errorf("duplicate window name %q", w.Name)
		}
		seen[w.Name] = true
		out = append(out, w)
	}
	return out, nil
}

func validateWindows(ws []Window) error {
	seen := map[string]bool{}
	for _, w := range ws {
		if w.Name == "" {
			return fmt.Errorf("window without a name")
		}
		if seen[w.Name] {
			return fmt.Errorf("duplicate window name %q", w.Name)
		}
		seen[w.Name] = true
		for _, r := range w.Ranges {
			if r.From < 0 || r.From >= Hours || r.To < 0 || r.To >= Hours {
				return fmt.Errorf("window %q: range %s outside 0-23", w.Name, r)
			}
		}
	}
	return nil
}

// WindowStats summarizes a series over one window. Hours without data are
// ignored; Count is the number of hours that had data. When Count is 0 the
// numeric fields are meaningless and Unavailable is set.
type WindowStats struct {
	Name    string  `json:"name"`
	Mean    float64 `json:"mean"`
	Count   int     `json:"count"`
	Max     float64 `json:"max"`
	MaxHour int     `json:"max_hour"`

	Unavailable *Unavailable `json:"unavailable,omitempty"`
}

// HasData reports whether at least one hour in the window had data.
func (w WindowStats) HasData() bool { return w.Count > 0 }

// Detect computes WindowStats for every window over s.
func Detect(s *Series, windows []Window) map[string]WindowStats {
	out := make(map[string]WindowStats, len(windows))
	for _, w := range windows {
		out[w.Name] = windowStats(s, w)
	}
	return out
}

func windowStats(s *Series, w Window) WindowStats {
	ws := WindowStats{Name: w.Name, MaxHour: -1}
	var vals []float64
	for _, h := range w.Hours() {
		b := s.Buckets[h]
		if !b.HasData {
			continue
		}
		vals = append(vals, b.Value)
		if ws.MaxHour < 0 || b.Value > ws.Max {
			ws.Max, ws.MaxHour = b.Value, h
		}
	}
	ws.Count = len(vals)
	if ws.Count == 0 {
		ws.Unavailable = unavailable(fmt.Errorf("window %s: %w", w.Name, ErrNoData))
		return ws
	}
	ws.Mean, _ = stats.Mean(vals)
	return ws
}

// PeakResult is the bucket with the maximal value. Group is set when the
// peak was searched across partitions.
type PeakResult struct {
	Metric string  `json:"metric"`
	Group  string  `json:"group,omitempty"`
	Hour   int     `json:"hour"`
	Value  float64 `json:"value"`
}

// Peak scans hours 0-23 in ascending order and returns the first hour
// attaining the maximum.
func Peak(s *Series) (PeakResult, error) {
	p := PeakResult{Metric: s.Metric, Group: s.Group, Hour: -1}
	for h, b := range s.Buckets {
		if b.HasData && (p.Hour < 0 || b.Value > p.Value) {
			p.Hour, p.Value = h, b.Value
		}
	}
	if p.Hour < 0 {
		return p, fmt.Errorf("peak %s: %w", s.Metric, ErrNoData)
	}
	return p, nil
}

// PeakAcross finds the (group, hour) pair with the maximal value for a metric.
// Ties go to the lowest hour, then to the earliest partition.
func PeakAcross(a *Aggregation, metric string) (PeakResult, error) {
	p := PeakResult{Metric: metric, Hour: -1}
	for h := 0; h < Hours; h++ {
		for _, part := range a.Partitions {
			for _, s := range part.Series {
				if s.Metric != metric {
					continue
				}
				b := s.Buckets[h]
				if b.HasData && (p.Hour < 0 || b.Value > p.Value) {
					p.Hour, p.Value, p.Group = h, b.Value, part.Key
				}
			}
		}
	}
	if p.Hour < 0 {
		return p, fmt.Errorf("peak %s: %w", metric, ErrNoData)
	}
	return p, nil
}

// RatioSpec names a numerator and denominator window, e.g. night/rush.
type RatioSpec struct {
	Numerator   string `json:"numerator"`
	Denominator string `json:"denominator"`
}

func (r RatioSpec) String() string { return r.Numerator + "/" + r.Denominator }

// ParseRatio parses "numerator/denominator".
func ParseRatio(s string) (RatioSpec, error) {
	num, den, ok := strings.Cut(s, "/")
	num, den = strings.TrimSpace(num), strings.TrimSpace(den)
	if !ok || num == "" || den == "" {
		return RatioSpec{}, fmt.Errorf("invalid ratio %q (want numerator/denominator)", s)
	}
	return RatioSpec{Numerator: num, Denominator: den}, nil
}

// ParseRatios parses a list of ratio specs, skipping blanks.
func ParseRatios(specs []string) ([]RatioSpec, error) {
	var out []RatioSpec
	for _, s := range specs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		r, err := ParseRatio(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// WindowRatio divides the numerator window mean by the denominator window
// mean. It returns an *UndefinedRatioError rather than Inf, NaN or 0 when
// either window is unknown or empty, or the denominator mean is zero.
func WindowRatio(ws map[string]WindowStats, spec RatioSpec) (float64, error) {
	undefined := func(reason string) (float64, error) {
		return math.NaN(), &UndefinedRatioError{Numerator: spec.Numerator, Denominator: spec.Denominator, Reason: reason}
	}
	num, ok := ws[spec.Numerator]
	if !ok {
		return undefined("unknown window " + spec.Numerator)
	}
	den, ok := ws[spec.Denominator]
	if !ok {
		return undefined("unknown window " + spec.Denominator)
	}
	if !den.HasData() {
		return undefined("denominator window has no data")
	}
	if den.Mean == 0 {
		return undefined("denominator mean is zero")
	}
	if !num.HasData() {
		return undefined("numerator window has no data")
	}
	return num.Mean / den.Mean, nil
}

// Ratio is a computed window ratio for reports. Value is nil when undefined.
type Ratio struct {
	RatioSpec
	Value *float64 `json:"value"`

	Unavailable *Unavailable `json:"unavailable,omitempty"`
}
