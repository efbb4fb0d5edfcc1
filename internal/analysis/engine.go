package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/hourlens/internal/table"
)

// Request carries everything one analysis needs. Nothing is shared between
// requests.
type Request struct {
	Table  *table.Table
	Policy Policy
	// Windows defaults to DefaultWindows when nil.
	Windows []Window
	Ratios  []RatioSpec
	// Target is the metric for correlation ranking and, when set, the only
	// inferred metric for time aggregation.
	Target string
	// GroupBy, TimeColumn and Metrics override role inference when set.
	GroupBy    string
	TimeColumn string
	Metrics    []string
	Agg        AggFunc
	TopN       int
	Vocabulary Vocabulary
}

// SeriesSummary holds the peak, window statistics and ratios of one series.
type SeriesSummary struct {
	Metric string        `json:"metric"`
	Group  string        `json:"group,omitempty"`
	Peak   *PeakResult   `json:"peak,omitempty"`
	Hours  int           `json:"hours_with_data"`
	Window []WindowStats `json:"windows"`
	Ratios []Ratio       `json:"ratios,omitempty"`

	PeakUnavailable *Unavailable `json:"peak_unavailable,omitempty"`
}

// MetricPeak is the peak of a metric across all partitions.
type MetricPeak struct {
	Metric string      `json:"metric"`
	Peak   *PeakResult `json:"peak,omitempty"`

	Unavailable *Unavailable `json:"unavailable,omitempty"`
}

// TemporalResult is the time-aggregation branch of a report.
type TemporalResult struct {
	Layout      Layout          `json:"layout"`
	Reshape     *ReshapeStats   `json:"reshape,omitempty"`
	Cleaning    CleanReport     `json:"cleaning"`
	Aggregation *Aggregation    `json:"aggregation"`
	Peaks       []MetricPeak    `json:"peaks"`
	Series      []SeriesSummary `json:"series"`
}

// Report is the structured result of one analysis. Each branch is either
// computed or carries the reason it is unavailable.
type Report struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Rows           int            `json:"rows"`
	Columns        int            `json:"columns"`
	Classification Classification `json:"classification"`

	Temporal            *TemporalResult `json:"temporal,omitempty"`
	TemporalUnavailable *Unavailable    `json:"temporal_unavailable,omitempty"`

	Correlation            *CorrelationResult `json:"correlation,omitempty"`
	CorrelationUnavailable *Unavailable       `json:"correlation_unavailable,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// Engine runs the analysis pipeline. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	log *zap.Logger
}

// NewEngine returns an engine logging to log; nil disables logging.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// Validate checks the request configuration. Data problems are not request
// errors; they surface as unavailable branches in the report.
func (r *Request) Validate() error {
	if r.Table == nil {
		return errors.New("analysis request has no table")
	}
	if err := r.Policy.Validate(); err != nil {
		return err
	}
	if _, err := ParseAggFunc(string(r.Agg)); err != nil {
		return err
	}
	return validateWindows(r.Windows)
}

// Analyze classifies the table, then runs the temporal branch (reshape,
// clean, aggregate, windows and peaks) and the correlation branch
// independently. It returns an error only for an invalid request.
func (e *Engine) Analyze(req Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Windows == nil {
		req.Windows = DefaultWindows()
	}
	start := time.Now()
	t := req.Table
	rep := &Report{ID: uuid.NewString(), Name: t.Name(), Rows: t.Rows(), Columns: t.Width()}
	log := e.log.With(zap.String("analysis_id", rep.ID), zap.String("table", t.Name()))
	log.Debug("analysis started", zap.Int("rows", t.Rows()), zap.Int("columns", t.Width()))

	rep.Classification = Classify(t, ClassifyOptions{
		Vocabulary: req.Vocabulary,
		Overrides:  overrides(req),
		Target:     req.Target,
	})
	c := rep.Classification
	log.Debug("columns classified", zap.String("layout", string(c.Layout)),
		zap.String("time", c.Time), zap.String("category", c.Category), zap.Strings("metrics", c.Metrics))
	for _, d := range c.Dropped {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("dropped hour column %q: %s", d.Column, d.Reason))
	}

	tr, err := e.temporal(log, t, c, req)
	if err != nil {
		log.Warn("temporal analysis unavailable", zap.Error(err))
		rep.TemporalUnavailable = unavailable(err)
	} else {
		rep.Temporal = tr
		for _, cc := range tr.Cleaning.Columns {
			if cc.Unavailable != nil {
				rep.Warnings = append(rep.Warnings, fmt.Sprintf("metric %q: %s", cc.Column, cc.Unavailable.Reason))
			}
		}
	}

	target := req.Target
	if target == "" && c.Layout != LayoutWide && len(c.Metrics) > 0 {
		target = c.Metrics[0]
	}
	if target == "" {
		rep.CorrelationUnavailable = unavailable(fmt.Errorf("%w: no target column", ErrTargetColumnMissing))
	} else if cr, err := Rank(t, target, req.TopN); err != nil {
		log.Warn("correlation unavailable", zap.String("target", target), zap.Error(err))
		rep.CorrelationUnavailable = unavailable(err)
	} else {
		rep.Correlation = cr
		log.Debug("correlation ranked", zap.String("target", target), zap.Int("rows", cr.Rows), zap.Int("top", len(cr.Top)))
	}

	log.Info("analysis finished", zap.Duration("elapsed", time.Since(start)),
		zap.Bool("temporal", rep.Temporal != nil), zap.Bool("correlation", rep.Correlation != nil))
	return rep, nil
}

func overrides(req Request) map[string]Role {
	o := map[string]Role{}
	if req.TimeColumn != "" {
		o[req.TimeColumn] = RoleTime
	}
	if req.GroupBy != "" {
		o[req.GroupBy] = RoleCategory
	}
	for _, m := range req.Metrics {
		o[m] = RoleMetric
	}
	return o
}

func (e *Engine) temporal(log *zap.Logger, t *table.Table, c Classification, req Request) (*TemporalResult, error) {
	if err := c.Temporal(); err != nil {
		return nil, err
	}
	tr := &TemporalResult{Layout: c.Layout}
	long, timeCol, metrics := t, c.Time, c.Metrics
	var absent map[string][]bool
	if len(req.Metrics) > 0 && c.Layout == LayoutLong {
		metrics = req.Metrics
	}
	if c.Layout == LayoutWide {
		reshaped, st, err := Reshape(t, c)
		if err != nil {
			return nil, err
		}
		log.Debug("wide table reshaped", zap.Int("rows", st.Rows), zap.Ints("hours", st.Hours), zap.Int("dropped", st.DroppedCount()))
		tr.Reshape = &st
		long, timeCol, metrics = reshaped, st.HourColumn, st.Values
		absent = st.AbsentMask(reshaped)
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("%w: no metric columns", ErrColumnNotFound)
	}

	cleaned, cr, err := CleanMasked(long, metrics, req.Policy, absent)
	if err != nil {
		return nil, err
	}
	tr.Cleaning = cr
	var usable []string
	for _, cc := range cr.Columns {
		if cc.Unavailable == nil || cc.AllMissing {
			usable = append(usable, cc.Column)
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: no usable metric columns", ErrColumnNotFound)
	}

	group := req.GroupBy
	if group == "" {
		group = c.Category
	}
	agg, err := Aggregate(cleaned, AggregateOptions{TimeColumn: timeCol, Metrics: usable, GroupBy: group, Func: req.Agg})
	if err != nil {
		return nil, err
	}
	tr.Aggregation = agg
	log.Debug("aggregated", zap.Int("partitions", len(agg.Partitions)), zap.Int("skipped_rows", agg.SkippedRows))

	for _, m := range usable {
		mp := MetricPeak{Metric: m}
		if p, err := PeakAcross(agg, m); err != nil {
			mp.Unavailable = unavailable(err)
		} else {
			mp.Peak = &p
		}
		tr.Peaks = append(tr.Peaks, mp)
	}
	for _, part := range agg.Partitions {
		for _, s := range part.Series {
			tr.Series = append(tr.Series, summarize(s, req.Windows, req.Ratios))
		}
	}
	return tr, nil
}

func summarize(s *Series, windows []Window, ratios []RatioSpec) SeriesSummary {
	sum := SeriesSummary{Metric: s.Metric, Group: s.Group, Hours: s.HoursWithData()}
	if p, err := Peak(s); err != nil {
		sum.PeakUnavailable = unavailable(err)
	} else {
		sum.Peak = &p
	}
	ws := Detect(s, windows)
	for _, w := range windows {
		sum.Window = append(sum.Window, ws[w.Name])
	}
	for _, spec := range ratios {
		r := Ratio{RatioSpec: spec}
		if v, err := WindowRatio(ws, spec); err != nil {
			r.Unavailable = unavailable(err)
		} else {
			r.Value = &v
		}
		sum.Ratios = append(sum.Ratios, r)
	}
	return sum
}
