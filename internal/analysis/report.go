package analysis

import (
	"fmt"
	"strings"
)

// Markdown renders the report as sectioned plain text suitable for a
// terminal or a Markdown viewer.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n", r.Columns))
	b.WriteString(fmt.Sprintf("Analysis: %s\n\n", r.ID))

	c := r.Classification
	b.WriteString("[COLUMN ROLES]\n")
	b.WriteString(fmt.Sprintf("Layout: %s\n", c.Layout))
	for _, name := range c.Names {
		role := c.Roles[name]
		line := fmt.Sprintf("- %s: %s", safeName(name), role)
		switch {
		case name == c.Time:
			line += " (time axis)"
		case name == c.Category:
			line += " (group)"
		case name == c.Target:
			line += " (target)"
		}
		b.WriteString(line + "\n")
	}
	if len(c.HourColumns) > 0 {
		b.WriteString(fmt.Sprintf("Hour columns: %d", len(c.HourColumns)))
		if len(c.Dropped) > 0 {
			b.WriteString(fmt.Sprintf(" (dropped %d)", len(c.Dropped)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n[TEMPORAL PROFILE]\n")
	if r.Temporal == nil {
		b.WriteString(fmt.Sprintf("Unavailable: %s\n", reason(r.TemporalUnavailable)))
	} else {
		r.Temporal.markdown(&b)
	}

	b.WriteString("\n[CORRELATION]\n")
	if r.Correlation == nil {
		b.WriteString(fmt.Sprintf("Unavailable: %s\n", reason(r.CorrelationUnavailable)))
	} else {
		r.Correlation.markdown(&b)
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + safeVal(w) + "\n")
		}
	}
	return b.String()
}

func (t *TemporalResult) markdown(b *strings.Builder) {
	a := t.Aggregation
	b.WriteString(fmt.Sprintf("Time axis: %s (%s per hour)", safeName(a.TimeColumn), a.Func))
	if a.GroupBy != "" {
		b.WriteString(fmt.Sprintf(", grouped by %s", safeName(a.GroupBy)))
	}
	b.WriteString("\n")
	if t.Reshape != nil {
		b.WriteString(fmt.Sprintf("Reshaped: %d entities x %d hours -> %d rows\n", t.Reshape.Entities, len(t.Reshape.Hours), t.Reshape.Rows))
	}
	if a.SkippedRows > 0 {
		b.WriteString(fmt.Sprintf("Skipped rows: %d\n", a.SkippedRows))
	}
	for _, cc := range t.Cleaning.Columns {
		if cc.Unavailable != nil && !cc.AllMissing {
			continue
		}
		line := fmt.Sprintf("- cleaned %s: filled %d with %.4g", safeName(cc.Column), cc.Filled, cc.FillValue)
		if t.Cleaning.Policy.Outliers == OutlierIQRClip {
			line += fmt.Sprintf(", clipped %d to [%.4g, %.4g]", cc.Clipped, cc.Lower, cc.Upper)
		}
		b.WriteString(line + "\n")
	}
	for _, p := range t.Peaks {
		if p.Peak == nil {
			b.WriteString(fmt.Sprintf("- peak %s: %s\n", safeName(p.Metric), reason(p.Unavailable)))
			continue
		}
		if p.Peak.Group != "" {
			b.WriteString(fmt.Sprintf("- peak %s: %s at %02d:00 = %.4g\n", safeName(p.Metric), safeVal(p.Peak.Group), p.Peak.Hour, p.Peak.Value))
		} else {
			b.WriteString(fmt.Sprintf("- peak %s: %02d:00 = %.4g\n", safeName(p.Metric), p.Peak.Hour, p.Peak.Value))
		}
	}

	for _, s := range t.Series {
		title := s.Metric
		if s.Group != "" {
			title = s.Group + " / " + s.Metric
		}
		b.WriteString(fmt.Sprintf("\n%s (hours with data: %d/%d)\n", safeVal(title), s.Hours, Hours))
		b.WriteString(hourTable(a, s))
		for _, w := range s.Window {
			if !w.HasData() {
				b.WriteString(fmt.Sprintf("  • %s: no data\n", w.Name))
				continue
			}
			b.WriteString(fmt.Sprintf("  • %s: mean %.4g over %d h, max %.4g at %02d:00\n", w.Name, w.Mean, w.Count, w.Max, w.MaxHour))
		}
		for _, r := range s.Ratios {
			if r.Value == nil {
				b.WriteString(fmt.Sprintf("  • %s: undefined (%s)\n", r.RatioSpec, reason(r.Unavailable)))
				continue
			}
			b.WriteString(fmt.Sprintf("  • %s: %.3f\n", r.RatioSpec, *r.Value))
		}
	}
}

// hourTable prints the 24 buckets as a two-row Markdown table; "-" marks an
// hour without data.
func hourTable(a *Aggregation, sum SeriesSummary) string {
	s, ok := a.Series(sum.Group, sum.Metric)
	if !ok {
		return ""
	}
	var head, sep, vals strings.Builder
	head.WriteString("| h |")
	sep.WriteString("|---|")
	vals.WriteString("| v |")
	for h := 0; h < Hours; h++ {
		head.WriteString(fmt.Sprintf(" %02d |", h))
		sep.WriteString("---|")
		if v, ok := s.Value(h); ok {
			vals.WriteString(fmt.Sprintf(" %.4g |", v))
		} else {
			vals.WriteString(" - |")
		}
	}
	return head.String() + "\n" + sep.String() + "\n" + vals.String() + "\n"
}

func (c *CorrelationResult) markdown(b *strings.Builder) {
	b.WriteString(fmt.Sprintf("Target: %s (complete rows %d, dropped %d)\n", safeName(c.Target), c.Rows, c.DroppedRows))
	if len(c.Top) == 0 {
		b.WriteString("No other numeric columns.\n")
		return
	}
	for i, t := range c.Top {
		b.WriteString(fmt.Sprintf("%d. %s: r=%s\n", i+1, safeName(t.Attribute), fmtR(t.R)))
	}
	b.WriteString("\n|   |")
	for _, col := range c.Matrix.Columns {
		b.WriteString(" " + safeVal(col) + " |")
	}
	b.WriteString("\n|---|")
	for range c.Matrix.Columns {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for i, row := range c.Matrix.Values {
		b.WriteString("| " + safeVal(c.Matrix.Columns[i]) + " |")
		for _, v := range row {
			b.WriteString(" " + fmtR(v) + " |")
		}
		b.WriteString("\n")
	}
}

func fmtR(v float64) string {
	if p := finite(v); p != nil {
		return fmt.Sprintf("%+.3f", *p)
	}
	return "n/a"
}

func reason(u *Unavailable) string {
	if u == nil {
		return "unknown"
	}
	return u.Reason
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

// Markdown renders a standalone correlation ranking.
func (c *CorrelationResult) Markdown() string {
	var b strings.Builder
	b.WriteString("[CORRELATION]\n")
	c.markdown(&b)
	return b.String()
}
