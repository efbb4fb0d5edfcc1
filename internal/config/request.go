package config

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/hourlens/internal/analysis"
	"github.com/KaramelBytes/hourlens/internal/table"
)

// ReadOptions converts the input settings into loader options.
func (c *Global) ReadOptions() (table.ReadOptions, error) {
	opt := table.DefaultReadOptions()
	opt.Encoding = c.Encoding
	d, err := ParseDelimiter(c.Delimiter)
	if err != nil {
		return opt, err
	}
	opt.Delimiter = d

	switch strings.ToLower(strings.TrimSpace(c.Decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot", "":
		opt.DecimalSeparator = '.'
	default:
		return opt, fmt.Errorf("unsupported decimal: %s (use '.'|'comma')", c.Decimal)
	}
	switch strings.ToLower(c.Thousands) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "", "auto":
		opt.ThousandsSeparator = 0
	default:
		return opt, fmt.Errorf("unsupported thousands: %s (use ','|'.'|'space'|auto)", c.Thousands)
	}
	if opt.DecimalSeparator == opt.ThousandsSeparator {
		// comma decimals imply dot grouping unless configured otherwise
		if opt.DecimalSeparator != ',' {
			return opt, fmt.Errorf("decimal and thousands separators must differ")
		}
		opt.ThousandsSeparator = '.'
	}
	if c.MissingMarkers != nil {
		opt.MissingMarkers = c.MissingMarkers
	}
	if c.MaxRows > 0 {
		opt.MaxRows = c.MaxRows
	}
	return opt, nil
}

// ParseDelimiter maps "auto", ",", ";", "tab" or "|" to a rune; 0 means sniff.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\t", "tab":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported delimiter: %s (use auto|,|;|tab|pipe)", s)
}

// Request builds an analysis request template (without a table) from the
// configured policy, windows, ratios and column selections.
func (c *Global) Request() (analysis.Request, error) {
	var req analysis.Request
	missing, err := analysis.ParseMissingStrategy(c.MissingStrategy)
	if err != nil {
		return req, err
	}
	outliers, err := analysis.ParseOutlierStrategy(c.OutlierStrategy)
	if err != nil {
		return req, err
	}
	agg, err := analysis.ParseAggFunc(c.AggFunc)
	if err != nil {
		return req, err
	}
	windows, err := analysis.ParseWindows(c.Windows)
	if err != nil {
		return req, err
	}
	ratios, err := analysis.ParseRatios(c.Ratios)
	if err != nil {
		return req, err
	}
	req = analysis.Request{
		Policy:     analysis.Policy{Missing: missing, Outliers: outliers, IQRFactor: c.IQRK},
		Windows:    windows,
		Ratios:     ratios,
		Target:     strings.TrimSpace(c.Target),
		GroupBy:    strings.TrimSpace(c.GroupBy),
		TimeColumn: strings.TrimSpace(c.TimeColumn),
		Agg:        agg,
		TopN:       c.TopN,
		Vocabulary: c.Vocabulary(),
	}
	return req, req.Policy.Validate()
}

// Vocabulary returns the role keywords, falling back to the built-in lists
// for any that are empty.
func (c *Global) Vocabulary() analysis.Vocabulary {
	v := analysis.DefaultVocabulary()
	if len(c.TimeKeywords) > 0 {
		v.Time = c.TimeKeywords
	}
	if len(c.CategoryKeywords) > 0 {
		v.Category = c.CategoryKeywords
	}
	if len(c.MetricKeywords) > 0 {
		v.Metric = c.MetricKeywords
	}
	if c.HourToken != "" {
		v.HourToken = c.HourToken
	}
	return v
}
