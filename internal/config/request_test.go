package config

import (
	"testing"

	"github.com/KaramelBytes/hourlens/internal/analysis"
)

func defaults(t *testing.T) *Global {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}

func TestRequestFromDefaults(t *testing.T) {
	c := defaults(t)
	req, err := c.Request()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Policy.Missing != analysis.ZeroFill || req.Policy.Outliers != analysis.OutlierNone {
		t.Fatalf("policy: %+v", req.Policy)
	}
	if len(req.Windows) != 2 || req.Windows[1].Name != "rush" {
		t.Fatalf("windows: %+v", req.Windows)
	}
	if len(req.Ratios) != 1 || req.Ratios[0].Numerator != "night" {
		t.Fatalf("ratios: %+v", req.Ratios)
	}
	if req.TopN != 5 || req.Agg != analysis.AggMean {
		t.Fatalf("request: %+v", req)
	}
	if req.Vocabulary.HourToken != "시-" {
		t.Fatalf("vocabulary: %+v", req.Vocabulary)
	}
}

func TestRequestRejectsBadValues(t *testing.T) {
	for _, mut := range []func(*Global){
		func(c *Global) { c.MissingStrategy = "drop" },
		func(c *Global) { c.OutlierStrategy = "z" },
		func(c *Global) { c.AggFunc = "median" },
		func(c *Global) { c.Windows = []string{"night"} },
		func(c *Global) { c.Ratios = []string{"night-rush"} },
		func(c *Global) { c.IQRK = -2 },
	} {
		c := &Global{}
		mut(c)
		if _, err := c.Request(); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}

func TestReadOptions(t *testing.T) {
	c := &Global{Encoding: "cp949", Delimiter: "tab", Decimal: "comma", Thousands: ",", MaxRows: 10}
	opt, err := c.ReadOptions()
	if err != nil {
		t.Fatalf("read options: %v", err)
	}
	if opt.Delimiter != '\t' || opt.DecimalSeparator != ',' || opt.ThousandsSeparator != '.' || opt.MaxRows != 10 {
		t.Fatalf("unexpected options: %+v", opt)
	}
	if opt.Encoding != "cp949" {
		t.Fatalf("encoding: %q", opt.Encoding)
	}

	for _, bad := range []*Global{
		{Delimiter: "#"},
		{Decimal: "x"},
		{Thousands: "_"},
		{Decimal: ".", Thousands: "."},
	} {
		if _, err := bad.ReadOptions(); err == nil {
			t.Fatalf("expected error for %+v", bad)
		}
	}
}
