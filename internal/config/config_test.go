package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.MissingStrategy != "zero_fill" || c.OutlierStrategy != "none" || c.IQRK != 1.5 {
		t.Fatalf("unexpected cleaning defaults: %+v", c)
	}
	if c.TopN != 5 || c.AggFunc != "mean" || c.BatchJobs != 4 || c.ServerAddr != ":8080" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if len(c.Windows) != 2 || c.Windows[0] != "night=22-6" {
		t.Fatalf("unexpected windows: %v", c.Windows)
	}
	if len(c.MissingMarkers) == 0 || c.MissingMarkers[0] != "" {
		t.Fatalf("unexpected missing markers: %q", c.MissingMarkers)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "top_n: 3\ntarget: 체지방율\nwindows:\n  - late=0-4\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOURLENS_TOP_N", "9")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.TopN != 9 {
		t.Fatalf("env should win over file, got top_n=%d", c.TopN)
	}
	if c.Target != "체지방율" {
		t.Fatalf("target from file not applied: %q", c.Target)
	}
	if len(c.Windows) != 1 || c.Windows[0] != "late=0-4" {
		t.Fatalf("windows from file not applied: %v", c.Windows)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c := &Global{MissingStrategy: "column_mean_fill", TopN: 7, Windows: []string{"a=1-2"}}
	if err := Save(c, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.MissingStrategy != "column_mean_fill" || got.TopN != 7 || got.Windows[0] != "a=1-2" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSetAndGet(t *testing.T) {
	c := &Global{TopN: 5, Target: "x", Windows: []string{"night=22-6"}}
	if err := c.Set("top_n", "12"); err != nil {
		t.Fatalf("set top_n: %v", err)
	}
	if c.TopN != 12 || c.Target != "x" {
		t.Fatalf("set should only change one key: %+v", c)
	}
	if err := c.Set("windows", "night=22-6; rush=7-9,17-19"); err != nil {
		t.Fatalf("set windows: %v", err)
	}
	if len(c.Windows) != 2 || c.Windows[1] != "rush=7-9,17-19" {
		t.Fatalf("windows: %v", c.Windows)
	}
	if err := c.Set("iqr_k", "3"); err != nil || c.IQRK != 3 {
		t.Fatalf("set iqr_k: %v (%v)", err, c.IQRK)
	}
	if err := c.Set("top_n", "many"); err == nil {
		t.Fatal("expected error for non-numeric top_n")
	}
	if err := c.Set("bogus", "1"); err == nil {
		t.Fatal("expected error for unknown key")
	}

	if v, ok := c.Get("top_n"); !ok || v != "12" {
		t.Fatalf("get top_n: %q %v", v, ok)
	}
	if v, ok := c.Get("windows"); !ok || v != "night=22-6, rush=7-9,17-19" {
		t.Fatalf("get windows: %q", v)
	}
	if _, ok := c.Get("nope"); ok {
		t.Fatal("unknown key should not resolve")
	}
}
