package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Cleaning
	MissingStrategy string  `mapstructure:"missing_strategy" yaml:"missing_strategy"`
	OutlierStrategy string  `mapstructure:"outlier_strategy" yaml:"outlier_strategy"`
	IQRK            float64 `mapstructure:"iqr_k" yaml:"iqr_k"`

	// Aggregation and windows
	AggFunc    string   `mapstructure:"agg_func" yaml:"agg_func"`
	GroupBy    string   `mapstructure:"group_by" yaml:"group_by"`
	TimeColumn string   `mapstructure:"time_column" yaml:"time_column"`
	Windows    []string `mapstructure:"windows" yaml:"windows"`
	Ratios     []string `mapstructure:"ratios" yaml:"ratios"`

	// Correlation
	Target string `mapstructure:"target" yaml:"target"`
	TopN   int    `mapstructure:"top_n" yaml:"top_n"`

	// Input
	Encoding       string   `mapstructure:"encoding" yaml:"encoding"`
	Delimiter      string   `mapstructure:"delimiter" yaml:"delimiter"`
	Decimal        string   `mapstructure:"decimal" yaml:"decimal"`
	Thousands      string   `mapstructure:"thousands" yaml:"thousands"`
	MissingMarkers []string `mapstructure:"missing_markers" yaml:"missing_markers"`
	MaxRows        int      `mapstructure:"max_rows" yaml:"max_rows"`

	// Role vocabularies
	TimeKeywords     []string `mapstructure:"time_keywords" yaml:"time_keywords"`
	CategoryKeywords []string `mapstructure:"category_keywords" yaml:"category_keywords"`
	MetricKeywords   []string `mapstructure:"metric_keywords" yaml:"metric_keywords"`
	HourToken        string   `mapstructure:"hour_token" yaml:"hour_token"`

	// Output and logging
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string `mapstructure:"log_format" yaml:"log_format"`

	// Server and batch
	ServerAddr  string `mapstructure:"server_addr" yaml:"server_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	BatchJobs   int    `mapstructure:"batch_jobs" yaml:"batch_jobs"`
}

// Keys lists every configuration key in file order.
var Keys = []string{
	"missing_strategy", "outlier_strategy", "iqr_k",
	"agg_func", "group_by", "time_column", "windows", "ratios",
	"target", "top_n",
	"encoding", "delimiter", "decimal", "thousands", "missing_markers", "max_rows",
	"time_keywords", "category_keywords", "metric_keywords", "hour_token",
	"output_format", "log_level", "log_format",
	"server_addr", "max_upload_mb", "batch_jobs",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("missing_strategy", "zero_fill")
	v.SetDefault("outlier_strategy", "none")
	v.SetDefault("iqr_k", 1.5)
	v.SetDefault("agg_func", "mean")
	v.SetDefault("group_by", "")
	v.SetDefault("time_column", "")
	v.SetDefault("windows", []string{"night=22-6", "rush=7-9,17-19"})
	v.SetDefault("ratios", []string{"night/rush"})
	v.SetDefault("target", "")
	v.SetDefault("top_n", 5)
	v.SetDefault("encoding", "utf-8")
	v.SetDefault("delimiter", "auto")
	v.SetDefault("decimal", ".")
	v.SetDefault("thousands", ",")
	v.SetDefault("missing_markers", []string{"", "NA", "N/A", "NaN", "nan", "null", "-"})
	v.SetDefault("max_rows", 0)
	v.SetDefault("time_keywords", []string{"시간", "time", "hour"})
	v.SetDefault("category_keywords", []string{"호선", "line", "category"})
	v.SetDefault("metric_keywords", []string{"승차", "하차", "up", "down"})
	v.SetDefault("hour_token", "시-")
	v.SetDefault("output_format", "markdown")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("batch_jobs", 4)
}

// DefaultPath returns ~/.hourlens/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".hourlens", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.hourlens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded first and never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.SetEnvPrefix("HOURLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".hourlens"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Set assigns a single key from its string form, as used by `config set`.
// List keys take comma-separated values, except windows which use ';'
// between entries because a window itself may contain commas.
func (c *Global) Set(key, value string) error {
	v := viper.New()
	switch key {
	case "windows":
		v.Set(key, splitList(value, ";"))
	case "ratios", "missing_markers", "time_keywords", "category_keywords", "metric_keywords":
		v.Set(key, splitList(value, ","))
	default:
		known := false
		for _, k := range Keys {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown config key: %s", key)
		}
		v.Set(key, value)
	}
	// Round-trip through viper so string values are decoded into the field type.
	cur := map[string]any{}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := yaml.Unmarshal(b, &cur); err != nil {
		return fmt.Errorf("unmarshal yaml: %w", err)
	}
	for k, val := range cur {
		if k != key {
			v.SetDefault(k, val)
		}
	}
	var next Global
	if err := v.Unmarshal(&next); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*c = next
	return nil
}

// Get returns the string form of a key, as used by `config show`.
func (c *Global) Get(key string) (string, bool) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", false
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return "", false
	}
	val, ok := m[key]
	if !ok {
		return "", false
	}
	switch x := val.(type) {
	case []any:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ", "), true
	case nil:
		return "", true
	default:
		return fmt.Sprint(x), true
	}
}

func splitList(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
