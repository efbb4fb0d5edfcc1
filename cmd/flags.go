package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/hourlens/internal/analysis"
	cfgpkg "github.com/KaramelBytes/hourlens/internal/config"
	"github.com/KaramelBytes/hourlens/internal/table"
)

// analysisFlags are the input and analysis flags shared by analyze,
// analyze-batch, correlate, reshape and serve. A flag only overrides the
// config value when it was set on the command line.
type analysisFlags struct {
	target     string
	groupBy    string
	timeColumn string
	metrics    []string
	topN       int
	missing    string
	outliers   string
	iqrK       float64
	agg        string
	windows    []string
	ratios     []string

	encoding  string
	delimiter string
	decimal   string
	thousands string
	maxRows   int
	sheetName string
	sheetIdx  int
}

func (f *analysisFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.target, "target", "", "target metric column for correlation ranking")
	fs.StringVar(&f.groupBy, "group-by", "", "category column to partition by (overrides inference)")
	fs.StringVar(&f.timeColumn, "time-column", "", "time column (overrides inference)")
	fs.StringSliceVar(&f.metrics, "metric", nil, "metric column(s) to aggregate (repeatable)")
	fs.IntVar(&f.topN, "top-n", 5, "number of correlated attributes to list (0 = all)")
	fs.StringVar(&f.missing, "missing", "", "missing-value strategy: zero_fill|column_mean_fill")
	fs.StringVar(&f.outliers, "outliers", "", "outlier strategy: none|iqr_clip")
	fs.Float64Var(&f.iqrK, "iqr-k", 1.5, "IQR fence multiplier for iqr_clip")
	fs.StringVar(&f.agg, "agg", "", "bucket aggregation: mean|sum")
	fs.StringArrayVar(&f.windows, "window", nil, "time window name=from-to[,from-to] (repeatable, e.g. night=22-6)")
	fs.StringArrayVar(&f.ratios, "ratio", nil, "window ratio numerator/denominator (repeatable, e.g. night/rush)")

	fs.StringVar(&f.encoding, "encoding", "", "text encoding: utf-8|cp949|euc-kr")
	fs.StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: auto|,|;|tab|pipe")
	fs.StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma'")
	fs.StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space'|auto")
	fs.IntVar(&f.maxRows, "max-rows", 0, "maximum rows to read (0 = unlimited)")
	fs.StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	fs.IntVar(&f.sheetIdx, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

// merged returns a copy of c with every explicitly set flag applied.
func (f *analysisFlags) merged(cmd *cobra.Command, c *cfgpkg.Global) *cfgpkg.Global {
	out := *c
	fl := cmd.Flags()
	if fl.Changed("target") {
		out.Target = f.target
	}
	if fl.Changed("group-by") {
		out.GroupBy = f.groupBy
	}
	if fl.Changed("time-column") {
		out.TimeColumn = f.timeColumn
	}
	if fl.Changed("top-n") {
		out.TopN = f.topN
	}
	if fl.Changed("missing") {
		out.MissingStrategy = f.missing
	}
	if fl.Changed("outliers") {
		out.OutlierStrategy = f.outliers
	}
	if fl.Changed("iqr-k") {
		out.IQRK = f.iqrK
	}
	if fl.Changed("agg") {
		out.AggFunc = f.agg
	}
	if fl.Changed("window") {
		out.Windows = f.windows
	}
	if fl.Changed("ratio") {
		out.Ratios = f.ratios
	}
	if fl.Changed("encoding") {
		out.Encoding = f.encoding
	}
	if fl.Changed("delimiter") {
		out.Delimiter = f.delimiter
	}
	if fl.Changed("decimal") {
		out.Decimal = f.decimal
	}
	if fl.Changed("thousands") {
		out.Thousands = f.thousands
	}
	if fl.Changed("max-rows") {
		out.MaxRows = f.maxRows
	}
	return &out
}

// build resolves the request template and loader options for a command.
func (f *analysisFlags) build(cmd *cobra.Command) (analysis.Request, table.ReadOptions, error) {
	c := f.merged(cmd, config())
	req, err := c.Request()
	if err != nil {
		return req, table.ReadOptions{}, err
	}
	if cmd.Flags().Changed("metric") {
		req.Metrics = f.metrics
	}
	opt, err := c.ReadOptions()
	if err != nil {
		return req, opt, err
	}
	opt.SheetName = f.sheetName
	opt.SheetIndex = f.sheetIdx
	return req, opt, nil
}
