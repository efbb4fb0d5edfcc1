package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/hourlens/internal/analysis"
	"github.com/KaramelBytes/hourlens/internal/table"
	"github.com/KaramelBytes/hourlens/internal/utils"
)

var (
	anaFlags      analysisFlags
	anaOutputPath string
	anaFormat     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Profile a CSV/TSV/XLSX table by hour of day and rank correlations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, opt, err := anaFlags.build(cmd)
		if err != nil {
			return err
		}
		format, err := outputFormat(cmd, anaFormat)
		if err != nil {
			return err
		}
		rep, err := analyzeFile(args[0], req, opt)
		if err != nil {
			return err
		}
		out, err := render(rep, format)
		if err != nil {
			return err
		}
		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaFlags.register(analyzeCmd.Flags())
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report")
	analyzeCmd.Flags().StringVarP(&anaFormat, "format", "f", "", "report format: markdown|json (overrides config)")
}

func analyzeFile(path string, req analysis.Request, opt table.ReadOptions) (*analysis.Report, error) {
	t, err := table.LoadFile(path, opt)
	if err != nil {
		return nil, err
	}
	req.Table = t
	return analysis.NewEngine(log).Analyze(req)
}

// outputFormat resolves --format against the configured output_format.
func outputFormat(cmd *cobra.Command, flag string) (string, error) {
	f := config().OutputFormat
	if cmd.Flags().Changed("format") {
		f = flag
	}
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "", "markdown", "md":
		return "markdown", nil
	case "json":
		return "json", nil
	}
	return "", fmt.Errorf("unsupported format: %s (use markdown|json)", f)
}

func render(rep *analysis.Report, format string) ([]byte, error) {
	if format == "json" {
		return utils.PrettyJSON(rep)
	}
	return []byte(rep.Markdown()), nil
}

func extFor(format string) string {
	if format == "json" {
		return ".json"
	}
	return ".md"
}
