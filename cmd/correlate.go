package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/hourlens/internal/analysis"
	"github.com/KaramelBytes/hourlens/internal/table"
	"github.com/KaramelBytes/hourlens/internal/utils"
)

var (
	corrFlags  analysisFlags
	corrFormat string
)

var correlateCmd = &cobra.Command{
	Use:   "correlate <file>",
	Short: "Rank numeric columns by Pearson correlation with a target column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, opt, err := corrFlags.build(cmd)
		if err != nil {
			return err
		}
		if req.Target == "" {
			return errors.New("a target column is required (--target or config target)")
		}
		format, err := outputFormat(cmd, corrFormat)
		if err != nil {
			return err
		}
		t, err := table.LoadFile(args[0], opt)
		if err != nil {
			return err
		}
		res, err := analysis.Rank(t, req.Target, req.TopN)
		if err != nil {
			return err
		}
		if format == "json" {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), res.Markdown())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(correlateCmd)
	corrFlags.register(correlateCmd.Flags())
	correlateCmd.Flags().StringVarP(&corrFormat, "format", "f", "", "output format: markdown|json (overrides config)")
}
