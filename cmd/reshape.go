package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/hourlens/internal/analysis"
	"github.com/KaramelBytes/hourlens/internal/table"
	"github.com/KaramelBytes/hourlens/internal/utils"
)

var (
	rsFlags      analysisFlags
	rsOutputPath string
)

var reshapeCmd = &cobra.Command{
	Use:   "reshape <file>",
	Short: "Convert a wide table with one column per hour into long format (CSV)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, opt, err := rsFlags.build(cmd)
		if err != nil {
			return err
		}
		t, err := table.LoadFile(args[0], opt)
		if err != nil {
			return err
		}
		c := analysis.Classify(t, analysis.ClassifyOptions{Vocabulary: req.Vocabulary})
		long, st, err := analysis.Reshape(t, c)
		if err != nil {
			return err
		}
		for _, d := range st.Dropped {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: dropped hour column %q: %s\n", d.Column, d.Reason)
		}

		var buf bytes.Buffer
		if err := table.WriteCSV(&buf, long); err != nil {
			return err
		}
		if rsOutputPath == "" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if err := utils.SafeWriteFile(rsOutputPath, buf.Bytes()); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Reshaped %d entities × %d hour columns into %d rows: %s\n",
			st.Entities, st.HourColumns, st.Rows, rsOutputPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reshapeCmd)
	rsFlags.register(reshapeCmd.Flags())
	reshapeCmd.Flags().StringVarP(&rsOutputPath, "output", "o", "", "path to write the long CSV (default stdout)")
}
