package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/hourlens/internal/utils"
)

var (
	abFlags     analysisFlags
	abOutputDir string
	abFormat    string
	abJobs      int
	abQuiet     bool
	abKeepGoing bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX files concurrently and write one report per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		req, opt, err := abFlags.build(cmd)
		if err != nil {
			return err
		}
		format, err := outputFormat(cmd, abFormat)
		if err != nil {
			return err
		}
		jobs := config().BatchJobs
		if cmd.Flags().Changed("jobs") {
			jobs = abJobs
		}
		if jobs <= 0 {
			jobs = 1
		}

		names := utils.NewNameAllocator(abOutputDir)
		out := cmd.OutOrStdout()
		var (
			mu     sync.Mutex
			failed int
		)
		say := func(msg string, a ...any) {
			if abQuiet {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, msg, a...)
		}

		var g errgroup.Group
		g.SetLimit(jobs)
		total := len(files)
		for i, path := range files {
			g.Go(func() error {
				say("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
				rep, err := analyzeFile(path, req, opt)
				if err != nil {
					if !abKeepGoing {
						return fmt.Errorf("%s: %w", path, err)
					}
					log.Warn("batch item failed", zap.String("file", path), zap.Error(err))
					mu.Lock()
					failed++
					mu.Unlock()
					say("✗ %s: %v\n", filepath.Base(path), err)
					return nil
				}
				b, err := render(rep, format)
				if err != nil {
					return err
				}
				dest, fresh := names.Next(utils.SafeBase(path), ".report"+extFor(format))
				if !fresh {
					say("⚠ Detected existing report, writing to %s to avoid overwrite.\n", filepath.Base(dest))
				}
				if err := utils.SafeWriteFile(dest, b); err != nil {
					return fmt.Errorf("write %s: %w", dest, err)
				}
				say("✓ Wrote %s\n", dest)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, total)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abFlags.register(analyzeBatchCmd.Flags())
	analyzeBatchCmd.Flags().StringVarP(&abOutputDir, "output-dir", "o", ".", "directory for the per-file reports")
	analyzeBatchCmd.Flags().StringVarP(&abFormat, "format", "f", "", "report format: markdown|json (overrides config)")
	analyzeBatchCmd.Flags().IntVarP(&abJobs, "jobs", "j", 4, "files analyzed concurrently (overrides config batch_jobs)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
	analyzeBatchCmd.Flags().BoolVar(&abKeepGoing, "keep-going", false, "continue past files that fail to load")
}

// expandInputs expands glob patterns, keeps literal paths that exist, drops
// duplicates and sorts the result.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}
