package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/hourlens/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Hourlens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := config()
		for _, k := range cfgpkg.Keys {
			v, _ := c.Get(k)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, v)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk.

List keys take comma-separated values; windows are separated by ';'
because a single window may span several ranges:

  hourlens config set windows "night=22-6;rush=7-9,17-19"
  hourlens config set ratios night/rush`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := c.Set(key, val); err != nil {
			return err
		}
		// reject values the engine would refuse later
		if _, err := c.Request(); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if _, err := c.ReadOptions(); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := cfgFile
		if p == "" {
			var err error
			if p, err = cfgpkg.DefaultPath(); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}
