package cmd

import (
	"fmt"

	"github.com/mabhi256/xmx/internal/config"
	"github.com/mabhi256/xmx/internal/demo"
	"github.com/mabhi256/xmx/utils"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Work with agent configuration files",
}

var configValidateCmd = &cobra.Command{
	Use:               "validate [config-file]",
	Short:             "Check every pattern in a configuration file",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension(".json"),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(cmd, nil)
		if err != nil {
			return err
		}
		defer log.Close()

		cfg, err := config.Load(args[0], log.Logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(cfg.Problems) == 0 {
			fmt.Fprintf(out, "✅ %s is valid (agent %s)\n", args[0], enabledString(cfg.Enabled()))
			return nil
		}
		fmt.Fprintf(out, "❌ %s: %d sections disabled\n", args[0], len(cfg.Problems))
		for _, p := range cfg.Problems {
			fmt.Fprintf(out, "  • %v\n", p)
		}
		return fmt.Errorf("%d invalid patterns", len(cfg.Problems))
	},
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print the configuration used by the built-in shop demo",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), demo.DefaultConfig)
	},
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configExampleCmd)
}
