package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	output     string
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "insights-cli",
		Short:        "Ask customer analytics questions from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case formatJSON, formatYAML:
				return nil
			default:
				return fmt.Errorf("unsupported output format %q (want json or yaml)", opts.output)
			}
		},
	}

	root.PersistentFlags().StringVarP(&opts.output, "output", "o", formatJSON, "output format: json or yaml")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (defaults to configs/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newAskCmd(opts),
		newClassifyCmd(opts),
		newFallbackCmd(opts),
		newRegistryCmd(opts),
	)
	root.AddCommand(newReportCmds(opts)...)
	return root
}
