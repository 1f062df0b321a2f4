// Command loanctl is the terminal front end: an interactive chat against the
// conversation core, the daily metrics report and its rollup.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"loan-assistant/internal/common/config"
)

var configPath string

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "loanctl",
		Short:         "Loan pre-qualification assistant tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (default ./configs/config.yaml)")

	root.AddCommand(newChatCommand())
	root.AddCommand(newReportCommand())
	root.AddCommand(newRollupCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
