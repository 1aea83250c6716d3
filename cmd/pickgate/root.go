package main

import (
	"fmt"
	"os"

	"github.com/Alias1177/PickGate/internal/logger"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootFlags struct {
	logLevel string
	pretty   bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:   "pickgate",
		Short: "Decide PICK, NO_BET or HARD_STOP for model predictions",
		Long: "pickgate runs ML predictions through the data quality fallback chain and the\n" +
			"confidence, edge, drift and hard-stop gates, and validates policy profiles\n" +
			"against the platform hard-stop boundaries.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := flags.logLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			logger.Setup(level, flags.pretty, cmd.ErrOrStderr())
		},
	}
	root.Version = version

	pf := root.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (defaults to LOG_LEVEL or info)")
	pf.BoolVar(&flags.pretty, "pretty", false, "Human readable console logs")

	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newValidateProfileCmd())
	root.AddCommand(newSanitizeProfileCmd())
	root.AddCommand(newServeCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
