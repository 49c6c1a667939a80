// Command edureg serves the registration wizards and dashboard, and offers
// terminal access to the same forms and their submissions.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hsche/edureg/internal/config"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "edureg",
		Short: "Higher-education registration wizards and analytics dashboard",
		Long: `edureg serves multi-step registration forms for universities, faculties,
departments and programs, plus an analytics dashboard over the institution
dataset. Submissions go to the configured sinks: the log, an embedded NATS
JetStream stream, or a local SQLite archive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./edureg.yml when present)")

	root.AddCommand(
		newServeCmd(),
		newFormsCmd(),
		newSubmissionsCmd(),
		newFillCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file, environment and any flags of cmd that
// match config keys.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printf(cmd.OutOrStdout(), "edureg %s\n", version)
		},
	}
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
