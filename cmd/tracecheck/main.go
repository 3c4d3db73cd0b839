// Trace-based test verdict engine
// Validates captured OpenTelemetry traces against declarative expectations
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/andrewh/tracecheck/pkg/trace"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tracecheck",
		Short:        "Trace-based test verdict engine",
		SilenceUsage: true,
	}

	root.AddCommand(verifyCmd())
	root.AddCommand(digestCmd())
	root.AddCommand(summaryCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tracecheck %s (commit: %s, built: %s)\n", version, commit, buildTime)
		},
	}
}

// loadTrace reads spans from the given file, or stdin when args is empty.
func loadTrace(cmd *cobra.Command, args []string, format string) (*trace.Trace, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0]) //nolint:gosec // user-supplied file path is expected
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close() //nolint:errcheck // best-effort close on read-only file
		r = f
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	return trace.Parse(r, trace.Options{
		Format: trace.Format(format),
		Logger: logger,
	})
}
