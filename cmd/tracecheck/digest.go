package main

import (
	"fmt"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
	"github.com/spf13/cobra"
)

func digestCmd() *cobra.Command {
	var (
		format     string
		expectPath string
		volatile   []string
	)

	cmd := &cobra.Command{
		Use:   "digest [trace-file]",
		Short: "Print the deterministic digest of a captured trace",
		Long: "Print the deterministic digest of a captured trace.\n\n" +
			"The digest is the SHA-256 of the canonical JSON form of the\n" +
			"normalised trace. Two captures of the same logical execution yield\n" +
			"the same digest once volatile attributes are stripped.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if expectPath != "" {
				cfg, err := expect.Load(expectPath)
				if err != nil {
					return err
				}
				volatile = append(volatile, cfg.VolatileAttrs...)
			}

			tr, err := loadTrace(cmd, args, format)
			if err != nil {
				return err
			}

			digest, err := trace.Digest(tr, volatile)
			if err != nil {
				return fmt.Errorf("computing digest: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), digest)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "auto", "input format: auto, records, array, otlp, stdouttrace")
	cmd.Flags().StringVar(&expectPath, "expect", "", "expectation file supplying volatile_attrs")
	cmd.Flags().StringSliceVar(&volatile, "volatile", nil, "attribute keys stripped before digesting")

	return cmd
}
