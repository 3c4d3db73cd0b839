package main

import (
	"fmt"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <expectations.toml>",
		Short: "Parse and validate an expectation file",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("missing expectation file\n\nUsage: tracecheck validate <expectations.toml>")
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := expect.Load(args[0])
			if err != nil {
				return err
			}
			sections := cfg.Sections()
			spanLabel := "expectations"
			if len(cfg.Span) == 1 {
				spanLabel = "expectation"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid: %d span %s, sections: %s\n\n"+
				"To verify a trace:\n"+
				"  tracecheck verify --expect %s trace.json\n",
				len(cfg.Span), spanLabel, sections, args[0])
			return nil
		},
	}

	return cmd
}
