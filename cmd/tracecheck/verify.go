package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
	"github.com/andrewh/tracecheck/pkg/verdict"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func verifyCmd() *cobra.Command {
	var (
		expectPath string
		format     string
		digestFile string
		jsonOut    bool
		parallel   bool
	)

	cmd := &cobra.Command{
		Use:   "verify [trace-file]",
		Short: "Validate a captured trace against declarative expectations",
		Long: "Validate a captured trace against declarative expectations.\n\n" +
			"Reads trace spans (records, array, OTLP, or stdouttrace JSON) from a\n" +
			"file or stdin and checks them against the expectation file. Exits\n" +
			"non-zero when any expectation is violated.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if expectPath == "" {
				return fmt.Errorf("missing expectation file\n\nUsage: tracecheck verify --expect expectations.toml trace.json")
			}

			cfg, err := expect.Load(expectPath)
			if err != nil {
				return err
			}
			tr, err := loadTrace(cmd, args, format)
			if err != nil {
				return err
			}

			var report verdict.Report
			if parallel {
				report = verdict.RunParallel(tr, cfg)
			} else {
				report = verdict.Run(tr, cfg)
			}

			digest, err := trace.Digest(tr, cfg.VolatileAttrs)
			if err != nil {
				return fmt.Errorf("computing digest: %w", err)
			}
			if digestFile != "" {
				if err := os.WriteFile(digestFile, []byte(digest+"\n"), 0o644); err != nil { //nolint:gosec // digest file is not sensitive
					return fmt.Errorf("writing digest file: %w", err)
				}
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				out := struct {
					verdict.Report
					Digest string `json:"trace_digest"`
				}{report, digest}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
			} else {
				if !report.Pass {
					renderViolations(cmd, report.Violations)
				}
				spanLabel := "spans"
				if tr.Len() == 1 {
					spanLabel = "span"
				}
				status := "PASS"
				if !report.Pass {
					status = "FAIL"
				}
				_, _ = fmt.Fprintf(w, "%s: %d %s checked, %d violations\ntrace digest: %s\n",
					status, tr.Len(), spanLabel, len(report.Violations), digest)
			}

			if !report.Pass {
				violationLabel := "violations"
				if len(report.Violations) == 1 {
					violationLabel = "violation"
				}
				return fmt.Errorf("%d %s found", len(report.Violations), violationLabel)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&expectPath, "expect", "", "expectation file (TOML or YAML)")
	cmd.Flags().StringVar(&format, "format", "auto", "input format: auto, records, array, otlp, stdouttrace")
	cmd.Flags().StringVar(&digestFile, "digest-file", "", "write the trace digest to this file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the report as JSON")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "run validator sections concurrently")

	return cmd
}

func renderViolations(cmd *cobra.Command, violations []verdict.Violation) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Section", "Span", "Message"})
	for _, v := range violations {
		t.AppendRow(table.Row{v.Section, v.SpanName, v.Message})
	}
	t.Render()
}
