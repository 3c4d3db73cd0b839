package main

import (
	"fmt"
	"slices"

	"github.com/andrewh/tracecheck/pkg/trace"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func summaryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "summary [trace-file]",
		Short: "Print per-name span statistics for a captured trace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := loadTrace(cmd, args, format)
			if err != nil {
				return err
			}
			renderSummary(cmd, tr)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "auto", "input format: auto, records, array, otlp, stdouttrace")

	return cmd
}

type nameStats struct {
	count    int
	errors   int
	events   int
	durCount int
	durMin   float64
	durMax   float64
	durSum   float64
}

func renderSummary(cmd *cobra.Command, tr *trace.Trace) {
	spans := tr.Spans()
	stats := make(map[string]*nameStats)
	for i := range spans {
		s := &spans[i]
		st := stats[s.Name]
		if st == nil {
			st = &nameStats{}
			stats[s.Name] = st
		}
		st.count++
		st.events += len(s.Events)
		if s.Status == trace.StatusError {
			st.errors++
		}
		if ms, ok := s.DurationMillis(); ok {
			if st.durCount == 0 || ms < st.durMin {
				st.durMin = ms
			}
			if ms > st.durMax {
				st.durMax = ms
			}
			st.durSum += ms
			st.durCount++
		}
	}

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	slices.Sort(names)

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Span", "Count", "Errors", "Events", "Min ms", "Avg ms", "Max ms"})
	for _, name := range names {
		st := stats[name]
		minCol, avgCol, maxCol := "-", "-", "-"
		if st.durCount > 0 {
			minCol = fmt.Sprintf("%.2f", st.durMin)
			avgCol = fmt.Sprintf("%.2f", st.durSum/float64(st.durCount))
			maxCol = fmt.Sprintf("%.2f", st.durMax)
		}
		t.AppendRow(table.Row{name, st.count, st.errors, st.events, minCol, avgCol, maxCol})
	}
	t.AppendFooter(table.Row{"total", len(spans), "", "", "", "", ""})
	t.Render()
}
