// Orchestrator running every configured validator over a normalised trace
package verdict

import (
	"sync"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
)

// Run executes every validator whose section is present in the configuration,
// in the fixed order span, graph, count, window, order, status, hermeticity.
// Validators never short-circuit: a failure in one section does not suppress
// findings in later sections. Sections absent from the configuration are
// skipped entirely rather than reported as passing.
func Run(t *trace.Trace, cfg *expect.Config) Report {
	normalised := trace.Normalize(t)
	spans := normalised.Spans()

	var violations []Violation
	for _, section := range sectionOrder {
		violations = append(violations, runSection(spans, cfg, section)...)
	}
	return newReport(violations)
}

// RunParallel runs each configured section in its own goroutine and merges the
// results in the fixed section order. The report is byte-identical to the one
// Run produces for the same inputs.
func RunParallel(t *trace.Trace, cfg *expect.Config) Report {
	normalised := trace.Normalize(t)
	spans := normalised.Spans()

	results := make([][]Violation, len(sectionOrder))
	var wg sync.WaitGroup
	for i, section := range sectionOrder {
		i, section := i, section
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runSection(spans, cfg, section)
		}()
	}
	wg.Wait()

	var violations []Violation
	for _, vs := range results {
		violations = append(violations, vs...)
	}
	return newReport(violations)
}

// runSection dispatches one validator section, or returns nothing when the
// section is absent from the configuration.
func runSection(spans []trace.Span, cfg *expect.Config, section Section) []Violation {
	switch section {
	case SectionSpan:
		if len(cfg.Span) > 0 {
			return ValidateSpans(spans, cfg.Span)
		}
	case SectionGraph:
		if cfg.Graph != nil {
			return ValidateGraph(spans, cfg.Graph)
		}
	case SectionCount:
		if cfg.Counts != nil {
			return ValidateCounts(spans, cfg.Counts)
		}
	case SectionWindow:
		if len(cfg.Window) > 0 {
			return ValidateWindows(spans, cfg.Window)
		}
	case SectionOrder:
		if cfg.Order != nil {
			return ValidateOrder(spans, cfg.Order)
		}
	case SectionStatus:
		if cfg.Status != nil {
			return ValidateStatus(spans, cfg.Status)
		}
	case SectionHermeticity:
		if cfg.Hermeticity != nil {
			return ValidateHermeticity(spans, cfg.Hermeticity)
		}
	}
	return nil
}
