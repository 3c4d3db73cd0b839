// Cardinality validator for span, event, and error counts
package verdict

import (
	"fmt"
	"slices"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
)

// ValidateCounts checks total and per-name cardinality bounds. An eq bound
// takes precedence over gte/lte, which are then ignored — documented
// behaviour of the configuration surface, preserved as-is. A bound with no
// fields set imposes no constraint.
func ValidateCounts(spans []trace.Span, exp *expect.CountExpectation) []Violation {
	var violations []Violation

	if exp.SpansTotal != nil {
		violations = append(violations, checkBound(exp.SpansTotal, len(spans), "total span count", "")...)
	}

	if exp.EventsTotal != nil {
		total := 0
		for i := range spans {
			total += len(spans[i].Events)
		}
		violations = append(violations, checkBound(exp.EventsTotal, total, "total event count", "")...)
	}

	if exp.ErrorsTotal != nil {
		errors := 0
		for i := range spans {
			if spans[i].Status == trace.StatusError {
				errors++
			}
		}
		violations = append(violations, checkBound(exp.ErrorsTotal, errors, "total error count", "")...)
	}

	if len(exp.ByName) > 0 {
		byName := trace.IndexByName(spans)
		names := make([]string, 0, len(exp.ByName))
		for name := range exp.ByName {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			bound := exp.ByName[name]
			context := fmt.Sprintf("count for span name %q", name)
			violations = append(violations, checkBound(&bound, len(byName[name]), context, name)...)
		}
	}

	return violations
}

// checkBound evaluates a single bound. eq, when present, is the only check.
func checkBound(b *expect.CountBound, actual int, context, spanName string) []Violation {
	if b.Unconstrained() {
		return nil
	}

	violation := func(expected string) []Violation {
		return []Violation{{
			Section:  SectionCount,
			Message:  fmt.Sprintf("%s: expected %s, found %d", context, expected, actual),
			SpanName: spanName,
			Expected: expected,
			Actual:   fmt.Sprintf("%d", actual),
		}}
	}

	if b.Eq != nil {
		if actual != *b.Eq {
			return violation(fmt.Sprintf("exactly %d", *b.Eq))
		}
		return nil
	}

	var violations []Violation
	if b.Gte != nil && actual < *b.Gte {
		violations = append(violations, violation(fmt.Sprintf("at least %d", *b.Gte))...)
	}
	if b.Lte != nil && actual > *b.Lte {
		violations = append(violations, violation(fmt.Sprintf("at most %d", *b.Lte))...)
	}
	return violations
}
