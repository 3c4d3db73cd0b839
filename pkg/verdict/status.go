// Status code validator with glob support for per-name rules
package verdict

import (
	"fmt"
	"path"
	"slices"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
)

// ValidateStatus checks the all rule against every span and each by_name glob
// against the spans it matches. A by_name pattern matching zero spans is a
// violation: a rule that constrains nothing proves nothing.
func ValidateStatus(spans []trace.Span, exp *expect.StatusExpectation) []Violation {
	var violations []Violation

	if exp.All != "" {
		want, _ := trace.ParseStatus(exp.All) // already validated at config load
		for i := range spans {
			s := &spans[i]
			if s.Status != want {
				violations = append(violations, Violation{
					Section:  SectionStatus,
					Message:  fmt.Sprintf("span %q (id %s) has status %q, expected %q", s.Name, s.SpanID, s.Status, want),
					SpanName: s.Name,
					SpanID:   s.SpanID,
					Expected: string(want),
					Actual:   string(s.Status),
				})
			}
		}
	}

	if len(exp.ByName) > 0 {
		patterns := make([]string, 0, len(exp.ByName))
		for pattern := range exp.ByName {
			patterns = append(patterns, pattern)
		}
		slices.Sort(patterns)

		for _, pattern := range patterns {
			want, _ := trace.ParseStatus(exp.ByName[pattern])
			matched := false
			for i := range spans {
				s := &spans[i]
				if ok, _ := path.Match(pattern, s.Name); !ok {
					continue
				}
				matched = true
				if s.Status != want {
					violations = append(violations, Violation{
						Section:  SectionStatus,
						Message:  fmt.Sprintf("span %q (id %s) matching %q has status %q, expected %q", s.Name, s.SpanID, pattern, s.Status, want),
						SpanName: s.Name,
						SpanID:   s.SpanID,
						Expected: string(want),
						Actual:   string(s.Status),
					})
				}
			}
			if !matched {
				violations = append(violations, Violation{
					Section:  SectionStatus,
					Message:  fmt.Sprintf("status pattern %q matched no spans", pattern),
					Expected: string(want),
				})
			}
		}
	}

	return violations
}
