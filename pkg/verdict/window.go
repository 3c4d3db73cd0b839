// Temporal containment validator
// Every contained span must fall inside the outer span's time window
package verdict

import (
	"fmt"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
)

// ValidateWindows checks that for each (outer, contains) pair, every span
// named in contains satisfies outer.start <= child.start and child.end <=
// outer.end for at least one outer instance. Boundary equality counts as
// contained. A span without timestamps cannot prove containment and is a
// violation.
func ValidateWindows(spans []trace.Span, exps []expect.WindowExpectation) []Violation {
	var violations []Violation
	byName := trace.IndexByName(spans)

	for _, exp := range exps {
		outers := byName[exp.Outer]
		if len(outers) == 0 {
			violations = append(violations, Violation{
				Section:  SectionWindow,
				Message:  fmt.Sprintf("window outer span %q not found in trace", exp.Outer),
				SpanName: exp.Outer,
			})
			continue
		}

		// Outer instances without both timestamps cannot contain anything.
		type window struct{ start, end uint64 }
		var windows []window
		for _, i := range outers {
			s := &spans[i]
			if s.StartTimeUnixNano != nil && s.EndTimeUnixNano != nil {
				windows = append(windows, window{*s.StartTimeUnixNano, *s.EndTimeUnixNano})
			}
		}
		if len(windows) == 0 {
			violations = append(violations, Violation{
				Section:  SectionWindow,
				Message:  fmt.Sprintf("window outer span %q has no instance with both timestamps, cannot prove containment", exp.Outer),
				SpanName: exp.Outer,
			})
			continue
		}

		for _, childName := range exp.Contains {
			children := byName[childName]
			if len(children) == 0 {
				violations = append(violations, Violation{
					Section:  SectionWindow,
					Message:  fmt.Sprintf("window child span %q not found in trace", childName),
					SpanName: childName,
					Expected: exp.Outer,
				})
				continue
			}

			for _, ci := range children {
				child := &spans[ci]
				if child.StartTimeUnixNano == nil || child.EndTimeUnixNano == nil {
					violations = append(violations, Violation{
						Section:  SectionWindow,
						Message:  fmt.Sprintf("window child span %q (id %s) is missing timestamps, cannot prove containment in %q", childName, child.SpanID, exp.Outer),
						SpanName: childName,
						SpanID:   child.SpanID,
					})
					continue
				}

				contained := false
				for _, w := range windows {
					if w.start <= *child.StartTimeUnixNano && *child.EndTimeUnixNano <= w.end {
						contained = true
						break
					}
				}
				if !contained {
					violations = append(violations, Violation{
						Section:  SectionWindow,
						Message: fmt.Sprintf("span %q (id %s) is not contained in the window of %q (child %d..%d)",
							childName, child.SpanID, exp.Outer, *child.StartTimeUnixNano, *child.EndTimeUnixNano),
						SpanName: childName,
						SpanID:   child.SpanID,
						Expected: exp.Outer,
					})
				}
			}
		}
	}

	return violations
}
