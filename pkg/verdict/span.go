// Per-span expectation validator
// Existential over repeated names: one matching instance satisfies the check
package verdict

import (
	"fmt"
	"slices"
	"strings"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
)

// spanConstraint is one sub-check of a span expectation, evaluated per
// candidate instance.
type spanConstraint struct {
	describe func() Violation
	matches  func(s *trace.Span) bool
}

// ValidateSpans checks each configured span expectation against the trace.
// When multiple spans share the configured name, the expectation is satisfied
// if any one instance meets every sub-constraint; this avoids false failures
// on looped or distributed spans.
func ValidateSpans(spans []trace.Span, exps []expect.SpanExpectation) []Violation {
	var violations []Violation
	byName := trace.IndexByName(spans)
	byID := trace.IndexByID(spans)

	for _, exp := range exps {
		candidates := byName[exp.Name]
		if len(candidates) == 0 {
			violations = append(violations, Violation{
				Section:  SectionSpan,
				Message:  fmt.Sprintf("expected span %q does not exist", exp.Name),
				SpanName: exp.Name,
			})
			continue
		}

		constraints := buildConstraints(spans, byID, exp)

		satisfied := slices.ContainsFunc(candidates, func(i int) bool {
			for _, c := range constraints {
				if !c.matches(&spans[i]) {
					return false
				}
			}
			return true
		})
		if satisfied {
			continue
		}

		// Report every sub-constraint no instance meets; if each is met by
		// some instance but none meets all of them at once, say so.
		individual := false
		for _, c := range constraints {
			met := slices.ContainsFunc(candidates, func(i int) bool { return c.matches(&spans[i]) })
			if !met {
				violations = append(violations, c.describe())
				individual = true
			}
		}
		if !individual {
			violations = append(violations, Violation{
				Section:  SectionSpan,
				Message:  fmt.Sprintf("no single instance of span %q satisfies all constraints at once (%d instances checked)", exp.Name, len(candidates)),
				SpanName: exp.Name,
			})
		}
	}

	return violations
}

func buildConstraints(spans []trace.Span, byID map[string]int, exp expect.SpanExpectation) []spanConstraint {
	var constraints []spanConstraint

	if exp.Kind != "" {
		want, _ := trace.ParseKind(exp.Kind) // already validated at config load
		constraints = append(constraints, spanConstraint{
			matches: func(s *trace.Span) bool { return s.Kind == want },
			describe: func() Violation {
				return Violation{
					Section:  SectionSpan,
					Message:  fmt.Sprintf("no instance of span %q has kind %q", exp.Name, want),
					SpanName: exp.Name,
					Expected: string(want),
				}
			},
		})
	}

	if exp.Parent != "" {
		constraints = append(constraints, spanConstraint{
			matches: func(s *trace.Span) bool {
				if s.ParentSpanID == nil {
					return false
				}
				i, ok := byID[*s.ParentSpanID]
				return ok && spans[i].Name == exp.Parent
			},
			describe: func() Violation {
				return Violation{
					Section:  SectionSpan,
					Message:  fmt.Sprintf("no instance of span %q is a child of %q", exp.Name, exp.Parent),
					SpanName: exp.Name,
					Expected: exp.Parent,
				}
			},
		})
	}

	if exp.Attrs != nil {
		if len(exp.Attrs.All) > 0 {
			all := exp.Attrs.All
			constraints = append(constraints, spanConstraint{
				matches: func(s *trace.Span) bool {
					for k, v := range all {
						if s.Attributes[k] != v {
							return false
						}
					}
					return true
				},
				describe: func() Violation {
					return Violation{
						Section:  SectionSpan,
						Message:  fmt.Sprintf("no instance of span %q carries all required attributes %s", exp.Name, formatAttrSet(all)),
						SpanName: exp.Name,
					}
				},
			})
		}
		if len(exp.Attrs.Any) > 0 {
			patterns := exp.Attrs.Any
			constraints = append(constraints, spanConstraint{
				matches: func(s *trace.Span) bool {
					for _, pattern := range patterns {
						k, v, _ := strings.Cut(pattern, "=")
						if s.Attributes[k] == v {
							return true
						}
					}
					return false
				},
				describe: func() Violation {
					return Violation{
						Section:  SectionSpan,
						Message:  fmt.Sprintf("no instance of span %q matches any of the attribute patterns [%s]", exp.Name, strings.Join(patterns, ", ")),
						SpanName: exp.Name,
					}
				},
			})
		}
	}

	if exp.Events != nil {
		if len(exp.Events.All) > 0 {
			all := exp.Events.All
			constraints = append(constraints, spanConstraint{
				matches: func(s *trace.Span) bool {
					for _, ev := range all {
						if !slices.Contains(s.Events, ev) {
							return false
						}
					}
					return true
				},
				describe: func() Violation {
					return Violation{
						Section:  SectionSpan,
						Message:  fmt.Sprintf("no instance of span %q carries all required events [%s]", exp.Name, strings.Join(all, ", ")),
						SpanName: exp.Name,
					}
				},
			})
		}
		if len(exp.Events.Any) > 0 {
			any := exp.Events.Any
			constraints = append(constraints, spanConstraint{
				matches: func(s *trace.Span) bool {
					for _, ev := range any {
						if slices.Contains(s.Events, ev) {
							return true
						}
					}
					return false
				},
				describe: func() Violation {
					return Violation{
						Section:  SectionSpan,
						Message:  fmt.Sprintf("no instance of span %q carries any of the events [%s]", exp.Name, strings.Join(any, ", ")),
						SpanName: exp.Name,
					}
				},
			})
		}
	}

	if d := exp.DurationMs; d != nil && (d.Min != nil || d.Max != nil) {
		constraints = append(constraints, spanConstraint{
			matches: func(s *trace.Span) bool {
				ms, ok := s.DurationMillis()
				if !ok {
					return false
				}
				if d.Min != nil && ms < *d.Min {
					return false
				}
				if d.Max != nil && ms > *d.Max {
					return false
				}
				return true
			},
			describe: func() Violation {
				return Violation{
					Section:  SectionSpan,
					Message:  fmt.Sprintf("no instance of span %q has duration %s", exp.Name, formatDurationBounds(d)),
					SpanName: exp.Name,
					Expected: formatDurationBounds(d),
				}
			},
		})
	}

	return constraints
}

func formatAttrSet(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+attrs[k])
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

func formatDurationBounds(d *expect.DurationExpectation) string {
	switch {
	case d.Min != nil && d.Max != nil:
		return fmt.Sprintf("between %gms and %gms", *d.Min, *d.Max)
	case d.Min != nil:
		return fmt.Sprintf("at least %gms", *d.Min)
	case d.Max != nil:
		return fmt.Sprintf("at most %gms", *d.Max)
	default:
		return "any duration"
	}
}
