// Temporal ordering validator
// Existential over repeated names: one valid instance pairing satisfies a constraint
package verdict

import (
	"fmt"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
)

// ValidateOrder checks must_precede and must_follow constraints.
// must_precede(a, b) holds when some instance of a ends at or before some
// instance of b starts; must_follow(a, b) is must_precede(b, a). Instances
// missing the relevant timestamp cannot witness the ordering.
func ValidateOrder(spans []trace.Span, exp *expect.OrderExpectation) []Violation {
	var violations []Violation
	byName := trace.IndexByName(spans)

	for _, edge := range exp.MustPrecede {
		violations = append(violations, checkPrecedes(spans, byName, edge[0], edge[1], "must_precede")...)
	}
	for _, edge := range exp.MustFollow {
		violations = append(violations, checkPrecedes(spans, byName, edge[1], edge[0], "must_follow")...)
	}

	return violations
}

func checkPrecedes(spans []trace.Span, byName map[string][]int, first, second, constraint string) []Violation {
	firsts := byName[first]
	seconds := byName[second]

	if len(firsts) == 0 {
		return []Violation{{
			Section:  SectionOrder,
			Message:  fmt.Sprintf("span %q not found for %s constraint", first, constraint),
			SpanName: first,
		}}
	}
	if len(seconds) == 0 {
		return []Violation{{
			Section:  SectionOrder,
			Message:  fmt.Sprintf("span %q not found for %s constraint", second, constraint),
			SpanName: second,
		}}
	}

	for _, fi := range firsts {
		f := &spans[fi]
		if f.EndTimeUnixNano == nil {
			continue
		}
		for _, si := range seconds {
			s := &spans[si]
			if s.StartTimeUnixNano == nil {
				continue
			}
			if *f.EndTimeUnixNano <= *s.StartTimeUnixNano {
				return nil
			}
		}
	}

	return []Violation{{
		Section:  SectionOrder,
		Message:  fmt.Sprintf("%q must precede %q but no instance pairing satisfies end <= start", first, second),
		SpanName: first,
		Expected: fmt.Sprintf("%s before %s", first, second),
	}}
}
