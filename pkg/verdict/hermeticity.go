// Hermeticity validator
// Flags evidence of external network traffic and configuration leakage
package verdict

import (
	"fmt"
	"slices"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
)

// externalNetworkAttributes are span attribute keys whose presence indicates
// traffic to a service outside the test sandbox.
var externalNetworkAttributes = []string{
	"net.peer.name",
	"net.peer.ip",
	"net.peer.port",
	"http.host",
	"http.url",
	"db.connection_string",
	"rpc.service",
	"messaging.destination",
	"messaging.url",
}

// ValidateHermeticity checks the trace for signs of non-hermetic execution:
// network-peer attributes when no_external_services is set, resource
// attributes that must match pinned values, and explicitly forbidden span
// attribute keys.
func ValidateHermeticity(spans []trace.Span, exp *expect.HermeticityExpectation) []Violation {
	var violations []Violation

	if exp.NoExternalServices {
		for i := range spans {
			s := &spans[i]
			for _, key := range externalNetworkAttributes {
				if value, ok := s.Attributes[key]; ok {
					violations = append(violations, Violation{
						Section:   SectionHermeticity,
						Message:   fmt.Sprintf("span %q (id %s) carries external network attribute %s=%q", s.Name, s.SpanID, key, value),
						SpanName:  s.Name,
						SpanID:    s.SpanID,
						Attribute: key,
						Actual:    value,
					})
				}
			}
		}
	}

	if exp.ResourceAttrs != nil && len(exp.ResourceAttrs.MustMatch) > 0 {
		if len(spans) == 0 {
			violations = append(violations, Violation{
				Section: SectionHermeticity,
				Message: "resource attributes cannot be checked: trace has no spans",
			})
		} else {
			resource := spans[0].ResourceAttributes
			keys := make([]string, 0, len(exp.ResourceAttrs.MustMatch))
			for key := range exp.ResourceAttrs.MustMatch {
				keys = append(keys, key)
			}
			slices.Sort(keys)
			for _, key := range keys {
				want := exp.ResourceAttrs.MustMatch[key]
				got, ok := resource[key]
				if !ok {
					violations = append(violations, Violation{
						Section:   SectionHermeticity,
						Message:   fmt.Sprintf("resource attribute %q is missing, expected %q", key, want),
						Attribute: key,
						Expected:  want,
					})
					continue
				}
				if got != want {
					violations = append(violations, Violation{
						Section:   SectionHermeticity,
						Message:   fmt.Sprintf("resource attribute %q is %q, expected %q", key, got, want),
						Attribute: key,
						Expected:  want,
						Actual:    got,
					})
				}
			}
		}
	}

	if exp.SpanAttrs != nil && len(exp.SpanAttrs.ForbidKeys) > 0 {
		for i := range spans {
			s := &spans[i]
			for _, key := range exp.SpanAttrs.ForbidKeys {
				if value, ok := s.Attributes[key]; ok {
					violations = append(violations, Violation{
						Section:   SectionHermeticity,
						Message:   fmt.Sprintf("span %q (id %s) carries forbidden attribute %s=%q", s.Name, s.SpanID, key, value),
						SpanName:  s.Name,
						SpanID:    s.SpanID,
						Attribute: key,
						Actual:    value,
					})
				}
			}
		}
	}

	return violations
}
