// Canonical ordering of captured traces
// Produces the validation view (full fidelity) and the digest view (volatile-stripped)
package trace

import (
	"maps"
	"slices"
)

// Normalize returns the validation view of a trace: spans sorted by
// (name, span_id) and each span's events sorted, with attribute values kept
// at full fidelity. The input trace is not modified.
func Normalize(t *Trace) *Trace {
	spans := make([]Span, len(t.spans))
	for i, s := range t.spans {
		spans[i] = cloneSpan(s)
	}
	sortSpans(spans)
	return NewTrace(spans)
}

// DigestView returns the digest view of a trace: the validation view with the
// given volatile attribute keys stripped from span and resource attributes.
// Volatile keys are capture-time noise (export wall clocks, random correlation
// ids) that must not affect the reproducibility digest.
func DigestView(t *Trace, volatile []string) *Trace {
	n := Normalize(t)
	if len(volatile) == 0 {
		return n
	}
	for i := range n.spans {
		for _, key := range volatile {
			delete(n.spans[i].Attributes, key)
			delete(n.spans[i].ResourceAttributes, key)
		}
	}
	return n
}

func cloneSpan(s Span) Span {
	c := s
	if s.ParentSpanID != nil {
		id := *s.ParentSpanID
		c.ParentSpanID = &id
	}
	if s.StartTimeUnixNano != nil {
		v := *s.StartTimeUnixNano
		c.StartTimeUnixNano = &v
	}
	if s.EndTimeUnixNano != nil {
		v := *s.EndTimeUnixNano
		c.EndTimeUnixNano = &v
	}
	if s.Attributes != nil {
		c.Attributes = maps.Clone(s.Attributes)
	}
	if s.ResourceAttributes != nil {
		c.ResourceAttributes = maps.Clone(s.ResourceAttributes)
	}
	if s.Events != nil {
		c.Events = slices.Clone(s.Events)
		slices.Sort(c.Events)
	}
	return c
}

func sortSpans(spans []Span) {
	slices.SortFunc(spans, func(a, b Span) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		if a.SpanID < b.SpanID {
			return -1
		}
		if a.SpanID > b.SpanID {
			return 1
		}
		return 0
	})
}
