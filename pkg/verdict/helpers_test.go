// Shared span builders for validator tests
package verdict

import "github.com/andrewh/tracecheck/pkg/trace"

type spanOpt func(*trace.Span)

func mkSpan(name, id string, opts ...spanOpt) trace.Span {
	s := trace.Span{
		Name:    name,
		TraceID: "t1",
		SpanID:  id,
		Status:  trace.StatusUnset,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func withParent(id string) spanOpt {
	return func(s *trace.Span) { s.ParentSpanID = &id }
}

func withKind(k trace.Kind) spanOpt {
	return func(s *trace.Span) { s.Kind = k }
}

func withStatus(st trace.Status) spanOpt {
	return func(s *trace.Span) { s.Status = st }
}

func withTimes(start, end uint64) spanOpt {
	return func(s *trace.Span) {
		s.StartTimeUnixNano = &start
		s.EndTimeUnixNano = &end
	}
}

func withAttrs(attrs map[string]string) spanOpt {
	return func(s *trace.Span) { s.Attributes = attrs }
}

func withEvents(events ...string) spanOpt {
	return func(s *trace.Span) { s.Events = events }
}

func withResource(attrs map[string]string) spanOpt {
	return func(s *trace.Span) { s.ResourceAttributes = attrs }
}

func intp(v int) *int { return &v }

func f64p(v float64) *float64 { return &v }
