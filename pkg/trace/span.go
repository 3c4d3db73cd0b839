// Canonical in-memory span model for captured traces
// Optional fields use pointers so absence is never conflated with a zero value
package trace

import (
	"fmt"
	"strings"
)

// Kind is the OpenTelemetry span kind.
type Kind string

const (
	KindUnspecified Kind = ""
	KindInternal    Kind = "internal"
	KindServer      Kind = "server"
	KindClient      Kind = "client"
	KindProducer    Kind = "producer"
	KindConsumer    Kind = "consumer"
)

// ParseKind parses a span kind string (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "internal":
		return KindInternal, nil
	case "server":
		return KindServer, nil
	case "client":
		return KindClient, nil
	case "producer":
		return KindProducer, nil
	case "consumer":
		return KindConsumer, nil
	default:
		return KindUnspecified, fmt.Errorf("invalid span kind %q, valid kinds: internal, server, client, producer, consumer", s)
	}
}

// kindFromOTelInt maps the OTLP integer representation to a Kind.
// Zero (unspecified) maps to KindUnspecified without error.
func kindFromOTelInt(i int32) Kind {
	switch i {
	case 1:
		return KindInternal
	case 2:
		return KindServer
	case 3:
		return KindClient
	case 4:
		return KindProducer
	case 5:
		return KindConsumer
	default:
		return KindUnspecified
	}
}

// Status is the OpenTelemetry span status code.
type Status string

const (
	StatusUnset Status = "unset"
	StatusOk    Status = "ok"
	StatusError Status = "error"
)

// ParseStatus parses a status string (case-insensitive).
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unset", "":
		return StatusUnset, nil
	case "ok":
		return StatusOk, nil
	case "error":
		return StatusError, nil
	default:
		return StatusUnset, fmt.Errorf("invalid status %q, valid statuses: UNSET, OK, ERROR", s)
	}
}

// Span is the format-independent representation of one observed unit of work.
// Names are not unique: loops and distributed calls legitimately repeat them,
// so identity lookups always go through SpanID.
type Span struct {
	Name               string
	TraceID            string
	SpanID             string
	ParentSpanID       *string // nil for root spans
	Kind               Kind
	StartTimeUnixNano  *uint64
	EndTimeUnixNano    *uint64
	Status             Status
	Attributes         map[string]string
	Events             []string
	ResourceAttributes map[string]string
}

// Root reports whether the span has no parent.
func (s *Span) Root() bool { return s.ParentSpanID == nil }

// DurationMillis returns the span duration in milliseconds.
// The second return is false when either timestamp is absent or end < start.
func (s *Span) DurationMillis() (float64, bool) {
	if s.StartTimeUnixNano == nil || s.EndTimeUnixNano == nil {
		return 0, false
	}
	start, end := *s.StartTimeUnixNano, *s.EndTimeUnixNano
	if end < start {
		return 0, false
	}
	return float64(end-start) / 1e6, true
}

// Trace is the full span set from one capture session. It is constructed once
// by ingestion and never mutated afterwards; validators treat it as read-only.
type Trace struct {
	spans []Span
}

// NewTrace wraps a span slice. The caller hands over ownership.
func NewTrace(spans []Span) *Trace {
	return &Trace{spans: spans}
}

// Spans returns the underlying span slice. Callers must not modify it.
func (t *Trace) Spans() []Span { return t.spans }

// Len returns the number of spans in the trace.
func (t *Trace) Len() int { return len(t.spans) }

// IndexByName builds a name → span-index lookup over the given spans.
// Multiple spans may share a name, so each entry is a slice of indices.
func IndexByName(spans []Span) map[string][]int {
	idx := make(map[string][]int)
	for i, s := range spans {
		idx[s.Name] = append(idx[s.Name], i)
	}
	return idx
}

// IndexByID builds a span_id → span-index lookup over the given spans.
func IndexByID(spans []Span) map[string]int {
	idx := make(map[string]int, len(spans))
	for i, s := range spans {
		idx[s.SpanID] = i
	}
	return idx
}
