// Format-specific parsers for captured trace exports
// Handles collector file-exporter records, JSON arrays, nested OTLP JSON, and stdouttrace
package trace

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// Format identifies the input trace format.
type Format string

const (
	FormatAuto        Format = "auto"
	FormatRecords     Format = "records" // one JSON span record (or export object) per line
	FormatArray       Format = "array"   // single top-level JSON array of span records
	FormatOTLP        Format = "otlp"    // nested resourceSpans → scopeSpans → spans export
	FormatStdouttrace Format = "stdouttrace"
)

// maxInputSize is the maximum input size to prevent OOM on large trace exports.
const maxInputSize = 256 * 1024 * 1024 // 256 MB

// IngestError reports unparseable trace data with its location.
type IngestError struct {
	Line int // 1-based line (or array element) where parsing failed, 0 if unknown
	Err  error
}

func (e *IngestError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *IngestError) Unwrap() error { return e.Err }

// Options configures parsing.
type Options struct {
	Format Format
	// Logger receives warnings about dropped trailing records.
	// Nil means slog.Default().
	Logger *slog.Logger
}

// Parse reads spans from the given reader in the specified format.
// FormatAuto inspects the input to determine the format. A truncated final
// record (a partial flush from a streaming exporter) is dropped with a
// warning rather than failing the whole capture.
func Parse(r io.Reader, opts Options) (*Trace, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(data) > maxInputSize {
		return nil, fmt.Errorf("input exceeds maximum size of %d MB", maxInputSize/(1024*1024))
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, &IngestError{Err: fmt.Errorf("no trace data in input")}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	format := opts.Format
	if format == "" || format == FormatAuto {
		format, err = detectFormat(data)
		if err != nil {
			return nil, err
		}
	}

	var spans []Span
	switch format {
	case FormatRecords:
		spans, err = parseRecords(data, logger)
	case FormatArray:
		spans, err = parseArray(data)
	case FormatOTLP:
		spans, err = parseOTLP(data)
	case FormatStdouttrace:
		spans, err = parseStdouttrace(data, logger)
	default:
		return nil, fmt.Errorf("unknown format %q, valid formats: auto, records, array, otlp, stdouttrace", format)
	}
	if err != nil {
		return nil, err
	}
	return NewTrace(spans), nil
}

// detectFormat examines the input to determine the format.
// Tries the first line (for line-delimited records), then the full data
// (for pretty-printed OTLP JSON or a span array).
func detectFormat(data []byte) (Format, error) {
	if data[0] == '[' {
		return FormatArray, nil
	}

	firstLine, _, hasMore := bytes.Cut(data, []byte{'\n'})
	firstLine = bytes.TrimSpace(firstLine)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(firstLine, &probe); err == nil {
		if _, ok := probe["SpanContext"]; ok {
			return FormatStdouttrace, nil
		}
		if _, ok := probe["resourceSpans"]; ok {
			// A complete one-line export object followed by more lines is a
			// line-delimited collector file; alone it is a single OTLP document.
			if hasMore {
				return FormatRecords, nil
			}
			return FormatOTLP, nil
		}
		if _, ok := probe["name"]; ok {
			return FormatRecords, nil
		}
	}

	// First line wasn't a complete JSON object (e.g. pretty-printed OTLP).
	if hasMore {
		if err := json.Unmarshal(data, &probe); err == nil {
			if _, ok := probe["resourceSpans"]; ok {
				return FormatOTLP, nil
			}
		}
	}

	return "", fmt.Errorf("cannot detect format: input is not line-delimited records, a span array, an OTLP export, or stdouttrace output")
}

// recordSpan mirrors one span record as written by the collector file
// exporter or the flat record format. Unknown fields are ignored.
type recordSpan struct {
	Name               string            `json:"name"`
	TraceID            string            `json:"trace_id"`
	SpanID             string            `json:"span_id"`
	ParentSpanID       *string           `json:"parent_span_id"`
	Kind               string            `json:"kind"`
	StartTimeUnixNano  any               `json:"start_time_unix_nano"`
	EndTimeUnixNano    any               `json:"end_time_unix_nano"`
	Status             string            `json:"status"`
	Attributes         map[string]any    `json:"attributes"`
	Events             []string          `json:"events"`
	ResourceAttributes map[string]string `json:"resource_attributes"`
}

func (r *recordSpan) toSpan() (Span, error) {
	if r.Name == "" {
		return Span{}, fmt.Errorf("span record missing name")
	}

	start, err := parseUnixNano(r.StartTimeUnixNano)
	if err != nil {
		return Span{}, fmt.Errorf("span %q: invalid start_time_unix_nano: %w", r.Name, err)
	}
	end, err := parseUnixNano(r.EndTimeUnixNano)
	if err != nil {
		return Span{}, fmt.Errorf("span %q: invalid end_time_unix_nano: %w", r.Name, err)
	}

	kind := KindUnspecified
	if r.Kind != "" {
		kind, err = ParseKind(r.Kind)
		if err != nil {
			return Span{}, fmt.Errorf("span %q: %w", r.Name, err)
		}
	}

	status, err := ParseStatus(r.Status)
	if err != nil {
		return Span{}, fmt.Errorf("span %q: %w", r.Name, err)
	}

	// A present-but-empty parent id still means root: ids are never empty strings.
	parent := r.ParentSpanID
	if parent != nil && (*parent == "" || isZeroID(*parent)) {
		parent = nil
	}

	var attrs map[string]string
	if len(r.Attributes) > 0 {
		attrs = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			attrs[k] = flattenValue(v)
		}
	}

	return Span{
		Name:               r.Name,
		TraceID:            r.TraceID,
		SpanID:             r.SpanID,
		ParentSpanID:       parent,
		Kind:               kind,
		StartTimeUnixNano:  start,
		EndTimeUnixNano:    end,
		Status:             status,
		Attributes:         attrs,
		Events:             r.Events,
		ResourceAttributes: r.ResourceAttributes,
	}, nil
}

// parseUnixNano coerces a JSON number or numeric string to a nanosecond
// timestamp. Nil stays absent.
func parseUnixNano(v any) (*uint64, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if n < 0 {
			return nil, fmt.Errorf("negative timestamp %v", n)
		}
		u := uint64(n)
		return &u, nil
	case string:
		if n == "" {
			return nil, nil
		}
		u, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("timestamp %q is not an unsigned integer", n)
		}
		return &u, nil
	default:
		return nil, fmt.Errorf("timestamp has unsupported type %T", v)
	}
}

// flattenValue renders an attribute value as its string form.
func flattenValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// parseRecords parses line-delimited JSON. Each line is a flat span record,
// an array of records, or a nested export object. A malformed final line is
// dropped with a warning (streaming exporters may flush incompletely); a
// malformed interior line is a hard error with its line number.
func parseRecords(data []byte, logger *slog.Logger) ([]Span, error) {
	type rawLine struct {
		num  int
		text []byte
	}
	var lines []rawLine
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, rawLine{num: n, text: append([]byte(nil), line...)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	var spans []Span
	for i, line := range lines {
		parsed, err := parseRecordLine(line.text)
		if err != nil {
			if i == len(lines)-1 {
				logger.Warn("dropping truncated trailing record", "line", line.num, "error", err)
				continue
			}
			return nil, &IngestError{Line: line.num, Err: err}
		}
		spans = append(spans, parsed...)
	}
	return spans, nil
}

func parseRecordLine(line []byte) ([]Span, error) {
	switch line[0] {
	case '[':
		var records []recordSpan
		if err := json.Unmarshal(line, &records); err != nil {
			return nil, err
		}
		spans := make([]Span, 0, len(records))
		for _, r := range records {
			s, err := r.toSpan()
			if err != nil {
				return nil, err
			}
			spans = append(spans, s)
		}
		return spans, nil
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(line, &probe); err != nil {
			return nil, err
		}
		if _, ok := probe["resourceSpans"]; ok {
			return parseOTLP(line)
		}
		var r recordSpan
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, err
		}
		s, err := r.toSpan()
		if err != nil {
			return nil, err
		}
		return []Span{s}, nil
	default:
		return nil, fmt.Errorf("record is neither a JSON object nor an array")
	}
}

// parseArray parses a single top-level JSON array of span records.
func parseArray(data []byte) ([]Span, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &IngestError{Err: fmt.Errorf("parsing span array: %w", err)}
	}
	spans := make([]Span, 0, len(records))
	for i, raw := range records {
		var r recordSpan
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, &IngestError{Line: i + 1, Err: fmt.Errorf("span array element %d: %w", i, err)}
		}
		s, err := r.toSpan()
		if err != nil {
			return nil, &IngestError{Line: i + 1, Err: fmt.Errorf("span array element %d: %w", i, err)}
		}
		spans = append(spans, s)
	}
	return spans, nil
}

// parseOTLP parses the nested vendor export shape via the OTLP proto.
// Unknown and extra fields are discarded, not rejected.
func parseOTLP(data []byte) ([]Span, error) {
	var req coltracepb.ExportTraceServiceRequest
	unmarshal := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := unmarshal.Unmarshal(data, &req); err != nil {
		return nil, &IngestError{Err: fmt.Errorf("parsing OTLP export: %w", err)}
	}

	var spans []Span
	for _, rs := range req.ResourceSpans {
		var resourceAttrs map[string]string
		if attrs := rs.GetResource().GetAttributes(); len(attrs) > 0 {
			resourceAttrs = make(map[string]string, len(attrs))
			for _, attr := range attrs {
				resourceAttrs[attr.Key] = anyValueString(attr.Value)
			}
		}

		for _, ss := range rs.ScopeSpans {
			for _, span := range ss.Spans {
				spans = append(spans, otlpSpan(span, resourceAttrs))
			}
		}
	}
	return spans, nil
}

func otlpSpan(span *tracepb.Span, resourceAttrs map[string]string) Span {
	var parent *string
	if len(span.ParentSpanId) > 0 {
		id := hex.EncodeToString(span.ParentSpanId)
		if !isZeroID(id) {
			parent = &id
		}
	}

	status := StatusUnset
	switch span.GetStatus().GetCode() {
	case tracepb.Status_STATUS_CODE_OK:
		status = StatusOk
	case tracepb.Status_STATUS_CODE_ERROR:
		status = StatusError
	}

	var attrs map[string]string
	if len(span.Attributes) > 0 {
		attrs = make(map[string]string, len(span.Attributes))
		for _, attr := range span.Attributes {
			attrs[attr.Key] = anyValueString(attr.Value)
		}
	}

	var events []string
	for _, ev := range span.Events {
		events = append(events, ev.Name)
	}

	var start, end *uint64
	if span.StartTimeUnixNano != 0 {
		v := span.StartTimeUnixNano
		start = &v
	}
	if span.EndTimeUnixNano != 0 {
		v := span.EndTimeUnixNano
		end = &v
	}

	return Span{
		Name:               span.Name,
		TraceID:            hex.EncodeToString(span.TraceId),
		SpanID:             hex.EncodeToString(span.SpanId),
		ParentSpanID:       parent,
		Kind:               kindFromOTelInt(int32(span.Kind)),
		StartTimeUnixNano:  start,
		EndTimeUnixNano:    end,
		Status:             status,
		Attributes:         attrs,
		Events:             events,
		ResourceAttributes: resourceAttrs,
	}
}

// anyValueString renders an OTLP AnyValue as a flat string.
func anyValueString(v *commonpb.AnyValue) string {
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_BoolValue:
		return strconv.FormatBool(val.BoolValue)
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(val.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(val.DoubleValue, 'g', -1, 64)
	case *commonpb.AnyValue_BytesValue:
		return hex.EncodeToString(val.BytesValue)
	default:
		return v.GetStringValue()
	}
}

// stdouttraceEvent mirrors the Go SDK's stdouttrace JSON output.
type stdouttraceEvent struct {
	Name        string `json:"Name"`
	SpanContext struct {
		TraceID string `json:"TraceID"`
		SpanID  string `json:"SpanID"`
	} `json:"SpanContext"`
	Parent struct {
		SpanID string `json:"SpanID"`
	} `json:"Parent"`
	SpanKind   int       `json:"SpanKind"`
	StartTime  time.Time `json:"StartTime"`
	EndTime    time.Time `json:"EndTime"`
	Attributes []sdkAttr `json:"Attributes"`
	Events     []struct {
		Name string `json:"Name"`
	} `json:"Events"`
	Status struct {
		Code string `json:"Code"`
	} `json:"Status"`
	Resource []sdkAttr `json:"Resource"`
}

type sdkAttr struct {
	Key   string `json:"Key"`
	Value struct {
		Type  string `json:"Type"`
		Value any    `json:"Value"`
	} `json:"Value"`
}

func parseStdouttrace(data []byte, logger *slog.Logger) ([]Span, error) {
	var spans []Span
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	lineNum := 0
	var lines [][]byte
	var lineNums []int

	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
		lineNums = append(lineNums, lineNum)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	for i, line := range lines {
		var evt stdouttraceEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			if i == len(lines)-1 {
				logger.Warn("dropping truncated trailing record", "line", lineNums[i], "error", err)
				continue
			}
			return nil, &IngestError{Line: lineNums[i], Err: err}
		}
		spans = append(spans, stdouttraceSpan(&evt))
	}
	return spans, nil
}

func stdouttraceSpan(evt *stdouttraceEvent) Span {
	var parent *string
	if evt.Parent.SpanID != "" && !isZeroID(evt.Parent.SpanID) {
		id := evt.Parent.SpanID
		parent = &id
	}

	status := StatusUnset
	switch evt.Status.Code {
	case "Ok":
		status = StatusOk
	case "Error":
		status = StatusError
	}

	var attrs map[string]string
	if len(evt.Attributes) > 0 {
		attrs = make(map[string]string, len(evt.Attributes))
		for _, attr := range evt.Attributes {
			attrs[attr.Key] = flattenValue(attr.Value.Value)
		}
	}

	var resourceAttrs map[string]string
	if len(evt.Resource) > 0 {
		resourceAttrs = make(map[string]string, len(evt.Resource))
		for _, attr := range evt.Resource {
			resourceAttrs[attr.Key] = flattenValue(attr.Value.Value)
		}
	}

	var events []string
	for _, ev := range evt.Events {
		events = append(events, ev.Name)
	}

	start := uint64(evt.StartTime.UnixNano()) //nolint:gosec // wall-clock timestamps are positive
	end := uint64(evt.EndTime.UnixNano())     //nolint:gosec // wall-clock timestamps are positive
	var startPtr, endPtr *uint64
	if !evt.StartTime.IsZero() {
		startPtr = &start
	}
	if !evt.EndTime.IsZero() {
		endPtr = &end
	}

	return Span{
		Name:               evt.Name,
		TraceID:            evt.SpanContext.TraceID,
		SpanID:             evt.SpanContext.SpanID,
		ParentSpanID:       parent,
		Kind:               kindFromOTelInt(int32(evt.SpanKind)),
		StartTimeUnixNano:  startPtr,
		EndTimeUnixNano:    endPtr,
		Status:             status,
		Attributes:         attrs,
		Events:             events,
		ResourceAttributes: resourceAttrs,
	}
}

// isZeroID checks if a hex-encoded ID is all zeros.
func isZeroID(id string) bool {
	for _, c := range id {
		if c != '0' {
			return false
		}
	}
	return len(id) > 0
}
