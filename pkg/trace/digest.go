// Reproducibility digest over the canonical trace serialization
// Same logical trace content always hashes to the same value on every platform
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalSpan fixes the field order and key sorting of the digest
// serialization. encoding/json emits struct fields in declaration order and
// map keys sorted, which together make the output byte-stable.
type canonicalSpan struct {
	Name               string            `json:"name"`
	TraceID            string            `json:"trace_id"`
	SpanID             string            `json:"span_id"`
	ParentSpanID       *string           `json:"parent_span_id,omitempty"`
	Kind               string            `json:"kind,omitempty"`
	StartTimeUnixNano  *uint64           `json:"start_time_unix_nano,omitempty"`
	EndTimeUnixNano    *uint64           `json:"end_time_unix_nano,omitempty"`
	Status             string            `json:"status"`
	Attributes         map[string]string `json:"attributes,omitempty"`
	Events             []string          `json:"events,omitempty"`
	ResourceAttributes map[string]string `json:"resource_attributes,omitempty"`
}

// CanonicalJSON serializes the digest view of a trace to its canonical form.
func CanonicalJSON(t *Trace, volatile []string) ([]byte, error) {
	view := DigestView(t, volatile)
	canonical := make([]canonicalSpan, 0, view.Len())
	for _, s := range view.Spans() {
		canonical = append(canonical, canonicalSpan{
			Name:               s.Name,
			TraceID:            s.TraceID,
			SpanID:             s.SpanID,
			ParentSpanID:       s.ParentSpanID,
			Kind:               string(s.Kind),
			StartTimeUnixNano:  s.StartTimeUnixNano,
			EndTimeUnixNano:    s.EndTimeUnixNano,
			Status:             string(s.Status),
			Attributes:         s.Attributes,
			Events:             s.Events,
			ResourceAttributes: s.ResourceAttributes,
		})
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		return nil, fmt.Errorf("serializing canonical trace: %w", err)
	}
	return data, nil
}

// Digest computes the SHA-256 content hash of the canonical serialization,
// hex-encoded to 64 lowercase characters.
func Digest(t *Trace, volatile []string) (string, error) {
	data, err := CanonicalJSON(t, volatile)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
