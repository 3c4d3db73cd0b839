// Tests for canonical ordering and the volatile-stripped digest view
package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpan(name, id string) Span {
	return Span{Name: name, TraceID: "t1", SpanID: id, Status: StatusUnset}
}

func TestNormalize_SortsByNameThenSpanID(t *testing.T) {
	t.Parallel()

	tr := NewTrace([]Span{
		testSpan("query", "s3"),
		testSpan("apply", "s2"),
		testSpan("query", "s1"),
	})

	n := Normalize(tr)
	require.Equal(t, 3, n.Len())
	spans := n.Spans()
	assert.Equal(t, "apply", spans[0].Name)
	assert.Equal(t, "query", spans[1].Name)
	assert.Equal(t, "s1", spans[1].SpanID)
	assert.Equal(t, "query", spans[2].Name)
	assert.Equal(t, "s3", spans[2].SpanID)
}

func TestNormalize_SortsEvents(t *testing.T) {
	t.Parallel()

	s := testSpan("run", "s1")
	s.Events = []string{"stopped", "started", "paused"}
	n := Normalize(NewTrace([]Span{s}))

	assert.Equal(t, []string{"paused", "started", "stopped"}, n.Spans()[0].Events)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	a := testSpan("b", "s2")
	a.Events = []string{"z", "a"}
	a.Attributes = map[string]string{"k": "v"}
	b := testSpan("a", "s1")
	tr := NewTrace([]Span{a, b})

	n := Normalize(tr)
	n.Spans()[1].Attributes["k"] = "mutated"
	n.Spans()[1].Events[0] = "mutated"

	assert.Equal(t, "b", tr.Spans()[0].Name, "input order unchanged")
	assert.Equal(t, []string{"z", "a"}, tr.Spans()[0].Events, "input events unchanged")
	assert.Equal(t, "v", tr.Spans()[0].Attributes["k"], "input attributes unchanged")
}

func TestDigestView_StripsVolatileAttributes(t *testing.T) {
	t.Parallel()

	s := testSpan("run", "s1")
	s.Attributes = map[string]string{
		"container.id": "abc",
		"capture.time": "1700000000",
	}
	s.ResourceAttributes = map[string]string{
		"service.name": "cleanroom",
		"capture.time": "1700000000",
	}

	view := DigestView(NewTrace([]Span{s}), []string{"capture.time"})
	got := view.Spans()[0]
	assert.Equal(t, "abc", got.Attributes["container.id"])
	assert.NotContains(t, got.Attributes, "capture.time")
	assert.Equal(t, "cleanroom", got.ResourceAttributes["service.name"])
	assert.NotContains(t, got.ResourceAttributes, "capture.time")
}

func TestDigestView_NoVolatileKeysIsNormalize(t *testing.T) {
	t.Parallel()

	tr := NewTrace([]Span{testSpan("b", "s2"), testSpan("a", "s1")})
	view := DigestView(tr, nil)
	assert.Equal(t, Normalize(tr).Spans(), view.Spans())
}
