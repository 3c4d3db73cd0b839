// Tests for the per-span expectation validator
package verdict

import (
	"testing"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSpans_MissingSpan(t *testing.T) {
	t.Parallel()

	spans := []trace.Span{mkSpan("present", "s1")}
	violations := ValidateSpans(spans, []expect.SpanExpectation{{Name: "absent"}})

	require.Len(t, violations, 1)
	assert.Equal(t, SectionSpan, violations[0].Section)
	assert.Contains(t, violations[0].Message, `"absent" does not exist`)
}

func TestValidateSpans_NamePresenceOnly(t *testing.T) {
	t.Parallel()

	spans := []trace.Span{mkSpan("run", "s1")}
	violations := ValidateSpans(spans, []expect.SpanExpectation{{Name: "run"}})
	assert.Empty(t, violations)
}

func TestValidateSpans_Kind(t *testing.T) {
	t.Parallel()

	spans := []trace.Span{mkSpan("run", "s1", withKind(trace.KindServer))}

	assert.Empty(t, ValidateSpans(spans, []expect.SpanExpectation{{Name: "run", Kind: "server"}}))

	violations := ValidateSpans(spans, []expect.SpanExpectation{{Name: "run", Kind: "client"}})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, `kind "client"`)
}

func TestValidateSpans_Parent(t *testing.T) {
	t.Parallel()

	spans := []trace.Span{
		mkSpan("root", "s1"),
		mkSpan("child", "s2", withParent("s1")),
	}

	assert.Empty(t, ValidateSpans(spans, []expect.SpanExpectation{{Name: "child", Parent: "root"}}))

	violations := ValidateSpans(spans, []expect.SpanExpectation{{Name: "root", Parent: "child"}})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, `child of "child"`)
}

func TestValidateSpans_AttrsAll(t *testing.T) {
	t.Parallel()

	spans := []trace.Span{mkSpan("run", "s1", withAttrs(map[string]string{
		"container.runtime": "podman",
		"exit.code":         "0",
	}))}

	assert.Empty(t, ValidateSpans(spans, []expect.SpanExpectation{{
		Name:  "run",
		Attrs: &expect.AttrExpectation{All: map[string]string{"container.runtime": "podman"}},
	}}))

	violations := ValidateSpans(spans, []expect.SpanExpectation{{
		Name:  "run",
		Attrs: &expect.AttrExpectation{All: map[string]string{"container.runtime": "docker"}},
	}})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "required attributes")
}

func TestValidateSpans_AttrsAny(t *testing.T) {
	t.Parallel()

	spans := []trace.Span{mkSpan("query", "s1", withAttrs(map[string]string{"db.system": "sqlite"}))}

	assert.Empty(t, ValidateSpans(spans, []expect.SpanExpectation{{
		Name:  "query",
		Attrs: &expect.AttrExpectation{Any: []string{"db.system=postgresql", "db.system=sqlite"}},
	}}))

	violations := ValidateSpans(spans, []expect.SpanExpectation{{
		Name:  "query",
		Attrs: &expect.AttrExpectation{Any: []string{"db.system=postgresql"}},
	}})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "attribute patterns")
}

func TestValidateSpans_Events(t *testing.T) {
	t.Parallel()

	spans := []trace.Span{mkSpan("run", "s1", withEvents("started", "stopped"))}

	assert.Empty(t, ValidateSpans(spans, []expect.SpanExpectation{{
		Name:   "run",
		Events: &expect.EventExpectation{All: []string{"started", "stopped"}, Any: []string{"started"}},
	}}))

	violations := ValidateSpans(spans, []expect.SpanExpectation{{
		Name:   "run",
		Events: &expect.EventExpectation{All: []string{"started", "paused"}},
	}})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "required events")

	violations = ValidateSpans(spans, []expect.SpanExpectation{{
		Name:   "run",
		Events: &expect.EventExpectation{Any: []string{"paused", "resumed"}},
	}})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "any of the events")
}

func TestValidateSpans_Duration(t *testing.T) {
	t.Parallel()

	// 50ms span
	spans := []trace.Span{mkSpan("run", "s1", withTimes(0, 50_000_000))}

	assert.Empty(t, ValidateSpans(spans, []expect.SpanExpectation{{
		Name:       "run",
		DurationMs: &expect.DurationExpectation{Min: f64p(10), Max: f64p(100)},
	}}))

	violations := ValidateSpans(spans, []expect.SpanExpectation{{
		Name:       "run",
		DurationMs: &expect.DurationExpectation{Max: f64p(10)},
	}})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "at most 10ms")
}

func TestValidateSpans_DurationNeedsTimestamps(t *testing.T) {
	t.Parallel()

	spans := []trace.Span{mkSpan("run", "s1")}
	violations := ValidateSpans(spans, []expect.SpanExpectation{{
		Name:       "run",
		DurationMs: &expect.DurationExpectation{Min: f64p(1)},
	}})
	require.Len(t, violations, 1, "a span without timestamps cannot prove its duration")
}

func TestValidateSpans_DuplicateNames(t *testing.T) {
	t.Parallel()

	t.Run("one instance satisfying all constraints passes", func(t *testing.T) {
		t.Parallel()
		spans := []trace.Span{
			mkSpan("retry", "s1", withStatus(trace.StatusError)),
			mkSpan("retry", "s2", withStatus(trace.StatusOk), withAttrs(map[string]string{"attempt": "2"})),
		}
		violations := ValidateSpans(spans, []expect.SpanExpectation{{
			Name:  "retry",
			Attrs: &expect.AttrExpectation{All: map[string]string{"attempt": "2"}},
		}})
		assert.Empty(t, violations)
	})

	t.Run("constraints met only across instances fail with a combined violation", func(t *testing.T) {
		t.Parallel()
		spans := []trace.Span{
			mkSpan("retry", "s1", withKind(trace.KindClient)),
			mkSpan("retry", "s2", withAttrs(map[string]string{"attempt": "2"})),
		}
		violations := ValidateSpans(spans, []expect.SpanExpectation{{
			Name:  "retry",
			Kind:  "client",
			Attrs: &expect.AttrExpectation{All: map[string]string{"attempt": "2"}},
		}})
		require.Len(t, violations, 1)
		assert.Contains(t, violations[0].Message, "no single instance")
		assert.Contains(t, violations[0].Message, "2 instances checked")
	})

	t.Run("each unmet constraint reported separately", func(t *testing.T) {
		t.Parallel()
		spans := []trace.Span{
			mkSpan("retry", "s1"),
			mkSpan("retry", "s2"),
		}
		violations := ValidateSpans(spans, []expect.SpanExpectation{{
			Name:  "retry",
			Kind:  "client",
			Attrs: &expect.AttrExpectation{All: map[string]string{"attempt": "2"}},
		}})
		assert.Len(t, violations, 2)
	})
}
