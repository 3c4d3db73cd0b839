// Tests for the tracecheck CLI commands
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

var hexDigest = regexp.MustCompile(`[0-9a-f]{64}`)

const testTrace = `{"name":"clnrm.run","trace_id":"t1","span_id":"s1","kind":"internal","start_time_unix_nano":0,"end_time_unix_nano":100000000,"status":"ok"}
{"name":"db.query","trace_id":"t1","span_id":"s2","parent_span_id":"s1","start_time_unix_nano":10000000,"end_time_unix_nano":90000000,"status":"ok","attributes":{"db.system":"sqlite"}}`

const passingExpectations = `
[[span]]
name = "clnrm.run"
kind = "internal"

[[span]]
name = "db.query"
parent = "clnrm.run"

[graph]
must_include = [["clnrm.run", "db.query"]]
acyclic = true

[counts]
spans_total = { eq = 2 }
errors_total = { eq = 0 }

[[window]]
outer = "clnrm.run"
contains = ["db.query"]

[status]
all = "ok"

[hermeticity]
no_external_services = true
`

const failingExpectations = `
[[span]]
name = "missing.span"

[status]
all = "error"
`

func TestVerifyCommand(t *testing.T) {
	t.Parallel()

	t.Run("passing trace", func(t *testing.T) {
		t.Parallel()
		tracePath := writeTestFile(t, "trace.jsonl", testTrace)
		expectPath := writeTestFile(t, "expect.toml", passingExpectations)

		root := rootCmd()
		root.SetArgs([]string{"verify", "--expect", expectPath, tracePath})
		var out bytes.Buffer
		root.SetOut(&out)

		err := root.Execute()
		require.NoError(t, err)
		assert.Contains(t, out.String(), "PASS: 2 spans checked, 0 violations")
		assert.Regexp(t, hexDigest, out.String())
	})

	t.Run("failing trace", func(t *testing.T) {
		t.Parallel()
		tracePath := writeTestFile(t, "trace.jsonl", testTrace)
		expectPath := writeTestFile(t, "expect.toml", failingExpectations)

		root := rootCmd()
		root.SetArgs([]string{"verify", "--expect", expectPath, tracePath})
		var out bytes.Buffer
		root.SetOut(&out)

		err := root.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "violations found")
		assert.Contains(t, out.String(), "FAIL:")
		assert.Contains(t, out.String(), "missing.span")
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()
		tracePath := writeTestFile(t, "trace.jsonl", testTrace)
		expectPath := writeTestFile(t, "expect.toml", passingExpectations)

		root := rootCmd()
		root.SetArgs([]string{"verify", "--json", "--expect", expectPath, tracePath})
		var out bytes.Buffer
		root.SetOut(&out)

		err := root.Execute()
		require.NoError(t, err)
		assert.Contains(t, out.String(), `"pass": true`)
		assert.Contains(t, out.String(), `"violations": []`)
		assert.Contains(t, out.String(), `"trace_digest"`)
	})

	t.Run("parallel matches serial", func(t *testing.T) {
		t.Parallel()
		tracePath := writeTestFile(t, "trace.jsonl", testTrace)
		expectPath := writeTestFile(t, "expect.toml", passingExpectations)

		run := func(extra ...string) string {
			root := rootCmd()
			root.SetArgs(append([]string{"verify", "--expect", expectPath, tracePath}, extra...))
			var out bytes.Buffer
			root.SetOut(&out)
			require.NoError(t, root.Execute())
			return out.String()
		}
		assert.Equal(t, run(), run("--parallel"))
	})

	t.Run("digest file", func(t *testing.T) {
		t.Parallel()
		tracePath := writeTestFile(t, "trace.jsonl", testTrace)
		expectPath := writeTestFile(t, "expect.toml", passingExpectations)
		digestPath := filepath.Join(t.TempDir(), "digest.txt")

		root := rootCmd()
		root.SetArgs([]string{"verify", "--expect", expectPath, "--digest-file", digestPath, tracePath})
		var out bytes.Buffer
		root.SetOut(&out)

		err := root.Execute()
		require.NoError(t, err)

		written, err := os.ReadFile(digestPath)
		require.NoError(t, err)
		assert.Regexp(t, hexDigest, string(written))
	})

	t.Run("missing expect flag", func(t *testing.T) {
		t.Parallel()
		tracePath := writeTestFile(t, "trace.jsonl", testTrace)

		root := rootCmd()
		root.SetArgs([]string{"verify", tracePath})

		err := root.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing expectation file")
	})

	t.Run("trace from stdin", func(t *testing.T) {
		t.Parallel()
		expectPath := writeTestFile(t, "expect.toml", passingExpectations)

		root := rootCmd()
		root.SetArgs([]string{"verify", "--expect", expectPath})
		root.SetIn(strings.NewReader(testTrace))
		var out bytes.Buffer
		root.SetOut(&out)

		err := root.Execute()
		require.NoError(t, err)
		assert.Contains(t, out.String(), "PASS")
	})

	t.Run("nonexistent trace file", func(t *testing.T) {
		t.Parallel()
		expectPath := writeTestFile(t, "expect.toml", passingExpectations)

		root := rootCmd()
		root.SetArgs([]string{"verify", "--expect", expectPath, "/nonexistent/trace.jsonl"})

		err := root.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening input")
	})
}

func TestDigestCommand(t *testing.T) {
	t.Parallel()

	t.Run("prints a stable digest", func(t *testing.T) {
		t.Parallel()
		tracePath := writeTestFile(t, "trace.jsonl", testTrace)

		run := func() string {
			root := rootCmd()
			root.SetArgs([]string{"digest", tracePath})
			var out bytes.Buffer
			root.SetOut(&out)
			require.NoError(t, root.Execute())
			return strings.TrimSpace(out.String())
		}

		d := run()
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), d)
		assert.Equal(t, d, run())
	})

	t.Run("volatile attributes change the digest", func(t *testing.T) {
		t.Parallel()
		tracePath := writeTestFile(t, "trace.jsonl", testTrace)

		run := func(args ...string) string {
			root := rootCmd()
			root.SetArgs(append([]string{"digest", tracePath}, args...))
			var out bytes.Buffer
			root.SetOut(&out)
			require.NoError(t, root.Execute())
			return strings.TrimSpace(out.String())
		}

		assert.NotEqual(t, run(), run("--volatile", "db.system"))
	})
}

func TestSummaryCommand(t *testing.T) {
	t.Parallel()

	tracePath := writeTestFile(t, "trace.jsonl", testTrace)
	root := rootCmd()
	root.SetArgs([]string{"summary", tracePath})
	var out bytes.Buffer
	root.SetOut(&out)

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "clnrm.run")
	assert.Contains(t, out.String(), "db.query")
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	t.Run("valid expectations", func(t *testing.T) {
		t.Parallel()
		path := writeTestFile(t, "expect.toml", passingExpectations)

		root := rootCmd()
		root.SetArgs([]string{"validate", path})
		var out bytes.Buffer
		root.SetOut(&out)

		err := root.Execute()
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Configuration valid")
		assert.Contains(t, out.String(), "2 span expectations")
	})

	t.Run("invalid expectations", func(t *testing.T) {
		t.Parallel()
		path := writeTestFile(t, "expect.toml", "[[span]]\nkind = \"internal\"\n")

		root := rootCmd()
		root.SetArgs([]string{"validate", path})

		err := root.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name is required")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		root := rootCmd()
		root.SetArgs([]string{"validate", "/nonexistent/expect.toml"})

		err := root.Execute()
		require.Error(t, err)
	})

	t.Run("no args", func(t *testing.T) {
		t.Parallel()
		root := rootCmd()
		root.SetArgs([]string{"validate"})

		err := root.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing expectation file")
	})
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	root := rootCmd()
	root.SetArgs([]string{"version"})
	var out bytes.Buffer
	root.SetOut(&out)

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "tracecheck")
}
