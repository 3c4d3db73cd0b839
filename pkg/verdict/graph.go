// Graph topology validator for the span parent→child relation
// Required edges, forbidden edges, and cycle detection over span ids
package verdict

import (
	"fmt"
	"strings"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/trace"
)

// ValidateGraph checks required edges, forbidden edges, and acyclicity of the
// span graph. Edges are name pairs; because names are non-unique an edge
// exists if any same-named candidate pair is linked by parent_span_id.
func ValidateGraph(spans []trace.Span, exp *expect.GraphExpectation) []Violation {
	var violations []Violation
	byName := trace.IndexByName(spans)
	byID := trace.IndexByID(spans)

	for _, edge := range exp.MustInclude {
		parentName, childName := edge[0], edge[1]
		parents, children := byName[parentName], byName[childName]
		if len(parents) == 0 {
			violations = append(violations, Violation{
				Section:  SectionGraph,
				Message:  fmt.Sprintf("required edge %q -> %q: parent span %q not found", parentName, childName, parentName),
				SpanName: parentName,
			})
			continue
		}
		if len(children) == 0 {
			violations = append(violations, Violation{
				Section:  SectionGraph,
				Message:  fmt.Sprintf("required edge %q -> %q: child span %q not found", parentName, childName, childName),
				SpanName: childName,
			})
			continue
		}
		if !edgeExists(spans, parents, children) {
			violations = append(violations, Violation{
				Section:  SectionGraph,
				Message:  fmt.Sprintf("required edge %q -> %q not found in trace", parentName, childName),
				SpanName: childName,
				Expected: parentName,
			})
		}
	}

	for _, edge := range exp.MustNotCross {
		parentName, childName := edge[0], edge[1]
		// Absent names cannot form the forbidden edge.
		parents, children := byName[parentName], byName[childName]
		if len(parents) == 0 || len(children) == 0 {
			continue
		}
		if edgeExists(spans, parents, children) {
			violations = append(violations, Violation{
				Section:  SectionGraph,
				Message:  fmt.Sprintf("forbidden edge %q -> %q found in trace", parentName, childName),
				SpanName: childName,
				Actual:   parentName,
			})
		}
	}

	if exp.Acyclic {
		violations = append(violations, detectCycles(spans, byID)...)
	}

	return violations
}

// edgeExists reports whether any candidate child's parent_span_id points at
// any candidate parent.
func edgeExists(spans []trace.Span, parents, children []int) bool {
	parentIDs := make(map[string]bool, len(parents))
	for _, i := range parents {
		parentIDs[spans[i].SpanID] = true
	}
	for _, i := range children {
		child := &spans[i]
		if child.ParentSpanID != nil && parentIDs[*child.ParentSpanID] {
			return true
		}
	}
	return false
}

// detectCycles walks the parent relation from every span with a DFS visiting
// set. One violation is emitted per distinct cycle; the shared visited set
// prevents the same cycle from being reported once per member.
func detectCycles(spans []trace.Span, byID map[string]int) []Violation {
	var violations []Violation
	visited := make(map[string]bool, len(spans))

	for i := range spans {
		if visited[spans[i].SpanID] {
			continue
		}
		inPath := make(map[string]bool)
		var path []string
		if cycle := cycleDFS(spans, byID, i, visited, inPath, path); cycle != nil {
			violations = append(violations, Violation{
				Section:  SectionGraph,
				Message:  fmt.Sprintf("cycle detected in span graph: %s", strings.Join(cycle, " -> ")),
				SpanName: cycle[0],
			})
		}
	}

	return violations
}

func cycleDFS(spans []trace.Span, byID map[string]int, i int, visited, inPath map[string]bool, path []string) []string {
	span := &spans[i]
	visited[span.SpanID] = true
	inPath[span.SpanID] = true
	path = append(path, span.Name)

	if span.ParentSpanID != nil {
		if pi, ok := byID[*span.ParentSpanID]; ok {
			parent := &spans[pi]
			if inPath[parent.SpanID] {
				return append(path, parent.Name)
			}
			if !visited[parent.SpanID] {
				if cycle := cycleDFS(spans, byID, pi, visited, inPath, path); cycle != nil {
					return cycle
				}
			}
		}
	}

	delete(inPath, span.SpanID)
	return nil
}
