// Violation and report types shared by all validators
package verdict

import "fmt"

// Section identifies which validator produced a violation.
type Section string

const (
	SectionSpan        Section = "span"
	SectionGraph       Section = "graph"
	SectionCount       Section = "count"
	SectionWindow      Section = "window"
	SectionOrder       Section = "order"
	SectionStatus      Section = "status"
	SectionHermeticity Section = "hermeticity"
)

// sectionOrder is the fixed presentation order of validator sections.
// Reports are reproducible byte-for-byte, so this never changes at runtime.
var sectionOrder = []Section{
	SectionSpan,
	SectionGraph,
	SectionCount,
	SectionWindow,
	SectionOrder,
	SectionStatus,
	SectionHermeticity,
}

// Violation is one concrete validator finding. Violations are values, not
// errors: a failing expectation is the intended output of the engine.
type Violation struct {
	Section   Section `json:"section"`
	Message   string  `json:"message"`
	SpanName  string  `json:"span_name,omitempty"`
	SpanID    string  `json:"span_id,omitempty"`
	Attribute string  `json:"attribute,omitempty"`
	Expected  string  `json:"expected,omitempty"`
	Actual    string  `json:"actual,omitempty"`
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s", v.Section, v.Message)
}

// Report is the aggregated outcome of one validation run.
type Report struct {
	Violations []Violation `json:"violations"`
	Pass       bool        `json:"pass"`
}

// newReport derives the pass flag from the violation list.
func newReport(violations []Violation) Report {
	if violations == nil {
		violations = []Violation{}
	}
	return Report{Violations: violations, Pass: len(violations) == 0}
}
