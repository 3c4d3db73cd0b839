// Declarative expectation configuration, loading, and validation
// Parses the TOML/YAML document that states what a captured trace must prove
package expect

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andrewh/tracecheck/pkg/trace"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the aggregate expectation document. Every section is optional;
// an absent section means the corresponding validator is skipped entirely.
type Config struct {
	Span        []SpanExpectation       `toml:"span,omitempty" yaml:"span,omitempty"`
	Graph       *GraphExpectation       `toml:"graph,omitempty" yaml:"graph,omitempty"`
	Counts      *CountExpectation       `toml:"counts,omitempty" yaml:"counts,omitempty"`
	Window      []WindowExpectation     `toml:"window,omitempty" yaml:"window,omitempty"`
	Order       *OrderExpectation       `toml:"order,omitempty" yaml:"order,omitempty"`
	Status      *StatusExpectation      `toml:"status,omitempty" yaml:"status,omitempty"`
	Hermeticity *HermeticityExpectation `toml:"hermeticity,omitempty" yaml:"hermeticity,omitempty"`

	// VolatileAttrs lists attribute keys stripped from the digest view
	// (capture-time noise such as export wall clocks or correlation ids).
	VolatileAttrs []string `toml:"volatile_attrs,omitempty" yaml:"volatile_attrs,omitempty"`
}

// Sections lists the configured validator sections in validation order,
// comma-separated, for human-readable output.
func (c *Config) Sections() string {
	var sections []string
	if len(c.Span) > 0 {
		sections = append(sections, "span")
	}
	if c.Graph != nil {
		sections = append(sections, "graph")
	}
	if c.Counts != nil {
		sections = append(sections, "counts")
	}
	if len(c.Window) > 0 {
		sections = append(sections, "window")
	}
	if c.Order != nil {
		sections = append(sections, "order")
	}
	if c.Status != nil {
		sections = append(sections, "status")
	}
	if c.Hermeticity != nil {
		sections = append(sections, "hermeticity")
	}
	if len(sections) == 0 {
		return "none"
	}
	return strings.Join(sections, ", ")
}

// SpanExpectation describes one expected span by name.
type SpanExpectation struct {
	Name       string               `toml:"name" yaml:"name"`
	Kind       string               `toml:"kind,omitempty" yaml:"kind,omitempty"`
	Parent     string               `toml:"parent,omitempty" yaml:"parent,omitempty"`
	Attrs      *AttrExpectation     `toml:"attrs,omitempty" yaml:"attrs,omitempty"`
	Events     *EventExpectation    `toml:"events,omitempty" yaml:"events,omitempty"`
	DurationMs *DurationExpectation `toml:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
}

// AttrExpectation holds required (All) and at-least-one (Any) attribute sets.
// All maps keys to exact expected values; Any lists "key=value" patterns.
type AttrExpectation struct {
	All map[string]string `toml:"all,omitempty" yaml:"all,omitempty"`
	Any []string          `toml:"any,omitempty" yaml:"any,omitempty"`
}

// EventExpectation holds required (All) and at-least-one (Any) event names.
type EventExpectation struct {
	All []string `toml:"all,omitempty" yaml:"all,omitempty"`
	Any []string `toml:"any,omitempty" yaml:"any,omitempty"`
}

// DurationExpectation bounds a span's duration in milliseconds.
type DurationExpectation struct {
	Min *float64 `toml:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `toml:"max,omitempty" yaml:"max,omitempty"`
}

// GraphExpectation describes required and forbidden parent→child edges and
// an optional acyclicity requirement.
type GraphExpectation struct {
	MustInclude  [][]string `toml:"must_include,omitempty" yaml:"must_include,omitempty"`
	MustNotCross [][]string `toml:"must_not_cross,omitempty" yaml:"must_not_cross,omitempty"`
	Acyclic      bool       `toml:"acyclic,omitempty" yaml:"acyclic,omitempty"`
}

// CountBound constrains a count. When Eq is set it takes precedence and
// Gte/Lte are ignored; this mirrors the documented behaviour of the original
// configuration surface and is deliberately not "fixed".
type CountBound struct {
	Gte *int `toml:"gte,omitempty" yaml:"gte,omitempty"`
	Lte *int `toml:"lte,omitempty" yaml:"lte,omitempty"`
	Eq  *int `toml:"eq,omitempty" yaml:"eq,omitempty"`
}

// Unconstrained reports whether the bound imposes no constraint at all.
func (b *CountBound) Unconstrained() bool {
	return b == nil || (b.Gte == nil && b.Lte == nil && b.Eq == nil)
}

// CountExpectation constrains span, event, and error cardinalities.
type CountExpectation struct {
	SpansTotal  *CountBound           `toml:"spans_total,omitempty" yaml:"spans_total,omitempty"`
	EventsTotal *CountBound           `toml:"events_total,omitempty" yaml:"events_total,omitempty"`
	ErrorsTotal *CountBound           `toml:"errors_total,omitempty" yaml:"errors_total,omitempty"`
	ByName      map[string]CountBound `toml:"by_name,omitempty" yaml:"by_name,omitempty"`
}

// WindowExpectation requires every span named in Contains to fall inside the
// temporal window of a span named Outer.
type WindowExpectation struct {
	Outer    string   `toml:"outer" yaml:"outer"`
	Contains []string `toml:"contains" yaml:"contains"`
}

// OrderExpectation constrains temporal ordering between named spans.
type OrderExpectation struct {
	MustPrecede [][]string `toml:"must_precede,omitempty" yaml:"must_precede,omitempty"`
	MustFollow  [][]string `toml:"must_follow,omitempty" yaml:"must_follow,omitempty"`
}

// StatusExpectation constrains span status codes, globally or by glob pattern.
type StatusExpectation struct {
	All    string            `toml:"all,omitempty" yaml:"all,omitempty"`
	ByName map[string]string `toml:"by_name,omitempty" yaml:"by_name,omitempty"`
}

// HermeticityExpectation describes isolation requirements.
type HermeticityExpectation struct {
	NoExternalServices bool                  `toml:"no_external_services,omitempty" yaml:"no_external_services,omitempty"`
	ResourceAttrs      *ResourceAttrsSection `toml:"resource_attrs,omitempty" yaml:"resource_attrs,omitempty"`
	SpanAttrs          *SpanAttrsSection     `toml:"span_attrs,omitempty" yaml:"span_attrs,omitempty"`
}

// ResourceAttrsSection lists resource attributes that must match exactly.
type ResourceAttrsSection struct {
	MustMatch map[string]string `toml:"must_match,omitempty" yaml:"must_match,omitempty"`
}

// SpanAttrsSection lists attribute keys that must not appear on any span.
type SpanAttrsSection struct {
	ForbidKeys []string `toml:"forbid_keys,omitempty" yaml:"forbid_keys,omitempty"`
}

// Load reads, decodes, and validates an expectation document. The format is
// chosen by file extension: .yaml/.yml decode as YAML, everything else as
// TOML (the native configuration surface).
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath) //nolint:gosec // user-supplied config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading expectations: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		cfg, err = decodeYAML(data)
	default:
		cfg, err = decodeTOML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeTOML(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing expectations: %w", err)
	}
	return &cfg, nil
}

func decodeYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing expectations: %w", err)
	}
	return &cfg, nil
}

// Validate rejects a malformed expectation document before any validator
// runs. The engine refuses to guess what an expectation means.
func Validate(cfg *Config) error {
	for i, exp := range cfg.Span {
		if exp.Name == "" {
			return fmt.Errorf("span expectation %d: name is required", i)
		}
		if exp.Kind != "" {
			if _, err := trace.ParseKind(exp.Kind); err != nil {
				return fmt.Errorf("span expectation %q: %w", exp.Name, err)
			}
		}
		if exp.Attrs != nil {
			for _, pattern := range exp.Attrs.Any {
				if !strings.Contains(pattern, "=") {
					return fmt.Errorf("span expectation %q: attrs.any pattern %q must be in key=value format", exp.Name, pattern)
				}
			}
		}
		if d := exp.DurationMs; d != nil {
			if d.Min != nil && *d.Min < 0 {
				return fmt.Errorf("span expectation %q: duration_ms.min must not be negative", exp.Name)
			}
			if d.Min != nil && d.Max != nil && *d.Min > *d.Max {
				return fmt.Errorf("span expectation %q: duration_ms.min (%v) exceeds max (%v)", exp.Name, *d.Min, *d.Max)
			}
		}
	}

	if g := cfg.Graph; g != nil {
		if err := validateEdges(g.MustInclude, "graph.must_include"); err != nil {
			return err
		}
		if err := validateEdges(g.MustNotCross, "graph.must_not_cross"); err != nil {
			return err
		}
	}

	if c := cfg.Counts; c != nil {
		if err := validateBound(c.SpansTotal, "counts.spans_total"); err != nil {
			return err
		}
		if err := validateBound(c.EventsTotal, "counts.events_total"); err != nil {
			return err
		}
		if err := validateBound(c.ErrorsTotal, "counts.errors_total"); err != nil {
			return err
		}
		for name, bound := range c.ByName {
			if err := validateBound(&bound, fmt.Sprintf("counts.by_name[%q]", name)); err != nil {
				return err
			}
		}
	}

	for i, w := range cfg.Window {
		if w.Outer == "" {
			return fmt.Errorf("window expectation %d: outer is required", i)
		}
		if len(w.Contains) == 0 {
			return fmt.Errorf("window expectation %q: contains must name at least one span", w.Outer)
		}
	}

	if o := cfg.Order; o != nil {
		if err := validateEdges(o.MustPrecede, "order.must_precede"); err != nil {
			return err
		}
		if err := validateEdges(o.MustFollow, "order.must_follow"); err != nil {
			return err
		}
	}

	if s := cfg.Status; s != nil {
		if s.All != "" {
			if _, err := trace.ParseStatus(s.All); err != nil {
				return fmt.Errorf("status.all: %w", err)
			}
		}
		for pattern, status := range s.ByName {
			if _, err := path.Match(pattern, ""); err != nil {
				return fmt.Errorf("status.by_name: invalid glob pattern %q: %w", pattern, err)
			}
			if _, err := trace.ParseStatus(status); err != nil {
				return fmt.Errorf("status.by_name[%q]: %w", pattern, err)
			}
		}
	}

	if h := cfg.Hermeticity; h != nil && h.SpanAttrs != nil {
		for _, key := range h.SpanAttrs.ForbidKeys {
			if key == "" {
				return fmt.Errorf("hermeticity.span_attrs.forbid_keys must not contain empty keys")
			}
		}
	}

	return nil
}

func validateEdges(edges [][]string, section string) error {
	for i, edge := range edges {
		if len(edge) != 2 {
			return fmt.Errorf("%s entry %d: expected a [first, second] pair, got %d elements", section, i, len(edge))
		}
		if edge[0] == "" || edge[1] == "" {
			return fmt.Errorf("%s entry %d: span names must not be empty", section, i)
		}
	}
	return nil
}

func validateBound(b *CountBound, section string) error {
	if b == nil {
		return nil
	}
	for label, v := range map[string]*int{"gte": b.Gte, "lte": b.Lte, "eq": b.Eq} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s.%s must not be negative", section, label)
		}
	}
	// eq overriding gte/lte is documented behaviour; only an impossible
	// gte/lte range with no eq is rejected here.
	if b.Eq == nil && b.Gte != nil && b.Lte != nil && *b.Gte > *b.Lte {
		return fmt.Errorf("%s: gte (%d) exceeds lte (%d)", section, *b.Gte, *b.Lte)
	}
	return nil
}
