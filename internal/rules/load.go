package rules

import (
	"fmt"
	"regexp"
)

// ConfigError reports an invalid rule-set configuration, naming the
// offending rule's position (1-based, as it appeared in the source list)
// so an operator can find it without reading internal indices.
type ConfigError struct {
	RuleIndex int // 1-based; 0 means the error is not specific to one rule
	Reason    string
}

func (e *ConfigError) Error() string {
	if e.RuleIndex == 0 {
		return fmt.Sprintf("rule set: %s", e.Reason)
	}
	return fmt.Sprintf("rule %d: %s", e.RuleIndex, e.Reason)
}

// RuleSpec is the loader's input shape for one configured rule, typically
// produced by unmarshaling a YAML document (see internal/config).
type RuleSpec struct {
	// Exactly one of Default / NativeTerminal may be true; otherwise this
	// is a WindowRule and at least one of Class/Title must be set.
	Default        bool
	NativeTerminal bool

	Class       string // regex source, "" or "*" means wildcard
	Title       string // regex source, "" or "*" means wildcard
	Layer       string
	VirtualKey  string
	RawActions  []RawVk
	Fallthrough bool
}

// Set is a parsed, validated, immutable rule set.
type Set struct {
	defaultLayer   string // "" if no DefaultRule was configured
	hasDefault     bool
	nativeTerminal *Rule // nil if none configured
	windows        []Rule
}

// HasDefaultRule reports whether the configuration carried an explicit
// DefaultRule (as opposed to relying on Kanata's first LayerChange).
func (s *Set) HasDefaultRule() bool { return s.hasDefault }

// DefaultLayer returns the configured default layer. Only meaningful when
// HasDefaultRule is true.
func (s *Set) DefaultLayer() string { return s.defaultLayer }

// Load validates specs and compiles their patterns, returning an immutable
// Set. Order of WindowRules is preserved.
func Load(specs []RuleSpec) (*Set, error) {
	set := &Set{}

	for i, spec := range specs {
		idx := i + 1

		switch {
		case spec.Default:
			if set.hasDefault {
				return nil, &ConfigError{RuleIndex: idx, Reason: "a second default rule was configured; at most one is allowed"}
			}
			if spec.Class != "" || spec.Title != "" {
				return nil, &ConfigError{RuleIndex: idx, Reason: "default rule must not carry class/title matchers"}
			}
			set.hasDefault = true
			set.defaultLayer = spec.Layer

		case spec.NativeTerminal:
			if set.nativeTerminal != nil {
				return nil, &ConfigError{RuleIndex: idx, Reason: "a second native-terminal rule was configured; at most one is allowed"}
			}
			if spec.Class != "" || spec.Title != "" {
				return nil, &ConfigError{RuleIndex: idx, Reason: "native-terminal rule must not carry class/title matchers"}
			}
			r := Rule{
				kind:        kindNativeTerminal,
				SourceIndex: idx,
				Layer:       spec.Layer,
				VirtualKey:  spec.VirtualKey,
				RawActions:  spec.RawActions,
			}
			set.nativeTerminal = &r

		default:
			if spec.Class == "" && spec.Title == "" {
				return nil, &ConfigError{RuleIndex: idx, Reason: "window rule must specify at least one of class or title"}
			}
			classPattern, err := compilePattern(spec.Class)
			if err != nil {
				return nil, &ConfigError{RuleIndex: idx, Reason: fmt.Sprintf("invalid class pattern: %s", err)}
			}
			titlePattern, err := compilePattern(spec.Title)
			if err != nil {
				return nil, &ConfigError{RuleIndex: idx, Reason: fmt.Sprintf("invalid title pattern: %s", err)}
			}
			set.windows = append(set.windows, Rule{
				kind:         kindWindow,
				SourceIndex:  idx,
				Layer:        spec.Layer,
				VirtualKey:   spec.VirtualKey,
				RawActions:   spec.RawActions,
				Fallthrough:  spec.Fallthrough,
				classPattern: classPattern,
				titlePattern: titlePattern,
			})
		}
	}

	return set, nil
}

// compilePattern compiles src as an anchorless RE2 pattern. "" and "*" are
// the wildcard sentinel and compile to nil (match-anything, including the
// empty string).
func compilePattern(src string) (*regexp.Regexp, error) {
	if src == "" || src == "*" {
		return nil, nil
	}
	// Go's regexp package is RE2: no backreferences, no lookaround. That is
	// exactly the dialect the rule model requires, so unsupported
	// constructs are rejected by Compile itself.
	return regexp.Compile(src)
}
