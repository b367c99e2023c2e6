// Package rules holds the source and sink rules that drive a taint
// analysis, indexed by exact method signature.
package rules

import (
	"sort"
	"strings"
)

// Rule types. Only method rules are matched against signatures;
// annotation rules are retained so configurations round trip.
const (
	TypeMethod     = "method"
	TypeAnnotation = "annotation"
)

// Well known sink categories.
const (
	CategoryCodeExec        = "code-exec"
	CategoryCmdExec         = "cmd-exec"
	CategoryJNDI            = "jndi"
	CategoryDeserialization = "deserialization"
	CategorySQLi            = "sqli"
	CategorySSRF            = "ssrf"
	CategoryFileWrite       = "file-write"
	CategoryFileRead        = "file-read"
	CategoryPathTraversal   = "path-traversal"
	CategoryXXE             = "xxe"
	CategoryXSS             = "xss"
)

// DefaultSeverity is the base severity of an unrecognized category.
const DefaultSeverity = 5.0

var categorySeverity = map[string]float64{
	CategoryCodeExec:        10.0,
	CategoryCmdExec:         9.5,
	CategoryJNDI:            9.0,
	CategoryDeserialization: 8.5,
	CategorySQLi:            8.0,
	CategorySSRF:            7.5,
	CategoryFileWrite:       7.0,
	CategoryFileRead:        6.0,
	CategoryPathTraversal:   6.0,
	"path_traversal":        6.0,
	CategoryXXE:             6.0,
	CategoryXSS:             4.0,
}

// CategorySeverity returns the default base severity for a sink category.
func CategorySeverity(category string) float64 {
	if s, ok := categorySeverity[strings.ToLower(category)]; ok {
		return s
	}
	return DefaultSeverity
}

// SourceRule marks a method whose result is attacker controlled.
type SourceRule struct {
	Type      string `yaml:"type"`
	Value     string `yaml:"value,omitempty"`
	Signature string `yaml:"signature"`
}

// SinkRule marks a method that must not receive attacker controlled
// arguments.
type SinkRule struct {
	Type      string   `yaml:"type"`
	VulnType  string   `yaml:"vuln_type,omitempty"`
	Category  string   `yaml:"category"`
	Severity  *float64 `yaml:"severity,omitempty"`
	Signature string   `yaml:"signature"`
}

// BaseScore returns the rule's explicit severity, or the default for its
// category.
func (r *SinkRule) BaseScore() float64 {
	if r.Severity != nil {
		return *r.Severity
	}
	return CategorySeverity(r.Category)
}

// Name returns the most descriptive label for the rule's vulnerability
// class.
func (r *SinkRule) Name() string {
	if r.Category != "" {
		return r.Category
	}
	if r.VulnType != "" {
		return r.VulnType
	}
	return "unknown"
}

// Index is an exact-signature lookup over a rule set. It is read-only once
// built.
type Index struct {
	sources    map[string]*SourceRule
	sinks      map[string]*SinkRule
	allSources []*SourceRule
	allSinks   []*SinkRule
}

// NewIndex builds an index from the given rules. Rules whose type is not
// "method" (or empty) are kept but never match. When two rules share a
// signature the later one wins.
func NewIndex(sources []SourceRule, sinks []SinkRule) *Index {
	idx := &Index{
		sources: make(map[string]*SourceRule),
		sinks:   make(map[string]*SinkRule),
	}
	for i := range sources {
		r := &sources[i]
		idx.allSources = append(idx.allSources, r)
		if !matchable(r.Type) {
			continue
		}
		idx.sources[r.Signature] = r
	}
	for i := range sinks {
		r := &sinks[i]
		idx.allSinks = append(idx.allSinks, r)
		if !matchable(r.Type) {
			continue
		}
		idx.sinks[r.Signature] = r
	}
	return idx
}

func matchable(typ string) bool {
	return typ == "" || strings.EqualFold(typ, TypeMethod)
}

// IsSource reports whether sig is a registered source method.
func (idx *Index) IsSource(sig string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.sources[sig]
	return ok
}

// IsSink reports whether sig is a registered sink method.
func (idx *Index) IsSink(sig string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.sinks[sig]
	return ok
}

// Sink returns the sink rule registered for sig.
func (idx *Index) Sink(sig string) (*SinkRule, bool) {
	if idx == nil {
		return nil, false
	}
	r, ok := idx.sinks[sig]
	return r, ok
}

// SinkSignatures returns the sorted signatures of all matchable sinks.
func (idx *Index) SinkSignatures() []string {
	if idx == nil {
		return nil
	}
	out := make([]string, 0, len(idx.sinks))
	for sig := range idx.sinks {
		out = append(out, sig)
	}
	sort.Strings(out)
	return out
}

// Sources returns every source rule, including unmatchable ones.
func (idx *Index) Sources() []*SourceRule { return idx.allSources }

// Sinks returns every sink rule, including unmatchable ones.
func (idx *Index) Sinks() []*SinkRule { return idx.allSinks }
