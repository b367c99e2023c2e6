package callgraphutil

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/picatz/taintflow/callgraph"
	"github.com/picatz/taintflow/ir"
)

// MatchStrategy represents different ways to match method signatures
type MatchStrategy int

const (
	// MatchExact requires an exact string match (default)
	MatchExact MatchStrategy = iota
	// MatchFuzzy uses substring matching
	MatchFuzzy
	// MatchGlob uses shell-style pattern matching with *, ?, []
	MatchGlob
	// MatchRegex uses regular expression matching
	MatchRegex
)

// String returns a human-readable description of the match strategy
func (m MatchStrategy) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	case MatchGlob:
		return "glob"
	case MatchRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// ParseMatchStrategy parses a strategy string into a MatchStrategy
func ParseMatchStrategy(strategy string) MatchStrategy {
	switch strings.ToLower(strategy) {
	case "fuzzy", "fuzz", "substring", "contains":
		return MatchFuzzy
	case "glob", "pattern":
		return MatchGlob
	case "regex", "regexp", "re":
		return MatchRegex
	default:
		return MatchExact
	}
}

// SignatureMatcher matches method signatures with one of several strategies
type SignatureMatcher struct {
	pattern  string
	strategy MatchStrategy
	regex    *regexp.Regexp // compiled regex for MatchRegex strategy
}

// NewSignatureMatcher creates a new matcher with explicit strategy
func NewSignatureMatcher(pattern string, strategy MatchStrategy) (*SignatureMatcher, error) {
	matcher := &SignatureMatcher{
		pattern:  pattern,
		strategy: strategy,
	}

	// Pre-compile regex if needed
	if strategy == MatchRegex {
		regex, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern '%s': %w", pattern, err)
		}
		matcher.regex = regex
	}

	return matcher, nil
}

// NewSignatureMatcherFromString creates a matcher by parsing a pattern with optional prefix
// Supported formats:
//   - "exact:pattern" - exact matching
//   - "fuzzy:pattern" - substring matching
//   - "glob:pattern" - glob pattern matching
//   - "regex:pattern" - regular expression matching
//   - "pattern" - defaults to exact matching
func NewSignatureMatcherFromString(input string) (*SignatureMatcher, error) {
	var strategy MatchStrategy
	var pattern string

	// Check for explicit strategy prefixes
	if strings.Contains(input, ":") {
		parts := strings.SplitN(input, ":", 2)
		if len(parts) == 2 {
			strategyStr := strings.ToLower(parts[0])
			pattern = parts[1]

			switch strategyStr {
			case "exact":
				strategy = MatchExact
			case "fuzzy", "fuzz", "substring":
				strategy = MatchFuzzy
			case "glob", "pattern":
				strategy = MatchGlob
			case "regex", "regexp", "re":
				strategy = MatchRegex
			default:
				// Not a recognized strategy prefix, treat entire string as exact pattern
				strategy = MatchExact
				pattern = input
			}
		} else {
			strategy = MatchExact
			pattern = input
		}
	} else {
		// No prefix, default to exact matching
		strategy = MatchExact
		pattern = input
	}

	return NewSignatureMatcher(pattern, strategy)
}

// Match reports whether sig matches according to the strategy. Glob and
// fuzzy patterns are also tried against the bare method name so that
// "glob:exec*" works without spelling out the full signature.
func (m *SignatureMatcher) Match(sig string) bool {
	if m.match(sig) {
		return true
	}
	if m.strategy == MatchFuzzy || m.strategy == MatchGlob {
		if s, err := ir.ParseSignature(sig); err == nil {
			return m.match(s.Name)
		}
	}
	return false
}

func (m *SignatureMatcher) match(s string) bool {
	switch m.strategy {
	case MatchExact:
		return s == m.pattern
	case MatchFuzzy:
		return strings.Contains(s, m.pattern)
	case MatchGlob:
		matched, err := path.Match(m.pattern, s)
		if err != nil {
			// Invalid glob pattern, fall back to exact match
			return s == m.pattern
		}
		return matched
	case MatchRegex:
		if m.regex == nil {
			return false
		}
		return m.regex.MatchString(s)
	default:
		return false
	}
}

// Strategy returns the matching strategy being used
func (m *SignatureMatcher) Strategy() MatchStrategy {
	return m.strategy
}

// Pattern returns the pattern being matched
func (m *SignatureMatcher) Pattern() string {
	return m.pattern
}

// String returns a string representation of the matcher
func (m *SignatureMatcher) String() string {
	return fmt.Sprintf("%s:%s", m.strategy.String(), m.pattern)
}

// PathsSearchCallToWithMatcher returns paths from start to every node whose
// signature matches the given matcher.
func PathsSearchCallToWithMatcher(start *callgraph.Node, matcher *SignatureMatcher) Paths {
	return PathsSearch(start, func(n *callgraph.Node) bool {
		return n != nil && matcher.Match(n.Sig)
	})
}

// PathsSearchCallToAdvanced parses pattern with NewSignatureMatcherFromString
// and returns the paths from start to every matching node, along with the
// strategy that was detected.
func PathsSearchCallToAdvanced(start *callgraph.Node, pattern string) (Paths, MatchStrategy, error) {
	matcher, err := NewSignatureMatcherFromString(pattern)
	if err != nil {
		return nil, MatchExact, err
	}

	return PathsSearchCallToWithMatcher(start, matcher), matcher.Strategy(), nil
}

// MatchingNodes returns every node of g whose signature matches.
func MatchingNodes(g *callgraph.Graph, matcher *SignatureMatcher) []*callgraph.Node {
	var out []*callgraph.Node
	for _, n := range g.Nodes {
		if matcher.Match(n.Sig) {
			out = append(out, n)
		}
	}
	return out
}
