package taintflow

import (
	"sort"
	"strings"

	"github.com/picatz/taintflow/entrypoint"
	"github.com/picatz/taintflow/rules"
	"github.com/picatz/taintflow/score"
)

// Vulnerability is a single finding: attacker controlled data entering at
// Source reaches the sink method Sink through the calls in Trace.
type Vulnerability struct {
	// Category is the sink rule's category, e.g. "sqli".
	Category string
	// Source is the signature of the entry method the flow starts in.
	Source string
	// Sink is the signature of the dangerous method.
	Sink string
	// Trace is the call stack from Source to Sink, both included.
	Trace []string
	// FullFlow is false when the last hop was matched against a method
	// summary rather than traced statement by statement.
	FullFlow bool
	// Rule is the sink rule that matched.
	Rule *rules.SinkRule
	// Route is the entry point Source was resolved from, if any.
	Route *entrypoint.Route

	score.Assessment
}

// Key returns the identity used to deduplicate findings.
func (v *Vulnerability) Key() string {
	return v.Category + "\x00" + v.Source + "\x00" + v.Sink
}

// VulnType returns the rule's vulnerability type label, falling back to
// the category.
func (v *Vulnerability) VulnType() string {
	if v.Rule != nil && v.Rule.VulnType != "" {
		return v.Rule.VulnType
	}
	return v.Category
}

func (v *Vulnerability) String() string {
	return "[" + v.Category + "] " + strings.Join(v.Trace, " → ")
}

// Results is a collection of unique findings.
type Results []*Vulnerability

// Sort orders findings by descending score, then by category, source and
// sink.
func (r Results) Sort() {
	sort.SliceStable(r, func(i, j int) bool {
		a, b := r[i], r[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Sink < b.Sink
	})
}

// Risk counts findings per risk bucket.
func (r Results) Risk() map[score.Risk]int {
	out := make(map[score.Risk]int)
	for _, v := range r {
		out[v.Risk]++
	}
	return out
}

// collector accumulates findings, keeping the first one per key.
type collector struct {
	seen  map[string]bool
	items Results
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

// add records v and reports whether it was new.
func (c *collector) add(v *Vulnerability) bool {
	k := v.Key()
	if c.seen[k] {
		return false
	}
	c.seen[k] = true
	c.items = append(c.items, v)
	return true
}
