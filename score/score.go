// Package score turns a raw finding into a risk assessment: the sink's
// base severity scaled by how reachable the entry point is and whether an
// authentication barrier guards it.
package score

import (
	"fmt"
	"strings"

	"github.com/picatz/taintflow/entrypoint"
	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/rules"
)

// Risk is a coarse severity bucket.
type Risk string

const (
	Critical Risk = "CRITICAL"
	High     Risk = "HIGH"
	Medium   Risk = "MEDIUM"
	Low      Risk = "LOW"
	Info     Risk = "INFO"
)

// Risks lists every bucket from most to least severe.
var Risks = []Risk{Critical, High, Medium, Low, Info}

// RiskFor returns the bucket for a final score.
func RiskFor(score float64) Risk {
	switch {
	case score >= 9.0:
		return Critical
	case score >= 7.0:
		return High
	case score >= 4.0:
		return Medium
	case score >= 1.0:
		return Low
	default:
		return Info
	}
}

// Reachability factors.
const (
	ReachableFromRoute = 1.0
	Unrouted           = 0.1
)

// Assessment is the scored view of one finding.
type Assessment struct {
	Score        float64
	Confidence   float64
	Risk         Risk
	Reachability float64
	AuthBarrier  float64
}

func (a Assessment) String() string {
	return fmt.Sprintf("%s %.1f (confidence %.1f)", a.Risk, a.Score, a.Confidence)
}

// Scorer assesses findings against the program they were found in.
type Scorer struct {
	prog ir.Program
	auth *AuthDetector
}

// NewScorer returns a scorer using cfg to recognise authentication
// annotations.
func NewScorer(prog ir.Program, cfg AuthConfig) *Scorer {
	return &Scorer{prog: prog, auth: NewAuthDetector(prog, cfg)}
}

// Assess scores a finding for rule. route is the entry point the flow
// starts at, or nil when it could not be tied to one.
//
//	score = base severity × reachability × auth barrier
//
// The barrier is only consulted for routed findings, using the route's
// resolved handler method.
func (s *Scorer) Assess(rule *rules.SinkRule, fullFlow bool, route *entrypoint.Route) Assessment {
	a := Assessment{
		Reachability: Unrouted,
		AuthBarrier:  NoBarrier,
		Confidence:   0.5,
	}
	if fullFlow {
		a.Confidence = 1.0
	}

	if route != nil {
		a.Reachability = ReachableFromRoute
		if m := entrypoint.Resolve(s.prog, route); m != nil {
			a.AuthBarrier = s.auth.Barrier(m)
		}
	}

	base := rules.DefaultSeverity
	if rule != nil {
		base = rule.BaseScore()
	}
	a.Score = base * a.Reachability * a.AuthBarrier
	a.Risk = RiskFor(a.Score)
	return a
}

// Barrier factors.
const (
	NoBarrier = 1.0
	Barrier   = 0.5
)

// AuthConfig names annotation types, in dotted form, that are known to
// require authentication or to explicitly waive it.
type AuthConfig struct {
	BlockingAnnotations []string `yaml:"blocking_annotations"`
	BypassAnnotations   []string `yaml:"bypass_annotations"`
}

var (
	bypassKeywords = []string{"public", "anon", "open", "permitall", "ignore"}
	blockKeywords  = []string{"auth", "secur", "login", "perm", "guard", "role", "admin", "user"}
)

// AuthDetector estimates whether a handler sits behind an authentication
// check by looking at its annotations and those of its class.
type AuthDetector struct {
	prog     ir.Program
	blocking map[string]bool
	bypass   map[string]bool
}

// NewAuthDetector returns a detector for prog.
func NewAuthDetector(prog ir.Program, cfg AuthConfig) *AuthDetector {
	d := &AuthDetector{
		prog:     prog,
		blocking: make(map[string]bool),
		bypass:   make(map[string]bool),
	}
	for _, a := range cfg.BlockingAnnotations {
		d.blocking[annotationClass(a)] = true
	}
	for _, a := range cfg.BypassAnnotations {
		d.bypass[annotationClass(a)] = true
	}
	return d
}

// Barrier returns 0.5 when m appears to require authentication and 1.0
// otherwise. Method annotations are decisive when any of them says
// anything; the class annotations are consulted only when none does.
func (d *AuthDetector) Barrier(m *ir.Method) float64 {
	if m == nil {
		return NoBarrier
	}
	if f, ok := d.check(m.Annotations); ok {
		return f
	}
	if d.prog != nil {
		if c := d.prog.Class(m.Class); c != nil {
			if f, ok := d.check(c.Annotations); ok {
				return f
			}
		}
	}
	return NoBarrier
}

// check returns the factor of the first annotation that indicates either
// way, in declaration order.
func (d *AuthDetector) check(annotations []ir.Annotation) (float64, bool) {
	for _, a := range annotations {
		class := annotationClass(a.Type)
		if d.blocking[class] {
			return Barrier, true
		}
		if d.bypass[class] {
			return NoBarrier, true
		}

		name := strings.ToLower(a.SimpleName())
		if containsAny(name, bypassKeywords) {
			return NoBarrier, true
		}
		if containsAny(name, blockKeywords) {
			return Barrier, true
		}
	}
	return 0, false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// annotationClass normalises a type descriptor such as
// "Lcom/example/Auth;" to "com.example.Auth".
func annotationClass(t string) string {
	t = strings.TrimSpace(t)
	if strings.HasPrefix(t, "L") && strings.HasSuffix(t, ";") {
		t = t[1 : len(t)-1]
	}
	return strings.ReplaceAll(t, "/", ".")
}
