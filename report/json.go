package report

import (
	"fmt"
	"io"

	"github.com/picatz/taintflow"
	"github.com/picatz/taintflow/score"
)

// Finding is the JSON form of a vulnerability.
type Finding struct {
	Category     string   `json:"category"`
	VulnType     string   `json:"vulnType,omitempty"`
	Source       string   `json:"source"`
	Sink         string   `json:"sink"`
	Trace        []string `json:"trace"`
	FullFlow     bool     `json:"fullFlow"`
	Route        string   `json:"route,omitempty"`
	Score        float64  `json:"score"`
	Confidence   float64  `json:"confidence"`
	Risk         string   `json:"risk"`
	Reachability float64  `json:"reachability"`
	AuthBarrier  float64  `json:"authBarrier"`
}

// Summary is the JSON report: tool information, per risk counts, and the
// findings in result order.
type Summary struct {
	Tool     string         `json:"tool"`
	Version  string         `json:"version"`
	Total    int            `json:"total"`
	Risk     map[string]int `json:"risk"`
	Findings []Finding      `json:"findings"`
}

// NewSummary converts results into the JSON report form.
func NewSummary(results taintflow.Results, opts ...Option) *Summary {
	o := newOptions(opts)
	s := &Summary{
		Tool:     ToolName,
		Version:  o.version,
		Total:    len(results),
		Risk:     make(map[string]int),
		Findings: make([]Finding, 0, len(results)),
	}
	for _, r := range score.Risks {
		s.Risk[string(r)] = 0
	}
	for r, n := range results.Risk() {
		s.Risk[string(r)] = n
	}
	for _, v := range results {
		f := Finding{
			Category:     v.Category,
			VulnType:     v.VulnType(),
			Source:       v.Source,
			Sink:         v.Sink,
			Trace:        v.Trace,
			FullFlow:     v.FullFlow,
			Score:        v.Score,
			Confidence:   v.Confidence,
			Risk:         string(v.Risk),
			Reachability: v.Reachability,
			AuthBarrier:  v.AuthBarrier,
		}
		if v.Route != nil {
			f.Route = v.Route.Method + " " + v.Route.Path
		}
		s.Findings = append(s.Findings, f)
	}
	return s
}

// WriteJSON writes results to w as a JSON document.
func WriteJSON(w io.Writer, results taintflow.Results, opts ...Option) error {
	o := newOptions(opts)
	if err := encode(w, NewSummary(results, opts...), o); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}
