// Package report renders analysis results as SARIF 2.1.0 or plain JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/picatz/taintflow"
	"github.com/picatz/taintflow/score"
)

// Tool identification written into reports.
const (
	ToolName    = "taintflow"
	ToolVersion = "0.1.0"
	ToolURI     = "https://github.com/picatz/taintflow"

	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

// Option configures a writer.
type Option func(*options)

type options struct {
	indent  bool
	version string
}

// WithIndent pretty prints the output.
func WithIndent() Option {
	return func(o *options) { o.indent = true }
}

// WithVersion overrides the tool version written to the report.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

func newOptions(opts []Option) *options {
	o := &options{version: ToolVersion}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func encode(w io.Writer, v any, o *options) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if o.indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// SARIF is a SARIF log.
type SARIF struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []SARIFRun `json:"runs"`
}

// SARIFRun is a single analysis run.
type SARIFRun struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analyzer.
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver is the analyzer component that produced the results.
type Driver struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	InformationURI string `json:"informationUri,omitempty"`
	Rules          []Rule `json:"rules,omitempty"`
}

// Rule describes one finding category.
type Rule struct {
	ID               string  `json:"id"`
	Name             string  `json:"name,omitempty"`
	ShortDescription Message `json:"shortDescription"`
}

// Result is one finding.
type Result struct {
	RuleID     string         `json:"ruleId"`
	RuleIndex  int            `json:"ruleIndex"`
	Level      string         `json:"level"`
	Message    Message        `json:"message"`
	Locations  []Location     `json:"locations"`
	CodeFlows  []CodeFlow     `json:"codeFlows,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Message is a plain text message.
type Message struct {
	Text string `json:"text"`
}

// Location points at an artifact, or carries only a message inside a
// thread flow.
type Location struct {
	PhysicalLocation *PhysicalLocation `json:"physicalLocation,omitempty"`
	Message          *Message          `json:"message,omitempty"`
}

// PhysicalLocation locates an artifact.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
}

// ArtifactLocation names an artifact by URI.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// CodeFlow is the path a finding takes through the program.
type CodeFlow struct {
	ThreadFlows []ThreadFlow `json:"threadFlows"`
}

// ThreadFlow is an ordered list of steps.
type ThreadFlow struct {
	Locations []ThreadFlowLocation `json:"locations"`
}

// ThreadFlowLocation is one step of a thread flow.
type ThreadFlowLocation struct {
	Location Location `json:"location"`
}

// Level maps a risk bucket to a SARIF result level.
func Level(r score.Risk) string {
	switch r {
	case score.Critical, score.High:
		return "error"
	case score.Info:
		return "note"
	default:
		return "warning"
	}
}

// NewSARIF converts results into a SARIF log with one run. Rules are
// derived from the finding categories, sorted by ID.
func NewSARIF(results taintflow.Results, opts ...Option) *SARIF {
	o := newOptions(opts)

	ruleIndex := make(map[string]int)
	var ids []string
	names := make(map[string]string)
	for _, v := range results {
		if _, ok := names[v.Category]; !ok {
			names[v.Category] = v.VulnType()
			ids = append(ids, v.Category)
		}
	}
	sort.Strings(ids)
	rules := make([]Rule, len(ids))
	for i, id := range ids {
		ruleIndex[id] = i
		rules[i] = Rule{
			ID:               id,
			Name:             names[id],
			ShortDescription: Message{Text: fmt.Sprintf("Untrusted data reaches a %s sink", id)},
		}
	}

	out := make([]Result, 0, len(results))
	for _, v := range results {
		out = append(out, sarifResult(v, ruleIndex[v.Category]))
	}

	return &SARIF{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []SARIFRun{{
			Tool: Tool{Driver: Driver{
				Name:           ToolName,
				Version:        o.version,
				InformationURI: ToolURI,
				Rules:          rules,
			}},
			Results: out,
		}},
	}
}

func sarifResult(v *taintflow.Vulnerability, index int) Result {
	risk := v.Risk
	if risk == "" {
		risk = "UNKNOWN"
	}

	steps := make([]ThreadFlowLocation, len(v.Trace))
	for i, step := range v.Trace {
		steps[i] = ThreadFlowLocation{Location: Location{Message: &Message{Text: step}}}
	}

	return Result{
		RuleID:    v.Category,
		RuleIndex: index,
		Level:     Level(v.Risk),
		Message: Message{Text: fmt.Sprintf("[%s] Score: %.1f | %s flow from %s to %s",
			risk, v.Score, v.Category, v.Source, v.Sink)},
		Locations: []Location{{
			PhysicalLocation: &PhysicalLocation{ArtifactLocation: ArtifactLocation{URI: v.Sink}},
		}},
		CodeFlows: []CodeFlow{{ThreadFlows: []ThreadFlow{{Locations: steps}}}},
		Properties: map[string]any{
			"score":      v.Score,
			"confidence": v.Confidence,
			"riskLevel":  string(v.Risk),
			"fullFlow":   v.FullFlow,
		},
	}
}

// WriteSARIF writes results to w as a SARIF log.
func WriteSARIF(w io.Writer, results taintflow.Results, opts ...Option) error {
	o := newOptions(opts)
	if err := encode(w, NewSARIF(results, opts...), o); err != nil {
		return fmt.Errorf("failed to encode SARIF report: %w", err)
	}
	return nil
}
