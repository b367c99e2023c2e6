package taintflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/picatz/taintflow/callgraph"
	"github.com/picatz/taintflow/callgraphutil"
	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/rules"
)

// DefaultMaxDepth bounds the call stack of a single task.
const DefaultMaxDepth = 15

// AnalysisState identifies one unit of work: a method analyzed with a
// given set of tainted parameters. The engine analyzes each state at most
// once per run.
type AnalysisState struct {
	Method ir.MethodID
	Params string // ParamSet.String()
}

func newAnalysisState(m *ir.Method, params ParamSet) AnalysisState {
	return AnalysisState{Method: m.ID, Params: params.String()}
}

// task is a queued unit of work. stack holds the signatures of the
// callers that led here, not including method itself.
type task struct {
	method *ir.Method
	params ParamSet
	stack  []string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxDepth sets the call stack depth beyond which a task is dropped.
// Values below one keep the default.
func WithMaxDepth(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithReachable restricts scheduling to the given call graph nodes,
// usually the methods that can reach a sink.
func WithReachable(set *callgraphutil.NodeSet) EngineOption {
	return func(e *Engine) { e.reachable = set }
}

// WithoutSummaries disables the leaf summary shortcut so every callee is
// analyzed in full.
func WithoutSummaries() EngineOption {
	return func(e *Engine) { e.summaries = false }
}

// WithSourceRules makes calls to registered source methods taint their
// results inside every analyzed body.
func WithSourceRules() EngineOption {
	return func(e *Engine) { e.flowOpts = append(e.flowOpts, WithSources(e.rules)) }
}

// Engine is the interprocedural worklist analysis. An Engine may be Run
// several times; each run starts from empty state.
type Engine struct {
	graph     *callgraph.Graph
	rules     *rules.Index
	maxDepth  int
	reachable *callgraphutil.NodeSet
	summaries bool
	flowOpts  []FlowOption
}

// NewEngine returns an engine over the given call graph and rules.
func NewEngine(graph *callgraph.Graph, idx *rules.Index, opts ...EngineOption) *Engine {
	e := &Engine{
		graph:     graph,
		rules:     idx,
		maxDepth:  DefaultMaxDepth,
		summaries: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the state of a single Engine.Run.
type run struct {
	*Engine

	log     *callgraphutil.Logger
	queue   []*task
	visited map[AnalysisState]bool
	cache   map[ir.MethodID]*MethodSummary
	found   *collector

	truncated   int
	summaryHits int
}

// Run analyzes every entry method with all of its parameters tainted and
// returns the deduplicated findings in discovery order. Processing is
// single threaded and deterministic; cancellation is checked between
// tasks.
func (e *Engine) Run(ctx context.Context, entries []*ir.Method) (Results, error) {
	r := &run{
		Engine:  e,
		log:     callgraphutil.FromContext(ctx).WithPrefix("worklist"),
		visited: make(map[AnalysisState]bool),
		cache:   make(map[ir.MethodID]*MethodSummary),
		found:   newCollector(),
	}

	r.log.Info("starting analysis on %d entry points", len(entries))
	start := time.Now()

	for _, m := range entries {
		if !m.HasBody() {
			r.log.Debug("skipping entry point without body: %s", m.Signature())
			continue
		}
		r.schedule(m, AllParams(m.NumParams()), nil)
	}

	processed := 0
	for len(r.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return r.found.items, err
		}

		t := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		processed++

		r.analyze(t)

		if processed%1000 == 0 {
			r.log.Progress("tasks", processed, 0, time.Since(start))
			r.log.Debug("queue: %d, findings: %d", len(r.queue), len(r.found.items))
		}
	}

	r.log.Step("analysis finished",
		plural(processed, "task"),
		plural(len(r.found.items), "finding"),
		plural(r.summaryHits, "summary application"),
		plural(r.truncated, "depth truncation"),
	)

	return r.found.items, nil
}

// schedule enqueues m with the given tainted parameters unless m cannot
// reach a sink or the same state was already scheduled.
func (r *run) schedule(m *ir.Method, params ParamSet, stack []string) {
	if r.reachable != nil && !r.reachable.Contains(r.graph.NodeOf(m)) {
		r.log.Trace("pruned %s", m.Signature())
		return
	}

	state := newAnalysisState(m, params)
	if r.visited[state] {
		return
	}
	r.visited[state] = true

	r.queue = append(r.queue, &task{method: m, params: params, stack: stack})
}

func (r *run) analyze(t *task) {
	m := t.method
	if !m.HasBody() {
		return
	}
	if len(t.stack) > r.maxDepth {
		r.truncated++
		r.log.Debug("call stack depth %d exceeded at %s", len(t.stack), m.Signature())
		return
	}

	stack := make([]string, len(t.stack), len(t.stack)+1)
	copy(stack, t.stack)
	stack = append(stack, m.Signature())

	body := m.Body
	seed := NewTaintSet()
	for _, i := range t.params.Indices() {
		if local, ok := body.ParamLocal(i); ok {
			seed.Add(local)
		}
	}

	flow := Analyze(body, seed, r.flowOpts...)

	for i, st := range body.Stmts {
		inv := st.Invocation()
		if inv == nil {
			continue
		}

		if rule, ok := r.rules.Sink(inv.Callee); ok && flow.AnyArgTainted(i, inv) {
			r.report(rule, stack, nil, true)
		}

		r.propagate(st, i, inv, flow, stack)
	}
}

// propagate follows every call graph edge of the call st, found at index
// i of the current body.
func (r *run) propagate(st *ir.Stmt, i int, inv *ir.Invoke, flow *Flow, stack []string) {
	for _, e := range r.graph.EdgesAt(st) {
		callee := e.Callee
		if callee.Library() || !callee.HasBody() {
			continue
		}

		if r.summaries && r.graph.IsLeaf(callee) {
			if r.applySummary(callee.Method, inv, flow, i, stack) {
				continue
			}
		}

		r.scheduleCallee(callee.Method, inv, flow, i, stack)
	}
}

// applySummary reports the sinks a leaf callee reaches from its tainted
// arguments. It returns false when no summary could be produced, in which
// case the callee must be scheduled instead.
func (r *run) applySummary(callee *ir.Method, inv *ir.Invoke, flow *Flow, at int, stack []string) bool {
	summary, ok := r.cache[callee.ID]
	if !ok {
		summary, ok = Summarize(callee, r.rules, r.flowOpts...)
		if !ok {
			r.log.Debug("no summary for %s", callee.Signature())
			return false
		}
		r.cache[callee.ID] = summary
	}
	r.summaryHits++

	in := flow.Before(at)
	for i, arg := range inv.Args {
		if i >= callee.NumParams() {
			break
		}
		if !valueTainted(in, arg) {
			continue
		}
		for _, sink := range summary.SinksFor(i) {
			if rule, ok := r.rules.Sink(sink); ok {
				r.report(rule, stack, callee, false)
			}
		}
	}
	return true
}

// scheduleCallee maps tainted actual arguments onto the callee's formal
// parameters and schedules it if any are tainted.
func (r *run) scheduleCallee(callee *ir.Method, inv *ir.Invoke, flow *Flow, at int, stack []string) {
	in := flow.Before(at)
	params := NewParamSet()
	for i, arg := range inv.Args {
		if i >= callee.NumParams() {
			break
		}
		if valueTainted(in, arg) {
			params.Add(i)
		}
	}
	if params.IsEmpty() {
		return
	}
	r.schedule(callee, params, stack)
}

// report records a finding. Direct findings trace stack → sink; summary
// findings additionally name the leaf method the sink was found in.
func (r *run) report(rule *rules.SinkRule, stack []string, leaf *ir.Method, full bool) {
	trace := make([]string, 0, len(stack)+2)
	trace = append(trace, stack...)
	if leaf != nil {
		trace = append(trace, leaf.Signature())
	}
	trace = append(trace, rule.Signature)

	v := &Vulnerability{
		Category: rule.Name(),
		Source:   trace[0],
		Sink:     rule.Signature,
		Trace:    trace,
		FullFlow: full,
		Rule:     rule,
	}
	v.Confidence = 1.0
	if !full {
		v.Confidence = 0.5
	}

	if r.found.add(v) {
		r.log.Warning("%s: %s → %s", v.Category, v.Source, v.Sink)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	if strings.HasSuffix(noun, "y") {
		return fmt.Sprintf("%d %sies", n, noun[:len(noun)-1])
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
