package taintflow

import (
	"context"
	"fmt"

	"github.com/picatz/taintflow/callgraph"
	"github.com/picatz/taintflow/callgraphutil"
	"github.com/picatz/taintflow/entrypoint"
	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/rules"
	"github.com/picatz/taintflow/score"
)

// CheckOption configures Check and NewAnalysis.
type CheckOption func(*checkConfig)

type checkConfig struct {
	engine  []EngineOption
	auth    score.AuthConfig
	workers int
	prune   bool
}

// WithDepth bounds the call stack depth of the analysis.
func WithDepth(n int) CheckOption {
	return func(c *checkConfig) { c.engine = append(c.engine, WithMaxDepth(n)) }
}

// WithAuth sets the annotations used to recognise authentication
// barriers when scoring.
func WithAuth(cfg score.AuthConfig) CheckOption {
	return func(c *checkConfig) { c.auth = cfg }
}

// WithSourceTaint makes calls to source methods taint their results, in
// addition to the tainted entry point parameters.
func WithSourceTaint() CheckOption {
	return func(c *checkConfig) { c.engine = append(c.engine, WithSourceRules()) }
}

// WithoutLeafSummaries analyzes leaf callees in full instead of through
// their summaries.
func WithoutLeafSummaries() CheckOption {
	return func(c *checkConfig) { c.engine = append(c.engine, WithoutSummaries()) }
}

// WithoutPruning schedules methods even if they cannot reach a sink.
func WithoutPruning() CheckOption {
	return func(c *checkConfig) { c.prune = false }
}

// WithCallGraphWorkers sets the concurrency of call graph construction.
func WithCallGraphWorkers(n int) CheckOption {
	return func(c *checkConfig) { c.workers = n }
}

// Analysis is a prepared check: the program extended with a synthetic
// driver, its call graph, and the methods that can reach a sink.
type Analysis struct {
	Driver    *entrypoint.Driver
	Graph     *callgraph.Graph
	Reachable *callgraphutil.NodeSet
	Sinks     []*callgraph.Node

	rules  *rules.Index
	routes *entrypoint.Index
	cfg    *checkConfig
}

// NewAnalysis resolves routes, synthesizes a driver calling all of them,
// builds the call graph rooted at the driver, and computes the set of
// methods that can reach a sink.
func NewAnalysis(ctx context.Context, prog ir.Program, routes []*entrypoint.Route, idx *rules.Index, opts ...CheckOption) (*Analysis, error) {
	cfg := &checkConfig{prune: true}
	for _, opt := range opts {
		opt(cfg)
	}
	log := callgraphutil.FromContext(ctx)

	tracker := callgraphutil.NewProgressTracker(ctx, "resolving routes", len(routes))
	for _, r := range routes {
		m := entrypoint.Resolve(prog, r)
		if m == nil {
			log.Warning("could not resolve route %s", r)
			tracker.Update(r.String() + ": unresolved")
			continue
		}
		tracker.Update(r.String() + ": " + m.Signature())
	}
	tracker.Complete()

	d, err := entrypoint.Synthesize(prog, routes)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize driver: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("building call graph from %s", d.Main.Signature())
	var cgOpts []callgraph.Option
	if cfg.workers > 0 {
		cgOpts = append(cgOpts, callgraph.WithWorkers(cfg.workers))
	}
	g, err := callgraph.Build(ctx, d.Program, d.Main, cgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build call graph: %w", err)
	}
	log.Step("call graph built", plural(len(g.Nodes), "node"), plural(g.NumEdges(), "edge"))

	a := &Analysis{
		Driver: d,
		Graph:  g,
		Sinks:  SinkNodes(g, idx),
		rules:  idx,
		routes: entrypoint.NewIndex(d.Program, routes),
		cfg:    cfg,
	}
	log.Info("found %d sink methods and sink call sites", len(a.Sinks))

	if cfg.prune {
		a.Reachable = callgraphutil.BackwardReachable(g, a.Sinks)
		log.Step("pruned call graph", fmt.Sprintf("%d of %d methods can reach a sink", a.Reachable.Len(), len(g.Nodes)))
	}
	return a, nil
}

// Run executes the worklist engine from every route handler, then scores
// each finding against its route. Results are sorted by descending score.
func (a *Analysis) Run(ctx context.Context) (Results, error) {
	opts := append([]EngineOption(nil), a.cfg.engine...)
	if a.Reachable != nil {
		opts = append(opts, WithReachable(a.Reachable))
	}
	engine := NewEngine(a.Graph, a.rules, opts...)

	results, err := engine.Run(ctx, a.Driver.Handlers)
	if err != nil {
		return nil, err
	}

	scorer := score.NewScorer(a.Driver.Program, a.cfg.auth)
	for _, v := range results {
		v.Route = a.routes.Route(v.Source)
		v.Assessment = scorer.Assess(v.Rule, v.FullFlow, v.Route)
	}
	results.Sort()
	return results, nil
}

// Check finds flows from the parameters of the given routes' handlers to
// the sinks in idx. It is NewAnalysis followed by Run.
func Check(ctx context.Context, prog ir.Program, routes []*entrypoint.Route, idx *rules.Index, opts ...CheckOption) (Results, error) {
	a, err := NewAnalysis(ctx, prog, routes, idx, opts...)
	if err != nil {
		return nil, err
	}
	return a.Run(ctx)
}

// SinkNodes returns, in ID order, the nodes that are sinks themselves and
// the nodes containing a call whose declared target is a sink. The latter
// matter when dispatch resolves a sink call to some other implementation.
func SinkNodes(g *callgraph.Graph, idx *rules.Index) []*callgraph.Node {
	var out []*callgraph.Node
	for _, n := range g.Nodes {
		if idx.IsSink(n.Sig) || callsSink(n, idx) {
			out = append(out, n)
		}
	}
	return out
}

func callsSink(n *callgraph.Node, idx *rules.Index) bool {
	if !n.HasBody() {
		return false
	}
	for _, st := range n.Method.Body.Stmts {
		if inv := st.Invocation(); inv != nil && idx.IsSink(inv.Callee) {
			return true
		}
	}
	return false
}
