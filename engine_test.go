package taintflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/picatz/taintflow/callgraph"
	"github.com/picatz/taintflow/ir"
)

// chainProgram returns static methods m0 ... m{n} where each passes its
// parameter to the next and the last one calls the query sink.
func chainProgram(n int) (*ir.Arena, *ir.Method) {
	sig := func(i int) string {
		return fmt.Sprintf("<com.example.Chain: void m%d(java.lang.String)>", i)
	}

	var methods []*ir.Method
	for i := 0; i <= n; i++ {
		b := ir.NewBodyBuilder(1).Param(0, "p")
		if i < n {
			b.Invoke(ir.StaticCall(sig(i+1), ir.Var("p")))
		} else {
			b.Invoke(query(ir.Var("p")))
		}
		methods = append(methods, &ir.Method{
			Name:   fmt.Sprintf("m%d", i),
			Return: "void",
			Params: []string{"java.lang.String"},
			Static: true,
			Body:   b.ReturnVoid().MustBuild(),
		})
	}

	prog := ir.NewArena()
	prog.MustAddClass(&ir.Class{Name: "com.example.Chain", Methods: methods})
	return prog, methods[0]
}

func runEngine(t *testing.T, prog ir.Program, entry *ir.Method, opts ...EngineOption) Results {
	t.Helper()
	g, err := callgraph.Build(context.Background(), prog, entry)
	if err != nil {
		t.Fatal(err)
	}
	results, err := NewEngine(g, testRules(), opts...).Run(context.Background(), []*ir.Method{entry})
	if err != nil {
		t.Fatal(err)
	}
	return results
}

func TestEngineDepthLimit(t *testing.T) {
	prog, m0 := chainProgram(5)

	tests := []struct {
		name     string
		opts     []EngineOption
		findings int
		fullFlow bool
	}{
		{"deep enough", []EngineOption{WithMaxDepth(5), WithoutSummaries()}, 1, true},
		{"one short", []EngineOption{WithMaxDepth(4), WithoutSummaries()}, 0, false},
		{"summary covers last hop", []EngineOption{WithMaxDepth(4)}, 1, false},
		{"summary needs caller", []EngineOption{WithMaxDepth(3)}, 0, false},
		{"default depth", nil, 1, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			results := runEngine(t, prog, m0, test.opts...)
			if len(results) != test.findings {
				t.Fatalf("expected %d findings, got %d: %v", test.findings, len(results), results)
			}
			if test.findings > 0 && results[0].FullFlow != test.fullFlow {
				t.Errorf("full flow = %v, want %v", results[0].FullFlow, test.fullFlow)
			}
		})
	}
}

func TestEngineTraceLength(t *testing.T) {
	prog, m0 := chainProgram(3)

	results := runEngine(t, prog, m0, WithoutSummaries())
	if len(results) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(results))
	}
	v := results[0]
	if len(v.Trace) != 5 {
		t.Fatalf("trace = %v", v.Trace)
	}
	if v.Trace[0] != v.Source || v.Trace[len(v.Trace)-1] != v.Sink {
		t.Errorf("trace must start at the source and end at the sink: %v", v.Trace)
	}
	if v.Confidence != 1.0 {
		t.Errorf("confidence = %v", v.Confidence)
	}
}

func TestEngineUntaintedArgumentNotScheduled(t *testing.T) {
	const leafSig = "<com.example.Calls: void leaf(java.lang.String)>"

	entry := &ir.Method{
		Name: "entry", Return: "void", Params: []string{"java.lang.String"}, Static: true,
		Body: ir.NewBodyBuilder(1).
			Param(0, "p").
			Assign(ir.Var("c"), ir.Use(ir.Const(`"constant"`))).
			Invoke(ir.StaticCall(leafSig, ir.Var("c"))).
			ReturnVoid().
			MustBuild(),
	}
	leaf := &ir.Method{
		Name: "leaf", Return: "void", Params: []string{"java.lang.String"}, Static: true,
		Body: ir.NewBodyBuilder(1).
			Param(0, "x").
			Invoke(query(ir.Var("x"))).
			ReturnVoid().
			MustBuild(),
	}
	prog := ir.NewArena()
	prog.MustAddClass(&ir.Class{Name: "com.example.Calls", Methods: []*ir.Method{entry, leaf}})

	for _, opts := range [][]EngineOption{nil, {WithoutSummaries()}} {
		if results := runEngine(t, prog, entry, opts...); len(results) != 0 {
			t.Errorf("expected no findings, got %v", results)
		}
	}
}

func TestEngineVirtualDispatch(t *testing.T) {
	const ifaceSig = "<com.example.Repo: void save(java.lang.String)>"

	entry := &ir.Method{
		Name: "entry", Return: "void", Params: []string{"com.example.Repo", "java.lang.String"}, Static: true,
		Body: ir.NewBodyBuilder(2).
			Param(0, "repo").
			Param(1, "p").
			Invoke(ir.InterfaceCall(ifaceSig, ir.Var("repo"), ir.Var("p"))).
			ReturnVoid().
			MustBuild(),
	}
	save := func(sink *ir.Invoke) *ir.Method {
		return &ir.Method{
			Name: "save", Return: "void", Params: []string{"java.lang.String"},
			Body: ir.NewBodyBuilder(1).This("this").Param(0, "v").Invoke(sink).ReturnVoid().MustBuild(),
		}
	}

	prog := ir.NewArena()
	prog.MustAddClass(&ir.Class{Name: "com.example.Main", Methods: []*ir.Method{entry}})
	prog.MustAddClass(&ir.Class{
		Name: "com.example.Repo", Interface: true,
		Methods: []*ir.Method{{Name: "save", Return: "void", Params: []string{"java.lang.String"}, Abstract: true}},
	})
	prog.MustAddClass(&ir.Class{Name: "com.example.SQLRepo", Interfaces: []string{"com.example.Repo"}, Methods: []*ir.Method{save(query(ir.Var("v")))}})
	prog.MustAddClass(&ir.Class{Name: "com.example.ShellRepo", Interfaces: []string{"com.example.Repo"}, Methods: []*ir.Method{save(exec(ir.Var("v")))}})

	results := runEngine(t, prog, entry)
	if len(results) != 2 {
		t.Fatalf("expected a finding per implementation, got %v", results)
	}
	categories := map[string]bool{}
	for _, v := range results {
		categories[v.Category] = true
	}
	if !categories["sqli"] || !categories["cmd-exec"] {
		t.Errorf("categories = %v", categories)
	}
}

func TestEngineCanceled(t *testing.T) {
	prog, m0 := chainProgram(2)
	g, err := callgraph.Build(context.Background(), prog, m0)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEngine(g, testRules()).Run(ctx, []*ir.Method{m0}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestEngineRunsAreIndependent(t *testing.T) {
	prog, m0 := chainProgram(2)
	g, err := callgraph.Build(context.Background(), prog, m0)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(g, testRules())
	for i := 0; i < 3; i++ {
		results, err := e.Run(context.Background(), []*ir.Method{m0})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 {
			t.Fatalf("run %d: expected 1 finding, got %d", i, len(results))
		}
	}
}

func TestPlural(t *testing.T) {
	tests := []struct {
		n          int
		noun, want string
	}{
		{1, "task", "1 task"},
		{2, "task", "2 tasks"},
		{0, "summary application", "0 summary applications"},
		{3, "entry", "3 entries"},
	}
	for _, test := range tests {
		if got := plural(test.n, test.noun); got != test.want {
			t.Errorf("plural(%d, %q) = %q, want %q", test.n, test.noun, got, test.want)
		}
	}
}
