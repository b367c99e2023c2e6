package callgraph

import (
	"context"
	"testing"

	"github.com/picatz/taintflow/ir"
)

const (
	runSig   = "<app.Task: void run(java.lang.String)>"
	execSig  = "<java.lang.Runtime: java.lang.Process exec(java.lang.String)>"
	helpSig  = "<app.Util: void help()>"
	mainSig  = "<app.Main: void main()>"
	stackSig = "<java.util.Stack: java.lang.Object pop()>"
)

// testProgram has an interface app.Task with two implementations, one
// abstract intermediate class, and a static helper.
func testProgram() (*ir.Arena, *ir.Method) {
	p := ir.NewArena()

	p.MustAddClass(&ir.Class{
		Name:      "app.Task",
		Interface: true,
		Methods:   []*ir.Method{{Name: "run", Return: "void", Params: []string{"java.lang.String"}, Abstract: true}},
	})
	p.MustAddClass(&ir.Class{
		Name:       "app.Base",
		Abstract:   true,
		Interfaces: []string{"app.Task"},
	})
	p.MustAddClass(&ir.Class{
		Name:  "app.Shell",
		Super: "app.Base",
		Methods: []*ir.Method{{
			Name: "run", Return: "void", Params: []string{"java.lang.String"},
			Body: ir.NewBodyBuilder(1).
				This("this").
				Param(0, "cmd").
				Assign(ir.Var("rt"), ir.Call(ir.StaticCall("<java.lang.Runtime: java.lang.Runtime getRuntime()>"))).
				Invoke(ir.VirtualCall(execSig, ir.Var("rt"), ir.Var("cmd"))).
				ReturnVoid().
				MustBuild(),
		}},
	})
	p.MustAddClass(&ir.Class{
		Name:       "app.Echo",
		Interfaces: []string{"app.Task"},
		Methods: []*ir.Method{{
			Name: "run", Return: "void", Params: []string{"java.lang.String"},
			Body: ir.NewBodyBuilder(1).
				This("this").
				Param(0, "s").
				Invoke(ir.StaticCall(helpSig)).
				ReturnVoid().
				MustBuild(),
		}},
	})
	p.MustAddClass(&ir.Class{
		Name: "app.Util",
		Methods: []*ir.Method{{
			Name: "help", Return: "void", Static: true,
			Body: ir.NewBodyBuilder(0).ReturnVoid().MustBuild(),
		}},
	})
	p.MustAddClass(&ir.Class{
		Name:    "java.util.Stack",
		Library: true,
		Methods: []*ir.Method{{
			Name: "pop", Return: "java.lang.Object",
			Body: ir.NewBodyBuilder(0).This("this").Invoke(ir.StaticCall(helpSig)).ReturnVoid().MustBuild(),
		}},
	})

	main := &ir.Method{
		Name: "main", Return: "void", Static: true,
		Body: ir.NewBodyBuilder(0).
			Assign(ir.Var("t"), ir.New("app.Task")).
			Invoke(ir.InterfaceCall(runSig, ir.Var("t"), ir.Const(`"x"`))).
			Assign(ir.Var("s"), ir.New("java.util.Stack")).
			Invoke(ir.VirtualCall(stackSig, ir.Var("s"))).
			ReturnVoid().
			MustBuild(),
	}
	p.MustAddClass(&ir.Class{Name: "app.Main", Methods: []*ir.Method{main}})

	return p, main
}

func TestBuildResolvesVirtualDispatch(t *testing.T) {
	prog, main := testProgram()

	g, err := Build(context.Background(), prog, main)
	if err != nil {
		t.Fatal(err)
	}

	if g.Root.Sig != mainSig {
		t.Fatalf("unexpected root %v", g.Root)
	}

	site := main.Body.Stmts[1]
	edges := g.EdgesAt(site)
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges at interface call site, got %d", len(edges))
	}
	got := map[string]bool{}
	for _, e := range edges {
		got[e.Callee.Sig] = true
	}
	for _, want := range []string{"<app.Shell: void run(java.lang.String)>", "<app.Echo: void run(java.lang.String)>"} {
		if !got[want] {
			t.Errorf("missing dispatch target %s", want)
		}
	}

	exec := g.Node(execSig)
	if exec == nil {
		t.Fatal("unresolved library call should still be a node")
	}
	if !exec.Library() || exec.HasBody() {
		t.Fatal("phantom node should be library without body")
	}

	stack := g.Node(stackSig)
	if stack == nil || !stack.Library() {
		t.Fatal("expected library stack node")
	}
	if len(stack.Out) != 0 {
		t.Fatal("library bodies should not be explored")
	}
	if g.Node("<app.Task: void run(java.lang.String)>") != nil {
		t.Fatal("abstract interface method should not be a target when implementations exist")
	}
}

func TestBuildDeterministic(t *testing.T) {
	prog, main := testProgram()

	var want []string
	for i := 0; i < 5; i++ {
		g, err := Build(context.Background(), prog, main, WithWorkers(3))
		if err != nil {
			t.Fatal(err)
		}
		var got []string
		for _, n := range g.Nodes {
			got = append(got, n.String())
		}
		if want == nil {
			want = got
			continue
		}
		if len(got) != len(want) {
			t.Fatalf("run %d: node count changed", i)
		}
		for j := range got {
			if got[j] != want[j] {
				t.Fatalf("run %d: node %d = %s, want %s", i, j, got[j], want[j])
			}
		}
	}
}

func TestIsLeaf(t *testing.T) {
	prog, main := testProgram()

	g, err := Build(context.Background(), prog, main)
	if err != nil {
		t.Fatal(err)
	}

	shell := g.Node("<app.Shell: void run(java.lang.String)>")
	echo := g.Node("<app.Echo: void run(java.lang.String)>")

	if !g.IsLeaf(shell) {
		t.Error("Shell.run only calls library code and should be a leaf")
	}
	if g.IsLeaf(echo) {
		t.Error("Echo.run calls Util.help and should not be a leaf")
	}
	if g.IsLeaf(g.Root) {
		t.Error("root calls application code")
	}

	callers := CallersOf(g.Node(helpSig))
	if len(callers) != 1 || callers[0] != echo {
		t.Fatalf("unexpected callers of help: %v", callers)
	}
	if len(CalleesOf(g.Root)) != 3 {
		t.Fatalf("unexpected root callees: %v", CalleesOf(g.Root))
	}
}

func TestBuildCanceled(t *testing.T) {
	prog, main := testProgram()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Build(ctx, prog, main); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestVisitEdges(t *testing.T) {
	prog, main := testProgram()

	g, err := Build(context.Background(), prog, main)
	if err != nil {
		t.Fatal(err)
	}

	var n int
	if err := g.VisitEdges(func(*Edge) error { n++; return nil }); err != nil {
		t.Fatal(err)
	}
	if n != g.NumEdges() {
		t.Fatalf("visited %d edges, graph has %d", n, g.NumEdges())
	}
}
