package callgraphutil

import (
	"context"
	"testing"

	"github.com/picatz/taintflow/callgraph"
	"github.com/picatz/taintflow/ir"
)

const (
	mainSig   = "<app.Main: void main()>"
	handleSig = "<app.Handler: void handle(java.lang.String)>"
	daoSig    = "<app.Dao: void find(java.lang.String)>"
	auditSig  = "<app.Audit: void log(java.lang.String)>"
	querySig  = "<java.sql.Statement: java.sql.ResultSet executeQuery(java.lang.String)>"
	printSig  = "<java.io.PrintStream: void println(java.lang.String)>"
)

// loadCallGraph builds main → handle → {find → executeQuery, log → println}.
func loadCallGraph(t testing.TB) *callgraph.Graph {
	t.Helper()

	p := ir.NewArena()
	static := func(class, name string, body *ir.Body) *ir.Class {
		return &ir.Class{Name: class, Methods: []*ir.Method{{
			Name: name, Return: "void", Params: []string{"java.lang.String"}, Static: true, Body: body,
		}}}
	}

	p.MustAddClass(static("app.Handler", "handle", ir.NewBodyBuilder(1).
		Param(0, "s").
		Invoke(ir.StaticCall(daoSig, ir.Var("s"))).
		Invoke(ir.StaticCall(auditSig, ir.Var("s"))).
		ReturnVoid().MustBuild()))
	p.MustAddClass(static("app.Dao", "find", ir.NewBodyBuilder(1).
		Param(0, "q").
		Assign(ir.Var("st"), ir.New("java.sql.Statement")).
		Invoke(ir.InterfaceCall(querySig, ir.Var("st"), ir.Var("q"))).
		ReturnVoid().MustBuild()))
	p.MustAddClass(static("app.Audit", "log", ir.NewBodyBuilder(1).
		Param(0, "m").
		Assign(ir.Var("out"), ir.Use(ir.Static("java.lang.System", "out"))).
		Invoke(ir.VirtualCall(printSig, ir.Var("out"), ir.Var("m"))).
		ReturnVoid().MustBuild()))

	main := &ir.Method{Name: "main", Return: "void", Static: true, Body: ir.NewBodyBuilder(0).
		Invoke(ir.StaticCall(handleSig, ir.Nil)).
		ReturnVoid().MustBuild()}
	p.MustAddClass(&ir.Class{Name: "app.Main", Methods: []*ir.Method{main}})

	g, err := callgraph.Build(context.Background(), p, main)
	if err != nil {
		t.Fatal(err)
	}
	return g
}
