package taintflow

import (
	"context"
	"testing"

	"github.com/picatz/taintflow/entrypoint"
	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/rules"
)

const (
	querySig    = "<java.sql.Statement: java.sql.ResultSet executeQuery(java.lang.String)>"
	execSig     = "<java.lang.Runtime: java.lang.Process exec(java.lang.String)>"
	getParamSig = "<javax.servlet.ServletRequest: java.lang.String getParameter(java.lang.String)>"
	stmtSig     = "<com.example.Db: java.sql.Statement statement()>"
)

func testRules() *rules.Index {
	return rules.NewIndex(
		[]rules.SourceRule{
			{Type: rules.TypeMethod, Signature: getParamSig},
		},
		[]rules.SinkRule{
			{Type: rules.TypeMethod, VulnType: "SQLi", Category: rules.CategorySQLi, Signature: querySig},
			{Type: rules.TypeMethod, VulnType: "RCE", Category: rules.CategoryCmdExec, Signature: execSig},
		},
	)
}

func query(arg ir.Value) *ir.Invoke { return ir.InterfaceCall(querySig, ir.Var("st"), arg) }

func exec(arg ir.Value) *ir.Invoke { return ir.VirtualCall(execSig, ir.Var("rt"), arg) }

func ctor() *ir.Method {
	return &ir.Method{Name: "<init>", Return: "void", Body: ir.NewBodyBuilder(0).This("this").ReturnVoid().MustBuild()}
}

// handler returns an instance method taking n strings.
func handler(name string, n int, body *ir.Body) *ir.Method {
	params := make([]string, n)
	for i := range params {
		params[i] = "java.lang.String"
	}
	return &ir.Method{Name: name, Return: "void", Params: params, Body: body}
}

func routeTo(class string, m *ir.Method) *entrypoint.Route {
	return &entrypoint.Route{Method: "GET", Path: "/" + m.Name, Class: class, MethodSig: m.SubSignature()}
}

// userProgram is a controller whose handler passes its parameter to a DAO
// that concatenates it into a SQL query.
func userProgram(t *testing.T, classAnnotations ...ir.Annotation) (*ir.Arena, []*entrypoint.Route) {
	t.Helper()

	const (
		daoClass = "com.example.UserDao"
		findSig  = "<com.example.UserDao: java.lang.String find(java.lang.String)>"
		daoInit  = "<com.example.UserDao: void <init>()>"
	)

	getUser := &ir.Method{
		Name: "getUser", Return: "java.lang.String", Params: []string{"java.lang.String"},
		Body: ir.NewBodyBuilder(1).
			This("this").
			Param(0, "id").
			Assign(ir.Var("dao"), ir.New(daoClass)).
			Invoke(ir.SpecialCall(daoInit, ir.Var("dao"))).
			Assign(ir.Var("r"), ir.Call(ir.VirtualCall(findSig, ir.Var("dao"), ir.Var("id")))).
			Return(ir.Var("r")).
			MustBuild(),
	}
	find := &ir.Method{
		Name: "find", Return: "java.lang.String", Params: []string{"java.lang.String"},
		Body: ir.NewBodyBuilder(1).
			This("this").
			Param(0, "q").
			Assign(ir.Var("sql"), ir.Binary("+", ir.Const(`"SELECT * FROM users WHERE id = "`), ir.Var("q"))).
			Assign(ir.Var("st"), ir.Call(ir.StaticCall(stmtSig))).
			Invoke(query(ir.Var("sql"))).
			Return(ir.Var("sql")).
			MustBuild(),
	}

	prog := ir.NewArena()
	prog.MustAddClass(&ir.Class{
		Name:        "com.example.UserController",
		Super:       "java.lang.Object",
		Annotations: classAnnotations,
		Methods:     []*ir.Method{ctor(), getUser},
	})
	prog.MustAddClass(&ir.Class{
		Name:    daoClass,
		Super:   "java.lang.Object",
		Methods: []*ir.Method{ctor(), find},
	})

	routes := []*entrypoint.Route{{
		Method:    "GET",
		Path:      "/user",
		Class:     "com.example.UserController",
		MethodSig: "java.lang.String getUser(java.lang.String)",
	}}
	return prog, routes
}

func check(t *testing.T, prog ir.Program, routes []*entrypoint.Route, opts ...CheckOption) Results {
	t.Helper()
	results, err := Check(context.Background(), prog, routes, testRules(), opts...)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	return results
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
