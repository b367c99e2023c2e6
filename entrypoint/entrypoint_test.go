package entrypoint

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picatz/taintflow/ir"
)

const catalog = `### Project: demo ###
# comment

GET /user com.example.UserController java.lang.String getUser(java.lang.String)
POST /upload com.example.FileController void upload(java.lang.String,byte[]) {"contentType":"multipart/form-data","params":["name","data"]}
ALL /health com.example.Health boolean ping()
`

func TestParseCatalog(t *testing.T) {
	routes, err := ParseCatalog(strings.NewReader(catalog))
	require.NoError(t, err)
	require.Len(t, routes, 3)

	assert.Equal(t, "GET", routes[0].Method)
	assert.Equal(t, "/user", routes[0].Path)
	assert.Equal(t, "com.example.UserController", routes[0].Class)
	assert.Equal(t, "java.lang.String getUser(java.lang.String)", routes[0].MethodSig)
	assert.Equal(t, "getUser", routes[0].Name())
	assert.Equal(t, "<com.example.UserController: java.lang.String getUser(java.lang.String)>", routes[0].Signature())

	assert.Equal(t, "void upload(java.lang.String,byte[])", routes[1].MethodSig)
	assert.Equal(t, "multipart/form-data", routes[1].Meta.ContentType)
	assert.Equal(t, []string{"name", "data"}, routes[1].Meta.Params)

	assert.Equal(t, "ALL /health com.example.Health boolean ping()", routes[2].String())
}

func TestParseCatalogMalformed(t *testing.T) {
	for _, line := range []string{
		"GET /user com.example.UserController",
		"GET /user com.example.UserController getUser",
		`GET /user com.example.C void f() {not json`,
	} {
		t.Run(line, func(t *testing.T) {
			_, err := ParseCatalog(strings.NewReader(line + "\n"))
			require.ErrorIs(t, err, ErrMalformedRoute)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestWriteCatalogRoundTrip(t *testing.T) {
	routes, err := ParseCatalog(strings.NewReader(catalog))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCatalog(&buf, "demo", routes))
	assert.True(t, strings.HasPrefix(buf.String(), "### Project: demo ###\n"))

	again, err := ParseCatalog(&buf)
	require.NoError(t, err)
	assert.Equal(t, routes, again)
}

func controllerProgram(t *testing.T) *ir.Arena {
	t.Helper()
	prog := ir.NewArena()
	prog.MustAddClass(&ir.Class{
		Name: "com.example.UserController",
		Methods: []*ir.Method{
			{Name: "<init>", Return: "void", Body: ir.NewBodyBuilder(0).This("this").ReturnVoid().MustBuild()},
			{
				Name: "getUser", Return: "java.lang.String", Params: []string{"java.lang.String", "int"},
				Body: ir.NewBodyBuilder(2).This("this").Param(0, "id").Param(1, "n").Return(ir.Var("id")).MustBuild(),
			},
		},
	})
	prog.MustAddClass(&ir.Class{
		Name: "com.example.Util",
		Methods: []*ir.Method{
			{Name: "ping", Return: "boolean", Static: true, Body: ir.NewBodyBuilder(0).Return(ir.Const("1")).MustBuild()},
		},
	})
	return prog
}

func TestResolve(t *testing.T) {
	prog := controllerProgram(t)

	exact := &Route{Class: "com.example.UserController", MethodSig: "java.lang.String getUser(java.lang.String,int)"}
	m := Resolve(prog, exact)
	require.NotNil(t, m)
	assert.Equal(t, "getUser", m.Name)

	byName := &Route{Class: "com.example.UserController", MethodSig: "java.lang.String getUser(java.lang.String)"}
	assert.Same(t, m, Resolve(prog, byName))

	assert.Nil(t, Resolve(prog, &Route{Class: "com.example.Missing", MethodSig: "void x()"}))
	assert.Nil(t, Resolve(prog, &Route{Class: "com.example.UserController", MethodSig: "void other()"}))
}

func TestSynthesize(t *testing.T) {
	prog := controllerProgram(t)
	routes := []*Route{
		{Method: "GET", Path: "/user", Class: "com.example.UserController", MethodSig: "java.lang.String getUser(java.lang.String,int)"},
		{Method: "GET", Path: "/user2", Class: "com.example.UserController", MethodSig: "java.lang.String getUser(java.lang.String)"},
		{Method: "GET", Path: "/ping", Class: "com.example.Util", MethodSig: "boolean ping()"},
		{Method: "GET", Path: "/gone", Class: "com.example.Gone", MethodSig: "void gone()"},
	}

	d, err := Synthesize(prog, routes)
	require.NoError(t, err)

	assert.Equal(t, MainSignature, d.Main.Signature())
	assert.Same(t, d.Main, d.Program.Lookup(MainSignature))
	assert.Nil(t, prog.Class(MainClass), "input program must not change")
	require.Len(t, d.Handlers, 2)
	require.Len(t, d.Unresolved, 1)
	assert.Equal(t, "/gone", d.Unresolved[0].Path)

	var calls []*ir.Invoke
	for _, st := range d.Main.Body.Stmts {
		if inv := st.Invocation(); inv != nil {
			calls = append(calls, inv)
		}
	}
	require.Len(t, calls, 3)

	assert.Equal(t, ir.SpecialInvoke, calls[0].Kind)
	assert.Equal(t, "<com.example.UserController: void <init>()>", calls[0].Callee)

	assert.Equal(t, ir.VirtualInvoke, calls[1].Kind)
	assert.Equal(t, []ir.Value{ir.Nil, ir.Const("0")}, calls[1].Args)
	assert.Equal(t, *calls[0].Receiver, *calls[1].Receiver)

	assert.Equal(t, ir.StaticInvoke, calls[2].Kind)
	assert.Equal(t, "<com.example.Util: boolean ping()>", calls[2].Callee)

	last := d.Main.Body.Stmts[len(d.Main.Body.Stmts)-1]
	assert.Equal(t, ir.ReturnStmt, last.Kind)

	_, err = Synthesize(d.Program, routes)
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	prog := controllerProgram(t)
	first := &Route{Path: "/a", Class: "com.example.UserController", MethodSig: "java.lang.String getUser(java.lang.String,int)"}
	second := &Route{Path: "/b", Class: "com.example.UserController", MethodSig: "java.lang.String getUser()"}

	idx := NewIndex(prog, []*Route{first, second})
	sig := "<com.example.UserController: java.lang.String getUser(java.lang.String,int)>"
	assert.Same(t, first, idx.Route(sig))
	assert.Equal(t, []string{sig}, idx.Signatures())
	assert.Nil(t, idx.Route("<x: void y()>"))
}
