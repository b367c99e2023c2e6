package ssair_test

import (
	"context"
	"go/types"
	"sync"
	"testing"

	"github.com/picatz/taintflow"
	"github.com/picatz/taintflow/config"
	"github.com/picatz/taintflow/entrypoint"
	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/ssair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	appPkg   = "example.com/app"
	querySig = "<database/sql.DB: (*database/sql.Rows, error) Query(string,[]any)>"
	cmdSig   = "<os/exec: *os/exec.Cmd Command(string,[]string)>"
)

var (
	loadOnce sync.Once
	loaded   *ssair.Program
	loadErr  error
)

// app loads testdata/app once for the whole package.
func app(t *testing.T) *ssair.Program {
	t.Helper()
	if testing.Short() {
		t.Skip("loading packages is slow")
	}
	loadOnce.Do(func() {
		loaded, loadErr = ssair.Load(context.Background(), ssair.Config{Dir: "testdata/app"})
	})
	require.NoError(t, loadErr)
	return loaded
}

func sig(class, sub string) string { return "<" + class + ": " + sub + ">" }

func TestLoad(t *testing.T) {
	prog := app(t)

	pkg := prog.Class(appPkg)
	require.NotNil(t, pkg)
	for _, name := range []string{"users", "ping", "health", "main", "main$1"} {
		assert.Len(t, pkg.MethodsNamed(name), 1, name)
	}

	find := prog.Lookup(sig(appPkg+".Store", "(*database/sql.Rows, error) Find(string)"))
	require.NotNil(t, find)
	assert.False(t, find.Static)
	require.True(t, find.HasBody())
	assert.Equal(t, "s", find.Body.This)
	assert.Equal(t, []string{"name"}, find.Body.Params)

	pinger := prog.Class(appPkg + ".Pinger")
	require.NotNil(t, pinger)
	assert.True(t, pinger.Interface)
	require.Len(t, pinger.Methods, 1)
	assert.True(t, pinger.Methods[0].Abstract)
	assert.Equal(t, "error Ping(string)", pinger.Methods[0].SubSignature())

	shell := prog.Class(appPkg + ".shellPinger")
	require.NotNil(t, shell)
	assert.Contains(t, shell.Interfaces, appPkg+".Pinger")
	assert.NotNil(t, shell.Method("error Ping(string)"))

	// Only the application is lowered.
	assert.Nil(t, prog.Class("net/http"))
	require.Len(t, prog.Packages, 1)
	assert.Equal(t, appPkg, prog.Packages[0].Pkg.Path())
}

func TestLoadScanPackages(t *testing.T) {
	if testing.Short() {
		t.Skip("loading packages is slow")
	}
	prog, err := ssair.Load(context.Background(), ssair.Config{
		Dir:          "testdata/app",
		ScanPackages: []string{"example.com/other"},
	})
	require.NoError(t, err)
	assert.Empty(t, prog.Classes())
	assert.Empty(t, prog.Routes)
}

func TestCallSignatures(t *testing.T) {
	prog := app(t)
	find := prog.Lookup(sig(appPkg+".Store", "(*database/sql.Rows, error) Find(string)"))
	require.NotNil(t, find)

	var calls []*ir.Invoke
	for _, s := range find.Body.Stmts {
		if inv := s.Invocation(); inv != nil {
			calls = append(calls, inv)
		}
	}
	require.Len(t, calls, 1)
	assert.Equal(t, ir.SpecialInvoke, calls[0].Kind)
	assert.Equal(t, querySig, calls[0].Callee)
	assert.Len(t, calls[0].Args, 2)
	assert.Equal(t, ir.Nil, calls[0].Args[1])

	ping := prog.Class(appPkg).MethodsNamed("ping")[0]
	var iface *ir.Invoke
	for _, s := range ping.Body.Stmts {
		if inv := s.Invocation(); inv != nil && inv.Kind == ir.InterfaceInvoke {
			iface = inv
		}
	}
	require.NotNil(t, iface)
	assert.Equal(t, sig(appPkg+".Pinger", "error Ping(string)"), iface.Callee)
}

func TestRoutes(t *testing.T) {
	prog := app(t)

	var got [][3]string
	for _, r := range prog.Routes {
		got = append(got, [3]string{r.Method, r.Path, r.Signature()})
	}
	assert.Equal(t, [][3]string{
		{"GET", "/users", sig(appPkg, "void users(net/http.ResponseWriter,*net/http.Request)")},
		{entrypoint.AnyMethod, "/ping", sig(appPkg, "void ping(net/http.ResponseWriter,*net/http.Request)")},
		{"POST", "/run", sig(appPkg, "void main$1(net/http.ResponseWriter,*net/http.Request)")},
		{entrypoint.AnyMethod, "/health", sig(appPkg, "void health(net/http.ResponseWriter,*net/http.Request)")},
		{entrypoint.AnyMethod, "/", sig("net/http.ServeMux", "void ServeHTTP(net/http.ResponseWriter,*net/http.Request)")},
	}, got)

	d, err := entrypoint.Synthesize(prog, prog.Routes)
	require.NoError(t, err)
	assert.Len(t, d.Handlers, 4)
	require.Len(t, d.Unresolved, 1)
	assert.Equal(t, "/", d.Unresolved[0].Path)
}

func TestCheck(t *testing.T) {
	prog := app(t)

	results, err := taintflow.Check(context.Background(), prog, prog.Routes, config.Default().Index())
	require.NoError(t, err)

	type finding struct {
		category, source, sink string
		full                   bool
	}
	var got []finding
	for _, v := range results {
		got = append(got, finding{v.Category, v.Source, v.Sink, v.FullFlow})
	}
	assert.ElementsMatch(t, []finding{
		{"sqli", sig(appPkg, "void users(net/http.ResponseWriter,*net/http.Request)"), querySig, false},
		{"cmd-exec", sig(appPkg, "void ping(net/http.ResponseWriter,*net/http.Request)"), cmdSig, false},
		{"cmd-exec", sig(appPkg, "void main$1(net/http.ResponseWriter,*net/http.Request)"), cmdSig, true},
	}, got)

	for _, v := range results {
		require.NotNil(t, v.Route, v.Source)
		assert.Equal(t, 1.0, v.Reachability)
	}

	for _, v := range results {
		if v.Category == "sqli" {
			assert.Equal(t, []string{
				sig(appPkg, "void users(net/http.ResponseWriter,*net/http.Request)"),
				sig(appPkg+".Store", "(*database/sql.Rows, error) Find(string)"),
				querySig,
			}, v.Trace)
		}
	}
}

func TestTypeStrings(t *testing.T) {
	rows := types.NewPointer(types.NewNamed(
		types.NewTypeName(0, types.NewPackage("database/sql", "sql"), "Rows", nil),
		types.NewStruct(nil, nil), nil))
	results := types.NewTuple(
		types.NewVar(0, nil, "rows", rows),
		types.NewVar(0, nil, "err", types.Universe.Lookup("error").Type()),
	)
	params := types.NewTuple(
		types.NewVar(0, nil, "query", types.Typ[types.String]),
		types.NewVar(0, nil, "args", types.NewSlice(types.NewInterfaceType(nil, nil))),
	)
	s := ssair.SignatureOf("database/sql.DB", "Query", types.NewSignatureType(nil, nil, nil, params, results, true))
	assert.Equal(t, querySig, s.String())
}
