// Package analyzer exposes the taint check as a go/analysis Analyzer, so
// it can run under singlechecker, multichecker or go vet -vettool.
//
// Each package is analyzed on its own: its functions and types are the
// application, everything it imports is treated as library code. Routes
// registered with net/http are the entry points; a package without any
// falls back to its main function with source taint enabled.
package analyzer

import (
	"context"
	"fmt"
	"go/token"
	"strconv"
	"strings"

	"github.com/picatz/taintflow"
	"github.com/picatz/taintflow/config"
	"github.com/picatz/taintflow/entrypoint"
	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/ssair"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"
)

var rulesPath string

var Analyzer = &analysis.Analyzer{
	Name:     "taintflow",
	Doc:      "finds attacker controlled data reaching dangerous sinks",
	Run:      run,
	Requires: []*analysis.Analyzer{buildssa.Analyzer},
}

func init() {
	Analyzer.Flags.StringVar(&rulesPath, "rules", "", "YAML rule file merged over the built-in rules")
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if rulesPath == "" {
		return cfg, nil
	}
	user, err := config.Load(rulesPath)
	if err != nil {
		return nil, err
	}
	return cfg.Merge(user), nil
}

func run(pass *analysis.Pass) (any, error) {
	ctx := context.Background()
	built := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	prog, err := ssair.Lower(ctx, built.Pkg.Prog, []*ssa.Package{built.Pkg}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to lower %s: %w", pass.Pkg.Path(), err)
	}

	routes := prog.Routes
	opts := []taintflow.CheckOption{taintflow.WithAuth(cfg.Scan.Auth)}
	if cfg.Scan.MaxDepth > 0 {
		opts = append(opts, taintflow.WithDepth(cfg.Scan.MaxDepth))
	}
	if len(routes) == 0 {
		m := prog.Lookup("<" + pass.Pkg.Path() + ": void main()>")
		if m == nil {
			return nil, nil
		}
		routes = []*entrypoint.Route{{
			Method:    entrypoint.AnyMethod,
			Path:      "main",
			Class:     m.Class,
			MethodSig: m.SubSignature(),
		}}
		opts = append(opts, taintflow.WithSourceTaint())
	}

	results, err := taintflow.Check(ctx, prog, routes, cfg.Index(), opts...)
	if err != nil {
		return nil, err
	}

	for _, v := range results {
		pos := sinkPos(pass, prog, v)
		pass.Reportf(pos, "potential %s: %s from %s reaches %s", v.VulnType(), v.Risk, name(v.Source), name(v.Sink))
	}
	return nil, nil
}

// name shortens a signature to Class.method for messages.
func name(sig string) string {
	s, err := ir.ParseSignature(sig)
	if err != nil {
		return sig
	}
	return s.Class + "." + s.Name
}

// sinkPos returns the position of the sink call in the last method of the
// finding's trace, or the package's first file when it cannot be found.
func sinkPos(pass *analysis.Pass, prog ir.Program, v *taintflow.Vulnerability) token.Pos {
	fallback := pass.Files[0].Package
	if len(v.Trace) < 2 {
		return fallback
	}
	m := prog.Lookup(v.Trace[len(v.Trace)-2])
	if !m.HasBody() {
		return fallback
	}
	for _, s := range m.Body.Stmts {
		inv := s.Invocation()
		if inv == nil || inv.Callee != v.Sink {
			continue
		}
		if pos := linePos(pass, s.Pos); pos.IsValid() {
			return pos
		}
	}
	return fallback
}

// linePos converts a "file:line" statement position into a token.Pos at
// the start of that line.
func linePos(pass *analysis.Pass, at string) token.Pos {
	i := strings.LastIndexByte(at, ':')
	if i < 0 {
		return token.NoPos
	}
	line, err := strconv.Atoi(at[i+1:])
	if err != nil {
		return token.NoPos
	}
	for _, f := range pass.Files {
		tf := pass.Fset.File(f.Pos())
		if tf == nil || tf.Name() != at[:i] || line > tf.LineCount() {
			continue
		}
		return tf.LineStart(line)
	}
	return token.NoPos
}
