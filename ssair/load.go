// Package ssair turns Go source into the analysis IR.
//
// Packages are loaded and type checked with golang.org/x/tools/go/packages,
// built into SSA form, and then lowered: SSA registers become locals,
// basic blocks become labeled statement ranges, and calls keep the
// declared signature of their callee in the "<Class: Ret name(P1,P2)>"
// form used by rule files, for example
//
//	<database/sql.DB: (*database/sql.Rows, error) Query(string,[]any)>
//
// Handlers registered with net/http are reported as routes.
package ssair

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"

	"github.com/picatz/taintflow/callgraphutil"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// ErrNoPackages is returned when the patterns match no loadable package.
var ErrNoPackages = errors.New("no packages loaded")

// Config controls which code is loaded and which part of it is treated as
// the application.
type Config struct {
	// Dir is the directory the patterns are resolved in.
	Dir string
	// Patterns are package patterns, "./..." when empty.
	Patterns []string
	// ScanPackages restricts lowering to packages under these import
	// path prefixes.
	ScanPackages []string
	Tests        bool
}

const loadMode = packages.NeedName |
	packages.NeedDeps |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedModule |
	packages.NeedTypes |
	packages.NeedImports |
	packages.NeedSyntax |
	packages.NeedTypesInfo

// Load loads, builds and lowers the packages matched by cfg.
func Load(ctx context.Context, cfg Config) (*Program, error) {
	log := callgraphutil.FromContext(ctx).WithPrefix("ssair")

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	pkgs, err := packages.Load(&packages.Config{
		Mode:    loadMode,
		Context: ctx,
		Env:     os.Environ(),
		Dir:     cfg.Dir,
		Tests:   cfg.Tests,
		ParseFile: func(fset *token.FileSet, filename string, src []byte) (*ast.File, error) {
			return parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
		},
	}, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoPackages, patterns)
	}

	loaded := 0
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			log.Warning("%s: %v", pkg.PkgPath, e)
		}
		if pkg.Types != nil && len(pkg.Errors) == 0 {
			loaded++
		}
	}
	if loaded == 0 {
		return nil, fmt.Errorf("%w: every package failed to type check", ErrNoPackages)
	}
	log.Step("packages loaded", fmt.Sprintf("%d of %d", loaded, len(pkgs)))

	prog, ssaPkgs := ssautil.Packages(pkgs, ssa.InstantiateGenerics)
	prog.Build()

	return Lower(ctx, prog, ssaPkgs, cfg.ScanPackages)
}
