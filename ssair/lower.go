package ssair

import (
	"context"
	"go/types"
	"sort"

	"github.com/picatz/taintflow/callgraphutil"
	"github.com/picatz/taintflow/entrypoint"
	"github.com/picatz/taintflow/ir"
	"golang.org/x/tools/go/ssa"
)

// Program is a Go program lowered into the analysis IR, together with the
// SSA form it came from and the HTTP routes registered by its code.
type Program struct {
	*ir.Arena

	SSA      *ssa.Program
	Packages []*ssa.Package
	Routes   []*entrypoint.Route
}

type lowerer struct {
	prog   *ssa.Program
	arena  *ir.Arena
	log    *callgraphutil.Logger
	ifaces map[string]*types.Interface
	routes []*entrypoint.Route
}

// Lower translates the application packages among pkgs into an IR
// program. A package is part of the application when its path matches one
// of the scan prefixes, or always when scan is empty. Every other package
// is left out; calls into it keep their declared signatures and end up as
// library nodes of the call graph.
//
// Each package becomes a class holding its functions (anonymous functions
// included), each named type a class holding its method set, and each
// named interface an interface class with abstract methods.
func Lower(ctx context.Context, prog *ssa.Program, pkgs []*ssa.Package, scan []string) (*Program, error) {
	l := &lowerer{
		prog:   prog,
		arena:  ir.NewArena(),
		log:    callgraphutil.FromContext(ctx).WithPrefix("ssair"),
		ifaces: make(map[string]*types.Interface),
	}

	var app []*ssa.Package
	for _, pkg := range pkgs {
		if pkg == nil || !ir.InPackages(pkg.Pkg.Path(), scan) {
			continue
		}
		app = append(app, pkg)
	}
	sort.Slice(app, func(i, j int) bool { return app[i].Pkg.Path() < app[j].Pkg.Path() })

	for _, pkg := range app {
		l.collectInterfaces(pkg)
	}

	for _, pkg := range app {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l.lowerPackage(pkg)
	}

	l.log.Info("lowered %d packages into %d classes and %d methods, %d routes",
		len(app), len(l.arena.Classes()), len(l.arena.Methods()), len(l.routes))

	return &Program{
		Arena:    l.arena,
		SSA:      prog,
		Packages: app,
		Routes:   l.routes,
	}, nil
}

func members(pkg *ssa.Package) []ssa.Member {
	names := make([]string, 0, len(pkg.Members))
	for name := range pkg.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]ssa.Member, len(names))
	for i, name := range names {
		out[i] = pkg.Members[name]
	}
	return out
}

// collectInterfaces records the named interfaces a concrete type may be
// dispatched through: those declared by the package and those its code
// invokes methods on.
func (l *lowerer) collectInterfaces(pkg *ssa.Package) {
	for _, mem := range members(pkg) {
		switch mem := mem.(type) {
		case *ssa.Type:
			if iface, ok := mem.Type().Underlying().(*types.Interface); ok {
				l.addInterface(mem.Type(), iface)
			}
		case *ssa.Function:
			forEachFunc(mem, func(fn *ssa.Function) {
				for _, b := range fn.Blocks {
					for _, instr := range b.Instrs {
						call, ok := instr.(ssa.CallInstruction)
						if !ok || !call.Common().IsInvoke() {
							continue
						}
						v := call.Common().Value
						if iface, ok := v.Type().Underlying().(*types.Interface); ok {
							l.addInterface(v.Type(), iface)
						}
					}
				}
			})
		}
	}
}

func (l *lowerer) addInterface(t types.Type, iface *types.Interface) {
	if _, ok := types.Unalias(t).(*types.Named); !ok || iface.NumMethods() == 0 {
		return
	}
	l.ifaces[typeString(t)] = iface
}

// forEachFunc calls f on fn and, recursively, its anonymous functions.
func forEachFunc(fn *ssa.Function, f func(*ssa.Function)) {
	f(fn)
	for _, anon := range fn.AnonFuncs {
		forEachFunc(anon, f)
	}
}

func generic(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	return ok && named.TypeParams().Len() > 0
}

func (l *lowerer) lowerPackage(pkg *ssa.Package) {
	path := pkg.Pkg.Path()
	funcs := &ir.Class{Name: path}

	var named []*ssa.Type
	for _, mem := range members(pkg) {
		switch mem := mem.(type) {
		case *ssa.Function:
			if mem.TypeParams().Len() > 0 {
				continue
			}
			forEachFunc(mem, func(fn *ssa.Function) {
				funcs.Methods = append(funcs.Methods, l.method(fn.Name(), fn, true))
			})
		case *ssa.Type:
			if !generic(mem.Type()) {
				named = append(named, mem)
			}
		}
	}
	l.addClass(funcs)

	for _, t := range named {
		if iface, ok := t.Type().Underlying().(*types.Interface); ok {
			l.addClass(interfaceClass(typeString(t.Type()), iface))
			continue
		}
		l.addClass(l.namedClass(t.Type()))
	}
}

func (l *lowerer) addClass(c *ir.Class) {
	if err := l.arena.AddClass(c); err != nil {
		l.log.Warning("skipping class: %v", err)
	}
}

// method lowers fn into an IR method named name.
func (l *lowerer) method(name string, fn *ssa.Function, static bool) *ir.Method {
	sig := signatureOf("", name, fn.Signature)
	m := &ir.Method{
		Name:   name,
		Return: sig.Return,
		Params: sig.Params,
		Static: static,
	}

	body, err := lowerBody(l.prog.Fset, fn)
	if err != nil {
		l.log.Warning("failed to lower %s: %v", fn, err)
		return m
	}
	m.Body = body

	if body != nil {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				if call, ok := instr.(*ssa.Call); ok {
					l.discoverRoute(call)
				}
			}
		}
	}
	return m
}

// namedClass lowers a concrete named type and its method set. Methods
// declared on T and *T are merged; promoted methods are kept as their
// synthetic wrappers unless the type declares its own.
func (l *lowerer) namedClass(t types.Type) *ir.Class {
	c := &ir.Class{Name: typeString(t)}

	var (
		names  []string
		byName = make(map[string]*ssa.Function)
	)
	for _, recv := range []types.Type{t, types.NewPointer(t)} {
		mset := l.prog.MethodSets.MethodSet(recv)
		for i := 0; i < mset.Len(); i++ {
			sel := mset.At(i)
			fn := l.prog.MethodValue(sel)
			if fn == nil {
				continue
			}
			name := sel.Obj().Name()
			prev, ok := byName[name]
			if !ok {
				names = append(names, name)
				byName[name] = fn
				continue
			}
			if prev.Synthetic != "" && fn.Synthetic == "" {
				byName[name] = fn
			}
		}
	}
	for _, name := range names {
		fn := byName[name]
		c.Methods = append(c.Methods, l.method(name, fn, false))

		// Closures inside methods are package level functions.
		for _, anon := range fn.AnonFuncs {
			forEachFunc(anon, func(f *ssa.Function) {
				if err := l.arena.AddMethod(funcClass(f), l.method(f.Name(), f, true)); err != nil {
					l.log.Warning("skipping closure %s: %v", f, err)
				}
			})
		}
	}

	ifaces := make([]string, 0, len(l.ifaces))
	for name := range l.ifaces {
		ifaces = append(ifaces, name)
	}
	sort.Strings(ifaces)
	for _, name := range ifaces {
		iface := l.ifaces[name]
		if types.Implements(t, iface) || types.Implements(types.NewPointer(t), iface) {
			c.Interfaces = append(c.Interfaces, name)
		}
	}
	return c
}

func interfaceClass(name string, iface *types.Interface) *ir.Class {
	c := &ir.Class{Name: name, Interface: true, Abstract: true}
	for i := 0; i < iface.NumMethods(); i++ {
		fn := iface.Method(i)
		sig := signatureOf(name, fn.Name(), fn.Type().(*types.Signature))
		c.Methods = append(c.Methods, &ir.Method{
			Name:     fn.Name(),
			Return:   sig.Return,
			Params:   sig.Params,
			Abstract: true,
		})
	}
	return c
}
