package callgraph

import (
	"sort"

	"github.com/picatz/taintflow/ir"
)

// Hierarchy answers class hierarchy questions over a Program, which is
// all class hierarchy analysis needs to resolve virtual calls.
type Hierarchy struct {
	prog     ir.Program
	subtypes map[string][]string // direct subclasses and implementors
}

// NewHierarchy indexes the subtype relation of prog.
func NewHierarchy(prog ir.Program) *Hierarchy {
	h := &Hierarchy{
		prog:     prog,
		subtypes: make(map[string][]string),
	}
	for _, c := range prog.Classes() {
		if c.Super != "" {
			h.subtypes[c.Super] = append(h.subtypes[c.Super], c.Name)
		}
		for _, iface := range c.Interfaces {
			h.subtypes[iface] = append(h.subtypes[iface], c.Name)
		}
	}
	for k := range h.subtypes {
		sort.Strings(h.subtypes[k])
	}
	return h
}

// SubtypesOf returns class and every transitive subtype of it, class
// first, the rest in sorted order.
func (h *Hierarchy) SubtypesOf(class string) []string {
	seen := map[string]bool{class: true}
	out := []string{class}
	for i := 0; i < len(out); i++ {
		for _, sub := range h.subtypes[out[i]] {
			if !seen[sub] {
				seen[sub] = true
				out = append(out, sub)
			}
		}
	}
	sort.Strings(out[1:])
	return out
}

// Dispatch finds the implementation of subsig that an object of class
// would run, walking up the superclass chain.
func (h *Hierarchy) Dispatch(class, subsig string) *ir.Method {
	seen := make(map[string]bool)
	for class != "" && !seen[class] {
		seen[class] = true
		c := h.prog.Class(class)
		if c == nil {
			return nil
		}
		if m := c.Method(subsig); m != nil {
			return m
		}
		class = c.Super
	}
	return nil
}

// target is a resolved call target: a method of the program, or only a
// signature when the program does not contain the callee.
type target struct {
	method *ir.Method
	sig    string
}

func (t target) key() string {
	if t.method != nil {
		return t.method.Signature()
	}
	return t.sig
}

// Resolve returns the possible targets of inv. Static and special calls
// resolve to the declared (or inherited) method. Virtual and interface
// calls resolve to every concrete implementation in the declared class and
// its subtypes. Calls the program cannot resolve yield the declared
// signature alone.
func (h *Hierarchy) Resolve(inv *ir.Invoke) []target {
	sig, err := inv.Target()
	if err != nil {
		return []target{{sig: inv.Callee}}
	}
	subsig := sig.SubSignature()

	switch inv.Kind {
	case ir.StaticInvoke, ir.SpecialInvoke:
		if m := h.Dispatch(sig.Class, subsig); m != nil {
			return []target{{method: m}}
		}
	case ir.VirtualInvoke, ir.InterfaceInvoke:
		var (
			out  []target
			seen = make(map[*ir.Method]bool)
		)
		for _, name := range h.SubtypesOf(sig.Class) {
			c := h.prog.Class(name)
			if c == nil || c.Interface || c.Abstract {
				continue
			}
			m := h.Dispatch(name, subsig)
			if m == nil || m.Abstract || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, target{method: m})
		}
		if len(out) > 0 {
			return out
		}
		// No concrete implementation is known; keep the declared method
		// so library interfaces still show up as nodes.
		if m := h.Dispatch(sig.Class, subsig); m != nil {
			return []target{{method: m}}
		}
	}
	return []target{{sig: inv.Callee}}
}

// site pairs a call statement with its resolved targets.
type site struct {
	stmt    *ir.Stmt
	targets []target
}

// resolveBody resolves every call site in m, in statement order.
func (h *Hierarchy) resolveBody(m *ir.Method) []site {
	if !m.HasBody() {
		return nil
	}
	var out []site
	for _, s := range m.Body.Stmts {
		inv := s.Invocation()
		if inv == nil {
			continue
		}
		out = append(out, site{stmt: s, targets: h.Resolve(inv)})
	}
	return out
}
