package ir

import (
	"fmt"
	"sort"
	"strings"
)

// MethodID is the dense, stable index of a method within a Program.
type MethodID int

// NoMethod is the zero-like MethodID used for unresolved lookups.
const NoMethod MethodID = -1

// Annotation is a declarative marker on a class or method.
type Annotation struct {
	Type   string
	Values map[string]string
}

// SimpleName returns the annotation type without package qualifiers.
func (a Annotation) SimpleName() string { return SimpleName(a.Type) }

// Method is a method (or function) of the program.
type Method struct {
	ID          MethodID
	Class       string
	Name        string
	Return      string
	Params      []string
	Static      bool
	Abstract    bool
	Annotations []Annotation
	Body        *Body

	sig string
}

// HasBody reports whether the method body is resolvable.
func (m *Method) HasBody() bool { return m != nil && m.Body != nil && len(m.Body.Stmts) > 0 }

// Signature returns the method's full signature, "<Class: Ret name(P)>".
func (m *Method) Signature() string {
	if m.sig != "" {
		return m.sig
	}
	return Signature{Class: m.Class, Return: m.Return, Name: m.Name, Params: m.Params}.String()
}

// SubSignature returns the signature without the declaring class.
func (m *Method) SubSignature() string {
	return Signature{Return: m.Return, Name: m.Name, Params: m.Params}.SubSignature()
}

// NumParams returns the number of formal parameters, not counting the
// receiver.
func (m *Method) NumParams() int { return len(m.Params) }

func (m *Method) String() string { return m.Signature() }

// Class is a class (or named type) of the program.
type Class struct {
	Name        string
	Super       string
	Interfaces  []string
	Annotations []Annotation
	Interface   bool
	Abstract    bool
	// Library marks classes outside the application under analysis.
	Library bool
	Methods []*Method
}

// Method returns the method declared on c with the given sub-signature.
func (c *Class) Method(subsig string) *Method {
	for _, m := range c.Methods {
		if m.SubSignature() == subsig {
			return m
		}
	}
	return nil
}

// MethodsNamed returns the methods declared on c with the given name.
func (c *Class) MethodsNamed(name string) []*Method {
	var out []*Method
	for _, m := range c.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Program is the read-only model of the code under analysis.
type Program interface {
	// Classes returns every class, in insertion order.
	Classes() []*Class
	// Class returns the named class, or nil.
	Class(name string) *Class
	// Methods returns every method, indexed by MethodID.
	Methods() []*Method
	// Method returns the method with the given ID, or nil.
	Method(id MethodID) *Method
	// Lookup returns the method with the given full signature, or nil.
	Lookup(signature string) *Method
}

// Arena is an in-memory Program. Methods are numbered densely in the
// order their classes are added. An arena may extend a base program, in
// which case lookups fall through to the base and new IDs continue after
// the base's last method.
type Arena struct {
	base    Program
	offset  int
	classes []*Class
	byName  map[string]*Class
	methods []*Method
	bySig   map[string]*Method
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{
		byName: make(map[string]*Class),
		bySig:  make(map[string]*Method),
	}
}

// Extend returns an arena layered over base. The base is not modified.
func Extend(base Program) *Arena {
	a := NewArena()
	a.base = base
	a.offset = len(base.Methods())
	return a
}

// AddClass registers c and numbers its methods. It returns an error if a
// class with the same name is already present.
func (a *Arena) AddClass(c *Class) error {
	if a.Class(c.Name) != nil {
		return fmt.Errorf("duplicate class %q", c.Name)
	}
	a.classes = append(a.classes, c)
	a.byName[c.Name] = c
	for _, m := range c.Methods {
		a.register(c, m)
	}
	return nil
}

// MustAddClass is like AddClass but panics on error. Intended for tests and
// synthetic code.
func (a *Arena) MustAddClass(c *Class) *Class {
	if err := a.AddClass(c); err != nil {
		panic(err)
	}
	return c
}

// AddMethod appends m to the already registered class name.
func (a *Arena) AddMethod(class string, m *Method) error {
	c, ok := a.byName[class]
	if !ok {
		return fmt.Errorf("unknown class %q", class)
	}
	c.Methods = append(c.Methods, m)
	a.register(c, m)
	return nil
}

func (a *Arena) register(c *Class, m *Method) {
	m.Class = c.Name
	m.ID = MethodID(a.offset + len(a.methods))
	m.sig = ""
	m.sig = m.Signature()
	a.methods = append(a.methods, m)
	if _, dup := a.bySig[m.sig]; !dup {
		a.bySig[m.sig] = m
	}
}

func (a *Arena) Classes() []*Class {
	if a.base == nil {
		return a.classes
	}
	return append(append([]*Class(nil), a.base.Classes()...), a.classes...)
}

func (a *Arena) Class(name string) *Class {
	if c, ok := a.byName[name]; ok {
		return c
	}
	if a.base != nil {
		return a.base.Class(name)
	}
	return nil
}

func (a *Arena) Methods() []*Method {
	if a.base == nil {
		return a.methods
	}
	return append(append([]*Method(nil), a.base.Methods()...), a.methods...)
}

func (a *Arena) Method(id MethodID) *Method {
	i := int(id)
	if i < a.offset {
		if a.base == nil || i < 0 {
			return nil
		}
		return a.base.Method(id)
	}
	i -= a.offset
	if i >= len(a.methods) {
		return nil
	}
	return a.methods[i]
}

func (a *Arena) Lookup(signature string) *Method {
	if m, ok := a.bySig[signature]; ok {
		return m
	}
	if a.base != nil {
		return a.base.Lookup(signature)
	}
	return nil
}

// ClassNames returns the sorted names of all classes in p, mostly useful
// for diagnostics.
func ClassNames(p Program) []string {
	cs := p.Classes()
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// InPackages reports whether class lies in one of the given package
// prefixes. An empty prefix list matches every class.
func InPackages(class string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, ".")
		if class == p || strings.HasPrefix(class, p+".") || strings.HasPrefix(class, p+"/") {
			return true
		}
	}
	return false
}
