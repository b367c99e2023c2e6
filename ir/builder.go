package ir

import "fmt"

// BodyBuilder assembles a Body statement by statement. Branch targets are
// given as labels and resolved by Build.
type BodyBuilder struct {
	stmts  []*Stmt
	labels map[string]int
	fixups map[int]string
	params []string
	this   string
	pos    string
}

// NewBodyBuilder returns a builder for a method with n formal parameters.
func NewBodyBuilder(n int) *BodyBuilder {
	return &BodyBuilder{
		labels: make(map[string]int),
		fixups: make(map[int]string),
		params: make([]string, n),
	}
}

func (b *BodyBuilder) add(s *Stmt) *BodyBuilder {
	if s.Pos == "" {
		s.Pos = b.pos
	}
	b.stmts = append(b.stmts, s)
	return b
}

// At sets the source position recorded on subsequent statements.
func (b *BodyBuilder) At(pos string) *BodyBuilder {
	b.pos = pos
	return b
}

// This binds the receiver to local name.
func (b *BodyBuilder) This(name string) *BodyBuilder {
	b.this = name
	return b.add(&Stmt{Kind: IdentityStmt, Lhs: Var(name), Param: ThisParam})
}

// Param binds parameter i to local name.
func (b *BodyBuilder) Param(i int, name string) *BodyBuilder {
	for len(b.params) <= i {
		b.params = append(b.params, "")
	}
	b.params[i] = name
	return b.add(&Stmt{Kind: IdentityStmt, Lhs: Var(name), Param: i})
}

// Assign appends lhs = rhs.
func (b *BodyBuilder) Assign(lhs Value, rhs Expr) *BodyBuilder {
	return b.add(&Stmt{Kind: AssignStmt, Lhs: lhs, Rhs: rhs})
}

// Invoke appends a call statement.
func (b *BodyBuilder) Invoke(inv *Invoke) *BodyBuilder {
	return b.add(&Stmt{Kind: InvokeStmt, Call: inv})
}

// If appends a branch to label taken when cond holds.
func (b *BodyBuilder) If(cond Condition, label string) *BodyBuilder {
	b.fixups[len(b.stmts)] = label
	return b.add(&Stmt{Kind: IfStmt, Cond: cond})
}

// IfNull appends "if v == null goto label".
func (b *BodyBuilder) IfNull(v Value, label string) *BodyBuilder {
	return b.If(Condition{Op: CondEq, X: v, Y: Nil}, label)
}

// IfNotNull appends "if v != null goto label".
func (b *BodyBuilder) IfNotNull(v Value, label string) *BodyBuilder {
	return b.If(Condition{Op: CondNe, X: v, Y: Nil}, label)
}

// Goto appends an unconditional jump to label.
func (b *BodyBuilder) Goto(label string) *BodyBuilder {
	b.fixups[len(b.stmts)] = label
	return b.add(&Stmt{Kind: GotoStmt})
}

// Label names the next statement to be appended.
func (b *BodyBuilder) Label(name string) *BodyBuilder {
	b.labels[name] = len(b.stmts)
	return b
}

// Return appends "return v".
func (b *BodyBuilder) Return(v Value) *BodyBuilder {
	return b.add(&Stmt{Kind: ReturnStmt, Result: &v})
}

// ReturnVoid appends "return".
func (b *BodyBuilder) ReturnVoid() *BodyBuilder {
	return b.add(&Stmt{Kind: ReturnStmt})
}

// Throw appends "throw".
func (b *BodyBuilder) Throw() *BodyBuilder {
	return b.add(&Stmt{Kind: ThrowStmt})
}

// Nop appends a no-op statement.
func (b *BodyBuilder) Nop() *BodyBuilder {
	return b.add(&Stmt{Kind: NopStmt})
}

// Build resolves labels and returns the body. A label placed after the
// last statement gets a trailing no-op to land on.
func (b *BodyBuilder) Build() (*Body, error) {
	for _, at := range b.labels {
		if at == len(b.stmts) {
			b.Nop()
			break
		}
	}
	for i, label := range b.fixups {
		at, ok := b.labels[label]
		if !ok {
			return nil, fmt.Errorf("statement %d: undefined label %q", i, label)
		}
		b.stmts[i].Target = at
	}
	return &Body{Stmts: b.stmts, Params: b.params, This: b.this}, nil
}

// MustBuild is like Build but panics on error.
func (b *BodyBuilder) MustBuild() *Body {
	body, err := b.Build()
	if err != nil {
		panic(err)
	}
	return body
}

// StaticCall returns a static invocation of sig.
func StaticCall(sig string, args ...Value) *Invoke {
	return &Invoke{Kind: StaticInvoke, Callee: sig, Args: args}
}

// VirtualCall returns a virtual invocation of sig on recv.
func VirtualCall(sig string, recv Value, args ...Value) *Invoke {
	return &Invoke{Kind: VirtualInvoke, Callee: sig, Receiver: &recv, Args: args}
}

// InterfaceCall returns an interface invocation of sig on recv.
func InterfaceCall(sig string, recv Value, args ...Value) *Invoke {
	return &Invoke{Kind: InterfaceInvoke, Callee: sig, Receiver: &recv, Args: args}
}

// SpecialCall returns a non-dispatching invocation of sig on recv.
func SpecialCall(sig string, recv Value, args ...Value) *Invoke {
	return &Invoke{Kind: SpecialInvoke, Callee: sig, Receiver: &recv, Args: args}
}
