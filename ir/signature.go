package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadSignature is returned when a string is not a well formed method
// signature of the form "<Class: Ret name(P1,P2)>".
var ErrBadSignature = errors.New("malformed method signature")

// Signature is a parsed fully-qualified method signature.
type Signature struct {
	Class  string
	Return string
	Name   string
	Params []string
}

// String renders the signature as "<Class: Ret name(P1,P2)>".
func (s Signature) String() string {
	return "<" + s.Class + ": " + s.SubSignature() + ">"
}

// SubSignature renders the signature without its class, "Ret name(P1,P2)".
func (s Signature) SubSignature() string {
	return s.Return + " " + s.Name + "(" + strings.Join(s.Params, ",") + ")"
}

// ParseSignature parses a full signature. Return and parameter types may
// themselves contain spaces, commas and parentheses (Go function and
// tuple types), so the parameter list is located by matching the final
// closing parenthesis.
func ParseSignature(sig string) (Signature, error) {
	if !strings.HasPrefix(sig, "<") || !strings.HasSuffix(sig, ">") {
		return Signature{}, fmt.Errorf("%w: %q", ErrBadSignature, sig)
	}
	inner := sig[1 : len(sig)-1]

	class, rest, ok := strings.Cut(inner, ": ")
	if !ok || class == "" {
		return Signature{}, fmt.Errorf("%w: %q: missing class", ErrBadSignature, sig)
	}

	sub, err := ParseSubSignature(rest)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %q", err, sig)
	}
	sub.Class = class
	return sub, nil
}

// ParseSubSignature parses "Ret name(P1,P2)".
func ParseSubSignature(sub string) (Signature, error) {
	sub = strings.TrimSpace(sub)
	if !strings.HasSuffix(sub, ")") {
		return Signature{}, fmt.Errorf("%w: missing parameter list", ErrBadSignature)
	}

	open := -1
	depth := 0
	for i := len(sub) - 1; i >= 0; i-- {
		switch sub[i] {
		case ')':
			depth++
		case '(':
			depth--
		}
		if depth == 0 {
			open = i
			break
		}
	}
	if open <= 0 {
		return Signature{}, fmt.Errorf("%w: unbalanced parameter list", ErrBadSignature)
	}

	head := strings.TrimSpace(sub[:open])
	sp := strings.LastIndexByte(head, ' ')
	if sp <= 0 {
		return Signature{}, fmt.Errorf("%w: missing return type", ErrBadSignature)
	}

	return Signature{
		Return: strings.TrimSpace(head[:sp]),
		Name:   head[sp+1:],
		Params: splitTypes(sub[open+1 : len(sub)-1]),
	}, nil
}

// splitTypes splits a comma separated type list at nesting depth zero.
func splitTypes(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(list[start:]))
}

// SimpleName strips any package or descriptor decoration from a type
// name: "Lcom/example/RequireAuth;" and "com.example.RequireAuth" both
// become "RequireAuth".
func SimpleName(typ string) string {
	if strings.HasPrefix(typ, "L") && strings.HasSuffix(typ, ";") {
		typ = typ[1 : len(typ)-1]
	}
	if i := strings.LastIndexAny(typ, "./$"); i >= 0 {
		typ = typ[i+1:]
	}
	return strings.TrimLeft(typ, "*")
}
