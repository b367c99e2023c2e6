// Package entrypoint models the externally reachable handlers of a
// program (routes), reads and writes route catalogs, and builds the
// synthetic driver method that calls every route so a call graph can be
// rooted at a single method.
package entrypoint

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/picatz/taintflow/ir"
)

// ErrMalformedRoute is returned for catalog lines that cannot be parsed.
var ErrMalformedRoute = errors.New("malformed route")

// AnyMethod is the verb of routes that accept every HTTP method.
const AnyMethod = "ALL"

// Route is one externally reachable handler.
type Route struct {
	// Method is the HTTP verb, or "ALL".
	Method string
	Path   string
	// Class is the declaring class of the handler.
	Class string
	// MethodSig is the handler's sub-signature, e.g.
	// "java.lang.String getUser(java.lang.String)".
	MethodSig string
	Meta      Meta
}

// Meta carries optional route details.
type Meta struct {
	ContentType string            `json:"contentType,omitempty"`
	Params      []string          `json:"params,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func (m Meta) empty() bool {
	return m.ContentType == "" && len(m.Params) == 0 && len(m.Annotations) == 0
}

// Signature returns the handler's full signature, "<Class: MethodSig>".
func (r *Route) Signature() string {
	return "<" + r.Class + ": " + r.MethodSig + ">"
}

// Name returns the handler's method name as written in MethodSig.
func (r *Route) Name() string {
	sig := r.MethodSig
	if i := strings.IndexByte(sig, '('); i >= 0 {
		sig = sig[:i]
	}
	if i := strings.LastIndexByte(sig, ' '); i >= 0 {
		sig = sig[i+1:]
	}
	return sig
}

func (r *Route) String() string {
	return fmt.Sprintf("%s %s %s %s", r.Method, r.Path, r.Class, r.MethodSig)
}

// ParseCatalog reads routes, one per line:
//
//	VERB PATH CLASS METHOD-SUBSIG [JSON]
//
// Blank lines and lines starting with '#' are skipped. The sub-signature
// may contain spaces; a trailing JSON object, if present, is decoded into
// Meta. An empty verb is read as "ALL".
func ParseCatalog(r io.Reader) ([]*Route, error) {
	var routes []*Route
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		route, err := ParseRoute(line)
		if err != nil {
			return routes, fmt.Errorf("line %d: %w", lineNo, err)
		}
		routes = append(routes, route)
	}
	if err := sc.Err(); err != nil {
		return routes, fmt.Errorf("failed to read catalog: %w", err)
	}
	return routes, nil
}

// ParseRoute parses a single catalog line.
func ParseRoute(line string) (*Route, error) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 4)
	if len(parts) < 4 {
		return nil, fmt.Errorf("%w: want 4 fields, got %d: %q", ErrMalformedRoute, len(parts), line)
	}

	route := &Route{
		Method: strings.ToUpper(parts[0]),
		Path:   parts[1],
		Class:  parts[2],
	}
	if route.Method == "" || route.Method == "-" {
		route.Method = AnyMethod
	}

	rest := strings.TrimSpace(parts[3])
	if i := strings.Index(rest, " {"); i >= 0 {
		if err := json.Unmarshal([]byte(rest[i+1:]), &route.Meta); err != nil {
			return nil, fmt.Errorf("%w: bad metadata: %v", ErrMalformedRoute, err)
		}
		rest = strings.TrimSpace(rest[:i])
	}
	if !strings.Contains(rest, "(") || !strings.HasSuffix(rest, ")") {
		return nil, fmt.Errorf("%w: bad method signature %q", ErrMalformedRoute, rest)
	}
	route.MethodSig = rest
	return route, nil
}

// WriteCatalog writes routes in the format ParseCatalog reads, preceded by
// a "### Project: name ###" header.
func WriteCatalog(w io.Writer, project string, routes []*Route) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "### Project: %s ###\n", project)
	for _, r := range routes {
		method := r.Method
		if method == "" {
			method = AnyMethod
		}
		fmt.Fprintf(bw, "%s %s %s %s", method, r.Path, r.Class, r.MethodSig)
		if !r.Meta.empty() {
			meta, err := json.Marshal(r.Meta)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", r, err)
			}
			bw.WriteByte(' ')
			bw.Write(meta)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Resolve finds the handler method of route in prog. The exact
// sub-signature is tried first, then the first method of the class with
// the same name. It returns nil if the class is unknown or has no such
// method.
func Resolve(prog ir.Program, route *Route) *ir.Method {
	if route == nil {
		return nil
	}
	if m := prog.Lookup(route.Signature()); m != nil {
		return m
	}
	c := prog.Class(route.Class)
	if c == nil {
		return nil
	}
	if m := c.Method(route.MethodSig); m != nil {
		return m
	}
	if ms := c.MethodsNamed(route.Name()); len(ms) > 0 {
		return ms[0]
	}
	return nil
}

// Index maps handler signatures back to their routes.
type Index struct {
	bySig map[string]*Route
}

// NewIndex resolves every route in prog and indexes it by the resolved
// method's signature. Unresolvable routes are left out. When several
// routes resolve to the same method the first is kept.
func NewIndex(prog ir.Program, routes []*Route) *Index {
	idx := &Index{bySig: make(map[string]*Route)}
	for _, r := range routes {
		m := Resolve(prog, r)
		if m == nil {
			continue
		}
		if _, ok := idx.bySig[m.Signature()]; !ok {
			idx.bySig[m.Signature()] = r
		}
	}
	return idx
}

// Route returns the route whose handler has the given signature.
func (idx *Index) Route(sig string) *Route {
	if idx == nil {
		return nil
	}
	return idx.bySig[sig]
}

// Signatures returns the sorted handler signatures.
func (idx *Index) Signatures() []string {
	out := make([]string, 0, len(idx.bySig))
	for sig := range idx.bySig {
		out = append(out, sig)
	}
	sort.Strings(out)
	return out
}
