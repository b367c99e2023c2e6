// Command irdump prints the analysis IR a set of Go packages is lowered to,
// one class at a time, followed by the routes found in them.
//
//	irdump [-scan prefixes] [-match text] [patterns]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/picatz/taintflow/callgraphutil"
	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/ssair"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("irdump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("C", ".", "directory to load packages from")
	scan := fs.String("scan", "", "comma separated import path prefixes to lower")
	match := fs.String("match", "", "only print methods whose signature contains this text")
	tests := fs.Bool("tests", false, "include test packages")
	verbose := fs.Bool("v", false, "log progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := callgraphutil.LogLevelSilent
	if *verbose {
		level = callgraphutil.LogLevelDebug
	}
	ctx = callgraphutil.WithLogger(ctx, callgraphutil.NewLogger(level, stderr))

	var prefixes []string
	for _, p := range strings.Split(*scan, ",") {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}

	prog, err := ssair.Load(ctx, ssair.Config{
		Dir:          *dir,
		Patterns:     fs.Args(),
		ScanPackages: prefixes,
		Tests:        *tests,
	})
	if err != nil {
		return err
	}

	for _, c := range prog.Classes() {
		dumpClass(stdout, c, *match)
	}
	for _, r := range prog.Routes {
		fmt.Fprintf(stdout, "route %s\n", r)
	}
	return nil
}

func dumpClass(w io.Writer, c *ir.Class, match string) {
	var methods []*ir.Method
	for _, m := range c.Methods {
		if match == "" || strings.Contains(m.Signature(), match) {
			methods = append(methods, m)
		}
	}
	if match != "" && len(methods) == 0 {
		return
	}

	kind := "class"
	if c.Interface {
		kind = "interface"
	}
	fmt.Fprintf(w, "%s %s", kind, c.Name)
	if len(c.Interfaces) > 0 {
		fmt.Fprintf(w, " implements %s", strings.Join(c.Interfaces, ", "))
	}
	fmt.Fprintln(w)

	for _, m := range methods {
		fmt.Fprintf(w, "\n  %s\n", m.Signature())
		if !m.HasBody() {
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(m.Body.String(), "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w)
}
