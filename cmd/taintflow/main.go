// Command taintflow reports attacker controlled data flowing from HTTP
// route handlers into dangerous sinks of a Go program.
//
//	taintflow [flags] [dir | repository URL]
//
// Routes registered with net/http are discovered automatically, or can be
// given as a catalog with -routes. Rules default to a built-in set and
// are extended by a YAML file given with -rules.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/picatz/taintflow"
	"github.com/picatz/taintflow/callgraphutil"
	"github.com/picatz/taintflow/config"
	"github.com/picatz/taintflow/entrypoint"
	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/report"
	"github.com/picatz/taintflow/ssair"
)

type options struct {
	patterns   string
	scan       string
	tests      bool
	routes     string
	rules      string
	noDefaults bool
	format     string
	output     string
	depth      int
	sources    bool
	noSummary  bool
	noPrune    bool
	workers    int
	dot        string
	csv        string
	cosmograph string
	paths      string
	dumpRoutes bool
	initRules  bool
	logLevel   string
	verbose    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	o := &options{}
	fs := flag.NewFlagSet("taintflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: taintflow [flags] [dir | repository URL]\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&o.patterns, "pattern", "./...", "comma separated package patterns to load")
	fs.StringVar(&o.scan, "scan", "", "comma separated import path prefixes of the application")
	fs.BoolVar(&o.tests, "tests", false, "include test packages")
	fs.StringVar(&o.routes, "routes", "", "route catalog file; routes are discovered from net/http registrations otherwise")
	fs.StringVar(&o.rules, "rules", "", "YAML rule file merged over the built-in rules")
	fs.BoolVar(&o.noDefaults, "no-default-rules", false, "use only the rules given with -rules")
	fs.StringVar(&o.format, "format", "text", "output format: text, json or sarif")
	fs.StringVar(&o.output, "o", "", "write the report to a file instead of stdout")
	fs.IntVar(&o.depth, "depth", 0, "maximum call depth (default from rules, 15)")
	fs.BoolVar(&o.sources, "sources", false, "also taint the results of source calls")
	fs.BoolVar(&o.noSummary, "no-summaries", false, "trace leaf methods instead of applying summaries")
	fs.BoolVar(&o.noPrune, "no-prune", false, "analyze methods that cannot reach a sink")
	fs.IntVar(&o.workers, "workers", 0, "call graph construction workers")
	fs.StringVar(&o.dot, "dot", "", "write the call graph in DOT format to this file")
	fs.StringVar(&o.csv, "csv", "", "write the call graph as CSV to this file")
	fs.StringVar(&o.cosmograph, "cosmograph", "", "write Cosmograph edge and metadata CSV files with this prefix")
	fs.StringVar(&o.paths, "paths", "", "print call paths from the routes to methods matching this pattern")
	fs.BoolVar(&o.dumpRoutes, "dump-routes", false, "print the route catalog and exit")
	fs.BoolVar(&o.initRules, "init-rules", false, "print the built-in rules and exit")
	fs.StringVar(&o.logLevel, "log", "info", "log level: silent, info, debug or trace")
	fs.BoolVar(&o.verbose, "v", false, "shorthand for -log debug")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	switch o.format {
	case "text", "json", "sarif":
	default:
		return nil, nil, fmt.Errorf("unknown format %q", o.format)
	}
	if fs.NArg() > 1 {
		return nil, nil, fmt.Errorf("expected at most one target, got %d", fs.NArg())
	}
	return o, fs.Args(), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, rest, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if o.initRules {
		return config.WriteDefault(stdout)
	}
	initStyles(plainOutput(stdout))

	level := callgraphutil.ParseLogLevel(o.logLevel)
	if o.verbose && level < callgraphutil.LogLevelDebug {
		level = callgraphutil.LogLevelDebug
	}
	log := callgraphutil.NewLogger(level, stderr)
	ctx = callgraphutil.WithLogger(ctx, log)

	target := "."
	if len(rest) == 1 {
		target = rest[0]
	}
	if isRepositoryURL(target) {
		dir, head, err := cloneRepository(ctx, target)
		if err != nil {
			return err
		}
		log.Info("analyzing %s at %s", target, head)
		target = dir
	}

	cfg, err := loadRules(o)
	if err != nil {
		return err
	}

	prog, err := ssair.Load(ctx, ssair.Config{
		Dir:          target,
		Patterns:     splitList(o.patterns),
		ScanPackages: append(cfg.Scan.ScanPackages, splitList(o.scan)...),
		Tests:        o.tests,
	})
	if err != nil {
		return err
	}

	routes, err := loadRoutes(o, prog)
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		routes = mainRoutes(prog)
		o.sources = true
		log.Warning("no routes found, analyzing %d main functions with source taint", len(routes))
	}

	if o.dumpRoutes {
		abs, err := filepath.Abs(target)
		if err != nil {
			abs = target
		}
		return entrypoint.WriteCatalog(stdout, filepath.Base(abs), routes)
	}

	a, err := taintflow.NewAnalysis(ctx, prog, routes, cfg.Index(), checkOptions(o, cfg)...)
	if err != nil {
		return err
	}

	if err := exportGraph(o, a); err != nil {
		return err
	}
	if o.paths != "" {
		if err := printPaths(stdout, a, o.paths); err != nil {
			return err
		}
	}

	results, err := a.Run(ctx)
	if err != nil {
		return err
	}

	out := stdout
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return writeReport(out, o.format, results)
}

func loadRules(o *options) (*config.Config, error) {
	cfg := config.Default()
	if o.rules != "" {
		user, err := config.Load(o.rules)
		if err != nil {
			return nil, err
		}
		if o.noDefaults {
			cfg = user
		} else {
			cfg = cfg.Merge(user)
		}
	}
	return cfg, nil
}

func loadRoutes(o *options, prog *ssair.Program) ([]*entrypoint.Route, error) {
	if o.routes == "" {
		return prog.Routes, nil
	}
	f, err := os.Open(o.routes)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes: %w", err)
	}
	defer f.Close()
	return entrypoint.ParseCatalog(f)
}

// mainRoutes treats every main function of the application as a route,
// for programs that take their input from somewhere other than HTTP.
func mainRoutes(prog ir.Program) []*entrypoint.Route {
	var routes []*entrypoint.Route
	for _, c := range prog.Classes() {
		m := c.Method("void main()")
		if m == nil || !m.Static {
			continue
		}
		routes = append(routes, &entrypoint.Route{
			Method:    entrypoint.AnyMethod,
			Path:      "main",
			Class:     c.Name,
			MethodSig: m.SubSignature(),
		})
	}
	return routes
}

func checkOptions(o *options, cfg *config.Config) []taintflow.CheckOption {
	opts := []taintflow.CheckOption{taintflow.WithAuth(cfg.Scan.Auth)}
	switch {
	case o.depth > 0:
		opts = append(opts, taintflow.WithDepth(o.depth))
	case cfg.Scan.MaxDepth > 0:
		opts = append(opts, taintflow.WithDepth(cfg.Scan.MaxDepth))
	}
	if o.sources {
		opts = append(opts, taintflow.WithSourceTaint())
	}
	if o.noSummary {
		opts = append(opts, taintflow.WithoutLeafSummaries())
	}
	if o.noPrune {
		opts = append(opts, taintflow.WithoutPruning())
	}
	if o.workers > 0 {
		opts = append(opts, taintflow.WithCallGraphWorkers(o.workers))
	}
	return opts
}

func createAndWrite(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func exportGraph(o *options, a *taintflow.Analysis) error {
	if o.dot != "" {
		err := createAndWrite(o.dot, func(w io.Writer) error {
			return callgraphutil.WriteDOT(w, a.Graph, a.Reachable)
		})
		if err != nil {
			return err
		}
	}
	if o.csv != "" {
		err := createAndWrite(o.csv, func(w io.Writer) error {
			return callgraphutil.WriteCSV(w, a.Graph)
		})
		if err != nil {
			return err
		}
	}
	if o.cosmograph != "" {
		edges, err := os.Create(o.cosmograph + ".csv")
		if err != nil {
			return err
		}
		defer edges.Close()
		meta, err := os.Create(o.cosmograph + "-metadata.csv")
		if err != nil {
			return err
		}
		defer meta.Close()
		if err := callgraphutil.WriteCosmograph(edges, meta, a.Graph); err != nil {
			return err
		}
	}
	return nil
}

func printPaths(w io.Writer, a *taintflow.Analysis, pattern string) error {
	root := a.Graph.NodeOf(a.Driver.Main)
	paths, strategy, err := callgraphutil.PathsSearchCallToAdvanced(root, pattern)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s\n", styleHeader.Render(fmt.Sprintf("%d paths", len(paths))), styleFaint.Render("("+strategy.String()+" match)"))
	for _, p := range paths {
		sigs := p.Signatures()
		for i, sig := range sigs {
			prefix := "  "
			if i > 0 {
				prefix = "  " + styleArrow.Render("→") + " "
			}
			fmt.Fprintf(w, "%s%s\n", prefix, semanticSignature(sig))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeReport(w io.Writer, format string, results taintflow.Results) error {
	switch format {
	case "json":
		return report.WriteJSON(w, results, report.WithIndent())
	case "sarif":
		return report.WriteSARIF(w, results, report.WithIndent())
	}
	initStyles(plainOutput(w))
	return writeText(w, results)
}
