package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marek-kar/codeaudit/pkg/analysis"
	"github.com/marek-kar/codeaudit/pkg/batch"
	"github.com/marek-kar/codeaudit/pkg/catalog"
	"github.com/marek-kar/codeaudit/pkg/collector"
	"github.com/marek-kar/codeaudit/pkg/history"
	"github.com/marek-kar/codeaudit/pkg/logging"
	"github.com/marek-kar/codeaudit/pkg/metrics"
	"github.com/marek-kar/codeaudit/pkg/model"
	"github.com/marek-kar/codeaudit/pkg/render"
)

const (
	exitOK = iota
	exitFail
	exitLoad
	exitInternal
)

const defaultRuleset = "audit-rules.yaml"

// exitError carries the process exit code. A nil err means the outcome was
// already reported and nothing more should be printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func loadError(err error) error {
	return &exitError{code: exitLoad, err: err}
}

type globalOptions struct {
	ruleset string
	debug   bool
	collect collector.Options
	workers int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	code := exitLoad
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
		if ee.err == nil {
			return code
		}
	}
	printError(stderr, err)
	return code
}

func printError(w io.Writer, err error) {
	var ce *catalog.ConfigError
	if errors.As(err, &ce) {
		src := ce.Source
		if src == "" {
			src = "catalog"
		}
		fmt.Fprintf(w, "Error: invalid ruleset %s: %d problem(s)\n", src, len(ce.Errors))
		for _, fe := range ce.Errors {
			fmt.Fprintf(w, "  - %s\n", fe.Error())
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	g := &globalOptions{collect: collector.DefaultOptions()}
	a := &auditOptions{format: string(render.FormatText)}

	root := &cobra.Command{
		Use:   "audit <path>...",
		Short: "Audit source files against a compliance rule catalog",
		Long: "Audit source files against a compliance rule catalog.\n\n" +
			"Exit codes: 0 PASS or CONDITIONAL_PASS, 1 FAIL, 2 ruleset or file load error,\n" +
			"3 internal inconsistency.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd.Context(), stdout, g, a, args)
		},
	}

	ruleset := os.Getenv("AUDIT_RULESET")
	if ruleset == "" {
		ruleset = defaultRuleset
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.ruleset, "ruleset", ruleset, "rule catalog file or configmap://namespace/name[/key] (env AUDIT_RULESET)")
	pf.BoolVar(&g.debug, "debug", false, "verbose logging to stderr")
	pf.StringVar(&g.collect.Kubeconfig, "kubeconfig", "", "kubeconfig for configmap:// rulesets (default: standard loading rules)")
	pf.StringVar(&g.collect.Root, "root", g.collect.Root, "directory nesting depth is measured from")
	pf.StringVar(&g.collect.Include, "include", g.collect.Include, "file name glob used when expanding directories")
	pf.IntVar(&g.workers, "workers", 0, "files scanned concurrently (default GOMAXPROCS)")

	f := root.Flags()
	f.StringVarP(&a.format, "format", "f", a.format, "output format: text, json, sarif or pdf")
	f.StringVarP(&a.out, "out", "o", "", "write the report to a file instead of stdout (required for pdf)")
	f.BoolVar(&a.quick, "quick", false, "only print verdicts and counts")
	f.StringVar(&a.history, "history", "", "record the run in this SQLite database")
	f.StringVar(&a.metricsOut, "metrics-out", "", "write Prometheus metrics for the run to this textfile")

	root.AddCommand(newRulesCmd(stdout, g))
	root.AddCommand(newWatchCmd(stdout, g))
	root.AddCommand(newHistoryCmd(stdout))
	return root
}

type auditOptions struct {
	format     string
	out        string
	quick      bool
	history    string
	metricsOut string
}

func runAudit(ctx context.Context, stdout io.Writer, g *globalOptions, a *auditOptions, args []string) error {
	format, err := render.ParseFormat(a.format)
	if err != nil {
		return loadError(err)
	}
	if format.Binary() && a.out == "" {
		return loadError(fmt.Errorf("--format %s needs --out", format))
	}

	log, err := logging.New(g.debug)
	if err != nil {
		return loadError(err)
	}
	defer log.Sync()

	cat, err := loadCatalog(ctx, g, log)
	if err != nil {
		return err
	}

	targets, err := collector.Targets(args, g.collect)
	if err != nil {
		return loadError(err)
	}
	if len(targets) == 0 {
		return loadError(fmt.Errorf("no files matching %q under %v", g.collect.Include, args))
	}

	var m *metrics.Metrics
	if a.metricsOut != "" {
		m = metrics.New()
	}
	runner := newRunner(cat, g, log)
	runner.Metrics = m

	outcomes, err := runner.Run(ctx, targets)
	if err != nil {
		return loadError(fmt.Errorf("audit interrupted after %d of %d file(s): %w", len(outcomes), len(targets), err))
	}
	summary := model.NewSummary(cat.Ref(), outcomes)

	var buf bytes.Buffer
	if err := render.New(format, render.Options{Quick: a.quick}).Render(&buf, summary); err != nil {
		if errors.Is(err, render.ErrVerdictInconsistency) {
			return &exitError{code: exitInternal, err: err}
		}
		return loadError(err)
	}
	if err := writeReport(stdout, a.out, buf.Bytes()); err != nil {
		return loadError(err)
	}

	if a.history != "" {
		if err := recordHistory(ctx, a.history, summary, log); err != nil {
			log.Warnw("history not recorded", "path", a.history, "error", err)
		}
	}
	if m != nil {
		if err := m.WriteTextfile(a.metricsOut); err != nil {
			log.Warnw("metrics not written", "error", err)
		}
	}

	switch {
	case summary.HasErrors():
		return &exitError{code: exitLoad}
	case summary.HasFailures():
		return &exitError{code: exitFail}
	}
	return nil
}

func loadCatalog(ctx context.Context, g *globalOptions, log *zap.SugaredLogger) (*catalog.Catalog, error) {
	src, err := collector.NewSource(g.ruleset, g.collect)
	if err != nil {
		return nil, loadError(err)
	}
	cat, err := collector.LoadCatalog(ctx, src)
	if err != nil {
		return nil, loadError(err)
	}
	ref := cat.Ref()
	log.Debugw("catalog loaded", "source", src.String(), "version", ref.Version, "rules", cat.Len(), "sha256", ref.SHA256)
	return cat, nil
}

func newRunner(cat *catalog.Catalog, g *globalOptions, log *zap.SugaredLogger) *batch.Runner {
	engine := analysis.NewEngine(cat)
	engine.Observe(func(file string, from, to analysis.State) {
		log.Debugw("scan state", "file", file, "from", from, "to", to)
	})
	return &batch.Runner{
		Engine:  engine,
		Reader:  collector.FSReader{},
		Workers: g.workers,
		Log:     log,
	}
}

func writeReport(stdout io.Writer, out string, data []byte) error {
	if out == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func recordHistory(ctx context.Context, path string, summary model.Summary, log *zap.SugaredLogger) error {
	store, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	id, err := store.RecordRun(ctx, summary)
	if err != nil {
		return err
	}
	log.Debugw("run recorded", "run", id, "path", path)
	return nil
}
