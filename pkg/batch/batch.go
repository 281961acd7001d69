package batch

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marek-kar/codeaudit/pkg/analysis"
	"github.com/marek-kar/codeaudit/pkg/collector"
	"github.com/marek-kar/codeaudit/pkg/logging"
	"github.com/marek-kar/codeaudit/pkg/metrics"
	"github.com/marek-kar/codeaudit/pkg/model"
)

// Runner scans targets on a bounded pool. The catalog behind the engine is
// read-only, so workers share it without locking.
type Runner struct {
	Engine  *analysis.Engine
	Reader  collector.Reader
	Workers int
	Log     *zap.SugaredLogger
	// Metrics is optional.
	Metrics *metrics.Metrics
}

func (r *Runner) log() *zap.SugaredLogger {
	if r.Log == nil {
		return logging.Nop()
	}
	return r.Log
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run returns one outcome per target in target order. Unreadable files
// become ERROR outcomes and never stop the batch. Once ctx is done no new
// file is started; files already started finish, and only their outcomes
// are returned together with the context error.
func (r *Runner) Run(ctx context.Context, targets []collector.Target) ([]model.FileOutcome, error) {
	outcomes := make([]model.FileOutcome, len(targets))
	started := make([]bool, len(targets))

	var g errgroup.Group
	g.SetLimit(r.workers())
	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		i, t := i, t
		g.Go(func() error {
			outcomes[i] = r.scan(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		var done []model.FileOutcome
		for i, ok := range started {
			if ok {
				done = append(done, outcomes[i])
			}
		}
		r.log().Warnw("batch interrupted", "started", len(done), "total", len(targets), "error", err)
		return done, err
	}
	return outcomes, nil
}

// ScanOne runs a single target through the same path as a batch.
func (r *Runner) ScanOne(ctx context.Context, t collector.Target) model.FileOutcome {
	return r.scan(ctx, t)
}

func (r *Runner) scan(ctx context.Context, t collector.Target) model.FileOutcome {
	start := time.Now()
	// The read is the only step that honours ctx; a scan that has its
	// content always completes.
	fc, err := collector.Load(context.WithoutCancel(ctx), r.Reader, t)
	var o model.FileOutcome
	if err != nil {
		r.log().Warnw("file not scanned", "file", t.Display, "error", err)
		o = model.NewFileOutcome(t.Display, nil, err)
	} else {
		res := r.Engine.Scan(fc)
		r.log().Debugw("file scanned", "file", t.Display, "depth", fc.Depth, "verdict", res.Verdict(), "counts", res.Counts.String())
		o = model.NewFileOutcome(t.Display, res, nil)
	}
	if r.Metrics != nil {
		r.Metrics.ObserveOutcome(o, time.Since(start))
	}
	return o
}
