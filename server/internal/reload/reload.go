package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/delayboard/delayboard/server/internal/config"
	"github.com/delayboard/delayboard/server/internal/loader"
	"github.com/delayboard/delayboard/server/internal/metrics"
	"github.com/delayboard/delayboard/server/internal/report"
	"github.com/delayboard/delayboard/server/internal/store"
)

// Evaluator receives every freshly built report and is told when a dataset
// no longer has one. *alerts.Engine implements it.
type Evaluator interface {
	Evaluate(r *report.Report)
	Forget(datasetID string)
}

// Reloader loads datasets into the store. It is safe for concurrent use.
type Reloader struct {
	store   *store.Store
	metrics *metrics.Metrics

	mu          sync.RWMutex
	datasets    []config.DatasetConfig
	thresholds  []int
	concurrency int
	eval        Evaluator
	onReload    []func()
}

// New creates a Reloader for cfg. m may be nil.
func New(cfg *config.Config, st *store.Store, m *metrics.Metrics) *Reloader {
	r := &Reloader{store: st, metrics: m}
	r.SetConfig(cfg)
	return r
}

// SetConfig replaces the dataset list and analysis settings. Datasets no
// longer configured are dropped from the store, metrics and alerts. It does
// not load anything; call LoadAll afterwards.
func (r *Reloader) SetConfig(cfg *config.Config) {
	r.mu.Lock()
	r.datasets = append([]config.DatasetConfig(nil), cfg.Datasets...)
	r.thresholds = append([]int(nil), cfg.Analysis.Thresholds...)
	r.concurrency = cfg.Reload.Concurrency
	if r.concurrency <= 0 {
		r.concurrency = config.DefaultConcurrency
	}
	eval := r.eval
	r.mu.Unlock()

	keep := cfg.DatasetIDs()
	for _, e := range r.store.List() {
		if contains(keep, e.DatasetID) {
			continue
		}
		if r.metrics != nil {
			r.metrics.Forget(e.DatasetID)
		}
		if eval != nil {
			eval.Forget(e.DatasetID)
		}
	}
	if n := r.store.Retain(keep); n > 0 {
		slog.Info("reload: dropped unconfigured datasets", "count", n)
	}
}

// SetEvaluator installs the alert evaluator; nil disables alerting.
func (r *Reloader) SetEvaluator(e Evaluator) {
	r.mu.Lock()
	r.eval = e
	r.mu.Unlock()
}

// OnReload registers fn to be called after every dataset load, successful
// or not. The WebSocket hub uses it to push fresh data.
func (r *Reloader) OnReload(fn func()) {
	r.mu.Lock()
	r.onReload = append(r.onReload, fn)
	r.mu.Unlock()
}

// Datasets returns the configured datasets.
func (r *Reloader) Datasets() []config.DatasetConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]config.DatasetConfig(nil), r.datasets...)
}

// LoadAll loads every configured dataset, at most reload.concurrency at a
// time. Failed datasets are recorded in the store; the returned error joins
// all failures. It stops starting new loads when ctx is cancelled.
func (r *Reloader) LoadAll(ctx context.Context) error {
	r.mu.RLock()
	datasets := append([]config.DatasetConfig(nil), r.datasets...)
	limit := r.concurrency
	r.mu.RUnlock()

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, ds := range datasets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := r.Load(gctx, ds); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Load loads one dataset, builds its report and publishes the outcome.
func (r *Reloader) Load(ctx context.Context, ds config.DatasetConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	thresholds := r.thresholds
	eval := r.eval
	hooks := append([]func(){}, r.onReload...)
	r.mu.RUnlock()

	start := time.Now()
	rep, err := build(ds, thresholds)
	took := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordReload(ds.ID, err, took)
	}

	if err != nil {
		err = fmt.Errorf("dataset %s: %w", ds.ID, err)
		r.store.PutError(ds.ID, err)
		if r.metrics != nil {
			r.metrics.Forget(ds.ID)
		}
		if eval != nil {
			eval.Forget(ds.ID)
		}
		slog.Error("reload: dataset failed", "dataset", ds.ID, "path", ds.Path, "err", err)
	} else {
		r.store.Put(rep)
		if r.metrics != nil {
			r.metrics.Observe(rep)
		}
		if eval != nil {
			eval.Evaluate(rep)
		}
		slog.Info("reload: dataset loaded",
			"dataset", ds.ID,
			"rows", rep.Totals.Rows,
			"skipped", rep.Totals.Skipped,
			"problematic", rep.Totals.Problematic,
			"warnings", len(rep.Warnings),
			"took", took,
		)
		for _, w := range rep.Warnings {
			slog.Warn("reload: report warning", "dataset", ds.ID, "warning", w)
		}
	}

	for _, fn := range hooks {
		fn()
	}
	return err
}

func build(ds config.DatasetConfig, thresholds []int) (*report.Report, error) {
	res, err := loader.LoadFile(ds.Path, ds.Options())
	if err != nil {
		return nil, err
	}
	return report.Build(ds.ID, res.Table, thresholds, report.WithSkippedRows(res.SkippedRows))
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
