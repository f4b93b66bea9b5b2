package reload

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/delayboard/delayboard/server/internal/config"
)

// settleDelay lets a spreadsheet finish saving before it is read.
const settleDelay = 250 * time.Millisecond

// Watch reloads a dataset whenever its file is written or replaced. The
// directories containing the dataset files are watched so atomic saves are
// seen. Watch blocks until ctx is cancelled. The dataset list is read once;
// restart Watch after SetConfig.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	byPath := make(map[string]config.DatasetConfig)
	for _, ds := range r.Datasets() {
		p := filepath.Clean(ds.Path)
		byPath[p] = ds
		dir := filepath.Dir(p)
		if err := watcher.Add(dir); err != nil {
			slog.Error("reload: cannot watch dataset directory", "dataset", ds.ID, "dir", dir, "err", err)
			continue
		}
	}
	slog.Info("reload: watching datasets", "count", len(byPath))

	// pending collects datasets whose files changed during the settle delay.
	pending := make(map[string]config.DatasetConfig)
	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			ds, ok := byPath[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			pending[ds.ID] = ds
			settle.Reset(settleDelay)

		case <-settle.C:
			for id, ds := range pending {
				delete(pending, id)
				slog.Info("reload: dataset changed", "dataset", id, "path", ds.Path)
				_ = r.Load(ctx, ds) // failure is logged and stored
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("reload: watcher error", "err", err)
		}
	}
}

// Schedule reloads all datasets on a standard cron expression (five fields
// or a descriptor such as "@every 1h"). It blocks until ctx is cancelled and waits
// for a running reload to finish before returning.
func (r *Reloader) Schedule(ctx context.Context, expr string) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(expr, func() {
		slog.Info("reload: scheduled reload", "schedule", expr)
		if err := r.LoadAll(ctx); err != nil {
			slog.Warn("reload: scheduled reload finished with errors", "err", err)
		}
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
