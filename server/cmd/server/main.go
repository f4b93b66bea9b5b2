package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/delayboard/delayboard/server/internal/alerts"
	"github.com/delayboard/delayboard/server/internal/api"
	"github.com/delayboard/delayboard/server/internal/auth"
	"github.com/delayboard/delayboard/server/internal/config"
	"github.com/delayboard/delayboard/server/internal/metrics"
	"github.com/delayboard/delayboard/server/internal/reload"
	"github.com/delayboard/delayboard/server/internal/report"
	"github.com/delayboard/delayboard/server/internal/store"
	"github.com/delayboard/delayboard/server/internal/ws"
)

// engineRef lets the alert engine be swapped on config reload while the API
// and reloader keep a stable reference.
type engineRef struct{ p atomic.Pointer[alerts.Engine] }

func (r *engineRef) Active() []*alerts.Alert { return r.p.Load().Active() }
func (r *engineRef) Evaluate(rep *report.Report) { r.p.Load().Evaluate(rep) }
func (r *engineRef) Forget(id string) { r.p.Load().Forget(id) }

// background runs the dataset watcher and reload schedule for one config
// generation; restart cancels the previous generation first.
type background struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (b *background) restart(parent context.Context, rl *reload.Reloader, cfg config.ReloadConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.wg.Wait()
	}
	ctx, cancel := context.WithCancel(parent)
	b.cancel = cancel

	if cfg.Watch {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := rl.Watch(ctx); err != nil {
				slog.Error("dataset watcher stopped", "err", err)
			}
		}()
	}
	if cfg.Schedule != "" {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := rl.Schedule(ctx, cfg.Schedule); err != nil {
				slog.Error("reload schedule stopped", "err", err)
			}
		}()
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory (e.g. ui/dist); leave empty to disable")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.Info("delayboard-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Log.NewLogger(os.Stdout))

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"datasets", len(cfg.Datasets),
		"thresholds", cfg.Analysis.Thresholds,
		"stream_interval", cfg.Server.StreamInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New()
	m := metrics.New()

	// Alerts engine: evaluates rules on every freshly built report.
	engine, err := alerts.New(cfg.Alerts)
	if err != nil {
		slog.Error("invalid alert rules", "err", err)
		os.Exit(1)
	}
	eng := &engineRef{}
	eng.p.Store(engine)

	rl := reload.New(cfg, st, m)
	rl.SetEvaluator(eng)

	// WebSocket hub: broadcasts snapshots on every tick and after each reload.
	hub := ws.New(st, cfg.Server.StreamInterval)
	rl.OnReload(hub.Notify)
	go hub.Run(ctx)

	if err := rl.LoadAll(ctx); err != nil {
		slog.Warn("initial load finished with errors", "err", err)
	}

	var bg background
	bg.restart(ctx, rl, cfg.Reload)

	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			slog.SetDefault(next.Log.NewLogger(os.Stdout))
			if next.Server.HTTPPort != cfg.Server.HTTPPort || next.Server.Auth != cfg.Server.Auth {
				slog.Warn("server section changed; restart to apply listener and auth settings")
			}
			if e, err := alerts.New(next.Alerts); err != nil {
				slog.Error("invalid alert rules, keeping previous rules", "err", err)
			} else {
				eng.p.Store(e)
			}
			rl.SetConfig(next)
			if err := rl.LoadAll(ctx); err != nil {
				slog.Warn("reload after config change finished with errors", "err", err)
			}
			bg.restart(ctx, rl, next.Reload)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	requireKey := auth.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", requireKey(api.New(st, eng)))
	httpMux.Handle("/ws/stream", requireKey(hub))
	httpMux.Handle("/metrics", m.Handler())

	// Optional: serve the pre-built dashboard from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := filepath.Join(*uiDir, filepath.Clean("/"+r.URL.Path))
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, filepath.Join(*uiDir, "index.html"))
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("delayboard-server shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	eng.p.Load().Wait()
}
