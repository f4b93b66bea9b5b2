package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/delayboard/delayboard/server/internal/aggregate"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, `datasets: []
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.StreamInterval != DefaultStreamInterval {
		t.Errorf("stream_interval: got %v, want %v", cfg.Server.StreamInterval, DefaultStreamInterval)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if !cfg.Reload.Watch || cfg.Reload.Concurrency != DefaultConcurrency || cfg.Reload.Schedule != "" {
		t.Errorf("reload: got %+v", cfg.Reload)
	}
	if len(cfg.Analysis.Thresholds) != len(aggregate.DefaultThresholds) {
		t.Errorf("thresholds: got %v, want %v", cfg.Analysis.Thresholds, aggregate.DefaultThresholds)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  stream_interval: 2s
  auth:
    mode: apikey
    key_env: MY_KEY
    header: x-board-key
log:
  level: debug
  format: text
analysis:
  thresholds: [15, 45, 90]
datasets:
  - id: rentals
    path: data/delays.xlsx
    sheet: rentals_data
  - id: archive
    path: /srv/archive.csv
reload:
  watch: false
  schedule: "@every 30m"
  concurrency: 2
alerts:
  rules:
    - name: too-many-late
      condition: "late_rate_pct > 40"
      severity: warning
  webhooks:
    - type: slack
      url_env: SLACK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Server.HTTPPort)
	}
	if cfg.Server.StreamInterval != 2*time.Second {
		t.Errorf("stream_interval: got %v, want 2s", cfg.Server.StreamInterval)
	}
	if cfg.Server.Auth.EffectiveHeader() != "x-board-key" {
		t.Errorf("header: got %q, want x-board-key", cfg.Server.Auth.EffectiveHeader())
	}
	if got := cfg.Analysis.Thresholds; len(got) != 3 || got[2] != 90 {
		t.Errorf("thresholds: got %v", got)
	}
	if len(cfg.Datasets) != 2 {
		t.Fatalf("datasets: got %d, want 2", len(cfg.Datasets))
	}

	rentals := cfg.Datasets[0]
	if want := filepath.Join(filepath.Dir(p), "data", "delays.xlsx"); rentals.Path != want {
		t.Errorf("relative path: got %q, want %q", rentals.Path, want)
	}
	if rentals.Format != "xlsx" {
		t.Errorf("inferred format: got %q, want xlsx", rentals.Format)
	}
	if opts := rentals.Options(); opts.Sheet != "rentals_data" {
		t.Errorf("Options.Sheet: got %q", opts.Sheet)
	}
	if cfg.Datasets[1].Path != "/srv/archive.csv" || cfg.Datasets[1].Format != "csv" {
		t.Errorf("archive: got %+v", cfg.Datasets[1])
	}
	if ids := cfg.DatasetIDs(); len(ids) != 2 || ids[0] != "rentals" {
		t.Errorf("DatasetIDs: got %v", ids)
	}
	if cfg.Reload.Watch || cfg.Reload.Schedule != "@every 30m" || cfg.Reload.Concurrency != 2 {
		t.Errorf("reload: got %+v", cfg.Reload)
	}
	if len(cfg.Alerts.Rules) != 1 || cfg.Alerts.Rules[0].Condition != "late_rate_pct > 40" {
		t.Errorf("alerts.rules: got %+v", cfg.Alerts.Rules)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", h)
	}
}

func TestLoad_KeyEnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown auth mode", "server:\n  auth:\n    mode: oauth2\n", "server.auth.mode"},
		{"port out of range", "server:\n  http_port: 70000\n", "server.http_port"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
		{"bad log format", "log:\n  format: xml\n", "log.format"},
		{"decreasing thresholds", "analysis:\n  thresholds: [60, 30]\n", "analysis.thresholds"},
		{"zero threshold", "analysis:\n  thresholds: [0, 30]\n", "analysis.thresholds"},
		{"dataset without id", "datasets:\n  - path: a.csv\n", "datasets[0].id"},
		{"dataset without path", "datasets:\n  - id: a\n", "datasets[0].path"},
		{"duplicate id", "datasets:\n  - id: a\n    path: a.csv\n  - id: a\n    path: b.csv\n", "duplicated"},
		{"unknown extension", "datasets:\n  - id: a\n    path: a.json\n", "datasets[0].format"},
		{"unknown format", "datasets:\n  - id: a\n    path: a.dat\n    format: parquet\n", "datasets[0].format"},
		{"bad schedule", "reload:\n  schedule: every tuesday\n", "reload.schedule"},
		{"zero concurrency", "reload:\n  concurrency: 0\n", "reload.concurrency"},
		{"rule without condition", "alerts:\n  rules:\n    - name: r\n", "condition"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
			if !strings.HasPrefix(err.Error(), "config: ") {
				t.Errorf("error %q lacks config: prefix", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "server:\n  http_port: 8080\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(c *Config) {
			select {
			case got <- c:
			default:
			}
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("server:\n  http_port: 9999\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case c := <-got:
		if c.Server.HTTPPort != 9999 {
			t.Errorf("http_port: got %d, want 9999", c.Server.HTTPPort)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf strings.Builder
	LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf).Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info below warn level was logged: %q", buf.String())
	}

	buf.Reset()
	LogConfig{Level: "debug", Format: "json"}.NewLogger(&buf).Debug("shown", "dataset", "rentals")
	if !strings.Contains(buf.String(), `"dataset":"rentals"`) {
		t.Errorf("json output: got %q", buf.String())
	}

	buf.Reset()
	LogConfig{Level: "info", Format: "text"}.NewLogger(&buf).Info("shown", "dataset", "rentals")
	if !strings.Contains(buf.String(), "dataset=rentals") {
		t.Errorf("text output: got %q", buf.String())
	}
}
