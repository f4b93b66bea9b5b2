package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/delayboard/delayboard/server/internal/aggregate"
	"github.com/delayboard/delayboard/server/internal/loader"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "late_rate_pct > 40",
	// "problematic_cases >= 100", "sweep_mobile_60_pct < 25".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Datasets restricts the rule to these dataset ids. Empty means all.
	Datasets []string `yaml:"datasets"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | pagerduty | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 8080
	DefaultStreamInterval = 5 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultConcurrency    = 4
)

// Config is the parsed config.yaml.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Log      LogConfig       `yaml:"log"`
	Analysis AnalysisConfig  `yaml:"analysis"`
	Datasets []DatasetConfig `yaml:"datasets"`
	Reload   ReloadConfig    `yaml:"reload"`
	Alerts   AlertsConfig    `yaml:"alerts"`
}

// ReloadConfig controls when datasets are reloaded.
type ReloadConfig struct {
	// Watch reloads a dataset when its file changes on disk (default true).
	Watch bool `yaml:"watch"`

	// Schedule is an optional cron expression ("*/15 * * * *", "@every 1h")
	// for periodic reloads of all datasets, for files on mounts that do not
	// deliver change events.
	Schedule string `yaml:"schedule"`

	// Concurrency bounds how many datasets are loaded in parallel (default 4).
	Concurrency int `yaml:"concurrency"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket hub and /metrics listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates REST clients.
	Auth AuthConfig `yaml:"auth"`

	// StreamInterval is how often the WebSocket hub pushes a snapshot (default 5s).
	StreamInterval time.Duration `yaml:"stream_interval"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// AnalysisConfig controls how reports are computed.
type AnalysisConfig struct {
	// Thresholds are the sweep thresholds in minutes, positive and strictly
	// increasing. Defaults to 30, 60, 120, 240, 600, 720.
	Thresholds []int `yaml:"thresholds"`
}

// DatasetConfig names one spreadsheet to load and serve.
type DatasetConfig struct {
	// ID is the dataset's identifier in the API. Required and unique.
	ID string `yaml:"id"`

	// Path is the spreadsheet file. Relative paths are resolved against the
	// directory of the config file.
	Path string `yaml:"path"`

	// Format is xlsx | xls | csv. Inferred from the extension when empty.
	Format string `yaml:"format"`

	// Sheet names the worksheet to read. Empty means the first one.
	Sheet string `yaml:"sheet"`
}

// Options returns the loader options for this dataset.
func (d DatasetConfig) Options() loader.Options {
	return loader.Options{Format: loader.Format(d.Format), Sheet: d.Sheet}
}

// Load reads and parses the config file at path.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	base := filepath.Dir(path)
	for i := range cfg.Datasets {
		if p := cfg.Datasets[i].Path; p != "" && !filepath.IsAbs(p) {
			cfg.Datasets[i].Path = filepath.Join(base, p)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// DatasetIDs returns the configured dataset ids in file order.
func (c *Config) DatasetIDs() []string {
	ids := make([]string, 0, len(c.Datasets))
	for _, d := range c.Datasets {
		ids = append(ids, d.ID)
	}
	return ids
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       DefaultHTTPPort,
			StreamInterval: DefaultStreamInterval,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Analysis: AnalysisConfig{
			Thresholds: append([]int(nil), aggregate.DefaultThresholds...),
		},
		Reload: ReloadConfig{
			Watch:       true,
			Concurrency: DefaultConcurrency,
		},
	}
}

// validate checks structural constraints on the parsed configuration and
// fills in inferred dataset formats.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.StreamInterval <= 0 {
		return fmt.Errorf("server.stream_interval must be positive")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}

	if err := aggregate.ValidateThresholds(cfg.Analysis.Thresholds); err != nil {
		return fmt.Errorf("analysis.%w", err)
	}

	seen := make(map[string]bool, len(cfg.Datasets))
	for i := range cfg.Datasets {
		d := &cfg.Datasets[i]
		if d.ID == "" {
			return fmt.Errorf("datasets[%d].id is required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("datasets[%d].id %q is duplicated", i, d.ID)
		}
		seen[d.ID] = true
		if d.Path == "" {
			return fmt.Errorf("datasets[%d].path is required", i)
		}
		switch loader.Format(d.Format) {
		case loader.FormatXLSX, loader.FormatXLS, loader.FormatCSV:
		case "":
			f, err := loader.DetectFormat(d.Path)
			if err != nil {
				return fmt.Errorf("datasets[%d].format: %w", i, err)
			}
			d.Format = string(f)
		default:
			return fmt.Errorf("datasets[%d].format %q unknown: want xlsx|xls|csv", i, d.Format)
		}
	}

	if cfg.Reload.Concurrency <= 0 {
		return fmt.Errorf("reload.concurrency must be positive")
	}
	if cfg.Reload.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Reload.Schedule); err != nil {
			return fmt.Errorf("reload.schedule %q: %w", cfg.Reload.Schedule, err)
		}
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d].name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d].condition is required", i)
		}
	}
	return nil
}
