package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultHTTPPort is the local port the daemon listens on.
const DefaultHTTPPort = 8787

// Variants of the InfluxDB write API.
const (
	VariantV1 = "v1"
	VariantV2 = "v2"
)

// Config is the full daemon configuration. Values load from a YAML file
// and can be overridden per field through VSBL_* environment variables.
type Config struct {
	Listen ListenConfig `yaml:"listen"`
	Influx InfluxConfig `yaml:"influx"`
	Cache  CacheConfig  `yaml:"cache"`
	Auth   AuthConfig   `yaml:"auth"`
	Alerts AlertsConfig `yaml:"alerts"`

	// VSVersion is the host IDE version stamped into the vs_version
	// tag. The daemon cannot probe the IDE; the plugin's installer
	// writes it here.
	VSVersion string `yaml:"vs_version" env:"VSBL_VS_VERSION"`

	// IncludeUser opts in to recording the OS account name on build
	// records. Off by default; the user tag is then emitted empty.
	IncludeUser bool `yaml:"include_user" env:"VSBL_INCLUDE_USER"`
}

// ListenConfig configures the local HTTP surface.
type ListenConfig struct {
	HTTPPort int `yaml:"http_port" env:"VSBL_HTTP_PORT"`
}

// InfluxConfig selects and configures the delivery backend. Variant
// decides which field group applies; completeness is checked at send
// time, not load time, so a daemon can start before its backend is
// provisioned.
type InfluxConfig struct {
	Variant string `yaml:"variant" env:"VSBL_INFLUX_VARIANT"`
	URL     string `yaml:"url" env:"VSBL_INFLUX_URL"`

	// 1.x: query-parameter credentials.
	Database string `yaml:"database" env:"VSBL_INFLUX_DATABASE"`
	Username string `yaml:"username" env:"VSBL_INFLUX_USERNAME"`
	Password string `yaml:"password" env:"VSBL_INFLUX_PASSWORD"`
	// PasswordEnv names an environment variable holding the password,
	// for deployments that keep secrets out of config files. It wins
	// over Password when set.
	PasswordEnv string `yaml:"password_env"`

	// 2.x: token header plus org/bucket routing.
	Org      string `yaml:"org" env:"VSBL_INFLUX_ORG"`
	Bucket   string `yaml:"bucket" env:"VSBL_INFLUX_BUCKET"`
	Token    string `yaml:"token" env:"VSBL_INFLUX_TOKEN"`
	TokenEnv string `yaml:"token_env"`
}

// EffectivePassword resolves the 1.x password, preferring the
// environment indirection when configured.
func (c InfluxConfig) EffectivePassword() string {
	if c.PasswordEnv != "" {
		return os.Getenv(c.PasswordEnv)
	}
	return c.Password
}

// EffectiveToken resolves the 2.x API token, preferring the environment
// indirection when configured.
func (c InfluxConfig) EffectiveToken() string {
	if c.TokenEnv != "" {
		return os.Getenv(c.TokenEnv)
	}
	return c.Token
}

// CacheConfig configures the on-disk retry store. An empty Dir selects
// the per-user default directory.
type CacheConfig struct {
	Dir      string `yaml:"dir" env:"VSBL_CACHE_DIR"`
	MaxLines int    `yaml:"max_lines" env:"VSBL_CACHE_MAX_LINES"`
}

// AuthConfig guards the local HTTP surface. Mode "none" (the default)
// admits everything; "apikey" requires the shared secret in a header.
type AuthConfig struct {
	Mode   string `yaml:"mode"`
	Header string `yaml:"header"`
	// KeyEnv names the environment variable holding the shared secret.
	// The secret itself never lives in the config file.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the shared secret from the environment, or "" when no
// KeyEnv is configured.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name or the default
// X-Api-Key.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return "X-Api-Key"
	}
	return a.Header
}

// AlertsConfig wires delivery-health alerting.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule fires on sustained delivery trouble. A rule needs either a
// condition expression or at least one structured threshold; zero
// disables a threshold.
type AlertRule struct {
	Name string `yaml:"name"`

	// Condition is an expression over the pipeline summary, for example
	// "consecutive_failures >= 3", "cache_lines > 500", or
	// "delivery == failing". When set it wins over the structured
	// thresholds below.
	Condition string `yaml:"condition"`

	// MaxConsecutiveFailures fires once this many delivery attempts
	// have failed in a row.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
	// MaxCacheLines fires once the retry cache reaches this depth.
	MaxCacheLines int `yaml:"max_cache_lines"`

	Severity string        `yaml:"severity"` // info | warning | critical
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig is one alert delivery target.
type WebhookConfig struct {
	Type string `yaml:"type"` // generic | slack
	// URLEnv names the environment variable holding the webhook URL,
	// keeping tokens embedded in such URLs out of config files.
	URLEnv string `yaml:"url_env"`
}

// URL resolves the webhook URL from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default returns the built-in configuration: local listener on the
// default port, no backend, per-user cache directory.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{HTTPPort: DefaultHTTPPort},
		Auth:   AuthConfig{Mode: "none"},
	}
}

// Load reads, overlays, and validates the configuration at path.
// Environment variables win over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadOrDefaults behaves like Load but treats a missing file as the
// built-in defaults, still applying environment overrides. This keeps
// env-only deployments (CI, containers) from needing a file at all.
func LoadOrDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Listen.HTTPPort < 1 || cfg.Listen.HTTPPort > 65535 {
		return fmt.Errorf("listen.http_port %d out of range", cfg.Listen.HTTPPort)
	}

	switch cfg.Influx.Variant {
	case "", VariantV1, VariantV2:
	default:
		return fmt.Errorf("influx.variant %q unknown (want %q or %q)", cfg.Influx.Variant, VariantV1, VariantV2)
	}

	if cfg.Cache.MaxLines < 0 {
		return fmt.Errorf("cache.max_lines must not be negative")
	}

	switch cfg.Auth.Mode {
	case "", "none", "apikey":
	default:
		return fmt.Errorf("auth.mode %q unknown", cfg.Auth.Mode)
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" && r.MaxConsecutiveFailures <= 0 && r.MaxCacheLines <= 0 {
			return fmt.Errorf("alerts.rules[%d] %q: no condition or threshold configured", i, r.Name)
		}
		if r.Condition != "" && len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("alerts.rules[%d] %q: condition %q is not of the form \"field op value\"", i, r.Name, r.Condition)
		}
		switch r.Severity {
		case "", "info", "warning", "critical":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: severity %q unknown", i, r.Name, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "generic", "slack":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: type %q unknown", i, w.Type)
		}
		if w.URLEnv == "" {
			return fmt.Errorf("alerts.webhooks[%d]: url_env is required", i)
		}
	}

	return nil
}
