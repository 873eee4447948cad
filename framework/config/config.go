package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFiles are loaded when Load gets no file names. Variables from
// .env.local win over .env; real environment variables win over both.
var DefaultEnvFiles = []string{".env.local", ".env"}

// DefaultConfigFile is the YAML overlay read when CONFIG_FILE is unset.
const DefaultConfigFile = "config/app.yaml"

// Config is the central typed configuration struct.
//
// Values come from three layers: built-in defaults, the YAML file named by
// CONFIG_FILE, then environment variables (including those from .env files).
type Config struct {
	App       AppConfig       `yaml:"app"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	View      ViewConfig      `yaml:"view"`
	Guard     GuardConfig     `yaml:"guard"`

	// Plugins lists plugin names in boot order.
	Plugins []string `yaml:"plugins"`
}

type AppConfig struct {
	Name  string `yaml:"name"`
	Env   string `yaml:"env"` // local | production | testing
	Debug bool   `yaml:"debug"`
	URL   string `yaml:"url"`
	Port  string `yaml:"port"`
	Key   string `yaml:"key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

type ViewConfig struct {
	Dir       string `yaml:"dir"`
	Ext       string `yaml:"ext"`
	PublicDir string `yaml:"public_dir"`
}

// GuardConfig lists the clients the request guards turn away.
type GuardConfig struct {
	IPBlacklist        []string `yaml:"ip_blacklist"`
	UserAgentBlacklist []string `yaml:"user_agent_blacklist"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:  "GoNix",
			Env:   "local",
			Debug: true,
			URL:   "http://localhost",
			Port:  "8000",
		},
		Log:  LogConfig{Level: "info", Format: "text"},
		View: ViewConfig{Dir: "./views", Ext: ".html", PublicDir: "./public"},
	}
}

// Load reads the .env files that exist (DefaultEnvFiles when none are
// given), the YAML overlay, and the environment.
// Call once at bootstrap: cfg, err := config.Load()
func Load(envFiles ...string) (*Config, error) {
	files := envFiles
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	for _, f := range files {
		// Non-fatal: .env files may not exist in production
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: %s: %w", f, err)
		}
	}

	cfg := Defaults()
	if err := cfg.overlay(env("CONFIG_FILE", DefaultConfigFile)); err != nil {
		return nil, err
	}
	cfg.fromEnv()
	return cfg, nil
}

// overlay merges the YAML file at path into cfg. A missing file is ignored.
func (cfg *Config) overlay(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (cfg *Config) fromEnv() {
	cfg.App.Name = env("APP_NAME", cfg.App.Name)
	cfg.App.Env = env("APP_ENV", cfg.App.Env)
	cfg.App.Debug = envBool("APP_DEBUG", cfg.App.Debug)
	cfg.App.URL = env("APP_URL", cfg.App.URL)
	cfg.App.Port = env("APP_PORT", cfg.App.Port)
	cfg.App.Key = env("APP_KEY", cfg.App.Key)

	cfg.Log.Level = env("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env("LOG_FORMAT", cfg.Log.Format)

	cfg.Telemetry.Enabled = envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)

	cfg.View.Dir = env("VIEW_DIR", cfg.View.Dir)
	cfg.View.PublicDir = env("PUBLIC_DIR", cfg.View.PublicDir)

	cfg.Guard.IPBlacklist = envList("GUARD_IP_BLACKLIST", cfg.Guard.IPBlacklist)
	cfg.Guard.UserAgentBlacklist = envList("GUARD_USER_AGENT_BLACKLIST", cfg.Guard.UserAgentBlacklist)
}

// IsProduction reports whether APP_ENV is "production".
func (cfg *Config) IsProduction() bool { return cfg.App.Env == "production" }

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envList splits a comma separated env value, dropping empty items.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
