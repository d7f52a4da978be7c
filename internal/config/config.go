// Package config loads casewatch settings from the environment, an optional
// .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultOrigin is the only address prefix automatic scraping is allowed on.
const DefaultOrigin = "https://onitinc.lightning.force.com/"

// Config holds all configuration shared by the casewatch binaries.
type Config struct {
	// CDP connection settings
	CDPAddress    string `yaml:"cdp_address"`
	CDPPort       int    `yaml:"cdp_port"`
	EvalTimeoutMS int    `yaml:"eval_timeout_ms"`

	AllowedOrigin  string `yaml:"allowed_origin"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	MaxHTMLBytes   int    `yaml:"max_html_bytes"`

	// API server
	BindAddr         string   `yaml:"bind_addr"`
	PortCandidates   []string `yaml:"port_candidates"`
	PortAutoFallback bool     `yaml:"port_auto_fallback"`

	// Result cache
	CacheBackend    string `yaml:"cache_backend"`
	CacheDir        string `yaml:"cache_dir"`
	CacheDBPath     string `yaml:"cache_db_path"`
	CacheStaleGuard bool   `yaml:"cache_stale_guard"`

	ExportDir string `yaml:"export_dir"`
	NotifyURL string `yaml:"notify_url"`
	// RunLogDir holds the scrape journal. Empty disables it.
	RunLogDir string `yaml:"run_log_dir"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// Browser launcher
	BrowserLaunch     bool   `yaml:"browser_launch"`
	BrowserProfileDir string `yaml:"browser_profile_dir"`
	BrowserWindow     string `yaml:"browser_window_size"`
}

func defaults() *Config {
	return &Config{
		CDPAddress:       "127.0.0.1",
		CDPPort:          9220,
		EvalTimeoutMS:    5000,
		AllowedOrigin:    DefaultOrigin,
		PollIntervalMS:   1000,
		MaxHTMLBytes:     5 * 1024 * 1024,
		BindAddr:         "127.0.0.1:8189",
		PortCandidates:   []string{"127.0.0.1:8190", "127.0.0.1:8191", "127.0.0.1:8192"},
		PortAutoFallback: true,
		CacheBackend:     "file",
		CacheDir:         "./casewatch_data",
		CacheDBPath:      "./casewatch_data/casewatch.db",
		CacheStaleGuard:  true,
		ExportDir:        ".",
		RunLogDir:        "./casewatch_data/runs",
		LogLevel:         "info",
		LogFile:          "logs/casewatch.log",

		BrowserProfileDir: "./browser_profile",
		BrowserWindow:     "1280,900",
	}
}

// Load reads configuration. Precedence is environment, then the YAML file
// named by CASEWATCH_CONFIG_FILE, then built-in defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := defaults()
	if path := os.Getenv("CASEWATCH_CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.CDPAddress = getEnvOrDefault("CHROMIUM_CDP_ADDRESS", cfg.CDPAddress)
	cfg.CDPPort = getEnvIntOrDefault("CHROMIUM_CDP_PORT", cfg.CDPPort)
	cfg.EvalTimeoutMS = getEnvIntOrDefault("CONTROLLER_EVAL_TIMEOUT_MS", cfg.EvalTimeoutMS)
	cfg.AllowedOrigin = getEnvOrDefault("CASEWATCH_ALLOWED_ORIGIN", cfg.AllowedOrigin)
	cfg.PollIntervalMS = getEnvIntOrDefault("CASEWATCH_POLL_INTERVAL_MS", cfg.PollIntervalMS)
	cfg.MaxHTMLBytes = getEnvIntOrDefault("CASEWATCH_MAX_HTML_BYTES", cfg.MaxHTMLBytes)
	cfg.BindAddr = getEnvOrDefault("CASEWATCH_BIND_ADDR", cfg.BindAddr)
	cfg.PortCandidates = getEnvListOrDefault("CASEWATCH_PORT_CANDIDATES", cfg.PortCandidates)
	cfg.PortAutoFallback = getEnvBoolOrDefault("CASEWATCH_PORT_AUTO_FALLBACK", cfg.PortAutoFallback)
	cfg.CacheBackend = strings.ToLower(getEnvOrDefault("CACHE_BACKEND", cfg.CacheBackend))
	cfg.CacheDir = getEnvOrDefault("CACHE_DIR", cfg.CacheDir)
	cfg.CacheDBPath = getEnvOrDefault("CACHE_DB_PATH", cfg.CacheDBPath)
	cfg.CacheStaleGuard = getEnvBoolOrDefault("CACHE_STALE_GUARD", cfg.CacheStaleGuard)
	cfg.ExportDir = getEnvOrDefault("CASEWATCH_EXPORT_DIR", cfg.ExportDir)
	cfg.NotifyURL = getEnvOrDefault("NOTIFY_URL", cfg.NotifyURL)
	if v, ok := os.LookupEnv("CASEWATCH_RUN_LOG_DIR"); ok {
		cfg.RunLogDir = v
	}
	cfg.LogLevel = strings.ToLower(getEnvOrDefault("CASEWATCH_LOG_LEVEL", cfg.LogLevel))
	cfg.LogFile = getEnvOrDefault("CASEWATCH_LOG_FILE", cfg.LogFile)
	cfg.BrowserLaunch = getEnvBoolOrDefault("BROWSER_LAUNCH", cfg.BrowserLaunch)
	cfg.BrowserProfileDir = getEnvOrDefault("BROWSER_PROFILE_DIR", cfg.BrowserProfileDir)
	cfg.BrowserWindow = getEnvOrDefault("BROWSER_WINDOW_SIZE", cfg.BrowserWindow)

	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.PollIntervalMS < 100 {
		cfg.PollIntervalMS = 100
	}
	if cfg.AllowedOrigin == "" {
		return nil, errors.New("config: allowed origin must not be empty")
	}
	switch cfg.CacheBackend {
	case "file", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("config: unknown cache backend %q", cfg.CacheBackend)
	}
	return cfg, nil
}

// WithLogFile swaps the log file when it is still the shared default, so
// several binaries can run side by side.
func (c *Config) WithLogFile(name string) *Config {
	if c.LogFile == "logs/casewatch.log" && os.Getenv("CASEWATCH_LOG_FILE") == "" {
		c.LogFile = name
	}
	return c
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// CDPURL returns the CDP HTTP endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
