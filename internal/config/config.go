package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig is the browser and process environment of a run. The test
// data and assertions themselves are fixed and not configurable.
type RuntimeConfig struct {
	ConfigPath       string
	CdpURL           string
	Attach           bool
	Headless         bool
	ChromeBinary     string
	ChromeExtraFlags string
	ProfileDir       string
	NoAnimations     bool
	Timezone         string
	UserAgent        string
	ChromeVersion    string
	ActionTimeout    time.Duration
	NavigateTimeout  time.Duration
	HTTPTimeout      time.Duration
	RunTimeout       time.Duration
	LogLevel         string
	LogFormat        string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envSecondsOr(key string, fallback time.Duration) time.Duration {
	n := envIntOr(key, 0)
	if n == 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".smoketab", "config.yaml")
}

type FileConfig struct {
	CdpURL        string `yaml:"cdpUrl,omitempty"`
	Attach        bool   `yaml:"attach,omitempty"`
	Headless      *bool  `yaml:"headless,omitempty"`
	ChromeBinary  string `yaml:"chromeBinary,omitempty"`
	ChromeFlags   string `yaml:"chromeFlags,omitempty"`
	ProfileDir    string `yaml:"profileDir,omitempty"`
	NoAnimations  bool   `yaml:"noAnimations,omitempty"`
	Timezone      string `yaml:"timezone,omitempty"`
	UserAgent     string `yaml:"userAgent,omitempty"`
	ChromeVersion string `yaml:"chromeVersion,omitempty"`
	ActionSec     int    `yaml:"actionSec,omitempty"`
	NavigateSec   int    `yaml:"navigateSec,omitempty"`
	HTTPSec       int    `yaml:"httpSec,omitempty"`
	RunSec        int    `yaml:"runSec,omitempty"`
	LogLevel      string `yaml:"logLevel,omitempty"`
	LogFormat     string `yaml:"logFormat,omitempty"`
}

// Load reads the environment, then fills anything the environment left unset
// from the YAML file at SMOKE_CONFIG. A missing or unreadable file is ignored.
func Load() *RuntimeConfig {
	cfg := &RuntimeConfig{
		ConfigPath:       envOr("SMOKE_CONFIG", DefaultConfigPath()),
		CdpURL:           os.Getenv("CDP_URL"),
		Attach:           envBoolOr("SMOKE_ATTACH", false),
		Headless:         envBoolOr("SMOKE_HEADLESS", true),
		ChromeBinary:     os.Getenv("CHROME_BINARY"),
		ChromeExtraFlags: os.Getenv("CHROME_FLAGS"),
		ProfileDir:       os.Getenv("SMOKE_PROFILE"),
		NoAnimations:     envBoolOr("SMOKE_NO_ANIMATIONS", false),
		Timezone:         os.Getenv("SMOKE_TIMEZONE"),
		UserAgent:        os.Getenv("SMOKE_USER_AGENT"),
		ChromeVersion:    envOr("SMOKE_CHROME_VERSION", DefaultChromeVersion),
		ActionTimeout:    envSecondsOr("SMOKE_ACTION_TIMEOUT", 15*time.Second),
		NavigateTimeout:  envSecondsOr("SMOKE_NAV_TIMEOUT", 30*time.Second),
		HTTPTimeout:      envSecondsOr("SMOKE_HTTP_TIMEOUT", 10*time.Second),
		RunTimeout:       envSecondsOr("SMOKE_RUN_TIMEOUT", 60*time.Second),
		LogLevel:         envOr("SMOKE_LOG_LEVEL", "info"),
		LogFormat:        envOr("SMOKE_LOG_FORMAT", "text"),
	}

	data, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		return cfg
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg
	}
	cfg.apply(fc)
	return cfg
}

func (c *RuntimeConfig) apply(fc FileConfig) {
	unset := func(key string) bool { return os.Getenv(key) == "" }

	if fc.CdpURL != "" && unset("CDP_URL") {
		c.CdpURL = fc.CdpURL
	}
	if fc.Attach && unset("SMOKE_ATTACH") {
		c.Attach = true
	}
	if fc.Headless != nil && unset("SMOKE_HEADLESS") {
		c.Headless = *fc.Headless
	}
	if fc.ChromeBinary != "" && unset("CHROME_BINARY") {
		c.ChromeBinary = fc.ChromeBinary
	}
	if fc.ChromeFlags != "" && unset("CHROME_FLAGS") {
		c.ChromeExtraFlags = fc.ChromeFlags
	}
	if fc.ProfileDir != "" && unset("SMOKE_PROFILE") {
		c.ProfileDir = fc.ProfileDir
	}
	if fc.NoAnimations && unset("SMOKE_NO_ANIMATIONS") {
		c.NoAnimations = true
	}
	if fc.Timezone != "" && unset("SMOKE_TIMEZONE") {
		c.Timezone = fc.Timezone
	}
	if fc.UserAgent != "" && unset("SMOKE_USER_AGENT") {
		c.UserAgent = fc.UserAgent
	}
	if fc.ChromeVersion != "" && unset("SMOKE_CHROME_VERSION") {
		c.ChromeVersion = fc.ChromeVersion
	}
	if fc.ActionSec > 0 && unset("SMOKE_ACTION_TIMEOUT") {
		c.ActionTimeout = time.Duration(fc.ActionSec) * time.Second
	}
	if fc.NavigateSec > 0 && unset("SMOKE_NAV_TIMEOUT") {
		c.NavigateTimeout = time.Duration(fc.NavigateSec) * time.Second
	}
	if fc.HTTPSec > 0 && unset("SMOKE_HTTP_TIMEOUT") {
		c.HTTPTimeout = time.Duration(fc.HTTPSec) * time.Second
	}
	if fc.RunSec > 0 && unset("SMOKE_RUN_TIMEOUT") {
		c.RunTimeout = time.Duration(fc.RunSec) * time.Second
	}
	if fc.LogLevel != "" && unset("SMOKE_LOG_LEVEL") {
		c.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" && unset("SMOKE_LOG_FORMAT") {
		c.LogFormat = fc.LogFormat
	}
}

func DefaultFileConfig() FileConfig {
	h := true
	return FileConfig{
		Headless:      &h,
		ChromeVersion: DefaultChromeVersion,
		ActionSec:     15,
		NavigateSec:   30,
		HTTPSec:       10,
		RunSec:        60,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

const DefaultChromeVersion = "144.0.7559.133"

var ErrConfigExists = errors.New("config file already exists")

// HandleConfigCommand implements `smoketab config <init|show>`.
func HandleConfigCommand(cfg *RuntimeConfig, args []string, out io.Writer) error {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(out, "Usage: smoketab config <command>")
		_, _ = fmt.Fprintln(out, "Commands:")
		_, _ = fmt.Fprintln(out, "  init [--force]  - Create default config file")
		_, _ = fmt.Fprintln(out, "  show            - Show current configuration")
		return nil
	}

	switch args[0] {
	case "init":
		force := len(args) > 1 && args[1] == "--force"
		if _, err := os.Stat(cfg.ConfigPath); err == nil && !force {
			return fmt.Errorf("%w at %s (use --force to overwrite)", ErrConfigExists, cfg.ConfigPath)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.ConfigPath), 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		data, err := yaml.Marshal(DefaultFileConfig())
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		if err := os.WriteFile(cfg.ConfigPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Config file created at %s\n", cfg.ConfigPath)

	case "show":
		_, _ = fmt.Fprintln(out, "Current configuration:")
		_, _ = fmt.Fprintf(out, "  Config:     %s\n", cfg.ConfigPath)
		_, _ = fmt.Fprintf(out, "  CDP URL:    %s\n", orNone(cfg.CdpURL))
		_, _ = fmt.Fprintf(out, "  Attach:     %v\n", cfg.Attach)
		_, _ = fmt.Fprintf(out, "  Headless:   %v\n", cfg.Headless)
		_, _ = fmt.Fprintf(out, "  Chrome:     %s\n", orNone(cfg.ChromeBinary))
		_, _ = fmt.Fprintf(out, "  Profile:    %s\n", orNone(cfg.ProfileDir))
		_, _ = fmt.Fprintf(out, "  Flags:      %s\n", orNone(cfg.ChromeExtraFlags))
		_, _ = fmt.Fprintf(out, "  Version:    %s\n", cfg.ChromeVersion)
		_, _ = fmt.Fprintf(out, "  User agent: %s\n", orNone(cfg.UserAgent))
		_, _ = fmt.Fprintf(out, "  Timezone:   %s\n", orNone(cfg.Timezone))
		_, _ = fmt.Fprintf(out, "  No anim:    %v\n", cfg.NoAnimations)
		_, _ = fmt.Fprintf(out, "  Timeouts:   action=%v navigate=%v http=%v run=%v\n",
			cfg.ActionTimeout, cfg.NavigateTimeout, cfg.HTTPTimeout, cfg.RunTimeout)
		_, _ = fmt.Fprintf(out, "  Logging:    level=%s format=%s\n", cfg.LogLevel, cfg.LogFormat)

	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
