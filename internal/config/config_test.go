package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var envKeys = []string{
	"SMOKE_CONFIG", "CDP_URL", "SMOKE_ATTACH", "SMOKE_HEADLESS", "CHROME_BINARY",
	"CHROME_FLAGS", "SMOKE_PROFILE", "SMOKE_NO_ANIMATIONS", "SMOKE_TIMEZONE",
	"SMOKE_USER_AGENT", "SMOKE_CHROME_VERSION", "SMOKE_ACTION_TIMEOUT",
	"SMOKE_NAV_TIMEOUT", "SMOKE_HTTP_TIMEOUT", "SMOKE_RUN_TIMEOUT",
	"SMOKE_LOG_LEVEL", "SMOKE_LOG_FORMAT",
}

// isolate clears every config variable and points SMOKE_CONFIG into a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("SMOKE_CONFIG", path)
	return path
}

func TestEnvOr(t *testing.T) {
	key := "SMOKETAB_TEST_ENV"
	t.Setenv(key, "")
	assert.Equal(t, "default", envOr(key, "default"))

	t.Setenv(key, "set")
	assert.Equal(t, "set", envOr(key, "default"))
}

func TestEnvIntOr(t *testing.T) {
	key := "SMOKETAB_TEST_INT"
	t.Setenv(key, "")
	assert.Equal(t, 42, envIntOr(key, 42))

	t.Setenv(key, "100")
	assert.Equal(t, 100, envIntOr(key, 42))

	t.Setenv(key, "invalid")
	assert.Equal(t, 42, envIntOr(key, 42))

	t.Setenv(key, "-3")
	assert.Equal(t, 42, envIntOr(key, 42))
}

func TestEnvBoolOr(t *testing.T) {
	key := "SMOKETAB_TEST_BOOL"
	_ = os.Unsetenv(key)
	assert.True(t, envBoolOr(key, true))

	tests := []struct {
		val  string
		want bool
	}{
		{"1", true}, {"true", true}, {"yes", true}, {"on", true},
		{"0", false}, {"false", false}, {"no", false}, {"off", false},
		{"garbage", true}, // fallback
	}
	for _, tt := range tests {
		t.Setenv(key, tt.val)
		assert.Equal(t, tt.want, envBoolOr(key, true), tt.val)
	}
}

func TestEnvSecondsOr(t *testing.T) {
	key := "SMOKETAB_TEST_SECONDS"
	t.Setenv(key, "")
	assert.Equal(t, 5*time.Second, envSecondsOr(key, 5*time.Second))

	t.Setenv(key, "12")
	assert.Equal(t, 12*time.Second, envSecondsOr(key, 5*time.Second))
}

func TestLoadDefaults(t *testing.T) {
	path := isolate(t)

	cfg := Load()
	assert.Equal(t, path, cfg.ConfigPath)
	assert.Empty(t, cfg.CdpURL)
	assert.False(t, cfg.Attach)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 15*time.Second, cfg.ActionTimeout)
	assert.Equal(t, 30*time.Second, cfg.NavigateTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 60*time.Second, cfg.RunTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CDP_URL", "ws://127.0.0.1:9222/devtools/browser/abc")
	t.Setenv("SMOKE_ATTACH", "true")
	t.Setenv("SMOKE_HEADLESS", "false")
	t.Setenv("SMOKE_RUN_TIMEOUT", "90")

	cfg := Load()
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.CdpURL)
	assert.True(t, cfg.Attach)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 90*time.Second, cfg.RunTimeout)
}

func TestLoadFile(t *testing.T) {
	path := isolate(t)
	data := []byte(`
cdpUrl: http://127.0.0.1:9222
headless: false
navigateSec: 45
httpSec: 3
logLevel: debug
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg := Load()
	assert.Equal(t, "http://127.0.0.1:9222", cfg.CdpURL)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 45*time.Second, cfg.NavigateTimeout)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFileEmulationKeys(t *testing.T) {
	path := isolate(t)
	data := []byte(`
chromeVersion: 139.0.7258.66
timezone: Europe/Berlin
userAgent: Mozilla/5.0 Smoke
noAnimations: true
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg := Load()
	assert.Equal(t, "139.0.7258.66", cfg.ChromeVersion)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, "Mozilla/5.0 Smoke", cfg.UserAgent)
	assert.True(t, cfg.NoAnimations)

	t.Setenv("SMOKE_CHROME_VERSION", "140.0.0.1")
	assert.Equal(t, "140.0.0.1", Load().ChromeVersion)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := isolate(t)
	require.NoError(t, os.WriteFile(path, []byte("headless: false\nlogLevel: debug\n"), 0644))
	t.Setenv("SMOKE_HEADLESS", "true")
	t.Setenv("SMOKE_LOG_LEVEL", "warn")

	cfg := Load()
	assert.True(t, cfg.Headless)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadIgnoresBrokenFile(t *testing.T) {
	path := isolate(t)
	require.NoError(t, os.WriteFile(path, []byte("headless: [unterminated"), 0644))

	cfg := Load()
	assert.True(t, cfg.Headless)
}

func TestDefaultFileConfig(t *testing.T) {
	fc := DefaultFileConfig()
	require.NotNil(t, fc.Headless)
	assert.True(t, *fc.Headless)
	assert.Equal(t, 30, fc.NavigateSec)
}

func TestConfigInitAndShow(t *testing.T) {
	path := isolate(t)
	cfg := Load()

	var out bytes.Buffer
	require.NoError(t, HandleConfigCommand(cfg, []string{"init"}, &out))
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fc FileConfig
	require.NoError(t, yaml.Unmarshal(data, &fc))
	assert.Equal(t, DefaultFileConfig().RunSec, fc.RunSec)
	assert.Equal(t, DefaultChromeVersion, fc.ChromeVersion)

	err = HandleConfigCommand(cfg, []string{"init"}, &out)
	assert.ErrorIs(t, err, ErrConfigExists)
	assert.NoError(t, HandleConfigCommand(cfg, []string{"init", "--force"}, &out))

	out.Reset()
	require.NoError(t, HandleConfigCommand(cfg, []string{"show"}, &out))
	assert.Contains(t, out.String(), "CDP URL:    (none)")
	assert.Contains(t, out.String(), "Headless:   true")

	cfg.Timezone = "Asia/Tokyo"
	cfg.UserAgent = "Mozilla/5.0 Smoke"
	cfg.NoAnimations = true
	out.Reset()
	require.NoError(t, HandleConfigCommand(cfg, []string{"show"}, &out))
	assert.Contains(t, out.String(), "Version:    "+DefaultChromeVersion)
	assert.Contains(t, out.String(), "User agent: Mozilla/5.0 Smoke")
	assert.Contains(t, out.String(), "Timezone:   Asia/Tokyo")
	assert.Contains(t, out.String(), "No anim:    true")
}

func TestConfigUnknownCommand(t *testing.T) {
	cfg := &RuntimeConfig{}
	assert.Error(t, HandleConfigCommand(cfg, []string{"frobnicate"}, &bytes.Buffer{}))

	var out bytes.Buffer
	assert.NoError(t, HandleConfigCommand(cfg, nil, &out))
	assert.Contains(t, out.String(), "Usage: smoketab config")
}
