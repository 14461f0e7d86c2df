package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(FileEnv, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "/var/lib/focus-blocker/focus.db", cfg.Store.Path)
	assert.Equal(t, 1000, cfg.Engine.CacheSize)
	assert.InDelta(t, 0.01, cfg.Engine.FPRate, 1e-9)
	assert.Equal(t, 25, cfg.Session.DefaultMinutes)
	assert.Equal(t, "/run/focus-blocker/focusd.sock", cfg.Control.Socket)
	assert.Equal(t, 20, cfg.Control.RateLimit)
	assert.Empty(t, cfg.Sites.File)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("FOCUS_ENV", "dev")
	t.Setenv("FOCUS_LOG_LEVEL", "debug")
	t.Setenv("FOCUS_STORE_PATH", "/tmp/focus.db")
	t.Setenv("FOCUS_ENGINE_CACHE_SIZE", "0")
	t.Setenv("FOCUS_ENGINE_FP_RATE", "0.001")
	t.Setenv("FOCUS_SESSION_DEFAULT_MINUTES", "50")
	t.Setenv("FOCUS_CONTROL_SOCKET", "/tmp/fb.sock")
	t.Setenv("FOCUS_CONTROL_RATE_LIMIT", "5")
	t.Setenv("FOCUS_SITES_FILE", " /etc/focus/sites.yaml ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/focus.db", cfg.Store.Path)
	assert.Equal(t, 0, cfg.Engine.CacheSize)
	assert.InDelta(t, 0.001, cfg.Engine.FPRate, 1e-9)
	assert.Equal(t, 50, cfg.Session.DefaultMinutes)
	assert.Equal(t, "/tmp/fb.sock", cfg.Control.Socket)
	assert.Equal(t, 5, cfg.Control.RateLimit)
	assert.Equal(t, "/etc/focus/sites.yaml", cfg.Sites.File)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.yaml")
	body := "env: dev\n" +
		"log:\n  level: warn\n" +
		"session:\n  default_minutes: 45\n" +
		"sites:\n  file: /srv/sites.txt\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv(FileEnv, path)
	t.Setenv("FOCUS_SESSION_DEFAULT_MINUTES", "90")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 90, cfg.Session.DefaultMinutes, "env wins over file")
	assert.Equal(t, "/srv/sites.txt", cfg.Sites.File)
	assert.Equal(t, DEFAULT_APP_CONFIG.Store.Path, cfg.Store.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"env", "FOCUS_ENV", "staging"},
		{"log level", "FOCUS_LOG_LEVEL", "trace"},
		{"empty store", "FOCUS_STORE_PATH", ""},
		{"negative cache", "FOCUS_ENGINE_CACHE_SIZE", "-1"},
		{"fp rate", "FOCUS_ENGINE_FP_RATE", "1.5"},
		{"zero minutes", "FOCUS_SESSION_DEFAULT_MINUTES", "0"},
		{"minutes NaN", "FOCUS_SESSION_DEFAULT_MINUTES", "soon"},
		{"relative socket", "FOCUS_CONTROL_SOCKET", "focusd.sock"},
		{"negative rate", "FOCUS_CONTROL_RATE_LIMIT", "-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(FileEnv, "")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_WhenDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := Load()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mocked error"))
}

func TestLoad_WhenEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading env")
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mocked validation error")
}

func TestDefaultLoader_InvalidDefault_ValidationFails(t *testing.T) {
	orig := DEFAULT_APP_CONFIG
	defer func() { DEFAULT_APP_CONFIG = orig }()
	t.Setenv(FileEnv, "")

	DEFAULT_APP_CONFIG.Control.Socket = "/" + strings.Repeat("s", 200)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidSocketPath(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"/run/focusd.sock", true},
		{"/tmp/a", true},
		{"relative.sock", false},
		{"", false},
		{"/run/dir/", false},
		{"/" + strings.Repeat("x", 120), false},
	}

	validate := validator.New()
	require.NoError(t, validate.RegisterValidation("socket_path", validSocketPath))

	type S struct {
		Path string `validate:"socket_path"`
	}
	for _, tc := range cases {
		err := validate.Struct(S{Path: tc.input})
		assert.Equal(t, tc.want, err == nil, "validSocketPath(%q)", tc.input)
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "env", envKey("FOCUS_ENV"))
	assert.Equal(t, "log.level", envKey("FOCUS_LOG_LEVEL"))
	assert.Equal(t, "control.rate_limit", envKey("FOCUS_CONTROL_RATE_LIMIT"))
	assert.Equal(t, "session.default_minutes", envKey("FOCUS_SESSION_DEFAULT_MINUTES"))
	assert.Equal(t, "unknown_thing", envKey("FOCUS_UNKNOWN_THING"))
}
