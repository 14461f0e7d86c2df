package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix shared by every environment override.
const EnvPrefix = "FOCUS_"

// FileEnv names the environment variable pointing at an optional YAML config file.
const FileEnv = "FOCUS_CONFIG"

// AppConfig holds the daemon configuration, assembled from defaults, an
// optional YAML file and FOCUS_* environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log     LoggingConfig `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Engine  EngineConfig  `koanf:"engine"`
	Session SessionConfig `koanf:"session"`
	Control ControlConfig `koanf:"control"`
	Sites   SitesConfig   `koanf:"sites"`
}

type LoggingConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// StoreConfig locates the bbolt database holding session, sites, alarms and rules.
type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// EngineConfig tunes the rule engine's decision cache and bloom prefilter.
// A cache size of 0 disables caching.
type EngineConfig struct {
	CacheSize int     `koanf:"cache_size" validate:"gte=0"`
	FPRate    float64 `koanf:"fp_rate" validate:"gt=0,lt=1"`
}

type SessionConfig struct {
	// DefaultMinutes applies when a start request carries no usable duration.
	DefaultMinutes int `koanf:"default_minutes" validate:"required,gte=1"`
}

// ControlConfig configures the local control socket.
type ControlConfig struct {
	Socket string `koanf:"socket" validate:"required,socket_path"`
	// RateLimit caps accepted requests per second; 0 disables limiting.
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`
}

// SitesConfig optionally points at a site file that is imported and watched.
type SitesConfig struct {
	File string `koanf:"file"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings
// for the focus daemon.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:     "prod",
	Log:     LoggingConfig{Level: "info"},
	Store:   StoreConfig{Path: "/var/lib/focus-blocker/focus.db"},
	Engine:  EngineConfig{CacheSize: 1000, FPRate: 0.01},
	Session: SessionConfig{DefaultMinutes: 25},
	Control: ControlConfig{Socket: "/run/focus-blocker/focusd.sock", RateLimit: 20},
	Sites:   SitesConfig{File: ""},
}

// sections lists the nested config blocks; an env key whose first segment is
// one of these is split into "<section>.<rest>".
var sections = map[string]bool{
	"log":     true,
	"store":   true,
	"engine":  true,
	"session": true,
	"control": true,
	"sites":   true,
}

// maxSocketPath is the sun_path limit on Linux, minus the terminating NUL.
const maxSocketPath = 107

// validSocketPath accepts absolute paths short enough to bind as a Unix socket.
func validSocketPath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if p == "" || len(p) > maxSocketPath {
		return false
	}
	if !filepath.IsAbs(p) {
		return false
	}
	return !strings.HasSuffix(p, "/")
}

// envKey maps FOCUS_CONTROL_RATE_LIMIT to control.rate_limit.
func envKey(raw string) string {
	key := strings.ToLower(strings.TrimPrefix(raw, EnvPrefix))
	if head, rest, ok := strings.Cut(key, "_"); ok && sections[head] {
		return head + "." + rest
	}
	return key
}

// envLoader loads FOCUS_* environment variables and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			if key == FileEnv {
				return "", nil
			}
			return envKey(key), strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader merges the YAML file named by FOCUS_CONFIG, if any.
var fileLoader = func(k *koanf.Koanf) error {
	path := strings.TrimSpace(os.Getenv(FileEnv))
	if path == "" {
		return nil
	}
	return k.Load(file.Provider(path), yaml.Parser())
}

// registerValidation registers the "socket_path" tag with the validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("socket_path", validSocketPath)
}

// Load returns the merged configuration: defaults, then the optional file,
// then environment overrides. Validation runs last.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := fileLoader(k); err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
