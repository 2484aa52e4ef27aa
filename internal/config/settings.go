// Package config loads sprite settings from the embedded defaults, an
// optional TOML file and command-line overrides, in that order.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

//go:embed defaults.toml
var defaultsPayload []byte

const (
	EnvConfigPath     = "SPRITE_CONFIG"
	DefaultConfigPath = ".sprite/config.toml"
)

type Settings struct {
	Delivery  DeliverySettings
	Broadcast BroadcastSettings
	Tmux      TmuxSettings
	Roster    RosterSettings
	Supervise SuperviseSettings
	Log       LogSettings
}

type DeliverySettings struct {
	WaitForConfirmation bool
	DefaultTimeout      time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
	CleanupAfter        time.Duration
	PollInterval        time.Duration
}

type BroadcastSettings struct {
	Sequential  bool
	MaxParallel int
	Pace        time.Duration
}

type TmuxSettings struct {
	Socket string
}

type RosterSettings struct {
	Path string
}

type SuperviseSettings struct {
	RetryInterval   time.Duration
	CleanupInterval time.Duration
	HealthInterval  time.Duration
	MetricsAddr     string
}

type LogSettings struct {
	Level string
}

// ResolvePath picks the settings file: explicit flag, then SPRITE_CONFIG,
// then the project-local default.
func ResolvePath(flagValue string) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		return env
	}
	return filepath.FromSlash(DefaultConfigPath)
}

// Defaults returns the settings encoded in defaults.toml.
func Defaults() Settings {
	settings, err := LoadSettings("", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return settings
}

// LoadSettings reads path if it exists and applies overrides, keyed by dotted
// setting name. A missing file is not an error.
func LoadSettings(path string, overrides map[string]any) (Settings, error) {
	defaults, err := decodeFlat(defaultsPayload)
	if err != nil {
		return Settings{}, err
	}
	values := make(map[string]any, len(defaults))
	for key, value := range defaults {
		values[key] = value
	}

	if strings.TrimSpace(path) != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Settings{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			fileValues, err := decodeFlat(payload)
			if err != nil {
				return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			for key, value := range fileValues {
				values[key] = value
			}
		}
	}

	for key, value := range overrides {
		normalized := NormalizeKey(key)
		if normalized == "" {
			continue
		}
		values[normalized] = value
	}

	settings := Settings{}

	settings.Delivery.WaitForConfirmation = boolSetting(values, "delivery.wait-for-confirmation", true)
	settings.Delivery.DefaultTimeout = seconds(intSetting(values, "delivery.default-timeout-secs", 0))
	settings.Delivery.MaxRetries = int(intSetting(values, "delivery.max-retries", -1))
	settings.Delivery.RetryDelay = seconds(intSetting(values, "delivery.retry-delay-secs", -1))
	settings.Delivery.CleanupAfter = seconds(intSetting(values, "delivery.cleanup-after-secs", 0))
	settings.Delivery.PollInterval = millis(intSetting(values, "delivery.poll-interval-ms", 0))

	settings.Broadcast.Sequential = boolSetting(values, "broadcast.sequential", false)
	settings.Broadcast.MaxParallel = int(intSetting(values, "broadcast.max-parallel", 0))
	settings.Broadcast.Pace = millis(intSetting(values, "broadcast.sequential-pace-ms", -1))

	settings.Tmux.Socket = stringSetting(values, "tmux.socket", "")
	settings.Roster.Path = stringSetting(values, "roster.path", "")

	settings.Supervise.RetryInterval = seconds(intSetting(values, "supervise.retry-interval-secs", 0))
	settings.Supervise.CleanupInterval = seconds(intSetting(values, "supervise.cleanup-interval-secs", 0))
	settings.Supervise.HealthInterval = seconds(intSetting(values, "supervise.health-interval-secs", 0))
	settings.Supervise.MetricsAddr = stringSetting(values, "supervise.metrics-addr", "")

	settings.Log.Level = stringSetting(values, "log.level", "")

	return normalizeSettings(settings, defaults), nil
}

func normalizeSettings(settings Settings, defaults map[string]any) Settings {
	if settings.Delivery.DefaultTimeout <= 0 {
		settings.Delivery.DefaultTimeout = seconds(intSetting(defaults, "delivery.default-timeout-secs", 30))
	}
	if settings.Delivery.MaxRetries < 0 {
		settings.Delivery.MaxRetries = int(intSetting(defaults, "delivery.max-retries", 3))
	}
	if settings.Delivery.RetryDelay < 0 {
		settings.Delivery.RetryDelay = seconds(intSetting(defaults, "delivery.retry-delay-secs", 2))
	}
	if settings.Delivery.CleanupAfter <= 0 {
		settings.Delivery.CleanupAfter = seconds(intSetting(defaults, "delivery.cleanup-after-secs", 300))
	}
	if settings.Delivery.PollInterval <= 0 {
		settings.Delivery.PollInterval = millis(intSetting(defaults, "delivery.poll-interval-ms", 100))
	}
	if settings.Broadcast.MaxParallel < 0 {
		settings.Broadcast.MaxParallel = 0
	}
	if settings.Broadcast.Pace < 0 {
		settings.Broadcast.Pace = millis(intSetting(defaults, "broadcast.sequential-pace-ms", 200))
	}
	if settings.Roster.Path == "" {
		settings.Roster.Path = stringSetting(defaults, "roster.path", "agents/agents.yaml")
	}
	if settings.Supervise.RetryInterval <= 0 {
		settings.Supervise.RetryInterval = seconds(intSetting(defaults, "supervise.retry-interval-secs", 15))
	}
	if settings.Supervise.CleanupInterval <= 0 {
		settings.Supervise.CleanupInterval = seconds(intSetting(defaults, "supervise.cleanup-interval-secs", 60))
	}
	if settings.Supervise.HealthInterval <= 0 {
		settings.Supervise.HealthInterval = seconds(intSetting(defaults, "supervise.health-interval-secs", 30))
	}
	if settings.Log.Level == "" {
		settings.Log.Level = stringSetting(defaults, "log.level", "info")
	}
	return settings
}

func seconds(value int64) time.Duration {
	return time.Duration(value) * time.Second
}

func millis(value int64) time.Duration {
	return time.Duration(value) * time.Millisecond
}
