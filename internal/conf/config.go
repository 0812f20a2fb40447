// config.go: This file contains the configuration for the casetrail engine. It defines the settings struct and functions to load and save the settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DatabaseSettings selects and configures the persistence backend.
type DatabaseSettings struct {
	Backend string // "sqlite" or "mysql"
	SQLite  struct {
		Path string // path to the sqlite database file
	}
	MySQL struct {
		Host     string
		Port     int
		Username string
		Password string
		Database string
	}
}

// HTTPSettings configures the Data API listener.
type HTTPSettings struct {
	Host string
	Port int
}

// RelaySettings configures the live collaboration channel (MQTT relay).
type RelaySettings struct {
	Enabled           bool
	Broker            string // e.g. tcp://broker.example:1883
	ClientID          string
	Username          string
	Password          string
	TopicPrefix       string // prefix for presence/chat topics
	ConnectTimeout    time.Duration
	ReconnectCooldown time.Duration
}

// SessionSettings configures the resilient session bootstrapper.
type SessionSettings struct {
	BootstrapDeadline     time.Duration // hard bound on collaboration channel init
	MemoryPressurePercent float64       // system memory used% above which pressure is high
	OptionalSubsystems    []string      // optional subsystems to start when memory allows
	PressureCheckInterval time.Duration // how often the pressure signal is sampled
}

// PresenceSettings configures presence staleness detection.
type PresenceSettings struct {
	SweepInterval  time.Duration // base interval between stale sweeps
	StaleThreshold time.Duration // last_seen older than this marks a user offline
}

// TelemetrySettings configures optional error telemetry.
type TelemetrySettings struct {
	Enabled bool
	DSN     string
}

// LogSettings configures log output.
type LogSettings struct {
	Level string // debug, info, warn, error
	Path  string // directory for per-service log files
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool
	Main  struct {
		Name string // node name, used in logs and relay client id
		Log  LogSettings
	}
	Database  DatabaseSettings
	HTTP      HTTPSettings
	Relay     RelaySettings
	Session   SessionSettings
	Presence  PresenceSettings
	Telemetry TelemetrySettings
}

var (
	settingsInstance *Settings
	settingsOnce     sync.Once
	settingsMutex    sync.RWMutex
)

// Setting returns the shared Settings instance, loading it on first use.
func Setting() *Settings {
	settingsOnce.Do(func() {
		settingsInstance = &Settings{}
		if err := Load(settingsInstance); err != nil {
			// Defaults are applied before reading the file, so a missing
			// config file still yields a usable configuration.
			fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Load reads configuration into settings from config.yaml and environment.
func Load(settings *Settings) error {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, path := range configPaths() {
		viper.AddConfigPath(path)
	}
	viper.SetEnvPrefix("CASETRAIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine, defaults and env apply.
	}

	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}

	return Validate(settings)
}

// Save writes the current settings to the given path as YAML.
func Save(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks settings for values the engine cannot run with.
func Validate(settings *Settings) error {
	switch settings.Database.Backend {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database backend: %q", settings.Database.Backend)
	}
	if settings.Session.BootstrapDeadline <= 0 {
		return fmt.Errorf("session bootstrap deadline must be positive, got %v", settings.Session.BootstrapDeadline)
	}
	if settings.Presence.StaleThreshold <= 0 {
		return fmt.Errorf("presence stale threshold must be positive, got %v", settings.Presence.StaleThreshold)
	}
	if settings.Session.MemoryPressurePercent <= 0 || settings.Session.MemoryPressurePercent > 100 {
		return fmt.Errorf("memory pressure percent must be in (0,100], got %v", settings.Session.MemoryPressurePercent)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("debug", false)
	viper.SetDefault("main.name", "casetrail")
	viper.SetDefault("main.log.level", "info")
	viper.SetDefault("main.log.path", "logs")
	viper.SetDefault("database.backend", "sqlite")
	viper.SetDefault("database.sqlite.path", "casetrail.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("http.host", "0.0.0.0")
	viper.SetDefault("http.port", 8090)
	viper.SetDefault("relay.enabled", false)
	viper.SetDefault("relay.topicprefix", "casetrail")
	viper.SetDefault("relay.connecttimeout", 10*time.Second)
	viper.SetDefault("relay.reconnectcooldown", 30*time.Second)
	viper.SetDefault("session.bootstrapdeadline", 3*time.Second)
	viper.SetDefault("session.memorypressurepercent", 85.0)
	viper.SetDefault("session.pressurecheckinterval", 30*time.Second)
	viper.SetDefault("presence.sweepinterval", 30*time.Second)
	viper.SetDefault("presence.stalethreshold", 2*time.Minute)
	viper.SetDefault("telemetry.enabled", false)
}

func configPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "casetrail"))
	}
	paths = append(paths, "/etc/casetrail")
	return paths
}
