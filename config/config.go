package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mbocsi/kiosk/proto"
	"gopkg.in/yaml.v2"
)

// Config is the complete configuration for the kiosk service
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Settings    SettingsConfig    `yaml:"settings"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	MCP         MCPConfig         `yaml:"mcp"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Log         LogConfig         `yaml:"log"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// CatalogConfig points at the artisan and question documents
type CatalogConfig struct {
	Artisans  string `yaml:"artisans"`
	Questions string `yaml:"questions"`
}

// SettingsConfig holds the persisted endpoint store and its defaults
type SettingsConfig struct {
	Path        string `yaml:"path"`
	DefaultHost string `yaml:"defaultHost"`
	DefaultPort string `yaml:"defaultPort"`
}

type DispatchConfig struct {
	HandleLifetimeSec int `yaml:"handleLifetimeSec"`
}

// MaintenanceConfig holds the hidden trigger and unlock settings
type MaintenanceConfig struct {
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"passwordHash"` // bcrypt, takes precedence over password
	TokenSecret  string `yaml:"tokenSecret"`  // random per process when empty
	TapCount     int    `yaml:"tapCount"`
	TapWindowMs  int    `yaml:"tapWindowMs"`
	SessionMin   int    `yaml:"sessionMin"`
}

type MCPConfig struct {
	Mode string `yaml:"mode"` // off, stdio or sse
	Addr string `yaml:"addr"`
}

type DiscoveryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Service    string `yaml:"service"`
	TimeoutSec int    `yaml:"timeoutSec"`
}

// LogConfig controls the slog handler and the optional rotating log file
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Load builds the configuration: defaults, then the file at path (or
// KIOSK_CONFIG when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("KIOSK_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Catalog: CatalogConfig{
			Artisans:  "assets/artisans.json",
			Questions: "assets/artisan_questions.json",
		},
		Settings: SettingsConfig{
			Path:        "data/settings.yaml",
			DefaultHost: "192.168.1.100",
			DefaultPort: "8080",
		},
		Dispatch: DispatchConfig{
			HandleLifetimeSec: 300,
		},
		Maintenance: MaintenanceConfig{
			TapCount:    5,
			TapWindowMs: 2000,
			SessionMin:  10,
		},
		MCP: MCPConfig{
			Mode: "off",
			Addr: ":8081",
		},
		Discovery: DiscoveryConfig{
			Enabled:    false,
			Service:    "_exhibit-player._udp",
			TimeoutSec: 2,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if addr := os.Getenv("KIOSK_HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if level := os.Getenv("KIOSK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if pw := os.Getenv("KIOSK_MAINTENANCE_PASSWORD"); pw != "" {
		cfg.Maintenance.Password = pw
	}
	if path := os.Getenv("KIOSK_SETTINGS_PATH"); path != "" {
		cfg.Settings.Path = path
	}
	if mode := os.Getenv("KIOSK_MCP_MODE"); mode != "" {
		cfg.MCP.Mode = mode
	}
	if lifetime := os.Getenv("KIOSK_HANDLE_LIFETIME_SEC"); lifetime != "" {
		sec, err := strconv.Atoi(strings.TrimSpace(lifetime))
		if err != nil {
			return fmt.Errorf("KIOSK_HANDLE_LIFETIME_SEC must be an integer, got %q", lifetime)
		}
		cfg.Dispatch.HandleLifetimeSec = sec
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Catalog.Artisans == "" {
		return fmt.Errorf("catalog.artisans is required")
	}
	if c.Settings.Path == "" {
		return fmt.Errorf("settings.path is required")
	}
	if err := c.DefaultEndpoint().Validate(); err != nil {
		return fmt.Errorf("settings default endpoint: %w", err)
	}
	if c.Dispatch.HandleLifetimeSec <= 0 {
		return fmt.Errorf("dispatch.handleLifetimeSec must be positive, got %d", c.Dispatch.HandleLifetimeSec)
	}
	if c.Maintenance.PasswordHash != "" && !strings.HasPrefix(c.Maintenance.PasswordHash, "$2") {
		return fmt.Errorf("maintenance.passwordHash must be a bcrypt hash")
	}
	if c.Maintenance.TapCount < 1 {
		return fmt.Errorf("maintenance.tapCount must be at least 1, got %d", c.Maintenance.TapCount)
	}
	if c.Maintenance.TapWindowMs <= 0 {
		return fmt.Errorf("maintenance.tapWindowMs must be positive, got %d", c.Maintenance.TapWindowMs)
	}
	if c.Maintenance.SessionMin <= 0 {
		return fmt.Errorf("maintenance.sessionMin must be positive, got %d", c.Maintenance.SessionMin)
	}

	validModes := []string{"off", "stdio", "sse"}
	if !contains(validModes, c.MCP.Mode) {
		return fmt.Errorf("invalid mcp.mode %s, must be one of: %v", c.MCP.Mode, validModes)
	}
	if c.MCP.Mode == "sse" && c.MCP.Addr == "" {
		return fmt.Errorf("mcp.addr is required in sse mode")
	}
	if c.Discovery.Enabled && c.Discovery.Service == "" {
		return fmt.Errorf("discovery.service is required when discovery is enabled")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	validFormats := []string{"json", "text"}
	if !contains(validFormats, c.Log.Format) {
		return fmt.Errorf("invalid log.format %s, must be one of: %v", c.Log.Format, validFormats)
	}
	return nil
}

func (c *Config) DefaultEndpoint() proto.Endpoint {
	return proto.Endpoint{Host: c.Settings.DefaultHost, Port: c.Settings.DefaultPort}
}

func (c *Config) HandleLifetime() time.Duration {
	return time.Duration(c.Dispatch.HandleLifetimeSec) * time.Second
}

func (c *Config) TapWindow() time.Duration {
	return time.Duration(c.Maintenance.TapWindowMs) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Maintenance.SessionMin) * time.Minute
}

func (c *Config) DiscoveryTimeout() time.Duration {
	if c.Discovery.TimeoutSec <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Discovery.TimeoutSec) * time.Second
}

// ParseLevel maps a config level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log.level %q", s)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
