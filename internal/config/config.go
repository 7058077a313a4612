// Package config handles discuss configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration structure for discuss.
type Config struct {
	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Server is the RPC endpoint and credentials.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Bus is the push notification feed.
	Bus BusConfig `yaml:"bus" mapstructure:"bus"`

	// Chat tunes the client-side chat state.
	Chat ChatConfig `yaml:"chat" mapstructure:"chat"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// ServerConfig contains the RPC server settings.
type ServerConfig struct {
	// URL is the server base URL, e.g. https://erp.example.com.
	URL string `yaml:"url" mapstructure:"url"`

	// Database selects the server database to authenticate against.
	Database string `yaml:"database" mapstructure:"database"`

	// Login is the user login.
	Login string `yaml:"login" mapstructure:"login"`

	// Password is the user password. Prefer DISCUSS_SERVER_PASSWORD.
	Password string `yaml:"password" mapstructure:"password"`

	// Timeout bounds each RPC call.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BusConfig contains push feed settings.
type BusConfig struct {
	// URL is the websocket endpoint. Derived from server.url when empty.
	URL string `yaml:"url" mapstructure:"url"`

	// DialTimeout bounds the websocket handshake.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// ReconnectInterval is the pause between reconnect attempts.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" mapstructure:"reconnect_interval"`

	// Buffer is the number of notification batches queued for the consumer.
	Buffer int `yaml:"buffer" mapstructure:"buffer"`
}

// ChatConfig contains chat state settings.
type ChatConfig struct {
	// PageSize is the number of messages fetched per channel page.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`

	// ChatterPageSize is the number of document messages fetched per page.
	ChatterPageSize int `yaml:"chatter_page_size" mapstructure:"chatter_page_size"`

	// SeenThrottle is the minimum interval between channel-seen calls per channel.
	SeenThrottle time.Duration `yaml:"seen_throttle" mapstructure:"seen_throttle"`

	// PreviewMaxSize caps notification and preview bodies, in characters.
	PreviewMaxSize int `yaml:"preview_max_size" mapstructure:"preview_max_size"`

	// Mobile disables auto-opening chat windows on incoming messages.
	Mobile bool `yaml:"mobile" mapstructure:"mobile"`

	// Timezone is the IANA zone used to format tracked datetime values.
	// Empty means the local zone.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Server: ServerConfig{
			URL:     "http://localhost:8069",
			Timeout: 30 * time.Second,
		},
		Bus: BusConfig{
			DialTimeout:       10 * time.Second,
			ReconnectInterval: 2 * time.Second,
			Buffer:            64,
		},
		Chat: ChatConfig{
			PageSize:        25,
			ChatterPageSize: 30,
			SeenThrottle:    3 * time.Second,
			PreviewMaxSize:  350,
			Mobile:          false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.URL) == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.Chat.PageSize < 1 {
		return fmt.Errorf("chat.page_size must be at least 1")
	}
	if c.Chat.ChatterPageSize < 1 {
		return fmt.Errorf("chat.chatter_page_size must be at least 1")
	}
	if c.Chat.PreviewMaxSize < 1 {
		return fmt.Errorf("chat.preview_max_size must be at least 1")
	}
	if c.Chat.SeenThrottle < 0 {
		return fmt.Errorf("chat.seen_throttle must not be negative")
	}
	if c.Bus.Buffer < 0 {
		return fmt.Errorf("bus.buffer must not be negative")
	}
	if _, err := c.Chat.Location(); err != nil {
		return fmt.Errorf("chat.timezone: %w", err)
	}
	return nil
}

// Location resolves Timezone.
func (c ChatConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// BusURL returns the websocket endpoint, derived from the server URL when
// bus.url is unset.
func (c *Config) BusURL() string {
	if c.Bus.URL != "" {
		return c.Bus.URL
	}
	base := strings.TrimRight(c.Server.URL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/websocket"
}

// ConfigDir returns the directory holding discuss configuration.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "discuss")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "discuss")
}
