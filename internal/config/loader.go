package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DISCUSS_SERVER_URL.
const EnvPrefix = "DISCUSS"

// Loader resolves configuration with the precedence
// defaults < config file < environment < Set overrides.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile sets an explicit config file path. A missing explicit file
// is an error; a missing file on the search path is not.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Set overrides a key, e.g. from a command-line flag.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// ConfigFileUsed returns the config file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load resolves and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	fields := settings(cfg)

	v := l.v
	for _, f := range fields {
		v.SetDefault(f.key, f.value())
		_ = v.BindEnv(f.key, envVarName(f.key))
	}

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	for _, f := range fields {
		f.load(v)
	}
	cfg.Logging.File = expandTilde(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration from the search path.
func LoadDefault() (*Config, error) {
	return NewLoader().Load()
}

// setting binds a config key to the field it fills.
type setting struct {
	key string
	ptr any
}

func settings(cfg *Config) []setting {
	return []setting{
		{"logging.level", &cfg.Logging.Level},
		{"logging.format", &cfg.Logging.Format},
		{"logging.file", &cfg.Logging.File},
		{"logging.enable_caller", &cfg.Logging.EnableCaller},

		{"server.url", &cfg.Server.URL},
		{"server.database", &cfg.Server.Database},
		{"server.login", &cfg.Server.Login},
		{"server.password", &cfg.Server.Password},
		{"server.timeout", &cfg.Server.Timeout},

		{"bus.url", &cfg.Bus.URL},
		{"bus.dial_timeout", &cfg.Bus.DialTimeout},
		{"bus.reconnect_interval", &cfg.Bus.ReconnectInterval},
		{"bus.buffer", &cfg.Bus.Buffer},

		{"chat.page_size", &cfg.Chat.PageSize},
		{"chat.chatter_page_size", &cfg.Chat.ChatterPageSize},
		{"chat.seen_throttle", &cfg.Chat.SeenThrottle},
		{"chat.preview_max_size", &cfg.Chat.PreviewMaxSize},
		{"chat.mobile", &cfg.Chat.Mobile},
		{"chat.timezone", &cfg.Chat.Timezone},
	}
}

func (s setting) value() any {
	switch p := s.ptr.(type) {
	case *string:
		return *p
	case *int:
		return *p
	case *bool:
		return *p
	case *time.Duration:
		return *p
	}
	panic("config: unsupported setting type for " + s.key)
}

func (s setting) load(v *viper.Viper) {
	switch p := s.ptr.(type) {
	case *string:
		*p = v.GetString(s.key)
	case *int:
		*p = v.GetInt(s.key)
	case *bool:
		*p = v.GetBool(s.key)
	case *time.Duration:
		*p = v.GetDuration(s.key)
	}
}

// envVarName converts a key to its env var: server.url -> DISCUSS_SERVER_URL.
func envVarName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func searchPaths() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, "discuss"))
	}
	if home, _ := os.UserHomeDir(); home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", "discuss"))
	}
	return append(dirs, ".")
}

// expandTilde expands a leading ~ to the user's home directory.
func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
