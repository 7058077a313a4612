package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Context is the CLI selection: the channel that commands default to when
// none is given. Channel ids are only meaningful on the server and
// database they were selected on.
type Context struct {
	Server      string    `yaml:"server,omitempty" json:"server,omitempty"`
	Database    string    `yaml:"database,omitempty" json:"database,omitempty"`
	ChannelID   string    `yaml:"channel,omitempty" json:"channel_id,omitempty"`
	ChannelName string    `yaml:"channel_name,omitempty" json:"channel_name,omitempty"`
	UpdatedAt   time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// IsEmpty reports whether no channel is selected.
func (c *Context) IsEmpty() bool {
	return c.ChannelID == ""
}

// SetChannel selects a channel on the server of cfg.
func (c *Context) SetChannel(cfg *Config, id, name string) {
	c.Server = cfg.Server.URL
	c.Database = cfg.Server.Database
	c.ChannelID = id
	c.ChannelName = name
	c.UpdatedAt = time.Now()
}

// ChannelFor returns the selected channel id if it was selected on the
// server of cfg, and "" otherwise.
func (c *Context) ChannelFor(cfg *Config) string {
	if c.Server != cfg.Server.URL || c.Database != cfg.Server.Database {
		return ""
	}
	return c.ChannelID
}

func (c *Context) String() string {
	switch {
	case c.IsEmpty():
		return "(no channel selected)"
	case c.ChannelName == "":
		return "channel:" + c.ChannelID
	default:
		return fmt.Sprintf("channel:%s (%s)", c.ChannelName, c.ChannelID)
	}
}

// ContextStore persists the Context as YAML.
type ContextStore struct {
	path string
	mu   sync.Mutex
}

// NewContextStore returns a store at path, or at
// <config dir>/context.yaml when path is empty.
func NewContextStore(path string) *ContextStore {
	if path == "" {
		path = filepath.Join(ConfigDir(), "context.yaml")
	}
	return &ContextStore{path: path}
}

func (s *ContextStore) Path() string {
	return s.path
}

// Load reads the context. A missing file is an empty context.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Context{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read context: %w", err)
	}
	var c Context
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse context %s: %w", s.path, err)
	}
	return &c, nil
}

// Save writes the context, replacing the file atomically.
func (s *ContextStore) Save(c *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create context directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".context-*.yaml")
	if err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write context: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	return nil
}

// Clear removes the context file.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove context: %w", err)
	}
	return nil
}
