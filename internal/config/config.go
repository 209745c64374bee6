package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"cli-admin/internal/db"
)

// SavedConnection is one entry of connections.json. Either URI or the
// individual fields are set.
type SavedConnection struct {
	Name     string `json:"name"`
	Host     string `json:"host,omitempty"`
	Port     string `json:"port,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Database string `json:"database,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// URIFor returns the saved URI, or one built from the individual fields.
func (s SavedConnection) URIFor() string {
	if s.URI != "" {
		return s.URI
	}
	return db.BuildURI(s.Host, s.Port, s.User, s.Password, s.Database)
}

// Config is the saved-connections file.
type Config struct {
	Connections []SavedConnection `json:"connections"`
}

// configDir is ~/.config/cli-admin, shared with the views file.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "cli-admin"), nil
}

func connectionsFile() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "connections.json"), nil
}

// Load reads connections.json. A missing file is an empty config; on any
// error the returned config is still usable.
func Load() (*Config, error) {
	cfg := &Config{}
	path, err := connectionsFile()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return &Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes connections.json with owner-only permissions. The file is
// replaced by rename so a failed write never truncates it.
func (c *Config) Save() error {
	path, err := connectionsFile()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".connections-*.json")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Add stores conn, replacing a saved connection of the same name.
func (c *Config) Add(conn SavedConnection) {
	if i := c.index(conn.Name); i >= 0 {
		c.Connections[i] = conn
		return
	}
	c.Connections = append(c.Connections, conn)
}

// Delete removes the connection at index; out of range is a no-op.
func (c *Config) Delete(index int) {
	if index < 0 || index >= len(c.Connections) {
		return
	}
	c.Connections = append(c.Connections[:index], c.Connections[index+1:]...)
}

// Remove deletes the named connection and reports whether it existed.
func (c *Config) Remove(name string) bool {
	i := c.index(name)
	c.Delete(i)
	return i >= 0
}

// Find returns the named connection.
func (c *Config) Find(name string) (SavedConnection, bool) {
	if i := c.index(name); i >= 0 {
		return c.Connections[i], true
	}
	return SavedConnection{}, false
}

func (c *Config) index(name string) int {
	for i, conn := range c.Connections {
		if conn.Name == name {
			return i
		}
	}
	return -1
}
