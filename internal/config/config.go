package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default backend names. The router's built-in rules target these.
const (
	TextBackend     = "medgemma"
	AudioBackend    = "hear"
	MoleculeBackend = "txgemma"
	GeneralBackend  = "foundations"
)

// Backend describes one model server: how to launch it and whether the
// supervisor should bring it up at all.
type Backend struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Enabled bool     `yaml:"enabled"`
}

// Timeouts are expressed in seconds in the config file.
type Timeouts struct {
	Ready    int `yaml:"ready"`
	Grace    int `yaml:"grace"`
	Exchange int `yaml:"exchange"`
	Shutdown int `yaml:"shutdown"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Config struct {
	Database Database  `yaml:"database"`
	Timeouts Timeouts  `yaml:"timeouts"`
	Backends []Backend `yaml:"backends"`
}

// Default returns the built-in configuration: the four model servers,
// with only the text backend enabled out of the box.
func Default() *Config {
	return &Config{
		Timeouts: Timeouts{
			Ready:    30,
			Grace:    2,
			Exchange: 60,
			Shutdown: 5,
		},
		Backends: []Backend{
			{Name: TextBackend, Command: "python", Args: []string{serverScript(TextBackend)}, Enabled: true},
			{Name: AudioBackend, Command: "python", Args: []string{serverScript(AudioBackend)}, Enabled: false},
			{Name: MoleculeBackend, Command: "python", Args: []string{serverScript(MoleculeBackend)}, Enabled: false},
			{Name: GeneralBackend, Command: "python", Args: []string{serverScript(GeneralBackend)}, Enabled: false},
		},
	}
}

func serverScript(name string) string {
	return filepath.Join("resources", "servers", name, "server.py")
}

// Load reads a YAML config file. An empty path returns the defaults.
// File values are merged over the defaults, so a file listing only
// backends keeps the default timeouts.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend with empty name")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name: %s", b.Name)
		}
		seen[b.Name] = true
		if b.Enabled && b.Command == "" {
			return fmt.Errorf("backend %s: enabled but no command configured", b.Name)
		}
	}
	return nil
}

// Backend looks up a backend entry by name.
func (c *Config) Backend(name string) (Backend, bool) {
	for _, b := range c.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return Backend{}, false
}

func (t Timeouts) ReadyTimeout() time.Duration    { return time.Duration(t.Ready) * time.Second }
func (t Timeouts) GracePeriod() time.Duration     { return time.Duration(t.Grace) * time.Second }
func (t Timeouts) ExchangeTimeout() time.Duration { return time.Duration(t.Exchange) * time.Second }
func (t Timeouts) ShutdownGrace() time.Duration   { return time.Duration(t.Shutdown) * time.Second }
