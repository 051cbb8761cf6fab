// Package config manages YAML-based configuration, CLI flags, and EZWS_* environment overrides.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Backend kinds
const (
	BackendSandbox = "sandbox"
	BackendHost    = "host"
)

// Host transports
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

// Sandbox storages
const (
	StorageMemory = "memory"
	StorageDisk   = "disk"
)

// EnvPrefix is the prefix of environment overrides, e.g. EZWS_HOST_URL.
const EnvPrefix = "EZWS"

// HostConfig describes how to reach a host process that owns the files
type HostConfig struct {
	URL       string `yaml:"url" envconfig:"URL"`
	Transport string `yaml:"transport" envconfig:"TRANSPORT"`
	Root      string `yaml:"root" envconfig:"ROOT"`
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR"`
}

// SandboxConfig describes the in-process sandbox storage and its project database
type SandboxConfig struct {
	Storage  string `yaml:"storage" envconfig:"STORAGE"`
	Dir      string `yaml:"dir,omitempty" envconfig:"DIR"`
	DBDriver string `yaml:"db_driver" envconfig:"DB_DRIVER"`
	DBDSN    string `yaml:"db_dsn,omitempty" envconfig:"DB_DSN"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEV"`
}

// Config holds all configuration options for ezworkspace
type Config struct {
	Port    int    `yaml:"port" envconfig:"PORT"`
	Backend string `yaml:"backend" envconfig:"BACKEND"`
	Open    bool   `yaml:"open" envconfig:"OPEN"`

	// ServeHost exposes this process's filesystem on /api/host for remote workspaces
	ServeHost bool `yaml:"serve_host" envconfig:"SERVE_HOST"`

	Host    HostConfig    `yaml:"host" envconfig:"HOST"`
	Sandbox SandboxConfig `yaml:"sandbox" envconfig:"SANDBOX"`
	Log     LogConfig     `yaml:"log" envconfig:"LOG"`

	// Internal: path to config file for saving
	configPath string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Port:    8080,
		Backend: BackendSandbox,
		Host: HostConfig{
			URL:       "http://127.0.0.1:8080",
			Transport: TransportHTTP,
			Root:      "/",
			DataDir:   filepath.ToSlash(filepath.Join(GetConfigDir(), "data")),
		},
		Sandbox: SandboxConfig{
			Storage:  StorageMemory,
			Dir:      filepath.Join(GetConfigDir(), "sandbox"),
			DBDriver: "duckdb",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/ezworkspace"
	}
	return filepath.Join(home, ".config", "ezworkspace")
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load loads configuration from file, environment and command line flags
func Load() (*Config, error) {
	port := flag.Int("port", 0, "HTTP server port")
	backend := flag.String("backend", "", "Workspace backend (sandbox/host)")
	serveHost := flag.Bool("serve-host", false, "Serve the local filesystem on /api/host")
	open := flag.Bool("open", false, "Open browser on startup")
	configFile := flag.String("config", "", "Configuration file path")

	flag.Parse()

	cfg, err := LoadFile(*configFile)
	if err != nil {
		return nil, err
	}

	// Command line flags override config file and environment (only if explicitly set)
	if *port != 0 {
		cfg.Port = *port
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *serveHost {
		cfg.ServeHost = true
	}
	if *open {
		cfg.Open = true
	}

	return cfg, cfg.Validate()
}

// LoadFile loads defaults, then the config file, then EZWS_* environment
// overrides. An empty path searches the global and local config files.
func LoadFile(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	// Determine config file path
	var cfgPath string
	if configFile != "" {
		cfgPath = configFile
	} else {
		// Try ~/.config/ezworkspace/config.yaml first
		globalConfig := GetConfigPath()
		if _, err := os.Stat(globalConfig); err == nil {
			cfgPath = globalConfig
		} else if _, err := os.Stat("ezworkspace.yaml"); err == nil {
			// Fall back to local ezworkspace.yaml
			cfgPath = "ezworkspace.yaml"
		}
	}

	if cfgPath != "" {
		if err := cfg.loadFromFile(cfgPath); err != nil && configFile != "" {
			// Only return error if user explicitly specified config file
			return nil, err
		}
		cfg.configPath = cfgPath
	} else {
		// Set default config path for saving
		cfg.configPath = GetConfigPath()
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// loadFromEnv applies EZWS_* variables. Unset variables leave the current
// value alone.
func (c *Config) loadFromEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	return nil
}

// Validate rejects unknown enum values.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSandbox, BackendHost:
	default:
		return fmt.Errorf("invalid backend %q", c.Backend)
	}
	switch c.Host.Transport {
	case TransportHTTP, TransportWS:
	default:
		return fmt.Errorf("invalid host transport %q", c.Host.Transport)
	}
	switch c.Sandbox.Storage {
	case StorageMemory, StorageDisk:
	default:
		return fmt.Errorf("invalid sandbox storage %q", c.Sandbox.Storage)
	}
	if c.Backend == BackendHost && c.Host.Root != "" && !strings.HasPrefix(c.Host.Root, "/") {
		return fmt.Errorf("host root %q must be an absolute path", c.Host.Root)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Save saves the current configuration to the config file
func (c *Config) Save() error {
	// Ensure config directory exists
	configDir := filepath.Dir(c.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.configPath, data, 0644)
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}
