package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "quickbites.yaml"
	EnvPrefix      = "QUICKBITES_"
)

// Session backends
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
)

// Config represents the CLI configuration.
//
// Values are layered: defaults, then quickbites.yaml (searched upwards from
// the working directory), then .env files, then QUICKBITES_* variables.
type Config struct {
	APIURL         string        `yaml:"api_url" env:"API_URL"`
	WebURL         string        `yaml:"web_url" env:"WEB_URL"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	SessionBackend string        `yaml:"session_backend" env:"SESSION_BACKEND"`
	OpenBrowser    bool          `yaml:"open_browser" env:"OPEN_BROWSER"`
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat      string        `yaml:"log_format" env:"LOG_FORMAT"`

	// Path of the YAML file that was loaded, empty if none
	Path string `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		APIURL:         "http://localhost:3000/api/v1",
		WebURL:         "http://localhost:5173",
		Timeout:        15 * time.Second,
		SessionBackend: BackendKeyring,
		LogLevel:       "warn",
		LogFormat:      "console",
	}
}

// FindConfigFile searches for quickbites.yaml in the current directory and its parents
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory", ConfigFileName, currentDir)
}

// Load builds the configuration from every source
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path, err := FindConfigFile(); err == nil {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file on top of the defaults, without consulting the environment
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	c.Path = path
	return nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url %q is not an absolute URL", c.APIURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	switch c.SessionBackend {
	case BackendKeyring, BackendFile:
	default:
		errs = append(errs, fmt.Errorf("invalid session_backend '%s', must be one of: keyring, file", c.SessionBackend))
	}

	return errors.Join(errs...)
}

// Save writes the configuration to a YAML file
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Host returns the API host, used to scope stored credentials per backend
func (c *Config) Host() string {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return c.APIURL
	}
	return strings.ToLower(u.Host)
}
