package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	configDirName  = "quickbites"
	configFileName = "state.json"

	// DirEnv overrides the state directory (used by tests and sandboxed runs)
	DirEnv = "QUICKBITES_CONFIG_DIR"
)

// PendingChallenge is an OTP challenge waiting to be answered. It survives
// between `quickbites login` and `quickbites verify-otp` invocations.
type PendingChallenge struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	RememberMe bool      `json:"remember_me"`
	IssuedAt   time.Time `json:"issued_at"`
}

// PendingReset remembers the account a password reset OTP was sent to
type PendingReset struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserConfig represents the user's local state stored in ~/.config/quickbites/state.json
type UserConfig struct {
	Challenge *PendingChallenge `json:"challenge,omitempty"`
	Reset     *PendingReset     `json:"reset,omitempty"`
}

// GetConfigDir returns the directory holding the state file
func GetConfigDir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName), nil
}

// GetConfigPath returns the path to the user state file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the user state file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If the file doesn't exist, return empty state
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user state file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// StateFile persists pending challenges and resets in the state file
type StateFile struct{}

// LoadChallenge returns the pending challenge, or nil if there is none
func (StateFile) LoadChallenge() (*PendingChallenge, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	return cfg.Challenge, nil
}

// SaveChallenge replaces the pending challenge
func (StateFile) SaveChallenge(p PendingChallenge) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	cfg.Challenge = &p
	return Save(cfg)
}

// ClearChallenge discards the pending challenge
func (StateFile) ClearChallenge() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	if cfg.Challenge == nil {
		return nil
	}
	cfg.Challenge = nil
	return Save(cfg)
}

// SetPendingReset records the account a reset code was sent to
func SetPendingReset(r *PendingReset) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	cfg.Reset = r
	return Save(cfg)
}

// GetPendingReset returns the pending reset, or nil
func GetPendingReset() (*PendingReset, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	return cfg.Reset, nil
}

// SaveReset records the account a reset code was sent to
func (StateFile) SaveReset(r PendingReset) error {
	return SetPendingReset(&r)
}
