package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Credentials is the identity saved by `keyrace login`.
type Credentials struct {
	Server   string `toml:"server"`
	Token    string `toml:"token"`
	UserID   string `toml:"user_id"`
	Username string `toml:"username"`
}

// LoadCredentials reads saved credentials. A missing file yields ok=false.
func LoadCredentials(path string) (Credentials, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, false, nil
		}
		return Credentials{}, false, fmt.Errorf("failed to stat credentials: %w", err)
	}
	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		return Credentials{}, false, fmt.Errorf("failed to decode credentials: %w", err)
	}
	if creds.Token == "" {
		return Credentials{}, false, nil
	}
	return creds, true, nil
}

// SaveCredentials writes credentials readable only by the current user.
func SaveCredentials(path string, creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(creds); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// RemoveCredentials deletes saved credentials; a missing file is not an error.
func RemoveCredentials(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
