// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice    PracticeConfig    `toml:"practice"`
	Leaderboard LeaderboardConfig `toml:"leaderboard"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	Mode     *string  `toml:"mode"`
	Time     *int     `toml:"time"`
	Words    *int     `toml:"words"`
	Quote    *int     `toml:"quote"`
	Wordlist *string  `toml:"wordlist"`
	Lang     *string  `toml:"lang"`
	Quotes   *string  `toml:"quotes"`
	CapsPct  *float64 `toml:"caps"`
	PunctPct *float64 `toml:"punct"`
	PunctSet *string  `toml:"punct-set"`
}

// LeaderboardConfig maps leaderboard client settings.
type LeaderboardConfig struct {
	URL *string `toml:"url"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
