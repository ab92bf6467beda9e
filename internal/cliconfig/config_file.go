package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with TOML friendly field types.
type FileConfig struct {
	CacheDir    string `toml:"cache_dir"`
	CacheSize   int64  `toml:"cache_size"`
	LRUSize     int    `toml:"lru_size"`
	DatasetName string `toml:"dataset_name"`
	Keep        *bool  `toml:"keep"`
	Handler     string `toml:"handler"`
	Select      string `toml:"select"`
	ForceSize   int    `toml:"force_size"`
	Epochs      int    `toml:"epochs"`
	Limit       int    `toml:"limit"`
	ShuffleSeed *int64 `toml:"shuffle_seed"`
	Watch       *bool  `toml:"watch"`
	HTTPTimeout string `toml:"http_timeout"`
	LogLevel    string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.wsds/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".wsds", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("cache-dir", fc.CacheDir, &cfg.CacheDir)
	s.setString("name", fc.DatasetName, &cfg.DatasetName)
	s.setString("handler", fc.Handler, &cfg.Handler)
	s.setString("select", fc.Select, &cfg.Select)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setInt64("cache-size", fc.CacheSize, &cfg.CacheSize)
	s.setInt("lru-size", fc.LRUSize, &cfg.LRUSize)
	s.setInt("force-size", fc.ForceSize, &cfg.ForceSize)
	s.setInt("epochs", fc.Epochs, &cfg.Epochs)
	s.setInt("limit", fc.Limit, &cfg.Limit)

	if fc.ShuffleSeed != nil && !changed["shuffle-seed"] {
		cfg.ShuffleSeed = *fc.ShuffleSeed
		cfg.Shuffle = true
	}

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setBool("keep", fc.Keep, &cfg.Keep)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
