package cliconfig

import (
	"fmt"
	"os"
	"strconv"
)

// ApplyEnvConfig applies configuration from WSDS_* environment variables.
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("cache-dir", os.Getenv("WSDS_CACHE_DIR"), &cfg.CacheDir)
	s.setString("name", os.Getenv("WSDS_DATASET_NAME"), &cfg.DatasetName)
	s.setString("handler", os.Getenv("WSDS_HANDLER"), &cfg.Handler)
	s.setString("select", os.Getenv("WSDS_SELECT"), &cfg.Select)
	s.setString("log-level", os.Getenv("WSDS_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setInt64FromString("cache-size", os.Getenv("WSDS_CACHE_SIZE"), &cfg.CacheSize); err != nil {
		return err
	}
	if err := s.setIntFromString("lru-size", os.Getenv("WSDS_LRU_SIZE"), &cfg.LRUSize); err != nil {
		return err
	}
	if err := s.setIntFromString("force-size", os.Getenv("WSDS_FORCE_SIZE"), &cfg.ForceSize); err != nil {
		return err
	}
	if err := s.setIntFromString("epochs", os.Getenv("WSDS_EPOCHS"), &cfg.Epochs); err != nil {
		return err
	}
	if err := s.setIntFromString("limit", os.Getenv("WSDS_LIMIT"), &cfg.Limit); err != nil {
		return err
	}
	if v := os.Getenv("WSDS_SHUFFLE_SEED"); v != "" && !changed["shuffle-seed"] {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse shuffle-seed: %w", err)
		}
		cfg.ShuffleSeed = seed
		cfg.Shuffle = true
	}

	if err := s.setDuration("timeout", os.Getenv("WSDS_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setBoolFromString("keep", os.Getenv("WSDS_KEEP"), &cfg.Keep)
	s.setBoolFromString("watch", os.Getenv("WSDS_WATCH"), &cfg.Watch)

	return nil
}
