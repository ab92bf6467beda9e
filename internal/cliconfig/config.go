package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/wsds/pkg/cache"
	"github.com/bft-labs/wsds/pkg/log"
	"github.com/bft-labs/wsds/pkg/pipeline"
)

// Handler names accepted by the handler setting.
const (
	HandlerReraise = "reraise"
	HandlerIgnore  = "ignore"
	HandlerWarn    = "warn"
)

// Config holds CLI configuration for wsds.
type Config struct {
	CacheDir    string
	CacheSize   int64
	LRUSize     int
	DatasetName string
	Keep        bool

	Handler     string
	Select      string
	ForceSize   int
	Epochs      int
	Limit       int
	ShuffleSeed int64
	Shuffle     bool
	Watch       bool

	HTTPTimeout time.Duration
	LogLevel    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		CacheSize:   cache.DefaultSize,
		Handler:     HandlerReraise,
		Epochs:      1,
		HTTPTimeout: 30 * time.Second,
		LogLevel:    "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.HandlerFunc(log.NewNoopLogger()); err != nil {
		return err
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if c.LRUSize < 0 {
		return fmt.Errorf("lru size must not be negative")
	}
	if c.ForceSize < 0 {
		return fmt.Errorf("force size must not be negative")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// HandlerFunc resolves the configured handler name.
func (c *Config) HandlerFunc(logger log.Logger) (pipeline.Handler, error) {
	switch strings.ToLower(c.Handler) {
	case "", HandlerReraise:
		return pipeline.Reraise, nil
	case HandlerIgnore:
		return pipeline.IgnoreAndContinue, nil
	case HandlerWarn:
		return pipeline.WarnAndContinue(logger), nil
	default:
		return nil, fmt.Errorf("unknown handler %q (want %s, %s or %s)", c.Handler, HandlerReraise, HandlerIgnore, HandlerWarn)
	}
}

// SelectExtensions splits the comma separated select setting.
func (c *Config) SelectExtensions() []string {
	var out []string
	for _, ext := range strings.Split(c.Select, ",") {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// configSetter applies values only for flags that were not set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt64(flag string, value int64, dst *int64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
