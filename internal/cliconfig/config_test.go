package cliconfig

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bft-labs/wsds/pkg/cache"
	"github.com/bft-labs/wsds/pkg/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.CacheSize != cache.DefaultSize {
		t.Errorf("CacheSize = %v, want %v", cfg.CacheSize, cache.DefaultSize)
	}
	if cfg.Handler != HandlerReraise {
		t.Errorf("Handler = %v, want %v", cfg.Handler, HandlerReraise)
	}
	if cfg.Epochs != 1 {
		t.Errorf("Epochs = %v, want 1", cfg.Epochs)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "warn handler", mutate: func(c *Config) { c.Handler = "WARN" }},
		{name: "empty handler means reraise", mutate: func(c *Config) { c.Handler = "" }},
		{name: "unknown handler", mutate: func(c *Config) { c.Handler = "panic" }, wantErr: true},
		{name: "zero cache size", mutate: func(c *Config) { c.CacheSize = 0 }, wantErr: true},
		{name: "negative lru size", mutate: func(c *Config) { c.LRUSize = -1 }, wantErr: true},
		{name: "negative force size", mutate: func(c *Config) { c.ForceSize = -5 }, wantErr: true},
		{name: "zero epochs", mutate: func(c *Config) { c.Epochs = 0 }, wantErr: true},
		{name: "negative limit", mutate: func(c *Config) { c.Limit = -1 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.HTTPTimeout = 0 }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
		{name: "debug log level", mutate: func(c *Config) { c.LogLevel = "debug" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_HandlerFunc(t *testing.T) {
	errShard := errors.New("bad shard")

	tests := []struct {
		handler  string
		wantSkip bool
	}{
		{handler: HandlerReraise, wantSkip: false},
		{handler: HandlerIgnore, wantSkip: true},
		{handler: HandlerWarn, wantSkip: true},
	}

	for _, tt := range tests {
		t.Run(tt.handler, func(t *testing.T) {
			cfg := Config{Handler: tt.handler}
			h, err := cfg.HandlerFunc(log.NewNoopLogger())
			if err != nil {
				t.Fatalf("HandlerFunc() error = %v", err)
			}
			skipped := h(errShard) == nil
			if skipped != tt.wantSkip {
				t.Errorf("handler %s skipped = %v, want %v", tt.handler, skipped, tt.wantSkip)
			}
		})
	}
}

func TestConfig_SelectExtensions(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "jpg", want: []string{"jpg"}},
		{in: "jpg, .cls ,,txt", want: []string{"jpg", "cls", "txt"}},
	}

	for _, tt := range tests {
		cfg := Config{Select: tt.in}
		if got := cfg.SelectExtensions(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SelectExtensions(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
