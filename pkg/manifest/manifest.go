// Package manifest reads shard index files.
//
// A manifest is a JSON document listing shards and their sample counts:
//
//	{
//	  "__kind__": "wids-shard-index-v1",
//	  "name": "imagenet-train",
//	  "shardlist": [
//	    {"url": "train-000000.tar", "nsamples": 1251},
//	    {"url": "train-000001.tar", "nsamples": 1251}
//	  ]
//	}
//
// Relative shard URLs are resolved against "base" when present, otherwise
// against the directory holding the manifest.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extension marks a shards argument as a manifest path rather than a shard URL.
const Extension = ".json"

// Kind is the expected value of the "__kind__" field when present.
const Kind = "wids-shard-index-v1"

// ErrInvalidManifest is returned for manifests that parse but make no sense.
var ErrInvalidManifest = errors.New("wsds: invalid manifest")

// Shard is one entry of the shard list.
type Shard struct {
	URL      string `json:"url"`
	NSamples int    `json:"nsamples"`
	FileSize int64  `json:"filesize,omitempty"`
}

// Manifest is a parsed shard index.
type Manifest struct {
	Kind      string  `json:"__kind__,omitempty"`
	Name      string  `json:"name,omitempty"`
	Version   int     `json:"wids_version,omitempty"`
	Base      string  `json:"base,omitempty"`
	ShardList []Shard `json:"shardlist"`

	// dir is the directory the manifest was loaded from.
	dir string
}

// IsManifestPath reports whether a shards argument names a manifest file.
func IsManifestPath(s string) bool {
	return strings.HasSuffix(strings.ToLower(s), Extension)
}

// Load reads and validates the manifest at path.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Parse decodes and validates manifest bytes. Relative URLs of a parsed
// manifest resolve against Base only.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.Kind != "" && m.Kind != Kind {
		return Manifest{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidManifest, m.Kind)
	}
	if len(m.ShardList) == 0 {
		return Manifest{}, fmt.Errorf("%w: empty shardlist", ErrInvalidManifest)
	}
	for i, s := range m.ShardList {
		if s.URL == "" {
			return Manifest{}, fmt.Errorf("%w: shard %d has no url", ErrInvalidManifest, i)
		}
		if s.NSamples < 0 {
			return Manifest{}, fmt.Errorf("%w: shard %s has negative nsamples", ErrInvalidManifest, s.URL)
		}
	}
	return m, nil
}

// TotalSize returns the total number of samples across all shards.
func (m Manifest) TotalSize() int {
	total := 0
	for _, s := range m.ShardList {
		total += s.NSamples
	}
	return total
}

// URLs returns the shard URLs with relative entries resolved.
func (m Manifest) URLs() []string {
	out := make([]string, len(m.ShardList))
	for i, s := range m.ShardList {
		out[i] = m.resolve(s.URL)
	}
	return out
}

func (m Manifest) resolve(u string) string {
	if isAbsolute(u) {
		return u
	}
	if m.Base != "" {
		return strings.TrimSuffix(m.Base, "/") + "/" + u
	}
	if m.dir != "" {
		return filepath.Join(m.dir, u)
	}
	return u
}

func isAbsolute(u string) bool {
	return strings.Contains(u, "://") || strings.HasPrefix(u, "pipe:") || filepath.IsAbs(u)
}
