package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const statsFileName = "stats.json"

// Stats are cache counters. A FileCache persists its running totals next to
// its shards.
type Stats struct {
	Accesses  int64     `json:"accesses"`
	Misses    int64     `json:"misses"`
	Evictions int64     `json:"evictions"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MissRatio returns misses/accesses, or 0 before the first access.
func (s Stats) MissRatio() float64 {
	if s.Accesses == 0 {
		return 0
	}
	return float64(s.Misses) / float64(s.Accesses)
}

// statsFile loads and saves Stats as JSON in the cache directory.
type statsFile struct {
	dir string
}

func (r statsFile) path() string {
	return filepath.Join(r.dir, statsFileName)
}

// load returns zero Stats and nil error when no file exists yet.
func (r statsFile) load() (Stats, error) {
	data, err := os.ReadFile(r.path())
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{}, nil
		}
		return Stats{}, err
	}
	var st Stats
	if err := json.Unmarshal(data, &st); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// save writes to a temp file and renames it into place.
func (r statsFile) save(st Stats) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path())
}
