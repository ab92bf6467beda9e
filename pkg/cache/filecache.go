package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/wsds/pkg/log"
	"github.com/bft-labs/wsds/pkg/pipeline"
)

// KeyLocalPath is added to samples served from the cache.
const KeyLocalPath = "local_path"

// Config configures a FileCache.
type Config struct {
	// Dir holds the cached shards. Required.
	Dir string

	// Size is the byte budget of the directory. When a download pushes the
	// total above it, least recently used shards are removed until the total
	// drops to LowWatermark. Default: 1 TB.
	Size int64

	// LowWatermark is the fraction of Size eviction aims for. Default: 0.8
	LowWatermark float64

	// MaxFiles bounds the number of cached shards. 0 means no bound.
	MaxFiles int
}

// DefaultSize is the default byte budget of a cache directory.
const DefaultSize int64 = 1e12

// DefaultConfig returns a Config for dir with default limits.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:          dir,
		Size:         DefaultSize,
		LowWatermark: 0.8,
	}
}

// entry is one cached shard on disk.
type entry struct {
	name     string
	size     int64
	lastUsed time.Time
}

// FileCache downloads shards into a local directory on first use and serves
// them from disk afterwards.
type FileCache struct {
	mu      sync.Mutex
	cfg     Config
	opener  *Opener
	handler pipeline.Handler
	logger  log.Logger
	stats   statsFile
	entries map[string]*entry

	// counts start at zero for every FileCache; totals carry on from the
	// counters persisted by earlier runs over the same directory.
	counts Stats
	totals Stats
}

// NewFileCache prepares dir, indexes shards already present and restores
// the persisted running totals.
func NewFileCache(cfg Config, opener *Opener, handler pipeline.Handler, logger log.Logger) (*FileCache, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache dir is required")
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > 1 {
		cfg.LowWatermark = 0.8
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if opener == nil {
		opener = NewOpener(nil, logger)
	}
	if handler == nil {
		handler = pipeline.Reraise
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &FileCache{
		cfg:     cfg,
		opener:  opener,
		handler: handler,
		logger:  logger,
		stats:   statsFile{dir: cfg.Dir},
		entries: map[string]*entry{},
	}
	if err := c.scan(); err != nil {
		return nil, err
	}
	st, err := c.stats.load()
	if err != nil {
		logger.Warn("ignoring unreadable cache stats", log.String("dir", cfg.Dir), log.Err(err))
	} else {
		c.totals = st
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.cfg.Dir }

// Apply implements pipeline.Stage.
func (c *FileCache) Apply(ctx context.Context, upstream pipeline.Iterator) pipeline.Iterator {
	return pipeline.IteratorFunc{
		NextFunc: func(ctx context.Context) (pipeline.Sample, error) {
			for {
				ref, err := upstream.Next(ctx)
				if err != nil {
					return nil, err
				}
				url := ref.URL()
				local, err := c.Fetch(ctx, url)
				if err == nil {
					var f *os.File
					f, err = os.Open(local)
					if err == nil {
						out := ref.Clone()
						out[pipeline.KeyStream] = f
						out[KeyLocalPath] = local
						return out, nil
					}
				}
				if herr := c.handler(fmt.Errorf("cache shard %s: %w", url, err)); herr != nil {
					return nil, herr
				}
			}
		},
		CloseFunc: upstream.Close,
	}
}

// Fetch returns the local path of url, downloading it on a miss.
func (c *FileCache) Fetch(ctx context.Context, url string) (string, error) {
	name := CacheName(url)
	local := filepath.Join(c.cfg.Dir, name)

	c.mu.Lock()
	c.counts.Accesses++
	c.totals.Accesses++
	if e, ok := c.entries[name]; ok {
		if _, err := os.Stat(local); err == nil {
			e.lastUsed = time.Now()
			c.mu.Unlock()
			_ = os.Chtimes(local, e.lastUsed, e.lastUsed)
			return local, nil
		}
		delete(c.entries, name)
	}
	c.counts.Misses++
	c.totals.Misses++
	c.mu.Unlock()

	size, err := c.download(ctx, url, local)
	if err != nil {
		return "", err
	}
	c.logger.Debug("cached shard", log.Shard(url), log.Int64("bytes", size))

	c.mu.Lock()
	c.entries[name] = &entry{name: name, size: size, lastUsed: time.Now()}
	c.evictLocked(name)
	c.mu.Unlock()
	return local, nil
}

func (c *FileCache) download(ctx context.Context, url, local string) (int64, error) {
	src, err := c.opener.Open(ctx, url)
	if err != nil {
		return 0, err
	}

	tmp := filepath.Join(c.cfg.Dir, uuid.New().String()+".tmp")
	dst, err := os.Create(tmp)
	if err != nil {
		src.Close()
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if cerr := src.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	if err := os.Rename(tmp, local); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

// evictLocked removes least recently used shards while the cache is over its
// byte budget or file count. The shard named keep is never removed.
func (c *FileCache) evictLocked(keep string) {
	var total int64
	for _, e := range c.entries {
		total += e.size
	}
	overFiles := c.cfg.MaxFiles > 0 && len(c.entries) > c.cfg.MaxFiles
	if total <= c.cfg.Size && !overFiles {
		return
	}

	low := int64(float64(c.cfg.Size) * c.cfg.LowWatermark)
	if total <= c.cfg.Size {
		// Only the file count is over; do not shrink below the byte budget.
		low = total
	}

	lru := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.name != keep {
			lru = append(lru, e)
		}
	}
	sort.Slice(lru, func(i, j int) bool { return lru[i].lastUsed.Before(lru[j].lastUsed) })

	var freed int64
	for _, e := range lru {
		overFiles = c.cfg.MaxFiles > 0 && len(c.entries) > c.cfg.MaxFiles
		if total <= low && !overFiles {
			break
		}
		if err := os.Remove(filepath.Join(c.cfg.Dir, e.name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Error("cache eviction: remove failed", log.String("file", e.name), log.Err(err))
			continue
		}
		delete(c.entries, e.name)
		total -= e.size
		freed += e.size
		c.counts.Evictions++
		c.totals.Evictions++
	}

	if freed > 0 {
		c.logger.Info("cache eviction completed",
			log.String("dir", c.cfg.Dir),
			log.Int64("bytes_freed", freed),
			log.Int64("bytes_used", total))
	}
}

// scan indexes shards left in the directory by earlier runs and removes
// stale temp files.
func (c *FileCache) scan() error {
	ents, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		return err
	}
	for _, de := range ents {
		name := de.Name()
		if de.IsDir() || name == statsFileName || name == statsFileName+".tmp" {
			continue
		}
		if strings.HasSuffix(name, ".tmp") {
			os.Remove(filepath.Join(c.cfg.Dir, name))
			continue
		}
		info, err := de.Info()
		if err != nil {
			return err
		}
		c.entries[name] = &entry{name: name, size: info.Size(), lastUsed: info.ModTime()}
	}
	return nil
}

// Stats returns the counters of this FileCache alone.
func (c *FileCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// Totals returns the counters summed over every run that used the directory,
// this one included.
func (c *FileCache) Totals() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals
}

// Len returns the number of cached shards.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// BytesUsed returns the total size of cached shards.
func (c *FileCache) BytesUsed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, e := range c.entries {
		total += e.size
	}
	return total
}

// Clear removes every cached shard. Counters are kept.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name := range c.entries {
		if err := os.Remove(filepath.Join(c.cfg.Dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		delete(c.entries, name)
	}
	return errors.Join(errs...)
}

// Close persists the running totals.
func (c *FileCache) Close() error {
	c.mu.Lock()
	st := c.totals
	c.mu.Unlock()
	st.UpdatedAt = time.Now().UTC()
	return c.stats.save(st)
}

// CacheName maps a shard URL to its file name inside the cache directory:
// a short hash of the full URL followed by the URL's base name.
func CacheName(url string) string {
	sum := sha256.Sum256([]byte(url))
	base := path.Base(strings.TrimPrefix(url, "pipe:"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if len(base) > 64 {
		base = base[len(base)-64:]
	}
	return hex.EncodeToString(sum[:8]) + "-" + base
}

var _ pipeline.Stage = (*FileCache)(nil)
