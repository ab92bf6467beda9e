package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/wsds/pkg/pipeline"
)

// writeShards creates n source files of the given size and returns their paths.
func writeShards(t *testing.T, n, size int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("shard-%03d.tar", i))
		if err := os.WriteFile(paths[i], []byte(strings.Repeat(string(rune('a'+i%26)), size)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func newTestCache(t *testing.T, cfg Config) *FileCache {
	t.Helper()
	c, err := NewFileCache(cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	return c
}

func TestFileCache_CountsAccessesAndMisses(t *testing.T) {
	shards := writeShards(t, 2, 10)
	c := newTestCache(t, DefaultConfig(t.TempDir()))

	for pass := 0; pass < 3; pass++ {
		for _, s := range shards {
			if _, err := c.Fetch(context.Background(), s); err != nil {
				t.Fatalf("Fetch: %v", err)
			}
		}
	}

	st := c.Stats()
	if st.Accesses != 6 || st.Misses != 2 {
		t.Fatalf("stats = %+v, want 6 accesses and 2 misses", st)
	}
	if c.Len() != 2 || c.BytesUsed() != 20 {
		t.Fatalf("Len=%d BytesUsed=%d", c.Len(), c.BytesUsed())
	}
}

func TestFileCache_StageYieldsCachedStreams(t *testing.T) {
	shards := writeShards(t, 1, 5)
	c := newTestCache(t, DefaultConfig(t.TempDir()))

	refs := pipeline.Slice(pipeline.Sample{pipeline.KeyURL: shards[0]})
	got, err := pipeline.Collect(context.Background(), c.Apply(context.Background(), refs), 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d samples", len(got))
	}
	local := got[0][KeyLocalPath].(string)
	if filepath.Dir(local) != c.Dir() {
		t.Fatalf("local path %s not inside cache dir %s", local, c.Dir())
	}
	rc := got[0][pipeline.KeyStream].(io.ReadCloser)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "aaaaa" {
		t.Fatalf("read %q", b)
	}
}

func TestFileCache_HandlerOnDownloadFailure(t *testing.T) {
	c, err := NewFileCache(DefaultConfig(t.TempDir()), nil, pipeline.IgnoreAndContinue, nil)
	if err != nil {
		t.Fatal(err)
	}
	refs := pipeline.Slice(pipeline.Sample{pipeline.KeyURL: "/does/not/exist.tar"})
	got, err := pipeline.Collect(context.Background(), c.Apply(context.Background(), refs), 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v; want nothing and no error", got, err)
	}
	if st := c.Stats(); st.Misses != 1 {
		t.Fatalf("misses = %d, want 1", st.Misses)
	}
}

func TestFileCache_EvictsLeastRecentlyUsed(t *testing.T) {
	shards := writeShards(t, 4, 100)
	cfg := DefaultConfig(t.TempDir())
	cfg.Size = 300
	cfg.LowWatermark = 0.5
	c := newTestCache(t, cfg)

	ctx := context.Background()
	for _, s := range shards[:3] {
		if _, err := c.Fetch(ctx, s); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Touch shard 0 so shard 1 becomes the oldest.
	if _, err := c.Fetch(ctx, shards[0]); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	// 400 bytes > 300: evict down to 150, keeping the new shard.
	if _, err := c.Fetch(ctx, shards[3]); err != nil {
		t.Fatal(err)
	}

	if c.BytesUsed() > 150 {
		t.Fatalf("BytesUsed = %d, want <= 150", c.BytesUsed())
	}
	if _, err := os.Stat(filepath.Join(cfg.Dir, CacheName(shards[3]))); err != nil {
		t.Fatalf("newest shard evicted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Dir, CacheName(shards[1]))); !os.IsNotExist(err) {
		t.Fatalf("oldest shard still present: %v", err)
	}
	if c.Stats().Evictions != 3 {
		t.Fatalf("evictions = %d, want 3", c.Stats().Evictions)
	}
}

func TestFileCache_MaxFiles(t *testing.T) {
	shards := writeShards(t, 5, 10)
	cfg := DefaultConfig(t.TempDir())
	cfg.MaxFiles = 2
	c := newTestCache(t, cfg)

	for _, s := range shards {
		if _, err := c.Fetch(context.Background(), s); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}

func TestFileCache_ClearAndClosePersistStats(t *testing.T) {
	shards := writeShards(t, 2, 10)
	dir := t.TempDir()
	c := newTestCache(t, DefaultConfig(dir))
	for _, s := range shards {
		if _, err := c.Fetch(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("Len after Clear = %d", c.Len())
	}

	ents, _ := os.ReadDir(dir)
	if len(ents) != 1 || ents[0].Name() != statsFileName {
		names := []string{}
		for _, e := range ents {
			names = append(names, e.Name())
		}
		t.Fatalf("cache dir after Clear = %v, want only %s", names, statsFileName)
	}

	reopened := newTestCache(t, DefaultConfig(dir))
	if st := reopened.Stats(); st.Accesses != 0 || st.Misses != 0 {
		t.Fatalf("new cache stats = %+v, want zero", st)
	}
	if st := reopened.Totals(); st.Accesses != 2 || st.Misses != 2 {
		t.Fatalf("restored totals = %+v", st)
	}

	if _, err := reopened.Fetch(context.Background(), shards[0]); err != nil {
		t.Fatal(err)
	}
	if st := reopened.Stats(); st.Accesses != 1 || st.Misses != 1 {
		t.Fatalf("stats after one fetch = %+v", st)
	}
	if st := reopened.Totals(); st.Accesses != 3 || st.Misses != 3 {
		t.Fatalf("totals after one fetch = %+v", st)
	}
}

func TestFileCache_PersistedTotalsDoNotLeakIntoStats(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, statsFileName), []byte(`{"accesses":200,"misses":150}`), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newTestCache(t, DefaultConfig(dir))
	if st := c.Stats(); st != (Stats{}) {
		t.Fatalf("Stats = %+v, want zero", st)
	}
	if st := c.Totals(); st.Accesses != 200 || st.Misses != 150 {
		t.Fatalf("Totals = %+v", st)
	}
}

func TestFileCache_ReindexesExistingShards(t *testing.T) {
	shards := writeShards(t, 1, 10)
	dir := t.TempDir()
	first := newTestCache(t, DefaultConfig(dir))
	if _, err := first.Fetch(context.Background(), shards[0]); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leftover.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	second := newTestCache(t, DefaultConfig(dir))
	if second.Len() != 1 {
		t.Fatalf("Len = %d, want 1", second.Len())
	}
	if _, err := second.Fetch(context.Background(), shards[0]); err != nil {
		t.Fatal(err)
	}
	if st := second.Stats(); st.Misses != 0 {
		t.Fatalf("expected hit on reindexed shard, stats %+v", st)
	}
	if _, err := os.Stat(filepath.Join(dir, "leftover.tmp")); !os.IsNotExist(err) {
		t.Fatal("stale temp file not removed")
	}
}

func TestCacheName(t *testing.T) {
	a := CacheName("https://host/data/shard-000.tar")
	b := CacheName("https://other/data/shard-000.tar")
	if a == b {
		t.Fatal("different URLs mapped to the same name")
	}
	if !strings.HasSuffix(a, "-shard-000.tar") {
		t.Fatalf("name %q lost the base name", a)
	}
	if strings.ContainsAny(CacheName("pipe:curl -s http://x/y z.tar"), " /:") {
		t.Fatal("unsafe characters in cache name")
	}
}

func TestStats_MissRatio(t *testing.T) {
	if (Stats{}).MissRatio() != 0 {
		t.Fatal("zero accesses should give zero ratio")
	}
	if r := (Stats{Accesses: 4, Misses: 1}).MissRatio(); r != 0.25 {
		t.Fatalf("ratio = %v", r)
	}
}
