package shardlist

import (
	"context"
	"io"
	"math/rand"
	"sync"

	"github.com/bft-labs/wsds/pkg/pipeline"
)

// List is the shard source of a dataset pipeline.
// It is safe to call SetURLs from another goroutine; the change is picked up
// by the next pass.
type List struct {
	mu      sync.RWMutex
	urls    []string
	shuffle bool
	seed    int64
	epoch   int
}

// Option configures a List.
type Option func(*List)

// WithShuffle reshuffles the shard order every epoch using seed+epoch, so
// every worker agrees on the order of a given epoch.
func WithShuffle(seed int64) Option {
	return func(l *List) {
		l.shuffle = true
		l.seed = seed
	}
}

// New creates a List from shard URLs or brace patterns.
func New(patterns []string, opts ...Option) (*List, error) {
	urls, err := ExpandAll(patterns)
	if err != nil {
		return nil, err
	}
	l := &List{urls: urls}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// SetEpoch implements pipeline.EpochSetter.
func (l *List) SetEpoch(epoch int) {
	l.mu.Lock()
	l.epoch = epoch
	l.mu.Unlock()
}

// SetURLs replaces the shard list for subsequent passes.
func (l *List) SetURLs(urls []string) {
	cp := append([]string(nil), urls...)
	l.mu.Lock()
	l.urls = cp
	l.mu.Unlock()
}

// URLs returns the shard list in its unshuffled order.
func (l *List) URLs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.urls...)
}

// Len returns the number of shards.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.urls)
}

// Iterate implements pipeline.Source.
func (l *List) Iterate(ctx context.Context) pipeline.Iterator {
	l.mu.RLock()
	urls := append([]string(nil), l.urls...)
	shuffle, seed, epoch := l.shuffle, l.seed, l.epoch
	l.mu.RUnlock()

	if shuffle {
		r := rand.New(rand.NewSource(seed + int64(epoch)))
		r.Shuffle(len(urls), func(i, j int) { urls[i], urls[j] = urls[j], urls[i] })
	}

	pos := 0
	return pipeline.IteratorFunc{
		NextFunc: func(ctx context.Context) (pipeline.Sample, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if pos >= len(urls) {
				return nil, io.EOF
			}
			u := urls[pos]
			pos++
			return pipeline.Sample{pipeline.KeyURL: u}, nil
		},
	}
}

var (
	_ pipeline.Source      = (*List)(nil)
	_ pipeline.EpochSetter = (*List)(nil)
)
