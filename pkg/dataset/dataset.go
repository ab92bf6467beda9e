package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/bft-labs/wsds/pkg/cache"
	"github.com/bft-labs/wsds/pkg/log"
	"github.com/bft-labs/wsds/pkg/manifest"
	"github.com/bft-labs/wsds/pkg/pipeline"
	"github.com/bft-labs/wsds/pkg/shardlist"
	"github.com/bft-labs/wsds/pkg/tariter"
)

// UnknownSize is the size of a dataset whose sample count is not known.
const UnknownSize = -1

// Cache miss warning thresholds.
const (
	missCheckMinAccesses = 100
	missCheckMaxRatio    = 0.3
)

// Dataset is a streaming dataset over sharded tar archives.
// A Dataset supports one consumer at a time.
type Dataset struct {
	opts   options
	logger log.Logger

	source   *shardlist.List
	pipeline pipeline.Pipeline
	cache    *cache.FileCache

	transformations []Transformation
	epoch           int
	state           State
	missWarned      bool

	// mu guards totalSize, which the manifest watcher updates.
	mu        sync.Mutex
	totalSize int

	manifestPath string
	watcher      *manifest.Watcher
}

// New creates a dataset over shards, which is a shard URL or brace pattern,
// a list of them, or the path of a ".json" manifest.
func New(shards any, opts ...Option) (*Dataset, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	transformations, err := InterpretTransformations(o.transformations)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		opts:            o,
		logger:          o.logger,
		transformations: transformations,
		epoch:           -1,
		totalSize:       UnknownSize,
	}

	source, err := ds.createURLIterator(shards)
	if err != nil {
		return nil, err
	}
	if err := ds.initPipeline(source); err != nil {
		return nil, err
	}

	ds.logger.Info("dataset ready",
		log.String("name", o.datasetName),
		log.Int("shards", source.Len()),
		log.Int("size", ds.totalSize),
		log.Bool("cached", ds.cache != nil))
	return ds, nil
}

// createURLIterator resolves the shards argument into the shard source.
func (ds *Dataset) createURLIterator(shards any) (*shardlist.List, error) {
	var patterns []string
	switch v := shards.(type) {
	case string:
		if manifest.IsManifestPath(v) {
			m, err := manifest.Load(v)
			if err != nil {
				return nil, err
			}
			ds.totalSize = m.TotalSize()
			ds.manifestPath = v
			patterns = m.URLs()
		} else {
			patterns = []string{v}
		}
	case []string:
		patterns = v
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownShardType, shards)
	}

	var listOpts []shardlist.Option
	if ds.opts.shuffle {
		listOpts = append(listOpts, shardlist.WithShuffle(ds.opts.shuffleSeed))
	}
	list, err := shardlist.New(patterns, listOpts...)
	if err != nil {
		return nil, err
	}
	if list.Len() == 0 {
		return nil, ErrNoShards
	}
	return list, nil
}

// initPipeline builds the fixed stage list. It runs once, from New.
func (ds *Dataset) initPipeline(source *shardlist.List) error {
	o := ds.opts

	info := shardlist.SingleWorker
	if o.workerInfo != nil {
		info = *o.workerInfo
		if err := info.Validate(); err != nil {
			return err
		}
	} else {
		envInfo, err := shardlist.WorkerInfoFromEnv()
		if err != nil {
			return err
		}
		info = envInfo
	}

	opener := cache.NewOpener(o.httpClient, ds.logger)
	stages := []pipeline.Stage{shardlist.SplitByWorker(info)}

	if o.cacheDir == "" {
		stages = append(stages, cache.NewStreamingOpen(opener, o.handler, ds.logger))
	} else {
		dir := o.cacheDir
		if o.datasetName != "" {
			dir = filepath.Join(dir, o.datasetName)
		}
		fc, err := cache.NewFileCache(cache.Config{
			Dir:      dir,
			Size:     o.cacheSize,
			MaxFiles: o.lruSize,
		}, opener, o.handler, ds.logger)
		if err != nil {
			return err
		}
		ds.cache = fc
		stages = append(stages, fc)
	}

	stages = append(stages,
		&tariter.Expander{
			SelectFiles: o.selectFiles,
			RenameFiles: o.renameFiles,
			Handler:     o.handler,
			Logger:      ds.logger,
		},
		&tariter.Grouper{Handler: o.handler},
	)
	if o.checkEmpty {
		stages = append(stages, CheckEmpty())
	}

	ds.source = source
	ds.pipeline = pipeline.New(source, stages...)
	return nil
}

// Iterate starts a new epoch and returns an iterator over its samples.
// The iterator must be closed. Only one iterator should be live at a time.
func (ds *Dataset) Iterate(ctx context.Context) pipeline.Iterator {
	ds.epoch++
	pipeline.SetEpochs(ds.pipeline, ds.epoch)
	ds.state = StateIterating
	ds.logger.Debug("epoch started", log.Int("epoch", ds.epoch))

	return &iterator{ds: ds, forceSize: ds.opts.forceSize}
}

// iterator runs the pipeline once, or repeatedly up to the force size.
type iterator struct {
	ds        *Dataset
	forceSize *int
	inner     pipeline.Iterator
	count     int
	passCount int
	done      bool
}

func (it *iterator) Next(ctx context.Context) (pipeline.Sample, error) {
	for {
		if it.done {
			return nil, io.EOF
		}
		if it.forceSize != nil && it.count >= *it.forceSize {
			it.endPass()
			it.finish()
			return nil, io.EOF
		}
		if it.inner == nil {
			it.inner = pipeline.Run(ctx, it.ds.pipeline)
			it.passCount = 0
		}

		sample, err := it.inner.Next(ctx)
		if errors.Is(err, io.EOF) {
			it.endPass()
			if it.forceSize == nil {
				it.finish()
				return nil, io.EOF
			}
			if it.passCount == 0 {
				it.finish()
				return nil, ErrEmptyPass
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		it.passCount++

		FixDots(sample)
		// Read the live slice so AddTransform applies to this iteration too.
		out, err := ApplyTransformations(it.ds.transformations, sample)
		if err != nil {
			return nil, err
		}
		it.count++
		return out, nil
	}
}

func (it *iterator) endPass() {
	if it.inner != nil {
		if err := it.inner.Close(); err != nil {
			it.ds.logger.Warn("closing pipeline pass", log.Err(err))
		}
		it.inner = nil
	}
	if it.ds.cache != nil {
		_ = it.ds.CheckCacheMisses()
	}
}

func (it *iterator) finish() {
	it.done = true
	it.ds.state = StateExhausted
}

func (it *iterator) Close() error {
	var err error
	if it.inner != nil {
		err = it.inner.Close()
		it.inner = nil
	}
	if !it.done {
		it.done = true
		it.ds.state = StateIdle
	}
	return err
}

// AddTransform appends a transformation. It applies to iterations already
// in progress from their next sample on.
func (ds *Dataset) AddTransform(t Transformation) *Dataset {
	ds.transformations = append(ds.transformations, t)
	return ds
}

// Transformations returns the current transformation list.
func (ds *Dataset) Transformations() []Transformation {
	return ds.transformations
}

// Stats returns the cache accesses and misses.
func (ds *Dataset) Stats() (accesses, misses int64, err error) {
	if ds.cache == nil {
		return 0, 0, ErrNoCache
	}
	st := ds.cache.Stats()
	return st.Accesses, st.Misses, nil
}

// CheckCacheMisses logs a warning when more than 30% of over 100 cache
// accesses missed. The warning is logged at most once per dataset.
func (ds *Dataset) CheckCacheMisses() error {
	accesses, misses, err := ds.Stats()
	if err != nil {
		return err
	}
	if ds.missWarned || accesses <= missCheckMinAccesses {
		return nil
	}
	ratio := float64(misses) / float64(accesses)
	if ratio <= missCheckMaxRatio {
		return nil
	}
	ds.missWarned = true
	ds.logger.Warn("dataset cache miss rate is high",
		log.String("name", ds.opts.datasetName),
		log.Float64("miss_rate", ratio),
		log.Int64("accesses", accesses),
		log.Int64("misses", misses))
	return nil
}

// Size returns the number of samples in the dataset, or UnknownSize. The
// value need not be exact: skipped samples are not subtracted.
func (ds *Dataset) Size() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.totalSize
}

// SetSize overrides the reported size.
func (ds *Dataset) SetSize(n int) {
	ds.mu.Lock()
	ds.totalSize = n
	ds.mu.Unlock()
}

// Epoch returns the epoch of the most recent Iterate call, -1 before the first.
func (ds *Dataset) Epoch() int { return ds.epoch }

// State returns the iteration state.
func (ds *Dataset) State() State { return ds.state }

// Pipeline returns the fixed pipeline.
func (ds *Dataset) Pipeline() pipeline.Pipeline { return ds.pipeline }

// Cache returns the file cache stage, or nil when shards are streamed.
func (ds *Dataset) Cache() *cache.FileCache { return ds.cache }

// WatchManifest reloads the manifest the dataset was built from whenever it
// changes on disk. A reload updates Size immediately and the shard list from
// the next epoch on. The watcher stops on Close or when ctx is done.
func (ds *Dataset) WatchManifest(ctx context.Context) error {
	if ds.manifestPath == "" {
		return ErrNoManifest
	}
	if ds.watcher != nil {
		return nil
	}
	w, err := manifest.Watch(ctx, ds.manifestPath, ds.logger, func(m manifest.Manifest) {
		ds.SetSize(m.TotalSize())
		ds.source.SetURLs(m.URLs())
	})
	if err != nil {
		return fmt.Errorf("watch manifest: %w", err)
	}
	ds.watcher = w
	return nil
}

// Close closes every closable stage in reverse pipeline order, then removes
// cached shards unless the dataset was built WithKeep. Calling it without a
// prior iteration is fine.
func (ds *Dataset) Close() error {
	var errs []error
	if ds.watcher != nil {
		errs = append(errs, ds.watcher.Close())
		ds.watcher = nil
	}
	errs = append(errs, pipeline.CloseAll(ds.pipeline))
	if ds.cache != nil && !ds.opts.keep {
		errs = append(errs, ds.cache.Clear())
	}
	ds.state = StateIdle
	return errors.Join(errs...)
}
