package dataset

import (
	"github.com/bft-labs/wsds/pkg/cache"
	"github.com/bft-labs/wsds/pkg/log"
	"github.com/bft-labs/wsds/pkg/pipeline"
	"github.com/bft-labs/wsds/pkg/shardlist"
	"github.com/bft-labs/wsds/pkg/tariter"
)

// Option configures optional behavior of a Dataset.
type Option func(*options)

// options holds the optional configuration for a Dataset.
type options struct {
	handler         pipeline.Handler
	cacheDir        string
	cacheSize       int64
	lruSize         int
	datasetName     string
	keep            bool
	selectFiles     tariter.SelectFunc
	renameFiles     tariter.RenameFunc
	checkEmpty      bool
	transformations any
	forceSize       *int
	logger          log.Logger
	httpClient      cache.HTTPClient
	workerInfo      *shardlist.WorkerInfo
	shuffle         bool
	shuffleSeed     int64
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		handler:   pipeline.Reraise,
		cacheSize: cache.DefaultSize,
		logger:    log.NewNoopLogger(),
	}
}

// WithHandler sets the handler for per-sample errors raised while opening,
// expanding and grouping shards. Default: pipeline.Reraise.
func WithHandler(h pipeline.Handler) Option {
	return func(o *options) {
		if h != nil {
			o.handler = h
		}
	}
}

// WithCacheDir enables the on-disk shard cache in dir. Without it shards are
// streamed directly.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithCacheSize sets the byte budget of the cache directory.
// Default: 1e12 bytes.
func WithCacheSize(n int64) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithLRUSize bounds the number of shard files kept in the cache.
// Default: 0 (bounded by size only).
func WithLRUSize(n int) Option {
	return func(o *options) {
		o.lruSize = n
	}
}

// WithDatasetName names the dataset in logs and keeps its cached shards in
// a subdirectory of the cache directory.
func WithDatasetName(name string) Option {
	return func(o *options) {
		o.datasetName = name
	}
}

// WithKeep keeps cached shards on disk when the dataset is closed.
func WithKeep(keep bool) Option {
	return func(o *options) {
		o.keep = keep
	}
}

// WithSelectFiles keeps only the archive members accepted by fn.
func WithSelectFiles(fn tariter.SelectFunc) Option {
	return func(o *options) {
		o.selectFiles = fn
	}
}

// WithRenameFiles rewrites archive member names before grouping.
func WithRenameFiles(fn tariter.RenameFunc) Option {
	return func(o *options) {
		o.renameFiles = fn
	}
}

// WithCheckEmpty makes a pass that yields no samples fail with ErrEmptyDataset.
func WithCheckEmpty(check bool) Option {
	return func(o *options) {
		o.checkEmpty = check
	}
}

// WithTransformations sets the initial transformations. Accepts anything
// InterpretTransformations accepts.
func WithTransformations(ts any) Option {
	return func(o *options) {
		o.transformations = ts
	}
}

// WithForceSize makes every iteration yield exactly n samples, restarting
// the pipeline as needed.
func WithForceSize(n int) Option {
	return func(o *options) {
		o.forceSize = &n
	}
}

// WithLogger sets a logger. Default: no output.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient sets the client used for http(s) shards.
func WithHTTPClient(client cache.HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithWorkerInfo sets the rank and worker owning this dataset instance.
// Default: read from the WSDS_* environment variables.
func WithWorkerInfo(info shardlist.WorkerInfo) Option {
	return func(o *options) {
		o.workerInfo = &info
	}
}

// WithShuffleShards reshuffles the shard order every epoch from seed+epoch.
func WithShuffleShards(seed int64) Option {
	return func(o *options) {
		o.shuffle = true
		o.shuffleSeed = seed
	}
}
