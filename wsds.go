// Package wsds streams training samples out of sharded tar datasets.
//
// Example usage:
//
//	ds, err := wsds.New("data/train-{000000..000146}.tar",
//	    wsds.WithCacheDir("/tmp/wsds"),
//	    wsds.WithForceSize(100000),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ds.Close()
//
//	it := ds.Iterate(ctx)
//	defer it.Close()
//	for {
//	    sample, err := it.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    use(sample[".jpg"], sample[".cls"])
//	}
package wsds

import (
	"github.com/bft-labs/wsds/pkg/dataset"
	"github.com/bft-labs/wsds/pkg/pipeline"
)

// Dataset is a streaming dataset over sharded tar archives.
type Dataset = dataset.Dataset

// Sample is one training example keyed by dotted field name.
type Sample = pipeline.Sample

// Option configures a Dataset.
type Option = dataset.Option

// Transformation maps one sample to another.
type Transformation = dataset.Transformation

// New creates a dataset over a shard URL or brace pattern, a list of them,
// or the path of a ".json" shard index.
func New(shards any, opts ...Option) (*Dataset, error) {
	return dataset.New(shards, opts...)
}

// Re-exported options.
var (
	WithHandler         = dataset.WithHandler
	WithCacheDir        = dataset.WithCacheDir
	WithCacheSize       = dataset.WithCacheSize
	WithLRUSize         = dataset.WithLRUSize
	WithDatasetName     = dataset.WithDatasetName
	WithKeep            = dataset.WithKeep
	WithSelectFiles     = dataset.WithSelectFiles
	WithRenameFiles     = dataset.WithRenameFiles
	WithCheckEmpty      = dataset.WithCheckEmpty
	WithTransformations = dataset.WithTransformations
	WithForceSize       = dataset.WithForceSize
	WithLogger          = dataset.WithLogger
	WithHTTPClient      = dataset.WithHTTPClient
	WithWorkerInfo      = dataset.WithWorkerInfo
	WithShuffleShards   = dataset.WithShuffleShards
)

// Error handlers.
var (
	Reraise           = pipeline.Reraise
	IgnoreAndContinue = pipeline.IgnoreAndContinue
	WarnAndContinue   = pipeline.WarnAndContinue
	WarnAndStop       = pipeline.WarnAndStop
)

// UnknownSize is reported by Size when the sample count is not known.
const UnknownSize = dataset.UnknownSize
