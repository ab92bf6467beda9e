package dataset

import "errors"

// Errors returned by the dataset. Check with errors.Is.
var (
	// ErrUnknownShardType is returned by New for a shards argument that is
	// neither a string nor a []string.
	ErrUnknownShardType = errors.New("wsds: unknown shard list type")

	// ErrNoShards is returned by New when the shard list expands to nothing.
	ErrNoShards = errors.New("wsds: no shards")

	// ErrNotCallable is returned when a transformation is nil or not a function.
	ErrNotCallable = errors.New("wsds: transformation is not callable")

	// ErrNoCache is returned by cache statistics calls on a dataset built
	// without a cache directory.
	ErrNoCache = errors.New("wsds: dataset has no cache")

	// ErrNoManifest is returned by WatchManifest when the dataset was not
	// built from a manifest file.
	ErrNoManifest = errors.New("wsds: dataset has no manifest")

	// ErrEmptyDataset is returned by the empty check when a whole pass
	// produced no samples.
	ErrEmptyDataset = errors.New("wsds: dataset is empty")

	// ErrEmptyPass is returned by a force-sized iteration when a pipeline
	// pass produced no samples, which would otherwise restart forever.
	ErrEmptyPass = errors.New("wsds: pipeline pass produced no samples")
)
