// Package shardlist produces shard references and splits them across
// workers.
//
// [List] is the pipeline source: it expands brace patterns such as
// "train-{000000..000099}.tar" and yields one {"url": ...} sample per shard.
// [SplitByWorker] is the stage that keeps only the shards owned by the
// current rank and worker.
package shardlist
