// Package cache turns shard references into open byte streams.
//
// Two interchangeable pipeline stages are provided:
//
//   - [StreamingOpen] opens each shard directly (local file, file://,
//     http(s):// or a "pipe:" shell command) and streams it.
//   - [FileCache] downloads each shard once into a local directory, serves
//     later passes from disk, counts accesses and misses, and evicts the
//     least recently used shards when the directory outgrows its budget.
//
// Both consume {"url": ...} samples and yield {"url": ..., "stream": ...}
// samples. The consumer owns and must close every yielded stream.
package cache
