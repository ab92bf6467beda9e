// Package log provides the logging abstraction used by every wsds package.
//
// Library code never talks to a concrete logging library. Stages, caches and
// the dataset accept a Logger and default to a NoopLogger so that embedding
// wsds in a training program produces no output unless asked to.
//
// # Usage
//
// Wrap zerolog for console output:
//
//	logger := log.NewZerologAdapterWriter(os.Stderr, zerolog.InfoLevel)
//	ds, err := dataset.New(shards, dataset.WithLogger(logger))
//
// Or keep the no-op logger in tests:
//
//	logger := log.NewNoopLogger()
package log
