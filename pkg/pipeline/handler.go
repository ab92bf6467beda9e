package pipeline

import "github.com/bft-labs/wsds/pkg/log"

// Handler decides what happens to a per-sample error raised inside a stage.
// Returning nil skips the offending sample and continues the pass; returning
// an error aborts the pass with that error.
type Handler func(err error) error

// Reraise aborts on every error. It is the default handler.
func Reraise(err error) error {
	return err
}

// IgnoreAndContinue drops every error silently.
func IgnoreAndContinue(err error) error {
	return nil
}

// WarnAndContinue logs each error at warn level and continues.
func WarnAndContinue(logger log.Logger) Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return func(err error) error {
		logger.Warn("skipping sample", log.Err(err))
		return nil
	}
}

// WarnAndStop logs each error at warn level and aborts.
func WarnAndStop(logger log.Logger) Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return func(err error) error {
		logger.Warn("stopping on sample error", log.Err(err))
		return err
	}
}
