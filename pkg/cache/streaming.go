package cache

import (
	"context"
	"fmt"

	"github.com/bft-labs/wsds/pkg/log"
	"github.com/bft-labs/wsds/pkg/pipeline"
)

// StreamingOpen opens every shard directly without caching.
type StreamingOpen struct {
	opener  *Opener
	handler pipeline.Handler
	logger  log.Logger
}

// NewStreamingOpen creates the stage. Open failures go through handler
// (nil means abort).
func NewStreamingOpen(opener *Opener, handler pipeline.Handler, logger log.Logger) *StreamingOpen {
	if opener == nil {
		opener = NewOpener(nil, logger)
	}
	if handler == nil {
		handler = pipeline.Reraise
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &StreamingOpen{opener: opener, handler: handler, logger: logger}
}

// Apply implements pipeline.Stage.
func (s *StreamingOpen) Apply(ctx context.Context, upstream pipeline.Iterator) pipeline.Iterator {
	return pipeline.IteratorFunc{
		NextFunc: func(ctx context.Context) (pipeline.Sample, error) {
			for {
				ref, err := upstream.Next(ctx)
				if err != nil {
					return nil, err
				}
				url := ref.URL()
				stream, err := s.opener.Open(ctx, url)
				if err == nil {
					s.logger.Debug("opened shard", log.Shard(url))
					out := ref.Clone()
					out[pipeline.KeyStream] = stream
					return out, nil
				}
				if herr := s.handler(fmt.Errorf("open shard %s: %w", url, err)); herr != nil {
					return nil, herr
				}
			}
		},
		CloseFunc: upstream.Close,
	}
}

var _ pipeline.Stage = (*StreamingOpen)(nil)
