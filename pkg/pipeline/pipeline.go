package pipeline

import (
	"context"
	"errors"
	"io"
)

// Pipeline is a fixed, ordered chain: one source followed by filter stages.
type Pipeline struct {
	Source Source
	Stages []Stage
}

// New creates a pipeline from a source and stages.
func New(source Source, stages ...Stage) Pipeline {
	return Pipeline{Source: source, Stages: stages}
}

// Elements returns the source followed by the stages, in pipeline order.
func (p Pipeline) Elements() []any {
	out := make([]any, 0, len(p.Stages)+1)
	if p.Source != nil {
		out = append(out, p.Source)
	}
	for _, s := range p.Stages {
		out = append(out, s)
	}
	return out
}

// Run composes the pipeline left to right and returns the resulting iterator.
// The pipeline holds no cursor; calling Run again restarts from the source.
func Run(ctx context.Context, p Pipeline) Iterator {
	if p.Source == nil {
		return Empty()
	}
	it := p.Source.Iterate(ctx)
	for _, stage := range p.Stages {
		it = stage.Apply(ctx, it)
	}
	return it
}

// SetEpochs tells every epoch-aware element of the pipeline about the epoch.
// Elements without the capability are skipped.
func SetEpochs(p Pipeline, epoch int) {
	for _, el := range p.Elements() {
		if es, ok := el.(EpochSetter); ok {
			es.SetEpoch(epoch)
		}
	}
}

// CloseAll closes every io.Closer element in reverse pipeline order and
// returns the joined errors.
func CloseAll(p Pipeline) error {
	els := p.Elements()
	var errs []error
	for i := len(els) - 1; i >= 0; i-- {
		if c, ok := els[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
