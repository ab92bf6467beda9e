package pipeline

import "context"

// Source is the first element of a pipeline. It produces samples without an
// upstream.
type Source interface {
	Iterate(ctx context.Context) Iterator
}

// Stage consumes an upstream iterator and returns a transformed one.
type Stage interface {
	Apply(ctx context.Context, upstream Iterator) Iterator
}

// EpochSetter is implemented by stages whose behavior depends on the epoch,
// e.g. a shard list that reshuffles every pass.
type EpochSetter interface {
	SetEpoch(epoch int)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) Iterator

func (f SourceFunc) Iterate(ctx context.Context) Iterator { return f(ctx) }

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context, upstream Iterator) Iterator

func (f StageFunc) Apply(ctx context.Context, upstream Iterator) Iterator { return f(ctx, upstream) }

// Map returns a stage applying fn to every sample. Errors from fn go through
// handler; a nil handler aborts on the first error.
func Map(fn func(Sample) (Sample, error), handler Handler) Stage {
	if handler == nil {
		handler = Reraise
	}
	return StageFunc(func(ctx context.Context, upstream Iterator) Iterator {
		return IteratorFunc{
			NextFunc: func(ctx context.Context) (Sample, error) {
				for {
					s, err := upstream.Next(ctx)
					if err != nil {
						return nil, err
					}
					out, err := fn(s)
					if err == nil {
						return out, nil
					}
					if herr := handler(err); herr != nil {
						return nil, herr
					}
				}
			},
			CloseFunc: upstream.Close,
		}
	})
}
