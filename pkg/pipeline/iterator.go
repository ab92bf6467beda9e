package pipeline

import (
	"context"
	"errors"
	"io"
)

// Iterator produces samples lazily.
type Iterator interface {
	// Next returns the next sample.
	// Returns io.EOF when the iterator is exhausted.
	Next(ctx context.Context) (Sample, error)

	// Close releases resources held by the iterator and everything upstream of it.
	Close() error
}

// IteratorFunc adapts a next function and an optional close function to Iterator.
type IteratorFunc struct {
	NextFunc  func(ctx context.Context) (Sample, error)
	CloseFunc func() error
}

func (f IteratorFunc) Next(ctx context.Context) (Sample, error) {
	return f.NextFunc(ctx)
}

func (f IteratorFunc) Close() error {
	if f.CloseFunc == nil {
		return nil
	}
	return f.CloseFunc()
}

// sliceIterator yields a fixed list of samples.
type sliceIterator struct {
	samples []Sample
	pos     int
}

// Slice returns an Iterator over samples. Each sample is yielded as a shallow
// copy so downstream mutation does not leak into the backing slice.
func Slice(samples ...Sample) Iterator {
	return &sliceIterator{samples: samples}
}

func (it *sliceIterator) Next(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.samples) {
		return nil, io.EOF
	}
	s := it.samples[it.pos]
	it.pos++
	return s.Clone(), nil
}

func (it *sliceIterator) Close() error { return nil }

// Empty returns an exhausted iterator.
func Empty() Iterator {
	return Slice()
}

// Collect drains it into a slice and closes it.
// Stops early after max samples when max > 0.
func Collect(ctx context.Context, it Iterator, max int) ([]Sample, error) {
	defer it.Close()

	var out []Sample
	for max <= 0 || len(out) < max {
		s, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}
