package dataset

import (
	"fmt"

	"github.com/bft-labs/wsds/pkg/pipeline"
)

// Transformation maps one sample to another. Errors are returned to the
// caller of Next untouched.
type Transformation func(pipeline.Sample) (pipeline.Sample, error)

// InterpretTransformations normalizes v into an ordered list. v may be nil,
// a Transformation, a plain func(pipeline.Sample) (pipeline.Sample, error),
// or a slice of those.
func InterpretTransformations(v any) ([]Transformation, error) {
	var items []any
	switch t := v.(type) {
	case nil:
		return []Transformation{}, nil
	case []Transformation:
		for _, x := range t {
			items = append(items, x)
		}
	case []func(pipeline.Sample) (pipeline.Sample, error):
		for _, x := range t {
			items = append(items, x)
		}
	case []any:
		items = t
	default:
		items = []any{v}
	}

	out := make([]Transformation, 0, len(items))
	for i, item := range items {
		tr, err := asTransformation(item)
		if err != nil {
			return nil, fmt.Errorf("transformation %d: %w", i, err)
		}
		out = append(out, tr)
	}
	return out, nil
}

func asTransformation(v any) (Transformation, error) {
	switch f := v.(type) {
	case Transformation:
		if f != nil {
			return f, nil
		}
	case func(pipeline.Sample) (pipeline.Sample, error):
		if f != nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrNotCallable, v)
}

// ApplyTransformations runs sample through ts in order.
func ApplyTransformations(ts []Transformation, sample pipeline.Sample) (pipeline.Sample, error) {
	var err error
	for _, t := range ts {
		sample, err = t(sample)
		if err != nil {
			return nil, err
		}
	}
	return sample, nil
}
