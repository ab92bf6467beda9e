package dataset

import (
	"context"
	"errors"
	"io"

	"github.com/bft-labs/wsds/pkg/pipeline"
)

// emptyCheck fails a pass that produces no samples at all.
type emptyCheck struct{}

// CheckEmpty returns a stage that turns an empty pass into ErrEmptyDataset.
func CheckEmpty() pipeline.Stage {
	return emptyCheck{}
}

func (emptyCheck) Apply(ctx context.Context, upstream pipeline.Iterator) pipeline.Iterator {
	seen := 0
	return pipeline.IteratorFunc{
		NextFunc: func(ctx context.Context) (pipeline.Sample, error) {
			s, err := upstream.Next(ctx)
			if errors.Is(err, io.EOF) && seen == 0 {
				return nil, ErrEmptyDataset
			}
			if err != nil {
				return nil, err
			}
			seen++
			return s, nil
		},
		CloseFunc: upstream.Close,
	}
}
