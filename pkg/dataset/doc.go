// Package dataset is the training-loop facing side of wsds: a streaming,
// sharded dataset backed by tar archives.
//
// A Dataset is built once from a shard pattern, list or index and a set of options.
// Construction wires a fixed pipeline:
//
//	shard list -> worker split -> (file cache | streaming open) -> tar expand -> group by key [-> empty check]
//
// Each call to Iterate starts a new epoch: every epoch-aware stage is told
// the epoch number, the pipeline runs from the top, sample keys are
// normalized to their dotted form ("jpg" becomes ".jpg") and the dataset's
// transformations are applied in order.
//
// # Basic Usage
//
//	ds, err := dataset.New("/data/train-{000000..000099}.tar",
//	    dataset.WithCacheDir("/var/cache/wsds"),
//	    dataset.WithHandler(pipeline.WarnAndContinue(logger)),
//	)
//	if err != nil {
//	    return err
//	}
//	defer ds.Close()
//
//	it := ds.Iterate(ctx)
//	defer it.Close()
//	for {
//	    sample, err := it.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    train(sample[".jpg"], sample[".cls"])
//	}
//
// # Fixed-size epochs
//
// [WithForceSize] makes every epoch yield exactly n samples, restarting the
// pipeline as often as needed. This lets a small or unevenly split shard set
// satisfy a fixed number of steps per epoch.
//
// # Transformations
//
// Transformations are read afresh for every yielded sample, so
// [Dataset.AddTransform] affects an iteration that is already in flight.
package dataset
