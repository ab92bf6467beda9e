package shardlist

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/bft-labs/wsds/pkg/pipeline"
)

// Environment variables read by WorkerInfoFromEnv.
const (
	EnvRank       = "WSDS_RANK"
	EnvWorldSize  = "WSDS_WORLD_SIZE"
	EnvWorker     = "WSDS_WORKER"
	EnvNumWorkers = "WSDS_NUM_WORKERS"
)

// WorkerInfo identifies which slice of the shards this process owns.
// Shards are first split across ranks (nodes), then across the worker
// processes of a rank.
type WorkerInfo struct {
	Rank       int
	WorldSize  int
	Worker     int
	NumWorkers int
}

// SingleWorker owns every shard.
var SingleWorker = WorkerInfo{WorldSize: 1, NumWorkers: 1}

// WorkerInfoFromEnv reads the WSDS_* variables. Missing variables default to
// a single worker on a single rank.
func WorkerInfoFromEnv() (WorkerInfo, error) {
	info := SingleWorker
	for _, v := range []struct {
		name string
		dst  *int
	}{
		{EnvRank, &info.Rank},
		{EnvWorldSize, &info.WorldSize},
		{EnvWorker, &info.Worker},
		{EnvNumWorkers, &info.NumWorkers},
	} {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return SingleWorker, fmt.Errorf("parse %s: %w", v.name, err)
		}
		*v.dst = n
	}
	return info, info.Validate()
}

// Validate checks that the indices fall inside their counts.
func (w WorkerInfo) Validate() error {
	if w.WorldSize < 1 || w.Rank < 0 || w.Rank >= w.WorldSize {
		return fmt.Errorf("invalid rank %d of world size %d", w.Rank, w.WorldSize)
	}
	if w.NumWorkers < 1 || w.Worker < 0 || w.Worker >= w.NumWorkers {
		return fmt.Errorf("invalid worker %d of %d", w.Worker, w.NumWorkers)
	}
	return nil
}

// Owns reports whether the i-th shard (zero-based) belongs to this worker.
func (w WorkerInfo) Owns(i int) bool {
	if i%w.WorldSize != w.Rank {
		return false
	}
	return (i/w.WorldSize)%w.NumWorkers == w.Worker
}

// Splitter is the stage keeping only the shards owned by one worker.
type Splitter struct {
	Info WorkerInfo
}

// SplitByWorker returns the worker-splitting stage for info.
func SplitByWorker(info WorkerInfo) *Splitter {
	return &Splitter{Info: info}
}

// Apply implements pipeline.Stage.
func (s *Splitter) Apply(ctx context.Context, upstream pipeline.Iterator) pipeline.Iterator {
	info := s.Info
	if info.WorldSize < 1 {
		info.WorldSize = 1
	}
	if info.NumWorkers < 1 {
		info.NumWorkers = 1
	}

	idx := 0
	return pipeline.IteratorFunc{
		NextFunc: func(ctx context.Context) (pipeline.Sample, error) {
			for {
				s, err := upstream.Next(ctx)
				if err != nil {
					return nil, err
				}
				owned := info.Owns(idx)
				idx++
				if owned {
					return s, nil
				}
			}
		},
		CloseFunc: upstream.Close,
	}
}

var _ pipeline.Stage = (*Splitter)(nil)
