package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bft-labs/wsds/pkg/dataset"
	"github.com/bft-labs/wsds/pkg/manifest"
	"github.com/bft-labs/wsds/pkg/pipeline"
)

func (a *app) iterateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iterate <shards>...",
		Short: "Print one JSON line per sample",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []dataset.Option
			if a.cfg.ForceSize > 0 {
				extra = append(extra, dataset.WithForceSize(a.cfg.ForceSize))
			}
			ds, err := a.open(args, extra...)
			if err != nil {
				return err
			}
			defer closeDataset(ds, a.zl)

			ctx, cancel := signalContext()
			defer cancel()

			if a.cfg.Watch {
				if err := ds.WatchManifest(ctx); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for epoch := 0; epoch < a.cfg.Epochs; epoch++ {
				n, err := writeEpoch(ctx, enc, ds, a.cfg.Limit)
				if err != nil {
					return err
				}
				a.zl.Info().Int("epoch", ds.Epoch()).Int("samples", n).Int("size", ds.Size()).Msg("epoch done")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&a.cfg.Limit, "limit", a.cfg.Limit, "stop each epoch after this many samples (0: no limit)")
	cmd.Flags().IntVar(&a.cfg.Epochs, "epochs", a.cfg.Epochs, "number of epochs to run")
	cmd.Flags().IntVar(&a.cfg.ForceSize, "force-size", a.cfg.ForceSize, "yield exactly this many samples per epoch (0: one pass)")
	cmd.Flags().BoolVar(&a.cfg.Watch, "watch", a.cfg.Watch, "reload a .json shard index when it changes")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <shards>...",
		Short: "Run one epoch through the cache and print its hit statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.CacheDir == "" {
				return fmt.Errorf("stats needs --cache-dir: %w", dataset.ErrNoCache)
			}
			ds, err := a.open(args)
			if err != nil {
				return err
			}
			defer closeDataset(ds, a.zl)

			ctx, cancel := signalContext()
			defer cancel()

			n, err := writeEpoch(ctx, nil, ds, 0)
			if err != nil {
				return err
			}
			accesses, misses, err := ds.Stats()
			if err != nil {
				return err
			}
			totals := ds.Cache().Totals()
			return json.NewEncoder(cmd.OutOrStdout()).Encode(cacheReport{
				Samples:       n,
				Accesses:      accesses,
				Misses:        misses,
				MissRatio:     ds.Cache().Stats().MissRatio(),
				TotalAccesses: totals.Accesses,
				TotalMisses:   totals.Misses,
				CachedFiles:   ds.Cache().Len(),
				CachedBytes:   ds.Cache().BytesUsed(),
			})
		},
	}
}

func (a *app) manifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <index.json>",
		Short: "Print the shard URLs and total size of a shard index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			urls := m.URLs()
			for i, u := range urls {
				fmt.Fprintf(out, "%s\t%d\n", u, m.ShardList[i].NSamples)
			}
			fmt.Fprintf(out, "total\t%d samples in %d shards\n", m.TotalSize(), len(urls))
			return nil
		},
	}
}

// cacheReport covers this run; the totals include earlier runs over the
// same cache directory.
type cacheReport struct {
	Samples       int     `json:"samples"`
	Accesses      int64   `json:"accesses"`
	Misses        int64   `json:"misses"`
	MissRatio     float64 `json:"miss_ratio"`
	TotalAccesses int64   `json:"total_accesses"`
	TotalMisses   int64   `json:"total_misses"`
	CachedFiles   int     `json:"cached_files"`
	CachedBytes   int64   `json:"cached_bytes"`
}

// writeEpoch runs one epoch and encodes a summary of every sample to enc,
// which may be nil. It returns the number of samples seen.
func writeEpoch(ctx context.Context, enc *json.Encoder, ds *dataset.Dataset, limit int) (int, error) {
	it := ds.Iterate(ctx)
	defer it.Close()

	n := 0
	for limit <= 0 || n < limit {
		sample, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		n++
		if enc != nil {
			if err := enc.Encode(summarize(ds.Epoch(), sample)); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// sampleSummary is the printed form of a sample: its identity and the byte
// size of each field.
type sampleSummary struct {
	Epoch  int            `json:"epoch"`
	Key    string         `json:"__key__"`
	URL    string         `json:"__url__"`
	Fields map[string]int `json:"fields"`
}

func summarize(epoch int, s pipeline.Sample) sampleSummary {
	out := sampleSummary{Epoch: epoch, Fields: map[string]int{}}
	out.Key, _ = s[pipeline.KeySampleKey].(string)
	out.URL, _ = s[pipeline.KeySourceURL].(string)
	for _, k := range s.Keys() {
		if k == pipeline.KeySampleKey || k == pipeline.KeySourceURL {
			continue
		}
		switch v := s[k].(type) {
		case []byte:
			out.Fields[k] = len(v)
		case string:
			out.Fields[k] = len(v)
		default:
			out.Fields[k] = -1
		}
	}
	return out
}
