package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/wsds/internal/cliconfig"
	"github.com/bft-labs/wsds/pkg/dataset"
	"github.com/bft-labs/wsds/pkg/log"
	"github.com/bft-labs/wsds/pkg/tariter"
)

const longHelp = `Stream samples out of sharded tar datasets.

Shards are given as paths, file:// or http(s):// URLs, pipe: commands, brace
patterns such as "train-{000000..000099}.tar", or a single .json shard index.
Settings come from flags, WSDS_* environment variables and
$HOME/.wsds/config.toml, in that order of precedence.`

var exampleUsage = strings.TrimSpace(`
  wsds iterate 'data/train-{000..009}.tar' --limit 10
  wsds iterate index.json --cache-dir /tmp/wsds --force-size 100000 --epochs 2
  wsds stats 'https://example.com/shards-{0..3}.tar' --cache-dir /tmp/wsds
  wsds manifest index.json
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the resolved configuration shared by the subcommands.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	zl      zerolog.Logger
	logger  log.Logger
}

func main() {
	a := &app{cfg: cliconfig.DefaultConfig()}
	a.zl = cliconfig.Logger(a.cfg.LogLevel)

	root := &cobra.Command{
		Use:               "wsds",
		Short:             "Stream samples out of sharded tar datasets",
		Long:              longHelp,
		Example:           exampleUsage,
		Version:           fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.wsds/config.toml)")
	pf.StringVar(&a.cfg.CacheDir, "cache-dir", a.cfg.CacheDir, "cache shards on disk in this directory (default: stream)")
	pf.Int64Var(&a.cfg.CacheSize, "cache-size", a.cfg.CacheSize, "cache size budget in bytes")
	pf.IntVar(&a.cfg.LRUSize, "lru-size", a.cfg.LRUSize, "maximum number of cached shards (0: size bound only)")
	pf.StringVar(&a.cfg.DatasetName, "name", a.cfg.DatasetName, "dataset name, used for logs and the cache subdirectory")
	pf.BoolVar(&a.cfg.Keep, "keep", a.cfg.Keep, "keep cached shards on exit")
	pf.StringVar(&a.cfg.Handler, "handler", a.cfg.Handler, "per-shard error handling: reraise, ignore or warn")
	pf.StringVar(&a.cfg.Select, "select", a.cfg.Select, "comma separated extensions to keep (default: all)")
	pf.Int64Var(&a.cfg.ShuffleSeed, "shuffle-seed", a.cfg.ShuffleSeed, "reshuffle shards every epoch from this seed")
	pf.DurationVar(&a.cfg.HTTPTimeout, "timeout", a.cfg.HTTPTimeout, "HTTP timeout per shard request")
	pf.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn or error")

	root.AddCommand(a.iterateCmd(), a.statsCmd(), a.manifestCmd())

	if err := root.Execute(); err != nil {
		a.zl.Error().Err(err).Msg("wsds")
		os.Exit(1)
	}
}

// load resolves the configuration: flags over environment over file.
func (a *app) load(cmd *cobra.Command, args []string) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	if changed["shuffle-seed"] {
		a.cfg.Shuffle = true
	}

	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.zl = cliconfig.Logger(a.cfg.LogLevel)
	a.logger = log.NewZerologAdapterWithLogger(a.zl)
	a.zl.Debug().Interface("config", a.cfg).Msg("configuration")
	return nil
}

// open builds a dataset over the positional shard arguments.
func (a *app) open(args []string, extra ...dataset.Option) (*dataset.Dataset, error) {
	handler, err := a.cfg.HandlerFunc(a.logger)
	if err != nil {
		return nil, err
	}

	opts := []dataset.Option{
		dataset.WithLogger(a.logger),
		dataset.WithHandler(handler),
		dataset.WithHTTPClient(&http.Client{Timeout: a.cfg.HTTPTimeout}),
		dataset.WithDatasetName(a.cfg.DatasetName),
		dataset.WithKeep(a.cfg.Keep),
	}
	if a.cfg.CacheDir != "" {
		opts = append(opts,
			dataset.WithCacheDir(a.cfg.CacheDir),
			dataset.WithCacheSize(a.cfg.CacheSize),
			dataset.WithLRUSize(a.cfg.LRUSize))
	}
	if exts := a.cfg.SelectExtensions(); len(exts) > 0 {
		opts = append(opts, dataset.WithSelectFiles(tariter.SelectExtensions(exts...)))
	}
	if a.cfg.Shuffle {
		opts = append(opts, dataset.WithShuffleShards(a.cfg.ShuffleSeed))
	}
	opts = append(opts, extra...)

	var shards any = args
	if len(args) == 1 {
		shards = args[0]
	}
	return dataset.New(shards, opts...)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func closeDataset(ds *dataset.Dataset, logger zerolog.Logger) {
	if err := ds.Close(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("closing dataset")
	}
}
