package tariter

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bft-labs/wsds/pkg/log"
	"github.com/bft-labs/wsds/pkg/pipeline"
)

// SelectFunc decides whether an archive member is kept.
type SelectFunc func(fname string) bool

// RenameFunc rewrites an archive member name before grouping.
type RenameFunc func(fname string) string

// Expander is the tar-expanding stage.
type Expander struct {
	SelectFiles SelectFunc
	RenameFiles RenameFunc
	Handler     pipeline.Handler
	Logger      log.Logger
}

// SelectExtensions returns a SelectFunc keeping members whose extension
// (everything after the first dot of the base name) is one of exts.
func SelectExtensions(exts ...string) SelectFunc {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.TrimPrefix(strings.ToLower(e), ".")] = true
	}
	return func(fname string) bool {
		_, ext, ok := SplitKey(fname)
		return ok && want[strings.ToLower(ext)]
	}
}

// Apply implements pipeline.Stage.
func (e *Expander) Apply(ctx context.Context, upstream pipeline.Iterator) pipeline.Iterator {
	handler := e.Handler
	if handler == nil {
		handler = pipeline.Reraise
	}
	logger := e.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	it := &expandIterator{
		upstream: upstream,
		exp:      e,
		handler:  handler,
		logger:   logger,
	}
	return it
}

type expandIterator struct {
	upstream pipeline.Iterator
	exp      *Expander
	handler  pipeline.Handler
	logger   log.Logger

	url    string
	stream io.Closer
	tr     *tar.Reader
}

func (it *expandIterator) Next(ctx context.Context) (pipeline.Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if it.tr == nil {
			if err := it.openNext(ctx); err != nil {
				return nil, err
			}
			continue
		}

		hdr, err := it.tr.Next()
		if errors.Is(err, io.EOF) {
			it.closeStream()
			continue
		}
		if err != nil {
			url := it.url
			it.closeStream()
			if herr := it.handler(fmt.Errorf("read tar %s: %w", url, err)); herr != nil {
				return nil, herr
			}
			continue
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		fname := hdr.Name
		if isMetadata(fname) {
			continue
		}
		if it.exp.RenameFiles != nil {
			fname = it.exp.RenameFiles(fname)
		}
		if it.exp.SelectFiles != nil && !it.exp.SelectFiles(fname) {
			continue
		}

		data, err := io.ReadAll(it.tr)
		if err != nil {
			url := it.url
			it.closeStream()
			if herr := it.handler(fmt.Errorf("read member %s in %s: %w", hdr.Name, url, err)); herr != nil {
				return nil, herr
			}
			continue
		}
		return pipeline.Sample{
			pipeline.KeyFname:     fname,
			pipeline.KeyData:      data,
			pipeline.KeySourceURL: it.url,
		}, nil
	}
}

// openNext pulls the next stream from upstream and prepares a tar reader.
func (it *expandIterator) openNext(ctx context.Context) error {
	for {
		src, err := it.upstream.Next(ctx)
		if err != nil {
			return err
		}
		url := src.URL()
		stream, ok := src[pipeline.KeyStream].(io.ReadCloser)
		if !ok {
			if herr := it.handler(fmt.Errorf("shard %s: sample has no stream", url)); herr != nil {
				return herr
			}
			continue
		}

		r, err := maybeGunzip(stream)
		if err != nil {
			stream.Close()
			if herr := it.handler(fmt.Errorf("open tar %s: %w", url, err)); herr != nil {
				return herr
			}
			continue
		}
		it.logger.Debug("expanding shard", log.Shard(url))
		it.url = url
		it.stream = stream
		it.tr = tar.NewReader(r)
		return nil
	}
}

func (it *expandIterator) closeStream() {
	if it.stream != nil {
		if err := it.stream.Close(); err != nil {
			it.logger.Warn("closing shard stream", log.Shard(it.url), log.Err(err))
		}
	}
	it.stream = nil
	it.tr = nil
	it.url = ""
}

func (it *expandIterator) Close() error {
	it.closeStream()
	return it.upstream.Close()
}

// maybeGunzip wraps r in a gzip reader when the stream starts with the gzip magic.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}

// isMetadata reports whether a member is archive bookkeeping rather than data:
// names starting with "__" or "._" in their last path element.
func isMetadata(fname string) bool {
	base := path.Base(fname)
	return strings.HasPrefix(base, "__") || strings.HasPrefix(base, "._")
}

var _ pipeline.Stage = (*Expander)(nil)
