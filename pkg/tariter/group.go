package tariter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bft-labs/wsds/pkg/pipeline"
)

// ErrDuplicateKey is reported when a group contains the same extension twice.
var ErrDuplicateKey = errors.New("wsds: duplicate file name in sample")

// SplitKey splits an archive member name into its sample key and extension:
// "dir/000123.seg.png" -> ("dir/000123", "seg.png"). The split happens at the
// first dot of the last path element.
func SplitKey(fname string) (key, ext string, ok bool) {
	dir, base := path.Split(fname)
	i := strings.IndexByte(base, '.')
	if i <= 0 || i == len(base)-1 {
		return "", "", false
	}
	return dir + base[:i], base[i+1:], true
}

// KeyFunc splits a member name into sample key and field name.
type KeyFunc func(fname string) (key, ext string, ok bool)

// Grouper is the key-grouping stage.
type Grouper struct {
	Handler pipeline.Handler
	Keys    KeyFunc
}

// Apply implements pipeline.Stage.
func (g *Grouper) Apply(ctx context.Context, upstream pipeline.Iterator) pipeline.Iterator {
	handler := g.Handler
	if handler == nil {
		handler = pipeline.Reraise
	}
	keys := g.Keys
	if keys == nil {
		keys = SplitKey
	}
	return &groupIterator{upstream: upstream, handler: handler, keys: keys}
}

type groupIterator struct {
	upstream pipeline.Iterator
	handler  pipeline.Handler
	keys     KeyFunc

	current pipeline.Sample
	bad     bool
	done    bool
}

func (it *groupIterator) Next(ctx context.Context) (pipeline.Sample, error) {
	for {
		if it.done {
			return nil, io.EOF
		}

		member, err := it.upstream.Next(ctx)
		if errors.Is(err, io.EOF) {
			it.done = true
			if out := it.flush(); out != nil {
				return out, nil
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}

		fname, _ := member[pipeline.KeyFname].(string)
		key, ext, ok := it.keys(fname)
		if !ok {
			continue
		}
		url := member.URL()

		if it.current == nil || it.current[pipeline.KeySampleKey] != key || it.current[pipeline.KeySourceURL] != url {
			prev := it.flush()
			it.current = pipeline.Sample{
				pipeline.KeySampleKey: key,
				pipeline.KeySourceURL: url,
			}
			it.bad = false
			if err := it.add(ext, member, url, key); err != nil {
				return nil, err
			}
			if prev != nil {
				return prev, nil
			}
			continue
		}

		if err := it.add(ext, member, url, key); err != nil {
			return nil, err
		}
	}
}

// add stores one member in the current group. A duplicate extension marks
// the group bad and is reported through the handler.
func (it *groupIterator) add(ext string, member pipeline.Sample, url, key string) error {
	if it.bad {
		return nil
	}
	if _, dup := it.current[ext]; dup {
		it.bad = true
		return it.handler(fmt.Errorf("%w: %s.%s in %s", ErrDuplicateKey, key, ext, url))
	}
	it.current[ext] = member[pipeline.KeyData]
	return nil
}

// flush returns the finished group, or nil when there is none or it was bad.
func (it *groupIterator) flush() pipeline.Sample {
	out := it.current
	bad := it.bad
	it.current = nil
	it.bad = false
	if out == nil || bad {
		return nil
	}
	return out
}

func (it *groupIterator) Close() error {
	return it.upstream.Close()
}

var _ pipeline.Stage = (*Grouper)(nil)
