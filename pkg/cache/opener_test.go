package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/wsds/pkg/pipeline"
)

func fastOpener(client HTTPClient) *Opener {
	o := NewOpener(client, nil)
	o.Initial = time.Millisecond
	o.Max = 5 * time.Millisecond
	return o
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestOpener_LocalPaths(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "shard.tar")
	if err := os.WriteFile(p, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	o := NewOpener(nil, nil)
	for _, url := range []string{p, "file://" + p} {
		rc, err := o.Open(context.Background(), url)
		if err != nil {
			t.Fatalf("Open(%q): %v", url, err)
		}
		if got := readAll(t, rc); got != "payload" {
			t.Fatalf("Open(%q) read %q", url, got)
		}
	}
}

func TestOpener_UnsupportedScheme(t *testing.T) {
	_, err := NewOpener(nil, nil).Open(context.Background(), "gs://bucket/shard.tar")
	if !errors.Is(err, ErrUnsupportedURL) {
		t.Fatalf("expected ErrUnsupportedURL, got %v", err)
	}
}

func TestOpener_Pipe(t *testing.T) {
	rc, err := NewOpener(nil, nil).Open(context.Background(), "pipe:printf hello")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := readAll(t, rc); got != "hello" {
		t.Fatalf("read %q, want hello", got)
	}
}

func TestOpener_PipeFailureReportedOnClose(t *testing.T) {
	rc, err := NewOpener(nil, nil).Open(context.Background(), "pipe:exit 3")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := io.ReadAll(rc); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := rc.Close(); err == nil {
		t.Fatal("expected exit status error from Close")
	}
}

func TestOpener_HTTPRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("shard bytes"))
	}))
	defer srv.Close()

	rc, err := fastOpener(srv.Client()).Open(context.Background(), srv.URL+"/a.tar")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := readAll(t, rc); got != "shard bytes" {
		t.Fatalf("read %q", got)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("server saw %d calls, want 3", n)
	}
}

func TestOpener_HTTPClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := fastOpener(srv.Client()).Open(context.Background(), srv.URL+"/missing.tar"); err == nil {
		t.Fatal("expected error for 404")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("server saw %d calls, want 1", n)
	}
}

func TestOpener_HTTPGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	o := fastOpener(srv.Client())
	o.MaxRetries = 2
	if _, err := o.Open(context.Background(), srv.URL+"/a.tar"); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("server saw %d calls, want 3", n)
	}
}

func TestStreamingOpen_HandlerSkipsMissingShards(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.tar")
	if err := os.WriteFile(good, []byte("ok"), 0o644); err != nil {
		t.Fatal(err)
	}
	refs := pipeline.Slice(
		pipeline.Sample{pipeline.KeyURL: filepath.Join(dir, "missing.tar")},
		pipeline.Sample{pipeline.KeyURL: good},
	)

	stage := NewStreamingOpen(nil, pipeline.IgnoreAndContinue, nil)
	got, err := pipeline.Collect(context.Background(), stage.Apply(context.Background(), refs), 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 || got[0].URL() != good {
		t.Fatalf("got %v, want only the good shard", got)
	}
	if s := readAll(t, got[0][pipeline.KeyStream].(io.ReadCloser)); s != "ok" {
		t.Fatalf("stream read %q", s)
	}
}

func TestStreamingOpen_DefaultHandlerAborts(t *testing.T) {
	refs := pipeline.Slice(pipeline.Sample{pipeline.KeyURL: filepath.Join(t.TempDir(), "missing.tar")})
	stage := NewStreamingOpen(nil, nil, nil)
	if _, err := stage.Apply(context.Background(), refs).Next(context.Background()); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected open error, got %v", err)
	}
}
