package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/bft-labs/wsds/pkg/log"
)

// ErrUnsupportedURL is returned for URL schemes no opener handles.
var ErrUnsupportedURL = errors.New("wsds: unsupported shard url")

// HTTPClient abstracts HTTP operations for dependency injection.
// The standard *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Opener opens shard URLs as byte streams.
type Opener struct {
	Client     HTTPClient
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
	Logger     log.Logger
}

// DefaultMaxRetries is the number of extra attempts for transient HTTP failures.
const DefaultMaxRetries = 3

// NewOpener creates an opener using client for http(s) URLs. A nil client
// uses http.DefaultClient.
func NewOpener(client HTTPClient, logger log.Logger) *Opener {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Opener{
		Client:     client,
		MaxRetries: DefaultMaxRetries,
		Initial:    DefaultBackoffInitial,
		Max:        DefaultBackoffMax,
		Logger:     logger,
	}
}

// Open opens url. Supported forms: plain paths, file://, http://, https://
// and "pipe:<shell command>" (the command's stdout is the stream).
func (o *Opener) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(url, "pipe:"):
		return openPipe(ctx, strings.TrimPrefix(url, "pipe:"))
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return o.openHTTP(ctx, url)
	case strings.HasPrefix(url, "file://"):
		return os.Open(strings.TrimPrefix(url, "file://"))
	case strings.Contains(url, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, url)
	default:
		return os.Open(url)
	}
}

func (o *Opener) openHTTP(ctx context.Context, url string) (io.ReadCloser, error) {
	b := newBackoff(o.Initial, o.Max)
	var lastErr error
	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		if attempt > 0 {
			o.Logger.Debug("retrying shard download",
				log.Shard(url), log.Int("attempt", attempt), log.Err(lastErr))
			if err := b.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, retryable, err := o.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("open %s: %w", url, lastErr)
}

func (o *Opener) getOnce(ctx context.Context, url string) (io.ReadCloser, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp.Body, false, nil
}

// pipeReader is the stdout of a running shell command.
type pipeReader struct {
	stdout io.ReadCloser
	cmd    *exec.Cmd
	eof    bool
}

func openPipe(ctx context.Context, command string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", command, err)
	}
	return &pipeReader{stdout: stdout, cmd: cmd}, nil
}

func (p *pipeReader) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if err == io.EOF {
		p.eof = true
	}
	return n, err
}

// Close closes the pipe and reaps the command. The exit status is only
// reported when the stream was read to the end; a reader stopping early
// makes the command die of SIGPIPE, which is expected.
func (p *pipeReader) Close() error {
	p.stdout.Close()
	err := p.cmd.Wait()
	if err != nil && p.eof {
		return fmt.Errorf("pipe command %q: %w", p.cmd.Args[len(p.cmd.Args)-1], err)
	}
	return nil
}
