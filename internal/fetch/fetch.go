// Package fetch downloads playlists, segments and whole files for a job:
// concurrent byte ranges when the server allows them, a streamed GET when
// it does not, and a worker pool for playlist segments.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/job"
	"github.com/tanq16/mediastitch/internal/utils"
)

// ProgressFunc receives cumulative progress; total is 0 when unknown.
type ProgressFunc func(done, total int64)

type Options struct {
	Concurrency  int
	ChunkSize    int64
	ProbeTimeout time.Duration
	// Transform runs on every segment body before it is stored; an error
	// fails that segment.
	Transform func([]byte) ([]byte, error)
}

type Fetcher struct {
	client utils.HTTPDoer
	gate   *job.Gate
	opts   Options
}

// New builds a fetcher for one job. gate may be nil for fetches that
// cannot be paused.
func New(client utils.HTTPDoer, gate *job.Gate, opts Options) *Fetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = utils.DefaultChunkSize
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 8 * time.Second
	}
	if gate == nil {
		gate = &job.Gate{}
	}
	return &Fetcher{client: client, gate: gate, opts: opts}
}

// WithTransform returns a copy of f that applies t to every segment.
func (f *Fetcher) WithTransform(t func([]byte) ([]byte, error)) *Fetcher {
	c := *f
	c.opts.Transform = t
	return &c
}

// failure classifies an error from a request made under ctx.
func failure(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", what, utils.ErrCancelled)
	}
	return fmt.Errorf("%s: %w: %w", what, utils.ErrNetwork, err)
}

// get waits for the pause gate and issues a GET with optional headers.
func (f *Fetcher) get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	if err := f.gate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting to fetch %s: %w", url, utils.ErrCancelled)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, failure(ctx, "error fetching "+url, err)
	}
	return resp, nil
}

func readBody(ctx context.Context, resp *http.Response, url string) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure(ctx, "error reading "+url, err)
	}
	return body, nil
}

// Validate rejects responses that are not media: bad status, empty body,
// HTML or JSON content types, and bodies that look like a playlist or a
// markup page.
func Validate(resp *http.Response, body []byte) error {
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("%w: HTTP %d", utils.ErrNetwork, resp.StatusCode)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", utils.ErrNetwork)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/html") || strings.Contains(ct, "application/json") {
		return fmt.Errorf("%w: unexpected content type %s", utils.ErrNetwork, ct)
	}
	if body[0] == '#' || body[0] == '<' {
		return fmt.Errorf("%w: body is text, not media", utils.ErrNetwork)
	}
	return nil
}

// FetchText downloads a playlist.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	resp, err := f.get(ctx, url, nil)
	if err != nil {
		return "", err
	}
	body, err := readBody(ctx, resp, url)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d for %s", utils.ErrNetwork, resp.StatusCode, url)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("%w: empty playlist %s", utils.ErrNetwork, url)
	}
	return string(body), nil
}

// FetchBytes downloads and validates one media object (segment or init).
func (f *Fetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	body, err := readBody(ctx, resp, url)
	if err != nil {
		return nil, err
	}
	if err := Validate(resp, body); err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", url, err)
	}
	return body, nil
}

func (f *Fetcher) logf(format string, args ...any) {
	log.Debug().Str("op", "fetch/fetch").Msgf(format, args...)
}
