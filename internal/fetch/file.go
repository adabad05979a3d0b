package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/tanq16/mediastitch/internal/utils"
	"golang.org/x/sync/errgroup"
)

var contentRangeTotal = regexp.MustCompile(`/(\d+)$`)

type RangeInfo struct {
	TotalBytes   int64
	AcceptRanges bool
	ContentType  string
}

// File is a whole downloaded object.
type File struct {
	Data        []byte
	ContentType string
}

// ProbeRange asks for the first byte to learn the total size and whether
// ranges work. The probe has its own timeout; any failure just means the
// caller should stream instead.
func (f *Fetcher) ProbeRange(ctx context.Context, url string) (RangeInfo, error) {
	pctx, cancel := context.WithTimeout(ctx, f.opts.ProbeTimeout)
	defer cancel()
	resp, err := f.get(pctx, url, map[string]string{"Range": "bytes=0-0"})
	if err != nil {
		return RangeInfo{}, err
	}
	resp.Body.Close()

	info := RangeInfo{ContentType: resp.Header.Get("Content-Type")}
	if m := contentRangeTotal.FindStringSubmatch(resp.Header.Get("Content-Range")); m != nil {
		info.TotalBytes, _ = strconv.ParseInt(m[1], 10, 64)
	}
	info.AcceptRanges = strings.Contains(strings.ToLower(resp.Header.Get("Accept-Ranges")), "bytes") ||
		resp.StatusCode == http.StatusPartialContent
	if resp.StatusCode >= 400 {
		return info, fmt.Errorf("%w: range probe HTTP %d", utils.ErrNetwork, resp.StatusCode)
	}
	return info, nil
}

// FetchFile downloads a whole file, by ranges when the probe allows it.
func (f *Fetcher) FetchFile(ctx context.Context, url string, progress ProgressFunc) (File, error) {
	info, err := f.ProbeRange(ctx, url)
	if ctx.Err() != nil {
		return File{}, fmt.Errorf("probing %s: %w", url, utils.ErrCancelled)
	}
	if err == nil && info.AcceptRanges && info.TotalBytes > 0 {
		data, err := f.FetchRanges(ctx, url, info.TotalBytes, progress)
		if err == nil {
			return File{Data: data, ContentType: info.ContentType}, nil
		}
		if !errors.Is(err, utils.ErrRangeRequestsNotSupported) {
			return File{}, err
		}
		f.logf("server ignored ranges for %s, streaming instead", url)
	} else if err != nil {
		f.logf("range probe failed for %s: %v", url, err)
	}
	return f.FetchStream(ctx, url, progress)
}

// FetchRanges downloads total bytes in fixed-size chunks with a small
// worker pool and assembles them in order.
func (f *Fetcher) FetchRanges(ctx context.Context, url string, total int64, progress ProgressFunc) ([]byte, error) {
	chunk := f.opts.ChunkSize
	count := int((total + chunk - 1) / chunk)
	results := make([][]byte, count)
	workers := utils.Clamp(f.opts.Concurrency, 1, 3)

	var next atomic.Int64
	var downloaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= count {
					return nil
				}
				start := int64(i) * chunk
				end := min(total-1, start+chunk-1)
				data, err := f.fetchRange(gctx, url, start, end)
				if err != nil {
					return fmt.Errorf("chunk %d: %w", i, err)
				}
				results[i] = data
				n := downloaded.Add(int64(len(data)))
				if progress != nil {
					progress(n, total)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("range download of %s: %w", url, utils.ErrCancelled)
		}
		return nil, err
	}
	return utils.Concat(results), nil
}

func (f *Fetcher) fetchRange(ctx context.Context, url string, start, end int64) ([]byte, error) {
	resp, err := f.get(ctx, url, map[string]string{"Range": fmt.Sprintf("bytes=%d-%d", start, end)})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		resp.Body.Close()
		return nil, utils.ErrRangeRequestsNotSupported
	}
	body, err := readBody(ctx, resp, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("%w: part HTTP %d", utils.ErrNetwork, resp.StatusCode)
	}
	if int64(len(body)) != end-start+1 {
		return nil, fmt.Errorf("%w: short range %d-%d (%d bytes)", utils.ErrNetwork, start, end, len(body))
	}
	return body, nil
}

// FetchStream reads a file with one GET, waiting on the pause gate between
// reads.
func (f *Fetcher) FetchStream(ctx context.Context, url string, progress ProgressFunc) (File, error) {
	resp, err := f.get(ctx, url, nil)
	if err != nil {
		return File{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return File{}, fmt.Errorf("%w: HTTP %d for %s", utils.ErrNetwork, resp.StatusCode, url)
	}

	total := max(resp.ContentLength, 0)
	var out []byte
	if total > 0 {
		out = make([]byte, 0, total)
	}
	buf := make([]byte, 256*1024)
	for {
		if err := f.gate.Wait(ctx); err != nil {
			return File{}, fmt.Errorf("streaming %s: %w", url, utils.ErrCancelled)
		}
		n, err := resp.Body.Read(buf)
		out = append(out, buf[:n]...)
		if n > 0 && progress != nil {
			progress(int64(len(out)), total)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return File{}, failure(ctx, "error streaming "+url, err)
		}
	}
	if len(out) == 0 {
		return File{}, fmt.Errorf("%w: empty body from %s", utils.ErrNetwork, url)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return File{Data: out, ContentType: ct}, nil
}
