package fetch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tanq16/mediastitch/internal/job"
	"github.com/tanq16/mediastitch/internal/utils"
	"golang.org/x/sync/errgroup"
)

// FetchSegments downloads urls into parts by index. Workers claim the next
// unclaimed index, so completion order is arbitrary and parts tracks the
// contiguous prefix. The first failure cancels the rest.
func (f *Fetcher) FetchSegments(ctx context.Context, urls []string, parts *job.Parts, progress ProgressFunc) error {
	total := int64(len(urls))
	workers := utils.Clamp(f.opts.Concurrency*2, 1, 6)

	var next atomic.Int64
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= len(urls) {
					return nil
				}
				data, err := f.FetchBytes(gctx, urls[i])
				if err != nil {
					return fmt.Errorf("segment %d: %w", i, err)
				}
				if f.opts.Transform != nil {
					if data, err = f.opts.Transform(data); err != nil {
						return fmt.Errorf("segment %d: %w", i, err)
					}
				}
				parts.Set(i, data)
				n := done.Add(1)
				if progress != nil {
					progress(n, total)
				}
			}
		})
	}
	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("segment download: %w", utils.ErrCancelled)
	}
	if err != nil {
		return err
	}
	f.logf("downloaded %d segments with %d workers", len(urls), workers)
	return nil
}
