package collectors

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/logging"
)

const defaultWorkers = 5

// Page is one page of a paginated listing. Last is set when the venue
// reports no further pages.
type Page[T any] struct {
	Items []T
	Last  bool
}

// PageFunc fetches the zero-based page index.
type PageFunc[T any] func(ctx context.Context, page int) (Page[T], error)

// FetchPages walks a paginated listing in waves of opts.Workers concurrent
// requests. Results are merged in page order after each wave. A failed page
// is logged and skipped; the walk stops at the first last or empty page, at
// opts.MaxPages, or when every page of a wave fails. An error is returned
// only when nothing at all could be fetched.
func FetchPages[T any](ctx context.Context, name string, opts FetchOptions, fetch PageFunc[T]) ([]T, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	type result struct {
		page Page[T]
		err  error
	}

	var out []T
	fetched := 0
	for start := 0; ; start += workers {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		width := workers
		if opts.MaxPages > 0 {
			width = min(width, opts.MaxPages-start)
		}
		if width <= 0 {
			return out, nil
		}

		results := make([]result, width)
		var g errgroup.Group
		g.SetLimit(workers)
		for i := 0; i < width; i++ {
			idx := start + i
			g.Go(func() error {
				p, err := fetch(ctx, idx)
				results[idx-start] = result{page: p, err: err}
				return nil
			})
		}
		_ = g.Wait()

		failed := 0
		var firstErr error
		for i, r := range results {
			if r.err != nil {
				failed++
				if firstErr == nil {
					firstErr = r.err
				}
				logging.Warnf("[%s] skip page %d: %v", name, start+i, r.err)
				continue
			}
			fetched++
			out = append(out, r.page.Items...)
			if r.page.Last || len(r.page.Items) == 0 {
				return out, nil
			}
		}
		if failed == width {
			if fetched == 0 {
				return nil, fmt.Errorf("%s: no page could be fetched: %w", name, firstErr)
			}
			logging.Warnf("[%s] whole wave at page %d failed, stopping with %d items", name, start, len(out))
			return out, nil
		}
	}
}
