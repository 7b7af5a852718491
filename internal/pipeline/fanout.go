package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut runs fn for every item with at most limit in flight and joins before
// returning. Output keeps input order. Under FailureAbort the first error
// cancels the rest; under FailureSkip failed items are reported to onSkip and
// left out.
func fanOut[In, Out any](
	ctx context.Context,
	items []In,
	limit int,
	policy FailurePolicy,
	fn func(ctx context.Context, item In) (Out, error),
	onSkip func(item In, err error),
) ([]Out, int, error) {
	if limit < 1 {
		limit = 1
	}

	results := make([]Out, len(items))
	ok := make([]bool, len(items))
	failed := make([]error, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			out, err := fn(gctx, item)
			if err != nil {
				if policy == FailureSkip {
					failed[i] = err
					return nil
				}
				return err
			}
			results[i] = out
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]Out, 0, len(items))
	skipped := 0
	for i := range items {
		if ok[i] {
			out = append(out, results[i])
			continue
		}
		skipped++
		if onSkip != nil {
			onSkip(items[i], failed[i])
		}
	}
	return out, skipped, nil
}
