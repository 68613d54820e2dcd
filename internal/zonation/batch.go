package zonation

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zonasi/internal/facility"
	"github.com/sells-group/zonasi/internal/geo"
)

// RankMany ranks each query independently over the same read-only facility
// table. Results are returned in query order. The first error (including an
// invalid query point) cancels the remaining queries.
func (r *Ranker) RankMany(ctx context.Context, facilities []facility.Facility, queries []geo.Point, cfg Config) ([]*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	results := make([]*Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "zonation: batch cancelled")
			}
			res, err := r.Rank(facilities, q, cfg)
			if err != nil {
				return eris.Wrapf(err, "zonation: query %d", i)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
