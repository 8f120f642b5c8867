package platform

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/creatorpulse/discovery/internal/domain"
	"github.com/creatorpulse/discovery/internal/logger"
)

// enrichRecords runs fn for every record with bounded fan-out. Enrichment is
// best-effort: a failed secondary call leaves the record un-enriched and is
// logged, never failing the page. All calls finish before the invocation
// returns; nothing outlives it.
func enrichRecords(
	ctx context.Context,
	records []domain.CreatorRecord,
	fanout int,
	log logger.Logger,
	fn func(ctx context.Context, rec *domain.CreatorRecord) error,
) {
	if len(records) == 0 {
		return
	}
	if fanout <= 0 {
		fanout = defaultEnrichmentFanout
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanout)

	for i := range records {
		rec := &records[i]
		g.Go(func() error {
			if err := fn(gctx, rec); err != nil {
				log.Debug("profile enrichment skipped",
					logger.String("platform", rec.Platform),
					logger.String("handle", rec.Handle),
					logger.Error(err),
				)
			}
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()
}
