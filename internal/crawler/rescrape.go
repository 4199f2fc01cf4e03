package crawler

import (
	"context"

	"github.com/rs/zerolog/log"

	"lastgraph/internal/lastfm"
	"lastgraph/internal/storage"
)

// rescrape backfills weeks missing for already-committed users. A prior
// run may have been interrupted mid-user: profile committed, some weeks
// written, crawl aborted. For each user the persisted week set is
// diffed against the target list and only the missing weeks are
// re-collected, skipping the profile and friend steps. Running it again
// with an unchanged target list performs zero writes.
func (c *Crawler) rescrape(ctx context.Context) error {
	names := c.users.Keys()
	if len(names) == 0 {
		return nil
	}
	log.Info().Int("users", len(names)).Msg("Reconciling previous runs")

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		uid, _ := c.users.Get(name)

		have, err := c.store.UserWeeks(uid)
		if err != nil {
			return err
		}
		var missing []lastfm.WeekRange
		for _, w := range c.weeks {
			if !have[w.From] {
				missing = append(missing, w)
			}
		}
		if len(missing) == 0 {
			continue
		}

		log.Info().Str("user", name).Int("weeks", len(missing)).Msg("Backfilling missing weeks")
		err = c.runVisit(ctx, func(tx *storage.Tx) error {
			return c.scrapeWeeks(ctx, tx, name, uid, missing)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
