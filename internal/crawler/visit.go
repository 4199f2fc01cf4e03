package crawler

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"lastgraph/internal/cache"
	"lastgraph/internal/lastfm"
	"lastgraph/internal/storage"
)

// visit is the atomic unit of work for one user: profile, optionally
// friendship edges, then every target week's chart. All of it commits
// together or none of it does, leaving the user eligible for a retry.
func (c *Crawler) visit(ctx context.Context, name string) error {
	log.Debug().Str("user", name).Msg("Visiting user")
	return c.runVisit(ctx, func(tx *storage.Tx) error {
		uid, err := c.resolveUser(ctx, tx, name)
		if err != nil {
			return err
		}
		if c.cfg.Connect {
			if err := c.recordEdges(ctx, tx, name, uid); err != nil {
				return err
			}
		}
		return c.scrapeWeeks(ctx, tx, name, uid, c.weeks)
	})
}

// resolveUser returns the surrogate id for name, fetching the profile
// and inserting the row on first sight.
func (c *Crawler) resolveUser(ctx context.Context, tx *storage.Tx, name string) (int64, error) {
	if id, ok := c.users.Get(name); ok {
		return id, nil
	}
	exists, err := tx.UserExists(name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: user %q has a row but no cache entry", ErrConsistency, name)
	}

	profile, err := c.client.UserInfo(ctx, name)
	if err != nil {
		return 0, err
	}
	id, err := tx.InsertUser(userRow(name, profile))
	if err != nil {
		return 0, err
	}
	c.users.Put(name, id)
	log.Debug().Str("user", name).Int64("id", id).Msg("Created user")
	return id, nil
}

// userRow maps a fetched profile onto a users row, leaving optional
// fields NULL when the profile omitted them.
func userRow(name string, u *lastfm.User) *storage.UserRow {
	row := &storage.UserRow{
		Name:       name,
		Playcount:  u.Playcount,
		Subscriber: u.Subscriber,
	}
	if u.Age > 0 {
		row.Age = sql.NullInt64{Int64: int64(u.Age), Valid: true}
	}
	if u.Country != "" {
		row.Country = sql.NullString{String: u.Country, Valid: true}
	}
	if u.Gender != "" {
		row.Gender = sql.NullString{String: u.Gender, Valid: true}
	}
	return row
}

// recordEdges inserts one canonical edge per neighbour that is already
// a committed or in-flight user. Unknown neighbours are left for the
// frontier to discover.
func (c *Crawler) recordEdges(ctx context.Context, tx *storage.Tx, name string, uid int64) error {
	friends, err := c.client.Friends(ctx, name, c.cfg.MaxFriends)
	if err != nil {
		return err
	}
	for _, f := range friends {
		fid, ok := c.users.Get(f)
		if !ok {
			continue
		}
		if c.edges.Has(uid, fid) {
			continue
		}
		a, b := cache.Canonical(uid, fid)
		if err := tx.InsertFriend(a, b); err != nil {
			return err
		}
		c.edges.Add(a, b)
		log.Debug().Int64("a", a).Int64("b", b).Msg("Connected users")
	}
	return nil
}

// scrapeWeeks fetches and stores the chart for each given week. A week
// with no scrobbles gets exactly one sentinel row with playcount 0 so
// the reconciler can tell "collected and empty" from "never collected".
func (c *Crawler) scrapeWeeks(ctx context.Context, tx *storage.Tx, name string, uid int64, weeks []lastfm.WeekRange) error {
	for _, week := range weeks {
		entries, err := c.client.WeeklyArtistChart(ctx, name, week.From, week.To)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			if err := tx.InsertChartRow(uid, c.sentinel, week.From, 0); err != nil {
				return err
			}
			continue
		}
		for _, entry := range entries {
			aid, err := c.resolveArtist(ctx, tx, entry.Artist)
			if err != nil {
				return err
			}
			if err := tx.InsertChartRow(uid, aid, week.From, entry.Playcount); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveArtist returns the surrogate id for an artist, enriching new
// artists with their profile and tags. Tag collection always runs as
// part of first-sight enrichment.
func (c *Crawler) resolveArtist(ctx context.Context, tx *storage.Tx, name string) (int64, error) {
	if id, ok := c.artists.Get(name); ok {
		return id, nil
	}
	exists, err := tx.ArtistExists(name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: artist %q has a row but no cache entry", ErrConsistency, name)
	}

	info, err := c.client.ArtistInfo(ctx, name)
	if err != nil {
		return 0, err
	}
	id, err := tx.InsertArtist(artistRow(name, info))
	if err != nil {
		return 0, err
	}
	c.artists.Put(name, id)
	log.Debug().Str("artist", name).Int64("id", id).Msg("Created artist")

	seen := make(map[string]bool, len(info.Tags))
	for _, tag := range info.Tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tid, err := c.resolveTag(tx, tag)
		if err != nil {
			return 0, err
		}
		if err := tx.InsertArtistTag(id, tid); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func artistRow(name string, a *lastfm.Artist) *storage.ArtistRow {
	row := &storage.ArtistRow{
		Name:      name,
		Playcount: a.Playcount,
		Listeners: a.Listeners,
	}
	if a.MBID != "" {
		row.MBID = sql.NullString{String: a.MBID, Valid: true}
	}
	if a.YearFrom > 0 {
		row.YearFrom = sql.NullInt64{Int64: int64(a.YearFrom), Valid: true}
	}
	if a.YearTo > 0 {
		row.YearTo = sql.NullInt64{Int64: int64(a.YearTo), Valid: true}
	}
	return row
}

// resolveTag returns the surrogate id for a tag, creating it lazily on
// first reference.
func (c *Crawler) resolveTag(tx *storage.Tx, name string) (int64, error) {
	if id, ok := c.tags.Get(name); ok {
		return id, nil
	}
	exists, err := tx.TagExists(name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: tag %q has a row but no cache entry", ErrConsistency, name)
	}
	id, err := tx.InsertTag(name)
	if err != nil {
		return 0, err
	}
	c.tags.Put(name, id)
	return id, nil
}
