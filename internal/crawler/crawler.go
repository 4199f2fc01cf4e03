// Package crawler implements the crawl-and-reconcile engine: a random
// walk over the Last.fm friendship graph that persists every visited
// user atomically and backfills weeks missed by interrupted runs.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/rs/zerolog/log"

	"lastgraph/internal/cache"
	"lastgraph/internal/lastfm"
	"lastgraph/internal/storage"
)

// ErrFrontierExhausted is fatal: the walk ran out of candidates before
// reaching the user limit, e.g. when the seed user is isolated.
var ErrFrontierExhausted = errors.New("frontier exhausted")

// ErrConsistency marks an internal invariant violation, such as a row
// existing in the store for a name the identity cache considers new.
// Never retried.
var ErrConsistency = errors.New("identity cache out of sync with store")

// Maximum number of friend names added to the queue per refill.
const refillSample = 10

// Config fully enumerates the crawl parameters. Zero fields fall back
// to defaults in New.
type Config struct {
	// Seed is the username the walk starts from on a fresh database.
	Seed string
	// Limit stops the run once this many users are committed.
	Limit int
	// DateFormat is a Go time layout applied to week starts; weeks
	// whose formatted start equals DateMatch are collected.
	DateFormat string
	DateMatch  string
	// Connect enables recording of friendship edges during visits.
	Connect bool
	// MaxFriends caps how many friends are requested per user.
	MaxFriends int
	// MaxErrors is the remote-failure budget for the whole run.
	MaxErrors int
	// RandSeed seeds the walk's RNG, making runs reproducible.
	RandSeed int64
}

type Crawler struct {
	cfg    Config
	client lastfm.Client
	store  *storage.Store

	users   *cache.IDCache
	artists *cache.IDCache
	tags    *cache.IDCache
	edges   *cache.EdgeSet

	budget   *errorBudget
	rng      *rand.Rand
	sentinel int64

	// weeks is the target week list, fixed for the run.
	weeks []lastfm.WeekRange
	// queue holds discovered-but-unvisited usernames.
	queue []string
}

// New builds a crawler over an opened store, seeding the identity
// caches from the committed rows so a restarted process resumes where
// it left off.
func New(client lastfm.Client, store *storage.Store, cfg Config) (*Crawler, error) {
	if cfg.Seed == "" {
		cfg.Seed = "RJ"
	}
	if cfg.Limit == 0 {
		cfg.Limit = 100
	}
	if cfg.MaxFriends == 0 {
		cfg.MaxFriends = 500
	}
	if cfg.MaxErrors == 0 {
		cfg.MaxErrors = 100
	}
	if cfg.RandSeed == 0 {
		cfg.RandSeed = 666
	}

	c := &Crawler{
		cfg:     cfg,
		client:  client,
		store:   store,
		users:   cache.NewIDCache(),
		artists: cache.NewIDCache(),
		tags:    cache.NewIDCache(),
		edges:   cache.NewEdgeSet(),
		budget:  &errorBudget{limit: cfg.MaxErrors},
		rng:     rand.New(rand.NewSource(cfg.RandSeed)),
	}

	users, err := store.Users()
	if err != nil {
		return nil, err
	}
	c.users.Load(users)

	artists, err := store.Artists()
	if err != nil {
		return nil, err
	}
	c.artists.Load(artists)

	tags, err := store.Tags()
	if err != nil {
		return nil, err
	}
	c.tags.Load(tags)

	pairs, err := store.FriendPairs()
	if err != nil {
		return nil, err
	}
	c.edges.Load(pairs)

	c.sentinel, err = store.SentinelArtistID()
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("users", c.users.Len()).
		Int("artists", c.artists.Len()).
		Int("edges", c.edges.Len()).
		Msg("Caches loaded from store")
	return c, nil
}

// Run executes one crawl: compute the target week list from the seed
// user's chart calendar, reconcile users left incomplete by earlier
// runs, then walk the graph until the user limit is reached.
func (c *Crawler) Run(ctx context.Context) error {
	calendar, err := c.client.WeeklyChartList(ctx, c.cfg.Seed)
	if err != nil {
		return fmt.Errorf("failed to fetch chart calendar: %w", err)
	}
	c.weeks = SelectWeeks(c.cfg.DateFormat, c.cfg.DateMatch, calendar)
	log.Info().
		Int("weeks", len(c.weeks)).
		Str("match", c.cfg.DateMatch).
		Msg("Target weeks selected")

	if err := c.rescrape(ctx); err != nil {
		return err
	}
	return c.walk(ctx)
}

// walk is the discovery loop: pop a candidate, visit it, refill the
// queue from a random visited user's friends when it drains.
func (c *Crawler) walk(ctx context.Context) error {
	// tried tracks visited users whose friends yielded no candidate
	// since the frontier last grew. Once it covers every visited user
	// the candidate pool can no longer grow.
	tried := make(map[string]bool)
	for c.users.Len() < c.cfg.Limit {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(c.queue) == 0 {
			if c.users.Len() == 0 {
				// Nothing committed yet, so the seed is the only
				// possible candidate.
				c.queue = []string{c.cfg.Seed}
			} else {
				from, added, fetched, err := c.refill(ctx)
				if err != nil {
					return err
				}
				if !fetched {
					// A budgeted fetch failure proves nothing about
					// the candidate pool.
					continue
				}
				if added == 0 {
					tried[from] = true
					if len(tried) >= c.users.Len() {
						return fmt.Errorf("%w: %d users visited, no eligible candidates left",
							ErrFrontierExhausted, c.users.Len())
					}
					continue
				}
				clear(tried)
			}
		}

		name := c.queue[0]
		c.queue = c.queue[1:]
		if _, ok := c.users.Get(name); ok {
			// Sampled neighbour was visited in the meantime.
			continue
		}

		if err := c.visit(ctx, name); err != nil {
			return err
		}
	}

	log.Info().Int("users", c.users.Len()).Msg("User limit reached")
	return nil
}

// refill repopulates the queue with a bounded random sample of the
// friends of a uniformly chosen visited user. Returns whose friends
// were sampled, how many names were added and whether the friend list
// was actually fetched; a remote failure counts against the budget,
// adds none, and reports fetched false so the caller cannot mistake
// it for a proven-empty neighbourhood.
func (c *Crawler) refill(ctx context.Context) (string, int, bool, error) {
	names := c.users.Keys()
	from := names[c.rng.Intn(len(names))]

	friends, err := c.client.Friends(ctx, from, c.cfg.MaxFriends)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return from, 0, false, ctxErr
		}
		return from, 0, false, c.budget.observe(err)
	}

	c.rng.Shuffle(len(friends), func(i, j int) {
		friends[i], friends[j] = friends[j], friends[i]
	})

	added := 0
	for _, f := range friends {
		if added == refillSample {
			break
		}
		if _, ok := c.users.Get(f); ok {
			continue
		}
		if slices.Contains(c.queue, f) {
			continue
		}
		c.queue = append(c.queue, f)
		added++
	}
	log.Debug().Str("from", from).Int("added", added).Msg("Frontier refilled")
	return from, added, true, nil
}

// runVisit runs one unit of work inside a store transaction and keeps
// the identity caches in lockstep: the caches commit immediately after
// the store commits and roll back whenever it rolls back. Remote
// failures are routed through the error budget; everything else is
// fatal.
func (c *Crawler) runVisit(ctx context.Context, fn func(tx *storage.Tx) error) error {
	tx, err := c.store.Begin()
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Rollback failed")
		}
		c.rollbackCaches()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if lastfm.IsRemote(err) {
			return c.budget.observe(err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		c.rollbackCaches()
		return fmt.Errorf("failed to commit visit: %w", err)
	}
	c.commitCaches()
	return nil
}

func (c *Crawler) commitCaches() {
	c.users.Commit()
	c.artists.Commit()
	c.tags.Commit()
	c.edges.Commit()
}

func (c *Crawler) rollbackCaches() {
	c.users.Rollback()
	c.artists.Rollback()
	c.tags.Rollback()
	c.edges.Rollback()
}
