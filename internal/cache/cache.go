// Package cache holds in-memory lookup tables that shadow rows in the
// database. Each table keeps a committed layer and a pending layer so
// that writes made during a database transaction can be discarded if
// the transaction rolls back, keeping the cache and the store in sync.
package cache

import "sort"

// IDCache maps a natural key (username, artist name, tag text) to the
// surrogate row id assigned by the store.
type IDCache struct {
	committed map[string]int64
	pending   map[string]int64
}

func NewIDCache() *IDCache {
	return &IDCache{
		committed: make(map[string]int64),
		pending:   make(map[string]int64),
	}
}

// Load seeds the committed layer, typically from a table scan at startup.
func (c *IDCache) Load(rows map[string]int64) {
	for k, v := range rows {
		c.committed[k] = v
	}
}

// Get returns the id for key, preferring an uncommitted write. The
// second return value reports whether the key is known at all; a miss
// is not an error, callers use it to decide whether to create the row.
func (c *IDCache) Get(key string) (int64, bool) {
	if id, ok := c.pending[key]; ok {
		return id, true
	}
	id, ok := c.committed[key]
	return id, ok
}

// Put records a write made inside the current transaction. It stays
// invisible to a later Get only after Rollback.
func (c *IDCache) Put(key string, id int64) {
	c.pending[key] = id
}

// Commit merges pending writes into the committed layer. Call it only
// after the corresponding store transaction has durably committed.
func (c *IDCache) Commit() {
	for k, v := range c.pending {
		c.committed[k] = v
	}
	clear(c.pending)
}

// Rollback discards pending writes, mirroring a store rollback.
func (c *IDCache) Rollback() {
	clear(c.pending)
}

// Len reports the number of committed entries.
func (c *IDCache) Len() int {
	return len(c.committed)
}

// Keys returns the committed keys in sorted order.
func (c *IDCache) Keys() []string {
	keys := make([]string, 0, len(c.committed))
	for k := range c.committed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EdgeSet tracks which friendship edges are already recorded. Pairs are
// stored in canonical order (smaller id first) so each unordered pair
// has exactly one representation.
type EdgeSet struct {
	committed map[[2]int64]struct{}
	pending   map[[2]int64]struct{}
}

func NewEdgeSet() *EdgeSet {
	return &EdgeSet{
		committed: make(map[[2]int64]struct{}),
		pending:   make(map[[2]int64]struct{}),
	}
}

// Canonical returns the pair ordered with the smaller id first.
func Canonical(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Load seeds the committed layer from already-persisted edges.
func (s *EdgeSet) Load(pairs [][2]int64) {
	for _, p := range pairs {
		a, b := Canonical(p[0], p[1])
		s.committed[[2]int64{a, b}] = struct{}{}
	}
}

func (s *EdgeSet) Has(a, b int64) bool {
	a, b = Canonical(a, b)
	if _, ok := s.pending[[2]int64{a, b}]; ok {
		return true
	}
	_, ok := s.committed[[2]int64{a, b}]
	return ok
}

func (s *EdgeSet) Add(a, b int64) {
	a, b = Canonical(a, b)
	s.pending[[2]int64{a, b}] = struct{}{}
}

func (s *EdgeSet) Commit() {
	for p := range s.pending {
		s.committed[p] = struct{}{}
	}
	clear(s.pending)
}

func (s *EdgeSet) Rollback() {
	clear(s.pending)
}

func (s *EdgeSet) Len() int {
	return len(s.committed)
}
