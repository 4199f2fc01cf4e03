package storage_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastgraph/internal/storage"
)

func openTestStore(t *testing.T) (*storage.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lastgraph.db")
	s, err := storage.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpenProvisionsSentinelOnce(t *testing.T) {
	s, path := openTestStore(t)

	id, err := s.SentinelArtistID()
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	// Reopening must not create a second sentinel or fail on the
	// existing schema.
	require.NoError(t, s.Close())
	s2, err := storage.Open(path)
	require.NoError(t, err)
	defer s2.Close()

	id2, err := s2.SentinelArtistID()
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	artists, err := s2.Artists()
	require.NoError(t, err)
	assert.Len(t, artists, 1, "only the sentinel should exist")
}

func TestUserRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)

	tx, err := s.Begin()
	require.NoError(t, err)
	uid, err := tx.InsertUser(&storage.UserRow{
		Name:       "RJ",
		Age:        sql.NullInt64{Int64: 28, Valid: true},
		Country:    sql.NullString{String: "United Kingdom", Valid: true},
		Playcount:  123456,
		Subscriber: true,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	users, err := s.Users()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"RJ": uid}, users)
}

func TestRollbackLeavesNoRows(t *testing.T) {
	s, _ := openTestStore(t)

	tx, err := s.Begin()
	require.NoError(t, err)
	uid, err := tx.InsertUser(&storage.UserRow{Name: "ghost"})
	require.NoError(t, err)
	require.NoError(t, tx.InsertChartRow(uid, 1, 1353196800, 0))
	require.NoError(t, tx.Rollback())

	users, err := s.Users()
	require.NoError(t, err)
	assert.Empty(t, users)

	weeks, err := s.UserWeeks(uid)
	require.NoError(t, err)
	assert.Empty(t, weeks)
}

func TestExistsSeesUncommittedWrites(t *testing.T) {
	s, _ := openTestStore(t)

	tx, err := s.Begin()
	require.NoError(t, err)

	ok, err := tx.ArtistExists("Kraftwerk")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = tx.InsertArtist(&storage.ArtistRow{Name: "Kraftwerk"})
	require.NoError(t, err)

	ok, err = tx.ArtistExists("Kraftwerk")
	require.NoError(t, err)
	assert.True(t, ok, "existence check must see writes of the open transaction")

	require.NoError(t, tx.Rollback())
}

func TestFriendPairs(t *testing.T) {
	s, _ := openTestStore(t)

	tx, err := s.Begin()
	require.NoError(t, err)
	a, err := tx.InsertUser(&storage.UserRow{Name: "alice"})
	require.NoError(t, err)
	b, err := tx.InsertUser(&storage.UserRow{Name: "bob"})
	require.NoError(t, err)
	require.NoError(t, tx.InsertFriend(a, b))
	require.NoError(t, tx.Commit())

	pairs, err := s.FriendPairs()
	require.NoError(t, err)
	assert.Equal(t, [][2]int64{{a, b}}, pairs)
}

func TestDuplicateFriendRowRejected(t *testing.T) {
	s, _ := openTestStore(t)

	tx, err := s.Begin()
	require.NoError(t, err)
	a, err := tx.InsertUser(&storage.UserRow{Name: "alice"})
	require.NoError(t, err)
	b, err := tx.InsertUser(&storage.UserRow{Name: "bob"})
	require.NoError(t, err)
	require.NoError(t, tx.InsertFriend(a, b))
	assert.Error(t, tx.InsertFriend(a, b), "primary key must reject duplicate edge")
	require.NoError(t, tx.Rollback())
}

func TestUserWeeks(t *testing.T) {
	s, _ := openTestStore(t)
	sentinel, err := s.SentinelArtistID()
	require.NoError(t, err)

	tx, err := s.Begin()
	require.NoError(t, err)
	uid, err := tx.InsertUser(&storage.UserRow{Name: "RJ"})
	require.NoError(t, err)
	require.NoError(t, tx.InsertChartRow(uid, sentinel, 1353196800, 0))
	aid, err := tx.InsertArtist(&storage.ArtistRow{Name: "Kraftwerk"})
	require.NoError(t, err)
	require.NoError(t, tx.InsertChartRow(uid, aid, 1353801600, 42))
	require.NoError(t, tx.InsertChartRow(uid, sentinel, 1353801600, 0))
	require.NoError(t, tx.Commit())

	weeks, err := s.UserWeeks(uid)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1353196800: true, 1353801600: true}, weeks)
}

func TestTagsAndArtistTags(t *testing.T) {
	s, _ := openTestStore(t)

	tx, err := s.Begin()
	require.NoError(t, err)
	aid, err := tx.InsertArtist(&storage.ArtistRow{Name: "Neu!"})
	require.NoError(t, err)
	tid, err := tx.InsertTag("krautrock")
	require.NoError(t, err)
	require.NoError(t, tx.InsertArtistTag(aid, tid))
	require.NoError(t, tx.Commit())

	tags, err := s.Tags()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"krautrock": tid}, tags)
}
