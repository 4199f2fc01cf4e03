// Package storage persists the crawled graph to SQLite. The crawler is
// the only writer and writes one transaction at a time, so no locking
// beyond the transaction boundary is needed.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by lookups when no row matches. Callers use
// it to decide whether to create the row; it is not a failure.
var ErrNotFound = errors.New("storage: not found")

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path, applies the schema and
// provisions the sentinel artist. Safe to call against an existing
// database; schema creation is idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	// Sentinel artist, created exactly once before any crawl activity.
	if _, err := s.SentinelArtistID(); errors.Is(err, ErrNotFound) {
		if _, err := s.db.Exec(`INSERT INTO artists (name) VALUES ('')`); err != nil {
			return fmt.Errorf("failed to provision sentinel artist: %w", err)
		}
	} else if err != nil {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SentinelArtistID returns the id of the reserved empty-name artist.
func (s *Store) SentinelArtistID() (int64, error) {
	return s.artistIDByName("")
}

func (s *Store) artistIDByName(name string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM artists WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up artist: %w", err)
	}
	return id, nil
}

// Users returns every committed user keyed by name.
func (s *Store) Users() (map[string]int64, error) {
	return s.nameIDMap("users")
}

// Artists returns every committed artist keyed by name, including the
// sentinel.
func (s *Store) Artists() (map[string]int64, error) {
	return s.nameIDMap("artists")
}

// Tags returns every committed tag keyed by name.
func (s *Store) Tags() (map[string]int64, error) {
	return s.nameIDMap("tags")
}

func (s *Store) nameIDMap(table string) (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT name, id FROM ` + table)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	defer rows.Close()

	m := make(map[string]int64)
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, err
		}
		m[name] = id
	}
	return m, rows.Err()
}

// FriendPairs returns every persisted friendship edge.
func (s *Store) FriendPairs() ([][2]int64, error) {
	rows, err := s.db.Query(`SELECT a, b FROM friends`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan friends: %w", err)
	}
	defer rows.Close()

	var pairs [][2]int64
	for rows.Next() {
		var a, b int64
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]int64{a, b})
	}
	return pairs, rows.Err()
}

// UserWeeks returns the set of week_from values already persisted for a
// user. The reconciler diffs this against the target week list.
func (s *Store) UserWeeks(userID int64) (map[int64]bool, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT week_from FROM weekly_artist_chart WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan chart weeks: %w", err)
	}
	defer rows.Close()

	weeks := make(map[int64]bool)
	for rows.Next() {
		var from int64
		if err := rows.Scan(&from); err != nil {
			return nil, err
		}
		weeks[from] = true
	}
	return weeks, rows.Err()
}

// UserRow mirrors one row of the users table. Age, Country and Gender
// stay NULL when the profile omitted them.
type UserRow struct {
	Name       string
	Age        sql.NullInt64
	Country    sql.NullString
	Gender     sql.NullString
	Playcount  int64
	Subscriber bool
}

// ArtistRow mirrors one row of the artists table.
type ArtistRow struct {
	Name      string
	MBID      sql.NullString
	Playcount int64
	Listeners int64
	YearFrom  sql.NullInt64
	YearTo    sql.NullInt64
}

// Tx is one crawl transaction. Every mutation of a visit goes through a
// Tx so a failed visit leaves no trace.
type Tx struct {
	tx *sql.Tx
}

func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

func (t *Tx) InsertUser(u *UserRow) (int64, error) {
	res, err := t.tx.Exec(
		`INSERT INTO users (name, age, country, gender, playcount, subscriber)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Name, u.Age, u.Country, u.Gender, u.Playcount, u.Subscriber)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user %q: %w", u.Name, err)
	}
	return res.LastInsertId()
}

func (t *Tx) InsertArtist(a *ArtistRow) (int64, error) {
	res, err := t.tx.Exec(
		`INSERT INTO artists (mbid, name, playcount, listeners, year_from, year_to)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.MBID, a.Name, a.Playcount, a.Listeners, a.YearFrom, a.YearTo)
	if err != nil {
		return 0, fmt.Errorf("failed to insert artist %q: %w", a.Name, err)
	}
	return res.LastInsertId()
}

func (t *Tx) InsertTag(name string) (int64, error) {
	res, err := t.tx.Exec(`INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to insert tag %q: %w", name, err)
	}
	return res.LastInsertId()
}

// InsertFriend stores one friendship edge. Callers pass ids in
// canonical order (a <= b).
func (t *Tx) InsertFriend(a, b int64) error {
	if _, err := t.tx.Exec(`INSERT INTO friends (a, b) VALUES (?, ?)`, a, b); err != nil {
		return fmt.Errorf("failed to insert edge (%d, %d): %w", a, b, err)
	}
	return nil
}

func (t *Tx) InsertChartRow(userID, artistID, weekFrom, playcount int64) error {
	_, err := t.tx.Exec(
		`INSERT INTO weekly_artist_chart (user_id, artist_id, week_from, playcount)
		 VALUES (?, ?, ?, ?)`,
		userID, artistID, weekFrom, playcount)
	if err != nil {
		return fmt.Errorf("failed to insert chart row (user %d, week %d): %w", userID, weekFrom, err)
	}
	return nil
}

func (t *Tx) InsertArtistTag(artistID, tagID int64) error {
	if _, err := t.tx.Exec(
		`INSERT INTO artist_tags (artist_id, tag_id) VALUES (?, ?)`, artistID, tagID); err != nil {
		return fmt.Errorf("failed to insert artist tag (%d, %d): %w", artistID, tagID, err)
	}
	return nil
}

// ArtistExists reports whether a row with this name exists, uncommitted
// writes of the transaction included. Used to verify the identity cache
// before creating an entity.
func (t *Tx) ArtistExists(name string) (bool, error) {
	return t.exists(`SELECT 1 FROM artists WHERE name = ?`, name)
}

func (t *Tx) TagExists(name string) (bool, error) {
	return t.exists(`SELECT 1 FROM tags WHERE name = ?`, name)
}

func (t *Tx) UserExists(name string) (bool, error) {
	return t.exists(`SELECT 1 FROM users WHERE name = ?`, name)
}

func (t *Tx) exists(query, name string) (bool, error) {
	var one int
	err := t.tx.QueryRow(query, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed existence check for %q: %w", name, err)
	}
	return true, nil
}
