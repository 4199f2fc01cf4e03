package storage

// Schema for the scrape database. Everything is append-only: rows are
// never updated or deleted once committed, and the composite keys make
// re-running the crawl against the same file duplicate-free.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	age INTEGER,
	country TEXT,
	gender TEXT,
	playcount INTEGER NOT NULL DEFAULT 0,
	subscriber INTEGER NOT NULL DEFAULT 0
);

-- Row with name '' is the sentinel used to mark a charted week with no
-- scrobbles; it is provisioned once when the database is created.
CREATE TABLE IF NOT EXISTS artists (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mbid TEXT,
	name TEXT UNIQUE NOT NULL,
	playcount INTEGER NOT NULL DEFAULT 0,
	listeners INTEGER NOT NULL DEFAULT 0,
	year_from INTEGER,
	year_to INTEGER
);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL
);

-- Friendship edges, stored with a <= b so each unordered pair has
-- exactly one row.
CREATE TABLE IF NOT EXISTS friends (
	a INTEGER NOT NULL REFERENCES users(id),
	b INTEGER NOT NULL REFERENCES users(id),
	PRIMARY KEY (a, b)
);

CREATE TABLE IF NOT EXISTS weekly_artist_chart (
	user_id INTEGER NOT NULL REFERENCES users(id),
	artist_id INTEGER NOT NULL REFERENCES artists(id),
	week_from INTEGER NOT NULL,
	playcount INTEGER NOT NULL,
	PRIMARY KEY (user_id, week_from, artist_id)
);
CREATE INDEX IF NOT EXISTS idx_chart_user_week ON weekly_artist_chart(user_id, week_from);

CREATE TABLE IF NOT EXISTS artist_tags (
	artist_id INTEGER NOT NULL REFERENCES artists(id),
	tag_id INTEGER NOT NULL REFERENCES tags(id),
	PRIMARY KEY (artist_id, tag_id)
);
`
