package postgres

// schemaStatements creates the event log and every projection table from
// spec.md §6.1. Foreign keys enforce that projection rows can never
// reference an entity the reducer has not itself created.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		seq        BIGSERIAL PRIMARY KEY,
		tick       BIGINT NOT NULL,
		kind       TEXT NOT NULL,
		payload    JSONB NOT NULL,
		op_id      TEXT UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS sim_meta (
		id           SMALLINT PRIMARY KEY DEFAULT 1,
		current_tick BIGINT NOT NULL DEFAULT 0,
		CHECK (id = 1)
	)`,
	`INSERT INTO sim_meta (id, current_tick) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id      TEXT PRIMARY KEY,
		created_tick BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		post_id      TEXT PRIMARY KEY,
		author_id    TEXT NOT NULL REFERENCES users(user_id),
		body         TEXT NOT NULL,
		created_tick BIGINT NOT NULL,
		up_votes     BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		comment_id   TEXT PRIMARY KEY,
		post_id      TEXT NOT NULL REFERENCES posts(post_id),
		author_id    TEXT NOT NULL REFERENCES users(user_id),
		body         TEXT NOT NULL,
		created_tick BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS votes (
		user_id TEXT NOT NULL REFERENCES users(user_id),
		post_id TEXT NOT NULL REFERENCES posts(post_id),
		tick    BIGINT NOT NULL,
		PRIMARY KEY (user_id, post_id)
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL REFERENCES users(user_id),
		followee_id TEXT NOT NULL REFERENCES users(user_id),
		tick        BIGINT NOT NULL,
		PRIMARY KEY (follower_id, followee_id)
	)`,
	`CREATE TABLE IF NOT EXISTS timelines (
		timeline_id     TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL REFERENCES users(user_id),
		tick            BIGINT NOT NULL,
		algorithm       TEXT NOT NULL,
		k               INT NOT NULL,
		seed            BIGINT NOT NULL,
		ranking_version INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS timeline_items (
		timeline_id   TEXT NOT NULL REFERENCES timelines(timeline_id),
		position      INT NOT NULL,
		post_id       TEXT NOT NULL REFERENCES posts(post_id),
		score         DOUBLE PRECISION NOT NULL,
		features_blob JSONB NOT NULL,
		PRIMARY KEY (timeline_id, position)
	)`,
}

// dropStatements tears down every table above, children first, so force
// re-init always starts from a clean slate.
var dropStatements = []string{
	`DROP TABLE IF EXISTS timeline_items`,
	`DROP TABLE IF EXISTS timelines`,
	`DROP TABLE IF EXISTS follows`,
	`DROP TABLE IF EXISTS votes`,
	`DROP TABLE IF EXISTS comments`,
	`DROP TABLE IF EXISTS posts`,
	`DROP TABLE IF EXISTS users`,
	`DROP TABLE IF EXISTS sim_meta`,
	`DROP TABLE IF EXISTS events`,
}

// truncateStatements clears every projection table but leaves events
// untouched, per Store.TruncateProjections's contract.
var truncateStatements = []string{
	`TRUNCATE TABLE timeline_items, timelines, follows, votes, comments, posts, users CASCADE`,
	`UPDATE sim_meta SET current_tick = 0 WHERE id = 1`,
}
