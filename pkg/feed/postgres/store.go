// Package postgres implements feed.Store against PostgreSQL via pgx,
// grounded on the teacher's pgxpool-backed event store (transaction per
// operation, explicit rollback-by-default, batched item inserts via
// pgx.Batch).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rodolfodpk/feedsim/pkg/feed"
)

const uniqueViolation = "23505"

// Store implements feed.Store against a pgxpool connection pool.
type Store struct {
	pool    *pgxpool.Pool
	metrics *feed.Metrics
}

// Open builds a Store from a DSN, pinging the pool with a bounded timeout
// before returning — matching the teacher's NewEventStore connectivity
// check in pkg/dcb/store_implementation.go.
func Open(ctx context.Context, dsn string, metrics *feed.Metrics) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, newStoreError("open", fmt.Errorf("parse config: %w", err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, newStoreError("open", fmt.Errorf("unable to connect: %w", err))
	}

	return &Store{pool: pool, metrics: metrics}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Init creates the schema, dropping existing tables first if force is set.
func (s *Store) Init(ctx context.Context, force bool) error {
	if !force {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM information_schema.tables WHERE table_name = 'events'
		)`).Scan(&exists)
		if err != nil {
			return newStoreError("init", err)
		}
		if exists {
			return newAlreadyInitialized("init")
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return newStoreError("init", err)
	}
	defer tx.Rollback(ctx)

	if force {
		for _, stmt := range dropStatements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return newStoreError("init", fmt.Errorf("drop: %w", err))
			}
		}
	}
	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return newStoreError("init", fmt.Errorf("create: %w", err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return newStoreError("init", err)
	}
	return nil
}

// WithTx acquires a SERIALIZABLE transaction, invokes fn, and commits on a
// nil return or rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx feed.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return newStoreError("with_tx", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return newStoreError("with_tx", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Append assigns the next seq and persists ev inside tx. For action
// events, the events.op_id UNIQUE constraint is the atomic
// insert-or-conflict guard; a conflicting insert surfaces as a
// ConcurrencyError rather than silently returning a stale seq, since
// Admission's own idempotency check (FindActionByOpID) is expected to have
// already short-circuited the normal path before Append is ever called
// with a duplicate op_id.
func (s *Store) Append(ctx context.Context, tx feed.Tx, ev feed.Event) (int64, error) {
	if !feed.ValidKind(ev.Kind) {
		return 0, newValidationError("append", "kind", string(ev.Kind), fmt.Errorf("unknown event kind"))
	}

	pgxTx := unwrap(tx)
	start := time.Now()

	var opID any
	if ev.OpID != "" {
		opID = ev.OpID
	}

	var seq int64
	err := pgxTx.QueryRow(ctx,
		`INSERT INTO events (tick, kind, payload, op_id) VALUES ($1, $2, $3, $4) RETURNING seq`,
		ev.Tick, string(ev.Kind), ev.Payload, opID,
	).Scan(&seq)

	if s.metrics != nil {
		s.metrics.AppendDuration.WithLabelValues(string(ev.Kind)).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if isUniqueViolation(err) {
			return 0, newConcurrencyError("append", fmt.Errorf("duplicate op_id %q: %w", ev.OpID, err))
		}
		return 0, newStoreError("append", err)
	}

	if s.metrics != nil {
		s.metrics.AppendTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
	return seq, nil
}

// Scan yields events from fromSeq (inclusive) in ascending seq order.
func (s *Store) Scan(ctx context.Context, fromSeq int64) (feed.EventIterator, error) {
	if s.metrics != nil {
		s.metrics.ScanTotal.Inc()
	}
	rows, err := s.pool.Query(ctx,
		`SELECT seq, tick, kind, payload, op_id FROM events WHERE seq >= $1 ORDER BY seq ASC`,
		fromSeq,
	)
	if err != nil {
		return nil, newStoreError("scan", err)
	}
	return &rowIterator{rows: rows}, nil
}

// TruncateProjections deletes all projection rows without touching events.
func (s *Store) TruncateProjections(ctx context.Context, tx feed.Tx) error {
	pgxTx := unwrap(tx)
	for _, stmt := range truncateStatements {
		if _, err := pgxTx.Exec(ctx, stmt); err != nil {
			return newStoreError("truncate_projections", err)
		}
	}
	return nil
}

// CurrentTick returns the projection's current tick.
func (s *Store) CurrentTick(ctx context.Context, tx feed.Tx) (int64, error) {
	var tick int64
	err := unwrap(tx).QueryRow(ctx, `SELECT current_tick FROM sim_meta WHERE id = 1`).Scan(&tick)
	if err != nil {
		return 0, newStoreError("current_tick", err)
	}
	return tick, nil
}

// SetCurrentTick overwrites the projection's current tick.
func (s *Store) SetCurrentTick(ctx context.Context, tx feed.Tx, tick int64) error {
	_, err := unwrap(tx).Exec(ctx, `UPDATE sim_meta SET current_tick = $1 WHERE id = 1`, tick)
	if err != nil {
		return newStoreError("set_current_tick", err)
	}
	return nil
}

// NextTimelineCounter recovers the next timeline ordinal from the count of
// timelines already projected, so it is correct immediately after replay.
func (s *Store) NextTimelineCounter(ctx context.Context, tx feed.Tx) (int64, error) {
	var count int64
	err := unwrap(tx).QueryRow(ctx, `SELECT COUNT(*) FROM timelines`).Scan(&count)
	if err != nil {
		return 0, newStoreError("next_timeline_counter", err)
	}
	return count, nil
}

// EnsureUser creates the user row if absent.
func (s *Store) EnsureUser(ctx context.Context, tx feed.Tx, userID string, tick int64) error {
	_, err := unwrap(tx).Exec(ctx,
		`INSERT INTO users (user_id, created_tick) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, tick,
	)
	if err != nil {
		return newStoreError("ensure_user", err)
	}
	return nil
}

// ListPosts returns the full post set, the ranker's candidate pool.
func (s *Store) ListPosts(ctx context.Context, tx feed.Tx) ([]feed.Post, error) {
	rows, err := unwrap(tx).Query(ctx, `SELECT post_id, author_id, body, created_tick, up_votes FROM posts`)
	if err != nil {
		return nil, newStoreError("list_posts", err)
	}
	defer rows.Close()

	var posts []feed.Post
	for rows.Next() {
		var p feed.Post
		if err := rows.Scan(&p.PostID, &p.AuthorID, &p.Body, &p.CreatedTick, &p.UpVotes); err != nil {
			return nil, newStoreError("list_posts", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError("list_posts", err)
	}
	return posts, nil
}

// GetPost fetches one post by id.
func (s *Store) GetPost(ctx context.Context, tx feed.Tx, postID string) (feed.Post, bool, error) {
	var p feed.Post
	err := unwrap(tx).QueryRow(ctx,
		`SELECT post_id, author_id, body, created_tick, up_votes FROM posts WHERE post_id = $1`, postID,
	).Scan(&p.PostID, &p.AuthorID, &p.Body, &p.CreatedTick, &p.UpVotes)
	if err == pgx.ErrNoRows {
		return feed.Post{}, false, nil
	}
	if err != nil {
		return feed.Post{}, false, newStoreError("get_post", err)
	}
	return p, true, nil
}

// CreatePost inserts post if its id is not already present (idempotent
// under replay, since post ids are derived deterministically from op_id).
func (s *Store) CreatePost(ctx context.Context, tx feed.Tx, post feed.Post) error {
	_, err := unwrap(tx).Exec(ctx,
		`INSERT INTO posts (post_id, author_id, body, created_tick, up_votes)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (post_id) DO NOTHING`,
		post.PostID, post.AuthorID, post.Body, post.CreatedTick, post.UpVotes,
	)
	if err != nil {
		return newStoreError("create_post", err)
	}
	return nil
}

// CreateComment inserts c if its id is not already present.
func (s *Store) CreateComment(ctx context.Context, tx feed.Tx, c feed.Comment) error {
	_, err := unwrap(tx).Exec(ctx,
		`INSERT INTO comments (comment_id, post_id, author_id, body, created_tick)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (comment_id) DO NOTHING`,
		c.CommentID, c.PostID, c.AuthorID, c.Body, c.CreatedTick,
	)
	if err != nil {
		return newStoreError("create_comment", err)
	}
	return nil
}

// HasVote reports whether userID has an existing vote on postID.
func (s *Store) HasVote(ctx context.Context, tx feed.Tx, userID, postID string) (bool, error) {
	var exists bool
	err := unwrap(tx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM votes WHERE user_id = $1 AND post_id = $2)`, userID, postID,
	).Scan(&exists)
	if err != nil {
		return false, newStoreError("has_vote", err)
	}
	return exists, nil
}

// AddVote inserts v if absent; existed reports whether it was already present.
func (s *Store) AddVote(ctx context.Context, tx feed.Tx, v feed.Vote) (bool, error) {
	tag, err := unwrap(tx).Exec(ctx,
		`INSERT INTO votes (user_id, post_id, tick) VALUES ($1, $2, $3) ON CONFLICT (user_id, post_id) DO NOTHING`,
		v.UserID, v.PostID, v.Tick,
	)
	if err != nil {
		return false, newStoreError("add_vote", err)
	}
	return tag.RowsAffected() == 0, nil
}

// RemoveVote deletes the (user, post) vote if present; existed reports
// whether there was anything to delete.
func (s *Store) RemoveVote(ctx context.Context, tx feed.Tx, userID, postID string) (bool, error) {
	tag, err := unwrap(tx).Exec(ctx, `DELETE FROM votes WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return false, newStoreError("remove_vote", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementUpVotes adjusts posts.up_votes by delta, clamped at zero.
func (s *Store) IncrementUpVotes(ctx context.Context, tx feed.Tx, postID string, delta int64) error {
	_, err := unwrap(tx).Exec(ctx,
		`UPDATE posts SET up_votes = GREATEST(up_votes + $2, 0) WHERE post_id = $1`, postID, delta,
	)
	if err != nil {
		return newStoreError("increment_up_votes", err)
	}
	return nil
}

// HasFollow reports whether the (follower, followee) edge exists.
func (s *Store) HasFollow(ctx context.Context, tx feed.Tx, followerID, followeeID string) (bool, error) {
	var exists bool
	err := unwrap(tx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)`,
		followerID, followeeID,
	).Scan(&exists)
	if err != nil {
		return false, newStoreError("has_follow", err)
	}
	return exists, nil
}

// AddFollow inserts the edge if absent.
func (s *Store) AddFollow(ctx context.Context, tx feed.Tx, f feed.Follow) (bool, error) {
	tag, err := unwrap(tx).Exec(ctx,
		`INSERT INTO follows (follower_id, followee_id, tick) VALUES ($1, $2, $3)
		 ON CONFLICT (follower_id, followee_id) DO NOTHING`,
		f.FollowerID, f.FolloweeID, f.Tick,
	)
	if err != nil {
		return false, newStoreError("add_follow", err)
	}
	return tag.RowsAffected() == 0, nil
}

// RemoveFollow deletes the edge if present.
func (s *Store) RemoveFollow(ctx context.Context, tx feed.Tx, followerID, followeeID string) (bool, error) {
	tag, err := unwrap(tx).Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID,
	)
	if err != nil {
		return false, newStoreError("remove_follow", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CreateTimeline inserts the timeline row, then every item row in one batch.
func (s *Store) CreateTimeline(ctx context.Context, tx feed.Tx, exposure feed.TimelineExposure) error {
	pgxTx := unwrap(tx)
	_, err := pgxTx.Exec(ctx,
		`INSERT INTO timelines (timeline_id, user_id, tick, algorithm, k, seed, ranking_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (timeline_id) DO NOTHING`,
		exposure.TimelineID, exposure.UserID, exposure.Tick, string(exposure.Algorithm),
		exposure.K, exposure.Seed, exposure.RankingVersion,
	)
	if err != nil {
		return newStoreError("create_timeline", err)
	}

	if len(exposure.Items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, item := range exposure.Items {
		featuresBlob, err := json.Marshal(item.Features)
		if err != nil {
			return newStoreError("create_timeline", fmt.Errorf("marshal features: %w", err))
		}
		batch.Queue(
			`INSERT INTO timeline_items (timeline_id, position, post_id, score, features_blob)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (timeline_id, position) DO NOTHING`,
			exposure.TimelineID, item.Position, item.PostID, item.Score, featuresBlob,
		)
	}
	br := pgxTx.SendBatch(ctx, batch)
	defer br.Close()
	for range exposure.Items {
		if _, err := br.Exec(); err != nil {
			return newStoreError("create_timeline", fmt.Errorf("insert item: %w", err))
		}
	}
	return nil
}

// GetTimeline fetches a timeline_served exposure and its items by id.
func (s *Store) GetTimeline(ctx context.Context, tx feed.Tx, timelineID string) (feed.TimelineExposure, bool, error) {
	pgxTx := unwrap(tx)

	var exposure feed.TimelineExposure
	var algorithm string
	err := pgxTx.QueryRow(ctx,
		`SELECT timeline_id, user_id, tick, algorithm, k, seed, ranking_version
		 FROM timelines WHERE timeline_id = $1`, timelineID,
	).Scan(&exposure.TimelineID, &exposure.UserID, &exposure.Tick, &algorithm, &exposure.K, &exposure.Seed, &exposure.RankingVersion)
	if err == pgx.ErrNoRows {
		return feed.TimelineExposure{}, false, nil
	}
	if err != nil {
		return feed.TimelineExposure{}, false, newStoreError("get_timeline", err)
	}
	exposure.Algorithm = feed.Algorithm(algorithm)

	rows, err := pgxTx.Query(ctx,
		`SELECT position, post_id, score, features_blob FROM timeline_items WHERE timeline_id = $1 ORDER BY position ASC`,
		timelineID,
	)
	if err != nil {
		return feed.TimelineExposure{}, false, newStoreError("get_timeline", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item feed.TimelineItemRow
		var featuresBlob []byte
		if err := rows.Scan(&item.Position, &item.PostID, &item.Score, &featuresBlob); err != nil {
			return feed.TimelineExposure{}, false, newStoreError("get_timeline", err)
		}
		if err := json.Unmarshal(featuresBlob, &item.Features); err != nil {
			return feed.TimelineExposure{}, false, newStoreError("get_timeline", err)
		}
		item.TimelineID = timelineID
		exposure.Items = append(exposure.Items, item)
	}
	if err := rows.Err(); err != nil {
		return feed.TimelineExposure{}, false, newStoreError("get_timeline", err)
	}
	return exposure, true, nil
}

// ListTimelineIDs returns every recorded timeline id, oldest first.
func (s *Store) ListTimelineIDs(ctx context.Context, tx feed.Tx) ([]string, error) {
	rows, err := unwrap(tx).Query(ctx, `SELECT timeline_id FROM timelines ORDER BY tick ASC, timeline_id ASC`)
	if err != nil {
		return nil, newStoreError("list_timeline_ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, newStoreError("list_timeline_ids", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError("list_timeline_ids", err)
	}
	return ids, nil
}

// FindActionByOpID looks up the recorded action event for opID, decoding
// its payload. This is the storage side of Admission's idempotency check.
func (s *Store) FindActionByOpID(ctx context.Context, tx feed.Tx, opID string) (feed.ActionPayload, bool, error) {
	var payload []byte
	err := unwrap(tx).QueryRow(ctx,
		`SELECT payload FROM events WHERE kind = $1 AND op_id = $2`, string(feed.KindAction), opID,
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return feed.ActionPayload{}, false, nil
	}
	if err != nil {
		return feed.ActionPayload{}, false, newStoreError("find_action_by_op_id", err)
	}
	p, err := feed.DecodeAction(payload)
	if err != nil {
		return feed.ActionPayload{}, false, newStoreError("find_action_by_op_id", err)
	}
	return p, true, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), e.g. a racing duplicate op_id.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
