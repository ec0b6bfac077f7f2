package feed

import "context"

// Tx is an opaque handle to a single write-or-read transaction acquired
// from a Store. Callers never inspect it; they thread it through Store
// calls so that admission's validate/idempotency-check/exposure-check/
// append/apply sequence is atomic, per spec.md §4.6.
type Tx interface {
	isTx()
}

// EventIterator streams events in ascending seq order. It is restartable:
// a fresh call to Store.Scan always starts a new iterator from the
// requested position.
type EventIterator interface {
	// Next returns the next event, or ok=false when the stream is exhausted.
	Next(ctx context.Context) (ev Event, ok bool, err error)
	// Close releases resources held by the iterator.
	Close() error
}

// ProjectionReader is the read-only half of the projection tables,
// available both inside a write transaction (admission, reducer) and from
// a separate read-only transaction (KPIs, the events/kpis CLI commands).
type ProjectionReader interface {
	// ListPosts returns every post, the full ranker candidate set per
	// spec.md §4.4 ("for this design, the full post set").
	ListPosts(ctx context.Context, tx Tx) ([]Post, error)
	GetPost(ctx context.Context, tx Tx, postID string) (Post, bool, error)
	HasVote(ctx context.Context, tx Tx, userID, postID string) (bool, error)
	HasFollow(ctx context.Context, tx Tx, followerID, followeeID string) (bool, error)
	GetTimeline(ctx context.Context, tx Tx, timelineID string) (TimelineExposure, bool, error)
	// FindActionByOpID returns the previously recorded outcome for opID,
	// used by Admission step 1 (idempotency).
	FindActionByOpID(ctx context.Context, tx Tx, opID string) (ActionPayload, bool, error)
	// CurrentTick returns the projection's current tick value.
	CurrentTick(ctx context.Context, tx Tx) (int64, error)
	// NextTimelineCounter returns max(existing timeline counter)+1,
	// recovered at startup per spec.md §4.5.
	NextTimelineCounter(ctx context.Context, tx Tx) (int64, error)
	// ListTimelineIDs returns every timeline_served id recorded so far. The
	// Postgres store orders them by tick, then by timeline id, so timelines
	// served within the same tick are not in creation order. Used by the
	// KPI engine; never consulted by admission or the reducer.
	ListTimelineIDs(ctx context.Context, tx Tx) ([]string, error)
}

// ProjectionWriter is the write half of the projection tables. Every
// method is owned exclusively by the Reducer: nothing else mutates
// projection rows, per spec.md §3.2.
type ProjectionWriter interface {
	EnsureUser(ctx context.Context, tx Tx, userID string, tick int64) error
	CreatePost(ctx context.Context, tx Tx, post Post) error
	CreateComment(ctx context.Context, tx Tx, c Comment) error
	// AddVote inserts the vote if absent; existed reports whether it was
	// already present (insert-if-absent, idempotent under replay).
	AddVote(ctx context.Context, tx Tx, v Vote) (existed bool, err error)
	// RemoveVote deletes the vote if present; existed reports whether
	// there was anything to delete.
	RemoveVote(ctx context.Context, tx Tx, userID, postID string) (existed bool, err error)
	IncrementUpVotes(ctx context.Context, tx Tx, postID string, delta int64) error
	AddFollow(ctx context.Context, tx Tx, f Follow) (existed bool, err error)
	RemoveFollow(ctx context.Context, tx Tx, followerID, followeeID string) (existed bool, err error)
	CreateTimeline(ctx context.Context, tx Tx, exposure TimelineExposure) error
	SetCurrentTick(ctx context.Context, tx Tx, tick int64) error
}

// Store is the full persistence contract: append-only event log plus the
// projection tables that are a pure function of it (spec.md §4.1).
type Store interface {
	ProjectionReader
	ProjectionWriter

	// Init creates the schema. With force=true, existing tables are
	// dropped first; without force, a pre-existing schema yields
	// AlreadyInitializedError.
	Init(ctx context.Context, force bool) error

	// WithTx acquires a transaction, invokes fn, and commits on a nil
	// return or rolls back on any error — scoped acquisition per
	// spec.md §4.1/§9.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Append assigns the next seq, persists ev within tx, and returns the
	// assigned seq. For action events, op_id is unique across the log: an
	// Append whose op_id is already present fails with ConcurrencyError
	// and does not return the existing event's seq.
	Append(ctx context.Context, tx Tx, ev Event) (int64, error)

	// Scan yields every event from fromSeq (inclusive) in ascending seq
	// order.
	Scan(ctx context.Context, fromSeq int64) (EventIterator, error)

	// TruncateProjections deletes all projection rows; it never touches
	// the event log.
	TruncateProjections(ctx context.Context, tx Tx) error

	// Close releases the store's resources (e.g. the connection pool).
	Close()
}
