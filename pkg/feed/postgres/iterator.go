package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"

	"github.com/rodolfodpk/feedsim/pkg/feed"
)

// rowIterator streams events out of pgx.Rows in ascending seq order. Each
// call to Store.Scan opens a fresh query, so the iterator is inherently
// restartable from any fromSeq.
type rowIterator struct {
	rows pgx.Rows
}

func (it *rowIterator) Next(ctx context.Context) (feed.Event, bool, error) {
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return feed.Event{}, false, newStoreError("scan", err)
		}
		return feed.Event{}, false, nil
	}

	var (
		seq     int64
		tick    int64
		kind    string
		payload []byte
		opID    sql.NullString
	)
	if err := it.rows.Scan(&seq, &tick, &kind, &payload, &opID); err != nil {
		return feed.Event{}, false, newStoreError("scan", err)
	}

	ev := feed.Event{
		Seq:     seq,
		Tick:    tick,
		Kind:    feed.Kind(kind),
		Payload: payload,
	}
	if opID.Valid {
		ev.OpID = opID.String
	}
	return ev, true, nil
}

func (it *rowIterator) Close() error {
	it.rows.Close()
	return nil
}
