package postgres

import (
	"github.com/jackc/pgx/v5"

	"github.com/rodolfodpk/feedsim/pkg/feed"
)

// pgTx wraps a pgx.Tx so it satisfies the opaque feed.Tx marker interface
// without leaking pgx into the feed package, mirroring the teacher's
// pattern of hiding the concrete driver behind unexported accessor methods
// (pkg/dcb/postgres/store.go's getQueryItems/getTags/...).
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) isTx() {}

// unwrap extracts the underlying pgx.Tx from a feed.Tx, panicking if the
// handle did not originate from this package — a programmer error, since
// every feed.Tx in this codebase is always minted by Store.WithTx.
func unwrap(tx feed.Tx) pgx.Tx {
	t, ok := tx.(*pgTx)
	if !ok {
		panic("postgres: feed.Tx handle was not created by this store")
	}
	return t.tx
}
