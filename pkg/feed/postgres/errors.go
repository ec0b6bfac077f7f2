package postgres

import (
	"github.com/rodolfodpk/feedsim/pkg/feed"
)

// These thin wrappers keep error-construction call sites in this package
// one line long, matching the teacher's EventStoreError{Op, Err} literal
// style while staying inside feed's exported error constructors.

func newStoreError(op string, err error) error {
	return feed.NewStoreError(op, err)
}

func newValidationError(op, field, value string, err error) error {
	return feed.NewValidationError(op, field, value, err)
}

func newConcurrencyError(op string, err error) error {
	return feed.NewConcurrencyError(op, err)
}

func newAlreadyInitialized(op string) error {
	return feed.NewAlreadyInitializedError(op)
}
