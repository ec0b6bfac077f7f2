package feed

import "context"

// Clock drives tick progression by appending and applying advance_tick
// events (spec.md §4.7).
type Clock struct {
	store  Store
	reduce *Reducer
}

// NewClock builds a Clock against store.
func NewClock(store Store) *Clock {
	return &Clock{store: store, reduce: NewReducer(store)}
}

// AdvanceTick appends an advance_tick event moving the clock forward by
// exactly one, and applies it via the reducer.
func (c *Clock) AdvanceTick(ctx context.Context) (newTick int64, err error) {
	err = c.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := c.store.CurrentTick(ctx, tx)
		if err != nil {
			return err
		}
		newTick = current + 1

		payload := AdvanceTickPayload{NewTick: newTick}
		encoded, err := EncodePayload(KindAdvanceTick, payload)
		if err != nil {
			return newStoreError("advance_tick", err)
		}
		ev := Event{Tick: newTick, Kind: KindAdvanceTick, Payload: encoded}
		if _, err := c.store.Append(ctx, tx, ev); err != nil {
			return err
		}
		return c.reduce.Apply(ctx, tx, ev)
	})
	if err != nil {
		return 0, err
	}
	return newTick, nil
}

// AppendRawTick is used only by tests that need to exercise the
// TickRegression guard by attempting to insert an out-of-order tick
// directly, bypassing AdvanceTick's current+1 computation.
func AppendRawTick(ctx context.Context, store Store, newTick int64) error {
	return store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := store.CurrentTick(ctx, tx)
		if err != nil {
			return err
		}
		if newTick <= current {
			return &TickRegressionError{
				KernelError: KernelError{Op: "advance_tick"},
				CurrentTick: current,
				Attempted:   newTick,
			}
		}
		payload := AdvanceTickPayload{NewTick: newTick}
		encoded, err := EncodePayload(KindAdvanceTick, payload)
		if err != nil {
			return newStoreError("advance_tick", err)
		}
		ev := Event{Tick: newTick, Kind: KindAdvanceTick, Payload: encoded}
		if _, err := store.Append(ctx, tx, ev); err != nil {
			return err
		}
		return NewReducer(store).Apply(ctx, tx, ev)
	})
}
