package feed

import "context"

// TimelineService builds and records a ranked view of the post set for one
// user (spec.md §4.5).
type TimelineService struct {
	store  Store
	runID  string
	reduce *Reducer
}

// NewTimelineService builds a TimelineService against store for run runID.
func NewTimelineService(store Store, runID string) *TimelineService {
	return &TimelineService{store: store, runID: runID, reduce: NewReducer(store)}
}

// Timeline computes a ranked view for userID under algorithm, appends the
// resulting timeline_served event, applies it to projections, and returns
// the assigned timeline id with its items — all within one transaction, so
// the returned id always corresponds to a durable, replayable event.
func (s *TimelineService) Timeline(ctx context.Context, userID string, algorithm Algorithm, k int, seed int64) (timelineID string, items []TimelineItemPayload, err error) {
	if !ValidAlgorithm(algorithm) {
		return "", nil, &UnknownAlgorithmError{
			KernelError: KernelError{Op: "timeline"},
			Algorithm:   string(algorithm),
		}
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		currentTick, err := s.store.CurrentTick(ctx, tx)
		if err != nil {
			return err
		}
		posts, err := s.store.ListPosts(ctx, tx)
		if err != nil {
			return err
		}
		ranked, err := Rank(algorithm, posts, currentTick, seed, k)
		if err != nil {
			return err
		}

		counter, err := s.store.NextTimelineCounter(ctx, tx)
		if err != nil {
			return err
		}
		timelineID = DeriveTimelineID(s.runID, userID, currentTick, algorithm, seed, counter)

		payload := TimelineServedPayload{
			TimelineID:     timelineID,
			UserID:         userID,
			K:              k,
			Algorithm:      algorithm,
			RankingVersion: RankingVersion,
			Seed:           seed,
			Items:          ranked,
		}
		encoded, err := EncodePayload(KindTimelineServed, payload)
		if err != nil {
			return newStoreError("timeline", err)
		}

		ev := Event{Tick: currentTick, Kind: KindTimelineServed, Payload: encoded}
		if _, err := s.store.Append(ctx, tx, ev); err != nil {
			return err
		}
		if err := s.reduce.Apply(ctx, tx, ev); err != nil {
			return err
		}

		items = ranked
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return timelineID, items, nil
}
