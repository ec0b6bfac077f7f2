package feed

import (
	"context"
	"fmt"
)

// Reducer applies events to projection tables. It is the only writer of
// projection rows (spec.md §3.2) and performs no I/O beyond the store
// calls made against the transaction it is given — it never opens its own
// transaction, never calls the clock, never generates randomness.
type Reducer struct {
	store ProjectionWriter
}

// NewReducer builds a Reducer writing through w.
func NewReducer(w ProjectionWriter) *Reducer {
	return &Reducer{store: w}
}

// Apply implements apply_event(state, event) -> state' from spec.md §4.3.
// It is a total function over the closed Kind set: an unrecognized kind is
// a hard error, never a silent no-op, preserving replay integrity.
func (r *Reducer) Apply(ctx context.Context, tx Tx, ev Event) error {
	switch ev.Kind {
	case KindRunStarted:
		p, err := DecodeRunStarted(ev.Payload)
		if err != nil {
			return newStoreError("reducer.apply(run_started)", err)
		}
		if err := r.store.SetCurrentTick(ctx, tx, p.StartedTick); err != nil {
			return err
		}
		return nil

	case KindRunConfig:
		// run_config carries simulation metadata only; it does not alter
		// projections beyond what run_started already establishes.
		return nil

	case KindAdvanceTick:
		p, err := DecodeAdvanceTick(ev.Payload)
		if err != nil {
			return newStoreError("reducer.apply(advance_tick)", err)
		}
		return r.store.SetCurrentTick(ctx, tx, p.NewTick)

	case KindTimelineServed:
		p, err := DecodeTimelineServed(ev.Payload)
		if err != nil {
			return newStoreError("reducer.apply(timeline_served)", err)
		}
		exposure := TimelineExposure{
			TimelineID:     p.TimelineID,
			UserID:         p.UserID,
			Tick:           ev.Tick,
			Algorithm:      p.Algorithm,
			K:              p.K,
			Seed:           p.Seed,
			RankingVersion: p.RankingVersion,
		}
		for _, item := range p.Items {
			exposure.Items = append(exposure.Items, TimelineItemRow{
				TimelineID: p.TimelineID,
				Position:   item.Position,
				PostID:     item.PostID,
				Score:      item.Score,
				Features:   item.Features,
			})
		}
		if err := r.store.EnsureUser(ctx, tx, p.UserID, ev.Tick); err != nil {
			return err
		}
		return r.store.CreateTimeline(ctx, tx, exposure)

	case KindAction:
		p, err := DecodeAction(ev.Payload)
		if err != nil {
			return newStoreError("reducer.apply(action)", err)
		}
		return r.applyAction(ctx, tx, ev.Tick, p)

	default:
		return newStoreError("reducer.apply", fmt.Errorf("unknown event kind %q", ev.Kind))
	}
}

func (r *Reducer) applyAction(ctx context.Context, tx Tx, tick int64, p ActionPayload) error {
	if p.Status != StatusAccepted {
		// Rejected actions are recorded in the log only; no projection
		// mutation (spec.md §4.3).
		return nil
	}

	if err := r.store.EnsureUser(ctx, tx, p.ActorID, tick); err != nil {
		return err
	}

	switch p.ActionType {
	case ActionPost:
		postID := DerivePostID(p.OpID)
		return r.store.CreatePost(ctx, tx, Post{
			PostID:      postID,
			AuthorID:    p.ActorID,
			Body:        p.Body,
			CreatedTick: tick,
			UpVotes:     0,
		})

	case ActionComment:
		commentID := DeriveCommentID(p.OpID)
		return r.store.CreateComment(ctx, tx, Comment{
			CommentID:   commentID,
			PostID:      p.TargetPostID,
			AuthorID:    p.ActorID,
			Body:        p.Body,
			CreatedTick: tick,
		})

	case ActionLike:
		existed, err := r.store.AddVote(ctx, tx, Vote{UserID: p.ActorID, PostID: p.TargetPostID, Tick: tick})
		if err != nil {
			return err
		}
		if existed {
			// Idempotent replay: the vote was already present (this
			// event was applied once already, or an equivalent vote
			// already exists) — up_votes must not be double-counted.
			return nil
		}
		return r.store.IncrementUpVotes(ctx, tx, p.TargetPostID, 1)

	case ActionUnlike:
		existed, err := r.store.RemoveVote(ctx, tx, p.ActorID, p.TargetPostID)
		if err != nil {
			return err
		}
		if !existed {
			return nil
		}
		return r.store.IncrementUpVotes(ctx, tx, p.TargetPostID, -1)

	case ActionFollow:
		_, err := r.store.AddFollow(ctx, tx, Follow{FollowerID: p.ActorID, FolloweeID: p.TargetUserID, Tick: tick})
		return err

	case ActionUnfollow:
		_, err := r.store.RemoveFollow(ctx, tx, p.ActorID, p.TargetUserID)
		return err

	default:
		return newStoreError("reducer.applyAction", fmt.Errorf("unknown action_type %q", p.ActionType))
	}
}

// ReplayAll drops all projection state and rebuilds it by folding every
// event in the log, in seq order, through the reducer (spec.md §4.3).
func ReplayAll(ctx context.Context, store Store) error {
	return store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := store.TruncateProjections(ctx, tx); err != nil {
			return err
		}
		it, err := store.Scan(ctx, 1)
		if err != nil {
			return err
		}
		defer it.Close()

		reducer := NewReducer(store)
		for {
			ev, ok, err := it.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if !ValidKind(ev.Kind) {
				return newStoreError("replay_all", fmt.Errorf("unknown event kind %q at seq %d", ev.Kind, ev.Seq))
			}
			if err := reducer.Apply(ctx, tx, ev); err != nil {
				return err
			}
		}
	})
}
