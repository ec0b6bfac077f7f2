package feed

import (
	"context"

	"golang.org/x/time/rate"
)

// ActParams is the caller-supplied shape of a proposed action, mirroring
// the action event payload before a status/reason has been decided
// (spec.md §4.2/§4.6).
type ActParams struct {
	OpID         string
	ActorID      string
	ActionType   ActionType
	TimelineID   string
	Position     *int
	TargetPostID string
	TargetUserID string
	Body         string
}

func (p ActParams) toPayload(status ActionStatus, reason RejectReason) ActionPayload {
	return ActionPayload{
		OpID:         p.OpID,
		ActorID:      p.ActorID,
		ActionType:   p.ActionType,
		TimelineID:   p.TimelineID,
		Position:     p.Position,
		TargetPostID: p.TargetPostID,
		TargetUserID: p.TargetUserID,
		Body:         p.Body,
		Status:       status,
		Reason:       reason,
	}
}

// Admission is the Action Admission pipeline: validate, idempotency-check,
// exposure-tie-check, semantic-validate, append, apply — all inside one
// serialized write transaction (spec.md §4.6).
//
// limiter throttles how fast Act will admit work; it never changes an
// outcome, it only paces the caller, modeling backpressure against a
// runaway agent loop (SPEC_FULL.md §4.6).
type Admission struct {
	store   Store
	reduce  *Reducer
	limiter *rate.Limiter
}

// NewAdmission builds an Admission pipeline against store, rate-limited to
// the given actions-per-second rate with the given burst.
func NewAdmission(store Store, ratePerSec float64, burst int) *Admission {
	return &Admission{
		store:   store,
		reduce:  NewReducer(store),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// Act validates, idempotency-checks, exposure-checks, semantically
// validates, appends, and applies one proposed action, returning its
// recorded outcome. A non-nil error indicates a fault that prevented any
// record from being made (store faults, a cancelled context while waiting
// on the limiter); every other outcome — including every rejection reason
// in spec.md §4.6, and an ActionType outside the closed set, which is
// recorded as ReasonMalformed — comes back as a nil error with the
// outcome's Status/Reason populated, because rejections are recorded in
// the log and are never fatal (spec.md §7).
func (a *Admission) Act(ctx context.Context, p ActParams) (ActionPayload, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return ActionPayload{}, newStoreError("act", err)
	}

	var outcome ActionPayload
	err := a.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		// Step 1: idempotency.
		if p.OpID != "" {
			if prior, found, err := a.store.FindActionByOpID(ctx, tx, p.OpID); err != nil {
				return err
			} else if found {
				outcome = prior
				return nil
			}
		}

		candidate := p.toPayload(StatusAccepted, "")

		// Step 2: schema validation.
		if err := ValidateActionShape(candidate); err != nil {
			outcome = p.toPayload(StatusRejected, ReasonMalformed)
			return a.recordAndApply(ctx, tx, outcome)
		}

		// Step 3: exposure tie, for comment/like/unlike.
		if reason, ok, err := a.checkExposure(ctx, tx, p); err != nil {
			return err
		} else if !ok {
			outcome = p.toPayload(StatusRejected, reason)
			return a.recordAndApply(ctx, tx, outcome)
		}

		// Step 4: semantic validation.
		if reason, ok, err := a.checkSemantics(ctx, tx, p); err != nil {
			return err
		} else if !ok {
			outcome = p.toPayload(StatusRejected, reason)
			return a.recordAndApply(ctx, tx, outcome)
		}

		// Step 5: accept.
		outcome = candidate
		return a.recordAndApply(ctx, tx, outcome)
	})
	if err != nil {
		return ActionPayload{}, err
	}
	return outcome, nil
}

func (a *Admission) recordAndApply(ctx context.Context, tx Tx, outcome ActionPayload) error {
	currentTick, err := a.store.CurrentTick(ctx, tx)
	if err != nil {
		return err
	}
	encoded, err := EncodePayload(KindAction, outcome)
	if err != nil {
		return newStoreError("act", err)
	}
	ev := Event{Tick: currentTick, Kind: KindAction, Payload: encoded, OpID: outcome.OpID}
	if _, err := a.store.Append(ctx, tx, ev); err != nil {
		return err
	}
	return a.reduce.Apply(ctx, tx, ev)
}

// checkExposure implements spec.md §4.6 step 3. ok=true means there is no
// exposure-tie requirement (post/follow/unfollow) or the requirement is
// satisfied.
func (a *Admission) checkExposure(ctx context.Context, tx Tx, p ActParams) (RejectReason, bool, error) {
	switch p.ActionType {
	case ActionComment, ActionLike, ActionUnlike:
	default:
		return "", true, nil
	}

	exposure, found, err := a.store.GetTimeline(ctx, tx, p.TimelineID)
	if err != nil {
		return "", false, err
	}
	if !found {
		return ReasonOffFeed, false, nil
	}
	if exposure.UserID != p.ActorID {
		return ReasonOffFeed, false, nil
	}
	if p.Position == nil {
		return ReasonOffFeed, false, nil
	}
	item, found := exposure.ItemAt(*p.Position)
	if !found || item.PostID != p.TargetPostID {
		return ReasonOffFeed, false, nil
	}
	return "", true, nil
}

// checkSemantics implements spec.md §4.6 step 4.
func (a *Admission) checkSemantics(ctx context.Context, tx Tx, p ActParams) (RejectReason, bool, error) {
	switch p.ActionType {
	case ActionLike:
		voted, err := a.store.HasVote(ctx, tx, p.ActorID, p.TargetPostID)
		if err != nil {
			return "", false, err
		}
		if voted {
			return ReasonDuplicateVote, false, nil
		}
	case ActionUnlike:
		voted, err := a.store.HasVote(ctx, tx, p.ActorID, p.TargetPostID)
		if err != nil {
			return "", false, err
		}
		if !voted {
			return ReasonNoSuchVote, false, nil
		}
	case ActionFollow:
		if p.TargetUserID == p.ActorID {
			return ReasonSelfFollow, false, nil
		}
		following, err := a.store.HasFollow(ctx, tx, p.ActorID, p.TargetUserID)
		if err != nil {
			return "", false, err
		}
		if following {
			return ReasonDuplicateFollow, false, nil
		}
	case ActionUnfollow:
		following, err := a.store.HasFollow(ctx, tx, p.ActorID, p.TargetUserID)
		if err != nil {
			return "", false, err
		}
		if !following {
			return ReasonNoSuchFollow, false, nil
		}
	case ActionComment:
		if p.Body == "" {
			return ReasonEmptyBody, false, nil
		}
	}
	return "", true, nil
}
