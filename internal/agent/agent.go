// Package agent is a minimal seeded-random action proposer used by the
// simulate command to drive the kernel. It is explicitly a stand-in: real
// agent policy logic is out of scope for the kernel, and the kernel never
// imports this package. Every source of randomness here is derived from
// the run seed and agent index so a simulate run is reproducible end to
// end, matching the tick's seeded-permutation requirement.
package agent

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rodolfodpk/feedsim/pkg/feed"
)

// Policy proposes one action per agent per tick against the kernel's
// Timeline/Admission surface.
type Policy struct {
	store       feed.Store
	timelineSvc *feed.TimelineService
	admission   *feed.Admission
	metrics     *feed.Metrics
	runID       string
	agentIDs    []string
	k           int
	algorithm   feed.Algorithm
	opCounter   int64
}

// New builds a Policy over agentCount agents, labelled deterministically
// from runID. metrics may be nil.
func New(store feed.Store, timelineSvc *feed.TimelineService, admission *feed.Admission, metrics *feed.Metrics, runID string, agentCount, k int, algorithm feed.Algorithm) *Policy {
	agentIDs := make([]string, agentCount)
	for i := range agentIDs {
		agentIDs[i] = fmt.Sprintf("agent-%s-%d", runID, i)
	}
	return &Policy{
		store:       store,
		timelineSvc: timelineSvc,
		admission:   admission,
		metrics:     metrics,
		runID:       runID,
		agentIDs:    agentIDs,
		k:           k,
		algorithm:   algorithm,
	}
}

// rngFor derives a per-agent, per-tick PCG source: every agent gets its own
// independent stream, and replaying the same (seed, tick) always produces
// the same stream regardless of what other agents did.
func rngFor(seed int64, tick int64, agentIndex int) *rand.Rand {
	lo := uint64(seed) ^ uint64(tick)<<1
	hi := uint64(agentIndex)*0x9E3779B97F4A7C15 + 1
	return rand.New(rand.NewPCG(lo, hi))
}

// permute returns a seeded permutation of agent indices for the given
// tick, so simulate processes agents in a reproducible but non-trivial
// order, matching the "seeded permutation" requirement on agent order.
func permute(seed int64, tick int64, n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	r := rngFor(seed, tick, -1)
	r.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// RunTick drives every agent once for the given tick, in seeded-permutation
// order. Each agent requests a timeline and then, with some probability,
// proposes one action against an item on it. A StoreError from any agent
// aborts the whole tick; admission rejections never do.
func (p *Policy) RunTick(ctx context.Context, seed int64, tick int64) error {
	order := permute(seed, tick, len(p.agentIDs))

	for _, idx := range order {
		actorID := p.agentIDs[idx]
		r := rngFor(seed, tick, idx)

		timelineID, items, err := p.timelineSvc.Timeline(ctx, actorID, p.algorithm, p.k, seed)
		if err != nil {
			if feed.IsStoreError(err) {
				return err
			}
			continue
		}
		if len(items) == 0 {
			if err := p.proposePost(ctx, actorID, r); err != nil && feed.IsStoreError(err) {
				return err
			}
			continue
		}

		var proposeErr error
		switch roll := r.Float64(); {
		case roll < 0.35:
			proposeErr = p.proposePost(ctx, actorID, r)
		case roll < 0.60:
			proposeErr = p.proposeLike(ctx, actorID, timelineID, items, r)
		case roll < 0.70:
			proposeErr = p.proposeUnlike(ctx, actorID, timelineID, items, r)
		case roll < 0.90:
			proposeErr = p.proposeComment(ctx, actorID, timelineID, items, r)
		default:
			proposeErr = p.proposeFollow(ctx, actorID, r)
		}
		if proposeErr != nil && feed.IsStoreError(proposeErr) {
			return proposeErr
		}
	}
	return nil
}

func (p *Policy) nextOpID(actorID string, tick int64) string {
	p.opCounter++
	return fmt.Sprintf("op-%s-%s-%d-%d", p.runID, actorID, tick, p.opCounter)
}

// act submits params and records the outcome in metrics, regardless of
// whether it was accepted or rejected.
func (p *Policy) act(ctx context.Context, params feed.ActParams) error {
	outcome, err := p.admission.Act(ctx, params)
	if err != nil {
		return err
	}
	p.metrics.ObserveOutcome(outcome)
	return nil
}

func (p *Policy) proposePost(ctx context.Context, actorID string, r *rand.Rand) error {
	tick, err := p.currentTick(ctx)
	if err != nil {
		return err
	}
	return p.act(ctx, feed.ActParams{
		OpID:       p.nextOpID(actorID, tick),
		ActorID:    actorID,
		ActionType: feed.ActionPost,
		Body:       fmt.Sprintf("post from %s at tick %d (%d)", actorID, tick, r.Int()),
	})
}

func (p *Policy) proposeComment(ctx context.Context, actorID, timelineID string, items []feed.TimelineItemPayload, r *rand.Rand) error {
	tick, err := p.currentTick(ctx)
	if err != nil {
		return err
	}
	pos := r.IntN(len(items))
	return p.act(ctx, feed.ActParams{
		OpID:         p.nextOpID(actorID, tick),
		ActorID:      actorID,
		ActionType:   feed.ActionComment,
		TimelineID:   timelineID,
		Position:     &pos,
		TargetPostID: items[pos].PostID,
		Body:         fmt.Sprintf("comment from %s (%d)", actorID, r.Int()),
	})
}

func (p *Policy) proposeLike(ctx context.Context, actorID, timelineID string, items []feed.TimelineItemPayload, r *rand.Rand) error {
	tick, err := p.currentTick(ctx)
	if err != nil {
		return err
	}
	pos := r.IntN(len(items))
	return p.act(ctx, feed.ActParams{
		OpID:         p.nextOpID(actorID, tick),
		ActorID:      actorID,
		ActionType:   feed.ActionLike,
		TimelineID:   timelineID,
		Position:     &pos,
		TargetPostID: items[pos].PostID,
	})
}

func (p *Policy) proposeUnlike(ctx context.Context, actorID, timelineID string, items []feed.TimelineItemPayload, r *rand.Rand) error {
	tick, err := p.currentTick(ctx)
	if err != nil {
		return err
	}
	pos := r.IntN(len(items))
	return p.act(ctx, feed.ActParams{
		OpID:         p.nextOpID(actorID, tick),
		ActorID:      actorID,
		ActionType:   feed.ActionUnlike,
		TimelineID:   timelineID,
		Position:     &pos,
		TargetPostID: items[pos].PostID,
	})
}

func (p *Policy) proposeFollow(ctx context.Context, actorID string, r *rand.Rand) error {
	if len(p.agentIDs) < 2 {
		return nil
	}
	tick, err := p.currentTick(ctx)
	if err != nil {
		return err
	}
	targetID := actorID
	for targetID == actorID {
		targetID = p.agentIDs[r.IntN(len(p.agentIDs))]
	}
	return p.act(ctx, feed.ActParams{
		OpID:         p.nextOpID(actorID, tick),
		ActorID:      actorID,
		ActionType:   feed.ActionFollow,
		TargetUserID: targetID,
	})
}

func (p *Policy) currentTick(ctx context.Context) (int64, error) {
	var tick int64
	err := p.store.WithTx(ctx, func(ctx context.Context, tx feed.Tx) error {
		t, err := p.store.CurrentTick(ctx, tx)
		if err != nil {
			return err
		}
		tick = t
		return nil
	})
	return tick, err
}
