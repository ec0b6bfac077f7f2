// Package feed implements the event-sourced feed simulator kernel: the
// append-only log, the projection reducer, the ranker, the timeline
// service, and the action admission pipeline.
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the closed tag set of event variants. The reducer rejects any
// kind outside this set rather than silently skipping it, so replay
// integrity can never be silently broken by an unrecognized future variant.
type Kind string

const (
	KindRunStarted     Kind = "run_started"
	KindRunConfig      Kind = "run_config"
	KindAdvanceTick    Kind = "advance_tick"
	KindTimelineServed Kind = "timeline_served"
	KindAction         Kind = "action"
)

// ValidKind reports whether k is a member of the closed event tag set.
func ValidKind(k Kind) bool {
	switch k {
	case KindRunStarted, KindRunConfig, KindAdvanceTick, KindTimelineServed, KindAction:
		return true
	}
	return false
}

// Algorithm is the closed set of ranking algorithms.
type Algorithm string

const (
	AlgorithmNew Algorithm = "new"
	AlgorithmTop Algorithm = "top"
	AlgorithmHot Algorithm = "hot"
)

// ValidAlgorithm reports whether a is a known ranking algorithm.
func ValidAlgorithm(a Algorithm) bool {
	switch a {
	case AlgorithmNew, AlgorithmTop, AlgorithmHot:
		return true
	}
	return false
}

// ActionType is the closed set of state-changing action kinds.
type ActionType string

const (
	ActionPost     ActionType = "post"
	ActionComment  ActionType = "comment"
	ActionLike     ActionType = "like"
	ActionUnlike   ActionType = "unlike"
	ActionFollow   ActionType = "follow"
	ActionUnfollow ActionType = "unfollow"
)

// ActionStatus is the outcome of admitting an action.
type ActionStatus string

const (
	StatusAccepted ActionStatus = "accepted"
	StatusRejected ActionStatus = "rejected"
)

// RejectReason is the closed set of rejection reasons recorded on a
// rejected action event (see spec.md §7: rejections are never fatal and
// are always recorded in the log so replay reproduces them).
type RejectReason string

const (
	ReasonMalformed       RejectReason = "malformed"
	ReasonOffFeed         RejectReason = "off_feed"
	ReasonDuplicateVote   RejectReason = "duplicate_vote"
	ReasonNoSuchVote      RejectReason = "no_such_vote"
	ReasonSelfFollow      RejectReason = "self_follow"
	ReasonDuplicateFollow RejectReason = "duplicate_follow"
	ReasonNoSuchFollow    RejectReason = "no_such_follow"
	ReasonEmptyBody       RejectReason = "empty_body"
)

// RankingVersion is bumped whenever scoring semantics change. It is frozen
// per recorded timeline_served event; live projections never re-score a
// historical timeline when this constant changes (spec.md §9).
const RankingVersion = 1

// Event is an immutable append-only log entry. Seq is assigned by the
// Store at append time; Payload is the canonical-JSON encoding of one of
// the *Payload types below, chosen by Kind.
type Event struct {
	Seq     int64
	Tick    int64
	Kind    Kind
	Payload []byte
	OpID    string // only populated for Kind == KindAction
}

// RunStartedPayload is the payload of a run_started event.
type RunStartedPayload struct {
	RunID       string `json:"run_id"`
	StartedTick int64  `json:"started_tick"`
}

// RunConfigPayload is the payload of a run_config event.
type RunConfigPayload struct {
	RunID            string `json:"run_id"`
	Seed             int64  `json:"seed"`
	Agents           int    `json:"agents"`
	RankingAlgorithm string `json:"ranking_algorithm"`
	K                int    `json:"k"`
	Ticks            int    `json:"ticks"`
}

// AdvanceTickPayload is the payload of an advance_tick event.
type AdvanceTickPayload struct {
	NewTick int64 `json:"new_tick"`
}

// Features is the recorded feature vector for one timeline item, sufficient
// to re-derive its score offline without trusting the stored score.
type Features struct {
	Score          float64   `json:"score"`
	UpVotes        int64     `json:"up_votes"`
	Age            int64     `json:"age"`
	Algorithm      Algorithm `json:"algorithm"`
	RankingVersion int       `json:"ranking_version"`
}

// TimelineItemPayload is one entry of a timeline_served event's item list.
type TimelineItemPayload struct {
	PostID   string   `json:"post_id"`
	Position int      `json:"position"`
	Score    float64  `json:"score"`
	Features Features `json:"features"`
}

// TimelineServedPayload is the payload of a timeline_served event.
type TimelineServedPayload struct {
	TimelineID     string                `json:"timeline_id"`
	UserID         string                `json:"user_id"`
	K              int                   `json:"k"`
	Algorithm      Algorithm             `json:"algorithm"`
	RankingVersion int                   `json:"ranking_version"`
	Seed           int64                 `json:"seed"`
	Items          []TimelineItemPayload `json:"items"`
}

// ActionPayload is the payload of an action event, covering both the
// request shape and its recorded outcome.
type ActionPayload struct {
	OpID         string       `json:"op_id"`
	ActorID      string       `json:"actor_id"`
	ActionType   ActionType   `json:"action_type"`
	TimelineID   string       `json:"timeline_id,omitempty"`
	Position     *int         `json:"position,omitempty"`
	TargetPostID string       `json:"target_post_id,omitempty"`
	TargetUserID string       `json:"target_user_id,omitempty"`
	Body         string       `json:"body,omitempty"`
	Status       ActionStatus `json:"status"`
	Reason       RejectReason `json:"reason,omitempty"`
}

// CanonicalJSON marshals v to JSON with map keys sorted (encoding/json
// already sorts map[string]any keys; round-tripping through an untyped
// map is what gives struct field order the same alphabetical-key
// guarantee spec.md §6.1 requires) and with HTML-escaping disabled so the
// byte representation is stable and portable.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonicalize: unmarshal: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canonicalize: encode: %w", err)
	}
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}

// EncodePayload canonicalizes and validates payload p, returning the bytes
// to store alongside kind k.
func EncodePayload(k Kind, p any) ([]byte, error) {
	if err := validatePayloadKind(k, p); err != nil {
		return nil, err
	}
	return CanonicalJSON(p)
}

func validatePayloadKind(k Kind, p any) error {
	switch k {
	case KindRunStarted:
		if _, ok := p.(RunStartedPayload); !ok {
			return fmt.Errorf("event kind %s requires RunStartedPayload", k)
		}
	case KindRunConfig:
		if _, ok := p.(RunConfigPayload); !ok {
			return fmt.Errorf("event kind %s requires RunConfigPayload", k)
		}
	case KindAdvanceTick:
		if _, ok := p.(AdvanceTickPayload); !ok {
			return fmt.Errorf("event kind %s requires AdvanceTickPayload", k)
		}
	case KindTimelineServed:
		if _, ok := p.(TimelineServedPayload); !ok {
			return fmt.Errorf("event kind %s requires TimelineServedPayload", k)
		}
	case KindAction:
		if _, ok := p.(ActionPayload); !ok {
			return fmt.Errorf("event kind %s requires ActionPayload", k)
		}
	default:
		return fmt.Errorf("unknown event kind %q", k)
	}
	return nil
}

// DecodeRunStarted decodes a run_started payload.
func DecodeRunStarted(b []byte) (RunStartedPayload, error) {
	var p RunStartedPayload
	err := json.Unmarshal(b, &p)
	return p, err
}

// DecodeRunConfig decodes a run_config payload.
func DecodeRunConfig(b []byte) (RunConfigPayload, error) {
	var p RunConfigPayload
	err := json.Unmarshal(b, &p)
	return p, err
}

// DecodeAdvanceTick decodes an advance_tick payload.
func DecodeAdvanceTick(b []byte) (AdvanceTickPayload, error) {
	var p AdvanceTickPayload
	err := json.Unmarshal(b, &p)
	return p, err
}

// DecodeTimelineServed decodes a timeline_served payload.
func DecodeTimelineServed(b []byte) (TimelineServedPayload, error) {
	var p TimelineServedPayload
	err := json.Unmarshal(b, &p)
	return p, err
}

// DecodeAction decodes an action payload.
func DecodeAction(b []byte) (ActionPayload, error) {
	var p ActionPayload
	err := json.Unmarshal(b, &p)
	return p, err
}

// ValidateActionShape enforces the per-action_type constraints of spec.md
// §4.2. It never returns a RejectReason directly: the caller (Admission)
// maps a non-nil error to ReasonMalformed.
func ValidateActionShape(p ActionPayload) error {
	switch p.ActionType {
	case ActionPost:
		if p.Body == "" {
			return fmt.Errorf("post: body required")
		}
		if p.TimelineID != "" {
			return fmt.Errorf("post: timeline_id must be absent")
		}
	case ActionComment, ActionLike, ActionUnlike:
		if p.TimelineID == "" {
			return fmt.Errorf("%s: timeline_id required", p.ActionType)
		}
		if p.Position == nil {
			return fmt.Errorf("%s: position required", p.ActionType)
		}
		if p.TargetPostID == "" {
			return fmt.Errorf("%s: target_post_id required", p.ActionType)
		}
	case ActionFollow, ActionUnfollow:
		if p.TargetUserID == "" {
			return fmt.Errorf("%s: target_user_id required", p.ActionType)
		}
	default:
		return fmt.Errorf("unknown action_type %q", p.ActionType)
	}
	if p.OpID == "" {
		return fmt.Errorf("op_id required")
	}
	if p.ActorID == "" {
		return fmt.Errorf("actor_id required")
	}
	return nil
}
