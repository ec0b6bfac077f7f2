package feed

import (
	"context"
	"fmt"
)

// fakeTx is the in-memory Tx handle used by fakeStore.
type fakeTx struct{}

func (fakeTx) isTx() {}

// fakeStore is a minimal in-memory Store used to unit-test the reducer,
// ranker wiring, timeline service, admission pipeline, and clock without a
// real Postgres instance. It is not meant to be realistic concurrency-wise
// (every call runs under the single goroutine the tests use); it exists
// purely to exercise the kernel's logic against the Store interface.
type fakeStore struct {
	events      []Event
	currentTick int64

	users         map[string]User
	posts         map[string]Post
	comments      map[string]Comment
	votes         map[string]Vote
	follows       map[string]Follow
	timelines     map[string]TimelineExposure
	timelineOrder []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[string]User{},
		posts:     map[string]Post{},
		comments:  map[string]Comment{},
		votes:     map[string]Vote{},
		follows:   map[string]Follow{},
		timelines: map[string]TimelineExposure{},
	}
}

func (s *fakeStore) Init(ctx context.Context, force bool) error { return nil }

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return fn(ctx, fakeTx{})
}

func (s *fakeStore) Append(ctx context.Context, tx Tx, ev Event) (int64, error) {
	if ev.OpID != "" {
		for _, existing := range s.events {
			if existing.OpID == ev.OpID {
				return 0, newConcurrencyError("append", fmt.Errorf("duplicate op_id %q", ev.OpID))
			}
		}
	}
	ev.Seq = int64(len(s.events)) + 1
	s.events = append(s.events, ev)
	return ev.Seq, nil
}

func (s *fakeStore) Scan(ctx context.Context, fromSeq int64) (EventIterator, error) {
	var filtered []Event
	for _, ev := range s.events {
		if ev.Seq >= fromSeq {
			filtered = append(filtered, ev)
		}
	}
	return &fakeIterator{events: filtered}, nil
}

func (s *fakeStore) TruncateProjections(ctx context.Context, tx Tx) error {
	s.users = map[string]User{}
	s.posts = map[string]Post{}
	s.comments = map[string]Comment{}
	s.votes = map[string]Vote{}
	s.follows = map[string]Follow{}
	s.timelines = map[string]TimelineExposure{}
	s.timelineOrder = nil
	s.currentTick = 0
	return nil
}

func (s *fakeStore) Close() {}

func (s *fakeStore) ListPosts(ctx context.Context, tx Tx) ([]Post, error) {
	out := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) GetPost(ctx context.Context, tx Tx, postID string) (Post, bool, error) {
	p, ok := s.posts[postID]
	return p, ok, nil
}

func (s *fakeStore) HasVote(ctx context.Context, tx Tx, userID, postID string) (bool, error) {
	_, ok := s.votes[userID+"|"+postID]
	return ok, nil
}

func (s *fakeStore) HasFollow(ctx context.Context, tx Tx, followerID, followeeID string) (bool, error) {
	_, ok := s.follows[followerID+"|"+followeeID]
	return ok, nil
}

func (s *fakeStore) GetTimeline(ctx context.Context, tx Tx, timelineID string) (TimelineExposure, bool, error) {
	e, ok := s.timelines[timelineID]
	return e, ok, nil
}

func (s *fakeStore) FindActionByOpID(ctx context.Context, tx Tx, opID string) (ActionPayload, bool, error) {
	for _, ev := range s.events {
		if ev.Kind == KindAction && ev.OpID == opID {
			p, err := DecodeAction(ev.Payload)
			return p, true, err
		}
	}
	return ActionPayload{}, false, nil
}

func (s *fakeStore) CurrentTick(ctx context.Context, tx Tx) (int64, error) {
	return s.currentTick, nil
}

func (s *fakeStore) NextTimelineCounter(ctx context.Context, tx Tx) (int64, error) {
	return int64(len(s.timelines)), nil
}

func (s *fakeStore) ListTimelineIDs(ctx context.Context, tx Tx) ([]string, error) {
	out := make([]string, len(s.timelineOrder))
	copy(out, s.timelineOrder)
	return out, nil
}

func (s *fakeStore) EnsureUser(ctx context.Context, tx Tx, userID string, tick int64) error {
	if _, ok := s.users[userID]; !ok {
		s.users[userID] = User{UserID: userID, CreatedTick: tick}
	}
	return nil
}

func (s *fakeStore) CreatePost(ctx context.Context, tx Tx, post Post) error {
	if _, ok := s.posts[post.PostID]; ok {
		return nil
	}
	s.posts[post.PostID] = post
	return nil
}

func (s *fakeStore) CreateComment(ctx context.Context, tx Tx, c Comment) error {
	if _, ok := s.comments[c.CommentID]; ok {
		return nil
	}
	s.comments[c.CommentID] = c
	return nil
}

func (s *fakeStore) AddVote(ctx context.Context, tx Tx, v Vote) (bool, error) {
	key := v.UserID + "|" + v.PostID
	if _, ok := s.votes[key]; ok {
		return true, nil
	}
	s.votes[key] = v
	return false, nil
}

func (s *fakeStore) RemoveVote(ctx context.Context, tx Tx, userID, postID string) (bool, error) {
	key := userID + "|" + postID
	if _, ok := s.votes[key]; !ok {
		return false, nil
	}
	delete(s.votes, key)
	return true, nil
}

func (s *fakeStore) IncrementUpVotes(ctx context.Context, tx Tx, postID string, delta int64) error {
	p, ok := s.posts[postID]
	if !ok {
		return nil
	}
	p.UpVotes += delta
	if p.UpVotes < 0 {
		p.UpVotes = 0
	}
	s.posts[postID] = p
	return nil
}

func (s *fakeStore) AddFollow(ctx context.Context, tx Tx, f Follow) (bool, error) {
	key := f.FollowerID + "|" + f.FolloweeID
	if _, ok := s.follows[key]; ok {
		return true, nil
	}
	s.follows[key] = f
	return false, nil
}

func (s *fakeStore) RemoveFollow(ctx context.Context, tx Tx, followerID, followeeID string) (bool, error) {
	key := followerID + "|" + followeeID
	if _, ok := s.follows[key]; !ok {
		return false, nil
	}
	delete(s.follows, key)
	return true, nil
}

func (s *fakeStore) CreateTimeline(ctx context.Context, tx Tx, exposure TimelineExposure) error {
	if _, ok := s.timelines[exposure.TimelineID]; ok {
		return nil
	}
	s.timelines[exposure.TimelineID] = exposure
	s.timelineOrder = append(s.timelineOrder, exposure.TimelineID)
	return nil
}

func (s *fakeStore) SetCurrentTick(ctx context.Context, tx Tx, tick int64) error {
	s.currentTick = tick
	return nil
}

// fakeIterator is the in-memory EventIterator used by fakeStore.Scan.
type fakeIterator struct {
	events []Event
	pos    int
}

func (it *fakeIterator) Next(ctx context.Context) (Event, bool, error) {
	if it.pos >= len(it.events) {
		return Event{}, false, nil
	}
	ev := it.events[it.pos]
	it.pos++
	return ev, true, nil
}

func (it *fakeIterator) Close() error { return nil }
