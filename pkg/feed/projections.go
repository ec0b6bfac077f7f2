package feed

// User is projection entity §3.2: created by the first event mentioning it
// as an actor, never destroyed.
type User struct {
	UserID      string
	CreatedTick int64
}

// Post is projection entity §3.2. UpVotes is maintained solely by the
// reducer and never written directly by a caller.
type Post struct {
	PostID      string
	AuthorID    string
	Body        string
	CreatedTick int64
	UpVotes     int64
}

// Comment is projection entity §3.2.
type Comment struct {
	CommentID   string
	PostID      string
	AuthorID    string
	Body        string
	CreatedTick int64
}

// Vote is projection entity §3.2: set semantics, at most one per (user, post).
type Vote struct {
	UserID string
	PostID string
	Tick   int64
}

// Follow is projection entity §3.2: set semantics, at most one per ordered
// pair, self-follow forbidden.
type Follow struct {
	FollowerID string
	FolloweeID string
	Tick       int64
}

// TimelineItemRow is one row of the timeline_items projection table.
type TimelineItemRow struct {
	TimelineID string
	Position   int
	PostID     string
	Score      float64
	Features   Features
}

// TimelineExposure is projection entity §3.2: the record of what a
// timeline_served event showed a user, used by Action Admission to
// validate the exposure tie.
type TimelineExposure struct {
	TimelineID     string
	UserID         string
	Tick           int64
	Algorithm      Algorithm
	K              int
	Seed           int64
	RankingVersion int
	Items          []TimelineItemRow
}

// ItemAt returns the item at the given position, if any.
func (t TimelineExposure) ItemAt(position int) (TimelineItemRow, bool) {
	for _, item := range t.Items {
		if item.Position == position {
			return item, true
		}
	}
	return TimelineItemRow{}, false
}
