package feed

import (
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"
	"strconv"
	"strings"
)

// splitMix64 is a fixed, portable 64-bit mixer (Vigna's SplitMix64). It is
// used both to derive stable on-disk identifiers from their inputs and to
// break ranking ties: same inputs, same bits, on any platform, forever.
func splitMix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	z := x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)
	return z
}

// fnv64 hashes s with FNV-1a into a uint64. Used only as a portable
// string-to-uint64 step ahead of splitMix64 — never relied upon alone for
// tie-break quality.
func fnv64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// mix64 combines two uint64 values deterministically via splitMix64,
// order-sensitive (mix64(a,b) != mix64(b,a) in general).
func mix64(a, b uint64) uint64 {
	return splitMix64(a ^ splitMix64(b))
}

// H is the fixed, portable hash referenced throughout spec.md as
// H(seed, post_id) and H("post", op_id): it folds an arbitrary number of
// string parts into a single deterministic uint64.
func H(parts ...string) uint64 {
	acc := splitMix64(0)
	for _, p := range parts {
		acc = mix64(acc, fnv64(p))
	}
	return acc
}

// idFromHash renders a 64-bit hash as a fixed-width lowercase hex string,
// used as the stable on-disk identifier for posts, comments, and timelines.
func idFromHash(h uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], h)
	return hex.EncodeToString(b[:])
}

// DerivePostID computes post_id := H("post", op_id) per spec.md §6.1.
func DerivePostID(opID string) string {
	return idFromHash(H("post", opID))
}

// DeriveCommentID computes comment_id := H("comment", op_id) per spec.md §6.1.
func DeriveCommentID(opID string) string {
	return idFromHash(H("comment", opID))
}

// DeriveTimelineID computes the timeline_id per spec.md §4.5: a hash of
// the run id, user id, current tick, algorithm, seed, and a counter that
// callers take from Store.NextTimelineCounter (the number of timelines
// already projected, across all runs). The counter is folded in as a
// decimal string so two calls with identical other inputs but different
// counters never collide.
func DeriveTimelineID(runID, userID string, tick int64, algorithm Algorithm, seed int64, counter int64) string {
	return idFromHash(H(
		"timeline",
		runID,
		userID,
		strconv.FormatInt(tick, 10),
		string(algorithm),
		strconv.FormatInt(seed, 10),
		strconv.FormatInt(counter, 10),
	))
}

// TieBreakKey computes H(seed, post_id) used by the ranker to order posts
// with equal score deterministically.
func TieBreakKey(seed int64, postID string) uint64 {
	return H(strconv.FormatInt(seed, 10), postID)
}

// NewRunID derives a run id from a seed and a human-supplied label so runs
// started with the same seed and label are identifiable without relying on
// wall-clock time or randomness.
func NewRunID(seed int64, label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "run"
	}
	return idFromHash(H("run", label, strconv.FormatInt(seed, 10)))
}
