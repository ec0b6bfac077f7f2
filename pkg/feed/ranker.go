package feed

import (
	"math"
	"sort"
)

// scoredPost is an internal working value: a post plus its computed score,
// kept alongside the tie-break key so sorting is a single deterministic
// comparison.
type scoredPost struct {
	post     Post
	score    float64
	tieBreak uint64
	age      int64
}

// Score computes the raw score for post under algorithm at currentTick.
// UnknownAlgorithmError is returned for any tag outside {new, top, hot}.
func Score(algorithm Algorithm, post Post, currentTick int64) (float64, error) {
	switch algorithm {
	case AlgorithmNew:
		return float64(post.CreatedTick), nil
	case AlgorithmTop:
		return float64(post.UpVotes), nil
	case AlgorithmHot:
		upVotes := post.UpVotes
		if upVotes < 1 {
			upVotes = 1
		}
		age := currentTick - post.CreatedTick
		return math.Log10(float64(upVotes)) - 0.1*float64(age), nil
	default:
		return 0, &UnknownAlgorithmError{
			KernelError: KernelError{Op: "rank"},
			Algorithm:   string(algorithm),
		}
	}
}

// Rank deterministically scores candidates under algorithm, breaks ties
// with H(seed, post_id), and returns the top k items with their recorded
// feature vectors (spec.md §4.4). Running Rank twice on the same inputs
// always yields the same items including scores (spec.md §8 property 7).
func Rank(algorithm Algorithm, candidates []Post, currentTick int64, seed int64, k int) ([]TimelineItemPayload, error) {
	if !ValidAlgorithm(algorithm) {
		return nil, &UnknownAlgorithmError{
			KernelError: KernelError{Op: "rank"},
			Algorithm:   string(algorithm),
		}
	}
	if k < 0 {
		k = 0
	}

	scored := make([]scoredPost, 0, len(candidates))
	for _, post := range candidates {
		score, err := Score(algorithm, post, currentTick)
		if err != nil {
			return nil, err
		}
		scored = append(scored, scoredPost{
			post:     post,
			score:    score,
			tieBreak: TieBreakKey(seed, post.PostID),
			age:      currentTick - post.CreatedTick,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].tieBreak > scored[j].tieBreak
	})

	if k < len(scored) {
		scored = scored[:k]
	}

	items := make([]TimelineItemPayload, len(scored))
	for i, sp := range scored {
		items[i] = TimelineItemPayload{
			PostID:   sp.post.PostID,
			Position: i,
			Score:    sp.score,
			Features: Features{
				Score:          sp.score,
				UpVotes:        sp.post.UpVotes,
				Age:            sp.age,
				Algorithm:      algorithm,
				RankingVersion: RankingVersion,
			},
		}
	}
	return items, nil
}
