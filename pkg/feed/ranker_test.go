package feed

import "testing"

func TestScore_New(t *testing.T) {
	score, err := Score(AlgorithmNew, Post{CreatedTick: 7}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 7 {
		t.Fatalf("want score 7, got %v", score)
	}
}

func TestScore_Top(t *testing.T) {
	score, err := Score(AlgorithmTop, Post{UpVotes: 42}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 42 {
		t.Fatalf("want score 42, got %v", score)
	}
}

func TestScore_Hot_ClampsZeroUpVotes(t *testing.T) {
	withZero, err := Score(AlgorithmHot, Post{UpVotes: 0, CreatedTick: 0}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withOne, err := Score(AlgorithmHot, Post{UpVotes: 1, CreatedTick: 0}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withZero != withOne {
		t.Fatalf("hot score should clamp up_votes<1 to 1: got %v vs %v", withZero, withOne)
	}
}

func TestScore_UnknownAlgorithm(t *testing.T) {
	_, err := Score(Algorithm("nonsense"), Post{}, 0)
	if !isUnknownAlgorithmErr(err) {
		t.Fatalf("expected UnknownAlgorithmError, got %v", err)
	}
}

func TestRank_Deterministic(t *testing.T) {
	candidates := []Post{
		{PostID: "a", UpVotes: 5, CreatedTick: 0},
		{PostID: "b", UpVotes: 5, CreatedTick: 0},
		{PostID: "c", UpVotes: 9, CreatedTick: 0},
	}

	first, err := Rank(AlgorithmTop, candidates, 10, 99, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Rank(AlgorithmTop, candidates, 10, 99, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("length mismatch between identical Rank calls")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("item %d differs between identical Rank calls: %+v != %+v", i, first[i], second[i])
		}
	}

	if first[0].PostID != "c" {
		t.Fatalf("want highest up_votes post first, got %q", first[0].PostID)
	}
}

func TestRank_TieBreakIsStableForSameSeed(t *testing.T) {
	candidates := []Post{
		{PostID: "a", UpVotes: 5, CreatedTick: 0},
		{PostID: "b", UpVotes: 5, CreatedTick: 0},
	}

	seed1, err := Rank(AlgorithmTop, candidates, 0, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seed1Again, err := Rank(AlgorithmTop, candidates, 0, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seed1[0].PostID != seed1Again[0].PostID {
		t.Fatalf("same seed must break ties the same way every time")
	}
}

func TestRank_TruncatesToK(t *testing.T) {
	candidates := []Post{
		{PostID: "a", UpVotes: 1},
		{PostID: "b", UpVotes: 2},
		{PostID: "c", UpVotes: 3},
	}
	items, err := Rank(AlgorithmTop, candidates, 0, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("want 2 items, got %d", len(items))
	}
}

func TestRank_UnknownAlgorithm(t *testing.T) {
	_, err := Rank(Algorithm("bogus"), nil, 0, 0, 10)
	if !isUnknownAlgorithmErr(err) {
		t.Fatalf("expected UnknownAlgorithmError, got %v", err)
	}
}

func isUnknownAlgorithmErr(err error) bool {
	_, ok := err.(*UnknownAlgorithmError)
	return ok
}
