// Package kpi computes read-only health metrics over feed projections:
// Gini coefficient of attention inequality and Shannon entropy of exposure
// diversity. Neither function opens a transaction or mutates state — both
// are plain math over snapshots the caller already holds.
package kpi

import (
	"context"
	"math"
	"sort"

	"github.com/rodolfodpk/feedsim/pkg/feed"
)

// Report is the result of one KPI computation pass.
type Report struct {
	GiniUpVotes     float64 `json:"gini_up_votes"`
	ShannonEntropy  float64 `json:"shannon_entropy_authors"`
	PostCount       int     `json:"post_count"`
	TimelinesServed int     `json:"timelines_served"`
}

// Compute reads the current posts and timeline history via tx and returns
// a Report. It performs no writes.
func Compute(ctx context.Context, store feed.Store, tx feed.Tx) (Report, error) {
	posts, err := store.ListPosts(ctx, tx)
	if err != nil {
		return Report{}, err
	}

	upVotes := make([]float64, len(posts))
	for i, p := range posts {
		upVotes[i] = float64(p.UpVotes)
	}

	timelineIDs, err := store.ListTimelineIDs(ctx, tx)
	if err != nil {
		return Report{}, err
	}

	authorExposures := make(map[string]int64)
	served := 0
	for _, id := range timelineIDs {
		exposure, ok, err := store.GetTimeline(ctx, tx, id)
		if err != nil {
			return Report{}, err
		}
		if !ok {
			continue
		}
		served++
		for _, item := range exposure.Items {
			post, found, err := store.GetPost(ctx, tx, item.PostID)
			if err != nil {
				return Report{}, err
			}
			if found {
				authorExposures[post.AuthorID]++
			}
		}
	}

	return Report{
		GiniUpVotes:     Gini(upVotes),
		ShannonEntropy:  ShannonEntropy(authorExposures),
		PostCount:       len(posts),
		TimelinesServed: served,
	}, nil
}

// Gini computes the Gini coefficient of a non-negative value distribution
// using the mean-absolute-difference form:
//
//	G = sum_i sum_j |x_i - x_j| / (2 * n^2 * mean)
//
// An empty slice or a distribution with zero mean (all values zero) has no
// inequality to measure and returns 0.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}
	mean := sum / float64(n)

	var weightedSum float64
	for i, v := range sorted {
		// Sorted-array identity: sum_j |x_i - x_j| collapses to a running
		// rank-weighted term, avoiding the naive O(n^2) double loop.
		weightedSum += float64(2*(i+1)-n-1) * v
	}

	return weightedSum / (float64(n) * float64(n) * mean)
}

// ShannonEntropy computes the Shannon entropy, in bits, of the categorical
// distribution implied by counts. An empty or single-category distribution
// returns 0 (no uncertainty to measure).
func ShannonEntropy(counts map[string]int64) float64 {
	var total int64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}

	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}
