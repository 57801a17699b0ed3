// Package fusion implements C7's fusion algebra: RRF and Weighted, both
// deterministic and tie-broken by ascending chunk_id, per spec.md §4.7. The
// RRF accumulation is adapted from internal/rag/retrieve/fusion.go's
// FuseRRF; the weighted
// algorithm is new (the teacher only implements RRF).
package fusion

import (
	"sort"

	"tribridrag/internal/model"
)

// LegResult is one leg's ranked output, in leg-defined order (spec.md §4.3:
// "within each leg, order is leg-defined").
type LegResult struct {
	Source model.MatchSource
	Chunks []model.ChunkMatch // Chunk.ChunkID + Score populated; others may be empty pending hydration
}

// Method selects the fusion algebra.
type Method string

const (
	RRF      Method = "rrf"
	Weighted Method = "weighted"
)

// Weights carries the per-leg weights used by Weighted fusion.
type Weights struct {
	Vector float64
	Sparse float64
	Graph  float64
}

// Fuse combines legs (always handed to it in dispatcher order: vector,
// sparse, graph — spec.md §4.3/§5) into a single ordered, deduplicated list
// of ChunkMatch. Score carries the fused value; per-leg scores are not
// retained. A chunk found by several legs keeps the first leg's copy,
// including the LegMeta that leg attached; later legs' LegMeta is dropped.
func Fuse(method Method, legs []LegResult, rrfK int, weights Weights) []model.ChunkMatch {
	switch method {
	case Weighted:
		return fuseWeighted(legs, weights)
	default:
		return fuseRRF(legs, rrfK)
	}
}

type accum struct {
	chunk    model.ChunkMatch
	score    float64
	rankSum  int // sum of 1-indexed ranks; not used by the sort, which breaks ties by chunk_id
	seenOnce bool
}

// fuseRRF: score(c) = sum over legs L containing c at rank r (1-indexed) of
// 1/(rrf_k + r). Tie-break: ascending chunk_id (spec.md §4.7, §8 invariant,
// and §8 scenario 3).
func fuseRRF(legs []LegResult, rrfK int) []model.ChunkMatch {
	if rrfK <= 0 {
		rrfK = 60
	}
	byID := map[string]*accum{}
	order := make([]string, 0)

	for _, leg := range legs {
		for rank, cm := range leg.Chunks {
			r := rank + 1 // 1-indexed
			contrib := 1.0 / float64(rrfK+r)
			a, ok := byID[cm.ChunkID]
			if !ok {
				c := cm
				c.Source = model.SourceFused
				a = &accum{chunk: c}
				byID[cm.ChunkID] = a
				order = append(order, cm.ChunkID)
			}
			a.score += contrib
			a.rankSum += r
		}
	}

	out := make([]model.ChunkMatch, 0, len(order))
	for _, id := range order {
		a := byID[id]
		a.chunk.Score = a.score
		out = append(out, a.chunk)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

// fuseWeighted: each leg's raw scores are min-max normalized to [0,1]
// independently, then Σ w_leg · score_leg_normalized. Chunks missing from a
// leg contribute 0 from that leg. This per-leg normalization is a deliberate
// spec.md requirement beyond what the Python original implements (the
// original multiplies raw scores by weight without normalizing) — see
// DESIGN.md.
func fuseWeighted(legs []LegResult, weights Weights) []model.ChunkMatch {
	byID := map[string]*model.ChunkMatch{}
	order := make([]string, 0)
	scores := map[string]float64{}

	for _, leg := range legs {
		w := legWeight(leg.Source, weights)
		normalized := minMaxNormalize(leg.Chunks)
		for i, cm := range leg.Chunks {
			if _, ok := byID[cm.ChunkID]; !ok {
				c := cm
				c.Source = model.SourceFused
				byID[cm.ChunkID] = &c
				order = append(order, cm.ChunkID)
			}
			scores[cm.ChunkID] += w * normalized[i]
		}
	}

	out := make([]model.ChunkMatch, 0, len(order))
	for _, id := range order {
		c := *byID[id]
		c.Score = scores[id]
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

func legWeight(source model.MatchSource, w Weights) float64 {
	switch source {
	case model.SourceVector:
		return w.Vector
	case model.SourceSparse:
		return w.Sparse
	case model.SourceGraph:
		return w.Graph
	default:
		return 1
	}
}

// minMaxNormalize maps chunks' raw scores to [0,1]; a leg with a single
// distinct score (or empty input) normalizes every entry to 1 to avoid a
// divide-by-zero collapsing all candidates to 0.
func minMaxNormalize(chunks []model.ChunkMatch) []float64 {
	out := make([]float64, len(chunks))
	if len(chunks) == 0 {
		return out
	}
	min, max := chunks[0].Score, chunks[0].Score
	for _, c := range chunks {
		if c.Score < min {
			min = c.Score
		}
		if c.Score > max {
			max = c.Score
		}
	}
	spread := max - min
	for i, c := range chunks {
		if spread == 0 {
			out[i] = 1
			continue
		}
		out[i] = (c.Score - min) / spread
	}
	return out
}
