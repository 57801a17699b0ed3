// Package graph implements the Graph Leg (C6): entity matching, k-hop typed-
// edge expansion with decay scoring, and hydration to chunks via IN_CHUNK
// edges, per spec.md §4.6. Grounded on
// internal/rag/retrieve/graph_expand.go's hop-expansion/dedup shape and
// internal/persistence/databases/postgres_graph.go's node/edge table design.
package graph

import (
	"context"
	"math"
	"strings"

	"tribridrag/internal/model"
)

// EdgeWeights carries the per-relation-type weights read from config
// (ast_{contains,inherits,imports,calls}_weight), never hardcoded.
type EdgeWeights struct {
	Contains float64
	Inherits float64
	Imports  float64
	Calls    float64
}

func (w EdgeWeights) forType(rel model.RelationType) float64 {
	switch rel {
	case model.RelContains:
		return w.Contains
	case model.RelInherits:
		return w.Inherits
	case model.RelImports:
		return w.Imports
	case model.RelCalls:
		return w.Calls
	default:
		return 1
	}
}

// Store is the minimal graph port; a parameterized-Cypher or Postgres-backed
// implementation lives in internal/store. corpus_id and tokens are always
// parameterized; max_hops is bounds-checked at this edge before being
// inlined into any query (driver limitation, per spec.md §4.6).
type Store interface {
	// MatchEntitiesByToken returns entities whose name matches any of tokens
	// (case-insensitive), scoped to corpusID.
	MatchEntitiesByToken(ctx context.Context, corpusID string, tokens []string) ([]model.Entity, error)
	// Expand returns, for each given entity id, its directly connected
	// (entity_id, relation_type) neighbors one hop away.
	Expand(ctx context.Context, corpusID string, entityIDs []string) ([]Edge, error)
	// HydrateToChunks maps entities to chunk ids via IN_CHUNK edges (or a
	// (file_path, start_line, end_line) containment check when edges are
	// absent — that fallback is the store's concern, not the leg's).
	HydrateToChunks(ctx context.Context, corpusID string, entityIDs []string) ([]ChunkHydration, error)
}

// Edge is one hop's discovered neighbor.
type Edge struct {
	FromEntityID string
	ToEntityID   string
	RelType      model.RelationType
}

// ChunkHydration links an entity to a chunk it appears in.
type ChunkHydration struct {
	EntityID string
	ChunkID  string
}

// Options configures one invocation, all values sourced from config.
type Options struct {
	CorpusID         string
	MaxHops          int
	BaseBoost        float64
	Decay            float64 // (0, 1]
	DirectMatchBoost float64
	Weights          EdgeWeights
}

// Leg is the Graph Leg.
type Leg struct {
	store Store
}

func New(store Store) *Leg { return &Leg{store: store} }

type entityHop struct {
	entity      model.Entity
	hops        int
	directMatch bool
	viaWeight   float64 // edge weight of the relation that reached it first
}

// Run tokenizes the query, finds direct-match entities, expands up to
// max_hops over typed edges, hydrates to chunks, and scores via
// max-of-contributions (spec.md §4.6, §8 scenario 4).
func (l *Leg) Run(ctx context.Context, query string, opt Options) ([]model.ChunkMatch, error) {
	maxHops := opt.MaxHops
	if maxHops <= 0 {
		maxHops = 2
	}
	if maxHops > 10 {
		maxHops = 10 // bounds-check at the edge; never trust an unbounded value into a query
	}

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	direct, err := l.store.MatchEntitiesByToken(ctx, opt.CorpusID, tokens)
	if err != nil {
		return nil, err
	}
	if len(direct) == 0 {
		return nil, nil
	}

	visited := map[string]*entityHop{}
	frontier := make([]string, 0, len(direct))
	for _, e := range direct {
		visited[e.EntityID] = &entityHop{entity: e, hops: 0, directMatch: true, viaWeight: 1}
		frontier = append(frontier, e.EntityID)
	}

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		edges, err := l.store.Expand(ctx, opt.CorpusID, frontier)
		if err != nil {
			return nil, err
		}
		next := make([]string, 0)
		for _, edge := range edges {
			if _, seen := visited[edge.ToEntityID]; seen {
				continue
			}
			visited[edge.ToEntityID] = &entityHop{
				entity:    model.Entity{EntityID: edge.ToEntityID, CorpusID: opt.CorpusID},
				hops:      hop,
				viaWeight: opt.Weights.forType(edge.RelType),
			}
			next = append(next, edge.ToEntityID)
		}
		frontier = next
	}

	entityIDs := make([]string, 0, len(visited))
	for id := range visited {
		entityIDs = append(entityIDs, id)
	}
	hydrations, err := l.store.HydrateToChunks(ctx, opt.CorpusID, entityIDs)
	if err != nil {
		return nil, err
	}

	baseBoost := opt.BaseBoost
	if baseBoost <= 0 {
		baseBoost = 1
	}
	decay := opt.Decay
	if decay <= 0 || decay > 1 {
		decay = 0.5
	}
	directBoost := opt.DirectMatchBoost
	if directBoost < 1 {
		directBoost = 1
	}

	// Score is max over contributing entities per chunk, not sum — avoids
	// rewarding fan-out (spec.md §4.6).
	chunkScore := map[string]float64{}
	chunkHops := map[string]int{}
	chunkDirect := map[string]bool{}
	for _, h := range hydrations {
		eh, ok := visited[h.EntityID]
		if !ok {
			continue
		}
		contrib := baseBoost * math.Pow(decay, float64(eh.hops)) * eh.viaWeight
		if eh.directMatch {
			contrib *= directBoost
		}
		if contrib > chunkScore[h.ChunkID] {
			chunkScore[h.ChunkID] = contrib
			chunkHops[h.ChunkID] = eh.hops
			chunkDirect[h.ChunkID] = eh.directMatch
		}
	}

	out := make([]model.ChunkMatch, 0, len(chunkScore))
	for chunkID, score := range chunkScore {
		out = append(out, model.ChunkMatch{
			Chunk:  model.Chunk{ChunkID: chunkID, CorpusID: opt.CorpusID},
			Score:  score,
			Source: model.SourceGraph,
			LegMeta: map[string]any{
				"hops":         chunkHops[chunkID],
				"direct_match": chunkDirect[chunkID],
			},
		})
	}
	return out, nil
}

func tokenize(q string) []string {
	fields := strings.Fields(strings.ToLower(q))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
