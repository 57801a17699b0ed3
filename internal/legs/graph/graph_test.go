package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribridrag/internal/model"
)

type fakeStore struct {
	entities []model.Entity
	edges    map[string][]Edge // from entity id -> edges
	hydrate  []ChunkHydration
}

func (f fakeStore) MatchEntitiesByToken(context.Context, string, []string) ([]model.Entity, error) {
	return f.entities, nil
}

func (f fakeStore) Expand(_ context.Context, _ string, entityIDs []string) ([]Edge, error) {
	var out []Edge
	for _, id := range entityIDs {
		out = append(out, f.edges[id]...)
	}
	return out, nil
}

func (f fakeStore) HydrateToChunks(context.Context, string, []string) ([]ChunkHydration, error) {
	return f.hydrate, nil
}

// Scenario 4 (spec.md §8): one direct-match entity (hops=0) hydrating to
// c_a, one at hops=2 hydrating to c_b. score(c_a) > score(c_b).
func TestRunScenario4GraphHopDecay(t *testing.T) {
	store := fakeStore{
		entities: []model.Entity{{EntityID: "e_direct", Name: "auth"}},
		edges: map[string][]Edge{
			"e_direct": {{FromEntityID: "e_direct", ToEntityID: "e_hop1", RelType: model.RelCalls}},
			"e_hop1":   {{FromEntityID: "e_hop1", ToEntityID: "e_hop2", RelType: model.RelCalls}},
		},
		hydrate: []ChunkHydration{
			{EntityID: "e_direct", ChunkID: "c_a"},
			{EntityID: "e_hop2", ChunkID: "c_b"},
		},
	}
	leg := New(store)
	out, err := leg.Run(context.Background(), "auth", Options{
		CorpusID: "c1", MaxHops: 2, BaseBoost: 1, Decay: 0.5, DirectMatchBoost: 1.5,
		Weights: EdgeWeights{Calls: 0.9},
	})
	require.NoError(t, err)

	scores := map[string]float64{}
	for _, m := range out {
		scores[m.ChunkID] = m.Score
		assert.Equal(t, model.SourceGraph, m.Source)
	}
	assert.Greater(t, scores["c_a"], scores["c_b"])
}

func TestRunNoDirectMatchReturnsEmpty(t *testing.T) {
	leg := New(fakeStore{})
	out, err := leg.Run(context.Background(), "nothing matches", Options{CorpusID: "c1"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunBoundsHopsAtEdge(t *testing.T) {
	store := fakeStore{entities: []model.Entity{{EntityID: "e1"}}}
	leg := New(store)
	_, err := leg.Run(context.Background(), "e1", Options{CorpusID: "c1", MaxHops: 9999})
	require.NoError(t, err)
}
