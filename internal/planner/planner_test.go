package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribridrag/internal/config"
	"tribridrag/internal/model"
	"tribridrag/internal/recall"
)

func TestBuildActiveLegsIntersectEnabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Retrieval.EnableGraph = false
	req := model.RetrievalRequest{Query: "q", IncludeVector: true, IncludeSparse: true, IncludeGraph: true}
	plan := Build(req, cfg, nil, "", false, false, "")
	assert.True(t, plan.IncludeVector)
	assert.True(t, plan.IncludeSparse)
	assert.False(t, plan.IncludeGraph)
}

func TestBuildFinalKRequestOverride(t *testing.T) {
	cfg := config.Defaults()
	req := model.RetrievalRequest{Query: "q", TopK: 42}
	plan := Build(req, cfg, nil, "", false, false, "")
	assert.Equal(t, 42, plan.FinalK)
}

func TestBuildExpansionVariants(t *testing.T) {
	cfg := config.Defaults()
	cfg.Retrieval.MultiQueryEnabled = true
	cfg.Retrieval.MultiQueryM = 2
	req := model.RetrievalRequest{Query: "fix auth error"}
	plan := Build(req, cfg, nil, "", false, false, "")
	assert.NotEmpty(t, plan.ExpansionVariants)
}

// Scenario 6 (spec.md §8): recall gate skip/deep classification flows through.
func TestBuildRecallGateScenario6(t *testing.T) {
	cfg := config.Defaults()
	gateCfg := recall.GateConfig{
		Enabled: true, DefaultIntensity: recall.IntensityStandard,
		SkipGreetings: true, LightForShortQuestions: true, SkipMaxTokens: 3,
		LightTopK: 5, StandardTopK: 10, DeepTopK: 20, DeepRecencyWeight: 0.9,
	}
	req := model.RetrievalRequest{Query: "n/a", ConversationTurn: 3}
	plan := Build(req, cfg, &gateCfg, "hi", false, false, "")
	require.NotNil(t, plan.RecallPlan)
	assert.Equal(t, recall.IntensitySkip, plan.RecallPlan.Intensity)

	plan2 := Build(req, cfg, &gateCfg, "what did we discuss about auth?", false, false, "")
	require.NotNil(t, plan2.RecallPlan)
	assert.Equal(t, recall.IntensityDeep, plan2.RecallPlan.Intensity)
	assert.Equal(t, gateCfg.DeepRecencyWeight, plan2.RecallPlan.FusionOverrides.RecencyWeight)
}
