package recall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultGateConfig() GateConfig {
	return GateConfig{
		Enabled:                 true,
		DefaultIntensity:        IntensityStandard,
		SkipGreetings:           true,
		SkipStandaloneQuestions: false,
		SkipWhenRAGActive:       false,
		LightForShortQuestions:  true,
		SkipMaxTokens:           3,
		LightTopK:               5,
		StandardTopK:            10,
		DeepTopK:                20,
		StandardRecencyWeight:   0.5,
		DeepRecencyWeight:       0.9,
	}
}

func TestGateSkipsGreeting(t *testing.T) {
	plan := Classify("hi", 3, false, false, defaultGateConfig(), "")
	assert.Equal(t, IntensitySkip, plan.Intensity)
}

func TestGateDeepOnExplicitRecallTrigger(t *testing.T) {
	plan := Classify("what did we discuss about auth?", 2, false, false, defaultGateConfig(), "")
	assert.Equal(t, IntensityDeep, plan.Intensity)
	assert.Equal(t, 0.9, plan.FusionOverrides.RecencyWeight)
}

func TestGateStandardOnDefiniteArticle(t *testing.T) {
	plan := Classify("can you fix the bug we found", 1, false, false, defaultGateConfig(), "")
	assert.Equal(t, IntensityStandard, plan.Intensity)
}

func TestGateFirstMessageUsesDefault(t *testing.T) {
	plan := Classify("a completely generic novel statement here", 0, false, false, defaultGateConfig(), "")
	assert.Equal(t, IntensityStandard, plan.Intensity)
}

func TestGateUserOverrideWins(t *testing.T) {
	plan := Classify("hi", 3, false, false, defaultGateConfig(), IntensityDeep)
	assert.Equal(t, IntensityDeep, plan.Intensity)
	assert.True(t, plan.UserOverride)
}

func TestApplyOverridesByReplacement(t *testing.T) {
	plan := Classify("what did we discuss about auth?", 2, false, false, defaultGateConfig(), "")
	topK, includeVector, includeSparse := plan.ApplyOverrides(5, true, true)
	assert.Equal(t, 20, topK)
	assert.True(t, includeVector)
	assert.True(t, includeSparse)
}
