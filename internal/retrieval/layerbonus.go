package retrieval

import (
	"strings"

	"tribridrag/internal/config"
	"tribridrag/internal/model"
)

// applyLayerBonuses implements §4.7 step 3: post-fusion, pre-rerank score
// adjustment. Each contributing source (intent/layer match, path boost,
// vendor penalty) is an additive bonus; bonuses are summed then converted to
// a multiplicative factor via factor = 1 + bonus before being applied to the
// match's fused score, per the spec's exact conversion rule. A no-op when
// cfg.LayerBonus.Enabled is false, which is the default.
func applyLayerBonuses(matches []model.ChunkMatch, cfg config.ScopedConfiguration) []model.ChunkMatch {
	lb := cfg.LayerBonus
	if !lb.Enabled {
		return matches
	}
	intent := "default"
	for i := range matches {
		bonus := intentLayerBonus(lb, intent, layerOf(matches[i].FilePath))
		bonus += pathBonus(lb, matches[i].FilePath)
		bonus += vendorPenalty(lb, matches[i].FilePath)
		matches[i].Score *= 1 + bonus
	}
	return matches
}

// layerOf derives a coarse "layer" label from a chunk's file_path as a
// stand-in for richer layer metadata the indexing pipeline (out of scope
// here) would otherwise attach directly to the chunk.
func layerOf(filePath string) string {
	switch {
	case strings.Contains(filePath, "_test.go"), strings.Contains(filePath, "/test/"), strings.Contains(filePath, "/tests/"):
		return "test"
	case strings.Contains(filePath, "/docs/"), strings.HasSuffix(filePath, ".md"):
		return "docs"
	case strings.Contains(filePath, "/internal/"):
		return "internal"
	case strings.Contains(filePath, "/cmd/"):
		return "cmd"
	default:
		return "code"
	}
}

func intentLayerBonus(lb config.LayerBonusConfig, intent, layer string) float64 {
	byLayer, ok := lb.IntentLayerMatrix[intent]
	if !ok {
		return 0
	}
	return byLayer[layer]
}

func pathBonus(lb config.LayerBonusConfig, filePath string) float64 {
	var total float64
	for substr, bonus := range lb.PathBoosts {
		if strings.Contains(filePath, substr) {
			total += bonus
		}
	}
	return total
}

func vendorPenalty(lb config.LayerBonusConfig, filePath string) float64 {
	for _, substr := range lb.VendorPaths {
		if strings.Contains(filePath, substr) {
			return lb.VendorPenalty
		}
	}
	return 0
}
