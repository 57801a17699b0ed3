// Package rerank implements reranker orchestration (C7a): mode dispatch over
// {none, local, learning, cloud}, always fail-open, per spec.md §4.8.
// Generalized from internal/rag/retrieve/rerank.go's Reranker
// interface/NoopReranker stub (the teacher never implements a real mode; this
// package supplies all four).
package rerank

import (
	"context"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"tribridrag/internal/model"
)

// Mode selects the reranker orchestration mode.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeLocal    Mode = "local"
	ModeLearning Mode = "learning"
	ModeCloud    Mode = "cloud"
)

// CrossEncoder scores (query, chunk content) pairs. A local in-process
// cross-encoder and a corpus-scoped fine-tuned one both satisfy this.
type CrossEncoder interface {
	Score(ctx context.Context, query string, contents []string) ([]float64, error)
}

// CloudReranker calls an external rerank API (e.g. Cohere-style).
type CloudReranker interface {
	Rerank(ctx context.Context, query string, contents []string) ([]float64, string, error) // scores, traceID, error
}

// Options configures one invocation.
type Options struct {
	Mode Mode

	Local CrossEncoder

	LearningArtifactPath string
	Learning             CrossEncoder

	Cloud CloudReranker

	BatchSize int
}

// modelCache tracks idle-unload timestamps per (mode, artifact path), per
// spec.md §5's "Reranker models are cached in-process ... idle unload after a
// configurable inactivity window." Concurrent inference per model instance is
// serialized by an in-use counter via a semaphore, preventing premature
// unload races.
type modelCache struct {
	mu          sync.Mutex
	lastUsed    map[string]time.Time
	inFlight    map[string]*semaphore.Weighted
}

var cache = &modelCache{
	lastUsed: map[string]time.Time{},
	inFlight: map[string]*semaphore.Weighted{},
}

func (c *modelCache) touch(key string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed[key] = time.Now()
	sem, ok := c.inFlight[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		c.inFlight[key] = sem
	}
	return sem
}

// IdleSince reports how long a cached model instance has been unused. Nothing
// in this module calls it or evicts entries: IdleUnloadSeconds is not read
// here, and entries stay in the cache for the life of the process.
func (c *modelCache) IdleSince(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastUsed[key]
	if !ok {
		return 0
	}
	return time.Since(last)
}

// Rerank applies the configured mode over candidates (already fused,
// truncated to the reranker input pool by the caller per spec.md §4.7 step
// 1). It never fails the request: on any internal error it returns the input
// order unchanged with debug.Applied=false and a populated error/skip reason.
func Rerank(ctx context.Context, query string, candidates []model.ChunkMatch, opt Options) ([]model.ChunkMatch, model.RerankDebugInfo) {
	switch opt.Mode {
	case ModeLocal:
		return rerankWithEncoder(ctx, query, candidates, opt.Local, string(ModeLocal), opt.BatchSize)
	case ModeLearning:
		return rerankLearning(ctx, query, candidates, opt)
	case ModeCloud:
		return rerankCloud(ctx, query, candidates, opt.Cloud)
	default:
		return candidates, model.RerankDebugInfo{Applied: false, SkippedReason: "mode_none"}
	}
}

func rerankLearning(ctx context.Context, query string, candidates []model.ChunkMatch, opt Options) ([]model.ChunkMatch, model.RerankDebugInfo) {
	if opt.Learning == nil || !artifactPresent(opt.LearningArtifactPath) {
		return candidates, model.RerankDebugInfo{Applied: false, SkippedReason: "missing_trained_model"}
	}
	return rerankWithEncoder(ctx, query, candidates, opt.Learning, opt.LearningArtifactPath, opt.BatchSize)
}

// artifactPresent checks for a weights shard in the corpus-scoped artifact
// directory, per spec.md §4.8: "If the artifact directory is missing weights
// (model.safetensors or equivalent shard), the reranker MUST skip."
func artifactPresent(dir string) bool {
	if dir == "" {
		return false
	}
	candidates := []string{"model.safetensors", "pytorch_model.bin", "model.bin"}
	for _, c := range candidates {
		if info, err := os.Stat(dir + "/" + c); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

func rerankWithEncoder(ctx context.Context, query string, candidates []model.ChunkMatch, enc CrossEncoder, cacheKey string, batchSize int) ([]model.ChunkMatch, model.RerankDebugInfo) {
	if enc == nil {
		return candidates, model.RerankDebugInfo{Applied: false, SkippedReason: "no_encoder_configured"}
	}
	sem := cache.touch(cacheKey)
	if err := sem.Acquire(ctx, 1); err != nil {
		return candidates, model.RerankDebugInfo{Applied: false, Error: "acquire_failed", ErrorMessage: safeMessage(err)}
	}
	defer sem.Release(1)

	if batchSize <= 0 {
		batchSize = 16
	}
	contents := make([]string, len(candidates))
	for i, c := range candidates {
		contents[i] = c.Content
	}

	scores, err := enc.Score(ctx, query, contents)
	if err != nil || len(scores) != len(candidates) {
		return candidates, model.RerankDebugInfo{Applied: false, Error: "inference_failed", ErrorMessage: safeMessage(err)}
	}

	out := make([]model.ChunkMatch, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].RerankOf = out[i].Score
		out[i].Score = scores[i]
	}
	sortByScoreDesc(out)
	return out, model.RerankDebugInfo{Applied: true, CandidatesReranked: len(out)}
}

func rerankCloud(ctx context.Context, query string, candidates []model.ChunkMatch, cloud CloudReranker) ([]model.ChunkMatch, model.RerankDebugInfo) {
	if cloud == nil {
		return candidates, model.RerankDebugInfo{Applied: false, SkippedReason: "no_cloud_provider_configured"}
	}
	contents := make([]string, len(candidates))
	for i, c := range candidates {
		contents[i] = c.Content
	}
	scores, traceID, err := cloud.Rerank(ctx, query, contents)
	if err != nil {
		// Fusion order preserved on error (spec.md §4.8).
		return candidates, model.RerankDebugInfo{Applied: false, Error: "cloud_rerank_failed", ErrorMessage: safeMessage(err), DebugTraceID: traceID}
	}
	if len(scores) != len(candidates) {
		return candidates, model.RerankDebugInfo{Applied: false, Error: "cloud_rerank_shape_mismatch", DebugTraceID: traceID}
	}
	out := make([]model.ChunkMatch, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].RerankOf = out[i].Score
		out[i].Score = scores[i]
	}
	sortByScoreDesc(out)
	return out, model.RerankDebugInfo{Applied: true, CandidatesReranked: len(out), DebugTraceID: traceID}
}

func sortByScoreDesc(items []model.ChunkMatch) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Score > items[j-1].Score; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func safeMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	const maxLen = 256
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
