package config

import "fmt"

// Normalize applies the load-time invariants from spec.md §3/§8:
//   - bm25_weight + vector_weight normalized to sum 1 (never hard-fail; total 0
//     resets to (0.3, 0.7)).
//   - chunk_overlap < chunk_size (hard-fail on violation).
//   - rrf_k clamped to [1, 200]; final_k clamped to [1, 100].
//
// It mutates cfg in place and returns an error only for the one invariant the
// spec marks as hard-fail (chunk overlap/size).
func Normalize(cfg *ScopedConfiguration) error {
	if cfg.Retrieval.ChunkOverlap >= cfg.Retrieval.ChunkSize {
		return fmt.Errorf("config: chunk_overlap (%d) must be < chunk_size (%d)",
			cfg.Retrieval.ChunkOverlap, cfg.Retrieval.ChunkSize)
	}

	total := cfg.Fusion.BM25Weight + cfg.Fusion.VectorWeight
	switch {
	case total == 0:
		cfg.Fusion.BM25Weight, cfg.Fusion.VectorWeight = 0.3, 0.7
	case total != 1:
		cfg.Fusion.BM25Weight /= total
		cfg.Fusion.VectorWeight /= total
	}

	if cfg.Fusion.RRFK < 1 {
		cfg.Fusion.RRFK = 1
	} else if cfg.Fusion.RRFK > 200 {
		cfg.Fusion.RRFK = 200
	}

	if cfg.Retrieval.FinalK < 1 {
		cfg.Retrieval.FinalK = 1
	} else if cfg.Retrieval.FinalK > 100 {
		cfg.Retrieval.FinalK = 100
	}

	return nil
}
