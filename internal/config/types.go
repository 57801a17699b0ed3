// Package config implements the Config Resolver (C1): loading the effective
// ScopedConfiguration for a (corpus_id, request) pair with per-corpus override
// over global defaults, a read-through cache, and load-time invariant
// normalization.
package config

// RetrievalConfig controls leg enablement and per-leg budgets.
type RetrievalConfig struct {
	EnableVector bool `yaml:"enable_vector"`
	EnableSparse bool `yaml:"enable_sparse"`
	EnableGraph  bool `yaml:"enable_graph"`

	TopKDense int `yaml:"topk_dense"`
	MaxTerms  int `yaml:"max_terms"`
	MaxHops   int `yaml:"max_hops"`

	FinalK int `yaml:"final_k"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	MultiQueryEnabled bool `yaml:"multi_query_enabled"`
	MultiQueryM       int  `yaml:"multi_query_m"`

	Tokenizer string `yaml:"tokenizer"` // whitespace | lowercase | stemmer
}

// ScoringConfig controls BM25 and graph edge-weight parameters.
type ScoringConfig struct {
	BM25K1 float64 `yaml:"bm25_k1"`
	BM25B  float64 `yaml:"bm25_b"`

	FilenameBoostExact   float64 `yaml:"filename_boost_exact"`
	FilenameBoostPartial float64 `yaml:"filename_boost_partial"`

	GraphBaseBoost float64 `yaml:"graph_base_boost"`
	GraphDecay     float64 `yaml:"graph_decay"`
	DirectMatchBoost float64 `yaml:"direct_match_boost"`

	ASTContainsWeight float64 `yaml:"ast_contains_weight"`
	ASTInheritsWeight float64 `yaml:"ast_inherits_weight"`
	ASTImportsWeight  float64 `yaml:"ast_imports_weight"`
	ASTCallsWeight    float64 `yaml:"ast_calls_weight"`
}

// FusionMethod selects the fusion algebra (§4.7).
type FusionMethod string

const (
	FusionRRF      FusionMethod = "rrf"
	FusionWeighted FusionMethod = "weighted"
)

// FusionConfig controls fusion weights and the reranker input pool size.
type FusionConfig struct {
	Method FusionMethod `yaml:"method"`

	RRFK int `yaml:"rrf_k"`

	BM25Weight   float64 `yaml:"bm25_weight"`
	VectorWeight float64 `yaml:"vector_weight"`
	GraphWeight  float64 `yaml:"graph_weight"`

	RerankerTopN int `yaml:"tribrid_reranker_topn"`

	HydrationMode    string `yaml:"hydration_mode"` // lazy | eager | none
	HydrationMaxChars int   `yaml:"hydration_max_chars"`
}

// RerankerMode selects the reranker orchestration mode (§4.8/C7a).
type RerankerMode string

const (
	RerankNone     RerankerMode = "none"
	RerankLocal    RerankerMode = "local"
	RerankLearning RerankerMode = "learning"
	RerankCloud    RerankerMode = "cloud"
)

// RerankConfig controls the reranker orchestration layer.
type RerankConfig struct {
	Mode RerankerMode `yaml:"mode"`

	LocalModelPath string `yaml:"local_model_path"`

	LearningArtifactPath string `yaml:"learning_artifact_path"`
	IdleUnloadSeconds    int    `yaml:"idle_unload_seconds"`

	CloudEndpoint string `yaml:"cloud_endpoint"`
	CloudAPIKeyEnv string `yaml:"cloud_api_key_env"`

	BatchSize int `yaml:"batch_size"`
}

// ChatConfig controls the recall gate and conversation behaviour.
type ChatConfig struct {
	RecallGateEnabled bool    `yaml:"recall_gate_enabled"`
	DeepRecencyWeight float64 `yaml:"deep_recency_weight"`
	StandardTopK      int     `yaml:"standard_top_k"`
	LightTopK         int     `yaml:"light_top_k"`
	DeepTopK          int     `yaml:"deep_top_k"`
	ShortMessageTokenThreshold int `yaml:"short_message_token_threshold"`
}

// GenerationConfig controls LLM provider routing and prompt construction.
type GenerationConfig struct {
	SystemPrompt string `yaml:"system_prompt"`

	DirectProviders    []string `yaml:"direct_providers"` // e.g. ["openai"]
	AggregatorEnabled  bool     `yaml:"aggregator_enabled"`
	LocalProviders     []string `yaml:"local_providers"`  // priority order, lowest index = lowest priority per spec §4.8 step 4
	ModelOverride      string   `yaml:"model_override"`
}

// LayerBonusConfig controls the optional post-fusion, pre-rerank score
// adjustment (§4.7 step 3): an (intent x layer) matrix of additive bonuses,
// plus additive path boosts and vendor penalties, summed and converted to a
// multiplicative factor via factor = 1 + bonus. "layer" is a coarse label
// (test, docs, internal, cmd or code) derived from substrings of a chunk's
// file_path, and the intent looked up in the matrix is always "default".
// Disabled (factor always 1) unless Enabled is true.
type LayerBonusConfig struct {
	Enabled bool `yaml:"enabled"`

	// IntentLayerMatrix[intent][layer] = additive bonus, e.g. "code"->"test": -0.1.
	IntentLayerMatrix map[string]map[string]float64 `yaml:"intent_layer_matrix"`

	// PathBoosts maps a file_path substring to an additive bonus, applied to
	// every match whose path contains the key (e.g. "internal/core": 0.05).
	PathBoosts map[string]float64 `yaml:"path_boosts"`

	// VendorPaths lists path substrings (e.g. "vendor/", "node_modules/")
	// that receive VendorPenalty as an additive (negative) bonus.
	VendorPaths   []string `yaml:"vendor_paths"`
	VendorPenalty float64  `yaml:"vendor_penalty"`
}

// ArchiveConfig controls the optional S3 cold-storage mirror of a corpus's
// root path. Empty means no archival target; the retrieval core never
// reads this field.
type ArchiveConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
}

// ScopedConfiguration is the structured document keyed by corpus_id (§3).
type ScopedConfiguration struct {
	CorpusID   string            `yaml:"corpus_id"`
	Retrieval  RetrievalConfig   `yaml:"retrieval"`
	Scoring    ScoringConfig     `yaml:"scoring"`
	Fusion     FusionConfig      `yaml:"fusion"`
	Rerank     RerankConfig      `yaml:"rerank"`
	Chat       ChatConfig        `yaml:"chat"`
	Generation GenerationConfig  `yaml:"generation"`
	LayerBonus LayerBonusConfig  `yaml:"layer_bonus"`
	Archive    ArchiveConfig     `yaml:"archive"`
}

// Defaults returns the global fallback configuration (§4.1). It is normalized
// by Normalize before use, same as any loaded document.
func Defaults() ScopedConfiguration {
	return ScopedConfiguration{
		CorpusID: "",
		Retrieval: RetrievalConfig{
			EnableVector: true, EnableSparse: true, EnableGraph: true,
			TopKDense: 40, MaxTerms: 12, MaxHops: 2,
			FinalK: 10, ChunkSize: 800, ChunkOverlap: 120,
			SimilarityThreshold: 0.2,
			MultiQueryEnabled: false, MultiQueryM: 2,
			Tokenizer: "lowercase",
		},
		Scoring: ScoringConfig{
			BM25K1: 1.2, BM25B: 0.75,
			FilenameBoostExact: 2.0, FilenameBoostPartial: 1.3,
			GraphBaseBoost: 1.0, GraphDecay: 0.5, DirectMatchBoost: 1.5,
			ASTContainsWeight: 1.0, ASTInheritsWeight: 1.0,
			ASTImportsWeight: 0.8, ASTCallsWeight: 0.9,
		},
		Fusion: FusionConfig{
			Method: FusionRRF, RRFK: 60,
			BM25Weight: 0.3, VectorWeight: 0.7, GraphWeight: 0.2,
			RerankerTopN: 30,
			HydrationMode: "lazy", HydrationMaxChars: 4000,
		},
		Rerank: RerankConfig{
			Mode: RerankNone, IdleUnloadSeconds: 600, BatchSize: 16,
		},
		Chat: ChatConfig{
			RecallGateEnabled: true, DeepRecencyWeight: 0.9,
			StandardTopK: 10, LightTopK: 5, DeepTopK: 20,
			ShortMessageTokenThreshold: 6,
		},
		Generation: GenerationConfig{
			AggregatorEnabled: false,
		},
		LayerBonus: LayerBonusConfig{
			Enabled: false, VendorPenalty: -0.2,
			VendorPaths: []string{"vendor/", "node_modules/", "third_party/"},
		},
	}
}
