// Package model holds the data types shared across the retrieval fusion core:
// corpora, chunks, graph entities, scoped configuration, and the request/response
// shapes exchanged between the query planner, leg dispatcher, fusion, and the
// HTTP/MCP edges.
package model

import "time"

// Corpus is a named, independently configured body of indexed chunks and graph
// data. The core reads corpora; it never creates or deletes them.
type Corpus struct {
	CorpusID  string    `json:"corpus_id" yaml:"corpus_id"`
	RootPath  string    `json:"root_path" yaml:"root_path"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Chunk is an immutable retrieval unit. The core only reads chunks; an indexer
// (out of scope here) writes them.
type Chunk struct {
	ChunkID    string            `json:"chunk_id"`
	CorpusID   string            `json:"corpus_id"`
	Content    string            `json:"content"`
	FilePath   string            `json:"file_path"`
	StartLine  int               `json:"start_line"`
	EndLine    int               `json:"end_line"`
	Language   string            `json:"language,omitempty"`
	TokenCount int               `json:"token_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Embedding  []float32         `json:"-"`
	Summary    string            `json:"summary,omitempty"`
}

// MatchSource identifies which leg (or fusion) produced a ChunkMatch.
type MatchSource string

const (
	SourceVector MatchSource = "vector"
	SourceSparse MatchSource = "sparse"
	SourceGraph  MatchSource = "graph"
	SourceFused  MatchSource = "fused"
)

// ChunkMatch is a Chunk plus retrieval annotations. Legs emit it chunk_id-only
// (hydration of Content/Metadata is deferred to fusion); fusion emits fully
// hydrated matches ordered for the response.
type ChunkMatch struct {
	Chunk
	Score    float64        `json:"score"`
	Source   MatchSource    `json:"source"`
	LegMeta  map[string]any `json:"leg_metadata,omitempty"`
	RerankOf float64        `json:"fused_score,omitempty"`
}

// EntityType enumerates the graph node kinds the graph leg understands.
type EntityType string

const (
	EntityFunction EntityType = "function"
	EntityClass    EntityType = "class"
	EntityModule   EntityType = "module"
	EntityVariable EntityType = "variable"
	EntityConcept  EntityType = "concept"
)

// Entity is a graph node scoped to a corpus.
type Entity struct {
	EntityID string     `json:"entity_id"`
	CorpusID string     `json:"corpus_id"`
	Name     string     `json:"name"`
	Type     EntityType `json:"type"`
	FilePath string     `json:"file_path,omitempty"`
}

// RelationType enumerates the typed edges the graph leg traverses.
type RelationType string

const (
	RelCalls     RelationType = "calls"
	RelImports   RelationType = "imports"
	RelInherits  RelationType = "inherits"
	RelContains  RelationType = "contains"
	RelReference RelationType = "references"
	RelRelatedTo RelationType = "related_to"
	RelInChunk   RelationType = "in_chunk"
)

// Relationship is a graph edge scoped to a corpus.
type Relationship struct {
	CorpusID   string       `json:"corpus_id"`
	SourceID   string       `json:"source_id"`
	TargetID   string       `json:"target_id"`
	RelType    RelationType `json:"relation_type"`
	Weight     float64      `json:"weight"`
}

// Community aggregates entity membership within a corpus's graph.
type Community struct {
	CommunityID string   `json:"community_id"`
	CorpusID    string   `json:"corpus_id"`
	EntityIDs   []string `json:"entity_ids"`
	Summary     string   `json:"summary,omitempty"`
}

// RetrievalRequest is the normalized shape the query planner consumes.
type RetrievalRequest struct {
	Query           string   `json:"query"`
	CorpusIDs       []string `json:"corpus_ids"`
	IncludeVector   bool     `json:"include_vector"`
	IncludeSparse   bool     `json:"include_sparse"`
	IncludeGraph    bool     `json:"include_graph"`
	TopK            int      `json:"top_k,omitempty"`
	RecallIntensity string   `json:"recall_intensity,omitempty"`
	ConversationTurn int     `json:"conversation_turn,omitempty"`
}

// LegDebug is the per-leg slice of FusionDebug telemetry.
type LegDebug struct {
	Attempted bool   `json:"attempted"`
	Enabled   bool   `json:"enabled"`
	Error     string `json:"error,omitempty"`
	Results   int    `json:"results"`

	// Sparse-leg specific telemetry (§4.5).
	SparseEngine  string `json:"sparse_engine,omitempty"`
	SparseRelaxed bool   `json:"sparse_relaxed,omitempty"`
}

// RerankDebugInfo is C7a's telemetry block.
type RerankDebugInfo struct {
	Applied           bool   `json:"applied"`
	SkippedReason     string `json:"skipped_reason,omitempty"`
	Error             string `json:"error,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	DebugTraceID      string `json:"debug_trace_id,omitempty"`
	CandidatesReranked int   `json:"candidates_reranked"`
}

// FusionDebug is structured telemetry attached to every response.
type FusionDebug struct {
	Vector            LegDebug        `json:"vector"`
	Sparse            LegDebug        `json:"sparse"`
	Graph             LegDebug        `json:"graph"`
	FusionMethod      string          `json:"fusion_method"`
	FinalK            int             `json:"final_k"`
	Top1Score         float64         `json:"top1_score"`
	AvgTop5Score      float64         `json:"avg_top5_score"`
	NormalizedConfidence float64      `json:"normalized_confidence"`
	Rerank            RerankDebugInfo `json:"rerank"`
	LLMUsed           bool            `json:"llm_used"`
	LLMError          string          `json:"llm_error,omitempty"`
}
