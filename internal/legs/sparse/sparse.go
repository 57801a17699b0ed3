// Package sparse implements the Sparse Leg (C5): a three-stage fallback
// (plain → relaxed-OR → file-path prefix) over a BM25/FTS backend, with
// sparse_engine/sparse_relaxed telemetry and filename boosts, per spec.md
// §4.5. Grounded on internal/persistence/databases/postgres_search.go's
// tsquery/websearch_to_tsquery pattern, generalized into the three explicit
// stages the teacher's single-stage search does not have.
package sparse

import (
	"context"
	"path"
	"regexp"
	"strings"

	"tribridrag/internal/model"
)

// Engine identifies which stage produced a hit.
type Engine string

const (
	EnginePostgresFTS          Engine = "postgres_fts"
	EnginePostgresFTSRelaxedOR Engine = "postgres_fts_relaxed_or"
	EngineFilePath             Engine = "file_path"
)

// Hit is one backend result, BM25-scored.
type Hit struct {
	ChunkID  string
	Score    float64
	FilePath string
}

// Store is the minimal FTS port; concrete implementations (Postgres
// tsvector) live in internal/store.
type Store interface {
	// SearchConjunctive runs a plainto_tsquery-equivalent AND query.
	SearchConjunctive(ctx context.Context, corpusID string, terms []string, limit int) ([]Hit, error)
	// SearchDisjunctive runs a websearch/OR query over up to maxTerms tokens.
	SearchDisjunctive(ctx context.Context, corpusID string, terms []string, limit int) ([]Hit, error)
	// SearchFilePathPrefix matches chunks whose file_path contains all of the
	// given tokens, in order, case-insensitively.
	SearchFilePathPrefix(ctx context.Context, corpusID string, terms []string, limit int) ([]Hit, error)
}

// Options configures one invocation.
type Options struct {
	CorpusID             string
	MaxTerms             int
	Limit                int
	FilenameBoostExact   float64
	FilenameBoostPartial float64
}

// Leg is the Sparse Leg.
type Leg struct {
	store     Store
	tokenizer func(string) []string
}

// New constructs a Leg. tokenizer, if nil, defaults to whitespace+lowercase
// splitting — the tokenizer must match the indexer's, per spec.md §4.5.
func New(store Store, tokenizer func(string) []string) *Leg {
	if tokenizer == nil {
		tokenizer = defaultTokenize
	}
	return &Leg{store: store, tokenizer: tokenizer}
}

var identifierPathPattern = regexp.MustCompile(`^[\w./\-]+$`)

func defaultTokenize(q string) []string {
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

// looksFilenameLike matches an identifier/path heuristic: the raw query has
// no whitespace, is made up only of path/identifier characters, and contains
// a path separator or a file extension dot.
func looksFilenameLike(q string) bool {
	q = strings.TrimSpace(q)
	if q == "" {
		return false
	}
	if strings.ContainsAny(q, " \t\n") {
		return false
	}
	return identifierPathPattern.MatchString(q) && (strings.Contains(q, "/") || strings.Contains(q, "."))
}

// Run executes the three-stage fallback described in spec.md §4.5.
func (l *Leg) Run(ctx context.Context, query string, opt Options) ([]model.ChunkMatch, model.LegDebug, error) {
	debug := model.LegDebug{Attempted: true, Enabled: true}
	limit := opt.Limit
	if limit <= 0 {
		limit = 40
	}
	terms := l.tokenizer(query)
	if len(terms) == 0 {
		debug.Results = 0
		return nil, debug, nil
	}

	// Stage 1: plain conjunctive (AND).
	hits, err := l.store.SearchConjunctive(ctx, opt.CorpusID, terms, limit)
	if err != nil {
		debug.Error = safeErr(err)
		return nil, debug, err
	}
	engine := EnginePostgresFTS
	relaxed := false

	// Stage 2: relaxed disjunctive OR over up to max_terms tokens.
	if len(hits) == 0 {
		maxTerms := opt.MaxTerms
		if maxTerms <= 0 || maxTerms > len(terms) {
			maxTerms = len(terms)
		}
		relaxedTerms := dedupe(terms)[:min(maxTerms, len(dedupe(terms)))]
		hits, err = l.store.SearchDisjunctive(ctx, opt.CorpusID, relaxedTerms, limit)
		if err != nil {
			debug.Error = safeErr(err)
			return nil, debug, err
		}
		if len(hits) > 0 {
			engine = EnginePostgresFTSRelaxedOR
			relaxed = true
		}
	}

	// Stage 3: file-path prefix, only if still empty AND the query is
	// filename-like.
	if len(hits) == 0 && looksFilenameLike(query) {
		hits, err = l.store.SearchFilePathPrefix(ctx, opt.CorpusID, terms, limit)
		if err != nil {
			debug.Error = safeErr(err)
			return nil, debug, err
		}
		if len(hits) > 0 {
			engine = EngineFilePath
			relaxed = true
		}
	}

	debug.SparseEngine = string(engine)
	debug.SparseRelaxed = relaxed
	debug.Results = len(hits)

	out := make([]model.ChunkMatch, 0, len(hits))
	for _, h := range hits {
		score := h.Score * filenameBoost(query, h.FilePath, opt)
		out = append(out, model.ChunkMatch{
			Chunk:  model.Chunk{ChunkID: h.ChunkID, CorpusID: opt.CorpusID, FilePath: h.FilePath},
			Score:  score,
			Source: model.SourceSparse,
			LegMeta: map[string]any{
				"sparse_engine":  string(engine),
				"sparse_relaxed": relaxed,
			},
		})
	}
	return out, debug, nil
}

// filenameBoost applies filename_boost_exact (exact basename match) or
// filename_boost_partial (any path component match) as a multiplicative
// factor >= 1, per spec.md §4.5.
func filenameBoost(query, filePath string, opt Options) float64 {
	if filePath == "" {
		return 1
	}
	q := strings.ToLower(strings.TrimSpace(query))
	base := strings.ToLower(path.Base(filePath))
	if q == base || strings.TrimSuffix(base, path.Ext(base)) == q {
		if opt.FilenameBoostExact >= 1 {
			return opt.FilenameBoostExact
		}
		return 1
	}
	for _, part := range strings.Split(strings.ToLower(filePath), "/") {
		if part == q || strings.Contains(part, q) {
			if opt.FilenameBoostPartial >= 1 {
				return opt.FilenameBoostPartial
			}
			return 1
		}
	}
	return 1
}

func dedupe(terms []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func safeErr(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
