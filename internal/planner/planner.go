// Package planner implements the Query Planner (C2): resolves active legs,
// final_k, deterministic query-expansion variants, and (chat-only) the
// recall-gate intensity, per spec.md §4.2. Grounded on the plan-construction
// shape of internal/rag/retrieve/query.go's BuildQueryPlan, generalized to
// the tri-source request model.
package planner

import (
	"strings"

	"tribridrag/internal/config"
	"tribridrag/internal/model"
	"tribridrag/internal/recall"
)

// Plan is the Query Planner's output, consumed by the Leg Dispatcher (C3).
type Plan struct {
	Query           string
	ExpansionVariants []string
	IncludeVector   bool
	IncludeSparse   bool
	IncludeGraph    bool
	FinalK          int
	RecallPlan      *recall.Plan
}

// synonymTable is a small, deterministic expansion table. No LLM dependency
// is required for correctness (spec.md §4.2): the planner treats the
// original query as canonical and only adds rewrites from this table.
var synonymTable = map[string][]string{
	"auth":          {"authentication", "authorization"},
	"login":         {"sign in", "signin"},
	"config":        {"configuration", "settings"},
	"error":         {"exception", "failure"},
	"function":      {"method", "procedure"},
	"delete":        {"remove", "destroy"},
	"create":        {"add", "new"},
	"update":        {"modify", "edit"},
}

// Build constructs a Plan for a single-corpus request. cfg is the already-
// resolved ScopedConfiguration for the request's corpus (C1's output);
// recallCfg/recallInputs are nil for non-chat requests (recall gating only
// applies to chat, per spec.md §4.2).
func Build(req model.RetrievalRequest, cfg config.ScopedConfiguration, recallCfg *recall.GateConfig, recallMessage string, lastRecallHadResults, ragCorporaActive bool, userOverride recall.Intensity) Plan {
	p := Plan{
		Query:         req.Query,
		IncludeVector: req.IncludeVector && cfg.Retrieval.EnableVector,
		IncludeSparse: req.IncludeSparse && cfg.Retrieval.EnableSparse,
		IncludeGraph:  req.IncludeGraph && cfg.Retrieval.EnableGraph,
		FinalK:        cfg.Retrieval.FinalK,
	}
	if req.TopK > 0 {
		p.FinalK = req.TopK
	}

	if cfg.Retrieval.MultiQueryEnabled {
		p.ExpansionVariants = expand(req.Query, cfg.Retrieval.MultiQueryM)
	}

	if recallCfg != nil {
		rp := recall.Classify(recallMessage, req.ConversationTurn, lastRecallHadResults, ragCorporaActive, *recallCfg, userOverride)
		p.RecallPlan = &rp
		p.FinalK, p.IncludeVector, p.IncludeSparse = rp.ApplyOverrides(p.FinalK, p.IncludeVector, p.IncludeSparse)
	}

	return p
}

// expand produces up to m deterministic rewrites of query using the synonym
// table, without ever consulting an LLM.
func expand(query string, m int) []string {
	if m <= 0 {
		return nil
	}
	words := strings.Fields(strings.ToLower(query))
	variants := make([]string, 0, m)
	for _, w := range words {
		syns, ok := synonymTable[w]
		if !ok {
			continue
		}
		for _, s := range syns {
			variant := strings.Replace(strings.ToLower(query), w, s, 1)
			variants = append(variants, variant)
			if len(variants) >= m {
				return variants
			}
		}
	}
	return variants
}
