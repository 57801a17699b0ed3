// Package answer implements the Answer Composer (C8): prompt construction,
// provider routing, SSE streaming, and the always-answer fallback, per
// spec.md §4.8. Provider routing generalizes internal/llm/providers/factory.go's
// switch-on-name Build() into a prefix/kind-aware registry (local:, openrouter:,
// provider/model, direct, lowest-priority-local-by-name) — the teacher's factory
// only ever picks one configured provider; this composer picks among several
// simultaneously-registered ones per spec.md §4.8 steps 1-4.
package answer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ProviderKind distinguishes how a provider is reached.
type ProviderKind string

const (
	KindLocal      ProviderKind = "local"
	KindAggregator ProviderKind = "openrouter"
	KindDirect     ProviderKind = "direct"
)

// StreamDelta is one incremental fragment of an in-flight generation.
type StreamDelta struct {
	Content string
}

// Provider is a chat-completion backend. It delivers deltas through
// ChatStream's onDelta callback; the interface has no separate non-streaming
// method.
type Provider interface {
	Name() string
	Kind() ProviderKind
	// Priority orders same-kind local providers; lower runs first (spec.md
	// §4.8 step 4: "lowest-priority enabled local provider").
	Priority() int
	ChatStream(ctx context.Context, model string, messages []Message, onDelta func(StreamDelta)) (responseID string, err error)
}

// Message is a minimal chat message shape, independent of any one provider SDK.
type Message struct {
	Role    string
	Content string
}

// ErrNoProviderAvailable is returned by Route when no provider can serve the
// request — the composer MUST NOT error the request; callers fall back to
// the always-answer retrieval-only response (spec.md §4.8 step 5).
var ErrNoProviderAvailable = errors.New("no chat provider available")

// Registry holds every configured provider, keyed by name.
type Registry struct {
	providers     map[string]Provider
	aggregatorKey string // non-empty iff the OpenRouter aggregator is enabled and keyed
}

func NewRegistry(aggregatorKeyed bool, providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	if aggregatorKeyed {
		r.aggregatorKey = "set"
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Route implements spec.md §4.8's five-step provider routing precedence.
func (r *Registry) Route(modelOverride string) (Provider, string, error) {
	// Step 1: explicit local:/openrouter: prefix forces that kind.
	if rest, ok := strings.CutPrefix(modelOverride, "local:"); ok {
		p := r.firstOfKind(KindLocal)
		if p == nil {
			return nil, "", fmt.Errorf("%w: local provider requested but none configured", ErrNoProviderAvailable)
		}
		return p, rest, nil
	}
	if rest, ok := strings.CutPrefix(modelOverride, "openrouter:"); ok {
		if r.aggregatorKey == "" {
			return nil, "", fmt.Errorf("%w: openrouter requested but aggregator not keyed", ErrNoProviderAvailable)
		}
		p := r.firstOfKind(KindAggregator)
		if p == nil {
			return nil, "", fmt.Errorf("%w: openrouter requested but aggregator not configured", ErrNoProviderAvailable)
		}
		return p, rest, nil
	}

	// Step 2: "provider/model" shape routes through a keyed aggregator.
	if strings.Contains(modelOverride, "/") && r.aggregatorKey != "" {
		if p := r.firstOfKind(KindAggregator); p != nil {
			return p, modelOverride, nil
		}
	}

	// Step 3: a matching direct provider (OpenAI by default).
	if modelOverride != "" {
		if p, ok := r.providers[modelOverride]; ok && p.Kind() == KindDirect {
			return p, modelOverride, nil
		}
	}
	if p := r.firstOfKind(KindDirect); p != nil && modelOverride == "" {
		return p, modelOverride, nil
	}

	// Step 4: aggregator, then lowest-priority local (tie-broken by name), then direct.
	if p := r.firstOfKind(KindAggregator); p != nil {
		return p, modelOverride, nil
	}
	if p := r.lowestPriorityLocal(); p != nil {
		return p, modelOverride, nil
	}
	if p := r.firstOfKind(KindDirect); p != nil {
		return p, modelOverride, nil
	}

	// Step 5.
	return nil, "", ErrNoProviderAvailable
}

func (r *Registry) firstOfKind(kind ProviderKind) Provider {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if r.providers[name].Kind() == kind {
			return r.providers[name]
		}
	}
	return nil
}

func (r *Registry) lowestPriorityLocal() Provider {
	var best Provider
	var bestName string
	for name, p := range r.providers {
		if p.Kind() != KindLocal {
			continue
		}
		if best == nil || p.Priority() < best.Priority() || (p.Priority() == best.Priority() && name < bestName) {
			best, bestName = p, name
		}
	}
	return best
}
