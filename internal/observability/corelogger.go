package observability

import (
	"github.com/rs/zerolog"

	"tribridrag/internal/core"
)

// ZerologAdapter satisfies core.Logger over a zerolog.Logger, so dispatch,
// fusion, rerank, and answer never import zerolog directly.
type ZerologAdapter struct {
	log zerolog.Logger
}

func NewZerologAdapter(log zerolog.Logger) ZerologAdapter {
	return ZerologAdapter{log: log}
}

func (a ZerologAdapter) Info(msg string, fields map[string]any)  { a.log.Info().Fields(fields).Msg(msg) }
func (a ZerologAdapter) Error(msg string, fields map[string]any) { a.log.Error().Fields(fields).Msg(msg) }
func (a ZerologAdapter) Debug(msg string, fields map[string]any) { a.log.Debug().Fields(fields).Msg(msg) }

var _ core.Logger = ZerologAdapter{}
