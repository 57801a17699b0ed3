// Command tribridrag starts the retrieval fusion HTTP + MCP server: it
// resolves infrastructure configuration from the environment, wires the
// Postgres-backed stores, the three retrieval legs, the fusion/rerank/answer
// cores, and serves them over both /api/* HTTP routes and an MCP stdio
// server, shutting down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tribridrag/internal/answer"
	"tribridrag/internal/config"
	"tribridrag/internal/dispatch"
	"tribridrag/internal/feedback"
	"tribridrag/internal/httpapi"
	"tribridrag/internal/legs/graph"
	"tribridrag/internal/legs/sparse"
	"tribridrag/internal/legs/vector"
	"tribridrag/internal/mcpserver"
	"tribridrag/internal/observability"
	"tribridrag/internal/rerank"
	"tribridrag/internal/retrieval"
	"tribridrag/internal/store"
)

const vectorDimensions = 1536

func main() {
	observability.InitLogger("", os.Getenv("LOG_LEVEL"))

	procCfg, err := config.LoadProcessConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("load process config")
	}
	if procCfg.PostgresDSN == "" {
		log.Fatal().Msg("DATABASE_URL (or POSTGRES_DSN) is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pools := store.NewPoolRegistry()
	defer pools.Shutdown()

	pool, err := pools.Resolve(ctx, procCfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}

	chunkStore, err := store.NewPostgresChunkStore(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("init chunk store")
	}
	corpusStore, err := store.NewCorpusStore(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("init corpus store")
	}
	configStore, err := store.NewPostgresConfigStore(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("init config store")
	}

	var resolverStore config.Store = configStore
	if procCfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: procCfg.RedisAddr})
		resolverStore = config.NewRedisCachedStore(configStore, rdb)
	}
	defaults, err := config.LoadDefaultsFromFile(procCfg.ConfigDocPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config defaults file")
	}
	resolver, err := config.NewResolver(resolverStore, config.WithDefaults(defaults))
	if err != nil {
		log.Fatal().Err(err).Msg("init config resolver")
	}

	vectorStore, err := buildVectorStore(ctx, procCfg, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("init vector store")
	}
	graphStore, pingGraph, err := buildGraphStore(ctx, procCfg, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("init graph store")
	}
	sparseStore, err := store.NewPostgresSparseStore(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("init sparse store")
	}

	embedder := vector.NewHTTPEmbedder(
		firstNonEmpty(procCfg.OpenAIBaseURL, "https://api.openai.com/v1"),
		"text-embedding-3-small", procCfg.OpenAIAPIKey)

	vectorLeg := vector.New(embedder, vectorStore)
	sparseLeg := sparse.New(sparseStore, nil)
	graphLeg := graph.New(graphStore)

	var analytics retrieval.AnalyticsRecorder
	if procCfg.ClickHouseDSN != "" {
		sink, err := observability.NewAnalyticsSink(ctx, procCfg.ClickHouseDSN, 1024, log.Logger)
		if err != nil {
			log.Error().Err(err).Msg("init clickhouse analytics sink, continuing without it")
		} else {
			analytics = sink
			defer sink.Close()
		}
	}

	svc := retrieval.New(resolver, dispatch.New(), vectorLeg, sparseLeg, graphLeg, chunkStore,
		rerankFactory(),
		retrieval.WithLogger(observability.NewZerologAdapter(log.Logger)),
		retrieval.WithAnalytics(analytics))

	registry := answer.NewRegistry(procCfg.OpenRouterAPIKey != "", buildProviders(ctx, procCfg)...)
	composer := answer.New(registry)

	metrics := observability.NewPrometheusMetrics()

	var feedbackSink *feedback.Sink
	if procCfg.KafkaBrokers != "" {
		feedbackSink = feedback.New(procCfg.KafkaBrokers, procCfg.FeedbackTopic)
		defer feedbackSink.Close()
	}

	var archiveVerifier httpapi.ArchiveVerifier
	if procCfg.S3ArchiveBucket != "" {
		if s3store, err := store.NewS3ArchiveStore(ctx, ""); err != nil {
			log.Error().Err(err).Msg("init s3 archive store, continuing without it")
		} else {
			archiveVerifier = s3store
		}
	}

	srv := httpapi.NewServer(svc, composer, resolver, metrics,
		httpapi.WithLogger(observability.NewZerologAdapter(log.Logger)),
		httpapi.WithFeedbackSink(feedbackSink),
		httpapi.WithPostgresPing(func(ctx context.Context) error { return pool.Ping(ctx) }),
		httpapi.WithGraphPing(pingGraph),
		httpapi.WithArchiveVerifier(archiveVerifier),
		httpapi.WithProcessConfig(procCfg))

	httpSrv := &http.Server{Addr: procCfg.ListenAddr, Handler: srv.Handler()}

	mcpSrv := mcpserver.NewServer("tribridrag", "0.1.0", svc, composer, corpusStore,
		mcpserver.WithLogger(observability.NewZerologAdapter(log.Logger)))

	go func() {
		log.Info().Str("addr", procCfg.ListenAddr).Msg("http server starting")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	go func() {
		if err := mcpSrv.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("mcp server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
}

// buildVectorStore picks Qdrant when QDRANT_ADDR is configured, falling back
// to the pgvector-style Postgres store (§6.2 "single-db mode").
func buildVectorStore(ctx context.Context, procCfg config.ProcessConfig, pool *pgxpool.Pool) (vector.Store, error) {
	if procCfg.QdrantAddr != "" {
		return store.NewQdrantVectorStore(ctx, procCfg.QdrantAddr, "tribrid_chunks", vectorDimensions)
	}
	return store.NewPostgresVectorStore(ctx, pool, vectorDimensions)
}

// buildGraphStore picks the HTTP/Cypher Neo4j backend when NEO4J_URL is
// configured (§6.2's optional multi-database mode), falling back to the
// Postgres-backed single-db graph store. The second return value is the
// readiness pinger for /api/ready — nil when the graph store has no
// independent liveness check to offer (single-db mode reuses the Postgres
// pinger already wired in main).
func buildGraphStore(ctx context.Context, procCfg config.ProcessConfig, pool *pgxpool.Pool) (graph.Store, httpapi.Pinger, error) {
	if procCfg.Neo4jURL != "" {
		s := store.NewNeo4jGraphStore(procCfg.Neo4jURL, os.Getenv("NEO4J_DATABASE"),
			os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASSWORD"), nil)
		return s, s.Ping, nil
	}
	s, err := store.NewPostgresGraphStore(ctx, pool)
	return s, nil, err
}

func buildProviders(ctx context.Context, procCfg config.ProcessConfig) []answer.Provider {
	var providers []answer.Provider
	if procCfg.OpenAIAPIKey != "" {
		providers = append(providers, answer.NewOpenAIProvider("openai", answer.KindDirect, 0,
			procCfg.OpenAIAPIKey, procCfg.OpenAIBaseURL, "gpt-4o-mini"))
	}
	if procCfg.OpenRouterAPIKey != "" {
		providers = append(providers, answer.NewOpenAIProvider("openrouter", answer.KindAggregator, 0,
			procCfg.OpenRouterAPIKey, "https://openrouter.ai/api/v1", "openai/gpt-4o-mini"))
	}
	if procCfg.AnthropicAPIKey != "" {
		providers = append(providers, answer.NewAnthropicProvider("anthropic", 1,
			procCfg.AnthropicAPIKey, "claude-3-5-sonnet-latest", 4096, ""))
	}
	if procCfg.GoogleAPIKey != "" {
		if p, err := answer.NewGoogleProvider(ctx, "google", 2, procCfg.GoogleAPIKey, "gemini-1.5-flash", "", nil); err == nil {
			providers = append(providers, p)
		} else {
			log.Error().Err(err).Msg("init google provider")
		}
	}
	return providers
}

// rerankFactory builds per-request rerank.Options from the resolved scoped
// configuration, constructing the HTTP cross-encoder / cloud client lazily
// per call since each corpus may point at a different endpoint.
func rerankFactory() retrieval.RerankerFactory {
	return func(cfg config.ScopedConfiguration) rerank.Options {
		opt := rerank.Options{
			Mode:                 rerank.Mode(cfg.Rerank.Mode),
			LearningArtifactPath: cfg.Rerank.LearningArtifactPath,
			BatchSize:            cfg.Rerank.BatchSize,
		}
		switch opt.Mode {
		case rerank.ModeLocal:
			if cfg.Rerank.LocalModelPath != "" {
				opt.Local = rerank.NewHTTPCrossEncoder(cfg.Rerank.LocalModelPath)
			}
		case rerank.ModeLearning:
			if cfg.Rerank.LearningArtifactPath != "" {
				opt.Learning = rerank.NewHTTPCrossEncoder(cfg.Rerank.LearningArtifactPath)
			}
		case rerank.ModeCloud:
			if cfg.Rerank.CloudEndpoint != "" {
				opt.Cloud = rerank.NewCohereCloudReranker(cfg.Rerank.CloudEndpoint,
					os.Getenv(cfg.Rerank.CloudAPIKeyEnv), "")
			}
		}
		return opt
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
