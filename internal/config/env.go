package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ProcessConfig is the process-wide infrastructure configuration: connection
// strings, ports, and provider credentials. It is distinct from
// ScopedConfiguration, which is the per-corpus retrieval/fusion/chat document.
type ProcessConfig struct {
	ListenAddr string

	PostgresDSN string
	QdrantAddr  string
	Neo4jURL    string
	RedisAddr   string

	KafkaBrokers       string
	FeedbackTopic      string

	S3ArchiveBucket string

	ClickHouseDSN string

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenRouterAPIKey  string
	AnthropicAPIKey   string
	GoogleAPIKey      string

	OTLPEndpoint string
	LogLevel     string

	ConfigDocPath string // on-disk global default ScopedConfiguration (yaml)
}

// LoadProcessConfig reads infrastructure configuration from the environment.
// A .env file is loaded first with Load (not Overload), so pre-existing
// environment values always win — per spec.md §6.5, the dotenv loader must
// never override values already present in the process environment.
func LoadProcessConfig() (ProcessConfig, error) {
	_ = godotenv.Load()

	cfg := ProcessConfig{
		ListenAddr: firstNonEmpty(os.Getenv("LISTEN_ADDR"), ":8088"),

		PostgresDSN: firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("POSTGRES_DSN")),
		QdrantAddr:  os.Getenv("QDRANT_ADDR"),
		Neo4jURL:    os.Getenv("NEO4J_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		KafkaBrokers:  firstNonEmpty(os.Getenv("KAFKA_BROKERS"), os.Getenv("KAFKA_BOOTSTRAP_SERVERS")),
		FeedbackTopic: firstNonEmpty(os.Getenv("KAFKA_FEEDBACK_TOPIC"), "tribrid.feedback"),

		S3ArchiveBucket: os.Getenv("S3_ARCHIVE_BUCKET"),

		ClickHouseDSN: os.Getenv("CLICKHOUSE_DSN"),

		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:     firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),

		ConfigDocPath: os.Getenv("TRIBRID_CONFIG_PATH"),
	}
	return cfg, nil
}

// SecretsPresent reports which provider credentials are configured, booleans
// only — backs GET /api/secrets/check (§6.5), which must never echo values.
func (c ProcessConfig) SecretsPresent() map[string]bool {
	return map[string]bool{
		"openai":     c.OpenAIAPIKey != "",
		"openrouter": c.OpenRouterAPIKey != "",
		"anthropic":  c.AnthropicAPIKey != "",
		"google":     c.GoogleAPIKey != "",
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
