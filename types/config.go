package types

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Server    ServerConfig
	Chunking  ChunkingConfig
	Embedding EmbeddingConfig
	Index     IndexConfig
	History   HistoryConfig
	LLM       LLMConfig
	Search    SearchConfig
	Loader    LoaderConfig
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

type ServerConfig struct {
	Addr         string `env:"SERVER_ADDR" envDefault:":3000"`
	APIPrefix    string `env:"API_PREFIX" envDefault:"/api"`
	RateLimitMax int    `env:"RATE_LIMIT_MAX" envDefault:"0"`
}

type ChunkingConfig struct {
	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"400"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"80"`
}

type EmbeddingConfig struct {
	Provider     string        `env:"EMBED_PROVIDER" envDefault:"jina"`
	Dimension    int           `env:"EMBED_DIMENSION" envDefault:"768"`
	Timeout      time.Duration `env:"EMBED_TIMEOUT" envDefault:"30s"`
	JinaURL      string        `env:"JINA_API_URL" envDefault:"https://api.jina.ai/v1/embeddings"`
	JinaAPIKey   string        `env:"JINA_API_KEY"`
	JinaModel    string        `env:"JINA_MODEL" envDefault:"jina-embeddings-v2-base-en"`
	OllamaURL    string        `env:"OLLAMA_EMBEDDING_URL" envDefault:"http://localhost:11434/api/embed"`
	OllamaModel  string        `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	GeminiModel  string        `env:"GEMINI_EMBEDDING_MODEL" envDefault:"text-embedding-004"`
	GeminiAPIKey string        `env:"GEMINI_API_KEY"`
}

type IndexConfig struct {
	Backend      string `env:"VECTOR_BACKEND" envDefault:"qdrant"`
	Collection   string `env:"COLLECTION_NAME" envDefault:"news_articles"`
	QdrantURL    string `env:"QDRANT_URL" envDefault:"http://localhost:6333"`
	QdrantAPIKey string `env:"QDRANT_API_KEY"`
	PGHost       string `env:"PG_HOST" envDefault:"localhost"`
	PGPort       int    `env:"PG_PORT" envDefault:"5432"`
	PGUser       string `env:"PG_USER" envDefault:"postgres"`
	PGPass       string `env:"PG_PASS"`
	PGDBName     string `env:"PG_DB_NAME" envDefault:"newsrag"`
	PersistPath  string `env:"MEMORY_PERSIST_PATH"`
}

// PostgresDSN builds the connection string the same way for the server and
// the loader.
func (c IndexConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.PGHost, c.PGPort, c.PGUser, c.PGPass, c.PGDBName)
}

type HistoryConfig struct {
	Backend       string        `env:"HISTORY_BACKEND" envDefault:"redis"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL           time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	Window        int           `env:"HISTORY_WINDOW" envDefault:"10"`
}

type LLMConfig struct {
	Provider     string `env:"LLM_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	Url          string `env:"LLM_URL" envDefault:"http://localhost:11434/api/chat"`
	Model        string `env:"LLM_MODEL" envDefault:"llama3.1"`
}

type SearchConfig struct {
	PrimaryLimit     int     `env:"SEARCH_PRIMARY_LIMIT" envDefault:"3"`
	PrimaryThreshold float32 `env:"SEARCH_PRIMARY_THRESHOLD" envDefault:"0.75"`
	FallbackLimit    int     `env:"SEARCH_FALLBACK_LIMIT" envDefault:"5"`
}

type LoaderConfig struct {
	IDStrategy     string        `env:"POINT_ID_STRATEGY" envDefault:"deterministic"`
	Concurrency    int           `env:"INGEST_CONCURRENCY" envDefault:"4"`
	SourceDir      string        `env:"LOADER_SOURCE_DIR" envDefault:"./data/incoming"`
	ArchiveDir     string        `env:"LOADER_ARCHIVE_DIR" envDefault:"./data/archive"`
	BadDir         string        `env:"LOADER_BAD_DIR" envDefault:"./data/bad"`
	MonitoringTime time.Duration `env:"LOADER_MONITORING_TIME" envDefault:"5s"`
}

// LoadConfig reads the configuration from the environment. Call
// godotenv.Load before it to pick up a .env file.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, NewConfigurationError("parse env", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := ValidateChunking(c.Chunking.ChunkSize, c.Chunking.ChunkOverlap); err != nil {
		return err
	}
	checks := []struct {
		name    string
		value   string
		allowed []string
	}{
		{"EMBED_PROVIDER", c.Embedding.Provider, []string{"jina", "ollama", "gemini"}},
		{"VECTOR_BACKEND", c.Index.Backend, []string{"qdrant", "postgres", "memory"}},
		{"HISTORY_BACKEND", c.History.Backend, []string{"redis", "memory"}},
		{"LLM_PROVIDER", c.LLM.Provider, []string{"gemini", "ollama"}},
		{"POINT_ID_STRATEGY", c.Loader.IDStrategy, []string{"deterministic", "random"}},
	}
	for _, ch := range checks {
		if !oneOf(ch.value, ch.allowed) {
			return NewConfigurationError("validate", fmt.Errorf("%s must be one of %v, got %q", ch.name, ch.allowed, ch.value))
		}
	}
	positive := map[string]int{
		"EMBED_DIMENSION":       c.Embedding.Dimension,
		"HISTORY_WINDOW":        c.History.Window,
		"SEARCH_PRIMARY_LIMIT":  c.Search.PrimaryLimit,
		"SEARCH_FALLBACK_LIMIT": c.Search.FallbackLimit,
		"INGEST_CONCURRENCY":    c.Loader.Concurrency,
	}
	for name, v := range positive {
		if v < 1 {
			return NewConfigurationError("validate", fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.History.TTL <= 0 {
		return NewConfigurationError("validate", fmt.Errorf("SESSION_TTL must be positive, got %s", c.History.TTL))
	}
	return nil
}

// ValidateChunking checks that a window/overlap pair yields a positive
// stride.
func ValidateChunking(window, overlap int) error {
	switch {
	case window < 1:
		return NewConfigurationError("chunking", fmt.Errorf("window size must be positive, got %d", window))
	case overlap < 0:
		return NewConfigurationError("chunking", fmt.Errorf("overlap must not be negative, got %d", overlap))
	case overlap >= window:
		return NewConfigurationError("chunking", fmt.Errorf("overlap %d must be smaller than window size %d", overlap, window))
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
