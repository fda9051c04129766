package config

import (
	"os"
	"strconv"

	"github.com/mikeboe/research-pipeline/pkg/contenttype"
)

// Config holds all runtime configuration. Values come from environment
// variables with defaults suitable for a local run.
type Config struct {
	GoogleApiKey string
	SerpApiKey   string
	DatabaseURL  string
	Port         string

	// Stage-specific models.
	DefaultModel    string
	IntentModel     string
	PlannerModel    string
	SummaryModel    string
	ReflectionModel string
	ReportModel     string
	EmbeddingModel  string

	// Per-content-type summarization models. Resolved through an explicit
	// lookup table rather than runtime attribute lookup.
	SummaryModels map[contenttype.ContentType]string

	// Iteration control.
	MaxRounds int

	// Summarization engine.
	DirectThresholdChars int
	MaxChunkChars        int
	ReportMaxTokens      int

	// Table compaction.
	TablePreserveMaxRows int
	TablePreserveMaxCols int
	TableCompactRows     int

	// Ranking.
	FinalTopKRatio  float64
	SearchTopKRatio float64
	UseReranker     bool

	// Worker pool bounds.
	SearchWorkers  int
	ScrapeWorkers  int
	SummaryWorkers int
	ChunkWorkers   int

	EmbeddingDim  int
	OutputDir     string
	MaxLLMRetries int
}

func Load() *Config {
	defaultModel := getEnv("DEFAULT_MODEL", "gemini-3-flash-preview")
	reasoningModel := getEnv("REASONING_MODEL", "gemini-3-pro-preview")

	cfg := &Config{
		GoogleApiKey: getEnv("GOOGLE_API_KEY", ""),
		SerpApiKey:   getEnv("SERPER_API_KEY", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		Port:         getEnv("PORT", "3000"),

		DefaultModel:    defaultModel,
		IntentModel:     getEnv("INTENT_MODEL", defaultModel),
		PlannerModel:    getEnv("PLANNER_MODEL", reasoningModel),
		SummaryModel:    getEnv("SUMMARY_MODEL", defaultModel),
		ReflectionModel: getEnv("REFLECTION_MODEL", reasoningModel),
		ReportModel:     getEnv("REPORT_MODEL", reasoningModel),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),

		MaxRounds: getEnvAsInt("MAX_ROUNDS", 3),

		DirectThresholdChars: getEnvAsInt("DIRECT_THRESHOLD_CHARS", 50000),
		MaxChunkChars:        getEnvAsInt("MAX_CHUNK_CHARS", 120000),
		ReportMaxTokens:      getEnvAsInt("REPORT_MAX_TOKENS", 4000),

		TablePreserveMaxRows: getEnvAsInt("TABLE_PRESERVE_MAX_ROWS", 15),
		TablePreserveMaxCols: getEnvAsInt("TABLE_PRESERVE_MAX_COLS", 8),
		TableCompactRows:     getEnvAsInt("TABLE_COMPACT_ROWS", 10),

		FinalTopKRatio:  getEnvAsFloat("FINAL_TOP_K_RATIO", 0.5),
		SearchTopKRatio: getEnvAsFloat("SEARCH_TOP_K_RATIO", 0.3),
		UseReranker:     getEnvAsBool("USE_RERANKER", true),

		SearchWorkers:  getEnvAsInt("SEARCH_WORKERS", 3),
		ScrapeWorkers:  getEnvAsInt("SCRAPE_WORKERS", 5),
		SummaryWorkers: getEnvAsInt("SUMMARY_WORKERS", 3),
		ChunkWorkers:   getEnvAsInt("CHUNK_WORKERS", 3),

		EmbeddingDim:  getEnvAsInt("EMBEDDING_DIM", 1536),
		OutputDir:     getEnv("OUTPUT_DIR", "./reports"),
		MaxLLMRetries: getEnvAsInt("MAX_LLM_RETRIES", 3),
	}

	cfg.SummaryModels = map[contenttype.ContentType]string{
		contenttype.Code:          getEnv("SUMMARY_MODEL_CODE", cfg.SummaryModel),
		contenttype.Research:      getEnv("SUMMARY_MODEL_RESEARCH", reasoningModel),
		contenttype.News:          getEnv("SUMMARY_MODEL_NEWS", cfg.SummaryModel),
		contenttype.Documentation: getEnv("SUMMARY_MODEL_DOCS", cfg.SummaryModel),
		contenttype.General:       cfg.SummaryModel,
	}

	return cfg
}

// SummaryModelFor returns the summarization model for a content type,
// falling back to the default summary model for unknown types.
func (c *Config) SummaryModelFor(ct contenttype.ContentType) string {
	if model, ok := c.SummaryModels[ct]; ok && model != "" {
		return model
	}
	return c.SummaryModel
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
