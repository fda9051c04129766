// Package app wires configuration into a ready-to-run pipeline. Both the CLI
// and the HTTP server build their pipelines here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/research-pipeline/pkg/assemble"
	"github.com/mikeboe/research-pipeline/pkg/config"
	"github.com/mikeboe/research-pipeline/pkg/contenttype"
	"github.com/mikeboe/research-pipeline/pkg/embeddings"
	"github.com/mikeboe/research-pipeline/pkg/llm"
	"github.com/mikeboe/research-pipeline/pkg/pipeline"
	"github.com/mikeboe/research-pipeline/pkg/research"
	"github.com/mikeboe/research-pipeline/pkg/scrape"
	"github.com/mikeboe/research-pipeline/pkg/summarize"
	"github.com/mikeboe/research-pipeline/pkg/vectorstore"
)

// BuildPipeline assembles all stages from configuration. The store is
// optional; without one, summaries are ranked in memory and not persisted.
func BuildPipeline(ctx context.Context, cfg *config.Config, store vectorstore.Store, logger *slog.Logger) (*pipeline.Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := llm.NewGoogleClient(ctx, cfg.GoogleApiKey, cfg.DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("failed to init LLM client: %w", err)
	}
	client.MaxRetries = cfg.MaxLLMRetries
	client.Logger = logger

	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("failed to init embedder: %w", err)
	}

	intent := research.NewIntentClassifier(client, cfg.IntentModel)
	intent.Logger = logger

	planner := research.NewPlanner(client, cfg.PlannerModel)
	planner.Logger = logger

	searcher := research.NewSearcher(cfg.SerpApiKey, cfg.SearchWorkers)
	searcher.Logger = logger

	var reranker pipeline.SearchReranker
	if cfg.UseReranker {
		r := research.NewReranker(embedder, cfg.SearchTopKRatio)
		r.Logger = logger
		reranker = r
	}

	scraper := scrape.NewScraper(cfg.ScrapeWorkers)
	scraper.Logger = logger

	summarizer := summarize.NewEngine(client, cfg.SummaryModel)
	summarizer.ModelForURL = func(url string) string {
		return cfg.SummaryModelFor(contenttype.DetectFromURL(url))
	}
	summarizer.DirectThreshold = cfg.DirectThresholdChars
	summarizer.Chunker = summarize.NewChunker(cfg.MaxChunkChars)
	summarizer.Tables = summarize.NewTableCompactor(cfg.TablePreserveMaxRows, cfg.TablePreserveMaxCols, cfg.TableCompactRows)
	summarizer.DocWorkers = cfg.SummaryWorkers
	summarizer.ChunkWorkers = cfg.ChunkWorkers
	summarizer.Logger = logger

	reflector := research.NewReflector(client, cfg.ReflectionModel)
	reflector.Logger = logger

	assembler := assemble.NewAssembler(embedder, store, cfg.FinalTopKRatio, cfg.EmbeddingDim)
	assembler.Logger = logger

	reporter := &pipeline.ReportGenerator{
		LLM:       client,
		Model:     cfg.ReportModel,
		MaxTokens: cfg.ReportMaxTokens,
		OutputDir: cfg.OutputDir,
	}

	return &pipeline.Pipeline{
		Intent:    intent,
		Planner:   planner,
		Research:  searcher,
		Reranker:  reranker,
		Scraper:   scraper,
		Summarize: summarizer,
		Reflect:   reflector,
		Assembler: assembler,
		Reporter:  reporter,
		MaxRounds: cfg.MaxRounds,
		Logger:    logger,
	}, nil
}
