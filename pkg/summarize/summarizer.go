// Package summarize compresses scraped documents into query-relevant
// summaries. Short documents are summarized in one call; long documents go
// through map-reduce over bounded-size chunks. Pipe-delimited tables are
// preserved or deterministically compacted before any prompt is built.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
)

const (
	// DefaultDirectThresholdChars is the size under which a document is
	// summarized in a single call.
	DefaultDirectThresholdChars = 50000

	// DefaultMaxChunkChars bounds one map-phase chunk. Roughly 30k tokens at
	// the assumed 4 chars per token; tune per model.
	DefaultMaxChunkChars = 120000
)

// Engine implements pipeline.Summarizer.
type Engine struct {
	LLM             pipeline.LLM
	DefaultModel    string
	ModelForURL     func(url string) string // nil uses DefaultModel for everything
	DirectThreshold int
	Chunker         *Chunker
	Tables          *TableCompactor // nil disables table preprocessing
	DocWorkers      int
	ChunkWorkers    int
	Logger          *slog.Logger
}

// NewEngine builds an Engine with the default thresholds and table limits.
func NewEngine(llm pipeline.LLM, defaultModel string) *Engine {
	return &Engine{
		LLM:             llm,
		DefaultModel:    defaultModel,
		DirectThreshold: DefaultDirectThresholdChars,
		Chunker:         NewChunker(DefaultMaxChunkChars),
		Tables:          NewTableCompactor(15, 8, 10),
		DocWorkers:      3,
		ChunkWorkers:    3,
		Logger:          slog.Default(),
	}
}

// SummarizeAll summarizes every document, deduplicated by URL, on a bounded
// worker pool. Per-document failures are logged and skipped.
func (e *Engine) SummarizeAll(ctx context.Context, contents []pipeline.ScrapedContent, plan *pipeline.ResearchPlan) []*pipeline.Summary {
	seen := make(map[string]bool)
	var unique []pipeline.ScrapedContent
	for _, c := range contents {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		unique = append(unique, c)
	}
	if len(unique) < len(contents) {
		e.Logger.Info("Deduplicated scraped content", "total", len(contents), "unique", len(unique))
	}

	results := make([]*pipeline.Summary, len(unique))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.workers(e.DocWorkers))
	for i, content := range unique {
		wg.Add(1)
		go func(i int, content pipeline.ScrapedContent) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			summary, err := e.Summarize(ctx, content, plan)
			if err != nil {
				e.Logger.Error("Summarization failed", "url", content.URL, "error", err)
				return
			}
			results[i] = summary
		}(i, content)
	}
	wg.Wait()

	summaries := make([]*pipeline.Summary, 0, len(unique))
	for _, s := range results {
		if s != nil {
			summaries = append(summaries, s)
		}
	}
	e.Logger.Info("Summarization complete", "successful", len(summaries), "total", len(unique))
	return summaries
}

// Summarize produces one summary for one document.
func (e *Engine) Summarize(ctx context.Context, content pipeline.ScrapedContent, plan *pipeline.ResearchPlan) (*pipeline.Summary, error) {
	if len(content.Content) <= e.DirectThreshold {
		return e.summarizeDirect(ctx, content, plan)
	}
	e.Logger.Info("Using map-reduce summarization", "url", content.URL, "chars", len(content.Content))
	return e.summarizeMapReduce(ctx, content, plan)
}

func (e *Engine) summarizeDirect(ctx context.Context, content pipeline.ScrapedContent, plan *pipeline.ResearchPlan) (*pipeline.Summary, error) {
	text := e.preprocess(content.Content, plan)

	prompt := fmt.Sprintf(`Summarize the following content in relation to the research query.

Research Query: %q

Source: %s
URL: %s

Report Sections (for context):
%s

Content:
%s

Provide a comprehensive summary that:
1. Extracts key information relevant to the research query
2. Identifies main findings, arguments, or insights
3. Maintains factual accuracy
4. Preserve any Markdown tables verbatim, including their note lines

Aim for 3-5 paragraphs. Focus on substance over style.`,
		plan.Query.Text, content.Title, content.URL, bulletList(plan.Sections), text)

	summaryText, err := e.LLM.Complete(ctx, prompt,
		pipeline.WithModel(e.modelFor(content.URL)),
		pipeline.WithTemperature(0.3),
		pipeline.WithMaxTokens(1000),
	)
	if err != nil {
		return nil, fmt.Errorf("direct summarization failed for %s: %w", content.URL, err)
	}

	return e.buildSummary(summaryText, content.URL, content.Title), nil
}

func (e *Engine) summarizeMapReduce(ctx context.Context, content pipeline.ScrapedContent, plan *pipeline.ResearchPlan) (*pipeline.Summary, error) {
	chunks, truncated := e.Chunker.Chunk(content.Content)
	if truncated > 0 {
		e.Logger.Warn("Chunks truncated to fit budget", "url", content.URL, "truncated", truncated)
	}
	e.Logger.Debug("Chunked content", "url", content.URL, "chunks", len(chunks))

	// MAP: summarize chunks independently on a bounded pool.
	chunkSummaries := make([]string, len(chunks))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.workers(e.ChunkWorkers))
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			text, err := e.summarizeChunk(ctx, chunk, i, content, plan)
			if err != nil {
				e.Logger.Warn("Chunk summarization failed, skipping", "url", content.URL, "chunk", i, "error", err)
				return
			}
			chunkSummaries[i] = text
		}(i, chunk)
	}
	wg.Wait()

	successful := make([]string, 0, len(chunks))
	for _, s := range chunkSummaries {
		if s != "" {
			successful = append(successful, s)
		}
	}
	if len(successful) == 0 {
		return nil, fmt.Errorf("all %d chunks failed for %s", len(chunks), content.URL)
	}

	// REDUCE: synthesize the chunk summaries into one final summary.
	prompt := fmt.Sprintf(`Synthesize the following summaries into a coherent final summary.

Research Query: %q
Source: %s
URL: %s

Report Sections:
%s

Chunk Summaries:
%s

Create a comprehensive summary that:
1. Eliminates redundancy across chunks
2. Organizes information logically
3. Highlights key findings relevant to the research query
4. Maintains factual accuracy

Aim for 3-5 paragraphs.`,
		plan.Query.Text, content.Title, content.URL,
		bulletList(plan.Sections), strings.Join(successful, "\n\n"))

	finalText, err := e.LLM.Complete(ctx, prompt,
		pipeline.WithModel(e.modelFor(content.URL)),
		pipeline.WithTemperature(0.3),
		pipeline.WithMaxTokens(1000),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to combine chunk summaries for %s: %w", content.URL, err)
	}

	return e.buildSummary(finalText, content.URL, content.Title), nil
}

func (e *Engine) summarizeChunk(ctx context.Context, chunk string, chunkID int, content pipeline.ScrapedContent, plan *pipeline.ResearchPlan) (string, error) {
	text := e.preprocess(chunk, plan)

	prompt := fmt.Sprintf(`Summarize the following content chunk in relation to the research query.

Research Query: %q

Source: %s
URL: %s
Chunk %d

Content:
%s

Provide a concise summary focusing on information relevant to the research query.
Extract key facts, findings, and insights. Aim for 2-3 paragraphs.`,
		plan.Query.Text, content.Title, content.URL, chunkID+1, text)

	return e.LLM.Complete(ctx, prompt,
		pipeline.WithModel(e.modelFor(content.URL)),
		pipeline.WithTemperature(0.3),
		pipeline.WithMaxTokens(500),
	)
}

// preprocess applies table compaction when enabled.
func (e *Engine) preprocess(text string, plan *pipeline.ResearchPlan) string {
	if e.Tables == nil {
		return text
	}
	return e.Tables.Process(text, queryTokens(plan.Query.Text))
}

func (e *Engine) buildSummary(text, url, title string) *pipeline.Summary {
	citationText := text
	if len(citationText) > 200 {
		citationText = citationText[:200] + "..."
	}
	return &pipeline.Summary{
		Text: text,
		URL:  url,
		Citations: []pipeline.Citation{{
			Text:  citationText,
			URL:   url,
			Title: title,
		}},
		RelevanceScore: 1.0,
	}
}

func (e *Engine) modelFor(url string) string {
	if e.ModelForURL != nil {
		if m := e.ModelForURL(url); m != "" {
			return m
		}
	}
	return e.DefaultModel
}

func (e *Engine) workers(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// queryTokens lowercases and splits the query into tokens usable for table
// column matching. Short stopword-ish tokens are dropped.
func queryTokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func bulletList(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
