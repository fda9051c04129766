package pipeline

import (
	"context"
	"errors"
)

// ErrPlanningFailed aborts the run: without a round-1 plan there is nothing
// to research.
var ErrPlanningFailed = errors.New("research planning failed")

// ErrNoResults aborts the run when round 1 produces zero search results and
// nothing has been accumulated.
var ErrNoResults = errors.New("no search results")

// IntentClassifier assigns an intent to the raw query. A failure degrades to
// IntentGeneral.
type IntentClassifier interface {
	Classify(ctx context.Context, q Query) (Intent, error)
}

// Planner creates the initial research plan.
type Planner interface {
	Plan(ctx context.Context, q Query) (*ResearchPlan, error)
}

// Researcher executes the plan's search queries against a web search
// provider. Partial provider failures are tolerated internally; it returns
// whatever succeeded.
type Researcher interface {
	Search(ctx context.Context, plan *ResearchPlan) ([]SearchResult, error)
}

// SearchReranker filters and reorders search results before scraping.
// Optional: a nil reranker means pass-through.
type SearchReranker interface {
	Rerank(ctx context.Context, query string, results []SearchResult) ([]SearchResult, error)
}

// Scraper extracts content from search result URLs. Per-URL failures are
// absorbed; only successfully scraped documents are returned.
type Scraper interface {
	ScrapeResults(ctx context.Context, results []SearchResult) []ScrapedContent
}

// Summarizer turns scraped documents into summaries. Per-document failures
// are absorbed; only successful summaries are returned.
type Summarizer interface {
	SummarizeAll(ctx context.Context, contents []ScrapedContent, plan *ResearchPlan) []*Summary
}

// Reflector judges research completeness over the full accumulated summary
// list. An error degrades to "assume complete" so the loop always terminates.
type Reflector interface {
	Reflect(ctx context.Context, q Query, plan *ResearchPlan, summaries []*Summary) (ReflectionResult, error)
}

// ContextAssembler ranks accumulated summaries against the plan's query and
// selects the most relevant subset.
type ContextAssembler interface {
	Assemble(ctx context.Context, summaries []*Summary, plan *ResearchPlan) (*ContextPackage, error)
}

// Embedder turns texts into embedding vectors, one per input, in input
// order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// LLM is the completion interface used for report generation.
type LLM interface {
	Complete(ctx context.Context, prompt string, opts ...func(*CompletionOptions)) (string, error)
}

// CompletionOptions configure a single completion call.
type CompletionOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// WithModel selects the model for one call.
func WithModel(model string) func(*CompletionOptions) {
	return func(o *CompletionOptions) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) func(*CompletionOptions) {
	return func(o *CompletionOptions) { o.Temperature = t }
}

// WithMaxTokens bounds the response length.
func WithMaxTokens(n int) func(*CompletionOptions) {
	return func(o *CompletionOptions) { o.MaxTokens = n }
}

// WithJSONMode requests a JSON object response.
func WithJSONMode() func(*CompletionOptions) {
	return func(o *CompletionOptions) { o.JSONMode = true }
}
