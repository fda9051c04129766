package pipeline

import "time"

// Intent classifies what kind of answer the user is after.
type Intent string

const (
	IntentInformational Intent = "informational"
	IntentComparative   Intent = "comparative"
	IntentNews          Intent = "news"
	IntentCode          Intent = "code"
	IntentTutorial      Intent = "tutorial"
	IntentResearch      Intent = "research"
	IntentGeneral       Intent = "general"
)

// Query is the immutable user query plus its classified intent.
type Query struct {
	Text   string `json:"text"`
	Intent Intent `json:"intent"`
}

// SearchQuery is a single planned web search.
type SearchQuery struct {
	Query    string `json:"query"`
	Purpose  string `json:"purpose"`
	Priority int    `json:"priority"` // 1 (highest) to 5 (lowest)
}

// ResearchPlan describes how to research a query. Plans are never edited in
// place: each round that finds gaps produces a fresh plan with the same
// sections and replaced search queries.
type ResearchPlan struct {
	Query         Query         `json:"query"`
	Sections      []string      `json:"sections"`
	SearchQueries []SearchQuery `json:"search_queries"`
	Rationale     string        `json:"rationale"`
}

// SearchResult is a single web search hit.
type SearchResult struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Rank    int     `json:"rank"`
	Score   float64 `json:"score,omitempty"`
}

// ScrapedContent is the extracted text of one URL. Read-only input to
// summarization.
type ScrapedContent struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	RetrievedAt time.Time         `json:"retrieved_at"`
}

// Citation points a summary back at its source.
type Citation struct {
	Text    string `json:"text"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	ChunkID *int   `json:"chunk_id,omitempty"`
}

// Summary is one document's query-relevant summary. RelevanceScore is the
// only field mutated after creation, by the context assembler.
type Summary struct {
	Text           string     `json:"text"`
	URL            string     `json:"url"`
	Citations      []Citation `json:"citations"`
	RelevanceScore float64    `json:"relevance_score"`
}

// Title returns the title of the summary's first citation, if any.
func (s *Summary) Title() string {
	if len(s.Citations) > 0 {
		return s.Citations[0].Title
	}
	return "Unknown"
}

// ReflectionResult is the per-round completeness assessment. Consumed once,
// never mutated.
type ReflectionResult struct {
	IsComplete         bool          `json:"is_complete"`
	MissingInformation []string      `json:"missing_information"`
	AdditionalQueries  []SearchQuery `json:"additional_queries"`
	Rationale          string        `json:"rationale"`
}

// ContextDiagnostics records how the final selection was made.
type ContextDiagnostics struct {
	TotalSummaries    int     `json:"total_summaries"`
	SelectedSummaries int     `json:"selected_summaries"`
	TopKRatio         float64 `json:"top_k_ratio"`
	MinRelevanceScore float64 `json:"min_relevance_score"`
	MaxRelevanceScore float64 `json:"max_relevance_score"`
}

// ContextPackage is the ranked, deduplicated summary subset handed to report
// generation. Summaries are ordered by descending relevance.
type ContextPackage struct {
	Query       Query              `json:"query"`
	Plan        *ResearchPlan      `json:"plan"`
	Summaries   []*Summary         `json:"summaries"`
	Diagnostics ContextDiagnostics `json:"diagnostics"`
}

// ReportMetadata is the diagnostic footer of a report.
type ReportMetadata struct {
	Intent              string   `json:"intent"`
	Sections            []string `json:"sections"`
	Status              string   `json:"status"` // "complete" or "incomplete"
	NumSources          int      `json:"num_sources"`
	Rounds              int      `json:"rounds"`
	ResearchComplete    bool     `json:"research_complete"`
	Degraded            bool     `json:"degraded"`
	MissingInformation  []string `json:"missing_information,omitempty"`
	ReflectionRationale string   `json:"reflection_rationale,omitempty"`
}

// Report is the final research output.
type Report struct {
	Query       Query          `json:"query"`
	Content     string         `json:"content"`
	Citations   []Citation     `json:"citations"`
	Metadata    ReportMetadata `json:"metadata"`
	GeneratedAt time.Time      `json:"generated_at"`
}
