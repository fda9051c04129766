package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
)

// Reflector judges whether the accumulated research answers the query, and
// if not, which gaps remain and which follow-up searches would fill them.
// Errors are returned to the caller, which stops iterating and proceeds with
// what it has.
type Reflector struct {
	LLM    jsonCompleter
	Model  string
	Logger *slog.Logger
}

func NewReflector(llm jsonCompleter, model string) *Reflector {
	return &Reflector{LLM: llm, Model: model, Logger: slog.Default()}
}

func (r *Reflector) Reflect(ctx context.Context, query pipeline.Query, plan *pipeline.ResearchPlan, summaries []*pipeline.Summary) (pipeline.ReflectionResult, error) {
	var sources strings.Builder
	for i, s := range summaries {
		text := s.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Fprintf(&sources, "Source %d: %s\n%s\n\n", i+1, s.URL, text)
	}

	var sections strings.Builder
	for _, section := range plan.Sections {
		fmt.Fprintf(&sections, "- %s\n", section)
	}

	prompt := fmt.Sprintf(`You are a research quality analyst. Analyze the research gathered so far and determine if it's sufficient to answer the user's query comprehensively.

Original Query: %q
Intent: %s

Planned Report Sections:
%s
Research Gathered (%d sources):
%s
CRITICAL ANALYSIS REQUIRED:
Evaluate if the gathered research provides sufficient information to:
1. Fully answer the original query
2. Cover all planned report sections with adequate depth
3. Provide authoritative and diverse perspectives
4. Include necessary examples, data, or technical details

Identify specific information gaps such as:
- Missing perspectives or viewpoints
- Insufficient technical depth or examples
- Lack of recent/current information
- Missing comparison or context
- Unexplored aspects of the query
- Need for official documentation or primary sources

Respond with a JSON object:
{
  "is_complete": true/false,
  "confidence": 0.0-1.0,
  "missing_information": ["Specific gap 1", "Specific gap 2"],
  "additional_queries": [
    {"query": "specific search query", "purpose": "what this will find", "priority": 1}
  ],
  "rationale": "Explanation of the completeness assessment"
}

Set is_complete to:
- true: Research is comprehensive and sufficient to produce a high-quality report
- false: Significant gaps exist that require additional research

Be critical but realistic. Minor gaps are acceptable if the core query is well-addressed.`,
		query.Text, query.Intent, sections.String(), len(summaries), sources.String())

	var resp struct {
		IsComplete         bool                   `json:"is_complete"`
		Confidence         float64                `json:"confidence"`
		MissingInformation []string               `json:"missing_information"`
		AdditionalQueries  []pipeline.SearchQuery `json:"additional_queries"`
		Rationale          string                 `json:"rationale"`
	}
	err := r.LLM.CompleteJSON(ctx, prompt, &resp,
		pipeline.WithModel(r.Model),
		pipeline.WithTemperature(0.3),
		pipeline.WithMaxTokens(1500),
	)
	if err != nil {
		return pipeline.ReflectionResult{}, fmt.Errorf("reflection failed: %w", err)
	}

	log := r.logger()
	if resp.IsComplete {
		log.Info("Research deemed complete", "confidence", resp.Confidence)
	} else {
		log.Info("Research incomplete",
			"gaps", len(resp.MissingInformation),
			"additional_queries", len(resp.AdditionalQueries))
	}

	return pipeline.ReflectionResult{
		IsComplete:         resp.IsComplete,
		MissingInformation: resp.MissingInformation,
		AdditionalQueries:  resp.AdditionalQueries,
		Rationale:          resp.Rationale,
	}, nil
}

func (r *Reflector) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
