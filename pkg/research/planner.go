package research

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
)

// Planner turns a classified query into report sections and prioritized
// search queries. Planning errors are returned to the caller; the pipeline
// treats a failed first plan as fatal.
type Planner struct {
	LLM    jsonCompleter
	Model  string
	Logger *slog.Logger
}

func NewPlanner(llm jsonCompleter, model string) *Planner {
	return &Planner{LLM: llm, Model: model, Logger: slog.Default()}
}

func (p *Planner) Plan(ctx context.Context, query pipeline.Query) (*pipeline.ResearchPlan, error) {
	prompt := fmt.Sprintf(`You are a research planner. Given a user query and its intent, create a comprehensive research plan.

Query: %q
Intent: %s

Create a research plan with:
1. A list of report sections that should be covered
2. Specific search queries to gather information for each section
3. Rationale for the overall approach

Consider:
- What information is needed to fully answer the query?
- What are the most important aspects to cover?
- What search queries will find the most relevant and authoritative sources?
- For code intent: focus on documentation, examples, and best practices
- For news intent: prioritize recent sources and multiple perspectives
- For research intent: include academic sources and in-depth analysis

Respond with a JSON object:
{
  "sections": ["Section 1 title", "Section 2 title"],
  "search_queries": [
    {"query": "search query 1", "purpose": "what this query aims to find", "priority": 1},
    {"query": "search query 2", "purpose": "what this query aims to find", "priority": 2}
  ],
  "rationale": "Explanation of the research approach"
}

Priority is 1 (highest) to 5 (lowest).`, query.Text, query.Intent)

	var resp struct {
		Sections      []string               `json:"sections"`
		SearchQueries []pipeline.SearchQuery `json:"search_queries"`
		Rationale     string                 `json:"rationale"`
	}
	err := p.LLM.CompleteJSON(ctx, prompt, &resp,
		pipeline.WithModel(p.Model),
		pipeline.WithTemperature(0.7),
		pipeline.WithMaxTokens(2000),
	)
	if err != nil {
		return nil, fmt.Errorf("research planning failed: %w", err)
	}
	if len(resp.SearchQueries) == 0 {
		return nil, fmt.Errorf("research plan contains no search queries")
	}

	for i := range resp.SearchQueries {
		if resp.SearchQueries[i].Priority == 0 {
			resp.SearchQueries[i].Priority = 3
		}
	}

	p.logger().Info("Research plan created",
		"sections", len(resp.Sections),
		"queries", len(resp.SearchQueries))

	return &pipeline.ResearchPlan{
		Query:         query,
		Sections:      resp.Sections,
		SearchQueries: resp.SearchQueries,
		Rationale:     resp.Rationale,
	}, nil
}

func (p *Planner) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
