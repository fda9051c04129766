// Package pipeline drives the round-based research loop: plan, search,
// scrape, summarize, reflect, until the research is judged complete or the
// round budget runs out, then assembles the final ranked context and writes
// the report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Pipeline owns the round state and sequences the collaborators. Rounds run
// strictly sequentially; concurrency lives inside the collaborators.
type Pipeline struct {
	Intent    IntentClassifier // optional
	Planner   Planner
	Research  Researcher
	Reranker  SearchReranker // optional, nil = pass-through
	Scraper   Scraper
	Summarize Summarizer
	Reflect   Reflector
	Assembler ContextAssembler
	Reporter  *ReportGenerator

	MaxRounds int
	Logger    *slog.Logger
}

// Run executes the full research loop for one query and returns the
// generated report. The loop body runs at most MaxRounds times regardless of
// reflector behavior.
func (p *Pipeline) Run(ctx context.Context, queryText string) (*Report, error) {
	log := p.logger()

	query := Query{Text: queryText, Intent: IntentGeneral}
	if p.Intent != nil {
		intent, err := p.Intent.Classify(ctx, query)
		if err != nil {
			log.Warn("Intent classification failed, using general", "error", err)
		} else {
			query.Intent = intent
		}
	}
	log.Info("Query parsed", "intent", query.Intent)

	plan, err := p.Planner.Plan(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanningFailed, err)
	}
	log.Info("Research plan created", "sections", len(plan.Sections), "queries", len(plan.SearchQueries))

	var accumulated []*Summary
	var finalReflection *ReflectionResult
	degraded := false
	rounds := 0

	for round := 1; round <= p.maxRounds(); round++ {
		rounds = round
		log.Info("Starting research round", "round", round, "max", p.maxRounds())

		results, err := p.Research.Search(ctx, plan)
		if err != nil {
			log.Error("Search stage failed", "round", round, "error", err)
			degraded = true
			results = nil
		}
		log.Info("Search complete", "round", round, "results", len(results))

		if round == 1 && len(results) == 0 && len(accumulated) == 0 {
			return nil, fmt.Errorf("%w for query %q", ErrNoResults, query.Text)
		}

		if p.Reranker != nil && len(results) > 0 {
			reranked, err := p.Reranker.Rerank(ctx, plan.Query.Text, results)
			if err != nil {
				log.Error("Search reranking failed, keeping all results", "round", round, "error", err)
				degraded = true
			} else {
				log.Info("Search results reranked", "round", round, "before", len(results), "after", len(reranked))
				results = reranked
			}
		}

		scraped := p.Scraper.ScrapeResults(ctx, results)
		log.Info("Scraping complete", "round", round, "scraped", len(scraped))

		// Only this round's content is summarized; earlier rounds are never
		// re-summarized.
		summaries := p.Summarize.SummarizeAll(ctx, scraped, plan)
		accumulated = append(accumulated, summaries...)
		log.Info("Summaries accumulated", "round", round, "new", len(summaries), "total", len(accumulated))

		reflection, err := p.Reflect.Reflect(ctx, query, plan, accumulated)
		if err != nil {
			log.Error("Reflection failed, assuming research complete", "round", round, "error", err)
			degraded = true
			break
		}
		finalReflection = &reflection

		if reflection.IsComplete {
			log.Info("Research deemed complete", "round", round)
			break
		}
		if len(reflection.AdditionalQueries) == 0 {
			log.Info("No additional queries suggested, stopping", "round", round)
			break
		}
		if round == p.maxRounds() {
			log.Warn("Maximum rounds reached, proceeding with available summaries", "max", p.maxRounds())
			break
		}

		// A fresh plan: same sections, replaced search queries. The previous
		// plan is left intact.
		plan = &ResearchPlan{
			Query:         query,
			Sections:      plan.Sections,
			SearchQueries: reflection.AdditionalQueries,
			Rationale:     fmt.Sprintf("Iteration %d: %s", round+1, reflection.Rationale),
		}
	}

	log.Info("Research loop finished", "rounds", rounds, "summaries", len(accumulated))

	finalSummaries := accumulated
	var diagnostics ContextDiagnostics
	pkg, err := p.Assembler.Assemble(ctx, accumulated, plan)
	if err != nil {
		log.Error("Context assembly failed, using all summaries unranked", "error", err)
		degraded = true
	} else {
		finalSummaries = pkg.Summaries
		diagnostics = pkg.Diagnostics
		log.Info("Context assembled",
			"selected", diagnostics.SelectedSummaries,
			"total", diagnostics.TotalSummaries,
			"min_score", diagnostics.MinRelevanceScore,
			"max_score", diagnostics.MaxRelevanceScore)
	}

	report, err := p.Reporter.Generate(ctx, query, plan, finalSummaries, finalReflection, rounds, degraded)
	if err != nil {
		return nil, fmt.Errorf("report generation failed: %w", err)
	}
	return report, nil
}

func (p *Pipeline) maxRounds() int {
	if p.MaxRounds > 0 {
		return p.MaxRounds
	}
	return 3
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
