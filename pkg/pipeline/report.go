package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReportGenerator produces the final Markdown report from the selected
// summaries and writes it to the output directory.
type ReportGenerator struct {
	LLM       LLM
	Model     string
	MaxTokens int
	OutputDir string
}

// Generate builds the report content with one completion call over the
// selected summaries.
func (g *ReportGenerator) Generate(ctx context.Context, query Query, plan *ResearchPlan, summaries []*Summary, reflection *ReflectionResult, rounds int, degraded bool) (*Report, error) {
	prompt := g.buildPrompt(query, plan, summaries)

	content, err := g.LLM.Complete(ctx, prompt,
		WithModel(g.Model),
		WithTemperature(0.2),
		WithMaxTokens(g.maxTokens()),
	)
	if err != nil {
		return nil, fmt.Errorf("report completion failed: %w", err)
	}

	var citations []Citation
	for _, s := range summaries {
		citations = append(citations, s.Citations...)
	}

	researchComplete := true
	rationale := ""
	var missing []string
	if reflection != nil {
		researchComplete = reflection.IsComplete
		rationale = reflection.Rationale
		if !reflection.IsComplete {
			missing = reflection.MissingInformation
		}
	}

	status := "complete"
	if !researchComplete || degraded {
		status = "incomplete"
	}

	return &Report{
		Query:     query,
		Content:   content,
		Citations: citations,
		Metadata: ReportMetadata{
			Intent:              string(query.Intent),
			Sections:            plan.Sections,
			Status:              status,
			NumSources:          len(summaries),
			Rounds:              rounds,
			ResearchComplete:    researchComplete,
			Degraded:            degraded,
			MissingInformation:  missing,
			ReflectionRationale: rationale,
		},
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (g *ReportGenerator) buildPrompt(query Query, plan *ResearchPlan, summaries []*Summary) string {
	var sb strings.Builder

	if len(summaries) == 0 {
		fmt.Fprintf(&sb, "Generate a comprehensive research report for the following query:\n\n")
		fmt.Fprintf(&sb, "Query: %q\nIntent: %s\n\nReport Sections to Cover:\n", query.Text, query.Intent)
		for _, s := range plan.Sections {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
		fmt.Fprintf(&sb, "\nResearch Approach:\n%s\n\n", plan.Rationale)
		sb.WriteString("Note: No sources could be gathered; state clearly that findings are preliminary.\n\nFormat the report in Markdown.")
		return sb.String()
	}

	currentDate := time.Now().UTC().Format("January 2, 2006")
	fmt.Fprintf(&sb, `You are writing a factual research report. Current date: %s.

The research sources below are more recent than your training data. Report
exactly what the sources say, cite every factual claim as [Source N], and do
not correct, qualify, or embellish source statements from prior knowledge.

Query: %q
Intent: %s

Report Sections to Cover:
`, currentDate, query.Text, query.Intent)
	for _, s := range plan.Sections {
		fmt.Fprintf(&sb, "- %s\n", s)
	}

	sb.WriteString("\nResearch Summaries:\n")
	for i, s := range summaries {
		fmt.Fprintf(&sb, "\nSource %d: %s\nTitle: %s\n%s\n", i+1, s.URL, s.Title(), s.Text)
	}

	sb.WriteString(`
Please provide a well-structured report with:
1. Executive summary
2. Main content organized by the sections listed above
3. Key findings with direct source citations
4. Conclusion based on evidence

Format the report in Markdown.`)
	return sb.String()
}

// Save writes the report as report_<UTC timestamp>.md with a Sources section
// and a metadata footer, and returns the file path.
func (g *ReportGenerator) Save(report *Report) (string, error) {
	if err := os.MkdirAll(g.outputDir(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	filename := fmt.Sprintf("report_%s.md", report.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(g.outputDir(), filename)

	var sb strings.Builder
	sb.WriteString("# Research Report\n\n")
	fmt.Fprintf(&sb, "**Query:** %s\n\n", report.Query.Text)
	fmt.Fprintf(&sb, "**Intent:** %s\n\n", report.Query.Intent)
	fmt.Fprintf(&sb, "**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("---\n\n")
	sb.WriteString(report.Content)

	if len(report.Citations) > 0 {
		sb.WriteString("\n\n---\n\n## Sources\n\n")
		for i, c := range report.Citations {
			fmt.Fprintf(&sb, "**[Source %d]** %s\n- URL: %s\n", i+1, c.Title, c.URL)
			if c.ChunkID != nil {
				fmt.Fprintf(&sb, "- Chunk: %d\n", *c.ChunkID)
			}
			sb.WriteString("\n")
		}
	}

	if !report.Metadata.ResearchComplete && len(report.Metadata.MissingInformation) > 0 {
		sb.WriteString("\n---\n\n## Research Limitations\n\n")
		sb.WriteString("The round budget was exhausted with the following information gaps:\n\n")
		for i, gap := range report.Metadata.MissingInformation {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, gap)
		}
		if report.Metadata.ReflectionRationale != "" {
			fmt.Fprintf(&sb, "\n**Assessment:** %s\n", report.Metadata.ReflectionRationale)
		}
	}

	sb.WriteString("\n---\n\n**Metadata:**\n")
	fmt.Fprintf(&sb, "- intent: %s\n", report.Metadata.Intent)
	fmt.Fprintf(&sb, "- status: %s\n", report.Metadata.Status)
	fmt.Fprintf(&sb, "- num_sources: %d\n", report.Metadata.NumSources)
	fmt.Fprintf(&sb, "- rounds: %d\n", report.Metadata.Rounds)
	fmt.Fprintf(&sb, "- research_complete: %t\n", report.Metadata.ResearchComplete)
	fmt.Fprintf(&sb, "- degraded: %t\n", report.Metadata.Degraded)

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}

func (g *ReportGenerator) maxTokens() int {
	if g.MaxTokens > 0 {
		return g.MaxTokens
	}
	return 4000
}

func (g *ReportGenerator) outputDir() string {
	if g.OutputDir != "" {
		return g.OutputDir
	}
	return "./reports"
}
