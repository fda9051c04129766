package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestGenerateStatusReflectsDegradation(t *testing.T) {
	g := &ReportGenerator{LLM: fakeReportLLM{}, Model: "test"}
	query := Query{Text: "q", Intent: IntentGeneral}
	plan := &ResearchPlan{Sections: []string{"Overview"}}
	summaries := []*Summary{{Text: "s", URL: "https://a.com", Citations: []Citation{{URL: "https://a.com", Title: "A"}}}}

	tests := []struct {
		name       string
		reflection *ReflectionResult
		degraded   bool
		wantStatus string
	}{
		{"complete", &ReflectionResult{IsComplete: true}, false, "complete"},
		{"incomplete research", &ReflectionResult{IsComplete: false, MissingInformation: []string{"gap"}}, false, "incomplete"},
		{"degraded run", &ReflectionResult{IsComplete: true}, true, "incomplete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := g.Generate(context.Background(), query, plan, summaries, tt.reflection, 2, tt.degraded)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if report.Metadata.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", report.Metadata.Status, tt.wantStatus)
			}
		})
	}
}

func TestGenerateWithNoSummariesUsesFallbackPrompt(t *testing.T) {
	var gotPrompt string
	g := &ReportGenerator{
		LLM: promptCapturingLLM{prompt: &gotPrompt},
	}
	report, err := g.Generate(context.Background(), Query{Text: "q"}, &ResearchPlan{Sections: []string{"Overview"}}, nil, nil, 1, true)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(gotPrompt, "No sources could be gathered") {
		t.Errorf("fallback prompt not used:\n%s", gotPrompt)
	}
	if report.Metadata.NumSources != 0 {
		t.Errorf("num_sources = %d, want 0", report.Metadata.NumSources)
	}
}

type promptCapturingLLM struct {
	prompt *string
}

func (l promptCapturingLLM) Complete(ctx context.Context, prompt string, opts ...func(*CompletionOptions)) (string, error) {
	*l.prompt = prompt
	return "body", nil
}

func TestSaveWritesReportFile(t *testing.T) {
	g := &ReportGenerator{LLM: fakeReportLLM{}, Model: "test", OutputDir: t.TempDir()}

	report, err := g.Generate(context.Background(),
		Query{Text: "what is pgvector", Intent: IntentInformational},
		&ResearchPlan{Sections: []string{"Overview"}},
		[]*Summary{{
			Text:      "pgvector adds vector similarity search to Postgres.",
			URL:       "https://github.com/pgvector/pgvector",
			Citations: []Citation{{Text: "t", URL: "https://github.com/pgvector/pgvector", Title: "pgvector"}},
		}},
		&ReflectionResult{IsComplete: false, MissingInformation: []string{"benchmarks"}, Rationale: "needs numbers"},
		3, false)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	path, err := g.Save(report)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		"# Research Report",
		"**Query:** what is pgvector",
		"## Sources",
		"https://github.com/pgvector/pgvector",
		"## Research Limitations",
		"1. benchmarks",
		"- status: incomplete",
		"- rounds: 3",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if !strings.HasPrefix(path, g.OutputDir) {
		t.Errorf("report path %q not under output dir", path)
	}
	base := path[strings.LastIndex(path, "/")+1:]
	if !strings.HasPrefix(base, "report_") || !strings.HasSuffix(base, ".md") {
		t.Errorf("filename = %q", base)
	}
}
