package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Benchmark Results</title><style>body { color: red; }</style></head>
<body>
<nav><a href="/home">Home</a></nav>
<h1>Model Benchmarks</h1>
<p>We evaluated <strong>three models</strong> on a standard suite.</p>
<script>trackPageView();</script>
<table>
<tr><th>Model</th><th>Accuracy</th></tr>
<tr><td>Alpha</td><td>0.91</td></tr>
<tr><td>Beta</td><td>0.87</td></tr>
</table>
<ul><li>Reproducible setup</li><li>Open weights</li></ul>
<footer>Copyright 2026</footer>
</body>
</html>`

func TestExtractContent(t *testing.T) {
	title, content, err := ExtractContent(samplePage)
	if err != nil {
		t.Fatalf("ExtractContent() error = %v", err)
	}
	if title != "Benchmark Results" {
		t.Errorf("title = %q", title)
	}

	for _, want := range []string{
		"# Model Benchmarks",
		"**three models**",
		"| Model | Accuracy |",
		"| Alpha | 0.91 |",
		"| Beta | 0.87 |",
		"- Reproducible setup",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q\ncontent:\n%s", want, content)
		}
	}
	for _, banned := range []string{"trackPageView", "color: red", "Copyright 2026", "Home"} {
		if strings.Contains(content, banned) {
			t.Errorf("content should not contain %q", banned)
		}
	}
}

func TestExtractContentTableSeparatorRow(t *testing.T) {
	_, content, err := ExtractContent(samplePage)
	if err != nil {
		t.Fatalf("ExtractContent() error = %v", err)
	}
	if !strings.Contains(content, "| --- | --- |") {
		t.Errorf("table separator row missing:\n%s", content)
	}
}

func TestExtractContentEscapesPipesInCells(t *testing.T) {
	page := `<html><body><table>
<tr><th>Name</th></tr>
<tr><td>a|b</td></tr>
</table></body></html>`
	_, content, err := ExtractContent(page)
	if err != nil {
		t.Fatalf("ExtractContent() error = %v", err)
	}
	if !strings.Contains(content, `a\|b`) {
		t.Errorf("pipe not escaped:\n%s", content)
	}
}

func TestExtractContentRaggedTableRows(t *testing.T) {
	page := `<html><body><table>
<tr><th>A</th><th>B</th></tr>
<tr><td>only</td></tr>
<tr><td>x</td><td>y</td><td>extra</td></tr>
</table></body></html>`
	_, content, err := ExtractContent(page)
	if err != nil {
		t.Fatalf("ExtractContent() error = %v", err)
	}
	if !strings.Contains(content, "| only |  |") {
		t.Errorf("short row not padded:\n%s", content)
	}
	if strings.Contains(content, "extra") {
		t.Errorf("long row not truncated:\n%s", content)
	}
}

func TestScrapeResultsDropsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	s := NewScraper(2)
	results := []pipeline.SearchResult{
		{URL: srv.URL + "/good", Title: "good"},
		{URL: srv.URL + "/missing", Title: "missing"},
		{URL: srv.URL + "/also-good", Title: "also good"},
	}

	scraped := s.ScrapeResults(context.Background(), results)
	if len(scraped) != 2 {
		t.Fatalf("scraped %d pages, want 2", len(scraped))
	}
	// Result order is preserved regardless of completion order.
	if scraped[0].URL != srv.URL+"/good" || scraped[1].URL != srv.URL+"/also-good" {
		t.Errorf("order = %s, %s", scraped[0].URL, scraped[1].URL)
	}
	if scraped[0].Title != "Benchmark Results" {
		t.Errorf("title = %q", scraped[0].Title)
	}
	if scraped[0].RetrievedAt.IsZero() {
		t.Error("retrieved_at not set")
	}
}

func TestScrapeSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	s := NewScraper(1)
	if _, err := s.Scrape(context.Background(), srv.URL); err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if !strings.Contains(gotUA, "Mozilla/5.0") {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestScrapeRejectsEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><script>only();</script></body></html>`))
	}))
	defer srv.Close()

	s := NewScraper(1)
	if _, err := s.Scrape(context.Background(), srv.URL); err == nil {
		t.Error("expected error for page with no extractable content")
	}
}
