package assemble

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
	"github.com/mikeboe/research-pipeline/pkg/vectorstore"
)

// fakeEmbedder maps texts to fixed vectors. Unknown texts either error or
// get the fallback vector.
type fakeEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	failOn   map[string]bool
	calls    int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn[text] {
			return nil, errors.New("embedding unavailable")
		}
		if vec, ok := f.vectors[text]; ok {
			out[i] = vec
		} else {
			out[i] = f.fallback
		}
	}
	return out, nil
}

func summary(url, text string) *pipeline.Summary {
	return &pipeline.Summary{
		Text:           text,
		URL:            url,
		Citations:      []pipeline.Citation{{Text: text, URL: url, Title: url}},
		RelevanceScore: 1.0,
	}
}

func planFor(query string) *pipeline.ResearchPlan {
	return &pipeline.ResearchPlan{
		Query:    pipeline.Query{Text: query, Intent: pipeline.IntentGeneral},
		Sections: []string{"Overview"},
	}
}

func TestAssembleSelectsHalfAtDefaultRatio(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors:  map[string][]float32{"the query": {1, 0}},
		fallback: []float32{1, 0},
	}
	// 20 summaries with decreasing alignment to the query vector.
	summaries := make([]*pipeline.Summary, 20)
	for i := range summaries {
		text := fmt.Sprintf("summary %d", i)
		summaries[i] = summary(fmt.Sprintf("https://s%d.com", i), text)
		embedder.vectors[text] = []float32{1, float32(i) * 0.1}
	}

	a := NewAssembler(embedder, nil, 0.5, 2)
	pkg, err := a.Assemble(context.Background(), summaries, planFor("the query"))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if len(pkg.Summaries) != 10 {
		t.Fatalf("selected %d summaries, want 10", len(pkg.Summaries))
	}
	if pkg.Diagnostics.TotalSummaries != 20 || pkg.Diagnostics.SelectedSummaries != 10 {
		t.Errorf("diagnostics = %+v", pkg.Diagnostics)
	}
	for i, s := range pkg.Summaries {
		if s.RelevanceScore < 0 || s.RelevanceScore > 1 {
			t.Errorf("summary %d score %v outside [0, 1]", i, s.RelevanceScore)
		}
		if i > 0 && pkg.Summaries[i-1].RelevanceScore < s.RelevanceScore {
			t.Errorf("summaries not in descending score order at %d", i)
		}
	}
	// The best-aligned summary is summary 0.
	if pkg.Summaries[0].URL != "https://s0.com" {
		t.Errorf("top summary = %s, want https://s0.com", pkg.Summaries[0].URL)
	}
}

func TestAssembleDeterministicOrder(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"q": {1, 0},
			"a": {1, 0.1},
			"b": {1, 0.1},
			"c": {1, 0.5},
		},
	}
	summaries := []*pipeline.Summary{
		summary("https://a.com", "a"),
		summary("https://b.com", "b"),
		summary("https://c.com", "c"),
	}

	var first []string
	for run := 0; run < 5; run++ {
		a := NewAssembler(embedder, nil, 1.0, 2)
		pkg, err := a.Assemble(context.Background(), summaries, planFor("q"))
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		var order []string
		for _, s := range pkg.Summaries {
			order = append(order, s.URL)
		}
		if run == 0 {
			first = order
			// Equal scores keep input order.
			if order[0] != "https://a.com" || order[1] != "https://b.com" {
				t.Errorf("tied summaries reordered: %v", order)
			}
			continue
		}
		for i := range order {
			if order[i] != first[i] {
				t.Fatalf("run %d order %v differs from %v", run, order, first)
			}
		}
	}
}

func TestAssembleDropsDuplicateURLs(t *testing.T) {
	embedder := &fakeEmbedder{fallback: []float32{1, 0}, vectors: map[string][]float32{}}
	summaries := []*pipeline.Summary{
		summary("https://a.com", "first"),
		summary("https://a.com", "second"),
		summary("https://b.com", "third"),
	}

	a := NewAssembler(embedder, nil, 1.0, 2)
	pkg, err := a.Assemble(context.Background(), summaries, planFor("q"))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if pkg.Diagnostics.TotalSummaries != 2 {
		t.Errorf("total after dedup = %d, want 2", pkg.Diagnostics.TotalSummaries)
	}
	for _, s := range pkg.Summaries {
		if s.URL == "https://a.com" && s.Text != "first" {
			t.Error("dedup must keep the first summary per URL")
		}
	}
}

func TestAssembleQueryEmbedFailureIsFatal(t *testing.T) {
	embedder := &fakeEmbedder{failOn: map[string]bool{"q": true}}
	a := NewAssembler(embedder, nil, 0.5, 2)

	_, err := a.Assemble(context.Background(), []*pipeline.Summary{summary("https://a.com", "a")}, planFor("q"))
	if err == nil {
		t.Fatal("expected error when the query cannot be embedded")
	}
}

func TestAssembleSummaryEmbedFailureScoresZero(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors:  map[string][]float32{"q": {1, 0}, "good": {1, 0}},
		fallback: []float32{0, 1},
		failOn:   map[string]bool{"broken": true},
	}
	summaries := []*pipeline.Summary{
		summary("https://broken.com", "broken"),
		summary("https://good.com", "good"),
	}

	a := NewAssembler(embedder, nil, 1.0, 2)
	pkg, err := a.Assemble(context.Background(), summaries, planFor("q"))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(pkg.Summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(pkg.Summaries))
	}
	if pkg.Summaries[0].URL != "https://good.com" {
		t.Errorf("top summary = %s, want https://good.com", pkg.Summaries[0].URL)
	}
	if pkg.Summaries[1].RelevanceScore != 0 {
		t.Errorf("failed-embedding summary score = %v, want 0", pkg.Summaries[1].RelevanceScore)
	}
}

func TestAssembleAtLeastOneSelected(t *testing.T) {
	embedder := &fakeEmbedder{fallback: []float32{1, 0}, vectors: map[string][]float32{}}
	a := NewAssembler(embedder, nil, 0.1, 2)

	pkg, err := a.Assemble(context.Background(), []*pipeline.Summary{summary("https://a.com", "a")}, planFor("q"))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(pkg.Summaries) != 1 {
		t.Errorf("selected %d, want at least 1", len(pkg.Summaries))
	}
}

func TestAssemblePersistsToStore(t *testing.T) {
	embedder := &fakeEmbedder{fallback: []float32{1, 0}, vectors: map[string][]float32{}}
	store := vectorstore.NewMemoryStore()
	a := NewAssembler(embedder, store, 1.0, 2)

	_, err := a.Assemble(context.Background(), []*pipeline.Summary{
		summary("https://a.com", "a"),
		summary("https://b.com", "b"),
	}, planFor("q"))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	hits, err := store.Search(context.Background(), []float32{1, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("persisted %d records, want 2", len(hits))
	}
}

func TestAssembleTopKRounds(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"q": {1, 0},
			"a": {1, 0},
			"b": {1, 0.5},
			"c": {0, 1},
		},
	}
	summaries := []*pipeline.Summary{
		summary("https://a.com", "a"),
		summary("https://b.com", "b"),
		summary("https://c.com", "c"),
	}

	// round(3 * 0.5) = 2, not the truncated 1.
	a := NewAssembler(embedder, nil, 0.5, 2)
	pkg, err := a.Assemble(context.Background(), summaries, planFor("q"))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(pkg.Summaries) != 2 {
		t.Fatalf("selected %d summaries, want 2", len(pkg.Summaries))
	}
	if pkg.Summaries[0].URL != "https://a.com" || pkg.Summaries[1].URL != "https://b.com" {
		t.Errorf("selected %s, %s; want a.com, b.com", pkg.Summaries[0].URL, pkg.Summaries[1].URL)
	}
}

func TestAssembleRanksThroughStoreWithinOwnRecords(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"q": {1, 0},
			"a": {1, 0},
			"b": {1, 0.5},
			"c": {0, 1},
			"d": {1, 1},
		},
	}
	store := vectorstore.NewMemoryStore()
	// A leftover record from another run, perfectly aligned with the query.
	err := store.StoreBatch(context.Background(), []vectorstore.Record{
		{ID: "foreign", URL: "https://foreign.com", Text: "foreign", Embedding: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("StoreBatch() error = %v", err)
	}

	summaries := []*pipeline.Summary{
		summary("https://a.com", "a"),
		summary("https://b.com", "b"),
		summary("https://c.com", "c"),
		summary("https://d.com", "d"),
	}
	a := NewAssembler(embedder, store, 0.5, 2)
	pkg, err := a.Assemble(context.Background(), summaries, planFor("q"))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if len(pkg.Summaries) != 2 {
		t.Fatalf("selected %d summaries, want 2", len(pkg.Summaries))
	}
	for _, s := range pkg.Summaries {
		if s.URL == "https://foreign.com" {
			t.Fatal("selection leaked a record persisted outside this run")
		}
	}
	if pkg.Summaries[0].URL != "https://a.com" || pkg.Summaries[1].URL != "https://b.com" {
		t.Errorf("selected %s, %s; want a.com, b.com", pkg.Summaries[0].URL, pkg.Summaries[1].URL)
	}
}
