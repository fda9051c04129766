// Package assemble ranks accumulated summaries against the research query by
// embedding similarity and selects the most relevant subset for the report.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
	"github.com/mikeboe/research-pipeline/pkg/vectorstore"
)

// Assembler deduplicates summaries, embeds them alongside the query, persists
// them, and returns the top slice by cosine similarity. With a store, the
// persisted rows serve the similarity ranking; persistence or search failures
// fall back to in-process ranking.
type Assembler struct {
	Embedder  pipeline.Embedder
	Store     vectorstore.Store // optional
	TopKRatio float64
	Dimension int
	Logger    *slog.Logger
}

func NewAssembler(embedder pipeline.Embedder, store vectorstore.Store, topKRatio float64, dimension int) *Assembler {
	return &Assembler{
		Embedder:  embedder,
		Store:     store,
		TopKRatio: topKRatio,
		Dimension: dimension,
		Logger:    slog.Default(),
	}
}

// Assemble builds the ranked context package. A query embedding failure is
// the only fatal condition; individual summary embedding failures fall back
// to a zero vector, which scores that summary at zero.
func (a *Assembler) Assemble(ctx context.Context, summaries []*pipeline.Summary, plan *pipeline.ResearchPlan) (*pipeline.ContextPackage, error) {
	log := a.logger()

	deduped := dedupeByURL(summaries)
	if len(deduped) < len(summaries) {
		log.Info("Duplicate summaries dropped", "before", len(summaries), "after", len(deduped))
	}
	if len(deduped) == 0 {
		return &pipeline.ContextPackage{
			Query:       plan.Query,
			Plan:        plan,
			Diagnostics: pipeline.ContextDiagnostics{TopKRatio: a.TopKRatio},
		}, nil
	}

	queryVecs, err := a.Embedder.Embed(ctx, []string{plan.Query.Text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec := queryVecs[0]

	// Summaries are embedded one call each rather than in one batch: the
	// embedder fails a batch as a whole, and a single bad summary must not
	// cost the others their vectors.
	vectors := make([][]float32, len(deduped))
	for i, s := range deduped {
		vecs, err := a.Embedder.Embed(ctx, []string{s.Text})
		if err != nil {
			log.Warn("Summary embedding failed, using zero vector", "url", s.URL, "error", err)
			vectors[i] = make([]float32, a.dimension(len(queryVec)))
			continue
		}
		vectors[i] = vecs[0]
	}

	for i, s := range deduped {
		s.RelevanceScore = vectorstore.CosineSimilarity(queryVec, vectors[i])
	}

	ids := a.persist(ctx, deduped, vectors)

	topK := int(math.Round(float64(len(deduped)) * a.TopKRatio))
	if topK < 1 {
		topK = 1
	}
	if topK > len(deduped) {
		topK = len(deduped)
	}

	selected := a.selectViaStore(ctx, queryVec, deduped, ids, topK)
	if selected == nil {
		ranked := make([]*pipeline.Summary, len(deduped))
		copy(ranked, deduped)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].RelevanceScore > ranked[j].RelevanceScore
		})
		selected = ranked[:topK]
	}

	diag := pipeline.ContextDiagnostics{
		TotalSummaries:    len(deduped),
		SelectedSummaries: len(selected),
		TopKRatio:         a.TopKRatio,
		MinRelevanceScore: selected[len(selected)-1].RelevanceScore,
		MaxRelevanceScore: selected[0].RelevanceScore,
	}
	log.Info("Context assembled",
		"total", diag.TotalSummaries,
		"selected", diag.SelectedSummaries,
		"min_score", diag.MinRelevanceScore,
		"max_score", diag.MaxRelevanceScore)

	return &pipeline.ContextPackage{
		Query:       plan.Query,
		Plan:        plan,
		Summaries:   selected,
		Diagnostics: diag,
	}, nil
}

// persist writes scored summaries and their embeddings to the store and
// returns the assigned record IDs, aligned with summaries. Storage failures
// are logged and return nil, which keeps ranking in process.
func (a *Assembler) persist(ctx context.Context, summaries []*pipeline.Summary, vectors [][]float32) []string {
	if a.Store == nil {
		return nil
	}
	// IDs derive from the URL so repeated runs upsert the same rows and
	// store-side tie-breaking stays stable.
	ids := make([]string, len(summaries))
	records := make([]vectorstore.Record, len(summaries))
	for i, s := range summaries {
		ids[i] = uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.URL)).String()
		records[i] = vectorstore.Record{
			ID:        ids[i],
			URL:       s.URL,
			Title:     s.Title(),
			Text:      s.Text,
			Score:     s.RelevanceScore,
			Embedding: vectors[i],
		}
	}
	if err := a.Store.StoreBatch(ctx, records); err != nil {
		a.logger().Warn("Failed to persist summaries", "count", len(records), "error", err)
		return nil
	}
	return ids
}

// selectViaStore ranks through the store's similarity search, restricted to
// the records just persisted. Any shortfall falls back to in-process ranking
// by returning nil. Tied scores keep input order regardless of record IDs.
func (a *Assembler) selectViaStore(ctx context.Context, queryVec []float32, summaries []*pipeline.Summary, ids []string, topK int) []*pipeline.Summary {
	if len(ids) == 0 {
		return nil
	}
	hits, err := a.Store.Search(ctx, queryVec, topK, ids)
	if err != nil {
		a.logger().Warn("Store similarity search failed, ranking in memory", "error", err)
		return nil
	}

	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return pos[hits[i].ID] < pos[hits[j].ID]
	})

	selected := make([]*pipeline.Summary, 0, len(hits))
	for _, h := range hits {
		if i, ok := pos[h.ID]; ok {
			selected = append(selected, summaries[i])
		}
	}
	if len(selected) != topK {
		a.logger().Warn("Store search returned unexpected result count, ranking in memory",
			"got", len(selected), "want", topK)
		return nil
	}
	return selected
}

// dedupeByURL keeps the first summary seen for each URL, preserving order.
func dedupeByURL(summaries []*pipeline.Summary) []*pipeline.Summary {
	seen := make(map[string]bool, len(summaries))
	out := make([]*pipeline.Summary, 0, len(summaries))
	for _, s := range summaries {
		if s == nil || seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		out = append(out, s)
	}
	return out
}

func (a *Assembler) dimension(fallback int) int {
	if a.Dimension > 0 {
		return a.Dimension
	}
	return fallback
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
