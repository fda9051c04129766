package research

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
	"github.com/mikeboe/research-pipeline/pkg/vectorstore"
)

// Reranker orders search results by embedding similarity between the query
// and each result's title plus snippet, then keeps the top slice. A failure
// anywhere returns an error; the caller keeps the unranked results.
type Reranker struct {
	Embedder  pipeline.Embedder
	TopKRatio float64
	Logger    *slog.Logger
}

func NewReranker(embedder pipeline.Embedder, topKRatio float64) *Reranker {
	return &Reranker{Embedder: embedder, TopKRatio: topKRatio, Logger: slog.Default()}
}

func (r *Reranker) Rerank(ctx context.Context, query string, results []pipeline.SearchResult) ([]pipeline.SearchResult, error) {
	if len(results) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(results)+1)
	texts = append(texts, query)
	for _, res := range results {
		texts = append(texts, res.Title+". "+res.Snippet)
	}

	vectors, err := r.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search results: %w", err)
	}
	queryVec := vectors[0]

	ranked := make([]pipeline.SearchResult, len(results))
	copy(ranked, results)
	for i := range ranked {
		ranked[i].Score = vectorstore.CosineSimilarity(queryVec, vectors[i+1])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	topK := int(math.Round(float64(len(ranked)) * r.TopKRatio))
	if topK < 1 {
		topK = 1
	}
	if topK > len(ranked) {
		topK = len(ranked)
	}
	selected := ranked[:topK]

	r.logger().Info("Search results reranked",
		"total", len(results),
		"selected", len(selected),
		"top_score", selected[0].Score,
		"cutoff_score", selected[len(selected)-1].Score)
	return selected, nil
}

func (r *Reranker) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
