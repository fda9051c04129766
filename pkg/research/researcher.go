package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
)

const defaultSerperURL = "https://google.serper.dev/search"

// Searcher executes a plan's search queries against the Serper API. Queries
// run in parallel up to Workers; a failed query is logged and skipped so one
// bad query cannot sink the round.
type Searcher struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	NumResults int
	Workers    int
	Logger     *slog.Logger
}

func NewSearcher(apiKey string, workers int) *Searcher {
	return &Searcher{
		APIKey:     apiKey,
		BaseURL:    defaultSerperURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		NumResults: 10,
		Workers:    workers,
		Logger:     slog.Default(),
	}
}

// Search runs every query in the plan and returns the deduplicated results
// in query order. The search type follows the query intent: news queries use
// a news search, research queries a scholar search, everything else a plain
// web search.
func (s *Searcher) Search(ctx context.Context, plan *pipeline.ResearchPlan) ([]pipeline.SearchResult, error) {
	log := s.logger()
	searchType := selectSearchType(plan.Query.Intent)
	log.Info("Executing search queries", "queries", len(plan.SearchQueries), "type", searchType)

	perQuery := make([][]pipeline.SearchResult, len(plan.SearchQueries))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.workers())

	for i, sq := range plan.SearchQueries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results, err := s.executeSearch(ctx, query, searchType)
			if err != nil {
				log.Error("Search query failed", "query", query, "error", err)
				return
			}
			log.Info("Search query complete", "query", query, "results", len(results))
			perQuery[i] = results
		}(i, sq.Query)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var all []pipeline.SearchResult
	for _, results := range perQuery {
		for _, r := range results {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			all = append(all, r)
		}
	}

	log.Info("Search complete", "total", len(all))
	return all, nil
}

func selectSearchType(intent pipeline.Intent) string {
	switch intent {
	case pipeline.IntentNews:
		return "news"
	case pipeline.IntentResearch:
		return "scholar"
	default:
		return "search"
	}
}

func (s *Searcher) executeSearch(ctx context.Context, query, searchType string) ([]pipeline.SearchResult, error) {
	payload, err := json.Marshal(map[string]any{
		"q":    query,
		"num":  s.numResults(),
		"type": searchType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search payload: %w", err)
	}

	url := s.BaseURL
	if url == "" {
		url = defaultSerperURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var body struct {
		Organic []serperItem `json:"organic"`
		News    []serperItem `json:"news"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	items := body.Organic
	if searchType == "news" {
		items = body.News
	}

	results := make([]pipeline.SearchResult, 0, len(items))
	for i, item := range items {
		results = append(results, pipeline.SearchResult{
			URL:     item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
			Rank:    i + 1,
		})
	}
	return results, nil
}

type serperItem struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

func (s *Searcher) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return 3
}

func (s *Searcher) numResults() int {
	if s.NumResults > 0 {
		return s.NumResults
	}
	return 10
}

func (s *Searcher) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return http.DefaultClient
}

func (s *Searcher) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
