package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tripweaver/tripweaver/internal/types"
)

const defaultBaseURL = "https://api.tavily.com"

// Adapter turns keywords into ranked web hits. A missing API key yields empty
// results instead of failing the pipeline.
type Adapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAdapter(apiKey, baseURL string, logger *slog.Logger) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Search runs a single query and returns up to n candidates.
func (a *Adapter) Search(ctx context.Context, query string, n int) []types.PoiCandidate {
	if query == "" || a.apiKey == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"api_key":        a.apiKey,
		"query":          query,
		"max_results":    n,
		"search_depth":   "basic",
		"include_answer": false,
	})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.WarnContext(ctx, "web search request failed", slog.String("query", query), slog.Any("error", err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		a.logger.WarnContext(ctx, "web search returned error status",
			slog.Int("status", resp.StatusCode), slog.String("detail", string(detail)))
		return nil
	}

	var parsed struct {
		Results []struct {
			Title   string  `json:"title"`
			Content string  `json:"content"`
			URL     string  `json:"url"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		a.logger.WarnContext(ctx, "web search response decode failed", slog.Any("error", err))
		return nil
	}

	candidates := make([]types.PoiCandidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		candidates = append(candidates, types.PoiCandidate{
			Title:     r.Title,
			Snippet:   r.Content,
			SourceURL: r.URL,
			Source:    types.SourceWeb,
			Relevance: r.Score,
		})
	}
	return candidates
}

// SearchMulti issues all queries concurrently, deduplicates by URL and sorts
// by descending relevance.
func (a *Adapter) SearchMulti(ctx context.Context, queries []string, perQuery int) []types.PoiCandidate {
	if len(queries) == 0 {
		return nil
	}

	var mu sync.Mutex
	perQueryResults := make([][]types.PoiCandidate, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			results := a.Search(gctx, query, perQuery)
			mu.Lock()
			perQueryResults[i] = results
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil
	}

	seenURLs := make(map[string]struct{})
	var merged []types.PoiCandidate
	for _, results := range perQueryResults {
		for _, cand := range results {
			if cand.SourceURL != "" {
				if _, dup := seenURLs[cand.SourceURL]; dup {
					continue
				}
				seenURLs[cand.SourceURL] = struct{}{}
			}
			merged = append(merged, cand)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Relevance > merged[j].Relevance })
	return merged
}
