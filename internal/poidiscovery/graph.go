package poidiscovery

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tripweaver/tripweaver/config"
	"github.com/tripweaver/tripweaver/internal/llm"
	"github.com/tripweaver/tripweaver/internal/types"
	"github.com/tripweaver/tripweaver/internal/vectorindex"
)

const hitConcurrency = 5

// WebSearcher is the keyword-to-hits contract the graph needs from the web
// search adapter.
type WebSearcher interface {
	SearchMulti(ctx context.Context, queries []string, perQuery int) []types.PoiCandidate
}

// VectorIndex is the slice of the vector index used by the graph.
type VectorIndex interface {
	SearchByText(ctx context.Context, query string, k int, cityFilter string) []vectorindex.Hit
	Add(ctx context.Context, rec types.PoiRecord) error
}

// PlaceValidator confirms a summarized hit against the places API.
type PlaceValidator interface {
	Map(ctx context.Context, summary types.PoiSummary, city, sourceURL string, raiseOnFailure bool) (*types.PoiRecord, error)
}

// Graph is the POI discovery orchestrator: keyword extraction fans out into
// a web branch (search -> summarize -> validate -> persist -> rerank) and a
// vector branch (search -> rerank) that rejoin in a weighted merge. The two
// branches run in parallel and meet under the poi_data_map reducer.
type Graph struct {
	llm       llm.Client
	web       WebSearcher
	index     VectorIndex
	validator PlaceValidator
	cfg       config.DiscoveryConfig
	logger    *slog.Logger
}

func NewGraph(llmClient llm.Client, web WebSearcher, index VectorIndex, validator PlaceValidator, cfg config.DiscoveryConfig, logger *slog.Logger) *Graph {
	return &Graph{
		llm:       llmClient,
		web:       web,
		index:     index,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes the full discovery pipeline and returns the final state. The
// pipeline degrades rather than fails: unavailable collaborators shrink the
// candidate pool but never abort the run.
func (g *Graph) Run(ctx context.Context, persona, destination, startDate, endDate string) (*types.PoiState, error) {
	ctx, span := otel.Tracer("PoiDiscovery").Start(ctx, "Run", trace.WithAttributes(
		attribute.String("discovery.destination", destination),
	))
	defer span.End()

	state := &types.PoiState{
		Persona:     persona,
		Destination: destination,
		StartDate:   startDate,
		EndDate:     endDate,
		PoiDataMap:  map[string]types.PoiRecord{},
	}

	state.Keywords = g.extractKeywords(ctx, persona, destination)
	if len(state.Keywords) == 0 {
		g.logger.InfoContext(ctx, "no keywords extracted, skipping search")
		span.SetStatus(codes.Ok, "no keywords")
		return state, nil
	}

	keywords := state.Keywords
	if len(keywords) > g.cfg.KeywordK {
		keywords = keywords[:g.cfg.KeywordK]
	}

	// Parallel fan-out: the web and vector branches each produce candidates
	// plus a partial poi_data_map. Every other state field has exactly one
	// writer, so only the maps need a reducer.
	var (
		webMap    map[string]types.PoiRecord
		vectorMap map[string]types.PoiRecord
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		state.WebResults = g.web.SearchMulti(groupCtx, keywords, g.cfg.WebSearchK)
		if len(state.WebResults) > g.cfg.WebSearchK {
			state.WebResults = state.WebResults[:g.cfg.WebSearchK]
		}
		processed, localMap := g.processWebResults(groupCtx, state.WebResults, persona, destination)
		webMap = localMap
		state.RerankedWeb = g.rerank(groupCtx, processed, persona)
		return nil
	})
	group.Go(func() error {
		candidates, localMap := g.vectorSearch(groupCtx, keywords, destination)
		state.VectorResults = candidates
		vectorMap = localMap
		state.RerankedVector = g.rerank(groupCtx, candidates, persona)
		return nil
	})
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return state, err
	}

	state.PoiDataMap = types.MergePoiDataMap(webMap, vectorMap)

	state.Merged = mergeCandidates(state.RerankedWeb, state.RerankedVector,
		g.cfg.WebWeight, g.cfg.EmbeddingWeight, g.cfg.FinalPoiCount)
	state.FinalPoiData = resolveRecords(state.Merged, state.PoiDataMap)

	g.logger.InfoContext(ctx, "discovery finished",
		slog.Int("web_results", len(state.WebResults)),
		slog.Int("vector_results", len(state.VectorResults)),
		slog.Int("final_pois", len(state.FinalPoiData)))
	span.SetAttributes(attribute.Int("discovery.final_pois", len(state.FinalPoiData)))
	span.SetStatus(codes.Ok, "finished")
	return state, nil
}

// extractKeywords asks the LLM for persona search keywords. An empty persona
// yields no keywords; an LLM failure degrades to the destination itself.
func (g *Graph) extractKeywords(ctx context.Context, persona, destination string) []string {
	if persona == "" {
		return nil
	}

	var parsed keywordResponse
	err := g.llm.CompleteStructured(ctx, keywordExtractionPrompt(persona, destination), keywordSchema, &parsed)
	if err != nil {
		g.logger.WarnContext(ctx, "keyword extraction failed, falling back to destination", slog.Any("error", err))
		return []string{destination}
	}

	keywords := make([]string, 0, len(parsed.Keywords))
	for _, kw := range parsed.Keywords {
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return []string{destination}
	}
	return keywords
}

// processWebResults runs the per-hit chain (summarize -> validate -> persist)
// over the web candidates, at most hitConcurrency at a time. Hits that fail
// any step are skipped; survivors carry their record's poi_id.
func (g *Graph) processWebResults(ctx context.Context, candidates []types.PoiCandidate, persona, destination string) ([]types.PoiCandidate, map[string]types.PoiRecord) {
	if len(candidates) == 0 {
		return nil, map[string]types.PoiRecord{}
	}

	sem := semaphore.NewWeighted(hitConcurrency)
	processed := make([]*types.PoiCandidate, len(candidates))
	records := make([]*types.PoiRecord, len(candidates))
	var wg sync.WaitGroup

	for i, cand := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			summary, ok := g.summarizeSingle(ctx, cand, persona)
			if !ok {
				return
			}

			rec, err := g.validator.Map(ctx, summary, destination, cand.SourceURL, true)
			if err != nil {
				var validationErr *types.PoiValidationError
				if errors.As(err, &validationErr) {
					g.logger.WarnContext(ctx, "poi validation failed, skipping hit",
						slog.String("title", cand.Title), slog.Any("error", err))
				} else {
					g.logger.ErrorContext(ctx, "unexpected error validating hit",
						slog.String("title", cand.Title), slog.Any("error", err))
				}
				return
			}
			if rec == nil {
				return
			}

			if err := g.index.Add(ctx, *rec); err != nil {
				g.logger.WarnContext(ctx, "persisting poi failed", slog.String("poi_id", rec.ID), slog.Any("error", err))
			}

			enriched := cand
			enriched.PoiID = rec.ID
			processed[i] = &enriched
			records[i] = rec
		}()
	}
	wg.Wait()

	out := make([]types.PoiCandidate, 0, len(candidates))
	localMap := make(map[string]types.PoiRecord)
	for i := range processed {
		if processed[i] == nil {
			continue
		}
		out = append(out, *processed[i])
		localMap[records[i].ID] = *records[i]
	}
	return out, localMap
}

func (g *Graph) summarizeSingle(ctx context.Context, cand types.PoiCandidate, persona string) (types.PoiSummary, bool) {
	var parsed poiSummaryResponse
	err := g.llm.CompleteStructured(ctx, summarizeSinglePrompt(cand, persona), poiSummarySchema, &parsed)
	if err != nil || parsed.Name == "" {
		g.logger.WarnContext(ctx, "summarize failed, skipping hit",
			slog.String("title", cand.Title), slog.Any("error", err))
		return types.PoiSummary{}, false
	}

	return types.PoiSummary{
		Name:        parsed.Name,
		Category:    types.ParsePoiCategory(parsed.Category),
		Description: parsed.Description,
		Address:     parsed.Address,
		Summary:     parsed.Summary,
		Highlights:  parsed.Highlights,
	}, true
}

// vectorSearch queries the index once per keyword, deduplicating by poi_id.
func (g *Graph) vectorSearch(ctx context.Context, keywords []string, destination string) ([]types.PoiCandidate, map[string]types.PoiRecord) {
	seen := make(map[string]struct{})
	localMap := make(map[string]types.PoiRecord)
	var candidates []types.PoiCandidate

	for _, keyword := range keywords {
		for _, hit := range g.index.SearchByText(ctx, keyword, g.cfg.EmbeddingK, destination) {
			if hit.Candidate.PoiID == "" {
				continue
			}
			if _, dup := seen[hit.Candidate.PoiID]; dup {
				continue
			}
			seen[hit.Candidate.PoiID] = struct{}{}
			candidates = append(candidates, hit.Candidate)
			localMap[hit.Candidate.PoiID] = hit.Record
		}
	}
	return candidates, localMap
}

// rerank scores candidates against the persona and keeps the best
// RerankTopN. Short inputs pass through untouched; an LLM failure passes
// through the original order instead of failing the branch.
func (g *Graph) rerank(ctx context.Context, candidates []types.PoiCandidate, persona string) []types.PoiCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) <= g.cfg.RerankTopN {
		return candidates
	}

	var parsed rerankResponse
	err := g.llm.CompleteStructured(ctx, rerankPrompt(persona, candidates), rerankSchema, &parsed)
	if err != nil {
		g.logger.WarnContext(ctx, "rerank failed, passing through original order", slog.Any("error", err))
		return candidates[:g.cfg.RerankTopN]
	}

	scores := make([]float64, len(candidates))
	for _, entry := range parsed.Scores {
		idx := entry.ID - 1
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		score := entry.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[idx] = score
	}

	reranked := make([]types.PoiCandidate, len(candidates))
	copy(reranked, candidates)
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	out := make([]types.PoiCandidate, 0, g.cfg.RerankTopN)
	for _, idx := range order[:g.cfg.RerankTopN] {
		cand := reranked[idx]
		cand.Relevance = scores[idx]
		out = append(out, cand)
	}
	return out
}
