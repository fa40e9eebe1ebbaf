package poidiscovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweaver/tripweaver/config"
	"github.com/tripweaver/tripweaver/internal/llm"
	"github.com/tripweaver/tripweaver/internal/types"
	"github.com/tripweaver/tripweaver/internal/vectorindex"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		WebWeight:       0.6,
		EmbeddingWeight: 0.4,
		RerankTopN:      10,
		KeywordK:        5,
		EmbeddingK:      5,
		WebSearchK:      10,
		FinalPoiCount:   15,
	}
}

// fakeLLM answers structured calls from canned values keyed by schema.
type fakeLLM struct {
	keywords    []string
	keywordsErr error
	summaryErr  error
	rerankErr   error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeLLM) Stream(ctx context.Context, prompt string, fn func(string) error) error {
	return errors.New("not used")
}

func (f *fakeLLM) CompleteStructured(ctx context.Context, prompt string, schema *llm.Schema, out any) error {
	fill := func(v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, out)
	}

	switch schema {
	case keywordSchema:
		if f.keywordsErr != nil {
			return f.keywordsErr
		}
		return fill(map[string]any{"keywords": f.keywords})
	case poiSummarySchema:
		if f.summaryErr != nil {
			return f.summaryErr
		}
		// Every hit gets the same fixed summary; the prompt is ignored.
		return fill(map[string]any{
			"name":     "summarized",
			"category": "restaurant",
			"summary":  "fits the persona",
		})
	case rerankSchema:
		if f.rerankErr != nil {
			return f.rerankErr
		}
		return fill(map[string]any{"scores": []map[string]any{}})
	}
	return fmt.Errorf("unexpected schema")
}

// fakeWeb returns canned candidates and records whether it was called.
type fakeWeb struct {
	results []types.PoiCandidate
	called  bool
}

func (f *fakeWeb) SearchMulti(ctx context.Context, queries []string, perQuery int) []types.PoiCandidate {
	f.called = true
	return f.results
}

// fakeIndex is an in-memory stand-in for the vector index.
type fakeIndex struct {
	mu      sync.Mutex
	records map[string]types.PoiRecord
	hits    []vectorindex.Hit
}

func newFakeIndex(hits ...vectorindex.Hit) *fakeIndex {
	return &fakeIndex{records: map[string]types.PoiRecord{}, hits: hits}
}

func (f *fakeIndex) SearchByText(ctx context.Context, query string, k int, cityFilter string) []vectorindex.Hit {
	return f.hits
}

func (f *fakeIndex) Add(ctx context.Context, rec types.PoiRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeIndex) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeValidator validates every summary except the configured rejects,
// deriving the record identity from the source URL like the real one.
type fakeValidator struct {
	rejectURLs map[string]bool
}

func (f *fakeValidator) Map(ctx context.Context, summary types.PoiSummary, city, sourceURL string, raiseOnFailure bool) (*types.PoiRecord, error) {
	if f.rejectURLs[sourceURL] {
		if raiseOnFailure {
			return nil, &types.PoiValidationError{Name: summary.Name, Reason: "no matching place"}
		}
		return nil, nil
	}
	if sourceURL == "" {
		sourceURL = types.SynthesizeSourceURL(summary.Name, city)
	}
	return &types.PoiRecord{
		ID:       types.GeneratePoiID(sourceURL),
		Name:     summary.Name,
		Category: summary.Category,
		City:     city,
		Source:   types.SourceWeb,
		RawText:  summary.Name,
	}, nil
}

func webHit(title, url string, score float64) types.PoiCandidate {
	return types.PoiCandidate{
		Title:     title,
		Snippet:   title + " snippet",
		SourceURL: url,
		Source:    types.SourceWeb,
		Relevance: score,
	}
}

func vectorHit(id, name string, score float64) vectorindex.Hit {
	return vectorindex.Hit{
		Candidate: types.PoiCandidate{
			PoiID:     id,
			Title:     name,
			Snippet:   name,
			Source:    types.SourceVector,
			Relevance: score,
		},
		Record: types.PoiRecord{ID: id, Name: name, Source: types.SourceVector, RawText: name},
	}
}

func TestGraphRun(t *testing.T) {
	t.Run("happy path produces validated final pois", func(t *testing.T) {
		index := newFakeIndex()
		graph := NewGraph(
			&fakeLLM{keywords: []string{"Euljiro snails", "Euljiro bar", "Euljiro cafe"}},
			&fakeWeb{results: []types.PoiCandidate{
				webHit("Snail House", "https://a.example.com", 0.9),
				webHit("Euljiro Bar", "https://b.example.com", 0.8),
				webHit("Euljiro Cafe", "https://c.example.com", 0.7),
			}},
			index,
			&fakeValidator{},
			testConfig(),
			testLogger(),
		)

		state, err := graph.Run(context.Background(), "20s solo traveler, Euljiro food tour", "Seoul", "2025-07-01", "2025-07-01")
		require.NoError(t, err)

		assert.Len(t, state.FinalPoiData, 3)
		assert.Len(t, state.PoiDataMap, 3)
		assert.Equal(t, 3, index.size(), "every validated record is persisted")

		for _, cand := range state.RerankedWeb {
			assert.NotEmpty(t, cand.PoiID, "processed web hits carry their record id")
		}
	})

	t.Run("duplicate URLs collapse to a single record", func(t *testing.T) {
		index := newFakeIndex()
		graph := NewGraph(
			&fakeLLM{keywords: []string{"Euljiro"}},
			&fakeWeb{results: []types.PoiCandidate{
				webHit("Snail House", "https://dup.example.com", 0.9),
				webHit("Snail House again", "https://dup.example.com", 0.8),
			}},
			index,
			&fakeValidator{},
			testConfig(),
			testLogger(),
		)

		state, err := graph.Run(context.Background(), "food tour", "Seoul", "", "")
		require.NoError(t, err)

		assert.Len(t, state.PoiDataMap, 1, "same URL means same poi_id")
		assert.Equal(t, 1, index.size())
		assert.Len(t, state.FinalPoiData, 1)
	})

	t.Run("validation failure skips the hit and continues", func(t *testing.T) {
		index := newFakeIndex()
		graph := NewGraph(
			&fakeLLM{keywords: []string{"Euljiro"}},
			&fakeWeb{results: []types.PoiCandidate{
				webHit("Ghost Venue", "https://ghost.example.com", 0.95),
				webHit("Snail House", "https://real.example.com", 0.9),
			}},
			index,
			&fakeValidator{rejectURLs: map[string]bool{"https://ghost.example.com": true}},
			testConfig(),
			testLogger(),
		)

		state, err := graph.Run(context.Background(), "food tour", "Seoul", "", "")
		require.NoError(t, err)

		require.Len(t, state.FinalPoiData, 1)
		assert.NotContains(t, state.PoiDataMap, types.GeneratePoiID("https://ghost.example.com"))
	})

	t.Run("empty persona skips search entirely", func(t *testing.T) {
		web := &fakeWeb{}
		graph := NewGraph(&fakeLLM{}, web, newFakeIndex(), &fakeValidator{}, testConfig(), testLogger())

		state, err := graph.Run(context.Background(), "", "Seoul", "", "")
		require.NoError(t, err)

		assert.Empty(t, state.Keywords)
		assert.Empty(t, state.FinalPoiData)
		assert.False(t, web.called)
	})

	t.Run("keyword extraction failure falls back to destination", func(t *testing.T) {
		web := &fakeWeb{}
		graph := NewGraph(
			&fakeLLM{keywordsErr: types.NewLLMError(types.LLMUpstream5xx, errors.New("down"))},
			web, newFakeIndex(), &fakeValidator{}, testConfig(), testLogger())

		state, err := graph.Run(context.Background(), "food tour", "Seoul", "", "")
		require.NoError(t, err)

		assert.Equal(t, []string{"Seoul"}, state.Keywords)
		assert.True(t, web.called)
	})

	t.Run("empty web search falls through to the vector branch", func(t *testing.T) {
		index := newFakeIndex(
			vectorHit("id-1", "Gwangjang Market", 0.8),
			vectorHit("id-2", "Cheonggyecheon", 0.6),
		)
		graph := NewGraph(
			&fakeLLM{keywords: []string{"Seoul food"}},
			&fakeWeb{},
			index,
			&fakeValidator{},
			testConfig(),
			testLogger(),
		)

		state, err := graph.Run(context.Background(), "food tour", "Seoul", "", "")
		require.NoError(t, err)

		require.Len(t, state.FinalPoiData, 2)
		assert.Empty(t, state.WebResults)
		for _, rec := range state.FinalPoiData {
			assert.Equal(t, types.SourceVector, rec.Source)
		}
	})

	t.Run("vector hits deduplicate by poi id across keywords", func(t *testing.T) {
		index := newFakeIndex(vectorHit("id-1", "Gwangjang Market", 0.8))
		graph := NewGraph(
			&fakeLLM{keywords: []string{"kw1", "kw2", "kw3"}},
			&fakeWeb{},
			index,
			&fakeValidator{},
			testConfig(),
			testLogger(),
		)

		state, err := graph.Run(context.Background(), "food tour", "Seoul", "", "")
		require.NoError(t, err)

		assert.Len(t, state.VectorResults, 1)
		assert.Len(t, state.FinalPoiData, 1)
	})

	t.Run("summarize failure skips the hit", func(t *testing.T) {
		graph := NewGraph(
			&fakeLLM{
				keywords:   []string{"Euljiro"},
				summaryErr: types.NewLLMError(types.LLMSchemaViolation, errors.New("bad json")),
			},
			&fakeWeb{results: []types.PoiCandidate{webHit("Snail House", "https://a.example.com", 0.9)}},
			newFakeIndex(),
			&fakeValidator{},
			testConfig(),
			testLogger(),
		)

		state, err := graph.Run(context.Background(), "food tour", "Seoul", "", "")
		require.NoError(t, err)
		assert.Empty(t, state.FinalPoiData)
	})
}

func TestRerank(t *testing.T) {
	cfg := testConfig()
	cfg.RerankTopN = 2

	candidates := []types.PoiCandidate{
		webHit("A", "https://a.example.com", 0.5),
		webHit("B", "https://b.example.com", 0.4),
		webHit("C", "https://c.example.com", 0.3),
	}

	t.Run("short inputs pass through untouched", func(t *testing.T) {
		graph := NewGraph(&fakeLLM{}, &fakeWeb{}, newFakeIndex(), &fakeValidator{}, testConfig(), testLogger())
		out := graph.rerank(context.Background(), candidates, "persona")
		assert.Equal(t, candidates, out)
	})

	t.Run("llm failure passes through the original top-n", func(t *testing.T) {
		graph := NewGraph(
			&fakeLLM{rerankErr: types.NewLLMError(types.LLMUpstream5xx, errors.New("down"))},
			&fakeWeb{}, newFakeIndex(), &fakeValidator{}, cfg, testLogger())

		out := graph.rerank(context.Background(), candidates, "persona")
		require.Len(t, out, 2)
		assert.Equal(t, "A", out[0].Title)
		assert.Equal(t, "B", out[1].Title)
	})
}
