package poidiscovery

import (
	"fmt"
	"strings"

	"github.com/tripweaver/tripweaver/internal/types"
)

func keywordExtractionPrompt(persona, destination string) string {
	return fmt.Sprintf(`You are a travel keyword extraction expert.

Analyze the following traveler persona and produce search keywords for points
of interest this traveler would enjoy.

<persona>
%s
</persona>

<destination>%s</destination>

Guidelines:
- Consider the persona's travel style, tastes, budget and companions.
- Make each keyword a concrete search query that includes the destination.
- Produce between 5 and 10 keywords.
- Cover a mix of categories: food, cafes, attractions, shopping.

Return a JSON object of the form {"keywords": ["..."]}.`, persona, destination)
}

func summarizeSinglePrompt(candidate types.PoiCandidate, persona string) string {
	if persona == "" {
		persona = "no persona provided"
	}
	return fmt.Sprintf(`You are a travel search summarization expert. Extract
the place described by a single search result and describe it for the
traveler below.

<persona>
%s
</persona>

<search_result>
<title>%s</title>
<content>%s</content>
<url>%s</url>
</search_result>

Rules:
1. Use only information present in the search result.
2. Do not guess or invent details; leave unknown fields empty.
3. name must be the exact venue name.
4. category is one of: restaurant, cafe, attraction, accommodation, shopping, entertainment, other.
5. summary explains in 2-3 sentences why this place suits the traveler.
6. highlights lists up to three short distinguishing features.

Return a JSON object with fields name, category, description, address,
summary and highlights.`, persona, candidate.Title, candidate.Snippet, candidate.SourceURL)
}

func rerankPrompt(persona string, candidates []types.PoiCandidate) string {
	var results strings.Builder
	for i, cand := range candidates {
		snippet := cand.Snippet
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		fmt.Fprintf(&results, "<result id=\"%d\">\n  <title>%s</title>\n  <content>%s</content>\n</result>\n", i+1, cand.Title, snippet)
	}

	return fmt.Sprintf(`You are a travel POI relevance judge.

Score how well each search result below matches the traveler persona, from
0.0 (irrelevant) to 1.0 (perfect match). Weigh the persona's tastes, budget
and travel style.

<persona>
%s
</persona>

<search_results>
%s</search_results>

Return a JSON object of the form
{"scores": [{"id": 1, "score": 0.85}, ...]} with one entry per result id.`, persona, results.String())
}
