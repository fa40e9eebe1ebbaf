package poidiscovery

import (
	"sort"
	"strings"

	"github.com/tripweaver/tripweaver/internal/types"
)

// candidateKey identifies a candidate across branches: poi_id when known,
// then source URL, then title as a last resort.
func candidateKey(cand types.PoiCandidate) string {
	if cand.PoiID != "" {
		return "poi:" + cand.PoiID
	}
	if cand.SourceURL != "" {
		return "url:" + cand.SourceURL
	}
	return "title:" + strings.ToLower(cand.Title)
}

// mergeCandidates combines the two reranked branches under the configured
// weights. A candidate present in both branches scores
// webWeight*webScore + embeddingWeight*vectorScore; one-sided candidates keep
// their side's weighted score. Output is deduplicated, sorted by descending
// score and truncated to finalCount.
func mergeCandidates(web, vector []types.PoiCandidate, webWeight, embeddingWeight float64, finalCount int) []types.PoiCandidate {
	scored := make(map[string]*types.PoiCandidate)
	var order []string

	for _, cand := range web {
		key := candidateKey(cand)
		weighted := cand.Relevance * webWeight
		if existing, ok := scored[key]; ok {
			existing.Relevance += weighted
			continue
		}
		merged := cand
		merged.Relevance = weighted
		scored[key] = &merged
		order = append(order, key)
	}

	for _, cand := range vector {
		key := candidateKey(cand)
		weighted := cand.Relevance * embeddingWeight
		existing, ok := scored[key]
		if !ok && cand.PoiID != "" && cand.SourceURL != "" {
			// A web hit without a poi_id is keyed by URL; match it here.
			existing, ok = scored["url:"+cand.SourceURL]
		}
		if ok {
			existing.Relevance += weighted
			if existing.PoiID == "" && cand.PoiID != "" {
				existing.PoiID = cand.PoiID
			}
			continue
		}
		merged := cand
		merged.Relevance = weighted
		scored[key] = &merged
		order = append(order, key)
	}

	merged := make([]types.PoiCandidate, 0, len(order))
	for _, key := range order {
		merged = append(merged, *scored[key])
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Relevance > merged[j].Relevance })

	if finalCount > 0 && len(merged) > finalCount {
		merged = merged[:finalCount]
	}
	return merged
}

// resolveRecords materializes the merged candidates into records via the
// reduced poi_data_map; candidates with no record are dropped.
func resolveRecords(merged []types.PoiCandidate, poiDataMap map[string]types.PoiRecord) []types.PoiRecord {
	records := make([]types.PoiRecord, 0, len(merged))
	for _, cand := range merged {
		if cand.PoiID == "" {
			continue
		}
		if rec, ok := poiDataMap[cand.PoiID]; ok {
			records = append(records, rec)
		}
	}
	return records
}
