package poidiscovery

import "github.com/tripweaver/tripweaver/internal/llm"

var keywordSchema = llm.Object(map[string]*llm.Schema{
	"keywords": llm.Array(llm.String()),
}, "keywords")

type keywordResponse struct {
	Keywords []string `json:"keywords"`
}

var poiSummarySchema = llm.Object(map[string]*llm.Schema{
	"name":        llm.String(),
	"category":    llm.String("restaurant", "cafe", "attraction", "accommodation", "shopping", "entertainment", "other"),
	"description": llm.String(),
	"address":     llm.String(),
	"summary":     llm.String(),
	"highlights":  llm.Array(llm.String()),
}, "name", "category", "summary")

type poiSummaryResponse struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	Summary     string   `json:"summary"`
	Highlights  []string `json:"highlights"`
}

var rerankSchema = llm.Object(map[string]*llm.Schema{
	"scores": llm.Array(llm.Object(map[string]*llm.Schema{
		"id":    llm.Integer(),
		"score": llm.Number(),
	}, "id", "score")),
}, "scores")

type rerankResponse struct {
	Scores []struct {
		ID    int     `json:"id"`
		Score float64 `json:"score"`
	} `json:"scores"`
}
