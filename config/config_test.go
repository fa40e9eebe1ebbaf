package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig(t *testing.T) {
	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.HTTPPort)

	assert.Equal(t, 60*time.Second, cfg.Engine.LLM.Timeout)
	assert.Equal(t, 3, cfg.Engine.LLM.MaxRetries)

	assert.InDelta(t, 0.6, cfg.Engine.Discovery.WebWeight, 1e-9)
	assert.InDelta(t, 0.4, cfg.Engine.Discovery.EmbeddingWeight, 1e-9)
	assert.Equal(t, 10, cfg.Engine.Discovery.RerankTopN)
	assert.Equal(t, 15, cfg.Engine.Discovery.FinalPoiCount)

	assert.Equal(t, 5, cfg.Engine.Planner.MaxIterations)
	assert.Equal(t, 720, cfg.Engine.Planner.MaxDailyMinutes)
	assert.Equal(t, 4, cfg.Engine.Planner.OptimalPoiCount)
	assert.Equal(t, 6, cfg.Engine.Planner.MaxPoiCount)
	assert.Equal(t, 2, cfg.Engine.Planner.MinPoiCount)

	assert.Equal(t, "poi_embeddings", cfg.Engine.Vector.Collection)
	assert.Equal(t, 768, cfg.Engine.Vector.Dimension)
}
