package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Engine EngineConfig `mapstructure:"engine"`
}

// EngineConfig groups the tunables of the two planning pipelines.
type EngineConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Vector    VectorConfig    `mapstructure:"vector"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	BaseURL     string        `mapstructure:"baseURL"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"maxRetries"`
	MaxTokens   int           `mapstructure:"maxTokens"`
	Temperature float64       `mapstructure:"temperature"`
	TopP        float64       `mapstructure:"topP"`
}

type DiscoveryConfig struct {
	WebWeight       float64 `mapstructure:"webWeight"`
	EmbeddingWeight float64 `mapstructure:"embeddingWeight"`
	RerankTopN      int     `mapstructure:"rerankTopN"`
	KeywordK        int     `mapstructure:"keywordK"`
	EmbeddingK      int     `mapstructure:"embeddingK"`
	WebSearchK      int     `mapstructure:"webSearchK"`
	FinalPoiCount   int     `mapstructure:"finalPoiCount"`
}

type PlannerConfig struct {
	MaxIterations     int `mapstructure:"maxIterations"`
	MaxDailyMinutes   int `mapstructure:"maxDailyMinutes"`
	OptimalPoiCount   int `mapstructure:"optimalPoiCount"`
	MaxPoiCount       int `mapstructure:"maxPoiCount"`
	MinPoiCount       int `mapstructure:"minPoiCount"`
	MinPoiTotal       int `mapstructure:"minPoiTotal"`
	MaxEnrichAttempts int `mapstructure:"maxEnrichAttempts"`
}

type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	Dimension  int    `mapstructure:"dimension"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}
