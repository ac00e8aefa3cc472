// Package config loads and validates the indexer's global and
// per-repository configuration.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds global configuration for one indexer deployment.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Storage   StorageConfig   `yaml:"storage"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	RepoMap   RepoMapConfig   `yaml:"repo_map"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig selects the language model the repo map summarizer calls.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "anthropic"
	Model    string `yaml:"model"`    // "claude-3-5-haiku-20241022"
}

// EmbeddingConfig selects the embedding provider and batching policy.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "voyage"
	Model     string `yaml:"model"`    // "voyage-4-large"
	BatchSize int    `yaml:"batch_size"`
}

// StorageConfig names every backend a concrete ports adapter may connect
// to. Fields for backends not in use are simply left empty.
type StorageConfig struct {
	QdrantURL       string `yaml:"qdrant_url"`
	Neo4jURL        string `yaml:"neo4j_url"`
	Neo4jUser       string `yaml:"neo4j_user"`
	Neo4jPassword   string `yaml:"neo4j_password"`
	RedisURL        string `yaml:"redis_url"`
	PostgresDSN     string `yaml:"postgres_dsn"`
	ChunkStoreDir   string `yaml:"chunk_store_dir"`   // storejson base dir
	RepoMapStoreDir string `yaml:"repo_map_store_dir"` // repomap/storejson base dir
}

// PipelineConfig mirrors pipeline.Config's tunables so they can be set
// from a config file instead of only in code.
type PipelineConfig struct {
	LargeClassMethodThreshold int  `yaml:"large_class_method_threshold"`
	SpanDriftThreshold        int  `yaml:"span_drift_threshold"`
	EnableEmbedding           bool `yaml:"enable_embedding"`
	EnableRepoMap             bool `yaml:"enable_repo_map"`
}

// RepoMapConfig mirrors repomap.BuildConfig's tunables.
type RepoMapConfig struct {
	HeuristicLOCWeight    float64 `yaml:"heuristic_loc_weight"`
	HeuristicSymbolWeight float64 `yaml:"heuristic_symbol_weight"`
	HeuristicEdgeWeight   float64 `yaml:"heuristic_edge_weight"`

	PageRankEnabled       bool    `yaml:"pagerank_enabled"`
	PageRankDamping       float64 `yaml:"pagerank_damping"`
	PageRankMaxIterations int     `yaml:"pagerank_max_iterations"`

	SummaryEnabled           bool    `yaml:"summary_enabled"`
	SummaryTopPercent        float64 `yaml:"summary_top_percent"`
	SummaryAlwaysEntrypoints bool    `yaml:"summary_always_entrypoints"`

	IncludeTests bool `yaml:"include_tests"`
	MinLOC       int  `yaml:"min_loc"`
	MaxDepth     int  `yaml:"max_depth"`

	FullRebuildChangeRatio float64 `yaml:"full_rebuild_change_ratio"`
}

// LoggingConfig controls the slog handler's verbosity and rotation.
type LoggingConfig struct {
	Level     string `yaml:"level"` // error|warn|info|debug
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// RepoConfig holds per-repository configuration, loaded from a repo's
// own .ai-devtools.yaml.
type RepoConfig struct {
	Name          string            `yaml:"name"`
	DefaultBranch string            `yaml:"default_branch"`
	Modules       map[string]Module `yaml:"modules"`
	Include       []string          `yaml:"include"`
	Exclude       []string          `yaml:"exclude"`
}

// Module describes one logical module for summarization and navigation.
type Module struct {
	Description string            `yaml:"description"`
	Submodules  map[string]string `yaml:"submodules"`
}

// DefaultConfig returns sensible defaults, mirroring pipeline.DefaultConfig
// and repomap.DefaultBuildConfig so a blank config file behaves the same
// as constructing those types directly in code.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "voyage",
			Model:     "voyage-4-large",
			BatchSize: 64,
		},
		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "claude-3-5-haiku-20241022",
		},
		Storage: StorageConfig{
			QdrantURL:       "http://localhost:6333",
			Neo4jURL:        "bolt://localhost:7687",
			RedisURL:        "redis://localhost:6379",
			ChunkStoreDir:   ".codegraph/chunks",
			RepoMapStoreDir: ".codegraph/repomap",
		},
		Pipeline: PipelineConfig{
			LargeClassMethodThreshold: 50,
			SpanDriftThreshold:        10,
			EnableEmbedding:           true,
			EnableRepoMap:             true,
		},
		RepoMap: RepoMapConfig{
			HeuristicLOCWeight:       0.3,
			HeuristicSymbolWeight:    0.4,
			HeuristicEdgeWeight:      0.3,
			PageRankEnabled:          true,
			PageRankDamping:          0.85,
			PageRankMaxIterations:    20,
			SummaryEnabled:           true,
			SummaryTopPercent:        0.2,
			SummaryAlwaysEntrypoints: true,
			IncludeTests:             false,
			MinLOC:                   10,
			MaxDepth:                 10,
			FullRebuildChangeRatio:   0.5,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 50,
			MaxFiles:  3,
		},
	}
}

// LoadConfig loads config from file, overlaying onto defaults so a
// partial file only overrides the fields it sets. A missing file is not
// an error: callers get pure defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadRepoConfig loads .ai-devtools.yaml from repo root.
func LoadRepoConfig(repoPath string) (*RepoConfig, error) {
	path := filepath.Join(repoPath, ".ai-devtools.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		CodeIndex RepoConfig `yaml:"code-index"`
	}

	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}

	return &wrapper.CodeIndex, nil
}
