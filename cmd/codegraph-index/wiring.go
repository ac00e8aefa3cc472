package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/codegraph/indexer/internal/cache"
	"github.com/codegraph/indexer/internal/chunk/storejson"
	"github.com/codegraph/indexer/internal/chunk/storepostgres"
	"github.com/codegraph/indexer/internal/chunk/storeqdrant"
	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/embedding"
	"github.com/codegraph/indexer/internal/graph/neo4jstore"
	"github.com/codegraph/indexer/internal/llm"
	"github.com/codegraph/indexer/internal/pipeline"
	"github.com/codegraph/indexer/internal/ports"
	"github.com/codegraph/indexer/internal/repomap"
	repostorejson "github.com/codegraph/indexer/internal/repomap/storejson"
)

func getGlobalConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".codegraph-index.yaml"
	}
	return filepath.Join(homeDir, ".config", "codegraph-index", "config.yaml")
}

func metricsPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "codegraph-index", "metrics.jsonl")
}

// connectGraphStore dials Neo4j if configured. A nil store disables graph
// persistence without failing the run.
func connectGraphStore(ctx context.Context, cfg *config.Config) (ports.GraphStore, func(), error) {
	if cfg.Storage.Neo4jURL == "" {
		return nil, func() {}, nil
	}
	user := cfg.Storage.Neo4jUser
	if user == "" {
		user = "neo4j"
	}
	pass := cfg.Storage.Neo4jPassword
	if pass == "" {
		pass = os.Getenv("NEO4J_PASSWORD")
	}
	if pass == "" {
		fmt.Fprintln(os.Stderr, "warning: neo4j_url configured but no password, skipping graph storage")
		return nil, func() {}, nil
	}

	store, err := neo4jstore.New(ctx, cfg.Storage.Neo4jURL, user, pass)
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect neo4j: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to ensure neo4j schema: %v\n", err)
	}
	return store, func() { store.Close(ctx) }, nil
}

// connectChunkStore picks postgres, qdrant, or a local JSON directory,
// in that preference order based on what's configured.
func connectChunkStore(ctx context.Context, cfg *config.Config) (ports.ChunkStore, func(), error) {
	if cfg.Storage.PostgresDSN != "" {
		store, err := storepostgres.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect postgres: %w", err)
		}
		return store, func() {}, nil
	}
	if cfg.Storage.QdrantURL != "" {
		host, port := splitHostPort(cfg.Storage.QdrantURL, 6334)
		dims := 1024
		store, err := storeqdrant.New(ctx, host, port, "chunks", dims)
		if err == nil {
			return store, func() {}, nil
		}
		fmt.Fprintf(os.Stderr, "warning: qdrant unavailable (%v), falling back to local chunk store\n", err)
	}
	dir := cfg.Storage.ChunkStoreDir
	if dir == "" {
		dir = ".codegraph/chunks"
	}
	store, err := storejson.New(dir)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open chunk store: %w", err)
	}
	return store, func() {}, nil
}

func connectRepoMapStore(cfg *config.Config) (ports.RepoMapStore, error) {
	dir := cfg.Storage.RepoMapStoreDir
	if dir == "" {
		dir = ".codegraph/repomap"
	}
	return repostorejson.New(dir)
}

// connectPageRankCache dials Redis if configured. A nil cache falls back
// to uncached, uniform-start PageRank on every build.
func connectPageRankCache(cfg *config.Config) repomap.PageRankCache {
	if cfg.Storage.RedisURL == "" {
		return nil
	}
	rc, err := cache.NewRedisCache(cfg.Storage.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: redis unavailable (%v), PageRank will not warm-start\n", err)
		return nil
	}
	return rc
}

func newEmbedder(cfg *config.Config) (ports.EmbeddingProvider, error) {
	if !cfg.Pipeline.EnableEmbedding {
		return nil, nil
	}
	apiKey := os.Getenv("VOYAGE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("VOYAGE_API_KEY environment variable not set")
	}
	return embedding.NewVoyageClient(apiKey, cfg.Embedding.Model), nil
}

// newLLMProvider connects the repo map summarizer's language model. A
// nil provider (no ANTHROPIC_API_KEY, or summarization disabled in
// config) leaves summarization off without failing the run.
func newLLMProvider(cfg *config.Config) ports.LLMProvider {
	if !cfg.RepoMap.SummaryEnabled {
		return nil
	}
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "warning: summary_enabled is set but ANTHROPIC_API_KEY is not, skipping summarization")
		return nil
	}
	return llm.NewAnthropicClient(apiKey, cfg.LLM.Model)
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	p := pipeline.DefaultConfig()
	p.LargeClassMethodThreshold = cfg.Pipeline.LargeClassMethodThreshold
	p.EnableEmbedding = cfg.Pipeline.EnableEmbedding
	p.EnableRepoMap = cfg.Pipeline.EnableRepoMap
	p.EmbeddingBatchSize = cfg.Embedding.BatchSize
	p.RepoMapConfig = repoMapBuildConfig(cfg)
	return p
}

// currentGitHead returns the repo's HEAD commit hash, or a fixed sentinel
// when repoPath isn't a git repository at all.
func currentGitHead(repoPath string) string {
	cmd := exec.Command("git", "-C", repoPath, "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "unversioned"
	}
	return strings.TrimSpace(string(output))
}

func repoMapBuildConfig(cfg *config.Config) repomap.BuildConfig {
	rc := cfg.RepoMap
	bc := repomap.DefaultBuildConfig()
	bc.HeuristicLOCWeight = rc.HeuristicLOCWeight
	bc.HeuristicSymbolWeight = rc.HeuristicSymbolWeight
	bc.HeuristicEdgeWeight = rc.HeuristicEdgeWeight
	bc.PageRankEnabled = rc.PageRankEnabled
	bc.PageRankDamping = rc.PageRankDamping
	bc.PageRankMaxIterations = rc.PageRankMaxIterations
	bc.SummaryEnabled = rc.SummaryEnabled
	bc.SummaryTopPercent = rc.SummaryTopPercent
	bc.SummaryAlwaysEntrypoints = rc.SummaryAlwaysEntrypoints
	bc.IncludeTests = rc.IncludeTests
	bc.MinLOC = rc.MinLOC
	bc.MaxDepth = rc.MaxDepth
	bc.FullRebuildChangeRatio = rc.FullRebuildChangeRatio
	return bc
}

// splitHostPort extracts a bare host from a qdrant_url that may be a full
// http(s) URL or a host:port pair, defaulting the gRPC port.
func splitHostPort(raw string, defaultPort int) (string, int) {
	host := raw
	for _, prefix := range []string{"http://", "https://"} {
		if len(host) > len(prefix) && host[:len(prefix)] == prefix {
			host = host[len(prefix):]
		}
	}
	for i := 0; i < len(host); i++ {
		if host[i] == ':' {
			return host[:i], defaultPort
		}
		if host[i] == '/' {
			return host[:i], defaultPort
		}
	}
	return host, defaultPort
}
