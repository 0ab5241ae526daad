// Package config provides configuration loading for docpipe.
package config

import (
	"fmt"

	"github.com/contaspt/docpipe/internal/logging"
)

// Config is the top-level docpipe configuration.
type Config struct {
	Logging    logging.Config   `koanf:"logging"`
	Database   DatabaseConfig   `koanf:"database"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Indexing   IndexingConfig   `koanf:"indexing"`
	RAG        RAGConfig        `koanf:"rag"`
}

// DatabaseConfig holds persistent store settings.
type DatabaseConfig struct {
	// DSN is the Postgres connection string. Empty selects the in-memory
	// store (development and tests only).
	DSN string `koanf:"dsn"`
}

// EmbeddingsConfig holds embedding backend settings.
type EmbeddingsConfig struct {
	// BaseURL is the base URL for the hosted embedding API.
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model to use.
	Model string `koanf:"model"`

	// APIKey is the API key (optional for self-hosted backends).
	APIKey string `koanf:"api_key"`

	// CacheTTLHours is the embedding cache entry lifetime.
	CacheTTLHours int `koanf:"cache_ttl_hours"`

	// CacheMaxEntries caps the embedding cache size.
	CacheMaxEntries int `koanf:"cache_max_entries"`
}

// IndexingConfig holds scheduled indexing settings.
type IndexingConfig struct {
	// ScanIntervalMinutes is the interval between incremental scans.
	ScanIntervalMinutes int `koanf:"scan_interval_minutes"`

	// BatchSize is the number of jobs processed per batch.
	BatchSize int `koanf:"batch_size"`

	// MaxConcurrentJobs caps the jobs a scan hands to the pipeline per
	// batch; the effective batch size never exceeds it.
	MaxConcurrentJobs int `koanf:"max_concurrent_jobs"`

	// RetryAttempts is the retry budget per failed job.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryDelayMinutes is the base retry delay; actual delay is
	// RetryDelayMinutes * attempt number (linear backoff).
	RetryDelayMinutes int `koanf:"retry_delay_minutes"`

	// AllowedFileTypes lists indexable file extensions (without dot).
	AllowedFileTypes []string `koanf:"allowed_file_types"`

	// MaxFileSizeMB is the largest file the scanner will index.
	MaxFileSizeMB int `koanf:"max_file_size_mb"`

	// EnableIncrementalSync enables modified-since scans between full scans.
	EnableIncrementalSync *bool `koanf:"enable_incremental_sync"`

	// DocumentsPath is the storage root scanned for documents.
	DocumentsPath string `koanf:"documents_path"`
}

// IncrementalSync reports whether incremental scans are enabled.
// Defaults to true when unset.
func (c IndexingConfig) IncrementalSync() bool {
	return c.EnableIncrementalSync == nil || *c.EnableIncrementalSync
}

// RAGConfig holds retrieval query settings.
type RAGConfig struct {
	// CacheTTLMinutes is the query cache entry lifetime.
	CacheTTLMinutes int `koanf:"cache_ttl_minutes"`

	// CacheMaxEntries caps the query cache size.
	CacheMaxEntries int `koanf:"cache_max_entries"`

	// DefaultTopK is the result count when a query does not specify one.
	DefaultTopK int `koanf:"default_top_k"`

	// DefaultSimilarityThreshold filters low-similarity matches.
	DefaultSimilarityThreshold float64 `koanf:"default_similarity_threshold"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}
	if cfg.Embeddings.CacheTTLHours == 0 {
		cfg.Embeddings.CacheTTLHours = 24
	}
	if cfg.Embeddings.CacheMaxEntries == 0 {
		cfg.Embeddings.CacheMaxEntries = 1000
	}

	if cfg.Indexing.ScanIntervalMinutes == 0 {
		cfg.Indexing.ScanIntervalMinutes = 30
	}
	if cfg.Indexing.BatchSize == 0 {
		cfg.Indexing.BatchSize = 5
	}
	if cfg.Indexing.MaxConcurrentJobs == 0 {
		cfg.Indexing.MaxConcurrentJobs = 3
	}
	if cfg.Indexing.RetryAttempts == 0 {
		cfg.Indexing.RetryAttempts = 3
	}
	if cfg.Indexing.RetryDelayMinutes == 0 {
		cfg.Indexing.RetryDelayMinutes = 5
	}
	if len(cfg.Indexing.AllowedFileTypes) == 0 {
		cfg.Indexing.AllowedFileTypes = []string{"pdf", "png", "jpg", "jpeg", "txt"}
	}
	if cfg.Indexing.MaxFileSizeMB == 0 {
		cfg.Indexing.MaxFileSizeMB = 50
	}
	if cfg.Indexing.DocumentsPath == "" {
		cfg.Indexing.DocumentsPath = "./documents"
	}

	if cfg.RAG.CacheTTLMinutes == 0 {
		cfg.RAG.CacheTTLMinutes = 30
	}
	if cfg.RAG.CacheMaxEntries == 0 {
		cfg.RAG.CacheMaxEntries = 1000
	}
	if cfg.RAG.DefaultTopK == 0 {
		cfg.RAG.DefaultTopK = 5
	}
	if cfg.RAG.DefaultSimilarityThreshold == 0 {
		cfg.RAG.DefaultSimilarityThreshold = 0.3
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Indexing.ScanIntervalMinutes < 1 {
		return fmt.Errorf("indexing: scan_interval_minutes must be positive")
	}
	if c.Indexing.BatchSize < 1 {
		return fmt.Errorf("indexing: batch_size must be positive")
	}
	if c.Indexing.RetryAttempts < 0 {
		return fmt.Errorf("indexing: retry_attempts must be non-negative")
	}
	if c.Indexing.MaxFileSizeMB < 1 {
		return fmt.Errorf("indexing: max_file_size_mb must be positive")
	}
	if c.RAG.DefaultSimilarityThreshold < 0 || c.RAG.DefaultSimilarityThreshold > 1 {
		return fmt.Errorf("rag: default_similarity_threshold must be in [0,1]")
	}
	return nil
}
