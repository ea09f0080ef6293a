package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "papertrail/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourceConfig holds settings for the external reference source.
type SourceConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the number of newest references fetched per poll
	// (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// ProviderConfig holds settings for the enrichment providers.
type ProviderConfig struct {
	// Timeout bounds every provider call so a hung provider cannot
	// stall a task indefinitely; a timeout counts as provider failure.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// GenerateModel is the text-generation model identifier.
	GenerateModel string `json:"generate_model" yaml:"generate_model"`

	// EmbedModel is the embedding model identifier.
	EmbedModel string `json:"embed_model" yaml:"embed_model"`

	// APIKey is the authentication key for the provider API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// ProbeInterval is how often availability is re-probed
	// (default 30s).
	ProbeInterval time.Duration `json:"probe_interval" yaml:"probe_interval"`
}

// SchedulerConfig holds settings for continuous import tasks.
type SchedulerConfig struct {
	// DefaultInterval is the poll interval for tasks created without
	// one (default 60s).
	DefaultInterval time.Duration `json:"default_interval" yaml:"default_interval"`

	// MaxBackoff caps the exponential backoff delay after consecutive
	// source failures (default 1h).
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`

	// KnownStreak is the number of consecutive already-known results
	// that ends a scan early; the source is sorted newest-first, so a
	// run of known papers means the rest of the page is old news
	// (default 5).
	KnownStreak int `json:"known_streak" yaml:"known_streak"`

	// SemanticThreshold is the minimum similarity score for a
	// candidate to pass a task's semantic filter (default 0.3).
	SemanticThreshold float64 `json:"semantic_threshold" yaml:"semantic_threshold"`
}

// BackfillConfig holds settings for the placeholder backfill worker.
type BackfillConfig struct {
	// Interval is the fixed delay between backfill scans (default 60s).
	Interval time.Duration `json:"interval" yaml:"interval"`

	// BatchSize bounds how many papers one scan re-enriches so a
	// single tick cannot block the worker loop on a large catalog
	// (default 10).
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// GraphConfig holds settings for the relationship graph.
type GraphConfig struct {
	// SimilarityThreshold is the minimum cosine similarity for a
	// similarity edge; lower pairs get no edge, keeping the graph
	// sparse (default 0.75).
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
}

// StoreConfig holds settings for the catalog store.
type StoreConfig struct {
	// DataDir is the directory holding the snapshot database
	// (default "data"). Empty string keeps the catalog memory-only.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Config groups all component configurations.
type Config struct {
	Source    SourceConfig    `json:"source" yaml:"source"`
	Provider  ProviderConfig  `json:"provider" yaml:"provider"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Backfill  BackfillConfig  `json:"backfill" yaml:"backfill"`
	Graph     GraphConfig     `json:"graph" yaml:"graph"`
	Store     StoreConfig     `json:"store" yaml:"store"`
}

// Defaults returns the configuration used when no file or flags
// override it.
func Defaults() Config {
	return Config{
		Source: SourceConfig{
			HTTPConfig: HTTPConfig{Timeout: 30 * time.Second, UserAgent: "papertrail/0.1"},
			MaxResults: 20,
		},
		Provider: ProviderConfig{
			Timeout:       30 * time.Second,
			ProbeInterval: 30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			DefaultInterval:   60 * time.Second,
			MaxBackoff:        time.Hour,
			KnownStreak:       5,
			SemanticThreshold: 0.3,
		},
		Backfill: BackfillConfig{
			Interval:  60 * time.Second,
			BatchSize: 10,
		},
		Graph: GraphConfig{
			SimilarityThreshold: 0.75,
		},
		Store: StoreConfig{
			DataDir: "data",
		},
	}
}
