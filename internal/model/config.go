package model

import "time"

// Config holds all runtime configuration for claimtrack
type Config struct {
	Render      RenderConfig      `yaml:"render" mapstructure:"render"`
	Segment     SegmentConfig     `yaml:"segment" mapstructure:"segment"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Policy      Policy            `yaml:"policy" mapstructure:"policy"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// RenderConfig configures the render coordinator and its HTTP client
type RenderConfig struct {
	Endpoint          string        `yaml:"endpoint" mapstructure:"endpoint"` // Companion render service base URL
	Domain            string        `yaml:"domain" mapstructure:"domain"`     // Wiki domain passed through to the renderer
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Debounce          time.Duration `yaml:"debounce" mapstructure:"debounce"`                       // Quiet interval before a render is issued
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`                         // Per-request ceiling before fallback
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Rate limit toward the render service
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// SegmentConfig configures sentence segmentation
type SegmentConfig struct {
	MinLength int `yaml:"min_length" mapstructure:"min_length"` // Candidates shorter than this are noise, not claims
}

// CacheConfig configures the render response cache
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	ExtractWorkers int `yaml:"extract_workers" mapstructure:"extract_workers"`
}

// OutputConfig configures CLI output behavior
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// Policy is the classification policy supplied as static configuration: which
// claim types require inline citations and the numeric gating thresholds.
// The classifier consults it rather than hard-coding the mapping.
type Policy struct {
	RequiresInline   map[ClaimType]bool `yaml:"requires_inline" mapstructure:"requires_inline"`
	MinSourceQuality int                `yaml:"min_source_quality" mapstructure:"min_source_quality"` // Floor for marking high-risk claims supported
}

// InlineRequired reports whether the policy demands an inline citation for
// the given claim type
func (p Policy) InlineRequired(t ClaimType) bool {
	if p.RequiresInline == nil {
		return false
	}
	return p.RequiresInline[t]
}

// DefaultPolicy returns the standard citation policy
func DefaultPolicy() Policy {
	return Policy{
		RequiresInline: map[ClaimType]bool{
			ClaimTypeBLP:         true,
			ClaimTypeQuote:       true,
			ClaimTypeStatistic:   true,
			ClaimTypeContentious: true,
			ClaimTypeGeneral:     false,
		},
		MinSourceQuality: 60,
	}
}

// DefaultConfig returns the built-in defaults, overridable via config file,
// environment, and flags
func DefaultConfig() *Config {
	return &Config{
		Render: RenderConfig{
			Endpoint:          "http://localhost:8000/render",
			Domain:            "en.wikipedia.org",
			UserAgent:         "claimtrack/0.1",
			Debounce:          200 * time.Millisecond,
			Timeout:           5 * time.Second,
			RequestsPerSecond: 4,
			Burst:             2,
		},
		Segment: SegmentConfig{
			MinLength: 20,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			ExtractWorkers: 4,
		},
		Policy: DefaultPolicy(),
		Output: OutputConfig{
			Verbose: false,
		},
	}
}
