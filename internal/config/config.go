// Package config provides configuration loading and validation for the
// service and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// GateConfig tunes the duplicate-detection gate. Weights must sum to 1.0
// and the auto-merge threshold must sit above the ambiguity floor.
type GateConfig struct {
	TitleWeight        float64 `json:"title_weight" validate:"gte=0,lte=1"`
	OrganizationWeight float64 `json:"organization_weight" validate:"gte=0,lte=1"`
	BodyWeight         float64 `json:"body_weight" validate:"gte=0,lte=1"`
	LocationWeight     float64 `json:"location_weight" validate:"gte=0,lte=1"`

	AutoMergeThreshold float64 `json:"auto_merge_threshold" validate:"gt=0,lte=1"`
	AmbiguousThreshold float64 `json:"ambiguous_threshold" validate:"gt=0,lt=1"`

	// WindowDays bounds the candidate pool by discovery recency.
	WindowDays int `json:"window_days" validate:"gt=0"`
}

// PipelineConfig tunes stage retry behavior and the fit/quality bands.
type PipelineConfig struct {
	TransientAttempts    int     `json:"transient_attempts" validate:"gte=1"`
	UnclassifiedAttempts int     `json:"unclassified_attempts" validate:"gte=1"`
	BackoffBaseSeconds   int     `json:"backoff_base_seconds" validate:"gte=1"`
	MinFitScore          float64 `json:"min_fit_score" validate:"gte=0,lte=1"`
	QualityPassScore     float64 `json:"quality_pass_score" validate:"gte=0,lte=1"`
	QualityBorderScore   float64 `json:"quality_border_score" validate:"gte=0,lte=1"`
}

// Config is the full service configuration, loadable from a JSON file
// with environment variables filling the secrets.
type Config struct {
	DatabaseURL string `json:"database_url,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	ListenAddr  string `json:"listen_addr,omitempty"`

	// Profile is the candidate profile text given to the scoring and
	// generation stages.
	Profile string `json:"profile,omitempty"`

	// Feeds are the source URLs polled during ingestion.
	Feeds []string `json:"feeds,omitempty"`
	// PollInterval is how often feeds are polled, e.g. "15m".
	PollInterval string `json:"poll_interval,omitempty"`
	// UseBrowser enables the headless-browser fetcher for sources that
	// render postings client side.
	UseBrowser bool `json:"use_browser,omitempty"`

	Gate     GateConfig     `json:"gate"`
	Pipeline PipelineConfig `json:"pipeline"`

	Verbose bool `json:"verbose,omitempty"`
}

// Defaults returns the configuration used when no file overrides it.
func Defaults() Config {
	return Config{
		ListenAddr:   ":8080",
		PollInterval: "15m",
		Gate: GateConfig{
			TitleWeight:        0.20,
			OrganizationWeight: 0.10,
			BodyWeight:         0.50,
			LocationWeight:     0.20,
			AutoMergeThreshold: 0.90,
			AmbiguousThreshold: 0.75,
			WindowDays:         30,
		},
		Pipeline: PipelineConfig{
			TransientAttempts:    3,
			UnclassifiedAttempts: 1,
			BackoffBaseSeconds:   2,
			MinFitScore:          0.6,
			QualityPassScore:     0.8,
			QualityBorderScore:   0.5,
		},
	}
}

// LoadConfig loads configuration from a JSON file and merges it over the
// defaults. Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	cfg.fillFromEnv()
	return &cfg, nil
}

// fillFromEnv fills secrets and connection strings from the environment
// when the file left them empty. Environment never overrides the file.
func (c *Config) fillFromEnv() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// PollIntervalDuration parses PollInterval, falling back to 15 minutes.
func (c *Config) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// weightSumTolerance absorbs float drift when checking that the gate
// weights sum to 1.0.
const weightSumTolerance = 1e-9

// Validate checks the structural constraints plus the two invariants the
// struct tags cannot express: weight sum and threshold ordering.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	g := c.Gate
	sum := g.TitleWeight + g.OrganizationWeight + g.BodyWeight + g.LocationWeight
	if diff := sum - 1.0; diff > weightSumTolerance || diff < -weightSumTolerance {
		return fmt.Errorf("config error: gate weights must sum to 1.0, got %v", sum)
	}
	if g.AmbiguousThreshold >= g.AutoMergeThreshold {
		return fmt.Errorf("config error: ambiguous_threshold %v must be below auto_merge_threshold %v",
			g.AmbiguousThreshold, g.AutoMergeThreshold)
	}

	p := c.Pipeline
	if p.QualityBorderScore > p.QualityPassScore {
		return fmt.Errorf("config error: quality_border_score %v must not exceed quality_pass_score %v",
			p.QualityBorderScore, p.QualityPassScore)
	}
	return nil
}
