// Package llm provides the Gemini client abstraction shared by the
// pipeline stages and the duplicate gate's semantic scorer.
package llm

// ModelTier selects how much model capability a call needs.
type ModelTier string

const (
	// TierLite is for cheap classification and extraction calls.
	TierLite ModelTier = "lite"
	// TierStandard is for structured generation (documents, summaries).
	TierStandard ModelTier = "standard"
	// TierAdvanced is for quality judgment and nuanced rewriting.
	TierAdvanced ModelTier = "advanced"
)

// Config holds model selection for the application.
type Config struct {
	Models         map[ModelTier]string
	EmbeddingModel string
}

// DefaultConfig returns the default Gemini model mapping.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		EmbeddingModel: "text-embedding-004",
	}
}

// GetModel returns the model name for a tier with a standard-then-lite
// fallback chain.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	return c.Models[TierLite]
}
