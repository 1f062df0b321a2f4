package llm

import (
	"time"

	"loan-assistant/internal/common/config"
)

// GenerationConfig is the fixed set of sampling knobs sent with every call.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 1024,
	}
}

// Overrides replaces any subset of a GenerationConfig; nil fields keep the
// base value.
type Overrides struct {
	Temperature     *float64
	TopP            *float64
	TopK            *int
	MaxOutputTokens *int
}

func (g GenerationConfig) With(o Overrides) GenerationConfig {
	if o.Temperature != nil {
		g.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		g.TopP = *o.TopP
	}
	if o.TopK != nil {
		g.TopK = *o.TopK
	}
	if o.MaxOutputTokens != nil {
		g.MaxOutputTokens = *o.MaxOutputTokens
	}
	return g
}

type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxAttempts counts the first call.
	MaxAttempts    int
	RetryBaseDelay time.Duration
	Generation     GenerationConfig
}

func LoadConfig(c config.LLMConfig) *Config {
	gen := DefaultGenerationConfig()
	if c.Temperature > 0 {
		gen.Temperature = c.Temperature
	}
	if c.TopP > 0 {
		gen.TopP = c.TopP
	}
	if c.TopK > 0 {
		gen.TopK = c.TopK
	}
	if c.MaxOutputTokens > 0 {
		gen.MaxOutputTokens = c.MaxOutputTokens
	}

	cfg := &Config{
		BaseURL:        c.BaseURL,
		Model:          c.Model,
		APIKey:         c.APIKey,
		Timeout:        config.GetDuration(c.Timeout),
		MaxAttempts:    c.MaxRetries,
		RetryBaseDelay: config.GetDuration(c.RetryBaseDelay),
		Generation:     gen,
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	return cfg
}
