package llm

import "time"

const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderMock       = "mock"

	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

type Config struct {
	// Provider is one of openrouter, openai, anthropic, gemini, mock.
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the endpoint of OpenAI-compatible providers.
	BaseURL string
	// Referer and Title are sent to OpenRouter for attribution.
	Referer string
	Title   string

	Temperature float64
	MaxTokens   int

	// Timeout bounds one logical generation, retries included.
	Timeout time.Duration
	Retry   RetryConfig
}

type RetryConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
}

func DefaultConfig() Config {
	return Config{
		Provider:    ProviderOpenRouter,
		Model:       "google/gemini-2.0-flash-exp:free",
		BaseURL:     DefaultOpenRouterBaseURL,
		Title:       "Skillway",
		Temperature: 0.7,
		MaxTokens:   2500,
		Timeout:     60 * time.Second,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BackoffBase: time.Second,
		},
	}
}

// Policy turns the retry settings into a RetryPolicy for 502/503 failures.
func (c RetryConfig) Policy() RetryPolicy {
	p := DefaultRetryPolicy(c.BackoffBase)
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	return p
}
