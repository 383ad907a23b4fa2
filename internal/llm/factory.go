package llm

import (
	"context"
	"fmt"

	"github.com/mind-engage/skillway/internal/logger"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

// NewProvider builds the configured provider wrapped as
// caller -> retry -> logging -> base, so every attempt is logged.
func NewProvider(ctx context.Context, cfg Config, log *logger.Logger, events syncx.Appender) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case ProviderOpenRouter, "":
		base, err = NewOpenRouterProvider(cfg)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg)
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg)
	case ProviderMock:
		base = &MockProvider{Fallback: offlineSample}
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	logged := WithLogging(base, log, events)
	return WithRetry(logged, cfg.Retry.Policy()), nil
}

// offlineSample lets the mock provider serve a usable test without network.
const offlineSample = `{"questions":[
 {"question":"Which number is even?","options":["3","7","8","11"],"correct":2,"explanation":"8 is divisible by 2."},
 {"question":"What is 5 x 6?","options":["11","30","56","35"],"correct":1,"explanation":"5 x 6 = 30."},
 {"question":"Which shape has three sides?","options":["Square","Circle","Triangle","Hexagon"],"correct":2,"explanation":"A triangle has three sides."}
]}`
