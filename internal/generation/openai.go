package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIConfig holds configuration for the OpenAI-compatible chat
// collaborator. DeepSeek and other compatible providers work by setting
// BaseURL.
type OpenAIConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	// Temperature is the determinism parameter; 0 for reproducible answers.
	Temperature float64
	// Timeout bounds each Generate call.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c OpenAIConfig) Validate() error {
	if c.Model == "" {
		return errors.New("generation model required")
	}
	if c.APIKey == "" {
		return errors.New("generation API key required")
	}
	if c.Timeout <= 0 {
		return errors.New("generation timeout must be positive")
	}
	return nil
}

// OpenAIClient calls an OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	llm    *openai.LLM
	config OpenAIConfig
}

// NewOpenAIClient creates the chat collaborator client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}

	return &OpenAIClient{llm: llm, config: cfg}, nil
}

// Generate calls the model with a bounded timeout. Deadline expiry maps
// to ErrGenerationTimeout, everything else to ErrGeneration.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(c.config.Temperature))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrGenerationTimeout, c.config.Timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return text, nil
}
