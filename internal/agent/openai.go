package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// openAIGenerator calls an OpenAI-compatible chat completion endpoint through
// langchaingo.
type openAIGenerator struct {
	llm llms.Model
}

func newOpenAIGenerator(apiKey, model, baseURL string) (*openAIGenerator, error) {
	if apiKey == "" {
		if baseURL == "" {
			return nil, ErrMissingAPIKey
		}
		// langchaingo requires a token; self-hosted endpoints ignore it
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	return &openAIGenerator{llm: llm}, nil
}

func (o *openAIGenerator) generate(ctx context.Context, system, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	resp, err := o.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// statusCode finds the HTTP status langchaingo embeds in its error text.
var statusCode = regexp.MustCompile(`status code: (\d{3})`)

// classifyOpenAIError marks rate limiting and server errors as retryable.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	m := statusCode.FindStringSubmatch(err.Error())
	if m == nil {
		return &retryableError{err: fmt.Errorf("openai request failed: %w", err)}
	}

	code, _ := strconv.Atoi(m[1])
	if retryableStatus(code) {
		return &retryableError{err: fmt.Errorf("openai API error (%d): %w", code, err)}
	}
	return fmt.Errorf("openai API error (%d): %w", code, err)
}
