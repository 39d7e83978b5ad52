package agent

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// geminiGenerator calls the Gemini API through the genai SDK.
type geminiGenerator struct {
	models *genai.Models
	model  string
}

func newGeminiGenerator(ctx context.Context, apiKey, model, baseURL string) (*geminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &geminiGenerator{models: client.Models, model: model}, nil
}

func (g *geminiGenerator) generate(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	return resp.Text(), nil
}

// classifyGeminiError marks rate limiting and server errors as retryable.
func classifyGeminiError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		// transport failures never reached the API
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &retryableError{err: fmt.Errorf("gemini request failed: %w", err)}
	}

	if retryableStatus(code) {
		return &retryableError{err: fmt.Errorf("gemini API error (%d): %w", code, err)}
	}
	return fmt.Errorf("gemini API error (%d): %w", code, err)
}
