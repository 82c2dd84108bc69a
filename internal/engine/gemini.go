package engine

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient implements ModelClient using the Google Gen AI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiOption configures the Gemini client.
type GeminiOption func(*geminiSettings)

type geminiSettings struct {
	model   string
	baseURL string
}

// WithGeminiModel sets the model name.
func WithGeminiModel(model string) GeminiOption {
	return func(s *geminiSettings) { s.model = model }
}

// WithGeminiBaseURL overrides the API endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(s *geminiSettings) { s.baseURL = url }
}

// NewGeminiClient creates a new Google Gemini model client.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	client, s, err := newGenaiClient(ctx, apiKey, opts)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client, model: s.model}, nil
}

func newGenaiClient(ctx context.Context, apiKey string, opts []GeminiOption) (*genai.Client, geminiSettings, error) {
	s := geminiSettings{model: "gemini-2.0-flash"}
	for _, opt := range opts {
		opt(&s)
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if s.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, s, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, s, nil
}

// Complete sends a prompt to Gemini and returns the response text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.3),
		ResponseMIMEType: "application/json",
	}
	return withRetry(ctx, "gemini", func(ctx context.Context) (string, error) {
		return generateText(ctx, c.client, c.model, genai.Text(prompt), config)
	})
}

func generateText(ctx context.Context, client *genai.Client, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	result, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		var ae genai.APIError
		if errors.As(err, &ae) {
			return "", &apiError{StatusCode: ae.Code, Body: ae.Message}
		}
		return "", err
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return result.Text(), nil
}
