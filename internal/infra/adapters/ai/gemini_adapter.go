package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"stillpoint/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

// ErrSpeechUnsupported is returned by providers without a TTS endpoint.
var ErrSpeechUnsupported = errors.New("speech generation not supported by this provider")

// GeminiAdapter covers text generation with the official SDK. Reflections
// needing speech must run on a provider that supports it.
type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

func (g *GeminiAdapter) GenerateText(ctx context.Context, prompt string, params adapter.TextParams) (string, error) {
	model := params.Model
	if model == "" {
		model = g.defaultModel
	}
	var cfg *genai.GenerateContentConfig
	if params.MaxTokens > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(params.MaxTokens)}
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func (g *GeminiAdapter) GenerateSpeech(ctx context.Context, text, voice string) ([]byte, string, error) {
	return nil, "", ErrSpeechUnsupported
}
