package adapter

import "context"

// TextParams tune a single text generation call.
type TextParams struct {
	Model     string
	MaxTokens int
}

// AIServiceAdapter is the black-box generation service. Calls may take
// seconds to low minutes; callers bound them with ctx deadlines.
type AIServiceAdapter interface {
	// GenerateText produces a short narrative from the prompt.
	GenerateText(ctx context.Context, prompt string, params TextParams) (string, error)
	// GenerateSpeech renders text to audio and returns the raw bytes plus
	// a content type (e.g. "audio/mpeg").
	GenerateSpeech(ctx context.Context, text, voice string) ([]byte, string, error)
}
