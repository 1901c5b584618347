package ai

import (
	"context"

	"stillpoint/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAdapter)(nil)

// NoopAdapter keeps dev mode working without provider keys.
type NoopAdapter struct{}

func NewNoopAdapter() *NoopAdapter { return &NoopAdapter{} }

func (n *NoopAdapter) GenerateText(ctx context.Context, prompt string, params adapter.TextParams) (string, error) {
	return "This week you showed up for yourself. Keep going.", nil
}

func (n *NoopAdapter) GenerateSpeech(ctx context.Context, text, voice string) ([]byte, string, error) {
	return []byte("noop-audio"), "audio/mpeg", nil
}
