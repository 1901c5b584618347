package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"stillpoint/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements text generation via Chat Completions and speech
// via the audio/speech endpoint.
type OpenAIAdapter struct {
	client      openai.Client
	textModel   string
	speechModel string
}

func NewOpenAIAdapter(apiKey, textModel, speechModel string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if textModel == "" {
		textModel = "gpt-4o-mini"
	}
	if speechModel == "" {
		speechModel = "tts-1"
	}
	return &OpenAIAdapter{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		textModel:   textModel,
		speechModel: speechModel,
	}, nil
}

func (o *OpenAIAdapter) GenerateText(ctx context.Context, prompt string, params adapter.TextParams) (string, error) {
	model := params.Model
	if model == "" {
		model = o.textModel
	}
	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if params.MaxTokens > 0 {
		body.MaxTokens = openai.Int(int64(params.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", errors.New("no choice content")
}

func (o *OpenAIAdapter) GenerateSpeech(ctx context.Context, text, voice string) ([]byte, string, error) {
	if voice == "" {
		voice = "alloy"
	}
	res, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(o.speechModel),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, "", fmt.Errorf("openai speech: %w", err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read speech body: %w", err)
	}
	return b, "audio/mpeg", nil
}
