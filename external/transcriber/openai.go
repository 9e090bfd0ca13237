package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/foxseedlab/segmentd/internal/audio"
	"github.com/foxseedlab/segmentd/internal/transcriber"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEngine uploads each segment as WAV to the audio transcription endpoint.
type OpenAIEngine struct {
	client  *openai.Client
	model   string
	encoder audio.Codec
}

// NewOpenAIEngine builds an engine; encoder must produce WAV.
func NewOpenAIEngine(apiKey, model string, encoder audio.Codec) *OpenAIEngine {
	return NewOpenAIEngineWithConfig(openai.DefaultConfig(apiKey), model, encoder)
}

func NewOpenAIEngineWithConfig(cfg openai.ClientConfig, model string, encoder audio.Codec) *OpenAIEngine {
	return &OpenAIEngine{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		encoder: encoder,
	}
}

func (e *OpenAIEngine) Recognize(ctx context.Context, pcm audio.PCM, locale string) (string, error) {
	wav, err := e.encoder.Encode(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}
	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: "segment.wav",
		Reader:   bytes.NewReader(wav),
		Language: isoLanguage(locale),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusBadRequest {
			return "", fmt.Errorf("%w: %v", transcriber.ErrNoResult, err)
		}
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", transcriber.ErrNoResult
	}
	return text, nil
}

// isoLanguage reduces a BCP-47 locale such as "en-US" to its ISO-639-1 part.
func isoLanguage(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	return strings.ToLower(lang)
}
