// internal/speech/speech.go
//
// Voice ingress and egress: whisper transcription for incoming Telegram
// voice notes and text-to-speech for spoken replies.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	sttModel = openai.Whisper1
	ttsModel = openai.SpeechModel("gpt-4o-mini-tts")
	ttsVoice = openai.VoiceAlloy
)

// Engine wraps the OpenAI audio endpoints.
type Engine struct {
	client *openai.Client
}

// New builds an Engine. baseURL may be empty for the public API.
func New(apiKey, baseURL string) *Engine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Engine{client: openai.NewClientWithConfig(cfg)}
}

// Transcribe converts an OGG/Opus voice note to Portuguese text.
func (e *Engine) Transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    sttModel,
		Reader:   bytes.NewReader(audio),
		FilePath: "voice.ogg",
		Language: "pt",
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	slog.Debug("voice transcribed", "chars", len(resp.Text))
	return resp.Text, nil
}

// Synthesize renders text to MP3 audio.
func (e *Engine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: ttsModel,
		Input: text,
		Voice: ttsVoice,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("synthesize: read response: %w", err)
	}
	return audio, nil
}
