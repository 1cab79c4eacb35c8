// Package speech turns recorded caller audio into utterance text.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AssemblyAI/assemblyai-go-sdk"

	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
)

// ErrNotConfigured is returned when no AssemblyAI key is set.
var ErrNotConfigured = errors.New("speech: ASSEMBLYAI_API_KEY is not configured")

// ErrEmptyTranscript is returned when the audio held no speech.
var ErrEmptyTranscript = errors.New("speech: transcript is empty")

// Transcriber converts audio into text.
type Transcriber interface {
	TranscribeURL(ctx context.Context, audioURL string) (string, error)
	TranscribeAudio(ctx context.Context, audio io.Reader) (string, error)
}

// AssemblyAITranscriber uses the AssemblyAI transcript API.
type AssemblyAITranscriber struct {
	client *assemblyai.Client
	logger *logging.ChanneledLogger
}

var _ Transcriber = (*AssemblyAITranscriber)(nil)

// NewAssemblyAITranscriber returns nil when apiKey is empty, so callers can
// treat transcription as an optional capability.
func NewAssemblyAITranscriber(apiKey string, logger *logging.ChanneledLogger) *AssemblyAITranscriber {
	if apiKey == "" {
		return nil
	}
	return &AssemblyAITranscriber{client: assemblyai.NewClient(apiKey), logger: logger}
}

func (t *AssemblyAITranscriber) TranscribeURL(ctx context.Context, audioURL string) (string, error) {
	if t == nil {
		return "", ErrNotConfigured
	}
	start := time.Now()
	transcript, err := t.client.Transcripts.TranscribeFromURL(ctx, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("speech: transcribe url: %w", err)
	}
	text, err := transcriptText(transcript)
	t.logger.Speech().Debug("Transcribed audio URL", "duration", time.Since(start), "chars", len(text), "error", err)
	return text, err
}

func (t *AssemblyAITranscriber) TranscribeAudio(ctx context.Context, audio io.Reader) (string, error) {
	if t == nil {
		return "", ErrNotConfigured
	}
	start := time.Now()
	transcript, err := t.client.Transcripts.TranscribeFromReader(ctx, audio, nil)
	if err != nil {
		return "", fmt.Errorf("speech: transcribe upload: %w", err)
	}
	text, err := transcriptText(transcript)
	t.logger.Speech().Debug("Transcribed uploaded audio", "duration", time.Since(start), "chars", len(text), "error", err)
	return text, err
}

func transcriptText(transcript assemblyai.Transcript) (string, error) {
	if transcript.Error != nil && *transcript.Error != "" {
		return "", fmt.Errorf("speech: %s", *transcript.Error)
	}
	if transcript.Text == nil {
		return "", ErrEmptyTranscript
	}
	text := strings.TrimSpace(*transcript.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
