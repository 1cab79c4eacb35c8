package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/AssemblyAI/assemblyai-go-sdk"
)

func TestTranscriptText(t *testing.T) {
	tests := []struct {
		name       string
		transcript assemblyai.Transcript
		want       string
		wantErr    error
	}{
		{"text", assemblyai.Transcript{Text: assemblyai.String("  I'd like to book  ")}, "I'd like to book", nil},
		{"missing text", assemblyai.Transcript{}, "", ErrEmptyTranscript},
		{"blank text", assemblyai.Transcript{Text: assemblyai.String(" ")}, "", ErrEmptyTranscript},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transcriptText(tt.transcript)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}

	_, err := transcriptText(assemblyai.Transcript{Error: assemblyai.String("bad audio")})
	if err == nil {
		t.Error("expected transcript error to surface")
	}
}

func TestUnconfiguredTranscriber(t *testing.T) {
	tr := NewAssemblyAITranscriber("", nil)
	if tr != nil {
		t.Fatal("expected nil transcriber without a key")
	}
	if _, err := tr.TranscribeURL(context.Background(), "https://example.com/a.wav"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
