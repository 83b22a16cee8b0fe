package asr

import (
	"fmt"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Model wraps a loaded whisper.cpp model. The model itself is loaded once;
// inference goes through per-worker Transcribers because whisper contexts
// are not safe for concurrent use.
type Model struct {
	model whisper.Model
}

func LoadModel(path string) (*Model, error) {
	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model %q: %w", path, err)
	}
	return &Model{model: model}, nil
}

func (m *Model) Close() error {
	return m.model.Close()
}

// NewTranscriber creates a dedicated inference context. Each worker owns
// exactly one and never shares it.
func (m *Model) NewTranscriber() (*Transcriber, error) {
	ctx, err := m.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper context: %w", err)
	}
	if err := ctx.SetLanguage("auto"); err != nil {
		return nil, fmt.Errorf("failed to set whisper language: %w", err)
	}
	ctx.SetTranslate(false)
	return &Transcriber{ctx: ctx}, nil
}

// Transcriber runs inference on one whisper context. Not safe for
// concurrent use: callers must serialize access per instance.
type Transcriber struct {
	ctx whisper.Context
}

// Transcribe runs blocking inference over 16 kHz mono samples and returns
// the concatenated segment text.
func (t *Transcriber) Transcribe(samples []float32) (string, error) {
	var result strings.Builder
	segmentCallback := func(segment whisper.Segment) {
		result.WriteString(segment.Text)
	}

	if err := t.ctx.Process(samples, nil, segmentCallback, nil); err != nil {
		return "", fmt.Errorf("whisper transcribe failed: %w", err)
	}

	return result.String(), nil
}
