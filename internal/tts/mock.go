package tts

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

// MockSynthesizer is an in-memory Synthesizer for tests and local runs. It
// records every call and can be primed to fail.
type MockSynthesizer struct {
	mu    sync.Mutex
	calls []MockCall
	err   error
}

// MockCall captures the arguments of one Synthesize invocation.
type MockCall struct {
	Text   string
	Params models.AudioParams
}

// NewMockSynthesizer creates a MockSynthesizer.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

// SetError makes subsequent Synthesize calls fail with err.
func (m *MockSynthesizer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of the recorded invocations.
func (m *MockSynthesizer) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// Synthesize records the call and returns a deterministic-shaped asset.
func (m *MockSynthesizer) Synthesize(ctx context.Context, text string, params models.AudioParams) (models.AudioAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Text: text, Params: params})
	if m.err != nil {
		return models.AudioAsset{}, models.NewExternalCallError(Component, m.err)
	}
	return models.AudioAsset{
		ID:              uuid.NewString(),
		Format:          "mp3",
		DurationSeconds: params.TargetMinutes * 60,
		VoiceProfile:    "polly:" + selectVoice(params),
	}, nil
}
