package tts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

type fakePolly struct {
	input *polly.SynthesizeSpeechInput
	err   error
}

func (f *fakePolly) SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{
		AudioStream: io.NopCloser(bytes.NewReader([]byte("mp3-bytes"))),
	}, nil
}

func testParams() models.AudioParams {
	return models.AudioParams{
		Tone:          "calm",
		TargetMinutes: 10,
		Background:    models.Background{Music: true, BrainWaves: true, Volume: "low"},
	}
}

func TestSynthesizeReturnsAsset(t *testing.T) {
	fake := &fakePolly{}
	s := NewPollySynthesizerWithClient(Config{Engine: "neural", Timeout: time.Second}, fake)

	asset, err := s.Synthesize(context.Background(), "breathe in, breathe out", testParams())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if asset.ID == "" {
		t.Error("asset must carry an ID")
	}
	if asset.Format != "mp3" {
		t.Errorf("expected mp3, got %s", asset.Format)
	}
	if asset.DurationSeconds != 600 {
		t.Errorf("expected 600s for a 10-minute session, got %d", asset.DurationSeconds)
	}
	if fake.input.Engine != pollytypes.EngineNeural {
		t.Errorf("expected neural engine, got %s", fake.input.Engine)
	}
	if fake.input.VoiceId != pollytypes.VoiceId("Joanna") {
		t.Errorf("calm tone should select Joanna, got %s", fake.input.VoiceId)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	s := NewPollySynthesizerWithClient(Config{}, &fakePolly{})
	_, err := s.Synthesize(context.Background(), "   ", testParams())
	var extErr *models.ExternalCallError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExternalCallError, got %v", err)
	}
	if extErr.Component != Component {
		t.Errorf("expected component %s, got %s", Component, extErr.Component)
	}
}

func TestSynthesizeProviderError(t *testing.T) {
	s := NewPollySynthesizerWithClient(Config{}, &fakePolly{err: errors.New("throttled")})
	_, err := s.Synthesize(context.Background(), "text", testParams())
	var extErr *models.ExternalCallError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExternalCallError, got %v", err)
	}
	if !strings.Contains(err.Error(), "throttled") {
		t.Errorf("wrapped error should carry the cause, got %v", err)
	}
}

func TestSelectVoice(t *testing.T) {
	cases := []struct {
		name   string
		params models.AudioParams
		want   string
	}{
		{"cached profile wins", models.AudioParams{VoiceProfileRef: "polly:Amy", Tone: "calm"}, "Amy"},
		{"tone mapping", models.AudioParams{Tone: "energetic"}, "Matthew"},
		{"tone case-insensitive", models.AudioParams{Tone: "Passionate"}, "Amy"},
		{"unknown tone defaults", models.AudioParams{Tone: "whimsical"}, defaultVoice},
		{"foreign profile ignored", models.AudioParams{VoiceProfileRef: "elevenlabs:abc", Tone: "calm"}, "Joanna"},
	}
	for _, tc := range cases {
		if got := selectVoice(tc.params); got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestMockSynthesizerRecordsCalls(t *testing.T) {
	m := NewMockSynthesizer()
	asset, err := m.Synthesize(context.Background(), "hello", testParams())
	if err != nil {
		t.Fatalf("mock Synthesize failed: %v", err)
	}
	if asset.VoiceProfile != "polly:Joanna" {
		t.Errorf("unexpected voice profile %s", asset.VoiceProfile)
	}
	calls := m.Calls()
	if len(calls) != 1 || calls[0].Text != "hello" {
		t.Errorf("expected one recorded call, got %+v", calls)
	}

	m.SetError(errors.New("boom"))
	if _, err := m.Synthesize(context.Background(), "hello", testParams()); err == nil {
		t.Error("expected primed error")
	}
}
