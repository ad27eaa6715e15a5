package script

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

type stubGenerator struct {
	text  string
	err   error
	input string
}

func (s *stubGenerator) GenerateText(ctx context.Context, instructions, input string) (string, error) {
	s.input = input
	return s.text, s.err
}

func params(minutes int, tone, emotion string) models.AudioParams {
	return models.AudioParams{
		Tone:          tone,
		TargetEmotion: emotion,
		TargetMinutes: minutes,
		Background:    models.Background{Music: true, BrainWaves: true, Volume: "low"},
	}
}

func TestMeditationScriptUsesGenerator(t *testing.T) {
	stub := &stubGenerator{text: "generated script text"}
	g := New(stub)

	out := g.MeditationScript(context.Background(), models.StrategyRelease, params(10, "passionate", "grief"))
	if out != "generated script text" {
		t.Errorf("expected generated text, got %q", out)
	}
	if !strings.Contains(stub.input, "10-minute") {
		t.Errorf("prompt should carry the duration, got %q", stub.input)
	}
	if !strings.Contains(stub.input, "grief") {
		t.Errorf("release prompt should carry the target emotion, got %q", stub.input)
	}
	if !strings.Contains(stub.input, "passionate") {
		t.Errorf("prompt should carry the tone, got %q", stub.input)
	}
}

func TestMeditationScriptFallsBackOnError(t *testing.T) {
	g := New(&stubGenerator{err: errors.New("model unavailable")})
	out := g.MeditationScript(context.Background(), models.StrategySleep, params(20, "calm", ""))
	if out == "" {
		t.Fatal("fallback script must not be empty")
	}
	if !strings.Contains(out, "rest") {
		t.Errorf("expected static sleep script, got %q", out)
	}
}

func TestMeditationScriptNilClientUsesStaticCatalog(t *testing.T) {
	g := New(nil)
	strategies := []models.Strategy{
		models.StrategyGrounding,
		models.StrategyRelease,
		models.StrategyMindfulness,
		models.StrategySleep,
		models.StrategyWorkout,
	}
	seen := map[string]bool{}
	for _, s := range strategies {
		out := g.MeditationScript(context.Background(), s, params(10, "calm", "fear"))
		if out == "" {
			t.Fatalf("static script for %s must not be empty", s)
		}
		if seen[out] {
			t.Errorf("static scripts should differ per strategy; duplicate for %s", s)
		}
		seen[out] = true
	}
}

func TestBuildPromptPerStrategy(t *testing.T) {
	p := params(15, "calm", "anger")
	cases := []struct {
		strategy models.Strategy
		keyword  string
	}{
		{models.StrategyRelease, "release"},
		{models.StrategySleep, "sleep"},
		{models.StrategyWorkout, "exercise"},
		{models.StrategyMindfulness, "mindfulness"},
		{models.StrategyGrounding, "grounding"},
	}
	for _, tc := range cases {
		prompt := buildPrompt(tc.strategy, p)
		if !strings.Contains(prompt, tc.keyword) {
			t.Errorf("%s prompt missing %q: %q", tc.strategy, tc.keyword, prompt)
		}
	}
}
