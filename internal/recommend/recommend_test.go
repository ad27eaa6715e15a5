package recommend

import (
	"strings"
	"testing"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

func plan(strategy models.Strategy) models.InterventionPlan {
	return models.InterventionPlan{Strategy: strategy, RequiresAudio: true, Priority: models.PriorityNormal}
}

func state(emotion string, intensity float64) models.EmotionalState {
	return models.EmotionalState{
		PrimaryEmotion: emotion,
		Intensity:      intensity,
		CrisisRisk:     models.CrisisRiskNone,
		RawText:        "test",
	}
}

// The recommendation set is never empty for any valid plan/record pair.
func TestGenerateNeverEmpty(t *testing.T) {
	g := New()
	strategies := []models.Strategy{
		models.StrategyGrounding,
		models.StrategyRelease,
		models.StrategyMindfulness,
		models.StrategySleep,
		models.StrategyWorkout,
	}
	emotions := []string{"anxiety", "stress", "sadness", "anger", "guilt", "contentment", "zzz_unknown", ""}

	for _, s := range strategies {
		for _, e := range emotions {
			for intensity := 0.0; intensity <= 10.0; intensity += 2.5 {
				recs := g.Generate(plan(s), state(e, intensity))
				if len(recs) == 0 {
					t.Fatalf("strategy=%s emotion=%q intensity=%v: empty recommendation set", s, e, intensity)
				}
				for _, r := range recs {
					if r.Action == "" || r.EvidenceBasis == "" {
						t.Fatalf("strategy=%s emotion=%q: entry missing action or evidence basis: %+v", s, e, r)
					}
				}
			}
		}
	}
}

func TestGenerateEmotionSpecificActions(t *testing.T) {
	g := New()

	recs := g.Generate(plan(models.StrategyMindfulness), state("anxiety", 5))
	if !containsAction(recs, "4-7-8") {
		t.Errorf("anxiety should map to fear-family breathing action, got %v", actions(recs))
	}

	recs = g.Generate(plan(models.StrategyRelease), state("frustration", 6))
	if !containsAction(recs, "STOP technique") {
		t.Errorf("frustration should map to anger-family actions, got %v", actions(recs))
	}
}

func TestGenerateFallbackForUnknownEmotion(t *testing.T) {
	g := New()
	recs := g.Generate(plan(models.StrategyGrounding), state("contentment", 2))
	if recs[0] != DefaultSelfCare {
		t.Errorf("unknown emotion should lead with the default self-care fallback, got %+v", recs[0])
	}
}

func TestGenerateHighIntensityEscalation(t *testing.T) {
	g := New()

	high := g.Generate(plan(models.StrategyRelease), state("sadness", 9))
	if !containsAction(high, "mental health professional") {
		t.Errorf("high intensity must include professional-help guidance, got %v", actions(high))
	}

	low := g.Generate(plan(models.StrategyGrounding), state("sadness", 3))
	if containsAction(low, "mental health professional") {
		t.Errorf("low intensity must not escalate, got %v", actions(low))
	}
}

func TestGenerateStrategyFollowUp(t *testing.T) {
	g := New()
	recs := g.Generate(plan(models.StrategySleep), state("low_confidence", 4))
	if !containsAction(recs, "bedtime") {
		t.Errorf("sleep strategy should include a bedtime follow-up, got %v", actions(recs))
	}
}

func containsAction(recs []models.Recommendation, substr string) bool {
	for _, r := range recs {
		if strings.Contains(r.Action, substr) {
			return true
		}
	}
	return false
}

func actions(recs []models.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Action
	}
	return out
}
