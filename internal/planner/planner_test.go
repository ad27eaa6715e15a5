package planner

import (
	"errors"
	"testing"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

func record(emotion string, intensity float64, risk models.CrisisRisk) models.EmotionalState {
	return models.EmotionalState{
		PrimaryEmotion: emotion,
		Intensity:      intensity,
		CrisisRisk:     risk,
		RawText:        "test input",
	}
}

// Crisis override must hold over the full emotion/intensity domain.
func TestPlanCrisisOverrideSweep(t *testing.T) {
	p := New()
	emotions := []string{"anxiety", "stress", "sadness", "grief", "anger", "guilt", "fear", "sleep", "lethargy", "scattered", "contentment"}
	risks := []models.CrisisRisk{models.CrisisRiskModerate, models.CrisisRiskSevere}

	for _, emotion := range emotions {
		for intensity := 0.0; intensity <= 10.0; intensity += 0.5 {
			for _, risk := range risks {
				plan, err := p.Plan(record(emotion, intensity, risk))
				if err != nil {
					t.Fatalf("emotion=%s intensity=%v risk=%s: unexpected error: %v", emotion, intensity, risk, err)
				}
				if plan.Strategy != models.StrategyCrisisProtocol {
					t.Fatalf("emotion=%s intensity=%v risk=%s: expected crisis_protocol, got %s", emotion, intensity, risk, plan.Strategy)
				}
				if plan.RequiresAudio {
					t.Fatalf("emotion=%s intensity=%v risk=%s: crisis plan must not require audio", emotion, intensity, risk)
				}
				if plan.Priority != models.PriorityUrgent {
					t.Fatalf("crisis plan must be urgent, got %s", plan.Priority)
				}
			}
		}
	}
}

// Below the crisis boundary, every plan requires audio.
func TestPlanNormalAlwaysRequiresAudio(t *testing.T) {
	p := New()
	emotions := []string{"anxiety", "stress", "sadness", "sleep", "lethargy", "scattered"}
	risks := []models.CrisisRisk{models.CrisisRiskNone, models.CrisisRiskLow}

	for _, emotion := range emotions {
		for intensity := 0.0; intensity <= 10.0; intensity++ {
			for _, risk := range risks {
				plan, err := p.Plan(record(emotion, intensity, risk))
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if plan.Strategy == models.StrategyCrisisProtocol {
					t.Fatalf("risk %s must not select crisis_protocol", risk)
				}
				if !plan.RequiresAudio {
					t.Fatalf("normal plan for %s/%v must require audio", emotion, intensity)
				}
			}
		}
	}
}

func TestPlanPriorityTable(t *testing.T) {
	cases := []struct {
		name      string
		record    models.EmotionalState
		want      models.Strategy
	}{
		{name: "high intensity wins over sleep tag", record: record("sleep", 8, models.CrisisRiskNone), want: models.StrategyRelease},
		{name: "release at threshold", record: record("anger", 7, models.CrisisRiskLow), want: models.StrategyRelease},
		{name: "sleep tag", record: record("insomnia", 5, models.CrisisRiskNone), want: models.StrategySleep},
		{name: "confidence maps to sleep", record: record("low_confidence", 3, models.CrisisRiskNone), want: models.StrategySleep},
		{name: "energy tag", record: record("lethargy", 4, models.CrisisRiskNone), want: models.StrategyWorkout},
		{name: "mindfulness tag", record: record("scattered", 5, models.CrisisRiskNone), want: models.StrategyMindfulness},
		{name: "hyphenated tag normalized", record: record("self-worth", 2, models.CrisisRiskNone), want: models.StrategySleep},
		{name: "untagged mid intensity defaults mindfulness", record: record("stress", 5, models.CrisisRiskNone), want: models.StrategyMindfulness},
		{name: "untagged low intensity defaults grounding", record: record("stress", 3, models.CrisisRiskNone), want: models.StrategyGrounding},
		{name: "secondary emotion tag beats generic default", record: models.EmotionalState{
			PrimaryEmotion:    "stress",
			SecondaryEmotions: []string{"restless"},
			Intensity:         3,
			CrisisRisk:        models.CrisisRiskNone,
			RawText:           "test",
		}, want: models.StrategyMindfulness},
	}

	p := New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := p.Plan(tc.record)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if plan.Strategy != tc.want {
				t.Errorf("expected %s, got %s (rationale: %s)", tc.want, plan.Strategy, plan.Rationale)
			}
			if plan.Rationale == "" {
				t.Error("plan must carry a rationale")
			}
		})
	}
}

func TestPlanDeterministic(t *testing.T) {
	p := New()
	r := record("anxiety", 6, models.CrisisRiskLow)
	first, err := p.Plan(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := p.Plan(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("plan not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestPlanMalformedRecord(t *testing.T) {
	p := New()

	_, err := p.Plan(models.EmotionalState{Intensity: 5, CrisisRisk: models.CrisisRiskNone})
	if !errors.Is(err, models.ErrMissingPrimaryEmotion) {
		t.Errorf("expected ErrMissingPrimaryEmotion, got %v", err)
	}

	_, err = p.Plan(models.EmotionalState{PrimaryEmotion: "stress", Intensity: 15, CrisisRisk: models.CrisisRiskNone})
	if !errors.Is(err, models.ErrIntensityOutOfRange) {
		t.Errorf("expected ErrIntensityOutOfRange, got %v", err)
	}

	_, err = p.Plan(models.EmotionalState{PrimaryEmotion: "stress", Intensity: 5, CrisisRisk: "unknown"})
	if !errors.Is(err, models.ErrInvalidCrisisRisk) {
		t.Errorf("expected ErrInvalidCrisisRisk, got %v", err)
	}
}
