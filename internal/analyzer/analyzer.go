// Package analyzer classifies free-form emotional reports into structured
// emotional-state records, including the crisis-risk signal the planner
// branches on.
//
// Classification itself is delegated to the text-understanding collaborator;
// this package owns input validation, normalization, and the conservative
// upward mapping of ambiguous risk signals.
package analyzer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/MoodPipe/internal/genai"
	"github.com/BTreeMap/MoodPipe/internal/models"
)

// Component is the name recorded in tool traces and error wrappers.
const Component = "emotion_analyzer"

// DefaultTimeout bounds the classification call.
const DefaultTimeout = 20 * time.Second

// highDistressIntensity is the intensity at which an ambiguous risk signal is
// promoted to moderate instead of low.
const highDistressIntensity = 8

// Classifier defines the text-understanding capability the analyzer consumes.
type Classifier interface {
	Classify(ctx context.Context, text string) (genai.Classification, error)
}

// severeFloorPhrases force crisis risk to severe regardless of the model's
// assessment. Matching is substring-based on the lowercased input, same as the
// signal words the classification prompt names.
var severeFloorPhrases = []string{
	"suicide",
	"suicidal",
	"kill myself",
	"end my life",
	"hurt myself",
	"self-harm",
	"self harm",
	"don't want to live",
	"unsafe",
}

// moderateFloorPhrases force crisis risk to at least moderate.
var moderateFloorPhrases = []string{
	"panic attack",
	"can't cope",
	"cannot cope",
	"can't breathe",
	"falling apart",
}

// Analyzer turns raw intent text into an EmotionalState record.
type Analyzer struct {
	classifier Classifier
	timeout    time.Duration
}

// New creates an Analyzer backed by the given classifier.
func New(c Classifier) *Analyzer {
	return &Analyzer{classifier: c, timeout: DefaultTimeout}
}

// NewWithTimeout creates an Analyzer with a custom collaborator timeout.
func NewWithTimeout(c Classifier, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Analyzer{classifier: c, timeout: timeout}
}

// Analyze classifies rawText into an EmotionalState. Empty input fails with
// models.ErrEmptyIntent; collaborator failures are surfaced as
// ExternalCallError and never retried here.
func (a *Analyzer) Analyze(ctx context.Context, rawText string, reqContext map[string]any) (models.EmotionalState, error) {
	if strings.TrimSpace(rawText) == "" {
		return models.EmotionalState{}, models.ErrEmptyIntent
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cls, err := a.classifier.Classify(ctx, rawText)
	if err != nil {
		slog.Error("Analyzer.Analyze: classification collaborator failed", "error", err)
		return models.EmotionalState{}, models.NewExternalCallError(Component, err)
	}

	record := models.EmotionalState{
		PrimaryEmotion:    strings.ToLower(strings.TrimSpace(cls.PrimaryEmotion)),
		Intensity:         clampIntensity(cls.Intensity),
		SecondaryEmotions: normalizeEmotions(cls.SecondaryEmotions),
		CrisisRisk:        mapRiskSignal(cls.RiskSignal, cls.Intensity),
		RawText:           rawText,
	}

	// A reported stress level only ever raises intensity, never lowers it.
	if level, ok := numericContext(reqContext, "stress_level"); ok && level > record.Intensity {
		record.Intensity = clampIntensity(level)
	}

	if floor := keywordRiskFloor(rawText); riskRank(floor) > riskRank(record.CrisisRisk) {
		slog.Warn("Analyzer.Analyze: raising crisis risk from keyword floor",
			"classified", record.CrisisRisk, "floor", floor)
		record.CrisisRisk = floor
	}

	slog.Debug("Analyzer.Analyze: classified emotional state",
		"primary_emotion", record.PrimaryEmotion,
		"intensity", record.Intensity,
		"crisis_risk", record.CrisisRisk)
	return record, nil
}

// mapRiskSignal maps the collaborator's free-form risk token onto the crisis
// scale. Ambiguous or unknown signals map upward: high-distress intensity
// promotes to moderate, anything else to low, never to none.
func mapRiskSignal(signal string, intensity float64) models.CrisisRisk {
	switch strings.ToLower(strings.TrimSpace(signal)) {
	case "none":
		return models.CrisisRiskNone
	case "low":
		return models.CrisisRiskLow
	case "moderate", "medium":
		return models.CrisisRiskModerate
	case "severe", "high", "crisis":
		return models.CrisisRiskSevere
	default:
		if intensity >= highDistressIntensity {
			return models.CrisisRiskModerate
		}
		return models.CrisisRiskLow
	}
}

// keywordRiskFloor scans the raw input for phrases that mandate a minimum
// risk level even when the model under-flags.
func keywordRiskFloor(rawText string) models.CrisisRisk {
	lower := strings.ToLower(rawText)
	for _, phrase := range severeFloorPhrases {
		if strings.Contains(lower, phrase) {
			return models.CrisisRiskSevere
		}
	}
	for _, phrase := range moderateFloorPhrases {
		if strings.Contains(lower, phrase) {
			return models.CrisisRiskModerate
		}
	}
	return models.CrisisRiskNone
}

func riskRank(r models.CrisisRisk) int {
	switch r {
	case models.CrisisRiskLow:
		return 1
	case models.CrisisRiskModerate:
		return 2
	case models.CrisisRiskSevere:
		return 3
	default:
		return 0
	}
}

func clampIntensity(v float64) float64 {
	if v < models.MinIntensity {
		return models.MinIntensity
	}
	if v > models.MaxIntensity {
		return models.MaxIntensity
	}
	return v
}

func normalizeEmotions(emotions []string) []string {
	var out []string
	for _, e := range emotions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

func numericContext(ctx map[string]any, key string) (float64, bool) {
	if ctx == nil {
		return 0, false
	}
	switch v := ctx[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
