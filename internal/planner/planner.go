// Package planner maps emotional-state records onto intervention strategies.
//
// The planner is a two-state machine: a crisis-risk signal of moderate or
// severe transitions to the crisis state unconditionally, and no other field
// of the record can override that. In the normal state, selection is a fixed
// priority table over intensity and emotion tags, so identical input always
// yields an identical strategy.
package planner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

// Component is the name recorded in tool traces and error wrappers.
const Component = "intervention_planner"

// ReleaseIntensityThreshold is the intensity at or above which suppressed
// emotional load takes priority over any tag match.
const ReleaseIntensityThreshold = 7

// mindfulnessIntensityThreshold splits the untagged default between
// mindfulness and grounding.
const mindfulnessIntensityThreshold = 4

// Emotion tag sets for the normal-state priority table. Order of evaluation
// matters: the table is consulted only below the release threshold, and the
// first matching tag wins.
var (
	sleepTags = map[string]bool{
		"sleep":          true,
		"insomnia":       true,
		"sleepless":      true,
		"low_confidence": true,
		"confidence":     true,
		"self_worth":     true,
		"worthlessness":  true,
		"fatigue":        true,
	}
	energyTags = map[string]bool{
		"lethargy":    true,
		"laziness":    true,
		"unmotivated": true,
		"low_energy":  true,
		"sluggish":    true,
	}
	mindfulnessTags = map[string]bool{
		"scattered":    true,
		"distracted":   true,
		"restless":     true,
		"restlessness": true,
		"unfocused":    true,
	}
)

// Planner selects an intervention strategy for an emotional-state record.
type Planner struct{}

// New creates a Planner.
func New() *Planner {
	return &Planner{}
}

// Plan selects the strategy for the given record. A malformed record fails
// with models.ErrMissingPrimaryEmotion (or the relevant validation error) and
// is never retried; that signals an upstream contract violation.
func (p *Planner) Plan(record models.EmotionalState) (models.InterventionPlan, error) {
	if err := record.Validate(); err != nil {
		slog.Error("Planner.Plan: malformed emotional state record", "error", err)
		return models.InterventionPlan{}, err
	}

	// Crisis transition: unconditional, and checked before anything else so
	// no intensity or emotion tag can route around the safety path.
	if record.CrisisRisk.RequiresCrisisProtocol() {
		plan := models.InterventionPlan{
			Strategy:      models.StrategyCrisisProtocol,
			Rationale:     fmt.Sprintf("crisis risk %s requires the crisis protocol", record.CrisisRisk),
			RequiresAudio: false,
			Priority:      models.PriorityUrgent,
		}
		slog.Warn("Planner.Plan: crisis override engaged", "crisis_risk", record.CrisisRisk)
		return plan, nil
	}

	strategy, rationale := selectNormalStrategy(record)
	plan := models.InterventionPlan{
		Strategy:      strategy,
		Rationale:     rationale,
		RequiresAudio: true,
		Priority:      normalPriority(record),
	}
	slog.Debug("Planner.Plan: strategy selected",
		"strategy", plan.Strategy,
		"primary_emotion", record.PrimaryEmotion,
		"intensity", record.Intensity)
	return plan, nil
}

// selectNormalStrategy implements the normal-state priority table. Higher
// intensity wins over tag matches; at equal footing a specific emotion tag
// beats the generic default.
func selectNormalStrategy(record models.EmotionalState) (models.Strategy, string) {
	if record.Intensity >= ReleaseIntensityThreshold {
		return models.StrategyRelease,
			fmt.Sprintf("intensity %.1f meets the release threshold of %d", record.Intensity, ReleaseIntensityThreshold)
	}

	if tag, ok := matchTag(record, sleepTags); ok {
		return models.StrategySleep, fmt.Sprintf("emotion %q is sleep-related", tag)
	}
	if tag, ok := matchTag(record, energyTags); ok {
		return models.StrategyWorkout, fmt.Sprintf("emotion %q indicates an energy deficit", tag)
	}
	if tag, ok := matchTag(record, mindfulnessTags); ok {
		return models.StrategyMindfulness, fmt.Sprintf("emotion %q indicates scattered attention", tag)
	}

	if record.Intensity >= mindfulnessIntensityThreshold {
		return models.StrategyMindfulness,
			fmt.Sprintf("no specific tag matched; intensity %.1f defaults to mindfulness", record.Intensity)
	}
	return models.StrategyGrounding,
		fmt.Sprintf("no specific tag matched; intensity %.1f defaults to grounding", record.Intensity)
}

// matchTag checks the primary emotion first, then secondary emotions in
// reported order, against the given tag set.
func matchTag(record models.EmotionalState, tags map[string]bool) (string, bool) {
	if tags[normalizeTag(record.PrimaryEmotion)] {
		return record.PrimaryEmotion, true
	}
	for _, e := range record.SecondaryEmotions {
		if tags[normalizeTag(e)] {
			return e, true
		}
	}
	return "", false
}

func normalizeTag(emotion string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(emotion)), "-", "_")
}

func normalPriority(record models.EmotionalState) models.Priority {
	if record.Intensity >= ReleaseIntensityThreshold {
		return models.PriorityHigh
	}
	return models.PriorityNormal
}
