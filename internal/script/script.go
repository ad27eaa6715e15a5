// Package script produces the spoken text for meditation audio.
//
// Scripts are generated by the text-generation collaborator from per-strategy
// prompt templates; when no client is configured or the call fails, a static
// per-strategy script is used instead, so audio synthesis always has text to
// speak.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

// Component is the name recorded in tool traces and error wrappers.
const Component = "script_generator"

// DefaultTimeout bounds the generation call.
const DefaultTimeout = 60 * time.Second

// TextGenerator defines the text-generation capability this package consumes.
type TextGenerator interface {
	GenerateText(ctx context.Context, instructions, input string) (string, error)
}

const scriptInstructions = `You write guided meditation scripts meant to be read
aloud by a text-to-speech voice. Write flowing prose with natural pauses marked
by sentence breaks. Do not include stage directions, headings, timestamps, or
any text that should not be spoken.`

// Generator produces meditation script text.
type Generator struct {
	client  TextGenerator
	timeout time.Duration
}

// New creates a Generator. A nil client is valid and selects the static
// script catalog for every request.
func New(client TextGenerator) *Generator {
	return &Generator{client: client, timeout: DefaultTimeout}
}

// MeditationScript returns the spoken text for the given strategy and
// synthesis parameters.
func (g *Generator) MeditationScript(ctx context.Context, strategy models.Strategy, params models.AudioParams) string {
	if g.client == nil {
		slog.Debug("Script.MeditationScript: no generator configured, using static script", "strategy", strategy)
		return staticScript(strategy)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.client.GenerateText(ctx, scriptInstructions, buildPrompt(strategy, params))
	if err != nil {
		slog.Warn("Script.MeditationScript: generation failed, falling back to static script",
			"strategy", strategy, "error", err)
		return staticScript(strategy)
	}
	return text
}

// buildPrompt fills the per-strategy template with the composed parameters.
func buildPrompt(strategy models.Strategy, params models.AudioParams) string {
	switch strategy {
	case models.StrategyRelease:
		return fmt.Sprintf(
			"Write a %d-minute release meditation helping the listener acknowledge and release %s. Use a %s tone throughout.",
			params.TargetMinutes, params.TargetEmotion, params.Tone)
	case models.StrategySleep:
		return fmt.Sprintf(
			"Write a %d-minute sleep meditation with positive self-belief affirmations, slowing gradually toward the end. Use a %s tone.",
			params.TargetMinutes, params.Tone)
	case models.StrategyWorkout:
		return fmt.Sprintf(
			"Write a %d-minute motivational meditation to energize the listener before and during exercise. Use a %s tone.",
			params.TargetMinutes, params.Tone)
	case models.StrategyMindfulness:
		return fmt.Sprintf(
			"Write a %d-minute mindfulness meditation anchoring attention on the breath and the senses. Use a %s tone.",
			params.TargetMinutes, params.Tone)
	default:
		return fmt.Sprintf(
			"Write a %d-minute grounding exercise walking the listener through the 5-4-3-2-1 technique. Use a %s tone.",
			params.TargetMinutes, params.Tone)
	}
}

// staticScript is the non-generated catalog used when the collaborator is
// unavailable.
func staticScript(strategy models.Strategy) string {
	switch strategy {
	case models.StrategyRelease:
		return "Find a comfortable position and close your eyes. Notice where the feeling sits in your body. " +
			"Breathe into that place. With each exhale, imagine the feeling loosening its hold, little by little. " +
			"You do not have to push it away. Just let it move through you, and let it go."
	case models.StrategySleep:
		return "Settle into your bed and let your body grow heavy. With every breath out, sink a little deeper. " +
			"You are safe. You are enough. Tomorrow will take care of itself. For now, there is nothing left to do but rest."
	case models.StrategyWorkout:
		return "Stand tall and take one strong breath. Feel the energy gathering in your body. " +
			"Every rep, every step, is a promise kept to yourself. You are stronger than the excuse. Begin."
	case models.StrategyMindfulness:
		return "Sit comfortably and bring your attention to the breath. Notice the air moving in, and moving out. " +
			"When the mind wanders, that is not a failure. Simply notice, and return to the breath. This moment is enough."
	default:
		return "Look around and name five things you can see. Four things you can touch. Three things you can hear. " +
			"Two things you can smell. One thing you can taste. You are here, and you are okay."
	}
}
