// Package composer derives audio synthesis parameters from an intervention
// plan and the caller-supplied context.
//
// Tone, brainwave band, background and default duration come from a fixed
// per-strategy table; explicit context values override the table, and the
// requested duration is silently clamped to the configured bounds. Clamping
// is an ergonomics choice, not data loss: the bound is a safety/UX limit.
package composer

import (
	"log/slog"
	"strings"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

// Component is the name recorded in tool traces and error wrappers.
const Component = "audio_parameter_composer"

// Bounds limits the target duration of generated meditations, in minutes.
type Bounds struct {
	MinMinutes int
	MaxMinutes int
}

// DefaultBounds matches the duration range of the meditation catalog.
var DefaultBounds = Bounds{MinMinutes: 5, MaxMinutes: 20}

// Recognized context keys. Unknown keys are ignored, never rejected.
const (
	ctxKeyDuration   = "duration_minutes"
	ctxKeyTone       = "tone"
	ctxKeyMusic      = "background_music"
	ctxKeyMusicStyle = "background_music_preference"
	ctxKeyBrainWaves = "brain_waves"
	ctxKeyVolume     = "volume"
)

// profile is one row of the strategy lookup table.
type profile struct {
	tone           string
	waveBand       string
	volume         string
	musicStyle     string
	defaultMinutes int
	emotionTarget  bool // release meditations target a specific emotion
}

var strategyProfiles = map[models.Strategy]profile{
	models.StrategyRelease:     {tone: "passionate", waveBand: "theta", volume: "low", musicStyle: "nature", defaultMinutes: 10, emotionTarget: true},
	models.StrategySleep:       {tone: "calm", waveBand: "theta", volume: "low", musicStyle: "nature", defaultMinutes: 20},
	models.StrategyMindfulness: {tone: "calm", waveBand: "alpha", volume: "low", musicStyle: "nature", defaultMinutes: 10},
	models.StrategyWorkout:     {tone: "energetic", waveBand: "beta", volume: "high", musicStyle: "electronic", defaultMinutes: 20},
	models.StrategyGrounding:   {tone: "calm", waveBand: "alpha", volume: "low", musicStyle: "nature", defaultMinutes: 5},
}

// releaseEmotionMapping folds classifier emotions onto the release meditation
// catalog (guilt, fear, grief, anger, desire, lust).
var releaseEmotionMapping = map[string]string{
	"stress":         "fear",
	"anxiety":        "fear",
	"worry":          "fear",
	"overwhelmed":    "fear",
	"sadness":        "grief",
	"depression":     "grief",
	"loss":           "grief",
	"frustration":    "anger",
	"hatred":         "anger",
	"annoyance":      "anger",
	"disappointment": "anger",
	"disgust":        "anger",
	"shame":          "guilt",
	"jealousy":       "desire",
	"envy":           "desire",
}

var supportedReleaseEmotions = map[string]bool{
	"guilt":  true,
	"fear":   true,
	"grief":  true,
	"anger":  true,
	"desire": true,
	"lust":   true,
}

// Composer builds AudioParams for plans that require audio.
type Composer struct {
	bounds Bounds
}

// New creates a Composer with the default duration bounds.
func New() *Composer {
	return NewWithBounds(DefaultBounds)
}

// NewWithBounds creates a Composer with explicit duration bounds.
func NewWithBounds(b Bounds) *Composer {
	if b.MinMinutes <= 0 {
		b.MinMinutes = DefaultBounds.MinMinutes
	}
	if b.MaxMinutes < b.MinMinutes {
		b.MaxMinutes = b.MinMinutes
	}
	return &Composer{bounds: b}
}

// Compose derives synthesis parameters for the plan. Calling it for a plan
// with RequiresAudio=false is a programming error and fails with
// models.ErrAudioNotRequired. The voice profile reference, if any, comes from
// the cache lookup performed by the orchestrator before composing.
func (c *Composer) Compose(plan models.InterventionPlan, record models.EmotionalState, reqContext map[string]any, voiceProfileRef string) (models.AudioParams, error) {
	if !plan.RequiresAudio {
		slog.Error("Composer.Compose: called for a plan without audio", "strategy", plan.Strategy)
		return models.AudioParams{}, models.ErrAudioNotRequired
	}

	prof, ok := strategyProfiles[plan.Strategy]
	if !ok {
		return models.AudioParams{}, models.ErrInvalidStrategy
	}

	params := models.AudioParams{
		VoiceProfileRef: voiceProfileRef,
		Tone:            prof.tone,
		TargetMinutes:   c.clampMinutes(prof.defaultMinutes),
		Background: models.Background{
			Music:      true,
			MusicStyle: prof.musicStyle,
			BrainWaves: true,
			WaveBand:   prof.waveBand,
			Volume:     prof.volume,
		},
	}
	if prof.emotionTarget {
		params.TargetEmotion = releaseEmotion(record.PrimaryEmotion)
	}

	// Explicit context values override the table.
	if tone, ok := stringContext(reqContext, ctxKeyTone); ok {
		params.Tone = tone
	}
	if style, ok := stringContext(reqContext, ctxKeyMusicStyle); ok {
		params.Background.MusicStyle = style
	}
	if volume, ok := stringContext(reqContext, ctxKeyVolume); ok {
		params.Background.Volume = volume
	}
	if music, ok := boolContext(reqContext, ctxKeyMusic); ok {
		params.Background.Music = music
	}
	if waves, ok := boolContext(reqContext, ctxKeyBrainWaves); ok {
		params.Background.BrainWaves = waves
	}
	if minutes, ok := intContext(reqContext, ctxKeyDuration); ok {
		clamped := c.clampMinutes(minutes)
		if clamped != minutes {
			slog.Debug("Composer.Compose: clamped requested duration",
				"requested", minutes, "clamped", clamped)
		}
		params.TargetMinutes = clamped
	}

	slog.Debug("Composer.Compose: parameters composed",
		"strategy", plan.Strategy,
		"tone", params.Tone,
		"target_minutes", params.TargetMinutes)
	return params, nil
}

func (c *Composer) clampMinutes(minutes int) int {
	if minutes < c.bounds.MinMinutes {
		return c.bounds.MinMinutes
	}
	if minutes > c.bounds.MaxMinutes {
		return c.bounds.MaxMinutes
	}
	return minutes
}

// releaseEmotion maps the analyzed emotion onto the release catalog,
// defaulting to fear as the original catalog does.
func releaseEmotion(primary string) string {
	emotion := strings.ToLower(strings.TrimSpace(primary))
	if mapped, ok := releaseEmotionMapping[emotion]; ok {
		return mapped
	}
	if supportedReleaseEmotions[emotion] {
		return emotion
	}
	return "fear"
}

func stringContext(ctx map[string]any, key string) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx[key].(string); ok && strings.TrimSpace(v) != "" {
		return v, true
	}
	return "", false
}

func boolContext(ctx map[string]any, key string) (bool, bool) {
	if ctx == nil {
		return false, false
	}
	if v, ok := ctx[key].(bool); ok {
		return v, true
	}
	return false, false
}

func intContext(ctx map[string]any, key string) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	switch v := ctx[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
