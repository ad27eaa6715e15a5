// Package models defines the core data structures for MoodPipe.
//
// It includes the records that flow through the intervention pipeline and the
// request/response shapes at the process boundary, which are shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// CrisisRisk classifies how urgently a reported state may indicate danger.
type CrisisRisk string

const (
	// CrisisRiskNone indicates no crisis signal was detected.
	CrisisRiskNone CrisisRisk = "none"
	// CrisisRiskLow indicates mild distress without safety concern.
	CrisisRiskLow CrisisRisk = "low"
	// CrisisRiskModerate indicates distress that warrants the safety path.
	CrisisRiskModerate CrisisRisk = "moderate"
	// CrisisRiskSevere indicates an acute safety concern.
	CrisisRiskSevere CrisisRisk = "severe"
)

// IsValidCrisisRisk checks if the given crisis risk level is supported.
func IsValidCrisisRisk(r CrisisRisk) bool {
	switch r {
	case CrisisRiskNone, CrisisRiskLow, CrisisRiskModerate, CrisisRiskSevere:
		return true
	default:
		return false
	}
}

// RequiresCrisisProtocol reports whether the risk level forces the crisis branch.
func (r CrisisRisk) RequiresCrisisProtocol() bool {
	return r == CrisisRiskModerate || r == CrisisRiskSevere
}

// Strategy is the selected therapeutic intervention category.
type Strategy string

const (
	// StrategyGrounding selects a short grounding exercise.
	StrategyGrounding Strategy = "grounding"
	// StrategyRelease selects a suppressed-emotion release meditation.
	StrategyRelease Strategy = "release_meditation"
	// StrategyMindfulness selects a present-moment mindfulness meditation.
	StrategyMindfulness Strategy = "mindfulness"
	// StrategySleep selects a sleep meditation for subconscious reinforcement.
	StrategySleep Strategy = "sleep"
	// StrategyWorkout selects an energizing workout meditation.
	StrategyWorkout Strategy = "workout"
	// StrategyCrisisProtocol routes the request to the crisis handler.
	StrategyCrisisProtocol Strategy = "crisis_protocol"
)

// IsValidStrategy checks if the given strategy is supported.
func IsValidStrategy(s Strategy) bool {
	switch s {
	case StrategyGrounding, StrategyRelease, StrategyMindfulness, StrategySleep, StrategyWorkout, StrategyCrisisProtocol:
		return true
	default:
		return false
	}
}

// Priority is the caller-declared urgency of a request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValidPriority checks if the given priority level is supported.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Validation constants for input validation
const (
	// MaxIntentLength defines the maximum allowed length for intent text
	MaxIntentLength = 4096
	// MinIntensity is the lower bound of the intensity scale.
	MinIntensity = 0
	// MaxIntensity is the upper bound of the intensity scale.
	MaxIntensity = 10
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID           = errors.New("user_id cannot be empty")
	ErrEmptyIntent           = errors.New("intent text cannot be empty")
	ErrIntentTooLong         = errors.New("intent text exceeds maximum length")
	ErrInvalidPriority       = errors.New("invalid priority level")
	ErrInvalidCrisisRisk     = errors.New("invalid crisis risk level")
	ErrInvalidStrategy       = errors.New("invalid intervention strategy")
	ErrMissingPrimaryEmotion = errors.New("emotional state record is missing primary emotion")
	ErrIntensityOutOfRange   = errors.New("intensity must be between 0 and 10")
	ErrAudioNotRequired      = errors.New("plan does not require audio parameters")
)

// EmotionalState is the structured classification of a user's reported state.
// It is produced by the analyzer and consumed by the planner only; treat it as
// immutable once created.
type EmotionalState struct {
	PrimaryEmotion    string     `json:"primary_emotion"`
	Intensity         float64    `json:"intensity"`
	SecondaryEmotions []string   `json:"secondary_emotions,omitempty"`
	CrisisRisk        CrisisRisk `json:"crisis_risk"`
	RawText           string     `json:"raw_text"`
}

// Validate performs validation on an EmotionalState record.
func (e *EmotionalState) Validate() error {
	if strings.TrimSpace(e.PrimaryEmotion) == "" {
		return ErrMissingPrimaryEmotion
	}
	if e.Intensity < MinIntensity || e.Intensity > MaxIntensity {
		return ErrIntensityOutOfRange
	}
	if !IsValidCrisisRisk(e.CrisisRisk) {
		return ErrInvalidCrisisRisk
	}
	return nil
}

// InterventionPlan is the planner's selected strategy for a request.
type InterventionPlan struct {
	Strategy      Strategy `json:"strategy"`
	Rationale     string   `json:"rationale"`
	RequiresAudio bool     `json:"requires_audio"`
	Priority      Priority `json:"priority"`
}

// Background configures the non-voice layers of a meditation track.
type Background struct {
	Music      bool   `json:"music"`
	MusicStyle string `json:"music_style,omitempty"`
	BrainWaves bool   `json:"brain_waves"`
	WaveBand   string `json:"wave_band,omitempty"` // alpha, beta, theta, delta, gamma
	Volume     string `json:"volume"`              // low, medium, high
}

// AudioParams carries the synthesis parameters derived from a plan.
// It is passed by value to the synthesis collaborator and never mutated.
type AudioParams struct {
	VoiceProfileRef string     `json:"voice_profile_ref,omitempty"`
	Tone            string     `json:"tone"`
	TargetEmotion   string     `json:"target_emotion,omitempty"`
	Background      Background `json:"background"`
	TargetMinutes   int        `json:"target_minutes"`
}

// Recommendation is a single follow-up action with its evidence basis.
type Recommendation struct {
	Action        string `json:"action"`
	EvidenceBasis string `json:"evidence_basis"`
}

// AudioAsset references a synthesized meditation track.
type AudioAsset struct {
	ID              string `json:"id"`
	Format          string `json:"format"`
	DurationSeconds int    `json:"duration_seconds"`
	VoiceProfile    string `json:"voice_profile,omitempty"`
}

// SafetyResources is the static crisis payload; its content is never generated.
type SafetyResources struct {
	ImmediateResources []string `json:"immediate_resources"`
	EmergencyContacts  []string `json:"emergency_contacts"`
}

// InterventionRequest is the process-boundary request shape.
type InterventionRequest struct {
	UserID   string         `json:"user_id"`
	Intent   string         `json:"intent"`
	Context  map[string]any `json:"context,omitempty"`
	Priority Priority       `json:"priority,omitempty"`
}

// Validate performs comprehensive validation on an InterventionRequest.
// Unrecognized context keys are deliberately ignored, not rejected.
func (r *InterventionRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(r.Intent) == "" {
		return ErrEmptyIntent
	}
	if len(r.Intent) > MaxIntentLength {
		return ErrIntentTooLong
	}
	if r.Priority != "" && !IsValidPriority(r.Priority) {
		return ErrInvalidPriority
	}
	return nil
}

// InterventionResponse is the aggregate assembled by the orchestrator. No
// component mutates it after assembly.
type InterventionResponse struct {
	Plan            InterventionPlan `json:"plan"`
	Emotional       EmotionalState   `json:"emotional_assessment"`
	Audio           *AudioAsset      `json:"audio"` // nil means "audio: none"
	Recommendations []Recommendation `json:"recommendations"`
	Safety          *SafetyResources `json:"safety_resources,omitempty"`
	ToolTrace       []string         `json:"tool_trace"`
}

// TraceRecord is the per-request audit entry recorded by the orchestrator.
type TraceRecord struct {
	UserID    string    `json:"user_id"`
	Strategy  Strategy  `json:"strategy"`
	ToolTrace []string  `json:"tool_trace"`
	Crisis    bool      `json:"crisis"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Time      time.Time `json:"time"`
}
