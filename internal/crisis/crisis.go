// Package crisis implements the terminal safety branch of the pipeline.
//
// When the planner selects the crisis protocol, this handler owns the entire
// response: static safety resources, crisis-only recommendations, and an
// explicit no-audio marker. None of its content is model-generated, so the
// safety payload cannot be degraded by a collaborator failure.
package crisis

import (
	"log/slog"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

// Component is the name recorded in tool traces and error wrappers.
const Component = "crisis_handler"

// Static safety resources. Keep these in sync with the numbers published by
// the services themselves.
var (
	immediateResources = []string{
		"National Suicide Prevention Lifeline: 988",
		"Crisis Text Line: Text HOME to 741741",
		"Emergency Services: 911",
	}
	emergencyContacts = []string{
		"National Suicide Prevention Lifeline: 988",
		"Crisis Text Line: 741741",
		"SAMHSA National Helpline: 1-800-662-4357",
	}
	crisisRecommendations = []models.Recommendation{
		{Action: "Contact a crisis line now (call or text 988)", EvidenceBasis: "immediate professional crisis support"},
		{Action: "If you are in immediate danger, call 911", EvidenceBasis: "emergency services for acute risk"},
		{Action: "Stay with or contact someone you trust until you feel safe", EvidenceBasis: "social presence reduces acute risk"},
		{Action: "Check in with a mental health professional within 24 hours", EvidenceBasis: "short-interval follow-up after a crisis episode"},
	}
)

// Handler produces the crisis response.
type Handler struct{}

// New creates a Handler.
func New() *Handler {
	return &Handler{}
}

// Resources returns the static safety payload.
func Resources() models.SafetyResources {
	return models.SafetyResources{
		ImmediateResources: append([]string(nil), immediateResources...),
		EmergencyContacts:  append([]string(nil), emergencyContacts...),
	}
}

// Handle builds the complete crisis response around the planner's plan, so
// the audited rationale names the actual risk level. The normal self-care
// fallback never appears here; recommendations are restricted to
// crisis-appropriate entries.
func (h *Handler) Handle(plan models.InterventionPlan, record models.EmotionalState) models.InterventionResponse {
	slog.Warn("CrisisHandler.Handle: crisis protocol activated", "crisis_risk", record.CrisisRisk)

	safety := Resources()
	return models.InterventionResponse{
		Plan:            plan,
		Emotional:       record,
		Audio:           nil, // explicit "audio: none" marker
		Recommendations: append([]models.Recommendation(nil), crisisRecommendations...),
		Safety:          &safety,
	}
}
