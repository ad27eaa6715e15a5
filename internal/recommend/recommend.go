// Package recommend produces ranked follow-up actions conditioned on the
// selected strategy and the emotional assessment.
//
// The output is never empty: when no specific rule matches, a documented
// default self-care recommendation is returned, because the response contract
// guarantees the user always receives actionable follow-up.
package recommend

import (
	"log/slog"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

// Component is the name recorded in tool traces and error wrappers.
const Component = "recommendation_generator"

// escalationIntensity is the intensity above which professional-help guidance
// is appended.
const escalationIntensity = 7

// DefaultSelfCare is the guaranteed fallback when no specific rule matches.
var DefaultSelfCare = models.Recommendation{
	Action:        "Take a short break for basic self-care: hydrate, step outside, and check in with how you feel",
	EvidenceBasis: "behavioral activation; baseline self-care guidance",
}

// emotionActions keys immediate actions by emotion family.
var emotionActions = map[string][]models.Recommendation{
	"fear": {
		{Action: "Practice deep breathing (4-7-8 technique)", EvidenceBasis: "diaphragmatic breathing for acute anxiety"},
		{Action: "Use the 5-4-3-2-1 grounding method", EvidenceBasis: "sensory grounding for anxious arousal"},
		{Action: "Try progressive muscle relaxation", EvidenceBasis: "PMR reduces somatic tension"},
	},
	"stress": {
		{Action: "Take a 5-10 minute break from the current activity", EvidenceBasis: "micro-breaks reduce acute stress load"},
		{Action: "Write down the three things causing the most stress", EvidenceBasis: "expressive writing and cognitive offloading"},
		{Action: "Try gentle stretching or a short walk", EvidenceBasis: "light movement lowers cortisol"},
	},
	"grief": {
		{Action: "Allow yourself to feel the emotion without judgment", EvidenceBasis: "acceptance-based coping"},
		{Action: "Reach out to a trusted friend or family member", EvidenceBasis: "social support buffers low mood"},
		{Action: "Practice a short self-compassion meditation", EvidenceBasis: "self-compassion interventions for sadness"},
	},
	"anger": {
		{Action: "Take slow, deep breaths before responding to triggers", EvidenceBasis: "arousal reduction before response"},
		{Action: "Use the STOP technique (Stop, Take a breath, Observe, Proceed)", EvidenceBasis: "DBT distress tolerance skill"},
		{Action: "Release tension physically with a walk or stretching", EvidenceBasis: "physical discharge of anger arousal"},
	},
	"guilt": {
		{Action: "Write down what happened and what was actually within your control", EvidenceBasis: "cognitive restructuring for guilt"},
		{Action: "Practice a self-forgiveness reflection", EvidenceBasis: "self-forgiveness reduces rumination"},
	},
}

// emotionFamilies folds classifier emotions onto the action table keys.
var emotionFamilies = map[string]string{
	"anxiety":        "fear",
	"worry":          "fear",
	"panic":          "fear",
	"overwhelmed":    "stress",
	"pressure":       "stress",
	"sadness":        "grief",
	"depression":     "grief",
	"loss":           "grief",
	"frustration":    "anger",
	"annoyance":      "anger",
	"disappointment": "anger",
	"shame":          "guilt",
}

// strategyFollowUps keys follow-up actions by selected strategy.
var strategyFollowUps = map[models.Strategy][]models.Recommendation{
	models.StrategyRelease: {
		{Action: "Repeat the release session tomorrow while the emotion is still accessible", EvidenceBasis: "spaced emotional-processing practice"},
	},
	models.StrategySleep: {
		{Action: "Listen to the sleep session at bedtime for the next three nights", EvidenceBasis: "repetition supports subconscious reinforcement"},
	},
	models.StrategyMindfulness: {
		{Action: "Schedule a daily 10-minute mindfulness practice", EvidenceBasis: "regular practice improves attention regulation"},
	},
	models.StrategyWorkout: {
		{Action: "Queue the session before your next planned workout", EvidenceBasis: "pre-task activation improves exercise adherence"},
	},
	models.StrategyGrounding: {
		{Action: "Keep a grounding exercise handy for the next stressful moment", EvidenceBasis: "implementation intentions improve skill use"},
	},
}

// Generator produces recommendation sets.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// Generate builds the ranked recommendation set for the plan and record.
// The result always has at least one entry.
func (g *Generator) Generate(plan models.InterventionPlan, record models.EmotionalState) []models.Recommendation {
	var out []models.Recommendation

	family := record.PrimaryEmotion
	if mapped, ok := emotionFamilies[family]; ok {
		family = mapped
	}
	if actions, ok := emotionActions[family]; ok {
		out = append(out, actions...)
	} else {
		// No emotion-specific rule matched: lead with the documented
		// self-care fallback so the user still gets an immediate action.
		out = append(out, DefaultSelfCare)
	}

	if record.Intensity > escalationIntensity {
		out = append(out,
			models.Recommendation{
				Action:        "Consider speaking with a mental health professional",
				EvidenceBasis: "professional support indicated at high sustained intensity",
			},
			models.Recommendation{
				Action:        "Prioritize rest and reduce commitments today",
				EvidenceBasis: "load reduction during acute distress",
			},
		)
	}

	out = append(out, strategyFollowUps[plan.Strategy]...)
	out = append(out, models.Recommendation{
		Action:        "Track your mood in a journal over the next week",
		EvidenceBasis: "mood monitoring improves emotional awareness",
	})

	slog.Debug("Generator.Generate: recommendations produced",
		"strategy", plan.Strategy,
		"primary_emotion", record.PrimaryEmotion,
		"count", len(out))
	return out
}
