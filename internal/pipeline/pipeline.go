// Package pipeline sequences the intervention stages for MoodPipe.
//
// The orchestrator is the only component that sees the whole request: it
// runs emotion analysis, intervention planning, and then either the normal
// composition branch or the terminal crisis branch. Every stage it invokes is
// appended to the tool trace, and every run is recorded in the audit trail.
//
// Safety posture is fail-closed: if emotion analysis cannot run, the request
// is treated as severe crisis risk rather than guessed at.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BTreeMap/MoodPipe/internal/analyzer"
	"github.com/BTreeMap/MoodPipe/internal/composer"
	"github.com/BTreeMap/MoodPipe/internal/crisis"
	"github.com/BTreeMap/MoodPipe/internal/models"
	"github.com/BTreeMap/MoodPipe/internal/notify"
	"github.com/BTreeMap/MoodPipe/internal/planner"
	"github.com/BTreeMap/MoodPipe/internal/recommend"
	"github.com/BTreeMap/MoodPipe/internal/script"
	"github.com/BTreeMap/MoodPipe/internal/tts"
	"github.com/BTreeMap/MoodPipe/internal/voicecache"
)

// Component is the name recorded in error wrappers for orchestrator-level
// failures such as cancellation between stages.
const Component = "pipeline_orchestrator"

// VoiceCacheComponent is the trace name for voice-cache lookups.
const VoiceCacheComponent = "voice_cache"

// notifyTimeout bounds the best-effort crisis notification.
const notifyTimeout = 10 * time.Second

// ToolInfo describes one pipeline stage for the tool inventory endpoint.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	analyzer    *analyzer.Analyzer
	planner     *planner.Planner
	composer    *composer.Composer
	recommender *recommend.Generator
	crisis      *crisis.Handler
	scripts     *script.Generator
	synth       tts.Synthesizer
	store       voicecache.Store
	notifier    notify.Notifier
}

// Deps carries the collaborators an Orchestrator needs. Synth and Store are
// required; Notifier may be nil to disable crisis SMS escalation.
type Deps struct {
	Analyzer *analyzer.Analyzer
	Scripts  *script.Generator
	Synth    tts.Synthesizer
	Store    voicecache.Store
	Notifier notify.Notifier
}

// New creates an Orchestrator. The deterministic stages (planner, composer,
// recommender, crisis handler) are constructed internally; only the stages
// with external collaborators are injected.
func New(deps Deps) *Orchestrator {
	store := deps.Store
	if store == nil {
		store = voicecache.NewInMemoryStore()
	}
	return &Orchestrator{
		analyzer:    deps.Analyzer,
		planner:     planner.New(),
		composer:    composer.New(),
		recommender: recommend.New(),
		crisis:      crisis.New(),
		scripts:     deps.Scripts,
		synth:       deps.Synth,
		store:       store,
		notifier:    deps.Notifier,
	}
}

// Process runs the full pipeline for one request.
//
// Validation errors are returned unwrapped so the API layer can map them to
// client errors. Stage failures come back as PipelineError carrying the
// failing component's name, except analyzer failures, which trigger the
// fail-closed crisis branch instead of an error.
func (o *Orchestrator) Process(ctx context.Context, req models.InterventionRequest) (models.InterventionResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return models.InterventionResponse{}, err
	}

	trace := make([]string, 0, 6)

	record, failClosed, err := o.analyze(ctx, req, &trace)
	if err != nil {
		return models.InterventionResponse{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.InterventionResponse{}, models.NewPipelineError(Component, err)
	}

	plan, err := o.planner.Plan(record)
	if err != nil {
		return models.InterventionResponse{}, models.NewPipelineError(planner.Component, err)
	}
	trace = append(trace, planner.Component)
	if err := ctx.Err(); err != nil {
		return models.InterventionResponse{}, models.NewPipelineError(Component, err)
	}

	var resp models.InterventionResponse
	if plan.Strategy == models.StrategyCrisisProtocol {
		resp = o.handleCrisis(ctx, req, plan, record, &trace)
	} else {
		resp, err = o.handleNormal(ctx, req, plan, record, &trace)
		if err != nil {
			return models.InterventionResponse{}, err
		}
	}
	resp.ToolTrace = trace

	o.recordTrace(models.TraceRecord{
		UserID:    req.UserID,
		Strategy:  resp.Plan.Strategy,
		ToolTrace: trace,
		Crisis:    resp.Plan.Strategy == models.StrategyCrisisProtocol,
		ElapsedMS: time.Since(start).Milliseconds(),
		Time:      time.Now(),
	})
	slog.Info("Orchestrator.Process: request completed",
		"user_id", req.UserID, "strategy", resp.Plan.Strategy,
		"fail_closed", failClosed, "elapsed_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// Analyze runs only the emotion analysis stage; used by the analyze endpoint.
// Unlike Process it surfaces analyzer failures to the caller instead of
// failing closed, because no intervention is selected from the result.
func (o *Orchestrator) Analyze(ctx context.Context, req models.InterventionRequest) (models.EmotionalState, error) {
	if err := req.Validate(); err != nil {
		return models.EmotionalState{}, err
	}
	return o.analyzer.Analyze(ctx, req.Intent, req.Context)
}

// analyze runs the analyzer with the fail-closed substitution. The returned
// bool reports whether the synthetic severe record was used.
func (o *Orchestrator) analyze(ctx context.Context, req models.InterventionRequest, trace *[]string) (models.EmotionalState, bool, error) {
	record, err := o.analyzer.Analyze(ctx, req.Intent, req.Context)
	if err == nil {
		*trace = append(*trace, analyzer.Component)
		return record, false, nil
	}

	var extErr *models.ExternalCallError
	if errors.As(err, &extErr) {
		// Analysis unavailable: assume the worst rather than guess.
		slog.Error("Orchestrator.analyze: analysis unavailable, failing closed to crisis protocol",
			"user_id", req.UserID, "error", err)
		*trace = append(*trace, analyzer.Component+" (fail-closed)")
		return models.EmotionalState{
			PrimaryEmotion: "unknown",
			Intensity:      models.MaxIntensity,
			CrisisRisk:     models.CrisisRiskSevere,
			RawText:        req.Intent,
		}, true, nil
	}
	// Validation-class errors (e.g. empty intent) belong to the caller.
	return models.EmotionalState{}, false, err
}

func (o *Orchestrator) handleCrisis(ctx context.Context, req models.InterventionRequest, plan models.InterventionPlan, record models.EmotionalState, trace *[]string) models.InterventionResponse {
	resp := o.crisis.Handle(plan, record)
	*trace = append(*trace, crisis.Component)
	o.notifyContact(ctx, req)
	return resp
}

func (o *Orchestrator) handleNormal(ctx context.Context, req models.InterventionRequest, plan models.InterventionPlan, record models.EmotionalState, trace *[]string) (models.InterventionResponse, error) {
	voiceRef := o.cachedVoice(req.UserID, trace)

	params, err := o.composer.Compose(plan, record, req.Context, voiceRef)
	if err != nil {
		return models.InterventionResponse{}, models.NewPipelineError(composer.Component, err)
	}
	*trace = append(*trace, composer.Component)

	recs := o.recommender.Generate(plan, record)
	*trace = append(*trace, recommend.Component)
	if err := ctx.Err(); err != nil {
		return models.InterventionResponse{}, models.NewPipelineError(Component, err)
	}

	text := o.scripts.MeditationScript(ctx, plan.Strategy, params)
	*trace = append(*trace, script.Component)

	asset, err := o.synth.Synthesize(ctx, text, params)
	if err != nil {
		return models.InterventionResponse{}, models.NewPipelineError(tts.Component, err)
	}
	*trace = append(*trace, tts.Component)

	// Remember the voice so the next session sounds the same. Best-effort.
	if asset.VoiceProfile != "" {
		if err := o.store.PutProfile(req.UserID, asset.VoiceProfile); err != nil {
			slog.Warn("Orchestrator.handleNormal: voice profile cache write failed",
				"user_id", req.UserID, "error", err)
		}
	}

	return models.InterventionResponse{
		Plan:            plan,
		Emotional:       record,
		Audio:           &asset,
		Recommendations: recs,
	}, nil
}

// cachedVoice looks up the user's cached voice profile. Lookup failures are
// logged and treated as a miss; the cache never fails a request.
func (o *Orchestrator) cachedVoice(userID string, trace *[]string) string {
	ref, ok, err := o.store.GetProfile(userID)
	*trace = append(*trace, VoiceCacheComponent)
	if err != nil {
		slog.Warn("Orchestrator.cachedVoice: voice profile lookup failed", "user_id", userID, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return ref
}

// notifyContact sends the best-effort crisis SMS when the request carries an
// emergency contact. Failures are logged; the safety response is already
// assembled and is never blocked on delivery.
func (o *Orchestrator) notifyContact(ctx context.Context, req models.InterventionRequest) {
	if o.notifier == nil {
		return
	}
	contact, ok := req.Context["emergency_contact"].(string)
	if !ok || contact == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := o.notifier.NotifyCrisisContact(ctx, contact, req.UserID); err != nil {
		slog.Error("Orchestrator.notifyContact: crisis notification failed",
			"user_id", req.UserID, "error", err)
	}
}

func (o *Orchestrator) recordTrace(t models.TraceRecord) {
	if err := o.store.AddTrace(t); err != nil {
		slog.Warn("Orchestrator.recordTrace: audit write failed", "user_id", t.UserID, "error", err)
	}
}

// Traces returns the most recent audit records.
func (o *Orchestrator) Traces(limit int) ([]models.TraceRecord, error) {
	return o.store.GetTraces(limit)
}

// CacheStatus reports voice cache backend health.
func (o *Orchestrator) CacheStatus() voicecache.Status {
	return o.store.Status()
}

// ClearCache empties the voice profile cache.
func (o *Orchestrator) ClearCache() error {
	return o.store.ClearProfiles()
}

// ClearUserCache removes one user's cached voice profile.
func (o *Orchestrator) ClearUserCache(userID string) error {
	return o.store.ClearProfile(userID)
}

// UserCacheStatus reports whether one user has a cached voice profile.
func (o *Orchestrator) UserCacheStatus(userID string) (voicecache.ProfileStatus, error) {
	return o.store.ProfileStatus(userID)
}

// Tools lists the pipeline stages in invocation order for introspection.
func (o *Orchestrator) Tools() []ToolInfo {
	return []ToolInfo{
		{Name: analyzer.Component, Description: "classifies emotional state, intensity and crisis risk from the user's text"},
		{Name: planner.Component, Description: "selects the intervention strategy; crisis risk overrides all other signals"},
		{Name: VoiceCacheComponent, Description: "looks up the user's cached voice profile reference"},
		{Name: composer.Component, Description: "derives audio synthesis parameters from the selected strategy"},
		{Name: recommend.Component, Description: "produces evidence-based follow-up recommendations"},
		{Name: script.Component, Description: "writes the meditation script text for the session"},
		{Name: tts.Component, Description: "synthesizes the meditation audio track"},
		{Name: crisis.Component, Description: "returns static safety resources when crisis risk is detected"},
	}
}
