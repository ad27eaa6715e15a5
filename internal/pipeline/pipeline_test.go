package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/BTreeMap/MoodPipe/internal/analyzer"
	"github.com/BTreeMap/MoodPipe/internal/genai"
	"github.com/BTreeMap/MoodPipe/internal/models"
	"github.com/BTreeMap/MoodPipe/internal/notify"
	"github.com/BTreeMap/MoodPipe/internal/script"
	"github.com/BTreeMap/MoodPipe/internal/tts"
	"github.com/BTreeMap/MoodPipe/internal/voicecache"
)

type stubClassifier struct {
	result genai.Classification
	err    error
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (genai.Classification, error) {
	return s.result, s.err
}

func newTestOrchestrator(c *stubClassifier) (*Orchestrator, *tts.MockSynthesizer, *voicecache.InMemoryStore, *notify.MockNotifier) {
	synth := tts.NewMockSynthesizer()
	store := voicecache.NewInMemoryStore()
	notifier := notify.NewMockNotifier()
	o := New(Deps{
		Analyzer: analyzer.New(c),
		Scripts:  script.New(nil),
		Synth:    synth,
		Store:    store,
		Notifier: notifier,
	})
	return o, synth, store, notifier
}

func calmRequest() models.InterventionRequest {
	return models.InterventionRequest{
		UserID: "user-1",
		Intent: "I feel a bit scattered and distracted today",
	}
}

func TestProcessNormalPath(t *testing.T) {
	c := &stubClassifier{result: genai.Classification{
		PrimaryEmotion: "restlessness",
		Intensity:      5,
		RiskSignal:     "none",
	}}
	o, synth, _, _ := newTestOrchestrator(c)

	resp, err := o.Process(context.Background(), calmRequest())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if resp.Plan.Strategy == models.StrategyCrisisProtocol {
		t.Fatalf("low risk must not trigger crisis, got %s", resp.Plan.Strategy)
	}
	if resp.Audio == nil {
		t.Fatal("normal path must produce audio")
	}
	if len(resp.Recommendations) == 0 {
		t.Error("normal path must produce recommendations")
	}
	if resp.Safety != nil {
		t.Error("normal path must not carry safety resources")
	}
	if len(synth.Calls()) != 1 {
		t.Errorf("expected exactly one synthesis call, got %d", len(synth.Calls()))
	}

	wantTrace := []string{
		"emotion_analyzer", "intervention_planner", "voice_cache",
		"audio_parameter_composer", "recommendation_generator",
		"script_generator", "audio_synthesizer",
	}
	if !reflect.DeepEqual(resp.ToolTrace, wantTrace) {
		t.Errorf("unexpected tool trace:\n got %v\nwant %v", resp.ToolTrace, wantTrace)
	}
}

func TestProcessCrisisPath(t *testing.T) {
	c := &stubClassifier{result: genai.Classification{
		PrimaryEmotion: "despair",
		Intensity:      9,
		RiskSignal:     "severe",
	}}
	o, synth, _, notifier := newTestOrchestrator(c)

	req := models.InterventionRequest{
		UserID:  "user-1",
		Intent:  "I feel hopeless and unsafe",
		Context: map[string]any{"emergency_contact": "+15550001111"},
	}
	resp, err := o.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("crisis path must not error: %v", err)
	}
	if resp.Plan.Strategy != models.StrategyCrisisProtocol {
		t.Fatalf("expected crisis_protocol, got %s", resp.Plan.Strategy)
	}
	if !strings.Contains(resp.Plan.Rationale, "severe") {
		t.Errorf("plan rationale must name the detected risk level, got %q", resp.Plan.Rationale)
	}
	if resp.Audio != nil {
		t.Error("crisis response must not carry audio")
	}
	if resp.Safety == nil {
		t.Error("crisis response must carry safety resources")
	}
	if len(synth.Calls()) != 0 {
		t.Error("crisis path must never call the synthesizer")
	}
	if len(notifier.Sent) != 1 || notifier.Sent[0].To != "+15550001111" {
		t.Errorf("expected one crisis notification, got %+v", notifier.Sent)
	}
}

func TestProcessCrisisWithoutContactSkipsNotification(t *testing.T) {
	c := &stubClassifier{result: genai.Classification{
		PrimaryEmotion: "despair",
		Intensity:      9,
		RiskSignal:     "severe",
	}}
	o, _, _, notifier := newTestOrchestrator(c)

	if _, err := o.Process(context.Background(), models.InterventionRequest{
		UserID: "user-1",
		Intent: "everything is falling apart",
	}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(notifier.Sent) != 0 {
		t.Errorf("no contact on file, expected no notification, got %+v", notifier.Sent)
	}
}

// When analysis is unavailable the pipeline must fail closed: the caller
// gets the crisis payload, not an error.
func TestProcessFailsClosedOnAnalyzerOutage(t *testing.T) {
	c := &stubClassifier{err: errors.New("model unavailable")}
	o, synth, _, _ := newTestOrchestrator(c)

	resp, err := o.Process(context.Background(), calmRequest())
	if err != nil {
		t.Fatalf("fail-closed path must not return an error: %v", err)
	}
	if resp.Plan.Strategy != models.StrategyCrisisProtocol {
		t.Fatalf("fail-closed must select crisis_protocol, got %s", resp.Plan.Strategy)
	}
	if resp.Safety == nil {
		t.Error("fail-closed response must carry safety resources")
	}
	if len(synth.Calls()) != 0 {
		t.Error("fail-closed path must not synthesize audio")
	}
	found := false
	for _, entry := range resp.ToolTrace {
		if strings.Contains(entry, "fail-closed") {
			found = true
		}
	}
	if !found {
		t.Errorf("trace must mark the fail-closed substitution, got %v", resp.ToolTrace)
	}
}

func TestProcessValidation(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(&stubClassifier{})
	cases := []struct {
		name string
		req  models.InterventionRequest
		want error
	}{
		{"empty user", models.InterventionRequest{Intent: "hi"}, models.ErrEmptyUserID},
		{"empty intent", models.InterventionRequest{UserID: "u"}, models.ErrEmptyIntent},
		{"bad priority", models.InterventionRequest{UserID: "u", Intent: "hi", Priority: "asap"}, models.ErrInvalidPriority},
	}
	for _, tc := range cases {
		_, err := o.Process(context.Background(), tc.req)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestProcessSynthesisFailure(t *testing.T) {
	c := &stubClassifier{result: genai.Classification{
		PrimaryEmotion: "anxiety",
		Intensity:      5,
		RiskSignal:     "low",
	}}
	o, synth, _, _ := newTestOrchestrator(c)
	synth.SetError(errors.New("polly throttled"))

	_, err := o.Process(context.Background(), calmRequest())
	var pipeErr *models.PipelineError
	if !errors.As(err, &pipeErr) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pipeErr.Component != tts.Component {
		t.Errorf("expected component %s, got %s", tts.Component, pipeErr.Component)
	}
}

func TestProcessCancelledContext(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(&stubClassifier{result: genai.Classification{
		PrimaryEmotion: "calm", Intensity: 2, RiskSignal: "none",
	}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Process(ctx, calmRequest())
	if err == nil {
		t.Fatal("cancelled context must fail the request")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error must wrap context.Canceled, got %v", err)
	}
}

func TestProcessCachesVoiceProfile(t *testing.T) {
	c := &stubClassifier{result: genai.Classification{
		PrimaryEmotion: "anxiety", Intensity: 5, RiskSignal: "low",
	}}
	o, synth, store, _ := newTestOrchestrator(c)

	if _, err := o.Process(context.Background(), calmRequest()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	ref, ok, _ := store.GetProfile("user-1")
	if !ok || ref == "" {
		t.Fatal("voice profile must be cached after synthesis")
	}

	// Second run must feed the cached profile into synthesis params.
	if _, err := o.Process(context.Background(), calmRequest()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	calls := synth.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected two synthesis calls, got %d", len(calls))
	}
	if calls[1].Params.VoiceProfileRef != ref {
		t.Errorf("second synthesis must reuse cached profile %q, got %q", ref, calls[1].Params.VoiceProfileRef)
	}
}

func TestProcessRecordsAuditTrace(t *testing.T) {
	c := &stubClassifier{result: genai.Classification{
		PrimaryEmotion: "anxiety", Intensity: 5, RiskSignal: "low",
	}}
	o, _, _, _ := newTestOrchestrator(c)

	if _, err := o.Process(context.Background(), calmRequest()); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	traces, err := o.Traces(10)
	if err != nil {
		t.Fatalf("Traces failed: %v", err)
	}
	if len(traces) != 1 {
		t.Fatalf("expected one audit record, got %d", len(traces))
	}
	if traces[0].UserID != "user-1" || traces[0].Crisis {
		t.Errorf("unexpected audit record: %+v", traces[0])
	}
	if len(traces[0].ToolTrace) == 0 {
		t.Error("audit record must carry the tool trace")
	}
}

// Identical input must always yield the same strategy and trace shape.
func TestProcessDeterministic(t *testing.T) {
	c := &stubClassifier{result: genai.Classification{
		PrimaryEmotion: "frustration", Intensity: 8, RiskSignal: "low",
	}}
	o, _, _, _ := newTestOrchestrator(c)

	first, err := o.Process(context.Background(), calmRequest())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		resp, err := o.Process(context.Background(), calmRequest())
		if err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		if resp.Plan.Strategy != first.Plan.Strategy {
			t.Fatalf("strategy changed between runs: %s vs %s", resp.Plan.Strategy, first.Plan.Strategy)
		}
		if !reflect.DeepEqual(resp.ToolTrace, first.ToolTrace) {
			t.Fatalf("trace changed between runs: %v vs %v", resp.ToolTrace, first.ToolTrace)
		}
	}
}

func TestAnalyzeSurfacesExternalError(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(&stubClassifier{err: errors.New("model down")})

	_, err := o.Analyze(context.Background(), calmRequest())
	var extErr *models.ExternalCallError
	if !errors.As(err, &extErr) {
		t.Fatalf("Analyze must surface the external error, got %v", err)
	}
}

func TestToolsInventory(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(&stubClassifier{})
	tools := o.Tools()
	if len(tools) == 0 {
		t.Fatal("tool inventory must not be empty")
	}
	names := map[string]bool{}
	for _, tool := range tools {
		if tool.Name == "" || tool.Description == "" {
			t.Errorf("tool entries must be fully populated: %+v", tool)
		}
		names[tool.Name] = true
	}
	for _, want := range []string{"emotion_analyzer", "intervention_planner", "crisis_handler", "audio_synthesizer"} {
		if !names[want] {
			t.Errorf("tool inventory missing %s", want)
		}
	}
}
