// Package testutil provides common test utilities and helpers for MoodPipe tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/BTreeMap/MoodPipe/internal/models"
	"github.com/BTreeMap/MoodPipe/internal/voicecache"
)

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// PostJSON sends a JSON POST request and fails the test on transport errors.
func PostJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(MustMarshalJSON(t, body)))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

// DecodeEnvelope decodes the standard API response envelope and closes the body.
func DecodeEnvelope(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	return envelope
}

// DecodeResult re-marshals the envelope's result field into target.
func DecodeResult(t *testing.T, envelope models.APIResponse, target interface{}) {
	t.Helper()
	MustUnmarshalJSON(t, MustMarshalJSON(t, envelope.Result), target)
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}

// SampleEmotionalState builds a valid record at the given crisis risk.
func SampleEmotionalState(risk models.CrisisRisk) models.EmotionalState {
	return models.EmotionalState{
		PrimaryEmotion:    "anxiety",
		Intensity:         5,
		SecondaryEmotions: []string{"worry"},
		CrisisRisk:        risk,
		RawText:           "I am feeling anxious",
	}
}

// SampleRequest builds a valid intervention request.
func SampleRequest() models.InterventionRequest {
	return models.InterventionRequest{
		UserID: "user-test",
		Intent: "I am feeling anxious about tomorrow",
	}
}

// SeedTraces adds n audit records to the store for testing.
func SeedTraces(t *testing.T, store voicecache.Store, n int) {
	t.Helper()
	base := time.Now()
	for i := 0; i < n; i++ {
		err := store.AddTrace(models.TraceRecord{
			UserID:    "user-test",
			Strategy:  models.StrategyMindfulness,
			ToolTrace: []string{"emotion_analyzer", "intervention_planner"},
			ElapsedMS: int64(i),
			Time:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("failed to seed trace %d: %v", i, err)
		}
	}
}
