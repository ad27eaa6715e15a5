package testutil

import (
	"testing"

	"github.com/BTreeMap/MoodPipe/internal/models"
	"github.com/BTreeMap/MoodPipe/internal/voicecache"
)

func TestSampleRecordsAreValid(t *testing.T) {
	record := SampleEmotionalState(models.CrisisRiskNone)
	if err := record.Validate(); err != nil {
		t.Errorf("sample emotional state must validate: %v", err)
	}
	req := SampleRequest()
	if err := req.Validate(); err != nil {
		t.Errorf("sample request must validate: %v", err)
	}
}

func TestSeedTraces(t *testing.T) {
	store := voicecache.NewInMemoryStore()
	SeedTraces(t, store, 3)
	traces, err := store.GetTraces(10)
	if err != nil {
		t.Fatalf("GetTraces failed: %v", err)
	}
	if len(traces) != 3 {
		t.Errorf("expected 3 seeded traces, got %d", len(traces))
	}
}
