package voicecache

import (
	"log/slog"
	"sync"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

// Resilient wraps a primary store with an in-memory fallback. When a primary
// operation fails the wrapper degrades to memory for the rest of the process
// lifetime, so a broken database slows nothing down and loses only
// persistence. Cache failures must never fail an intervention.
type Resilient struct {
	mu       sync.Mutex
	primary  Store
	memory   *InMemoryStore
	degraded bool
}

// NewResilient wraps primary with an in-memory fallback. A nil primary
// starts degraded immediately.
func NewResilient(primary Store) *Resilient {
	r := &Resilient{primary: primary, memory: NewInMemoryStore()}
	if primary == nil {
		r.degraded = true
	}
	return r
}

func (r *Resilient) active() (Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.degraded {
		return r.memory, true
	}
	return r.primary, false
}

func (r *Resilient) degrade(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.degraded {
		slog.Warn("Resilient: primary store failed, degrading to in-memory fallback", "op", op, "error", err)
		r.degraded = true
	}
}

func (r *Resilient) GetProfile(userID string) (string, bool, error) {
	store, _ := r.active()
	ref, ok, err := store.GetProfile(userID)
	if err != nil {
		r.degrade("GetProfile", err)
		return r.memory.GetProfile(userID)
	}
	return ref, ok, nil
}

func (r *Resilient) PutProfile(userID, profileRef string) error {
	store, _ := r.active()
	if err := store.PutProfile(userID, profileRef); err != nil {
		r.degrade("PutProfile", err)
		return r.memory.PutProfile(userID, profileRef)
	}
	return nil
}

func (r *Resilient) ClearProfile(userID string) error {
	store, _ := r.active()
	if err := store.ClearProfile(userID); err != nil {
		r.degrade("ClearProfile", err)
	}
	return r.memory.ClearProfile(userID)
}

func (r *Resilient) ClearProfiles() error {
	store, _ := r.active()
	if err := store.ClearProfiles(); err != nil {
		r.degrade("ClearProfiles", err)
	}
	return r.memory.ClearProfiles()
}

func (r *Resilient) ProfileStatus(userID string) (ProfileStatus, error) {
	store, _ := r.active()
	status, err := store.ProfileStatus(userID)
	if err != nil {
		r.degrade("ProfileStatus", err)
		return r.memory.ProfileStatus(userID)
	}
	return status, nil
}

func (r *Resilient) AddTrace(t models.TraceRecord) error {
	store, _ := r.active()
	if err := store.AddTrace(t); err != nil {
		r.degrade("AddTrace", err)
		return r.memory.AddTrace(t)
	}
	return nil
}

func (r *Resilient) GetTraces(limit int) ([]models.TraceRecord, error) {
	store, _ := r.active()
	traces, err := store.GetTraces(limit)
	if err != nil {
		r.degrade("GetTraces", err)
		return r.memory.GetTraces(limit)
	}
	return traces, nil
}

func (r *Resilient) Status() Status {
	store, degraded := r.active()
	status := store.Status()
	if degraded {
		status.FallbackActive = true
	}
	return status
}

func (r *Resilient) Close() error {
	if r.primary != nil {
		return r.primary.Close()
	}
	return nil
}
