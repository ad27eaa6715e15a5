// Package voicecache provides storage backends for MoodPipe.
//
// It persists per-user voice profile references so repeated syntheses reuse
// the same voice, and keeps the audit trail of pipeline runs. An in-memory
// store backs tests and cache-less deployments; SQLite and PostgreSQL
// backends provide persistence.
package voicecache

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

// DefaultTTL is how long a cached voice profile stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// maxMemoryTraces bounds the in-memory audit trail.
const maxMemoryTraces = 256

// Store is the persistence interface consumed by the pipeline and API layers.
type Store interface {
	// GetProfile returns the cached voice profile reference for a user.
	// The boolean reports whether a non-expired entry was found.
	GetProfile(userID string) (string, bool, error)
	// PutProfile stores the voice profile reference for a user, replacing
	// any existing entry and resetting its expiry.
	PutProfile(userID, profileRef string) error
	// ClearProfile removes one user's cached voice profile. Clearing an
	// absent entry is not an error.
	ClearProfile(userID string) error
	// ClearProfiles removes all cached voice profiles.
	ClearProfiles() error
	// ProfileStatus reports whether the user has a live cache entry and
	// which backend holds it.
	ProfileStatus(userID string) (ProfileStatus, error)
	// AddTrace appends one pipeline run to the audit trail.
	AddTrace(t models.TraceRecord) error
	// GetTraces returns the most recent audit records, newest first.
	GetTraces(limit int) ([]models.TraceRecord, error)
	// Status reports backend health for the cache status endpoint.
	Status() Status
	// Close releases backend resources.
	Close() error
}

// Status describes the cache backend for introspection.
type Status struct {
	Backend        string `json:"backend"`
	Entries        int    `json:"entries"`
	Healthy        bool   `json:"healthy"`
	FallbackActive bool   `json:"fallback_active,omitempty"`
}

// ProfileStatus describes one user's cache entry.
type ProfileStatus struct {
	UserID  string `json:"user_id"`
	Cached  bool   `json:"cached"`
	Backend string `json:"backend"`
}

// Opts holds configuration for store constructors.
type Opts struct {
	DSN string
	TTL time.Duration
}

// Option configures store construction.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithTTL overrides the profile expiry window.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// DetectDSNType reports which driver a DSN belongs to: "postgres" for
// PostgreSQL connection strings, "sqlite3" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// New constructs a store from options: no DSN selects the in-memory store,
// otherwise the driver is chosen by DSN shape.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Debug("voicecache.New: no DSN provided, using in-memory store")
		return NewInMemoryStore(opts...), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

type memoryEntry struct {
	profileRef string
	expiresAt  time.Time
}

// InMemoryStore keeps voice profiles and traces in process memory.
type InMemoryStore struct {
	mu       sync.Mutex
	profiles map[string]memoryEntry
	traces   []models.TraceRecord
	ttl      time.Duration
	now      func() time.Time
}

// NewInMemoryStore creates an in-memory store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &InMemoryStore{
		profiles: make(map[string]memoryEntry),
		ttl:      cfg.TTL,
		now:      time.Now,
	}
}

func (s *InMemoryStore) GetProfile(userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.profiles[userID]
	if !ok {
		return "", false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.profiles, userID)
		slog.Debug("InMemoryStore.GetProfile: entry expired", "user_id", userID)
		return "", false, nil
	}
	return entry.profileRef, true, nil
}

func (s *InMemoryStore) PutProfile(userID, profileRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = memoryEntry{profileRef: profileRef, expiresAt: s.now().Add(s.ttl)}
	slog.Debug("InMemoryStore.PutProfile: profile stored", "user_id", userID)
	return nil
}

func (s *InMemoryStore) ClearProfile(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	slog.Debug("InMemoryStore.ClearProfile: entry removed", "user_id", userID)
	return nil
}

func (s *InMemoryStore) ClearProfiles() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = make(map[string]memoryEntry)
	slog.Debug("InMemoryStore.ClearProfiles: cache cleared")
	return nil
}

func (s *InMemoryStore) ProfileStatus(userID string) (ProfileStatus, error) {
	_, cached, err := s.GetProfile(userID)
	return ProfileStatus{UserID: userID, Cached: cached, Backend: "memory"}, err
}

func (s *InMemoryStore) AddTrace(t models.TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = append(s.traces, t)
	if len(s.traces) > maxMemoryTraces {
		s.traces = s.traces[len(s.traces)-maxMemoryTraces:]
	}
	return nil
}

func (s *InMemoryStore) GetTraces(limit int) ([]models.TraceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.TraceRecord(nil), s.traces...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	now := s.now()
	for _, entry := range s.profiles {
		if now.Before(entry.expiresAt) {
			count++
		}
	}
	return Status{Backend: "memory", Entries: count, Healthy: true}
}

func (s *InMemoryStore) Close() error { return nil }
