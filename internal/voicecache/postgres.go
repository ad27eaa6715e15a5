// Package voicecache provides storage backends for MoodPipe.
//
// This file implements the PostgreSQL-backed store for voice profiles and
// pipeline traces.
package voicecache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/MoodPipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db, ttl: cfg.TTL}, nil
}

func (s *PostgresStore) GetProfile(userID string) (string, bool, error) {
	var ref string
	err := s.db.QueryRow(
		`SELECT profile_ref FROM voice_profiles WHERE user_id = $1 AND expires_at > $2`,
		userID, time.Now(),
	).Scan(&ref)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetProfile miss", "user_id", userID)
		return "", false, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProfile failed", "error", err, "user_id", userID)
		return "", false, fmt.Errorf("failed to query voice profile for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore GetProfile hit", "user_id", userID)
	return ref, true, nil
}

func (s *PostgresStore) PutProfile(userID, profileRef string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO voice_profiles (user_id, profile_ref, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET profile_ref = $2, created_at = $3, expires_at = $4`,
		userID, profileRef, now, now.Add(s.ttl),
	)
	if err != nil {
		slog.Error("PostgresStore PutProfile failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to upsert voice profile for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore PutProfile succeeded", "user_id", userID)
	return nil
}

func (s *PostgresStore) ClearProfile(userID string) error {
	_, err := s.db.Exec(`DELETE FROM voice_profiles WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore ClearProfile failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to clear voice profile for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore ClearProfile succeeded", "user_id", userID)
	return nil
}

func (s *PostgresStore) ClearProfiles() error {
	_, err := s.db.Exec(`DELETE FROM voice_profiles`)
	if err != nil {
		slog.Error("PostgresStore ClearProfiles failed", "error", err)
		return fmt.Errorf("failed to clear voice profiles: %w", err)
	}
	slog.Debug("PostgresStore ClearProfiles succeeded")
	return nil
}

func (s *PostgresStore) ProfileStatus(userID string) (ProfileStatus, error) {
	_, cached, err := s.GetProfile(userID)
	if err != nil {
		return ProfileStatus{}, err
	}
	return ProfileStatus{UserID: userID, Cached: cached, Backend: "postgres"}, nil
}

func (s *PostgresStore) AddTrace(t models.TraceRecord) error {
	traceJSON, err := json.Marshal(t.ToolTrace)
	if err != nil {
		slog.Error("PostgresStore AddTrace marshal failed", "error", err, "user_id", t.UserID)
		return fmt.Errorf("failed to marshal tool trace: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO pipeline_traces (user_id, strategy, tool_trace, crisis, elapsed_ms, time) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.UserID, string(t.Strategy), string(traceJSON), t.Crisis, t.ElapsedMS, t.Time,
	)
	if err != nil {
		slog.Error("PostgresStore AddTrace failed", "error", err, "user_id", t.UserID)
		return fmt.Errorf("failed to insert pipeline trace for %s: %w", t.UserID, err)
	}
	slog.Debug("PostgresStore AddTrace succeeded", "user_id", t.UserID, "strategy", t.Strategy)
	return nil
}

func (s *PostgresStore) GetTraces(limit int) ([]models.TraceRecord, error) {
	if limit <= 0 {
		limit = maxMemoryTraces
	}
	rows, err := s.db.Query(
		`SELECT user_id, strategy, tool_trace, crisis, elapsed_ms, time FROM pipeline_traces ORDER BY time DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		slog.Error("PostgresStore GetTraces query failed", "error", err)
		return nil, fmt.Errorf("failed to query pipeline traces: %w", err)
	}
	defer rows.Close()

	var traces []models.TraceRecord
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			slog.Error("PostgresStore GetTraces scan failed", "error", err)
			return nil, err
		}
		traces = append(traces, t)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetTraces rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate trace rows: %w", err)
	}
	slog.Debug("PostgresStore GetTraces succeeded", "count", len(traces))
	return traces, nil
}

func (s *PostgresStore) Status() Status {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM voice_profiles WHERE expires_at > $1`, time.Now()).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore Status count failed", "error", err)
		return Status{Backend: "postgres", Healthy: false}
	}
	return Status{Backend: "postgres", Entries: count, Healthy: true}
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
