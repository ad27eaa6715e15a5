// Package voicecache provides storage backends for MoodPipe.
//
// This file implements the SQLite-backed store for voice profiles and
// pipeline traces.
package voicecache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/MoodPipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db, ttl: cfg.TTL}, nil
}

func (s *SQLiteStore) GetProfile(userID string) (string, bool, error) {
	var ref string
	err := s.db.QueryRow(
		`SELECT profile_ref FROM voice_profiles WHERE user_id = ? AND expires_at > ?`,
		userID, time.Now(),
	).Scan(&ref)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetProfile miss", "user_id", userID)
		return "", false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProfile failed", "error", err, "user_id", userID)
		return "", false, fmt.Errorf("failed to query voice profile for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore GetProfile hit", "user_id", userID)
	return ref, true, nil
}

func (s *SQLiteStore) PutProfile(userID, profileRef string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO voice_profiles (user_id, profile_ref, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		userID, profileRef, now, now.Add(s.ttl),
	)
	if err != nil {
		slog.Error("SQLiteStore PutProfile failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to insert voice profile for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore PutProfile succeeded", "user_id", userID)
	return nil
}

func (s *SQLiteStore) ClearProfile(userID string) error {
	_, err := s.db.Exec(`DELETE FROM voice_profiles WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore ClearProfile failed", "error", err, "user_id", userID)
		return fmt.Errorf("failed to clear voice profile for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore ClearProfile succeeded", "user_id", userID)
	return nil
}

func (s *SQLiteStore) ClearProfiles() error {
	_, err := s.db.Exec(`DELETE FROM voice_profiles`)
	if err != nil {
		slog.Error("SQLiteStore ClearProfiles failed", "error", err)
		return fmt.Errorf("failed to clear voice profiles: %w", err)
	}
	slog.Debug("SQLiteStore ClearProfiles succeeded")
	return nil
}

func (s *SQLiteStore) ProfileStatus(userID string) (ProfileStatus, error) {
	_, cached, err := s.GetProfile(userID)
	if err != nil {
		return ProfileStatus{}, err
	}
	return ProfileStatus{UserID: userID, Cached: cached, Backend: "sqlite3"}, nil
}

func (s *SQLiteStore) AddTrace(t models.TraceRecord) error {
	traceJSON, err := json.Marshal(t.ToolTrace)
	if err != nil {
		slog.Error("SQLiteStore AddTrace marshal failed", "error", err, "user_id", t.UserID)
		return fmt.Errorf("failed to marshal tool trace: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO pipeline_traces (user_id, strategy, tool_trace, crisis, elapsed_ms, time) VALUES (?, ?, ?, ?, ?, ?)`,
		t.UserID, string(t.Strategy), string(traceJSON), t.Crisis, t.ElapsedMS, t.Time,
	)
	if err != nil {
		slog.Error("SQLiteStore AddTrace failed", "error", err, "user_id", t.UserID)
		return fmt.Errorf("failed to insert pipeline trace for %s: %w", t.UserID, err)
	}
	slog.Debug("SQLiteStore AddTrace succeeded", "user_id", t.UserID, "strategy", t.Strategy)
	return nil
}

func (s *SQLiteStore) GetTraces(limit int) ([]models.TraceRecord, error) {
	if limit <= 0 {
		limit = maxMemoryTraces
	}
	rows, err := s.db.Query(
		`SELECT user_id, strategy, tool_trace, crisis, elapsed_ms, time FROM pipeline_traces ORDER BY time DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		slog.Error("SQLiteStore GetTraces query failed", "error", err)
		return nil, fmt.Errorf("failed to query pipeline traces: %w", err)
	}
	defer rows.Close()

	var traces []models.TraceRecord
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			slog.Error("SQLiteStore GetTraces scan failed", "error", err)
			return nil, err
		}
		traces = append(traces, t)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetTraces rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate trace rows: %w", err)
	}
	slog.Debug("SQLiteStore GetTraces succeeded", "count", len(traces))
	return traces, nil
}

func (s *SQLiteStore) Status() Status {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM voice_profiles WHERE expires_at > ?`, time.Now()).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore Status count failed", "error", err)
		return Status{Backend: "sqlite3", Healthy: false}
	}
	return Status{Backend: "sqlite3", Entries: count, Healthy: true}
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
