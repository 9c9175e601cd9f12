// SQLite-backed Store implementation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/folkode/leadchat/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists LeadChat state in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN (a file path).
// The containing directory is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(profileID string, session models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session for %s: %w", profileID, err)
	}
	_, err = s.db.Exec(`INSERT INTO sessions (profile_id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(profile_id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`, profileID, string(data))
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "profileID", profileID)
		return fmt.Errorf("failed to save session for %s: %w", profileID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "profileID", profileID, "messages", len(session.Messages))
	return nil
}

func (s *SQLiteStore) GetSession(profileID string) (*models.Session, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM sessions WHERE profile_id = ?`, profileID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession query failed", "error", err, "profileID", profileID)
		return nil, fmt.Errorf("failed to query session for %s: %w", profileID, err)
	}
	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		slog.Error("SQLiteStore GetSession unmarshal failed", "error", err, "profileID", profileID)
		return nil, fmt.Errorf("failed to unmarshal session for %s: %w", profileID, err)
	}
	return &session, nil
}

func (s *SQLiteStore) DeleteSession(profileID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE profile_id = ?`, profileID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "profileID", profileID)
		return fmt.Errorf("failed to delete session for %s: %w", profileID, err)
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "profileID", profileID)
	return nil
}

func (s *SQLiteStore) SaveAnalytics(data models.AnalyticsData) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO analytics (id, data, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`, string(blob))
	if err != nil {
		slog.Error("SQLiteStore SaveAnalytics failed", "error", err)
		return fmt.Errorf("failed to save analytics: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAnalytics() (*models.AnalyticsData, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM analytics WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetAnalytics query failed", "error", err)
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	var analytics models.AnalyticsData
	if err := json.Unmarshal([]byte(data), &analytics); err != nil {
		slog.Error("SQLiteStore GetAnalytics unmarshal failed", "error", err)
		return nil, fmt.Errorf("failed to unmarshal analytics: %w", err)
	}
	return &analytics, nil
}

func (s *SQLiteStore) AddLead(lead models.Lead) error {
	_, err := s.db.Exec(`INSERT INTO leads (profile_id, name, contact_method, contact_info, time) VALUES (?, ?, ?, ?, ?)`,
		lead.ProfileID, lead.User.Name, string(lead.User.ContactMethod), lead.User.ContactInfo, lead.Time)
	if err != nil {
		slog.Error("SQLiteStore AddLead failed", "error", err, "name", lead.User.Name)
		return fmt.Errorf("failed to insert lead for %s: %w", lead.User.Name, err)
	}
	slog.Debug("SQLiteStore AddLead succeeded", "name", lead.User.Name)
	return nil
}

func (s *SQLiteStore) GetLeads() ([]models.Lead, error) {
	rows, err := s.db.Query(`SELECT profile_id, name, contact_method, contact_info, time FROM leads ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore GetLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		var method string
		if err := rows.Scan(&l.ProfileID, &l.User.Name, &method, &l.User.ContactInfo, &l.Time); err != nil {
			slog.Error("SQLiteStore GetLeads scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		l.User.ContactMethod = models.ContactMethod(method)
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetLeads rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return leads, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
