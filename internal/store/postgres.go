// PostgreSQL-backed Store implementation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/folkode/leadchat/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists LeadChat state in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(profileID string, session models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session for %s: %w", profileID, err)
	}
	_, err = s.db.Exec(`INSERT INTO sessions (profile_id, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (profile_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, profileID, string(data))
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "profileID", profileID)
		return fmt.Errorf("failed to save session for %s: %w", profileID, err)
	}
	return nil
}

func (s *PostgresStore) GetSession(profileID string) (*models.Session, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM sessions WHERE profile_id = $1`, profileID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession query failed", "error", err, "profileID", profileID)
		return nil, fmt.Errorf("failed to query session for %s: %w", profileID, err)
	}
	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		slog.Error("PostgresStore GetSession unmarshal failed", "error", err, "profileID", profileID)
		return nil, fmt.Errorf("failed to unmarshal session for %s: %w", profileID, err)
	}
	return &session, nil
}

func (s *PostgresStore) DeleteSession(profileID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE profile_id = $1`, profileID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "profileID", profileID)
		return fmt.Errorf("failed to delete session for %s: %w", profileID, err)
	}
	return nil
}

func (s *PostgresStore) SaveAnalytics(data models.AnalyticsData) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO analytics (id, data, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, string(blob))
	if err != nil {
		slog.Error("PostgresStore SaveAnalytics failed", "error", err)
		return fmt.Errorf("failed to save analytics: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalytics() (*models.AnalyticsData, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM analytics WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetAnalytics query failed", "error", err)
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	var analytics models.AnalyticsData
	if err := json.Unmarshal([]byte(data), &analytics); err != nil {
		slog.Error("PostgresStore GetAnalytics unmarshal failed", "error", err)
		return nil, fmt.Errorf("failed to unmarshal analytics: %w", err)
	}
	return &analytics, nil
}

func (s *PostgresStore) AddLead(lead models.Lead) error {
	_, err := s.db.Exec(`INSERT INTO leads (profile_id, name, contact_method, contact_info, time) VALUES ($1, $2, $3, $4, $5)`,
		lead.ProfileID, lead.User.Name, string(lead.User.ContactMethod), lead.User.ContactInfo, lead.Time)
	if err != nil {
		slog.Error("PostgresStore AddLead failed", "error", err, "name", lead.User.Name)
		return fmt.Errorf("failed to insert lead for %s: %w", lead.User.Name, err)
	}
	return nil
}

func (s *PostgresStore) GetLeads() ([]models.Lead, error) {
	rows, err := s.db.Query(`SELECT profile_id, name, contact_method, contact_info, time FROM leads ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore GetLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		var method string
		if err := rows.Scan(&l.ProfileID, &l.User.Name, &method, &l.User.ContactInfo, &l.Time); err != nil {
			slog.Error("PostgresStore GetLeads scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		l.User.ContactMethod = models.ContactMethod(method)
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetLeads rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return leads, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
