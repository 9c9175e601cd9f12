// Package store provides storage backends for LeadChat.
//
// It persists session snapshots, the analytics aggregate, and lead records.
// Backends: SQLite (default), PostgreSQL, and an in-memory store for tests.
// Session and analytics blobs are opaque JSON so schema evolution is handled
// by the loading side merging over defaults.
package store

import (
	"strings"
	"sync"

	"github.com/folkode/leadchat/internal/models"
)

// Store is the persistence interface shared by all backends.
type Store interface {
	// SaveSession upserts the session snapshot for a profile.
	SaveSession(profileID string, session models.Session) error
	// GetSession returns the snapshot for a profile, or nil when none exists.
	GetSession(profileID string) (*models.Session, error)
	// DeleteSession discards the persisted snapshot for a profile.
	DeleteSession(profileID string) error

	// SaveAnalytics persists the analytics aggregate.
	SaveAnalytics(data models.AnalyticsData) error
	// GetAnalytics returns the persisted aggregate, or nil when none exists.
	GetAnalytics() (*models.AnalyticsData, error)

	// AddLead appends a lead-capture record.
	AddLead(lead models.Lead) error
	// GetLeads returns all lead records in capture order.
	GetLeads() ([]models.Lead, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for persistent stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithDSN sets the database connection string (a file path for SQLite, a
// postgres:// URL or key=value string for PostgreSQL).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-looking DSNs and "sqlite"
// otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a non-persistent Store used in tests and as a fallback.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]models.Session
	analytics *models.AnalyticsData
	leads     []models.Lead
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.Session)}
}

func (s *InMemoryStore) SaveSession(profileID string, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[profileID] = session
	return nil
}

func (s *InMemoryStore) GetSession(profileID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[profileID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *InMemoryStore) DeleteSession(profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, profileID)
	return nil
}

func (s *InMemoryStore) SaveAnalytics(data models.AnalyticsData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analytics = &data
	return nil
}

func (s *InMemoryStore) GetAnalytics() (*models.AnalyticsData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.analytics == nil {
		return nil, nil
	}
	data := *s.analytics
	return &data, nil
}

func (s *InMemoryStore) AddLead(lead models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, lead)
	return nil
}

func (s *InMemoryStore) GetLeads() ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	leads := make([]models.Lead, len(s.leads))
	copy(leads, s.leads)
	return leads, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
