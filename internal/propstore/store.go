package propstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
)

// credentialKey is the properties row holding the gateway access key.
const credentialKey = "apiKey"

// writeTimeout bounds a single persistence operation.
const writeTimeout = 5 * time.Second

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Store persists adapter properties in SQLite with a write-through
// in-memory cache.
//
// Two kinds of writes flow through here and they are deliberately
// distinguishable: Set and SetCredential are user-or-flow-driven and
// notify registered listeners, while SetProperties carries
// gateway-reported values and never notifies, so a property merge
// during bring-up cannot masquerade as a configuration change and
// trigger a reinitialisation cycle.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	db     *database.DB
	logger Logger

	mu        sync.Mutex
	cache     map[string]string
	listeners []func(keys []string)
}

// New loads all persisted properties and returns a ready store.
func New(ctx context.Context, db *database.DB, logger Logger) (*Store, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Store{
		db:     db,
		logger: logger,
		cache:  make(map[string]string),
	}

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM properties`)
	if err != nil {
		return nil, fmt.Errorf("propstore: load properties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("propstore: scan property: %w", err)
		}
		s.cache[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("propstore: iterate properties: %w", err)
	}

	logger.Debug("properties loaded", "count", len(s.cache))
	return s, nil
}

// Credential returns the stored gateway access key, or "" if absent.
func (s *Store) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[credentialKey]
}

// SetCredential persists a newly granted access key and notifies
// listeners. The key survives restarts and is never re-requested
// while present.
func (s *Store) SetCredential(key string) error {
	return s.Set(credentialKey, key)
}

// Set persists a single property and notifies listeners.
func (s *Store) Set(key, value string) error {
	if err := s.persist(map[string]string{key: value}); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[key] = value
	listeners := append([]func([]string){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn([]string{key})
	}
	return nil
}

// SetProperties merges gateway-reported properties without notifying
// listeners.
func (s *Store) SetProperties(props map[string]string) error {
	if len(props) == 0 {
		return nil
	}
	if err := s.persist(props); err != nil {
		return err
	}
	s.mu.Lock()
	for k, v := range props {
		s.cache[k] = v
	}
	s.mu.Unlock()

	s.logger.Debug("gateway properties merged", "count", len(props))
	return nil
}

// Get returns a property value from the cache.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache[key]
	return v, ok
}

// All returns a copy of every stored property, with the credential
// value masked.
func (s *Store) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.cache))
	for k, v := range s.cache {
		if k == credentialKey {
			v = "****"
		}
		out[k] = v
	}
	return out
}

// OnUpdate registers a listener for user-driven property changes.
// Gateway-reported property merges do not fire it.
func (s *Store) OnUpdate(fn func(keys []string)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// persist writes the given properties in one transaction.
func (s *Store) persist(props map[string]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("propstore: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for k, v := range props {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO properties (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at`,
			k, v, now)
		if err != nil {
			return fmt.Errorf("propstore: write %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("propstore: commit: %w", err)
	}
	return nil
}
