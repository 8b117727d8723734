package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/melodymatch/internal/shared"
)

// SQLiteStore persists key-value pairs in the kv_store table created by [shared.RunMigrations].
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new [SQLiteStore] with the given (migrated) database connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Scope returns the [Store] for a single namespace (one visitor or one CLI origin).
func (s *SQLiteStore) Scope(namespace string) *ScopedStore {
	return &ScopedStore{db: s.db, namespace: namespace}
}

// Namespaces returns every namespace with at least one stored key.
func (s *SQLiteStore) Namespaces() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT namespace FROM kv_store ORDER BY namespace")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list namespaces: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var namespaces []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("%w: failed to scan namespace: %v", shared.ErrStorage, err)
		}
		namespaces = append(namespaces, ns)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	return namespaces, nil
}

// ScopedStore is one namespace of a [SQLiteStore]. It implements [Store] and [Batcher].
type ScopedStore struct {
	db        *sql.DB
	namespace string
}

var (
	_ Store   = (*ScopedStore)(nil)
	_ Batcher = (*ScopedStore)(nil)
)

// Namespace returns the namespace this store reads and writes.
func (s *ScopedStore) Namespace() string {
	return s.namespace
}

func (s *ScopedStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv_store WHERE namespace = ? AND key = ?", s.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to read %s: %v", shared.ErrStorage, key, err)
	}
	return value, true, nil
}

func (s *ScopedStore) Set(key, value string) error {
	if _, err := s.db.Exec(upsertQuery, s.namespace, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

func (s *ScopedStore) Remove(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv_store WHERE namespace = ? AND key = ?", s.namespace, key); err != nil {
		return fmt.Errorf("%w: failed to remove %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

// Apply writes set and deletes remove in one transaction.
func (s *ScopedStore) Apply(set map[string]string, remove []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", shared.ErrStorage, err)
	}
	defer tx.Rollback()

	for _, key := range remove {
		if _, err := tx.Exec("DELETE FROM kv_store WHERE namespace = ? AND key = ?", s.namespace, key); err != nil {
			return fmt.Errorf("%w: failed to remove %s: %v", shared.ErrStorage, key, err)
		}
	}

	now := time.Now().UTC()
	for key, value := range set {
		if _, err := tx.Exec(upsertQuery, s.namespace, key, value, now); err != nil {
			return fmt.Errorf("%w: failed to write %s: %v", shared.ErrStorage, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %v", shared.ErrStorage, err)
	}
	return nil
}

// Clear removes every key in the namespace.
func (s *ScopedStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM kv_store WHERE namespace = ?", s.namespace); err != nil {
		return fmt.Errorf("%w: failed to clear %s: %v", shared.ErrStorage, s.namespace, err)
	}
	return nil
}

const upsertQuery = `
	INSERT INTO kv_store (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`
