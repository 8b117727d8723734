package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/melodymatch/internal/shared"
)

// VisitorRepository tracks web visitors so abandoned kv_store namespaces can be pruned.
type VisitorRepository struct {
	db *sql.DB
}

// NewVisitorRepository creates a new [VisitorRepository] with the given database connection.
func NewVisitorRepository(db *sql.DB) *VisitorRepository {
	return &VisitorRepository{db: db}
}

// Touch records that the visitor was seen at t, inserting it on first sight.
func (r *VisitorRepository) Touch(id string, t time.Time) error {
	query := `
		INSERT INTO visitors (id, created_at, last_seen_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen_at = excluded.last_seen_at
	`
	if _, err := r.db.Exec(query, id, t.UTC(), t.UTC()); err != nil {
		return fmt.Errorf("%w: failed to touch visitor: %v", shared.ErrStorage, err)
	}
	return nil
}

// LastSeen returns when the visitor was last seen, and false when unknown.
func (r *VisitorRepository) LastSeen(id string) (time.Time, bool, error) {
	var seen time.Time
	err := r.db.QueryRow("SELECT last_seen_at FROM visitors WHERE id = ?", id).Scan(&seen)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: failed to query visitor: %v", shared.ErrStorage, err)
	}
	return seen, true, nil
}

// Prune deletes visitors not seen since cutoff along with their stored keys, returning how many were removed.
func (r *VisitorRepository) Prune(cutoff time.Time) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %v", shared.ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM kv_store WHERE namespace IN (SELECT id FROM visitors WHERE last_seen_at < ?)
	`, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("%w: failed to prune stored keys: %v", shared.ErrStorage, err)
	}

	result, err := tx.Exec("DELETE FROM visitors WHERE last_seen_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prune visitors: %v", shared.ErrStorage, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get affected rows: %v", shared.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit: %v", shared.ErrStorage, err)
	}
	return int(n), nil
}
