package light

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prysmalight/prysma-core/internal/infrastructure/database"
)

// State history source values.
const (
	SourceCommand    = "command"
	SourceMQTT       = "mqtt"
	SourceDisconnect = "disconnect"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// StateHistoryEntry is one recorded state transition.
type StateHistoryEntry struct {
	ID        int64      `json:"id"`
	LightID   string     `json:"lightId"`
	State     LightState `json:"state"`
	Source    string     `json:"source"`
	CreatedAt time.Time  `json:"createdAt"`
}

// HistoryRepository stores and retrieves state transitions.
type HistoryRepository interface {
	// RecordStateChange stores a snapshot of state.
	RecordStateChange(ctx context.Context, state LightState, source string) error

	// GetHistory returns entries newest first. limit defaults to 50 and is capped at 200.
	GetHistory(ctx context.Context, lightID string, limit int) ([]StateHistoryEntry, error)

	// PruneHistory deletes entries older than olderThan and returns how many were removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteHistoryRepository implements HistoryRepository on the light_state_history table.
type SQLiteHistoryRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLiteHistoryRepository creates a history repository over an open, migrated database.
func NewSQLiteHistoryRepository(db *database.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db, now: time.Now}
}

// RecordStateChange inserts one history row.
func (r *SQLiteHistoryRepository) RecordStateChange(ctx context.Context, state LightState, source string) error {
	if state.ID == "" {
		return fmt.Errorf("%w: light id is required", ErrInvalidArgument)
	}
	if source == "" {
		source = SourceMQTT
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO light_state_history (light_id, state, source, created_at) VALUES (?, ?, ?, ?)",
		state.ID,
		string(stateJSON),
		source,
		r.now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// GetHistory returns recent entries for a light, newest first.
func (r *SQLiteHistoryRepository) GetHistory(ctx context.Context, lightID string, limit int) ([]StateHistoryEntry, error) {
	if lightID == "" {
		return nil, fmt.Errorf("%w: light id is required", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, light_id, state, source, created_at
		 FROM light_state_history
		 WHERE light_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		lightID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry     StateHistoryEntry
			stateJSON string
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.LightID, &stateJSON, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &entry.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
		entry.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes entries older than now-olderThan.
func (r *SQLiteHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: olderThan must be positive", ErrInvalidArgument)
	}

	cutoff := r.now().UTC().Add(-olderThan).UnixNano()
	result, err := r.db.ExecContext(ctx, "DELETE FROM light_state_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning state history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
