package light

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/prysmalight/prysma-core/internal/infrastructure/database"
)

// Repository persists lights and their states.
//
// Create and Delete touch both tables atomically: a light is never visible
// without its state, and the light row is always deleted before the state
// row it references.
type Repository interface {
	// GetByID returns the light with its current state, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Light, error)

	// List returns every light ordered by pos.
	List(ctx context.Context) ([]Light, error)

	// ListIDs returns every light id ordered by pos.
	ListIDs(ctx context.Context) ([]string, error)

	// GetState returns the state of a light, or ErrNotFound.
	GetState(ctx context.Context, id string) (*LightState, error)

	// Create inserts the light and its state. A zero Pos is replaced by
	// max(pos)+1. Returns ErrConflict when the id or pos is taken.
	Create(ctx context.Context, l *Light) error

	// Update writes metadata and hardware fields. The state is not touched.
	// Returns ErrNotFound or ErrConflict.
	Update(ctx context.Context, l *Light) error

	// UpdateState overwrites the state row. Returns ErrNotFound.
	UpdateState(ctx context.Context, state LightState) error

	// Delete removes the light, then its state. Returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the Prysma SQLite store.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectLight = `
	SELECT l.id, l.name, l.pos, l.supported_effects, l.ip_address, l.mac_address,
		l.num_leds, l.udp_port, l.version, l.hardware, l.color_order, l.strip_type,
		l.created_at, l.updated_at,
		s.id, s.connected, s.is_on, s.brightness, s.color, s.effect, s.speed
	FROM lights l
	JOIN light_states s ON s.id = l.state_id`

// GetByID returns the light with its current state.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Light, error) {
	row := r.db.QueryRowContext(ctx, selectLight+` WHERE l.id = ?`, id)
	l, err := scanLight(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying light by id: %w", err)
	}
	return l, nil
}

// List returns every light ordered by pos.
func (r *SQLiteRepository) List(ctx context.Context) ([]Light, error) {
	rows, err := r.db.QueryContext(ctx, selectLight+` ORDER BY l.pos`)
	if err != nil {
		return nil, fmt.Errorf("querying lights: %w", err)
	}
	defer rows.Close()

	lights := make([]Light, 0)
	for rows.Next() {
		l, err := scanLight(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning light: %w", err)
		}
		lights = append(lights, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lights: %w", err)
	}
	return lights, nil
}

// ListIDs returns every light id ordered by pos.
func (r *SQLiteRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM lights ORDER BY pos`)
	if err != nil {
		return nil, fmt.Errorf("querying light ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning light id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating light ids: %w", err)
	}
	return ids, nil
}

// GetState returns the state of a light.
func (r *SQLiteRepository) GetState(ctx context.Context, id string) (*LightState, error) {
	var (
		s         LightState
		connected int
		on        int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, connected, is_on, brightness, color, effect, speed FROM light_states WHERE id = ?`,
		id,
	).Scan(&s.ID, &connected, &on, &s.Brightness, &s.Color, &s.Effect, &s.Speed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying light state: %w", err)
	}
	s.Connected = connected != 0
	s.On = on != 0
	return &s, nil
}

// Create inserts the state row, then the light row, in one transaction.
func (r *SQLiteRepository) Create(ctx context.Context, l *Light) error {
	effectsJSON, err := marshalEffects(l.SupportedEffects)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	l.State.ID = l.ID

	err = r.db.InTx(ctx, func(tx *sql.Tx) error {
		if l.Pos == 0 {
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(pos), 0) + 1 FROM lights`).Scan(&l.Pos); err != nil {
				return fmt.Errorf("allocating pos: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO light_states (id, connected, is_on, brightness, color, effect, speed, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.State.ID,
			boolToInt(l.State.Connected),
			boolToInt(l.State.On),
			l.State.Brightness,
			l.State.Color,
			l.State.Effect,
			l.State.Speed,
			now.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("inserting light state: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lights (
				id, name, pos, state_id, supported_effects, ip_address, mac_address,
				num_leds, udp_port, version, hardware, color_order, strip_type,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID,
			l.Name,
			l.Pos,
			l.State.ID,
			effectsJSON,
			nullableString(l.IPAddress),
			nullableString(l.MACAddress),
			nullableInt(l.NumLEDs),
			nullableInt(l.UDPPort),
			nullableString(l.Version),
			nullableString(l.Hardware),
			nullableString(l.ColorOrder),
			nullableString(l.StripType),
			l.CreatedAt.Format(time.RFC3339Nano),
			l.UpdatedAt.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("inserting light: %w", err)
		}
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// Update writes metadata and hardware fields.
func (r *SQLiteRepository) Update(ctx context.Context, l *Light) error {
	effectsJSON, err := marshalEffects(l.SupportedEffects)
	if err != nil {
		return err
	}

	l.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE lights SET
			name = ?, pos = ?, supported_effects = ?, ip_address = ?, mac_address = ?,
			num_leds = ?, udp_port = ?, version = ?, hardware = ?, color_order = ?,
			strip_type = ?, updated_at = ?
		WHERE id = ?`,
		l.Name,
		l.Pos,
		effectsJSON,
		nullableString(l.IPAddress),
		nullableString(l.MACAddress),
		nullableInt(l.NumLEDs),
		nullableInt(l.UDPPort),
		nullableString(l.Version),
		nullableString(l.Hardware),
		nullableString(l.ColorOrder),
		nullableString(l.StripType),
		l.UpdatedAt.Format(time.RFC3339Nano),
		l.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrConflict
		}
		return fmt.Errorf("updating light: %w", err)
	}
	return checkAffected(result)
}

// UpdateState overwrites the state row.
func (r *SQLiteRepository) UpdateState(ctx context.Context, state LightState) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE light_states SET
			connected = ?, is_on = ?, brightness = ?, color = ?, effect = ?, speed = ?, updated_at = ?
		WHERE id = ?`,
		boolToInt(state.Connected),
		boolToInt(state.On),
		state.Brightness,
		state.Color,
		state.Effect,
		state.Speed,
		time.Now().UTC().Format(time.RFC3339Nano),
		state.ID,
	)
	if err != nil {
		return fmt.Errorf("updating light state: %w", err)
	}
	return checkAffected(result)
}

// Delete removes the light row, then its state row and state history.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		var stateID string
		err := tx.QueryRowContext(ctx, `SELECT state_id FROM lights WHERE id = ?`, id).Scan(&stateID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("querying light: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM lights WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting light: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM light_states WHERE id = ?`, stateID); err != nil {
			return fmt.Errorf("deleting light state: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM light_state_history WHERE light_id = ?`, id); err != nil {
			return fmt.Errorf("deleting light state history: %w", err)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLight(s scanner) (*Light, error) {
	var (
		l                                  Light
		effects                            sql.NullString
		ip, mac, version, hw, order, strip sql.NullString
		numLEDs, udpPort                   sql.NullInt64
		createdAt, updatedAt               string
		connected, on                      int
	)

	err := s.Scan(
		&l.ID, &l.Name, &l.Pos, &effects, &ip, &mac,
		&numLEDs, &udpPort, &version, &hw, &order, &strip,
		&createdAt, &updatedAt,
		&l.State.ID, &connected, &on, &l.State.Brightness, &l.State.Color, &l.State.Effect, &l.State.Speed,
	)
	if err != nil {
		return nil, err
	}

	if effects.Valid && effects.String != "" {
		if err := json.Unmarshal([]byte(effects.String), &l.SupportedEffects); err != nil {
			return nil, fmt.Errorf("unmarshalling supported_effects: %w", err)
		}
	}
	l.IPAddress = ip.String
	l.MACAddress = mac.String
	l.Version = version.String
	l.Hardware = hw.String
	l.ColorOrder = order.String
	l.StripType = strip.String
	l.NumLEDs = int(numLEDs.Int64)
	l.UDPPort = int(udpPort.Int64)
	l.State.Connected = connected != 0
	l.State.On = on != 0

	if l.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if l.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &l, nil
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalEffects(effects []string) (sql.NullString, error) {
	if effects == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(effects)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshalling supported_effects: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError reports primary key and UNIQUE violations.
func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
