package machine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for machine persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Machine, error)
	List(ctx context.Context) ([]Machine, error)
	Create(ctx context.Context, m *Machine) error
	Update(ctx context.Context, m *Machine) error
	UpdateCounters(ctx context.Context, id string, consumed, emitted int64) error
	Delete(ctx context.Context, id string) error
}

// machineColumns is the SELECT column list for machine queries.
const machineColumns = `id, enabled, spec, orig_spec, transcoder_version,
			date_created, consumed_count, emitted_count`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a machine by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Machine, error) {
	query := `SELECT ` + machineColumns + ` FROM machines WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	m, err := scanMachineRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMachineNotFound
		}
		return nil, fmt.Errorf("querying machine by id: %w", err)
	}
	return m, nil
}

// List retrieves all machines ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Machine, error) {
	query := `SELECT ` + machineColumns + ` FROM machines ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying machines: %w", err)
	}
	defer rows.Close()

	var machines []Machine
	for rows.Next() {
		m, scanErr := scanMachineRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning machine: %w", scanErr)
		}
		machines = append(machines, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating machines: %w", err)
	}
	return machines, nil
}

// Create inserts a new machine record.
func (r *SQLiteRepository) Create(ctx context.Context, m *Machine) error {
	if m.DateCreated.IsZero() {
		m.DateCreated = time.Now().UTC()
	}

	query := `
		INSERT INTO machines (
			id, enabled, spec, orig_spec, transcoder_version,
			date_created, consumed_count, emitted_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		boolToInt(m.Enabled),
		m.Specification,
		nullableString(m.OriginalSpecification),
		m.TranscoderVersion,
		m.DateCreated.Unix(),
		m.MessagesConsumed,
		m.MessagesEmitted,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrMachineExists
		}
		return fmt.Errorf("inserting machine: %w", err)
	}
	return nil
}

// Update modifies an existing machine record.
func (r *SQLiteRepository) Update(ctx context.Context, m *Machine) error {
	query := `
		UPDATE machines SET
			enabled = ?, spec = ?, orig_spec = ?, transcoder_version = ?,
			consumed_count = ?, emitted_count = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		boolToInt(m.Enabled),
		m.Specification,
		nullableString(m.OriginalSpecification),
		m.TranscoderVersion,
		m.MessagesConsumed,
		m.MessagesEmitted,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("updating machine: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMachineNotFound
	}
	return nil
}

// UpdateCounters persists the bookkeeping counters for a machine.
func (r *SQLiteRepository) UpdateCounters(ctx context.Context, id string, consumed, emitted int64) error {
	query := `UPDATE machines SET consumed_count = ?, emitted_count = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, consumed, emitted, id)
	if err != nil {
		return fmt.Errorf("updating counters: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMachineNotFound
	}
	return nil
}

// Delete removes a machine by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM machines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting machine: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMachineNotFound
	}
	return nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMachineRow(scanner rowScanner) (*Machine, error) {
	var m Machine
	var origSpec sql.NullString
	var enabled int
	var createdEpoch int64

	err := scanner.Scan(
		&m.ID,
		&enabled,
		&m.Specification,
		&origSpec,
		&m.TranscoderVersion,
		&createdEpoch,
		&m.MessagesConsumed,
		&m.MessagesEmitted,
	)
	if err != nil {
		return nil, err
	}

	m.Enabled = enabled != 0
	if origSpec.Valid {
		m.OriginalSpecification = &origSpec.String
	}

	// Stored as epoch seconds
	m.DateCreated = time.Unix(createdEpoch, 0).UTC()

	return &m, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
