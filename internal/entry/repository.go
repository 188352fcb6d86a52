package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines entry persistence.
type Repository interface {
	// Get returns ErrEntryNotFound if the entry does not exist.
	Get(ctx context.Context, id string) (Entry, error)

	// GetByUniqueID returns ErrEntryNotFound if no entry has the unique ID.
	GetByUniqueID(ctx context.Context, uniqueID string) (Entry, error)

	// List returns every entry ordered by title.
	List(ctx context.Context) ([]Entry, error)

	// Create returns ErrEntryExists on a duplicate ID or unique ID.
	Create(ctx context.Context, e *Entry) error

	// UpdateOptions replaces the options of an existing entry.
	UpdateOptions(ctx context.Context, id string, opts Options) (Entry, error)

	// Delete returns ErrEntryNotFound if the entry does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the config_entries table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT id, unique_id, title, port, tv_id, options, created_at, updated_at FROM config_entries`

// Get retrieves an entry by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (Entry, error) {
	return r.queryOne(ctx, selectColumns+` WHERE id = ?`, id)
}

// GetByUniqueID retrieves an entry by its lg_tv_{id} key.
func (r *SQLiteRepository) GetByUniqueID(ctx context.Context, uniqueID string) (Entry, error) {
	return r.queryOne(ctx, selectColumns+` WHERE unique_id = ?`, uniqueID)
}

// List retrieves all entries.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// Create inserts e, filling timestamps.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	opts, err := json.Marshal(e.Options)
	if err != nil {
		return fmt.Errorf("marshalling options: %w", err)
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO config_entries (id, unique_id, title, port, tv_id, options, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UniqueID, e.Title, e.Port, e.TVID, string(opts),
		e.CreatedAt.Format(time.RFC3339), e.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// UpdateOptions replaces the options and returns the updated entry.
func (r *SQLiteRepository) UpdateOptions(ctx context.Context, id string, opts Options) (Entry, error) {
	raw, err := json.Marshal(opts)
	if err != nil {
		return Entry{}, fmt.Errorf("marshalling options: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE config_entries SET options = ?, updated_at = ? WHERE id = ?`,
		string(raw), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("updating entry options: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return Entry{}, fmt.Errorf("checking rows affected: %w", err)
	} else if n == 0 {
		return Entry{}, ErrEntryNotFound
	}

	return r.Get(ctx, id)
}

// Delete removes an entry.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM config_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *SQLiteRepository) queryOne(ctx context.Context, query string, arg any) (Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return e, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e                    Entry
		opts                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &e.UniqueID, &e.Title, &e.Port, &e.TVID, &opts, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning entry: %w", err)
	}
	if err := json.Unmarshal([]byte(opts), &e.Options); err != nil {
		return Entry{}, fmt.Errorf("parsing options of %s: %w", e.ID, err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Written by Create
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Written by Create
	return e, nil
}

// isUniqueConstraintError checks for a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY")
}
