package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/repository"
)

// ActivityRepository implements repository.ActivityRepository for SQLite
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts ledger entries in a single transaction. A sequence number
// that is already stored fails the whole batch with repository.ErrConflict.
func (r *ActivityRepository) Append(ctx context.Context, entries []activity.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_events (
			seq, type, project_id, batch_id, amount, serial_number, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		createdAt := entry.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			int64(entry.Seq),
			string(entry.Type),
			int64(entry.ProjectID),
			int64(entry.BatchID),
			strconv.FormatUint(entry.Amount, 10),
			entry.SerialNumber,
			createdAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("seq %d: %w", entry.Seq, repository.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to append ledger entry %d: %w", entry.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// List returns ledger entries matching the given filters
func (r *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	query := `
		SELECT seq, type, project_id, batch_id, amount, serial_number, created_at
		FROM ledger_events
	`

	args := []any{}
	conditions := []string{}

	if opts.ProjectID != 0 {
		conditions = append(conditions, "project_id = ?")
		args = append(args, int64(opts.ProjectID))
	}
	if opts.BatchID != 0 {
		conditions = append(conditions, "batch_id = ?")
		args = append(args, int64(opts.BatchID))
	}
	if opts.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, string(*opts.Type))
	}
	if opts.AfterSeq != 0 {
		conditions = append(conditions, "seq > ?")
		args = append(args, int64(opts.AfterSeq))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if opts.Ascending {
		query += " ORDER BY seq ASC"
	} else {
		query += " ORDER BY seq DESC"
	}

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var entries []activity.Entry
	for rows.Next() {
		var (
			entry                   activity.Entry
			seq, projectID, batchID int64
			amount                  string
		)
		if err := rows.Scan(
			&seq,
			&entry.Type,
			&projectID,
			&batchID,
			&amount,
			&entry.SerialNumber,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entry.Seq = uint64(seq)
		entry.ProjectID = uint64(projectID)
		entry.BatchID = uint64(batchID)
		entry.Amount, err = strconv.ParseUint(amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount of seq %d: %w", seq, err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}

	return entries, nil
}

// LastSeq returns the highest stored sequence number, zero for an empty ledger
func (r *ActivityRepository) LastSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM ledger_events`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !seq.Valid) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read last seq: %w", err)
	}
	return uint64(seq.Int64), nil
}
