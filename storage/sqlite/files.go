package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
)

// fileRepository implements storage.FileRepository.
type fileRepository struct {
	store *Store
}

var _ storage.FileRepository = (*fileRepository)(nil)

const fileColumns = `id, filename, storage_path, content_hash, size_bytes, category_id,
	status, preprocessing_method, chunk_count, vectorized,
	uploaded_at, preprocessing_started_at, preprocessed_at, vectorizing_started_at, completed_at,
	error_message, error_type`

// Create inserts a new file record.
func (r *fileRepository) Create(ctx context.Context, record *core.FileRecord) error {
	if err := core.ValidateFileRecord(record); err != nil {
		return err
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE id = ?", record.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking for existing file: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: file %s", storage.ErrDuplicateID, record.ID)
	}

	if record.UploadedAt.IsZero() {
		record.UploadedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (id, filename, storage_path, content_hash, size_bytes, category_id,
			status, preprocessing_method, chunk_count, vectorized, uploaded_at,
			error_message, error_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Filename, record.StoragePath, record.ContentHash, record.SizeBytes,
		nullString(record.CategoryID), string(record.Status), record.PreprocessingMethod,
		record.ChunkCount, boolToInt(record.Vectorized), record.UploadedAt,
		record.ErrorMessage, record.ErrorType)
	if err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}

	return tx.Commit()
}

// Get retrieves a file record by ID.
func (r *fileRepository) Get(ctx context.Context, id string) (*core.FileRecord, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id = ?", id)

	record, err := scanFileRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: file %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}
	return record, nil
}

// UpdateStatus transitions a file to a new status inside one
// transaction: the current status is read, the transition validated
// against the core lifecycle table, and the phase timestamp stamped.
func (r *fileRepository) UpdateStatus(ctx context.Context, id string, newStatus core.FileStatus, failure *storage.FailureInfo) error {
	if !newStatus.Valid() {
		return fmt.Errorf("%w: unknown status %q", storage.ErrInvalidTransition, newStatus)
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rawStatus string
	err = tx.QueryRowContext(ctx, "SELECT status FROM files WHERE id = ?", id).Scan(&rawStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: file %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("reading current status: %w", err)
	}

	current, err := core.ParseFileStatus(rawStatus)
	if err != nil {
		return err
	}

	if !core.CanTransition(current, newStatus) {
		return fmt.Errorf("%w: %s -> %s for file %s", storage.ErrInvalidTransition, current, newStatus, id)
	}

	now := time.Now().UTC()
	query := "UPDATE files SET status = ?"
	args := []any{string(newStatus)}

	switch newStatus {
	case core.StatusPreprocessing:
		query += ", preprocessing_started_at = ?, error_message = '', error_type = ''"
		args = append(args, now)
	case core.StatusPreprocessed:
		query += ", preprocessed_at = ?"
		args = append(args, now)
	case core.StatusVectorizing:
		query += ", vectorizing_started_at = ?"
		args = append(args, now)
	case core.StatusCompleted:
		query += ", completed_at = ?, error_message = '', error_type = ''"
		args = append(args, now)
	case core.StatusFailed:
		message, errType := "", ""
		if failure != nil {
			message, errType = failure.Message, failure.Type
		}
		query += ", error_message = ?, error_type = ?, vectorized = 0"
		args = append(args, message, errType)
	case core.StatusUploaded:
		// Reset for reprocessing: drop phase timestamps, error state
		// and the vectorized flag.
		query += `, preprocessing_started_at = NULL, preprocessed_at = NULL,
			vectorizing_started_at = NULL, completed_at = NULL,
			error_message = '', error_type = '', vectorized = 0, chunk_count = 0`
	}

	query += " WHERE id = ?"
	args = append(args, id)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	return tx.Commit()
}

// SetPreprocessingMethod records which extractor produced the text.
func (r *fileRepository) SetPreprocessingMethod(ctx context.Context, id string, method string) error {
	result, err := r.store.db.ExecContext(ctx,
		"UPDATE files SET preprocessing_method = ? WHERE id = ?", method, id)
	if err != nil {
		return fmt.Errorf("setting preprocessing method: %w", err)
	}
	return requireRow(result, id)
}

// SetVectorizationResult records the outcome of a vectorization run.
func (r *fileRepository) SetVectorizationResult(ctx context.Context, id string, vectorized bool, chunkCount int, errorMessage string) error {
	result, err := r.store.db.ExecContext(ctx, `
		UPDATE files SET vectorized = ?, chunk_count = ?, error_message = ?
		WHERE id = ?
	`, boolToInt(vectorized), chunkCount, errorMessage, id)
	if err != nil {
		return fmt.Errorf("setting vectorization result: %w", err)
	}
	return requireRow(result, id)
}

// List returns records ordered by upload time, oldest first.
func (r *fileRepository) List(ctx context.Context, opts storage.ListOptions) ([]*core.FileRecord, error) {
	query := "SELECT " + fileColumns + " FROM files WHERE 1=1"
	var args []any

	if opts.CategoryID != nil {
		query += " AND category_id = ?"
		args = append(args, *opts.CategoryID)
	}
	if !opts.IncludeDeleted {
		query += " AND status != ?"
		args = append(args, string(core.StatusDeleted))
	}
	query += " ORDER BY uploaded_at, id"

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var records []*core.FileRecord
	for rows.Next() {
		record, err := scanFileRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close is a no-op; the connection is owned by the parent Store.
func (r *fileRepository) Close() error {
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFileRecord(row scanner) (*core.FileRecord, error) {
	var (
		record     core.FileRecord
		rawStatus  string
		categoryID sql.NullString
		vectorized int
		prepStart  sql.NullTime
		prepDone   sql.NullTime
		vecStart   sql.NullTime
		completed  sql.NullTime
	)

	err := row.Scan(&record.ID, &record.Filename, &record.StoragePath, &record.ContentHash,
		&record.SizeBytes, &categoryID, &rawStatus, &record.PreprocessingMethod,
		&record.ChunkCount, &vectorized, &record.UploadedAt,
		&prepStart, &prepDone, &vecStart, &completed,
		&record.ErrorMessage, &record.ErrorType)
	if err != nil {
		return nil, err
	}

	record.Status, err = core.ParseFileStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	record.Vectorized = vectorized != 0
	if categoryID.Valid {
		record.CategoryID = &categoryID.String
	}
	record.PreprocessingStartedAt = nullableTime(prepStart)
	record.PreprocessedAt = nullableTime(prepDone)
	record.VectorizingStartedAt = nullableTime(vecStart)
	record.CompletedAt = nullableTime(completed)

	return &record, nil
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: file %s", storage.ErrNotFound, id)
	}
	return nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
