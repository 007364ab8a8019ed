package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elee1766/turnkit/src/memory"
	"github.com/georgysavva/scany/v2/sqlscan"
)

// MemoryBackend stores memory files in the memory_files table.
type MemoryBackend struct {
	db *sql.DB
}

var _ memory.Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns a memory backend over db.
func NewMemoryBackend(db *DB) *MemoryBackend {
	return &MemoryBackend{db: db.db}
}

const memoryFileColumns = `user_id, path, content, size_bytes, updated_at, accessed_at`

func (b *MemoryBackend) Get(ctx context.Context, userID, path string) (*memory.File, error) {
	var f memory.File
	query := `SELECT ` + memoryFileColumns + ` FROM memory_files WHERE user_id = ? AND path = ?`
	if err := sqlscan.Get(ctx, b.db, &f, query, userID, path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, memory.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (b *MemoryBackend) Put(ctx context.Context, f *memory.File) error {
	query := `INSERT INTO memory_files (` + memoryFileColumns + `) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, path) DO UPDATE SET
		content = excluded.content,
		size_bytes = excluded.size_bytes,
		updated_at = excluded.updated_at,
		accessed_at = excluded.accessed_at`
	_, err := b.db.ExecContext(ctx, query, f.UserID, f.Path, f.Content, f.SizeBytes, f.UpdatedAt, f.AccessedAt)
	return err
}

// ListUnder matches the prefix with substr rather than LIKE, which folds
// ASCII case in SQLite.
func (b *MemoryBackend) ListUnder(ctx context.Context, userID, dir string) ([]memory.FileInfo, error) {
	query := `SELECT path, size_bytes, updated_at FROM memory_files
	WHERE user_id = ? AND substr(path, 1, length(?)) = ? ORDER BY path`
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var files []memory.FileInfo
	if err := sqlscan.Select(ctx, b.db, &files, query, userID, prefix, prefix); err != nil {
		return nil, err
	}
	return files, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, userID string, paths ...string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, p := range paths {
		res, err := tx.ExecContext(ctx, `DELETE FROM memory_files WHERE user_id = ? AND path = ?`, userID, p)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return total, nil
}

// Move rewrites every path in one transaction.
func (b *MemoryBackend) Move(ctx context.Context, userID string, moves []memory.Move) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range moves {
		res, err := tx.ExecContext(ctx, `UPDATE memory_files SET path = ? WHERE user_id = ? AND path = ?`, m.To, userID, m.From)
		if err != nil {
			return fmt.Errorf("failed to move %s: %w", m.From, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", memory.ErrNotFound, m.From)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit move: %w", err)
	}
	return nil
}

func (b *MemoryBackend) TotalSize(ctx context.Context, userID, exclude string) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(size_bytes), 0) FROM memory_files WHERE user_id = ? AND path <> ?`
	if err := sqlscan.Get(ctx, b.db, &total, query, userID, exclude); err != nil {
		return 0, err
	}
	return total, nil
}

func (b *MemoryBackend) Touch(ctx context.Context, userID, path string, at time.Time) error {
	_, err := b.db.ExecContext(ctx, `UPDATE memory_files SET accessed_at = ? WHERE user_id = ? AND path = ?`, at, userID, path)
	return err
}
