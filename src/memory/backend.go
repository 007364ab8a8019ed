package memory

import (
	"context"
	"time"
)

// File is one stored memory file.
type File struct {
	UserID     string    `db:"user_id"`
	Path       string    `db:"path"`
	Content    string    `db:"content"`
	SizeBytes  int64     `db:"size_bytes"`
	UpdatedAt  time.Time `db:"updated_at"`
	AccessedAt time.Time `db:"accessed_at"`
}

// FileInfo is a File without its content.
type FileInfo struct {
	Path      string    `db:"path"`
	SizeBytes int64     `db:"size_bytes"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Move is one path rewrite of a rename.
type Move struct {
	From string
	To   string
}

// Backend persists memory files for many users. Paths handed to a Backend
// are already validated absolute paths. Implementations return ErrNotFound
// from Get when the file does not exist.
type Backend interface {
	Get(ctx context.Context, userID, path string) (*File, error)
	// Put inserts or replaces the file at f.Path.
	Put(ctx context.Context, f *File) error
	// ListUnder returns the files strictly beneath dir, sorted by path.
	ListUnder(ctx context.Context, userID, dir string) ([]FileInfo, error)
	// Delete removes the given paths and reports how many existed.
	Delete(ctx context.Context, userID string, paths ...string) (int, error)
	// Move applies all moves or none.
	Move(ctx context.Context, userID string, moves []Move) error
	// TotalSize sums size_bytes over the user's files, skipping exclude.
	TotalSize(ctx context.Context, userID, exclude string) (int64, error)
	Touch(ctx context.Context, userID, path string, at time.Time) error
}
