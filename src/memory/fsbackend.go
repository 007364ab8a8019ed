package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"time"

	"github.com/spf13/afero"

	turnfs "github.com/elee1766/turnkit/src/fs"
)

// FSBackend stores each user's memories as files in a directory of its own.
// It suits single-process use; Move is not atomic across a crash.
type FSBackend struct {
	scopes *turnfs.ScopedFs
}

var _ Backend = (*FSBackend)(nil)

// NewFSBackend stores files under root on base.
func NewFSBackend(base afero.Fs, root string) *FSBackend {
	return &FSBackend{scopes: turnfs.NewScopedFs(base, root)}
}

func (b *FSBackend) userFs(ctx context.Context, userID string) (afero.Fs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.scopes.For(userID)
}

func (b *FSBackend) Get(ctx context.Context, userID, p string) (*File, error) {
	fsys, err := b.userFs(ctx, userID)
	if err != nil {
		return nil, err
	}
	info, err := fsys.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}
	data, err := afero.ReadFile(fsys, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return &File{
		UserID:     userID,
		Path:       p,
		Content:    string(data),
		SizeBytes:  info.Size(),
		UpdatedAt:  info.ModTime(),
		AccessedAt: info.ModTime(),
	}, nil
}

func (b *FSBackend) Put(ctx context.Context, f *File) error {
	fsys, err := b.userFs(ctx, f.UserID)
	if err != nil {
		return err
	}
	if info, err := fsys.Stat(f.Path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidCommand, f.Path)
	}
	if err := fsys.MkdirAll(path.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
	}
	if err := afero.WriteFile(fsys, f.Path, []byte(f.Content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	if !f.UpdatedAt.IsZero() {
		_ = fsys.Chtimes(f.Path, f.AccessedAt, f.UpdatedAt)
	}
	return nil
}

func (b *FSBackend) ListUnder(ctx context.Context, userID, dir string) ([]FileInfo, error) {
	fsys, err := b.userFs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if info, err := fsys.Stat(dir); err != nil || !info.IsDir() {
		return nil, nil
	}

	var out []FileInfo
	err = afero.Walk(fsys, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		out = append(out, FileInfo{Path: path.Clean("/" + p), SizeBytes: info.Size(), UpdatedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (b *FSBackend) Delete(ctx context.Context, userID string, paths ...string) (int, error) {
	fsys, err := b.userFs(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range paths {
		info, err := fsys.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if err := fsys.Remove(p); err != nil {
			return n, fmt.Errorf("failed to remove %s: %w", p, err)
		}
		n++
		pruneEmptyDirs(fsys, path.Dir(p))
	}
	return n, nil
}

func (b *FSBackend) Move(ctx context.Context, userID string, moves []Move) error {
	fsys, err := b.userFs(ctx, userID)
	if err != nil {
		return err
	}
	for i, m := range moves {
		if err := fsys.MkdirAll(path.Dir(m.To), 0o755); err == nil {
			err = fsys.Rename(m.From, m.To)
		}
		if err != nil {
			// Put back what was already moved.
			for j := i - 1; j >= 0; j-- {
				_ = fsys.Rename(moves[j].To, moves[j].From)
			}
			return fmt.Errorf("failed to move %s: %w", m.From, err)
		}
	}
	for _, m := range moves {
		pruneEmptyDirs(fsys, path.Dir(m.From))
	}
	return nil
}

func (b *FSBackend) TotalSize(ctx context.Context, userID, exclude string) (int64, error) {
	files, err := b.ListUnder(ctx, userID, Root)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		if f.Path != exclude {
			total += f.SizeBytes
		}
	}
	return total, nil
}

func (b *FSBackend) Touch(ctx context.Context, userID, p string, at time.Time) error {
	fsys, err := b.userFs(ctx, userID)
	if err != nil {
		return err
	}
	info, err := fsys.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return fsys.Chtimes(p, at, info.ModTime())
}

// pruneEmptyDirs removes dir and its parents while they are empty, stopping
// at Root.
func pruneEmptyDirs(fsys afero.Fs, dir string) {
	for dir != Root && dir != "/" && dir != "." {
		entries, err := afero.ReadDir(fsys, dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := fsys.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return
		}
		dir = path.Dir(dir)
	}
}
