// Package memory implements the per-user memory file store exposed to the
// model through the memory tool.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/elee1766/turnkit/src/metrics"
)

// Limits bounds what a user may store. Zero disables a limit.
type Limits struct {
	MaxFileBytes int64
	MaxUserBytes int64
	MaxViewBytes int
}

// DefaultLimits are used when the config leaves limits unset.
var DefaultLimits = Limits{
	MaxFileBytes: 100 << 10,
	MaxUserBytes: 10 << 20,
	MaxViewBytes: 16 << 10,
}

// ViewRange selects lines [Start, End) of a file, 1-indexed. End <= 0 reads
// to the end of the file.
type ViewRange struct {
	Start int
	End   int
}

// Store applies memory commands against a Backend.
type Store struct {
	backend Backend
	limits  Limits
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	locks sync.Map // user id -> *sync.Mutex
}

type StoreOption func(*Store)

func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store over backend.
func NewStore(backend Backend, limits Limits, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		limits:  limits,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "memory")
	return s
}

// lock serializes mutations for one user within this process.
func (s *Store) lock(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) record(command string, err error) {
	s.metrics.RecordMemoryOp(command, outcome(err))
	if err != nil {
		s.logger.Debug("memory command failed", "command", command, "error", err)
	}
}

// View lists a directory or returns numbered file lines.
func (s *Store) View(ctx context.Context, userID, rawPath string, rng *ViewRange) (out string, err error) {
	defer func() { s.record("view", err) }()

	p, err := ParsePath(rawPath)
	if err != nil {
		return "", err
	}
	if p.Listing {
		return s.list(ctx, userID, p)
	}

	f, err := s.backend.Get(ctx, userID, p.Name)
	if errors.Is(err, ErrNotFound) {
		// A path without a trailing slash may still name a directory.
		if listing, lerr := s.list(ctx, userID, p); lerr == nil {
			return listing, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return "", err
	}

	if err := s.backend.Touch(ctx, userID, p.Name, s.now()); err != nil {
		s.logger.Warn("failed to update access time", "path", p.Name, "error", err)
	}

	body, err := numberLines(f.Content, rng)
	if err != nil {
		return "", err
	}
	return s.truncate(body), nil
}

func (s *Store) list(ctx context.Context, userID string, dir Path) (string, error) {
	files, err := s.backend.ListUnder(ctx, userID, dir.Name)
	if err != nil {
		return "", err
	}
	if len(files) == 0 && !dir.IsRoot() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, dir)
	}

	seen := make(map[string]struct{})
	var children []string
	for _, f := range files {
		rel := strings.TrimPrefix(f.Path, dir.Name+"/")
		name := rel
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			name = rel[:i+1]
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		children = append(children, name)
	}
	sort.Strings(children)

	var b strings.Builder
	fmt.Fprintf(&b, "Directory: %s", dir.Name)
	if len(children) == 0 {
		b.WriteString("\n(empty)")
	}
	for _, c := range children {
		b.WriteString("\n- ")
		b.WriteString(c)
	}
	return s.truncate(b.String()), nil
}

func numberLines(content string, rng *ViewRange) (string, error) {
	lines := splitLines(content)
	start, end := 1, len(lines)+1
	if rng != nil {
		if rng.Start > 1 {
			start = rng.Start
		}
		if rng.End > 0 && rng.End < end {
			end = rng.End
		}
		if start > len(lines) && len(lines) > 0 {
			return "", fmt.Errorf("%w: view_range start %d is beyond the %d lines of the file", ErrInvalidCommand, rng.Start, len(lines))
		}
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d\t%s", i, lines[i-1])
	}
	return b.String(), nil
}

func (s *Store) truncate(body string) string {
	limit := s.limits.MaxViewBytes
	if limit <= 0 || len(body) <= limit {
		return body
	}
	cut := limit
	for cut > 0 && !isRuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + fmt.Sprintf("\n... (output truncated, %d of %d bytes shown)", cut, len(body))
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// Create writes text to path, replacing any existing file.
func (s *Store) Create(ctx context.Context, userID, rawPath, text string) (out string, err error) {
	defer func() { s.record("create", err) }()

	p, err := ParsePath(rawPath)
	if err != nil {
		return "", err
	}
	if p.IsRoot() || p.Listing {
		return "", fmt.Errorf("%w: cannot create a file at directory path %s", ErrInvalidCommand, p)
	}
	defer s.lock(userID)()

	if under, err := s.backend.ListUnder(ctx, userID, p.Name); err != nil {
		return "", err
	} else if len(under) > 0 {
		return "", fmt.Errorf("%w: %s is a directory", ErrInvalidCommand, p)
	}
	if err := s.checkParents(ctx, userID, p.Name); err != nil {
		return "", err
	}
	if err := s.checkQuota(ctx, userID, p.Name, int64(len(text))); err != nil {
		return "", err
	}
	now := s.now()
	if err := s.backend.Put(ctx, &File{
		UserID:     userID,
		Path:       p.Name,
		Content:    text,
		SizeBytes:  int64(len(text)),
		UpdatedAt:  now,
		AccessedAt: now,
	}); err != nil {
		return "", err
	}
	s.logger.Info("memory file written", "path", p.Name, "bytes", len(text))
	return fmt.Sprintf("File created successfully at %s", p), nil
}

// StrReplace replaces the first occurrence of oldStr in path.
func (s *Store) StrReplace(ctx context.Context, userID, rawPath, oldStr, newStr string) (out string, err error) {
	defer func() { s.record("str_replace", err) }()

	p, err := ParsePath(rawPath)
	if err != nil {
		return "", err
	}
	if oldStr == "" {
		return "", fmt.Errorf("%w: old_str must not be empty", ErrInvalidCommand)
	}
	defer s.lock(userID)()

	f, err := s.getFile(ctx, userID, p)
	if err != nil {
		return "", err
	}
	if !strings.Contains(f.Content, oldStr) {
		return "", fmt.Errorf("%w: old_str not found in %s", ErrNotFound, p)
	}
	updated := strings.Replace(f.Content, oldStr, newStr, 1)
	return s.rewrite(ctx, f, updated, "The memory file has been edited.")
}

// Insert splices text before the given 1-indexed line. The line is clamped
// to [1, lineCount+1].
func (s *Store) Insert(ctx context.Context, userID, rawPath string, line int, text string) (out string, err error) {
	defer func() { s.record("insert", err) }()

	p, err := ParsePath(rawPath)
	if err != nil {
		return "", err
	}
	defer s.lock(userID)()

	f, err := s.getFile(ctx, userID, p)
	if err != nil {
		return "", err
	}

	lines := splitLines(f.Content)
	line = max(1, min(line, len(lines)+1))
	inserted := splitLines(text)
	if len(inserted) == 0 {
		inserted = []string{""}
	}
	merged := make([]string, 0, len(lines)+len(inserted))
	merged = append(merged, lines[:line-1]...)
	merged = append(merged, inserted...)
	merged = append(merged, lines[line-1:]...)

	updated := strings.Join(merged, "\n")
	if strings.HasSuffix(f.Content, "\n") || f.Content == "" && strings.HasSuffix(text, "\n") {
		updated += "\n"
	}
	return s.rewrite(ctx, f, updated, fmt.Sprintf("Text inserted at line %d.", line))
}

// Delete removes path and every file beneath it.
func (s *Store) Delete(ctx context.Context, userID, rawPath string) (out string, err error) {
	defer func() { s.record("delete", err) }()

	p, err := ParsePath(rawPath)
	if err != nil {
		return "", err
	}
	if p.IsRoot() {
		return "", ErrRootForbidden
	}
	defer s.lock(userID)()

	under, err := s.backend.ListUnder(ctx, userID, p.Name)
	if err != nil {
		return "", err
	}
	paths := make([]string, 0, len(under)+1)
	paths = append(paths, p.Name)
	for _, f := range under {
		paths = append(paths, f.Path)
	}
	n, err := s.backend.Delete(ctx, userID, paths...)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	s.logger.Info("memory deleted", "path", p.Name, "files", n)
	return fmt.Sprintf("Deleted %s (%d file(s)).", p, n), nil
}

// Rename moves a file, or every file under a directory, to a new path.
func (s *Store) Rename(ctx context.Context, userID, rawOld, rawNew string) (out string, err error) {
	defer func() { s.record("rename", err) }()

	from, err := ParsePath(rawOld)
	if err != nil {
		return "", err
	}
	to, err := ParsePath(rawNew)
	if err != nil {
		return "", err
	}
	if from.IsRoot() || to.IsRoot() {
		return "", ErrRootForbidden
	}
	if from.Contains(to) {
		return "", fmt.Errorf("%w: cannot move %s into itself", ErrInvalidCommand, from)
	}
	defer s.lock(userID)()

	var moves []Move
	if _, err := s.backend.Get(ctx, userID, from.Name); err == nil {
		moves = append(moves, Move{From: from.Name, To: to.Name})
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	under, err := s.backend.ListUnder(ctx, userID, from.Name)
	if err != nil {
		return "", err
	}
	for _, f := range under {
		moves = append(moves, Move{From: f.Path, To: to.Name + strings.TrimPrefix(f.Path, from.Name)})
	}
	if len(moves) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, from)
	}

	if _, err := s.backend.Get(ctx, userID, to.Name); err == nil {
		return "", fmt.Errorf("%w: %s", ErrDestinationExists, to)
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if existing, err := s.backend.ListUnder(ctx, userID, to.Name); err != nil {
		return "", err
	} else if len(existing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrDestinationExists, to)
	}
	if err := s.checkParents(ctx, userID, to.Name); err != nil {
		return "", err
	}

	if err := s.backend.Move(ctx, userID, moves); err != nil {
		return "", err
	}
	s.logger.Info("memory renamed", "from", from.Name, "to", to.Name, "files", len(moves))
	return fmt.Sprintf("Renamed %s to %s.", from, to), nil
}

// checkParents rejects name when one of its directories is a file.
func (s *Store) checkParents(ctx context.Context, userID, name string) error {
	var dirs []string
	for dir := path.Dir(name); dir != Root && dir != "/"; dir = path.Dir(dir) {
		dirs = append(dirs, dir)
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		_, err := s.backend.Get(ctx, userID, dirs[i])
		if err == nil {
			return fmt.Errorf("%w: %s is a file", ErrInvalidCommand, dirs[i])
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *Store) getFile(ctx context.Context, userID string, p Path) (*File, error) {
	f, err := s.backend.Get(ctx, userID, p.Name)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return f, err
}

func (s *Store) rewrite(ctx context.Context, f *File, updated, summary string) (string, error) {
	size := int64(len(updated))
	if err := s.checkQuota(ctx, f.UserID, f.Path, size); err != nil {
		return "", err
	}
	before := f.Content
	f.Content = updated
	f.SizeBytes = size
	f.UpdatedAt = s.now()
	if err := s.backend.Put(ctx, f); err != nil {
		return "", err
	}
	diff := udiff.Unified("a"+f.Path, "b"+f.Path, before, updated)
	if diff == "" {
		return summary, nil
	}
	return summary + "\n" + diff, nil
}

func (s *Store) checkQuota(ctx context.Context, userID, path string, size int64) error {
	if s.limits.MaxFileBytes > 0 && size > s.limits.MaxFileBytes {
		return fmt.Errorf("%w: file is %d bytes, limit is %d", ErrQuotaExceeded, size, s.limits.MaxFileBytes)
	}
	if s.limits.MaxUserBytes <= 0 {
		return nil
	}
	total, err := s.backend.TotalSize(ctx, userID, path)
	if err != nil {
		return err
	}
	if total+size > s.limits.MaxUserBytes {
		return fmt.Errorf("%w: %d bytes stored, %d more would exceed %d", ErrQuotaExceeded, total, size, s.limits.MaxUserBytes)
	}
	return nil
}

// splitLines splits content into lines, ignoring one trailing newline.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}
