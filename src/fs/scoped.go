package fs

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var ErrInvalidScope = errors.New("invalid scope name")

// ScopedFs hands out filesystems confined to one subdirectory of a base
// filesystem, one subdirectory per scope (user).
type ScopedFs struct {
	base afero.Fs
	root string
}

// NewScopedFs creates a ScopedFs whose scopes live under root on base.
func NewScopedFs(base afero.Fs, root string) *ScopedFs {
	if root == "" {
		root = "/"
	}
	return &ScopedFs{base: base, root: filepath.Clean(root)}
}

// Dir returns the directory backing scope on the base filesystem.
func (s *ScopedFs) Dir(scope string) (string, error) {
	if err := validateScope(scope); err != nil {
		return "", err
	}
	return filepath.Join(s.root, scope), nil
}

// For returns a filesystem rooted at the scope directory. Paths opened on it
// cannot escape that directory.
func (s *ScopedFs) For(scope string) (afero.Fs, error) {
	dir, err := s.Dir(scope)
	if err != nil {
		return nil, err
	}
	return afero.NewBasePathFs(s.base, dir), nil
}

// Root returns the directory holding all scopes.
func (s *ScopedFs) Root() string {
	return s.root
}

func validateScope(scope string) error {
	switch {
	case scope == "":
		return fmt.Errorf("%w: empty", ErrInvalidScope)
	case scope == "." || scope == "..":
		return fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	case strings.ContainsAny(scope, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a separator", ErrInvalidScope, scope)
	}
	return nil
}
