package memory

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Root is the only directory memory paths may live under.
const Root = "/memories"

// Path is a validated memory path.
type Path struct {
	// Name is the normalized absolute path without a trailing slash.
	Name string
	// Listing is set when the caller asked for a directory listing.
	Listing bool
}

// IsRoot reports whether p names the memory root.
func (p Path) IsRoot() bool { return p.Name == Root }

// Contains reports whether other is p itself or lies beneath it.
func (p Path) Contains(other Path) bool {
	return other.Name == p.Name || strings.HasPrefix(other.Name, p.Name+"/")
}

func (p Path) String() string { return p.Name }

// ParsePath validates and normalizes a caller-supplied path. Relative paths
// are placed under Root.
func ParsePath(raw string) (Path, error) {
	if strings.ContainsRune(raw, 0) {
		return Path{}, fmt.Errorf("%w: path contains a NUL byte", ErrPathTraversal)
	}
	if hasParentRef(raw) {
		return Path{}, fmt.Errorf("%w: %q", ErrPathTraversal, raw)
	}

	p := strings.ReplaceAll(raw, `\`, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	listing := p == "" || strings.HasSuffix(p, "/")

	if !strings.HasPrefix(p, "/") {
		p = Root + "/" + p
	}
	p = path.Clean(p)
	if p != Root && !strings.HasPrefix(p, Root+"/") {
		return Path{}, fmt.Errorf("%w: %q is outside %s", ErrPathTraversal, raw, Root)
	}
	return Path{Name: p, Listing: listing || p == Root}, nil
}

// MustParsePath is ParsePath for constant paths.
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// hasParentRef looks for a ".." segment in raw and in its single and double
// percent-decoded forms.
func hasParentRef(raw string) bool {
	candidates := []string{raw}
	cur := raw
	for range 2 {
		dec, err := url.PathUnescape(cur)
		if err != nil {
			dec = decodeDots(cur)
		}
		if dec == cur {
			break
		}
		candidates = append(candidates, dec)
		cur = dec
	}
	for _, c := range candidates {
		c = strings.ReplaceAll(c, `\`, "/")
		for _, seg := range strings.Split(c, "/") {
			if seg == ".." {
				return true
			}
		}
	}
	return false
}

// decodeDots handles strings url.PathUnescape rejects because of unrelated
// stray '%' characters.
func decodeDots(s string) string {
	r := strings.NewReplacer("%2e", ".", "%2E", ".", "%2f", "/", "%2F", "/", "%5c", `\`, "%5C", `\`, "%25", "%")
	return r.Replace(s)
}
