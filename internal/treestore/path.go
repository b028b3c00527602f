package treestore

import (
	"fmt"
	"strings"
)

// Split breaks a path into its non-empty segments.
func Split(path string) []string {
	raw := strings.Split(path, "/")
	segs := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// Join builds a clean path from segments, which may themselves contain
// slashes.
func Join(parts ...string) string {
	var segs []string
	for _, p := range parts {
		segs = append(segs, Split(p)...)
	}
	return strings.Join(segs, "/")
}

// Clean normalizes redundant and leading/trailing slashes.
func Clean(path string) string {
	return Join(path)
}

// Overlaps reports whether a write at one path can change the subtree at
// the other, i.e. one is an ancestor of (or equal to) the other.
func Overlaps(a, b string) bool {
	as, bs := Split(a), Split(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// ValidateKey rejects segments the hosted stores refuse as keys.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidPath)
	}
	if strings.ContainsAny(key, "/.#$[]") {
		return fmt.Errorf("%w: key %q contains a reserved character", ErrInvalidPath, key)
	}
	return nil
}
