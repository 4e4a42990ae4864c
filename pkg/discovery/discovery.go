// Package discovery finds sidecar files under a scan root. Providers only
// list candidate paths; turning them into external ids and dropping
// duplicates happens in Candidates so every provider is filtered the same way.
package discovery

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultMaxDepth is how many directory levels below the root are searched.
const DefaultMaxDepth = 4

// SidecarGlob matches sidecar file names. Names that match but don't carry a
// numeric id are dropped later by Candidates.
const SidecarGlob = "*-meta.*"

var sidecarNameRE = regexp.MustCompile(`^(\d+)-meta\.[^./\\]+$`)

// Provider lists absolute paths of sidecar files under root.
type Provider interface {
	Discover(ctx context.Context, root string) ([]string, error)
}

// ExtractExternalID returns the numeric id embedded in a sidecar file name.
func ExtractExternalID(path string) (string, bool) {
	m := sidecarNameRE.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsSidecarName reports whether name looks like a sidecar file, numeric id or
// not.
func IsSidecarName(name string) bool {
	ok, _ := filepath.Match(SidecarGlob, name)
	return ok
}

// RelativePath returns path relative to root using forward slashes. Paths
// outside root are returned unchanged.
func RelativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// resolveRelative joins a root-relative, slash separated path onto root. It
// returns false when the result would land outside root.
func resolveRelative(root, rel string) (string, bool) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", false
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(root, cleaned), true
}
