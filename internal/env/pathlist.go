package env

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// PathListSeparator joins entries of search-path variables such as ANSIBLE_ROLES_PATH.
const PathListSeparator = ":"

// ErrKeyNotFound is returned when a path-list variable is requested but absent.
var ErrKeyNotFound = errors.New("key not found")

// PathList joins the built-in, scratch and project directories followed by any
// user-declared segments. Empty entries are skipped; order is preserved.
func PathList(builtIn, scratch, project string, user ...string) string {
	parts := make([]string, 0, 3+len(user))
	for _, p := range append([]string{builtIn, scratch, project}, user...) {
		if p == "" {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, PathListSeparator)
}

// AbsolutePathFor splits vars[key] on ':' and resolves every relative segment
// against baseDir.
func AbsolutePathFor(vars Vars, key, baseDir string) (string, error) {
	value, ok := vars[key]
	if !ok {
		return "", fmt.Errorf("resolve %s: %w", key, ErrKeyNotFound)
	}
	segments := strings.Split(value, PathListSeparator)
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		out = append(out, AbsPath(seg, baseDir))
	}
	return strings.Join(out, PathListSeparator), nil
}

// AbsPath returns path unchanged when absolute, otherwise joined onto baseDir
// and cleaned.
func AbsPath(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}
