// Package security guards the filesystem paths and file names the viewer
// derives from user input.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonical resolves symlinks in path. For a path that does not exist yet,
// the nearest existing ancestor is resolved and the rest appended, so a
// symlinked parent cannot smuggle a new file elsewhere.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// ValidateWithin returns an error unless path, after resolving symlinks,
// lies inside root.
func ValidateWithin(path, root string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	r, err := canonical(root)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(r, p)
	if err != nil {
		return fmt.Errorf("%s is outside %s: %w", path, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, root)
	}
	return nil
}

// ValidateWithinAny accepts path if it lies inside one of roots.
func ValidateWithinAny(path string, roots []string) error {
	if len(roots) == 0 {
		return fmt.Errorf("no allowed directories")
	}
	for _, root := range roots {
		if ValidateWithin(path, root) == nil {
			return nil
		}
	}
	return fmt.Errorf("%s must be within one of %v", path, roots)
}

// ValidateExportDir accepts export destinations under the working directory
// or the temp directory.
func ValidateExportDir(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	return ValidateWithinAny(path, []string{cwd, os.TempDir()})
}

// SanitizeFilename keeps ASCII letters, digits, '.', '_' and '-' and collapses
// every other run of characters into one underscore. Session names such as
// "KS014_2019-12-03_1" pass through unchanged.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	underscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			underscore = false
		case !underscore:
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
