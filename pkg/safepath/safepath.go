// Package safepath confines file system paths to allowed directories.
package safepath

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// NormalizeDirs returns a sorted, deduplicated list of absolute directories.
func NormalizeDirs(dirs []string) []string {
	normalized := make([]string, 0, len(dirs))
	seen := map[string]struct{}{}
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		abs = filepath.Clean(abs)
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		normalized = append(normalized, abs)
	}
	slices.Sort(normalized)
	return normalized
}

// HasParentTraversal reports whether a cleaned path contains a parent directory segment.
func HasParentTraversal(cleanPath string) bool {
	if cleanPath == ".." {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// Within reports whether absPath equals root or lies beneath it.
func Within(root, absPath string) bool {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Validate ensures path is free of parent segments and inside one of
// allowedDirs. An empty allowedDirs permits any path.
func Validate(path string, allowedDirs []string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if HasParentTraversal(cleanPath) {
		return "", fmt.Errorf("path traversal not allowed: %s", path)
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	roots := NormalizeDirs(allowedDirs)
	if len(roots) == 0 {
		return absPath, nil
	}
	for _, root := range roots {
		if Within(root, absPath) {
			return absPath, nil
		}
	}
	return "", fmt.Errorf("path outside allowed directories: %s (allowed: %s)", absPath, strings.Join(roots, ", "))
}

// Join resolves a relative path under root and rejects anything that would
// land outside it. Absolute paths and parent segments are refused.
func Join(root, rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	slashed := filepath.ToSlash(rel)
	if filepath.IsAbs(rel) || strings.HasPrefix(slashed, "/") || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("absolute path not allowed: %s", rel)
	}
	if HasParentTraversal(slashed) {
		return "", fmt.Errorf("path traversal not allowed: %s", rel)
	}
	cleanRel := filepath.Clean(filepath.FromSlash(slashed))
	if cleanRel == "." {
		return "", fmt.Errorf("path does not name a file: %s", rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root: %w", err)
	}
	full := filepath.Join(absRoot, cleanRel)
	if !Within(absRoot, full) || full == absRoot {
		return "", fmt.Errorf("path escapes %s: %s", absRoot, rel)
	}
	return full, nil
}

// FileExists checks that path exists and is not a directory.
func FileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory: %s", path)
	}
	return nil
}
