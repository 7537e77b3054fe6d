package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinBoundary fails when targetPath resolves outside boundaryPath.
func ValidatePathWithinBoundary(boundaryPath, targetPath string) error {
	absBoundary, err := filepath.Abs(boundaryPath)
	if err != nil {
		return fmt.Errorf("failed to resolve boundary path %q: %w", boundaryPath, err)
	}

	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return fmt.Errorf("failed to resolve target path %q: %w", targetPath, err)
	}

	rel, err := filepath.Rel(absBoundary, absTarget)
	if err != nil {
		return fmt.Errorf("invalid path relationship between %q and %q: %w", absBoundary, absTarget, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %q escapes boundary %q", targetPath, boundaryPath)
	}

	return nil
}

// ResolveWithin joins a project-relative path onto dir and checks it stays inside.
// Absolute paths are returned unchanged: they were written by the operator, not
// derived from the project layout.
func ResolveWithin(dir, path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return path, nil
	}
	joined := filepath.Join(dir, path)
	if err := ValidatePathWithinBoundary(dir, joined); err != nil {
		return "", err
	}
	return joined, nil
}
