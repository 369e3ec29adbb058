// Package security confines file access to the configured working directory.
// Every PDF, form-data tree and reference inventory the validator opens goes
// through a PathValidator first.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDirectory is returned for paths that escape the configured directory
var ErrOutsideDirectory = errors.New("path is outside configured directory")

// PathValidator resolves caller-supplied paths against a base directory
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a new path validator for the given directory.
// The directory does not have to exist yet.
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if strings.TrimSpace(configuredDirectory) == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	return &PathValidator{configuredDirectory: configuredDirectory}, nil
}

// GetConfiguredDirectory returns the configured directory path
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// Resolve turns path into a clean absolute path inside the configured
// directory. Relative paths are taken relative to that directory. Symlinks
// are followed on both sides, so a link pointing out of the directory is
// rejected.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	// Nothing to confine against until the directory exists
	if _, err := os.Stat(v.configuredDirectory); os.IsNotExist(err) {
		return absPath, nil
	}

	within, err := v.IsPathWithinDirectory(absPath)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return "", fmt.Errorf("%w: %s", ErrOutsideDirectory, path)
	}
	return absPath, nil
}

// ValidatePath checks that path resolves inside the configured directory
func (v *PathValidator) ValidatePath(path string) error {
	_, err := v.Resolve(path)
	return err
}

// IsPathWithinDirectory reports whether an absolute path, and its target if
// it is a symlink, sit inside the configured directory.
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	absDir, err := filepath.Abs(v.configuredDirectory)
	if err != nil {
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	cleanDir := filepath.Clean(absDir)
	realDir := cleanDir
	if resolved, err := filepath.EvalSymlinks(cleanDir); err == nil {
		realDir = resolved
	}

	cleanPath := filepath.Clean(path)
	realPath := cleanPath
	if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil {
		realPath = resolved
	}

	inside := func(p string) bool {
		return within(p, cleanDir) || within(p, realDir)
	}
	return inside(cleanPath) && inside(realPath), nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}
