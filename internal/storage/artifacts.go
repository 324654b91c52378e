// Package storage persists fetched page bodies as opaque artifacts on
// the local filesystem. Paths returned by Store are storage handles
// relative to the base directory, suitable for persisting on Page rows.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// ErrArtifactNotFound indicates the requested artifact does not exist.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore reads and writes page body artifacts under a base
// directory, one subdirectory per run.
type ArtifactStore struct {
	baseDir string
}

// NewArtifactStore creates the base directory if needed.
func NewArtifactStore(baseDir string) (*ArtifactStore, error) {
	if baseDir == "" {
		return nil, errors.New("artifact base directory is required")
	}
	if err := os.MkdirAll(baseDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &ArtifactStore{baseDir: baseDir}, nil
}

// Store writes a body under a fresh UUID name and returns its handle.
func (s *ArtifactStore) Store(ctx context.Context, runID string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	name := uuid.NewString() + ".html"
	path := filepath.Join(runDir, name)
	if err := os.WriteFile(path, body, filePerm); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	return filepath.Join(runID, name), nil
}

// Load reads an artifact by the handle Store returned.
func (s *ArtifactStore) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return body, nil
}

// DeleteRun removes all artifacts of a run.
func (s *ArtifactStore) DeleteRun(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if runID == "" || strings.Contains(runID, string(filepath.Separator)) {
		return fmt.Errorf("invalid run id %q", runID)
	}

	if err := os.RemoveAll(filepath.Join(s.baseDir, runID)); err != nil {
		return fmt.Errorf("failed to delete run artifacts: %w", err)
	}

	return nil
}

// resolve joins a handle to the base directory, rejecting handles that
// would escape it.
func (s *ArtifactStore) resolve(path string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.Clean(path))
	if !strings.HasPrefix(full, filepath.Clean(s.baseDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid artifact path %q", path)
	}
	return full, nil
}
