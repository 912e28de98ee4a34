// Package storage persists locally generated artifacts: the signature
// cache copy and generated report PDFs.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ArtifactType classifies the file being stored.
type ArtifactType int

const (
	ArtifactGeneric ArtifactType = iota
	ArtifactSignature
	ArtifactPDF
	ArtifactImage
)

// ArtifactStore defines the interface for local artifact storage.
type ArtifactStore interface {
	// SaveFile writes content to the given path, creating parent
	// directories as needed.
	SaveFile(fullPath string, content []byte) error

	// SaveArtifact allows type-specific handling.
	SaveArtifact(fullPath string, content []byte, artifactType ArtifactType) error

	// Remove deletes a previously written artifact. Missing files are not
	// an error.
	Remove(fullPath string) error

	// ValidatePath checks path security (no traversal, within base).
	ValidatePath(fullPath string) error
}

// LocalStore implements ArtifactStore on the local filesystem, confined
// to a base directory.
type LocalStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalStore creates a LocalStore rooted at baseDir.
func NewLocalStore(baseDir string, logger *zap.Logger) *LocalStore {
	return &LocalStore{baseDir: baseDir, logger: logger}
}

// BaseDir returns the store's root directory.
func (s *LocalStore) BaseDir() string { return s.baseDir }

// SaveFile writes content to the given path.
func (s *LocalStore) SaveFile(fullPath string, content []byte) error {
	return s.SaveArtifact(fullPath, content, ArtifactGeneric)
}

// SaveArtifact writes content with type-specific handling.
func (s *LocalStore) SaveArtifact(fullPath string, content []byte, artifactType ArtifactType) error {
	if err := s.ValidatePath(fullPath); err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write artifact",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Artifact saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)),
		zap.Int("artifact_type", int(artifactType)))

	return nil
}

// Remove deletes a stored artifact. A missing file is treated as removed.
func (s *LocalStore) Remove(fullPath string) error {
	if err := s.ValidatePath(fullPath); err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// ValidatePath checks that the path resolves inside the base directory.
func (s *LocalStore) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	// Prefix check against base + separator so /base-evil does not pass.
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}
