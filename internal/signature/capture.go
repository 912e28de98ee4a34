// Package signature owns the in-progress owner-signature session: the
// drawing surface's lifecycle, normalization of the captured image into a
// canonical embeddable form, and a best-effort local cache copy.
package signature

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/internal/models"
	"github.com/rebuildcl/inspector/internal/storage"
)

// ErrEmptySignature is signalled when the operator commits with no strokes.
var ErrEmptySignature = errors.New("signature is empty")

// canonicalPrefix is the embeddable-image header every captured signature
// is normalized to carry.
const canonicalPrefix = "data:image/png;base64,"

// State is the capture session state.
type State int

const (
	StateEmpty State = iota
	StateDrawing
	StateCaptured
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateDrawing:
		return "DRAWING"
	case StateCaptured:
		return "CAPTURED"
	}
	return "UNKNOWN"
}

// Capture is one signature-drawing session. Drawing is purely local state;
// only a committed capture produces an artifact.
type Capture struct {
	store     storage.ArtifactStore
	cachePath string
	logger    *zap.Logger

	state    State
	artifact models.SignatureArtifact
}

// NewCapture creates a capture session. cacheDir is where the fallback
// copy of a committed signature is written.
func NewCapture(store storage.ArtifactStore, cacheDir string, logger *zap.Logger) *Capture {
	return &Capture{
		store:     store,
		cachePath: filepath.Join(cacheDir, "signature.png"),
		logger:    logger,
	}
}

// State returns the current session state.
func (c *Capture) State() State { return c.state }

// Artifact returns the committed artifact; zero until Commit succeeds.
func (c *Capture) Artifact() models.SignatureArtifact { return c.artifact }

// Stroke records that drawing has begun. No external effects.
func (c *Capture) Stroke() {
	if c.state == StateEmpty {
		c.state = StateDrawing
	}
}

// Commit accepts the raw encoded image emitted by the drawing surface,
// normalizes it and persists a local cache copy. An empty capture yields
// ErrEmptySignature instead of silently doing nothing.
func (c *Capture) Commit(raw string) (models.SignatureArtifact, error) {
	canonical, err := NormalizeEncodedImage(raw)
	if err != nil {
		return models.SignatureArtifact{}, err
	}

	artifact := models.SignatureArtifact{Image: canonical}

	// The cache copy is a fallback, not a requirement: a failed write
	// leaves the artifact usable with no local path.
	if data, err := DecodeImage(canonical); err != nil {
		c.logger.Warn("Signature cache skipped", zap.Error(err))
	} else if err := c.store.SaveArtifact(c.cachePath, data, storage.ArtifactSignature); err != nil {
		c.logger.Warn("Failed to cache signature locally", zap.Error(err))
	} else {
		artifact.LocalPath = c.cachePath
		c.logger.Info("Signature cached", zap.String("path", c.cachePath))
	}

	c.artifact = artifact
	c.state = StateCaptured
	return artifact, nil
}

// Clear discards the canonical image and the local cache, returning the
// session to Empty so the owner can re-sign.
func (c *Capture) Clear() {
	if c.artifact.LocalPath != "" {
		if err := c.store.Remove(c.artifact.LocalPath); err != nil {
			c.logger.Warn("Failed to remove signature cache", zap.Error(err))
		}
	}
	c.artifact = models.SignatureArtifact{}
	c.state = StateEmpty
}

// NormalizeEncodedImage turns a raw encoded signature into canonical
// embeddable form: embedded newlines and spaces are stripped and the
// data:image prefix is added when absent. An empty payload is rejected.
func NormalizeEncodedImage(raw string) (string, error) {
	cleaned := strings.NewReplacer("\r\n", "", "\n", "", "\r", "", " ", "").Replace(raw)
	if cleaned == "" {
		return "", ErrEmptySignature
	}
	if !strings.HasPrefix(cleaned, "data:image") {
		cleaned = canonicalPrefix + cleaned
	}
	return cleaned, nil
}

// DecodeImage extracts the binary image bytes from a canonical
// data:image string.
func DecodeImage(canonical string) ([]byte, error) {
	idx := strings.Index(canonical, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("signature payload is not base64-encoded")
	}
	data, err := base64.StdEncoding.DecodeString(canonical[idx+len("base64,"):])
	if err != nil {
		return nil, fmt.Errorf("decode signature payload: %w", err)
	}
	return data, nil
}
