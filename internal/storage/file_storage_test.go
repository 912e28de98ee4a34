package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalStore_SaveArtifact(t *testing.T) {
	tempDir := t.TempDir()
	store := NewLocalStore(tempDir, zap.NewNop())

	t.Run("saves artifact", func(t *testing.T) {
		fullPath := filepath.Join(tempDir, "insp-1", "signature.png")
		content := []byte("png bytes")

		err := store.SaveArtifact(fullPath, content, ArtifactSignature)

		require.NoError(t, err)
		assert.FileExists(t, fullPath)

		saved, err := os.ReadFile(fullPath)
		require.NoError(t, err)
		assert.Equal(t, content, saved)
	})

	t.Run("creates parent directories", func(t *testing.T) {
		fullPath := filepath.Join(tempDir, "deep", "nested", "report.pdf")
		err := store.SaveArtifact(fullPath, []byte("pdf"), ArtifactPDF)

		require.NoError(t, err)
		assert.FileExists(t, fullPath)
	})

	t.Run("overwrites on re-sign", func(t *testing.T) {
		fullPath := filepath.Join(tempDir, "sig.png")

		require.NoError(t, store.SaveFile(fullPath, []byte("first")))
		require.NoError(t, store.SaveFile(fullPath, []byte("second")))

		saved, _ := os.ReadFile(fullPath)
		assert.Equal(t, []byte("second"), saved)
	})
}

func TestLocalStore_Remove(t *testing.T) {
	tempDir := t.TempDir()
	store := NewLocalStore(tempDir, zap.NewNop())

	t.Run("removes existing artifact", func(t *testing.T) {
		fullPath := filepath.Join(tempDir, "sig.png")
		require.NoError(t, store.SaveFile(fullPath, []byte("x")))

		err := store.Remove(fullPath)
		require.NoError(t, err)
		assert.NoFileExists(t, fullPath)
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		err := store.Remove(filepath.Join(tempDir, "never-written.png"))
		assert.NoError(t, err)
	})
}

func TestLocalStore_ValidatePath(t *testing.T) {
	tempDir := t.TempDir()
	store := NewLocalStore(tempDir, zap.NewNop())

	t.Run("accepts path within base", func(t *testing.T) {
		err := store.ValidatePath(filepath.Join(tempDir, "a", "b.pdf"))
		assert.NoError(t, err)
	})

	t.Run("rejects path outside base", func(t *testing.T) {
		err := store.ValidatePath("/etc/passwd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes base directory")
	})

	t.Run("rejects traversal", func(t *testing.T) {
		err := store.ValidatePath(filepath.Join(tempDir, "..", "..", "etc", "passwd"))
		assert.Error(t, err)
	})

	t.Run("rejects sibling with similar prefix", func(t *testing.T) {
		err := store.ValidatePath(tempDir + "_evil/file.txt")
		assert.Error(t, err)
	})
}
