package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Archive keeps uploaded save files on disk for audit, keyed by the
// match content fingerprint. Writing the same hash twice is a no-op.
type Archive struct {
	basePath string
}

// NewArchive creates an archive rooted at basePath.
func NewArchive(basePath string) *Archive {
	return &Archive{basePath: basePath}
}

// Store writes a save file under its content hash and returns the
// relative path. Files are sharded by the hash's leading byte to keep
// directory listings manageable.
func (a *Archive) Store(hash string, data []byte) (string, error) {
	if len(hash) < 2 {
		return "", fmt.Errorf("invalid save hash %q", hash)
	}

	relPath := filepath.Join("saves", hash[:2], hash+".sav")
	fullPath := filepath.Join(a.basePath, relPath)

	if _, err := os.Stat(fullPath); err == nil {
		return relPath, nil
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write save file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize save file: %w", err)
	}

	return relPath, nil
}

// Read returns an archived save file by hash.
func (a *Archive) Read(hash string) ([]byte, error) {
	if len(hash) < 2 {
		return nil, fmt.Errorf("invalid save hash %q", hash)
	}
	data, err := os.ReadFile(filepath.Join(a.basePath, "saves", hash[:2], hash+".sav"))
	if err != nil {
		return nil, fmt.Errorf("failed to read archived save: %w", err)
	}
	return data, nil
}

// Delete removes an archived save file.
func (a *Archive) Delete(hash string) error {
	if len(hash) < 2 {
		return fmt.Errorf("invalid save hash %q", hash)
	}
	if err := os.Remove(filepath.Join(a.basePath, "saves", hash[:2], hash+".sav")); err != nil {
		return fmt.Errorf("failed to delete archived save: %w", err)
	}
	return nil
}
