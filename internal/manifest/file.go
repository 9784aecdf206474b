package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactURL joins a source URI and a relative artifact path with exactly
// one separator between them
func ArtifactURL(base, rel string) string {
	rel = strings.TrimLeft(rel, "/")
	if strings.HasSuffix(base, "/") {
		return base + rel
	}
	return base + "/" + rel
}

// Load reads and validates a descriptor file
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest file: %w", err)
	}

	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return d, nil
}

// Save writes the descriptor to path atomically.
// The document is written to a temporary file in the same directory and
// renamed over the target, so a crash never leaves a half-written manifest.
func Save(path string, d *Descriptor) error {
	data, err := Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Track whether we need to clean up the temp file
	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename manifest file: %w", err)
	}
	cleanupNeeded = false

	// Sync directory for durability; not supported on every platform
	if df, err := os.Open(dir); err == nil {
		_ = df.Sync()
		df.Close()
	}

	return nil
}
