package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fossabot/launcher-2/internal/checksum"
	"github.com/fossabot/launcher-2/internal/manifest"
)

// Entry is the observed state of an artifact's path on disk
type Entry struct {
	Path     string
	Exists   bool
	Size     int64
	Checksum int64
	// Hashed is set when Checksum was computed. Hashing is skipped when the
	// file is missing or its size already differs.
	Hashed bool
}

// Matches reports whether the entry is byte-identical to a by size and checksum
func (e Entry) Matches(a manifest.Artifact) bool {
	return e.Exists && e.Size == a.Size && e.Hashed && e.Checksum == a.Checksum
}

// Inspect observes the cached copy of a under root
func Inspect(a manifest.Artifact, root string) (Entry, error) {
	entry := Entry{Path: a.LocalPath(root)}

	info, err := os.Stat(entry.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entry, nil
		}
		return entry, fmt.Errorf("stat artifact: %w", err)
	}

	entry.Exists = true
	if !info.Mode().IsRegular() {
		// Never matches; the download replaces it or fails on rename
		entry.Size = -1
		return entry, nil
	}

	entry.Size = info.Size()
	if entry.Size != a.Size {
		return entry, nil
	}

	sum, err := checksum.File(entry.Path)
	if err != nil {
		return entry, fmt.Errorf("checksum artifact: %w", err)
	}
	entry.Checksum = sum
	entry.Hashed = true

	return entry, nil
}

// NeedsUpdate reports whether the cached copy of a is missing or stale.
// Existence, size and checksum are checked in that order, stopping at the
// first mismatch.
func NeedsUpdate(a manifest.Artifact, root string) (bool, error) {
	entry, err := Inspect(a, root)
	if err != nil {
		return false, err
	}
	return !entry.Matches(a), nil
}

// Stale returns the artifacts of d needing an update, in manifest order
func Stale(d *manifest.Descriptor, root string) ([]manifest.Artifact, error) {
	var stale []manifest.Artifact
	for _, a := range d.Artifacts {
		needs, err := NeedsUpdate(a, root)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", a.Path, err)
		}
		if needs {
			stale = append(stale, a)
		}
	}
	return stale, nil
}
