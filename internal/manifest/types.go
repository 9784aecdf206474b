package manifest

import (
	"errors"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

const (
	// ReservedPrefix marks the launcher's own bootstrap artifacts, which are
	// never listed in a descriptor and never synchronized
	ReservedPrefix = "launcher"

	// DefaultLocalName is the file name of the cached descriptor under the cache root
	DefaultLocalName = "manifest"

	// DefaultRemoteName is the file name of the descriptor under the source URI
	DefaultRemoteName = "manifest.xml"
)

// ErrMalformed is returned when a descriptor cannot be decoded or fails validation
var ErrMalformed = errors.New("malformed manifest")

// Artifact describes one file the downstream application requires
type Artifact struct {
	// Path is the forward-slash path relative to the cache root; unique per descriptor
	Path string
	// Checksum is the content checksum recorded when the manifest was built
	Checksum int64
	// Size is the expected length in bytes
	Size int64
	// Digest is an optional content digest verified after download
	Digest digest.Digest
}

// LocalPath returns the on-disk location of the artifact under root
func (a Artifact) LocalPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(a.Path))
}

// Descriptor is the versioned record of required artifacts and launch metadata
type Descriptor struct {
	// Timestamp is the creation time of the descriptor and its version marker
	Timestamp int64
	// URI is the base location artifacts and newer descriptors are fetched from
	URI string
	// EntryPoint names the downstream application's entry symbol
	EntryPoint string
	// Version is the human-readable version shown to users
	Version string
	// CacheDir is the path under the platform data directory holding the cache
	CacheDir string
	// Artifacts lists every required file in manifest order
	Artifacts []Artifact
}

// NewerThan reports whether d supersedes other.
// Only the timestamp is compared; equal timestamps never replace.
func (d *Descriptor) NewerThan(other *Descriptor) bool {
	if other == nil {
		return true
	}
	return d.Timestamp > other.Timestamp
}

// Lookup returns the artifact with the given relative path
func (d *Descriptor) Lookup(path string) (Artifact, bool) {
	for _, a := range d.Artifacts {
		if a.Path == path {
			return a, true
		}
	}
	return Artifact{}, false
}

// TotalSize returns the sum of every artifact's expected size
func (d *Descriptor) TotalSize() int64 {
	var total int64
	for _, a := range d.Artifacts {
		total += a.Size
	}
	return total
}

// Clone returns a deep copy of d
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Artifacts = append([]Artifact(nil), d.Artifacts...)
	return &clone
}

// Equal reports whether two descriptors match in every field, including
// artifact order
func Equal(a, b *Descriptor) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a.Timestamp != b.Timestamp ||
		a.URI != b.URI ||
		a.EntryPoint != b.EntryPoint ||
		a.Version != b.Version ||
		a.CacheDir != b.CacheDir ||
		len(a.Artifacts) != len(b.Artifacts) {
		return false
	}

	for i := range a.Artifacts {
		if a.Artifacts[i] != b.Artifacts[i] {
			return false
		}
	}

	return true
}
