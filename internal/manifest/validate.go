package manifest

import (
	"fmt"
	"path"
	"strings"
)

// Validate checks the structural invariants of a descriptor.
// Returned errors wrap ErrMalformed.
func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.EntryPoint) == "" {
		return fmt.Errorf("%w: entry point is required", ErrMalformed)
	}

	if strings.TrimSpace(d.URI) == "" {
		return fmt.Errorf("%w: source uri is required", ErrMalformed)
	}

	if d.CacheDir != "" {
		if err := validateRelative(d.CacheDir); err != nil {
			return fmt.Errorf("%w: cache dir: %v", ErrMalformed, err)
		}
	}

	seen := make(map[string]struct{}, len(d.Artifacts))
	for i, a := range d.Artifacts {
		if err := validateArtifactPath(a.Path); err != nil {
			return fmt.Errorf("%w: artifact %d: %v", ErrMalformed, i, err)
		}

		if _, dup := seen[a.Path]; dup {
			return fmt.Errorf("%w: duplicate artifact path %q", ErrMalformed, a.Path)
		}
		seen[a.Path] = struct{}{}

		if a.Size < 0 {
			return fmt.Errorf("%w: artifact %q has negative size %d", ErrMalformed, a.Path, a.Size)
		}

		if a.Digest != "" {
			if err := a.Digest.Validate(); err != nil {
				return fmt.Errorf("%w: artifact %q digest: %v", ErrMalformed, a.Path, err)
			}
		}
	}

	return nil
}

// validateArtifactPath enforces normalized, relative, forward-slash paths
// that stay inside the cache root
func validateArtifactPath(p string) error {
	if err := validateRelative(p); err != nil {
		return err
	}

	if strings.HasPrefix(p, ReservedPrefix) {
		return fmt.Errorf("path %q uses the reserved %q prefix", p, ReservedPrefix)
	}

	return nil
}

func validateRelative(p string) error {
	if p == "" || p == "." {
		return fmt.Errorf("empty path")
	}

	if strings.Contains(p, "\\") {
		return fmt.Errorf("path %q must use forward slashes", p)
	}

	if path.IsAbs(p) {
		return fmt.Errorf("path %q must be relative", p)
	}

	if path.Clean(p) != p {
		return fmt.Errorf("path %q is not normalized", p)
	}

	if p == ".." || strings.HasPrefix(p, "../") {
		return fmt.Errorf("path %q escapes the cache root", p)
	}

	return nil
}
