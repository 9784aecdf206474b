package launch

import (
	"context"

	"github.com/fossabot/launcher-2/internal/cache"
	"github.com/fossabot/launcher-2/internal/manifest"
)

// Report describes the cache state for a descriptor without changing it
type Report struct {
	Session    string          `yaml:"session"`
	Version    string          `yaml:"version"`
	Timestamp  int64           `yaml:"timestamp"`
	URI        string          `yaml:"uri"`
	EntryPoint string          `yaml:"entry_point"`
	CacheRoot  string          `yaml:"cache_root"`
	Artifacts  int             `yaml:"artifacts"`
	TotalBytes int64           `yaml:"total_bytes"`
	Stale      []StaleArtifact `yaml:"stale"`
}

// StaleArtifact is one artifact a sync would download
type StaleArtifact struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	Reason string `yaml:"reason"`
}

// Inspect builds a Report. With offline set the remote descriptor is not
// consulted. Nothing is downloaded either way.
func (l *Launcher) Inspect(ctx context.Context, offline bool) (*Report, error) {
	var (
		d   *manifest.Descriptor
		err error
	)
	if offline {
		d, err = l.store.Current()
	} else {
		d, err = l.store.Resolve(ctx)
	}
	if err != nil {
		return nil, err
	}

	root := l.store.CacheRoot()
	report := &Report{
		Session:    l.lc.ID,
		Version:    d.Version,
		Timestamp:  d.Timestamp,
		URI:        d.URI,
		EntryPoint: d.EntryPoint,
		CacheRoot:  root,
		Artifacts:  len(d.Artifacts),
		TotalBytes: d.TotalSize(),
		Stale:      []StaleArtifact{},
	}

	for _, a := range d.Artifacts {
		entry, err := cache.Inspect(a, root)
		if err != nil {
			return nil, err
		}
		if entry.Matches(a) {
			continue
		}
		report.Stale = append(report.Stale, StaleArtifact{
			Path:   a.Path,
			Size:   a.Size,
			Reason: staleReason(entry, a),
		})
	}

	return report, nil
}

func staleReason(e cache.Entry, a manifest.Artifact) string {
	switch {
	case !e.Exists:
		return "missing"
	case e.Size != a.Size:
		return "size"
	default:
		return "checksum"
	}
}
