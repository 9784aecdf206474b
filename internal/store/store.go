// Package store decides which manifest descriptor is authoritative for a launch.
//
// Three sources are consulted in order: the descriptor embedded in the
// launcher binary, the descriptor cached by a previous launch, and the
// descriptor published next to the current source URI. A remote descriptor
// only replaces the current one when its timestamp is strictly greater, so
// a launch never downgrades. Remote failures are logged and tolerated.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/fossabot/launcher-2/internal/fetch"
	"github.com/fossabot/launcher-2/internal/logging"
	"github.com/fossabot/launcher-2/internal/manifest"
	"github.com/fossabot/launcher-2/internal/progress"
	"github.com/fossabot/launcher-2/internal/verify"
)

// Status texts reported while resolving
const (
	StatusSynchronizing = "Synchronizing manifest..."
	StatusUpdated       = "Updated manifest to v%s."
	StatusCurrent       = "Manifest v%s is current."
)

// ProgressPreFetch is reported before the remote descriptor is requested
const ProgressPreFetch = 0.1

// ErrEmbedded is returned when the embedded descriptor cannot be used.
// Without it there is nothing to fall back to.
var ErrEmbedded = errors.New("embedded manifest is invalid")

// SignatureVerifier checks a detached signature over a remote descriptor
type SignatureVerifier interface {
	Verify(data, signature []byte) error
}

// Config holds configuration for the store
type Config struct {
	// Embedded is the descriptor bundled with the launcher (required)
	Embedded []byte
	// Root is the data directory; the cache root is Root joined with the
	// embedded descriptor's cache dir
	Root string
	// Fetcher opens remote descriptors and signatures (required)
	Fetcher fetch.Opener
	// Verifier checks remote descriptor signatures when set
	Verifier SignatureVerifier
	// RequireSignature rejects remote descriptors without a signature.
	// Invalid signatures are always rejected when a Verifier is set.
	RequireSignature bool
	// Sink receives status notifications
	Sink progress.Sink
	// Log receives warnings about tolerated failures
	Log logrus.FieldLogger
	// LocalName is the cached descriptor file name under the cache root
	LocalName string
	// RemoteName is the descriptor file name under the source URI
	RemoteName string
}

// Store resolves the authoritative descriptor
type Store struct {
	embedded   *manifest.Descriptor
	cacheRoot  string
	fetcher    fetch.Opener
	verifier   SignatureVerifier
	requireSig bool
	sink       progress.Sink
	log        logrus.FieldLogger
	localName  string
	remoteName string
}

// New creates a store. The embedded descriptor is parsed here; failure
// wraps ErrEmbedded.
func New(config Config) (*Store, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("Root is required")
	}
	if config.Fetcher == nil {
		return nil, fmt.Errorf("Fetcher is required")
	}
	if config.RequireSignature && config.Verifier == nil {
		return nil, fmt.Errorf("RequireSignature needs a Verifier")
	}

	embedded, err := manifest.Parse(config.Embedded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedded, err)
	}

	localName := config.LocalName
	if localName == "" {
		localName = manifest.DefaultLocalName
	}
	remoteName := config.RemoteName
	if remoteName == "" {
		remoteName = manifest.DefaultRemoteName
	}

	return &Store{
		embedded:   embedded,
		cacheRoot:  filepath.Join(config.Root, filepath.FromSlash(embedded.CacheDir)),
		fetcher:    config.Fetcher,
		verifier:   config.Verifier,
		requireSig: config.RequireSignature,
		sink:       progress.Or(config.Sink),
		log:        logging.Or(config.Log),
		localName:  localName,
		remoteName: remoteName,
	}, nil
}

// CacheRoot returns the directory holding the cached descriptor and artifacts
func (s *Store) CacheRoot() string {
	return s.cacheRoot
}

// LocalPath returns the location of the cached descriptor
func (s *Store) LocalPath() string {
	return filepath.Join(s.cacheRoot, s.localName)
}

// Embedded returns a copy of the descriptor bundled with the launcher
func (s *Store) Embedded() *manifest.Descriptor {
	return s.embedded.Clone()
}

// Current returns the descriptor a launch would start from without
// consulting the network: the cached one if usable, else the embedded one.
func (s *Store) Current() (*manifest.Descriptor, error) {
	if err := os.MkdirAll(s.cacheRoot, 0755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	cached, err := manifest.Load(s.LocalPath())
	switch {
	case err == nil:
		return cached, nil
	case errors.Is(err, os.ErrNotExist):
		return s.Embedded(), nil
	case errors.Is(err, manifest.ErrMalformed):
		s.log.WithError(err).WithField("path", s.LocalPath()).Warn("Ignoring unreadable cached manifest")
		return s.Embedded(), nil
	default:
		return nil, err
	}
}

// Resolve returns the authoritative descriptor for this launch. A newer
// remote descriptor is persisted to the cache root before it is returned.
// Only filesystem failures are returned as errors.
func (s *Store) Resolve(ctx context.Context) (*manifest.Descriptor, error) {
	current, err := s.Current()
	if err != nil {
		return nil, err
	}

	s.sink.SetStatus(StatusSynchronizing)
	s.sink.SetProgress(ProgressPreFetch)

	remoteURL := manifest.ArtifactURL(current.URI, s.remoteName)
	log := s.log.WithFields(logrus.Fields{
		"url": remoteURL,
		"ts":  current.Timestamp,
	})

	remote, err := s.fetchRemote(ctx, remoteURL)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch remote manifest, keeping current")
		s.sink.SetStatus(fmt.Sprintf(StatusCurrent, current.Version))
		return current, nil
	}

	if !remote.NewerThan(current) {
		log.WithField("remote_ts", remote.Timestamp).Debug("Remote manifest is not newer")
		s.sink.SetStatus(fmt.Sprintf(StatusCurrent, current.Version))
		return current, nil
	}

	if err := manifest.Save(s.LocalPath(), remote); err != nil {
		return nil, fmt.Errorf("persist manifest: %w", err)
	}

	log.WithField("remote_ts", remote.Timestamp).Info("Adopted newer manifest")
	s.sink.SetStatus(fmt.Sprintf(StatusUpdated, remote.Version))

	return remote, nil
}

// fetchRemote downloads, verifies and parses the descriptor at location
func (s *Store) fetchRemote(ctx context.Context, location string) (*manifest.Descriptor, error) {
	data, err := fetch.Fetch(ctx, s.fetcher, location)
	if err != nil {
		return nil, fmt.Errorf("download manifest: %w", err)
	}

	if s.verifier != nil {
		if err := s.checkSignature(ctx, location, data); err != nil {
			return nil, err
		}
	}

	remote, err := manifest.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse remote manifest: %w", err)
	}

	return remote, nil
}

func (s *Store) checkSignature(ctx context.Context, location string, data []byte) error {
	sigURL := location + verify.DefaultSignatureSuffix

	sig, err := fetch.Fetch(ctx, s.fetcher, sigURL)
	if err != nil {
		if s.requireSig {
			return fmt.Errorf("download signature: %w", err)
		}
		s.log.WithError(err).WithField("url", sigURL).Warn("Remote manifest is unsigned")
		return nil
	}

	if err := s.verifier.Verify(data, sig); err != nil {
		return fmt.Errorf("verify manifest: %w", err)
	}

	return nil
}
