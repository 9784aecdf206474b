// Package launch runs the resolve, synchronize and compose pipeline on a
// single background worker.
//
// The caller's goroutine never blocks on the pipeline: Start returns a
// Session at once and progress flows out through the context's Sink.
// Callers that need to render on a particular goroutine give the context a
// progress.Channel and forward its events themselves.
package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fossabot/launcher-2/internal/cache"
	"github.com/fossabot/launcher-2/internal/compose"
	"github.com/fossabot/launcher-2/internal/fetch"
	"github.com/fossabot/launcher-2/internal/manifest"
	"github.com/fossabot/launcher-2/internal/store"
	"github.com/fossabot/launcher-2/internal/verify"
)

// ErrStillStale is returned when artifacts remain stale right after a
// successful sync, meaning the source serves content that does not match
// its own manifest
var ErrStillStale = errors.New("cache still stale after sync")

// Options supplies the pieces of a launcher that do not come from config
type Options struct {
	// Embedded is the descriptor bundled with the launcher (required)
	Embedded []byte
	// Fetcher overrides the HTTP and file fetcher built from config
	Fetcher fetch.Opener
	// Verifier overrides the keyring from config
	Verifier store.SignatureVerifier
	// Registry resolves entry point names; compose.Default when nil
	Registry *compose.Registry
	// Stdout and Stderr are given to exec entry points
	Stdout io.Writer
	Stderr io.Writer
	// ExportPATH prepends artifact directories to this process's PATH
	ExportPATH bool
}

// Launcher wires a store, synchronizer and composer for one Context
type Launcher struct {
	lc       *Context
	store    *store.Store
	sync     *cache.Synchronizer
	composer *compose.Composer
}

// New creates a launcher
func New(lc *Context, opts Options) (*Launcher, error) {
	if lc == nil {
		return nil, fmt.Errorf("launch context is required")
	}
	cfg := lc.Config

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.New(fetch.Options{
			UserAgent:   cfg.UserAgent,
			InsecureTLS: cfg.InsecureTLS,
		})
	}

	verifier := opts.Verifier
	if verifier == nil && cfg.Manifest.Keyring != "" {
		keyring := cfg.Manifest.Keyring
		if !filepath.IsAbs(keyring) {
			keyring = filepath.Join(lc.DataDir, keyring)
		}
		v, err := verify.NewVerifierFromFile(keyring)
		if err != nil {
			return nil, fmt.Errorf("load release keyring: %w", err)
		}
		verifier = v
	}

	s, err := store.New(store.Config{
		Embedded:         opts.Embedded,
		Root:             lc.DataDir,
		Fetcher:          fetcher,
		Verifier:         verifier,
		RequireSignature: cfg.Manifest.RequireSignature,
		Sink:             lc.Sink,
		Log:              lc.Log,
		LocalName:        cfg.Manifest.LocalName,
		RemoteName:       cfg.Manifest.RemoteName,
	})
	if err != nil {
		return nil, err
	}

	return &Launcher{
		lc:    lc,
		store: s,
		sync: cache.New(cache.Config{
			Fetcher:   fetcher,
			Sink:      lc.Sink,
			Log:       lc.Log,
			ChunkSize: cfg.ChunkSize,
		}),
		composer: compose.New(compose.Config{
			Registry:   opts.Registry,
			Sink:       lc.Sink,
			Log:        lc.Log,
			Args:       cfg.Args,
			Stdout:     opts.Stdout,
			Stderr:     opts.Stderr,
			ExportPATH: opts.ExportPATH,
		}),
	}, nil
}

// CacheRoot returns the directory artifacts are synchronized into
func (l *Launcher) CacheRoot() string {
	return l.store.CacheRoot()
}

// Start runs the pipeline on a new goroutine and returns immediately
func (l *Launcher) Start(ctx context.Context) *Session {
	s := &Session{ID: l.lc.ID, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		s.descriptor, s.handle, s.err = l.Run(ctx)
	}()

	return s
}

// Run executes resolve, sync, re-validation, compose and launch in order
// on the calling goroutine. Start is the non-blocking form.
func (l *Launcher) Run(ctx context.Context) (*manifest.Descriptor, *compose.Handle, error) {
	log := l.lc.Log
	root := l.store.CacheRoot()

	d, err := l.store.Resolve(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve manifest: %w", err)
	}
	log = log.WithField("ts", d.Timestamp)

	result, err := l.sync.Sync(ctx, d, root)
	if err != nil {
		return d, nil, fmt.Errorf("sync cache: %w", err)
	}
	log.WithField("downloaded", len(result.Downloaded)).WithField("bytes", result.Bytes).Info("Cache synchronized")

	// A second pass must find nothing to do
	if !result.UpToDate() {
		recheck, err := l.sync.Sync(ctx, d, root)
		if err != nil {
			return d, nil, fmt.Errorf("re-validate cache: %w", err)
		}
		if !recheck.UpToDate() {
			return d, nil, fmt.Errorf("%w: %v", ErrStillStale, recheck.Downloaded)
		}
	}

	handle, err := l.composer.Compose(ctx, d, root)
	if err != nil {
		return d, nil, err
	}

	if err := handle.Launch(); err != nil {
		return d, handle, err
	}
	log.WithField("entry_point", d.EntryPoint).Info("Handed off to application")

	return d, handle, nil
}

// Session tracks a pipeline started by Launcher.Start
type Session struct {
	ID string

	done       chan struct{}
	descriptor *manifest.Descriptor
	handle     *compose.Handle
	err        error
}

// Done is closed when the pipeline has finished
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the pipeline error, or nil while it is still running
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Descriptor returns the resolved descriptor once the pipeline is done
func (s *Session) Descriptor() *manifest.Descriptor {
	select {
	case <-s.done:
		return s.descriptor
	default:
		return nil
	}
}

// Handle returns the launched entry point once the pipeline is done
func (s *Session) Handle() *compose.Handle {
	select {
	case <-s.done:
		return s.handle
	default:
		return nil
	}
}

// Wait blocks until the pipeline has finished and returns its error
func (s *Session) Wait() error {
	<-s.done
	return s.err
}
