// Package compose turns a synchronized cache into a running entry point.
//
// The entry point named by a descriptor is resolved in one of three ways:
//
//	exec:<path> [args...]    run a cached executable as a child process
//	plugin:<path>#<Symbol>   load a cached Go plugin and call Symbol
//	<name>                   construct the factory registered under name
//
// Any failure to resolve or construct the entry point is fatal for the
// launch and wraps ErrEntryPoint. There is no fallback entry point.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fossabot/launcher-2/internal/logging"
	"github.com/fossabot/launcher-2/internal/manifest"
	"github.com/fossabot/launcher-2/internal/progress"
)

// Entry point name prefixes
const (
	ExecPrefix   = "exec:"
	PluginPrefix = "plugin:"
)

// StatusHandoff is reported right before the entry point takes over
const StatusHandoff = "Launcher handing off to application..."

// ErrEntryPoint is returned when the entry point cannot be resolved,
// constructed or launched
var ErrEntryPoint = errors.New("entry point failed")

// EntryPoint is the downstream application's startup object
type EntryPoint interface {
	// OnLaunch is called once, immediately after construction
	OnLaunch(env *Env) error
	// OnComplete is called once when the entry point reports, through
	// Env.Complete, that its startup work is done
	OnComplete()
}

// Factory constructs an entry point with no arguments
type Factory func() (EntryPoint, error)

// Waiter is implemented by entry points that outlive OnLaunch
type Waiter interface {
	Wait() error
}

// Config holds configuration for the composer
type Config struct {
	// Registry resolves plain entry point names; Default when nil
	Registry *Registry
	// Sink receives status from the launcher and the entry point
	Sink progress.Sink
	// Log receives composition details
	Log logrus.FieldLogger
	// Args are passed to the entry point through its Env
	Args []string
	// Stdout and Stderr are used by exec entry points; os.Stdout and
	// os.Stderr when nil
	Stdout io.Writer
	Stderr io.Writer
	// ExportPATH also prepends artifact directories to this process's PATH
	ExportPATH bool
}

// Composer builds entry points from synchronized caches
type Composer struct {
	registry   *Registry
	sink       progress.Sink
	log        logrus.FieldLogger
	args       []string
	stdout     io.Writer
	stderr     io.Writer
	exportPATH bool
	search     *SearchPath
}

// New creates a composer
func New(config Config) *Composer {
	registry := config.Registry
	if registry == nil {
		registry = Default
	}
	stdout := config.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := config.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Composer{
		registry:   registry,
		sink:       progress.Or(config.Sink),
		log:        logging.Or(config.Log),
		args:       append([]string(nil), config.Args...),
		stdout:     stdout,
		stderr:     stderr,
		exportPATH: config.ExportPATH,
		search:     NewSearchPath(),
	}
}

// SearchPath returns the composer's accumulated search path
func (c *Composer) SearchPath() *SearchPath {
	return c.search
}

// Compose resolves every artifact of d under root, extends the search
// path with them and constructs the entry point. The entry point is not
// launched; call Handle.Launch.
func (c *Composer) Compose(ctx context.Context, d *manifest.Descriptor, root string) (*Handle, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve cache root: %v", ErrEntryPoint, err)
	}

	paths := make([]string, 0, len(d.Artifacts))
	for _, a := range d.Artifacts {
		path := a.LocalPath(absRoot)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%w: missing artifact %s: %v", ErrEntryPoint, a.Path, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: artifact %s is not a regular file", ErrEntryPoint, a.Path)
		}
		paths = append(paths, path)
	}

	added := c.search.Extend(paths...)
	if c.exportPATH {
		if err := c.search.ExportPATH(); err != nil {
			return nil, fmt.Errorf("export PATH: %w", err)
		}
	}

	log := c.log.WithFields(logrus.Fields{
		"entry_point": d.EntryPoint,
		"artifacts":   len(paths),
		"added":       added,
	})

	factory, err := c.resolve(d, absRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %v", ErrEntryPoint, d.EntryPoint, err)
	}

	entry, err := construct(factory)
	if err != nil {
		return nil, fmt.Errorf("%w: construct %q: %v", ErrEntryPoint, d.EntryPoint, err)
	}

	env := &Env{
		sink:       c.sink,
		root:       absRoot,
		search:     c.search,
		descriptor: d.Clone(),
		args:       c.args,
		onComplete: entry.OnComplete,
	}

	log.Debug("Composed entry point")

	return &Handle{entry: entry, env: env, sink: c.sink}, nil
}

// resolve maps the descriptor's entry point name to a factory
func (c *Composer) resolve(d *manifest.Descriptor, root string) (Factory, error) {
	name := strings.TrimSpace(d.EntryPoint)

	switch {
	case strings.HasPrefix(name, ExecPrefix):
		fields := strings.Fields(strings.TrimPrefix(name, ExecPrefix))
		if len(fields) == 0 {
			return nil, fmt.Errorf("exec entry point has no path")
		}
		path, err := artifactPath(d, root, fields[0])
		if err != nil {
			return nil, err
		}
		args := fields[1:]
		return func() (EntryPoint, error) {
			return &Process{
				Path:   path,
				Args:   args,
				Stdout: c.stdout,
				Stderr: c.stderr,
			}, nil
		}, nil

	case strings.HasPrefix(name, PluginPrefix):
		rel, symbol, ok := strings.Cut(strings.TrimPrefix(name, PluginPrefix), "#")
		if !ok || rel == "" || symbol == "" {
			return nil, fmt.Errorf("plugin entry point must be plugin:<path>#<Symbol>")
		}
		path, err := artifactPath(d, root, rel)
		if err != nil {
			return nil, err
		}
		return openPlugin(path, symbol)

	default:
		factory, ok := c.registry.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("no entry point registered as %q", name)
		}
		return factory, nil
	}
}

// artifactPath returns the cached location of rel, which must be listed in d
func artifactPath(d *manifest.Descriptor, root, rel string) (string, error) {
	a, ok := d.Lookup(rel)
	if !ok {
		return "", fmt.Errorf("%s is not an artifact of this manifest", rel)
	}
	return a.LocalPath(root), nil
}

// construct calls factory, turning a panic into an error
func construct(factory Factory) (entry EntryPoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			entry, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	entry, err = factory()
	if err == nil && entry == nil {
		err = errors.New("factory returned nil")
	}

	return entry, err
}

// Handle is a constructed, not yet launched entry point
type Handle struct {
	entry EntryPoint
	env   *Env
	sink  progress.Sink

	mu       sync.Mutex
	launched bool
}

// Launch reports the hand-off and calls the entry point's OnLaunch.
// It may only be called once.
func (h *Handle) Launch() (err error) {
	h.mu.Lock()
	if h.launched {
		h.mu.Unlock()
		return fmt.Errorf("%w: already launched", ErrEntryPoint)
	}
	h.launched = true
	h.mu.Unlock()

	h.sink.SetStatus(StatusHandoff)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: launch panicked: %v", ErrEntryPoint, r)
		}
	}()

	if err := h.entry.OnLaunch(h.env); err != nil {
		return fmt.Errorf("%w: launch: %w", ErrEntryPoint, err)
	}

	return nil
}

// Complete marks the entry point's startup as done. Calls after the first,
// including those made by the entry point itself, are ignored.
func (h *Handle) Complete() {
	h.env.Complete()
}

// EntryPoint returns the constructed entry point
func (h *Handle) EntryPoint() EntryPoint {
	return h.entry
}

// Env returns the environment handed to the entry point
func (h *Handle) Env() *Env {
	return h.env
}

// Wait blocks until an entry point that outlives OnLaunch has finished.
// It returns nil at once for entry points that do not.
func (h *Handle) Wait() error {
	if w, ok := h.entry.(Waiter); ok {
		return w.Wait()
	}
	return nil
}
