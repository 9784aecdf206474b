package compose

import (
	"os"
	"strings"
	"sync"

	"github.com/fossabot/launcher-2/internal/manifest"
	"github.com/fossabot/launcher-2/internal/progress"
)

// Env is what a running entry point sees of the launcher: a way to report
// status back and a description of the cache it was composed from.
type Env struct {
	sink       progress.Sink
	root       string
	search     *SearchPath
	descriptor *manifest.Descriptor
	args       []string

	once       sync.Once
	onComplete func()
}

// Status reports text to the progress sink
func (e *Env) Status(text string) {
	e.sink.SetStatus(text)
}

// Progress reports an absolute fraction, clamped to [0,1]
func (e *Env) Progress(fraction float64) {
	e.sink.SetProgress(progress.Clamp(fraction))
}

// AddProgress reports a progress increment
func (e *Env) AddProgress(delta float64) {
	e.sink.AddProgress(delta)
}

// Complete signals that the entry point has finished its startup work.
// Only the first call reaches the entry point's OnComplete.
func (e *Env) Complete() {
	e.once.Do(func() {
		if e.onComplete != nil {
			e.onComplete()
		}
	})
}

// Root returns the absolute cache root
func (e *Env) Root() string {
	return e.root
}

// SearchPath returns every cached artifact's absolute path
func (e *Env) SearchPath() []string {
	return e.search.Paths()
}

// Descriptor returns a copy of the descriptor the cache was synced to
func (e *Env) Descriptor() *manifest.Descriptor {
	return e.descriptor.Clone()
}

// Args returns the extra arguments configured for the entry point
func (e *Env) Args() []string {
	return append([]string(nil), e.args...)
}

// Environ returns the process environment with artifact directories
// prepended to PATH
func (e *Env) Environ() []string {
	environ := os.Environ()
	out := make([]string, 0, len(environ)+1)
	current := ""
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.EqualFold(k, "PATH") {
			current = v
			continue
		}
		out = append(out, kv)
	}
	return append(out, "PATH="+e.search.PATHValue(current))
}
