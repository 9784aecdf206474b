package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/fossabot/launcher-2/internal/manifest"
	"github.com/fossabot/launcher-2/internal/progress"
	"github.com/fossabot/launcher-2/internal/testutil"
)

// recordingEntry counts lifecycle calls and drives Env from OnLaunch
type recordingEntry struct {
	mu        sync.Mutex
	launches  int
	completes int
	env       *Env
	launchErr error
}

func (e *recordingEntry) OnLaunch(env *Env) error {
	e.mu.Lock()
	e.launches++
	e.env = env
	e.mu.Unlock()

	if e.launchErr != nil {
		return e.launchErr
	}

	env.Status("Loading world...")
	env.Progress(0.5)
	env.AddProgress(0.25)
	env.Complete()
	env.Complete()
	return nil
}

func (e *recordingEntry) OnComplete() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completes++
}

func cachedDescriptor(t *testing.T, root string, entryPoint string, files map[string]string) *manifest.Descriptor {
	t.Helper()

	d := &manifest.Descriptor{Timestamp: 1, URI: "http://x/y", EntryPoint: entryPoint}
	for path, body := range files {
		testutil.WriteFile(t, root, path, []byte(body))
		d.Artifacts = append(d.Artifacts, manifest.Artifact{Path: path, Size: int64(len(body))})
	}
	return d
}

func TestCompose_Registry(t *testing.T) {
	root := t.TempDir()
	registry := NewRegistry()
	entry := &recordingEntry{}
	if err := registry.Register("spectral.Main", func() (EntryPoint, error) { return entry, nil }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	recorder := progress.NewRecorder()
	c := New(Config{Registry: registry, Sink: recorder})
	d := cachedDescriptor(t, root, "spectral.Main", map[string]string{
		"lib/core.bin":  "core",
		"lib/extra.bin": "extra",
		"res/data.pak":  "data",
	})

	h, err := c.Compose(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if h.EntryPoint() != entry {
		t.Error("EntryPoint() returned a different instance")
	}
	if entry.launches != 0 {
		t.Error("Compose must not launch the entry point")
	}

	if err := h.Launch(); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h.Complete()

	if entry.launches != 1 {
		t.Errorf("launches = %d, want 1", entry.launches)
	}
	if entry.completes != 1 {
		t.Errorf("completes = %d, want exactly 1", entry.completes)
	}

	statuses := recorder.Statuses()
	if len(statuses) != 2 || statuses[0] != StatusHandoff || statuses[1] != "Loading world..." {
		t.Errorf("statuses = %q", statuses)
	}
	if recorder.Fraction() != 0.75 {
		t.Errorf("Fraction() = %v, want 0.75", recorder.Fraction())
	}

	env := entry.env
	if len(env.SearchPath()) != 3 {
		t.Errorf("SearchPath() = %v, want 3 entries", env.SearchPath())
	}
	for _, p := range env.SearchPath() {
		if !filepath.IsAbs(p) {
			t.Errorf("search path entry %q is not absolute", p)
		}
	}
	if !filepath.IsAbs(env.Root()) {
		t.Errorf("Root() = %q is not absolute", env.Root())
	}
	if env.Descriptor().EntryPoint != "spectral.Main" {
		t.Errorf("Descriptor() = %+v", env.Descriptor())
	}
	if err := h.Wait(); err != nil {
		t.Errorf("Wait() = %v, want nil for in-process entry point", err)
	}
}

func TestCompose_Idempotent(t *testing.T) {
	root := t.TempDir()
	registry := NewRegistry()
	_ = registry.Register("m", func() (EntryPoint, error) { return &recordingEntry{}, nil })

	c := New(Config{Registry: registry})
	d := cachedDescriptor(t, root, "m", map[string]string{"a.bin": "a", "b.bin": "b"})

	for i := 0; i < 2; i++ {
		if _, err := c.Compose(context.Background(), d, root); err != nil {
			t.Fatalf("Compose() #%d error = %v", i+1, err)
		}
	}

	if n := len(c.SearchPath().Paths()); n != 2 {
		t.Errorf("search path has %d entries after composing twice, want 2", n)
	}
}

func TestCompose_Failures(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register("ok", func() (EntryPoint, error) { return &recordingEntry{}, nil })
	_ = registry.Register("fails", func() (EntryPoint, error) { return nil, errors.New("no display") })
	_ = registry.Register("panics", func() (EntryPoint, error) { panic("boom") })
	_ = registry.Register("nil", func() (EntryPoint, error) { return nil, nil })

	tests := []struct {
		name       string
		entryPoint string
		missing    bool
		errContain string
	}{
		{"unregistered", "org.example.Unknown", false, "no entry point registered"},
		{"construction_error", "fails", false, "no display"},
		{"construction_panic", "panics", false, "panic: boom"},
		{"nil_entry_point", "nil", false, "factory returned nil"},
		{"missing_artifact", "ok", true, "missing artifact"},
		{"exec_without_path", "exec:", false, "no path"},
		{"exec_unlisted", "exec:bin/other", false, "not an artifact"},
		{"plugin_bad_format", "plugin:lib/a.bin", false, "plugin:<path>#<Symbol>"},
		{"plugin_not_a_plugin", "plugin:lib/a.bin#New", false, "open plugin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			d := cachedDescriptor(t, root, tt.entryPoint, map[string]string{"lib/a.bin": "not a plugin"})
			if tt.missing {
				d.Artifacts = append(d.Artifacts, manifest.Artifact{Path: "lib/gone.bin", Size: 1})
			}

			_, err := New(Config{Registry: registry}).Compose(context.Background(), d, root)
			if !errors.Is(err, ErrEntryPoint) {
				t.Fatalf("Compose() error = %v, want ErrEntryPoint", err)
			}
			if !strings.Contains(err.Error(), tt.errContain) {
				t.Errorf("error %q does not mention %q", err, tt.errContain)
			}
		})
	}
}

func TestHandle_Launch(t *testing.T) {
	launchErr := errors.New("GPU init failed")

	t.Run("error_wrapped", func(t *testing.T) {
		registry := NewRegistry()
		_ = registry.Register("m", func() (EntryPoint, error) { return &recordingEntry{launchErr: launchErr}, nil })

		root := t.TempDir()
		h, err := New(Config{Registry: registry}).Compose(context.Background(), cachedDescriptor(t, root, "m", nil), root)
		if err != nil {
			t.Fatalf("Compose() error = %v", err)
		}

		err = h.Launch()
		if !errors.Is(err, ErrEntryPoint) || !errors.Is(err, launchErr) {
			t.Errorf("Launch() error = %v, want ErrEntryPoint wrapping the launch error", err)
		}
	})

	t.Run("only_once", func(t *testing.T) {
		registry := NewRegistry()
		entry := &recordingEntry{}
		_ = registry.Register("m", func() (EntryPoint, error) { return entry, nil })

		root := t.TempDir()
		h, err := New(Config{Registry: registry}).Compose(context.Background(), cachedDescriptor(t, root, "m", nil), root)
		if err != nil {
			t.Fatalf("Compose() error = %v", err)
		}

		if err := h.Launch(); err != nil {
			t.Fatalf("first Launch() error = %v", err)
		}
		if err := h.Launch(); err == nil {
			t.Error("second Launch() should fail")
		}
		if entry.launches != 1 {
			t.Errorf("launches = %d, want 1", entry.launches)
		}
	})
}

func TestCompose_Exec(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script entry point")
	}

	root := t.TempDir()
	script := "#!/bin/sh\necho \"$@\" > launched.txt\n"
	d := cachedDescriptor(t, root, "exec:bin/run.sh --mode demo", map[string]string{"bin/run.sh": script})
	// Downloads are not executable; the composer fixes that
	if err := os.Chmod(filepath.Join(root, "bin", "run.sh"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(Config{Registry: NewRegistry(), Args: []string{"--fullscreen"}})
	h, err := c.Compose(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if _, ok := h.EntryPoint().(*Process); !ok {
		t.Fatalf("EntryPoint() = %T, want *Process", h.EntryPoint())
	}

	if err := h.Launch(); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	out, err := os.ReadFile(filepath.Join(root, "launched.txt"))
	if err != nil {
		t.Fatalf("process did not run in the cache root: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "--mode demo --fullscreen" {
		t.Errorf("process args = %q", got)
	}
}

func TestProcess_WaitBeforeLaunch(t *testing.T) {
	if err := (&Process{Path: "x"}).Wait(); err == nil {
		t.Error("Wait() before launch should fail")
	}
}

func TestEnv_Environ(t *testing.T) {
	root := t.TempDir()
	t.Setenv("PATH", "/usr/bin")

	sp := NewSearchPath()
	sp.Extend(filepath.Join(root, "bin", "tool"))
	env := &Env{search: sp}

	var paths []string
	for _, kv := range env.Environ() {
		if strings.HasPrefix(strings.ToUpper(kv), "PATH=") {
			paths = append(paths, kv)
		}
	}
	if len(paths) != 1 {
		t.Fatalf("PATH entries = %v, want exactly one", paths)
	}
	if !strings.HasPrefix(paths[0], "PATH="+filepath.Join(root, "bin")) {
		t.Errorf("PATH = %q, want artifact directory first", paths[0])
	}
}

type stubEntry struct{}

func (stubEntry) OnLaunch(*Env) error { return nil }
func (stubEntry) OnComplete()         {}

func TestPluginFactory(t *testing.T) {
	plain := func() EntryPoint { return stubEntry{} }
	withErr := func() (EntryPoint, error) { return stubEntry{}, nil }
	var factory Factory = withErr
	var nilFactory Factory

	tests := []struct {
		name    string
		sym     interface{}
		wantErr bool
	}{
		{"plain_constructor", plain, false},
		{"constructor_with_error", withErr, false},
		{"factory_variable", &factory, false},
		{"nil_factory_variable", &nilFactory, true},
		{"wrong_type", func(int) EntryPoint { return nil }, true},
		{"not_a_function", new(int), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := pluginFactory(tt.sym)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("pluginFactory() error = %v", err)
			}
			if entry, err := f(); err != nil || entry == nil {
				t.Errorf("factory() = %v, %v", entry, err)
			}
		})
	}
}
