package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/opencontainers/go-digest"

	"github.com/fossabot/launcher-2/internal/checksum"
	"github.com/fossabot/launcher-2/internal/fetch"
	"github.com/fossabot/launcher-2/internal/manifest"
	"github.com/fossabot/launcher-2/internal/progress"
	"github.com/fossabot/launcher-2/internal/testutil"
)

// fakeOpener serves in-memory streams and counts every Open
type fakeOpener struct {
	mu      sync.Mutex
	streams map[string]func() io.Reader
	opened  []string
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{streams: map[string]func() io.Reader{}}
}

func (f *fakeOpener) serve(location string, data []byte) {
	f.streams[location] = func() io.Reader { return bytes.NewReader(data) }
}

func (f *fakeOpener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, location)
	stream, ok := f.streams[location]
	if !ok {
		return nil, fmt.Errorf("connection refused: %s", location)
	}
	return io.NopCloser(stream()), nil
}

func (f *fakeOpener) opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

func artifactFor(path string, data []byte) manifest.Artifact {
	return manifest.Artifact{
		Path:     path,
		Checksum: checksum.Bytes(data),
		Size:     int64(len(data)),
	}
}

func content(n int, seed int64) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

func TestNeedsUpdate(t *testing.T) {
	root := t.TempDir()
	data := []byte("core artifact")
	a := artifactFor("lib/core.bin", data)

	tests := []struct {
		name     string
		setup    func(t *testing.T)
		want     bool
		wantHash bool
	}{
		{
			name:  "missing",
			setup: func(t *testing.T) {},
			want:  true,
		},
		{
			name:  "size_differs",
			setup: func(t *testing.T) { testutil.WriteFile(t, root, a.Path, []byte("short")) },
			want:  true,
		},
		{
			name: "checksum_differs",
			setup: func(t *testing.T) {
				testutil.WriteFile(t, root, a.Path, []byte("CORE ARTIFACT"))
			},
			want:     true,
			wantHash: true,
		},
		{
			name:     "matches",
			setup:    func(t *testing.T) { testutil.WriteFile(t, root, a.Path, data) },
			want:     false,
			wantHash: true,
		},
		{
			name: "directory_in_place",
			setup: func(t *testing.T) {
				os.RemoveAll(a.LocalPath(root))
				if err := os.MkdirAll(a.LocalPath(root), 0755); err != nil {
					t.Fatal(err)
				}
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)

			got, err := NeedsUpdate(a, root)
			if err != nil {
				t.Fatalf("NeedsUpdate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NeedsUpdate() = %v, want %v", got, tt.want)
			}

			entry, err := Inspect(a, root)
			if err != nil {
				t.Fatalf("Inspect() error = %v", err)
			}
			if entry.Hashed != tt.wantHash {
				t.Errorf("Hashed = %v, want %v", entry.Hashed, tt.wantHash)
			}
		})
	}
}

// needsUpdate is false exactly when size and checksum both match
func TestNeedsUpdate_Property(t *testing.T) {
	root := t.TempDir()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		onDisk := content(rng.Intn(512), int64(i))
		testutil.WriteFile(t, root, "f.bin", onDisk)

		a := artifactFor("f.bin", onDisk)
		switch rng.Intn(3) {
		case 1:
			a.Size++
		case 2:
			a.Checksum ^= 1
		}

		got, err := NeedsUpdate(a, root)
		if err != nil {
			t.Fatalf("NeedsUpdate() error = %v", err)
		}
		want := !(int64(len(onDisk)) == a.Size && checksum.Bytes(onDisk) == a.Checksum)
		if got != want {
			t.Fatalf("iteration %d: NeedsUpdate() = %v, want %v", i, got, want)
		}
	}
}

func TestStale_Order(t *testing.T) {
	root := t.TempDir()
	fresh := []byte("fresh")
	testutil.WriteFile(t, root, "b.bin", fresh)

	d := &manifest.Descriptor{
		URI:        "http://x/y",
		EntryPoint: "m",
		Artifacts: []manifest.Artifact{
			artifactFor("c.bin", []byte("c")),
			artifactFor("b.bin", fresh),
			artifactFor("a.bin", []byte("a")),
		},
	}

	stale, err := Stale(d, root)
	if err != nil {
		t.Fatalf("Stale() error = %v", err)
	}
	if len(stale) != 2 || stale[0].Path != "c.bin" || stale[1].Path != "a.bin" {
		t.Errorf("Stale() = %+v, want [c.bin a.bin]", stale)
	}
}

func TestSync_UpToDateDoesNoIO(t *testing.T) {
	root := t.TempDir()
	data := []byte("already here")
	testutil.WriteFile(t, root, "core.bin", data)

	opener := newFakeOpener()
	recorder := progress.NewRecorder()
	s := New(Config{Fetcher: opener, Sink: recorder})

	d := &manifest.Descriptor{URI: "http://x/y", EntryPoint: "m", Artifacts: []manifest.Artifact{artifactFor("core.bin", data)}}
	result, err := s.Sync(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if !result.UpToDate() || result.Bytes != 0 || result.Checked != 1 {
		t.Errorf("Sync() = %+v, want up to date", result)
	}
	if opener.opens() != 0 {
		t.Errorf("Open called %d times, want 0", opener.opens())
	}
	if recorder.Fraction() != 1 {
		t.Errorf("Fraction() = %v, want 1", recorder.Fraction())
	}
	if recorder.Status() != StatusUpToDate {
		t.Errorf("Status() = %q, want %q", recorder.Status(), StatusUpToDate)
	}
}

func TestSync_DownloadsOverHTTP(t *testing.T) {
	root := testutil.SetupTestEnv(t)
	core := content(1024, 1)

	var requests []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.URL.Path)
		mu.Unlock()
		if r.URL.Path != "/y/core.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(core)
	}))
	defer server.Close()

	d := &manifest.Descriptor{
		Timestamp:  150,
		URI:        server.URL + "/y",
		EntryPoint: "m",
		Artifacts:  []manifest.Artifact{artifactFor("core.bin", core)},
	}

	s := New(Config{Fetcher: fetch.New(fetch.Options{})})
	result, err := s.Sync(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(result.Downloaded) != 1 || result.Downloaded[0] != "core.bin" || result.Bytes != 1024 {
		t.Errorf("Sync() = %+v, want core.bin with 1024 bytes", result)
	}

	needs, err := NeedsUpdate(d.Artifacts[0], root)
	if err != nil {
		t.Fatalf("NeedsUpdate() error = %v", err)
	}
	if needs {
		t.Error("core.bin still needs update after sync")
	}

	// Second sync is a no-op
	again, err := s.Sync(context.Background(), d, root)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if again.Bytes != 0 || !again.UpToDate() {
		t.Errorf("second Sync() = %+v, want no downloads", again)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 1 {
		t.Errorf("requests = %v, want exactly one", requests)
	}
}

func TestSync_ProgressPerChunk(t *testing.T) {
	root := t.TempDir()
	big := content(10*1024, 2)
	small := content(2*1024, 3)

	opener := newFakeOpener()
	opener.serve("http://x/y/big.bin", big)
	opener.serve("http://x/y/small.bin", small)

	recorder := progress.NewRecorder()
	s := New(Config{Fetcher: opener, Sink: recorder, ChunkSize: 1024})

	d := &manifest.Descriptor{
		URI:        "http://x/y/",
		EntryPoint: "m",
		Artifacts:  []manifest.Artifact{artifactFor("big.bin", big), artifactFor("small.bin", small)},
	}
	if _, err := s.Sync(context.Background(), d, root); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	var fractions []float64
	for _, e := range recorder.Events() {
		if e.Kind == progress.KindProgress {
			fractions = append(fractions, e.Value)
		}
	}

	// Initial report, one per 1 KiB chunk, final 1.0
	if len(fractions) < 12 {
		t.Fatalf("got %d progress updates, want at least 12: %v", len(fractions), fractions)
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Fatalf("progress went backwards at %d: %v", i, fractions)
		}
	}
	if last := fractions[len(fractions)-1]; last != 1 {
		t.Errorf("final progress = %v, want 1", last)
	}

	wantStatuses := []string{"Downloading file big.bin...", "Downloading file small.bin..."}
	statuses := recorder.Statuses()
	if len(statuses) != 2 || statuses[0] != wantStatuses[0] || statuses[1] != wantStatuses[1] {
		t.Errorf("statuses = %q, want %q", statuses, wantStatuses)
	}
}

func TestSync_InterruptedStream(t *testing.T) {
	root := t.TempDir()
	data := content(4096, 4)
	a := artifactFor("lib/core.bin", data)
	later := artifactFor("lib/later.bin", []byte("later"))

	opener := newFakeOpener()
	opener.streams["http://x/y/lib/core.bin"] = func() io.Reader {
		return io.MultiReader(bytes.NewReader(data[:1000]), iotest.ErrReader(errors.New("connection reset by peer")))
	}
	opener.serve("http://x/y/lib/later.bin", []byte("later"))

	recorder := progress.NewRecorder()
	s := New(Config{Fetcher: opener, Sink: recorder})

	d := &manifest.Descriptor{URI: "http://x/y", EntryPoint: "m", Artifacts: []manifest.Artifact{a, later}}
	_, err := s.Sync(context.Background(), d, root)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Sync() error = %v, want ErrTransport", err)
	}

	if _, err := os.Stat(a.LocalPath(root)); !os.IsNotExist(err) {
		t.Error("partial artifact was renamed into place")
	}

	leftovers, _ := filepath.Glob(filepath.Join(root, "lib", "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}

	// Later artifacts are not attempted
	if opener.opens() != 1 {
		t.Errorf("Open called %d times, want 1", opener.opens())
	}

	if recorder.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", recorder.Status(), StatusFailed)
	}
	if recorder.Fraction() >= 1 {
		t.Errorf("Fraction() = %v, failure must not report completion", recorder.Fraction())
	}

	needs, err := NeedsUpdate(a, root)
	if err != nil {
		t.Fatalf("NeedsUpdate() error = %v", err)
	}
	if !needs {
		t.Error("interrupted artifact should still need update")
	}
}

func TestSync_UnreachableSource(t *testing.T) {
	root := t.TempDir()
	s := New(Config{Fetcher: newFakeOpener()})

	d := &manifest.Descriptor{URI: "http://x/y", EntryPoint: "m", Artifacts: []manifest.Artifact{artifactFor("a.bin", []byte("a"))}}
	_, err := s.Sync(context.Background(), d, root)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Sync() error = %v, want ErrTransport", err)
	}
}

func TestSync_Digest(t *testing.T) {
	data := []byte("payload with digest")

	tests := []struct {
		name    string
		digest  digest.Digest
		wantErr bool
	}{
		{"matching", digest.FromBytes(data), false},
		{"mismatched", digest.FromString("something else"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			opener := newFakeOpener()
			opener.serve("http://x/y/a.bin", data)

			a := artifactFor("a.bin", data)
			a.Digest = tt.digest
			d := &manifest.Descriptor{URI: "http://x/y", EntryPoint: "m", Artifacts: []manifest.Artifact{a}}

			_, err := New(Config{Fetcher: opener}).Sync(context.Background(), d, root)
			if tt.wantErr {
				if !errors.Is(err, ErrDigest) || !errors.Is(err, ErrTransport) {
					t.Fatalf("Sync() error = %v, want ErrDigest and ErrTransport", err)
				}
				if _, err := os.Stat(a.LocalPath(root)); !os.IsNotExist(err) {
					t.Error("artifact with bad digest was renamed into place")
				}
				return
			}
			if err != nil {
				t.Fatalf("Sync() error = %v", err)
			}
		})
	}
}

func TestSync_FilesystemFailure(t *testing.T) {
	root := t.TempDir()
	// A file where the artifact's parent directory should be
	testutil.WriteFile(t, root, "lib", []byte("blocker"))

	opener := newFakeOpener()
	opener.serve("http://x/y/lib/a.bin", []byte("a"))

	d := &manifest.Descriptor{URI: "http://x/y", EntryPoint: "m", Artifacts: []manifest.Artifact{artifactFor("lib/a.bin", []byte("a"))}}
	_, err := New(Config{Fetcher: opener}).Sync(context.Background(), d, root)
	if err == nil {
		t.Fatal("expected filesystem error")
	}
	if errors.Is(err, ErrTransport) {
		t.Errorf("filesystem failure reported as transport failure: %v", err)
	}
}

func TestSync_LocalSource(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	data := []byte("from a local release directory")
	testutil.WriteFile(t, src, "lib/a.bin", data)

	d := &manifest.Descriptor{
		URI:        fetch.FileURL(src),
		EntryPoint: "m",
		Artifacts:  []manifest.Artifact{artifactFor("lib/a.bin", data)},
	}

	result, err := New(Config{Fetcher: fetch.New(fetch.Options{})}).Sync(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Bytes != int64(len(data)) {
		t.Errorf("Bytes = %d, want %d", result.Bytes, len(data))
	}

	got, err := os.ReadFile(filepath.Join(root, "lib", "a.bin"))
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("cached content = %q, %v", got, err)
	}
}
