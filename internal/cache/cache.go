// Package cache makes the local artifact cache match a manifest descriptor.
//
// Artifacts are compared by size and Adler-32 checksum. Stale artifacts are
// downloaded one at a time in manifest order into a temporary file next to
// their target and renamed into place only once the whole stream has been
// copied, so an interrupted download never leaves a partial artifact behind.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"

	"github.com/fossabot/launcher-2/internal/fetch"
	"github.com/fossabot/launcher-2/internal/logging"
	"github.com/fossabot/launcher-2/internal/manifest"
	"github.com/fossabot/launcher-2/internal/progress"
)

// DefaultChunkSize is the copy buffer used when Config.ChunkSize is unset
const DefaultChunkSize = 64 * 1024

// Status texts reported while synchronizing
const (
	StatusDownloading = "Downloading file %s..."
	StatusUpToDate    = "Application is up to date."
	StatusFailed      = "Failed to download application file. Check your internet connection."
)

var (
	// ErrTransport is returned when an artifact cannot be downloaded.
	// The sync is abandoned and no later artifact is attempted.
	ErrTransport = errors.New("artifact transport failed")
	// ErrDigest is returned alongside ErrTransport when downloaded bytes do
	// not match the artifact's digest
	ErrDigest = errors.New("artifact digest mismatch")
)

// Config holds configuration for the synchronizer
type Config struct {
	// Fetcher opens artifact streams (required)
	Fetcher fetch.Opener
	// Sink receives status and progress
	Sink progress.Sink
	// Log receives per-artifact details
	Log logrus.FieldLogger
	// ChunkSize is the copy buffer size; DefaultChunkSize when zero
	ChunkSize int
}

// Result summarizes a Sync call
type Result struct {
	// Checked is the number of artifacts inspected
	Checked int
	// Downloaded lists the artifact paths fetched, in order
	Downloaded []string
	// Bytes is the number of bytes copied
	Bytes int64
}

// UpToDate reports whether nothing needed downloading
func (r *Result) UpToDate() bool {
	return len(r.Downloaded) == 0
}

// Synchronizer downloads stale artifacts into a cache root
type Synchronizer struct {
	fetcher   fetch.Opener
	sink      progress.Sink
	log       logrus.FieldLogger
	chunkSize int
}

// New creates a synchronizer
func New(config Config) *Synchronizer {
	chunkSize := config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Synchronizer{
		fetcher:   config.Fetcher,
		sink:      progress.Or(config.Sink),
		log:       logging.Or(config.Log),
		chunkSize: chunkSize,
	}
}

// Sync downloads every artifact of d that is missing or stale under root.
// When nothing is stale it reports full progress without any network I/O.
// A transport failure aborts the call with an error wrapping ErrTransport;
// progress is left where it was. Filesystem errors are returned as is.
func (s *Synchronizer) Sync(ctx context.Context, d *manifest.Descriptor, root string) (*Result, error) {
	stale, err := Stale(d, root)
	if err != nil {
		return nil, err
	}

	result := &Result{Checked: len(d.Artifacts)}

	if len(stale) == 0 {
		s.sink.SetProgress(1)
		s.sink.SetStatus(StatusUpToDate)
		return result, nil
	}

	var total int64
	for _, a := range stale {
		total += a.Size
	}

	t := &tracker{sink: s.sink, total: total}
	t.report()

	buf := make([]byte, s.chunkSize)
	for _, a := range stale {
		s.sink.SetStatus(fmt.Sprintf(StatusDownloading, a.Path))

		url := manifest.ArtifactURL(d.URI, a.Path)
		log := s.log.WithFields(logrus.Fields{
			"artifact": a.Path,
			"size":     a.Size,
			"url":      url,
		})

		n, err := s.download(ctx, url, a, root, buf, t)
		result.Bytes += n
		if err != nil {
			if errors.Is(err, ErrTransport) {
				log.WithError(err).Error("Failed to download artifact")
				s.sink.SetStatus(StatusFailed)
			}
			return result, err
		}

		log.WithField("bytes", n).Debug("Downloaded artifact")
		result.Downloaded = append(result.Downloaded, a.Path)
	}

	s.sink.SetProgress(1)

	return result, nil
}

// download streams one artifact into place and returns the bytes copied
func (s *Synchronizer) download(ctx context.Context, url string, a manifest.Artifact, root string, buf []byte, t *tracker) (int64, error) {
	src, err := s.fetcher.Open(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer src.Close()

	destPath := a.LocalPath(root)
	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("create artifact directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(destDir, filepath.Base(destPath)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Track whether we need to clean up the temp file
	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	var dst io.Writer = tmpFile
	var verifier digest.Verifier
	if a.Digest != "" {
		verifier = a.Digest.Verifier()
		dst = io.MultiWriter(tmpFile, verifier)
	}

	n, err := copyChunks(dst, src, buf, t)
	if err != nil {
		return n, err
	}

	if verifier != nil && !verifier.Verified() {
		return n, fmt.Errorf("%w: %w: %s", ErrTransport, ErrDigest, a.Digest)
	}

	// CreateTemp creates owner-only files; cached artifacts are world readable
	if err := tmpFile.Chmod(0644); err != nil {
		return n, fmt.Errorf("chmod temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return n, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return n, fmt.Errorf("rename temp file: %w", err)
	}
	cleanupNeeded = false

	return n, nil
}

// copyChunks copies src to dst one buffer at a time, reporting progress
// after every chunk. Read errors are transport failures; write errors are not.
func copyChunks(dst io.Writer, src io.Reader, buf []byte, t *tracker) (int64, error) {
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, fmt.Errorf("write artifact: %w", werr)
			}
			if nw != nr {
				return written, fmt.Errorf("write artifact: %w", io.ErrShortWrite)
			}
			t.add(int64(nr))
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("%w: read stream: %v", ErrTransport, rerr)
		}
	}
}

// tracker converts downloaded bytes into a progress fraction of the total
type tracker struct {
	sink       progress.Sink
	total      int64
	downloaded int64
}

func (t *tracker) add(n int64) {
	t.downloaded += n
	t.report()
}

func (t *tracker) report() {
	if t.total <= 0 {
		return
	}
	t.sink.SetProgress(progress.Clamp(float64(t.downloaded) / float64(t.total)))
}
