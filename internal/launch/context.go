package launch

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fossabot/launcher-2/internal/config"
	"github.com/fossabot/launcher-2/internal/logging"
	"github.com/fossabot/launcher-2/internal/platform"
	"github.com/fossabot/launcher-2/internal/progress"
)

// Context carries everything one launch needs. It is built once and
// passed to every stage; nothing in the pipeline reads global state.
type Context struct {
	// ID identifies this launch in logs
	ID string
	// Config is the effective launcher configuration
	Config *config.Config
	// Platform describes the host
	Platform *platform.Info
	// DataDir is the per-user directory holding caches
	DataDir string
	// Log is tagged with the session ID
	Log logrus.FieldLogger
	// Sink receives status and progress from every stage
	Sink progress.Sink
}

// NewContext resolves the data directory and tags the logger for a launch
func NewContext(cfg *config.Config, info *platform.Info, sink progress.Sink, log logrus.FieldLogger) (*Context, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if info == nil {
		return nil, fmt.Errorf("platform info is required")
	}

	dataDir, err := platform.ResolveDataDir(info, cfg.App, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}

	id := uuid.New().String()

	return &Context{
		ID:       id,
		Config:   cfg,
		Platform: info,
		DataDir:  dataDir,
		Log:      logging.Or(log).WithField("session", id),
		Sink:     progress.Or(sink),
	}, nil
}
