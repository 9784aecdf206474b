package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DataDirEnv overrides the resolved data directory when set.
const DataDirEnv = "LAUNCHER_DATA_DIR"

// DataDir returns the per-user directory an application named app keeps
// its cache in:
//
//	darwin   ~/Library/Application Support/<app>
//	windows  %APPDATA%\<app>, or ~/AppData/Roaming/<app> without APPDATA
//	other    ~/.<app>
func DataDir(info *Info, home, app string) string {
	switch info.OS {
	case OSDarwin:
		return filepath.Join(home, "Library", "Application Support", app)
	case OSWindows:
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, app)
		}
		return filepath.Join(home, "AppData", "Roaming", app)
	default:
		return filepath.Join(home, "."+app)
	}
}

// ResolveDataDir picks the data directory for app in priority order:
// the LAUNCHER_DATA_DIR environment variable, override, then the platform
// default under the user's home directory.
func ResolveDataDir(info *Info, app, override string) (string, error) {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return filepath.Abs(dir)
	}
	if override != "" {
		return filepath.Abs(override)
	}
	if app == "" {
		return "", errors.New("application name is empty")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return DataDir(info, home, app), nil
}
