// Package platform describes the host the launcher runs on and where its
// per-user data lives.
//
// Detection uses runtime for OS and architecture and gopsutil for Linux
// distribution details. Detection of the distribution is best effort: a
// failure leaves the distro fields empty rather than failing the launch.
package platform

import "context"

// Operating system names as reported by runtime.GOOS.
const (
	OSLinux   = "linux"
	OSDarwin  = "darwin"
	OSWindows = "windows"
)

// Info contains platform detection information.
type Info struct {
	OS      string // "linux", "darwin", "windows"
	Arch    string // normalized, e.g. "amd64", "arm64"
	ArchRaw string // original value before normalization
	Distro  string // distro ID (Linux only, e.g. "ubuntu")
	Family  string // distro family (Linux only, e.g. "debian")
	Version string // distro version (Linux only)
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == OSLinux
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == OSDarwin
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == OSWindows
}

// String renders the platform as os/arch, with the distro appended when known.
func (i *Info) String() string {
	s := i.OS + "/" + i.Arch
	if i.Distro != "" {
		s += " (" + i.Distro
		if i.Version != "" {
			s += " " + i.Version
		}
		s += ")"
	}
	return s
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// Static is a Detector that always returns the same Info.
type Static Info

// Detect returns a copy of the fixed Info.
func (s Static) Detect(ctx context.Context) (*Info, error) {
	info := Info(s)
	return &info, nil
}
