package manifest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
)

// xmlDescriptor is the on-disk shape of a Descriptor
type xmlDescriptor struct {
	XMLName  xml.Name `xml:"Application"`
	TS       int64    `xml:"ts,attr"`
	URI      string   `xml:"uri,attr"`
	Main     string   `xml:"main,attr"`
	Version  string   `xml:"version,attr"`
	CacheDir string   `xml:"cacheDir,attr"`
	// LauncherClass is the attribute name used by older manifest builders
	LauncherClass string    `xml:"launcherClass,attr,omitempty"`
	Files         []xmlFile `xml:"file"`
}

type xmlFile struct {
	File     string `xml:"file,attr"`
	Checksum int64  `xml:"checksum,attr"`
	Size     int64  `xml:"size,attr"`
	Digest   string `xml:"digest,attr,omitempty"`
}

// Parse decodes and validates a descriptor from raw bytes
func Parse(data []byte) (*Descriptor, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads and validates a descriptor from r
func Decode(r io.Reader) (*Descriptor, error) {
	var raw xmlDescriptor
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode xml: %v", ErrMalformed, err)
	}

	d := &Descriptor{
		Timestamp:  raw.TS,
		URI:        raw.URI,
		EntryPoint: raw.Main,
		Version:    raw.Version,
		CacheDir:   raw.CacheDir,
	}

	// Fall back to the legacy attribute name
	if d.EntryPoint == "" {
		d.EntryPoint = raw.LauncherClass
	}

	if len(raw.Files) > 0 {
		d.Artifacts = make([]Artifact, 0, len(raw.Files))
	}
	for _, f := range raw.Files {
		d.Artifacts = append(d.Artifacts, Artifact{
			Path:     f.File,
			Checksum: f.Checksum,
			Size:     f.Size,
			Digest:   digest.Digest(f.Digest),
		})
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

// Marshal encodes a descriptor as indented XML
func Marshal(d *Descriptor) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes a descriptor to w as indented XML with a header
func Encode(w io.Writer, d *Descriptor) error {
	if d == nil {
		return fmt.Errorf("descriptor is nil")
	}

	raw := xmlDescriptor{
		TS:       d.Timestamp,
		URI:      d.URI,
		Main:     d.EntryPoint,
		Version:  d.Version,
		CacheDir: d.CacheDir,
	}
	for _, a := range d.Artifacts {
		raw.Files = append(raw.Files, xmlFile{
			File:     a.Path,
			Checksum: a.Checksum,
			Size:     a.Size,
			Digest:   a.Digest.String(),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush xml: %w", err)
	}

	// Trailing newline keeps the file friendly to line-based tools
	_, err := io.WriteString(w, "\n")
	return err
}
