package checksum

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
)

func TestSum(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{
			name:  "empty_stream",
			input: "",
			want:  1,
		},
		{
			name:  "known_vector",
			input: "Wikipedia",
			want:  0x11E60398,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sum(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Sum(%q) = %d, want %d", tt.input, got, tt.want)
			}
			if b := Bytes([]byte(tt.input)); b != tt.want {
				t.Errorf("Bytes(%q) = %d, want %d", tt.input, b, tt.want)
			}
		})
	}
}

func TestSumLargerThanBuffer(t *testing.T) {
	data := bytes.Repeat([]byte("launcher-artifact"), BufferSize)

	// HalfReader hides WriterTo so the buffered path is used
	got, err := Sum(iotest.HalfReader(bytes.NewReader(data)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := Bytes(data); got != want {
		t.Errorf("chunked checksum %d differs from one-shot %d", got, want)
	}
}

func TestFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "core.bin")
	if err := os.WriteFile(path, []byte("Wikipedia"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if got != 0x11E60398 {
		t.Errorf("File checksum = %d, want %d", got, 0x11E60398)
	}

	if _, err := File(filepath.Join(tmpDir, "missing.bin")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
