// Package checksum computes the content checksum recorded for every artifact
// in a launcher manifest.
//
// The checksum is Adler-32, widened to int64 so it fits the manifest's
// integer checksum attribute. It is a change detector, not an integrity
// guarantee; artifacts that need tamper resistance carry a digest as well.
package checksum

import (
	"fmt"
	"hash/adler32"
	"io"
	"os"
)

// BufferSize is the read size used when hashing a stream
const BufferSize = 16 * 1024

// Sum calculates the checksum of everything readable from r
func Sum(r io.Reader) (int64, error) {
	hasher := adler32.New()
	buf := make([]byte, BufferSize)

	if _, err := io.CopyBuffer(hasher, r, buf); err != nil {
		return 0, err
	}

	return int64(hasher.Sum32()), nil
}

// Bytes calculates the checksum of an in-memory buffer
func Bytes(b []byte) int64 {
	return int64(adler32.Checksum(b))
}

// File calculates the checksum of the file at path
func File(path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	sum, err := Sum(file)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	return sum, nil
}
