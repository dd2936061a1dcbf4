package cache

import (
	"fmt"
	"io"
	"os"

	"github.com/OneOfOne/xxhash"
)

// signatureSampleBytes bounds how much of the file the signature hashes.
// One megabyte from the head catches re-encodes and edits without paying
// a full-file read on every cache lookup.
const signatureSampleBytes = 1 << 20

// Signature identifies a file's current content: size, modification time
// and a hash of the first megabyte, any of which changing invalidates
// every cache entry keyed by it.
func Signature(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat input: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	head := make([]byte, signatureSampleBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read input head: %w", err)
	}

	sum := xxhash.Checksum64(head[:n])
	return fmt.Sprintf("%d:%d:%016x", info.Size(), info.ModTime().UnixNano(), sum), nil
}
