package normalize

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileHash computes the hex-encoded SHA-256 of the file at path.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// ContentHash computes a hex-encoded SHA-256 over named blobs. Each name and
// blob is length-prefixed so boundaries cannot shift between inputs.
func ContentHash(names []string, blobs [][]byte) string {
	h := sha256.New()
	buf := make([]byte, 8)
	for i, name := range names {
		binary.LittleEndian.PutUint64(buf, uint64(len(name)))
		h.Write(buf)
		h.Write([]byte(name))
		binary.LittleEndian.PutUint64(buf, uint64(len(blobs[i])))
		h.Write(buf)
		h.Write(blobs[i])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// RowHashFromValues computes a SHA-256 from ordered values for a simpler calling convention.
func RowHashFromValues(rowNum int64, values ...string) []byte {
	h := sha256.New()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(rowNum))
	h.Write(buf)
	for _, v := range values {
		h.Write([]byte(strings.TrimSpace(v)))
		h.Write([]byte{0})
	}
	return h.Sum(nil)
}
