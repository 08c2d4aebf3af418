package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// jpegHeader is the SOI marker plus a JFIF APP0 segment start.
var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

// WriteSnapshot writes a size-byte file that starts like a JPEG and ends with
// the EOI marker, creating parent directories. Sizes below the marker length
// are padded up to it.
func WriteSnapshot(t testing.TB, path string, size int) {
	t.Helper()
	body := append([]byte{}, jpegHeader...)
	if pad := size - len(jpegHeader) - 2; pad > 0 {
		body = append(body, bytes.Repeat([]byte{0x42}, pad)...)
	}
	body = append(body, 0xFF, 0xD9)
	mustWrite(t, path, body)
}

// WriteVideo writes a placeholder broadcast file of the given size.
func WriteVideo(t testing.TB, path string, size int) {
	t.Helper()
	if size < 1 {
		size = 1
	}
	mustWrite(t, path, bytes.Repeat([]byte{0x00}, size))
}

func mustWrite(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
