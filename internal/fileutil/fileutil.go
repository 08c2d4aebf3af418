// Package fileutil holds file copy helpers used when delivering broadcasts.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// CopyAtomic streams src into dst through a pending file in dst's directory,
// so a reader never observes a partial dst. The copy is checked against the
// source size and SHA256 before it replaces dst. It returns the bytes copied.
func CopyAtomic(src, dst string) (int64, error) {
	return CopyAtomicMode(src, dst, 0o644)
}

// CopyAtomicMode is CopyAtomic with an explicit mode for dst.
func CopyAtomicMode(src, dst string, mode os.FileMode) (int64, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	if srcInfo.IsDir() {
		return 0, fmt.Errorf("copy %s: source is a directory", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	pending, err := renameio.NewPendingFile(dst,
		renameio.WithTempDir(filepath.Dir(dst)),
		renameio.WithPermissions(mode),
	)
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	srcHasher := sha256.New()
	written, err := io.Copy(pending, io.TeeReader(in, srcHasher))
	if err != nil {
		return written, err
	}
	if written != srcInfo.Size() {
		return written, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}

	dstHasher := sha256.New()
	if _, err := pending.Seek(0, io.SeekStart); err != nil {
		return written, fmt.Errorf("rewind pending file: %w", err)
	}
	if _, err := io.Copy(dstHasher, pending.File); err != nil {
		return written, fmt.Errorf("hash pending file: %w", err)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		return written, fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return written, fmt.Errorf("replace %s: %w", dst, err)
	}
	return written, nil
}
