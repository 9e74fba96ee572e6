// Package ioutil is the filesystem resource manager external collaborator
// of spec.md §1: scoped file readers/writers for source import resolution
// and ROM output, with failures mapped to fatal diagnostics by callers
// (spec.md §5 "Resource acquisition for files is scoped to the reader/
// writer objects owned by the resource manager; failures map to fatal
// diagnostics.").
package ioutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Reader locates and reads source files across a root directory plus a
// repeatable list of import search directories (spec.md §6 "-I DIR").
type Reader struct {
	ImportDirs []string
}

// NewReader returns a Reader that additionally searches importDirs, in
// order, after a path fails to resolve relative to the importing file.
func NewReader(importDirs []string) *Reader {
	return &Reader{ImportDirs: importDirs}
}

// Resolve finds the file path names, first relative to fromDir (the
// directory of the importing file, "" for the root source), then under each
// configured import directory, and returns its cleaned absolute form plus
// whether it was found.
func (r *Reader) Resolve(fromDir, path string) (string, bool) {
	if filepath.IsAbs(path) {
		if fileExists(path) {
			return filepath.Clean(path), true
		}
		return "", false
	}
	candidates := make([]string, 0, 1+len(r.ImportDirs))
	if fromDir != "" {
		candidates = append(candidates, filepath.Join(fromDir, path))
	} else {
		candidates = append(candidates, path)
	}
	for _, dir := range r.ImportDirs {
		candidates = append(candidates, filepath.Join(dir, path))
	}
	for _, c := range candidates {
		if fileExists(c) {
			abs, err := filepath.Abs(c)
			if err != nil {
				return filepath.Clean(c), true
			}
			return abs, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadFile reads path's full contents, or stdin's if path is "-" (spec.md §6
// "positional: one input path, or `-` for stdin").
func (r *Reader) ReadFile(path string) (string, error) {
	if path == "-" {
		data, err := readAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("ioutil: reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ioutil: reading %s: %w", path, err)
	}
	return string(data), nil
}

func readAll(f *os.File) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 32*1024)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err.Error() == "EOF" {
				return buf, nil
			}
			return buf, err
		}
	}
}

// Writer owns the single output file a compilation produces (spec.md §6
// `-o FILE`). Create takes an advisory flock on unix (lock_unix.go) so two
// concurrent anvilc invocations targeting the same path fail fast instead
// of interleaving their writes; on Windows the lock is a no-op
// (lock_other.go).
type Writer struct {
	path string
	f    *os.File
}

// Create opens path for writing, truncating any existing content, and
// takes the platform's advisory lock on it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ioutil: creating %s: %w", path, err)
	}
	if err := lockExclusive(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("ioutil: locking %s: %w", path, err)
	}
	return &Writer{path: path, f: f}, nil
}

// Write appends data to the output file.
func (w *Writer) Write(data []byte) error {
	if _, err := w.f.Write(data); err != nil {
		return fmt.Errorf("ioutil: writing %s: %w", w.path, err)
	}
	return nil
}

// Close releases the lock and closes the file.
func (w *Writer) Close() error {
	unlock(w.f)
	return w.f.Close()
}
