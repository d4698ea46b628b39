// Package store is the filesystem-backed document store for a user's data
// area: plan markdown, session notes, the CSV training log, and JSON
// profiles. Writes are atomic (temp file, fsync, backup, rename) and
// serialized per path, so a patch can never be observed half-written and two
// writers cannot interleave on the same document.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store roots all paths at a data directory. Paths are always relative,
// slash-separated, and must stay inside the root.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir. The directory itself is created lazily
// by the first write.
func New(dir string) *Store {
	return &Store{root: dir, locks: make(map[string]*sync.Mutex)}
}

// Root returns the data directory the store is rooted at.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("path %q escapes data root", rel)
	}
	return filepath.Join(s.root, clean), nil
}

// pathLock returns the mutex guarding one relative path, creating it on
// first use.
func (s *Store) pathLock(rel string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[rel]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[rel] = l
	return l
}

// Read returns a document's content. A missing document is reported via
// ok=false with a nil error; only real I/O failures surface as errors.
func (s *Store) Read(rel string) ([]byte, bool, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", rel, err)
	}
	return data, true, nil
}

// Exists reports whether a document is present.
func (s *Store) Exists(rel string) bool {
	path, err := s.resolve(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// List returns the sorted file names directly inside a directory, skipping
// subdirectories. A missing directory yields an empty listing, never an
// error: callers treat it as "nothing configured yet".
func (s *Store) List(relDir string) ([]string, error) {
	path, err := s.resolve(relDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", relDir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Write replaces a document's content atomically, taking the document's path
// lock for the duration. The previous content, if any, is kept as <name>.bak.
func (s *Store) Write(rel string, content []byte) error {
	lock := s.pathLock(rel)
	lock.Lock()
	defer lock.Unlock()
	return s.writeLocked(rel, content)
}

// Update applies fn to the current content under the document's path lock
// and writes the result, closing the read-modify-write race between
// concurrent editors of the same document. ok=false from fn aborts without
// writing.
func (s *Store) Update(rel string, fn func(current []byte, exists bool) ([]byte, bool)) error {
	lock := s.pathLock(rel)
	lock.Lock()
	defer lock.Unlock()

	path, err := s.resolve(rel)
	if err != nil {
		return err
	}
	current, readErr := os.ReadFile(path)
	exists := readErr == nil
	if readErr != nil && !errors.Is(readErr, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", rel, readErr)
	}

	next, ok := fn(current, exists)
	if !ok {
		return nil
	}
	return s.writeLocked(rel, next)
}

// writeLocked performs the atomic replace. Callers hold the path lock.
func (s *Store) writeLocked(rel string, content []byte) error {
	path, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".stride-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Re-read and compare before the rename; a short or corrupt write must
	// never replace a good document.
	written, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("verify temp file: %w", err)
	}
	if !bytes.Equal(written, content) {
		return fmt.Errorf("verify temp file for %s: content mismatch", rel)
	}

	// Keep the previous version around; a bad agent edit is recoverable by
	// hand from the .bak.
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
