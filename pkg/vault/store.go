// Package vault is the document-store boundary: reading, writing, creating
// and listing notes. The agent core mutates the vault only through an
// accepted confirmation.
package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Listing holds the immediate children of one vault folder.
type Listing struct {
	Folders []string
	Files   []string
}

// Store is the collaborator interface the tool layer consumes. All methods
// fail with a descriptive error rather than silently no-op.
type Store interface {
	// Read returns the full text of the note at path.
	Read(path string) (string, error)
	// Write replaces the note at path. The note must exist.
	Write(path string, content string) error
	// Create writes a new note at path; it fails if one already exists.
	Create(path string, content string) error
	// Exists reports whether a note exists at path.
	Exists(path string) bool
	// List returns the immediate children of folder ("" means the root).
	List(folder string) (Listing, error)
	// EnsureDirectory creates folder (and parents) if missing.
	EnsureDirectory(folder string) error
	// Walk visits every note file under the root with its vault-relative
	// path.
	Walk(fn func(path string) error) error
}

// DirStore implements Store over a directory on disk. Paths are confined to
// the root: anything escaping it is an error.
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{root: filepath.Clean(root)}
}

func (s *DirStore) Root() string {
	return s.root
}

// resolve maps a vault-relative path onto the filesystem, rejecting escapes.
func (s *DirStore) resolve(path string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(path))
	full := filepath.Join(s.root, cleaned)
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the vault", path)
	}
	return full, nil
}

func (s *DirStore) Read(path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *DirStore) Write(path string, content string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); err != nil {
		return fmt.Errorf("cannot write %q: %w", path, err)
	}
	return os.WriteFile(full, []byte(content), 0o644)
}

func (s *DirStore) Create(path string, content string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); err == nil {
		return fmt.Errorf("note already exists at %q", path)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

func (s *DirStore) Exists(path string) bool {
	full, err := s.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

func (s *DirStore) List(folder string) (Listing, error) {
	full, err := s.resolve(folder)
	if err != nil {
		return Listing{}, err
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return Listing{}, fmt.Errorf("listing %q: %w", folder, err)
	}

	var listing Listing
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			listing.Folders = append(listing.Folders, entry.Name())
		} else {
			listing.Files = append(listing.Files, entry.Name())
		}
	}
	sort.Strings(listing.Folders)
	sort.Strings(listing.Files)
	return listing, nil
}

func (s *DirStore) EnsureDirectory(folder string) error {
	full, err := s.resolve(folder)
	if err != nil {
		return err
	}
	return os.MkdirAll(full, 0o755)
}

func (s *DirStore) Walk(fn func(path string) error) error {
	return filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel))
	})
}
