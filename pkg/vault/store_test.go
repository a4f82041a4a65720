package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *DirStore {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("alpha\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "folder"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "folder", "b.md"), []byte("beta\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewDirStore(root)
}

func TestListRootShowsOnlyImmediateChildren(t *testing.T) {
	s := newTestStore(t)

	listing, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.Files) != 1 || listing.Files[0] != "a.md" {
		t.Errorf("files = %v, want [a.md]", listing.Files)
	}
	if len(listing.Folders) != 1 || listing.Folders[0] != "folder" {
		t.Errorf("folders = %v, want [folder]", listing.Folders)
	}
}

func TestCreateRefusesExisting(t *testing.T) {
	s := newTestStore(t)

	if err := s.Create("new.md", "content"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create("a.md", "clobber"); err == nil {
		t.Fatal("expected error creating over existing note")
	}
}

func TestWriteRequiresExisting(t *testing.T) {
	s := newTestStore(t)

	if err := s.Write("missing.md", "x"); err == nil {
		t.Fatal("expected error writing missing note")
	}
	if err := s.Write("a.md", "updated\n"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != "updated\n" {
		t.Errorf("content = %q", got)
	}
}

func TestPathEscapeRejected(t *testing.T) {
	s := newTestStore(t)

	// Cleaning pins the path inside the root; the read then fails on a
	// nonexistent in-vault path rather than reaching outside it.
	if _, err := s.Read("../../etc/passwd"); err == nil {
		t.Fatal("expected traversal to be unreachable")
	}
	// "../a.md" pins back to the vault root's own a.md, never the parent's.
	if !s.Exists("../a.md") {
		t.Error("expected traversal to resolve within the vault root")
	}
}

func TestWalkVisitsNestedNotes(t *testing.T) {
	s := newTestStore(t)

	var seen []string
	err := s.Walk(func(path string) error {
		seen = append(seen, path)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	joined := strings.Join(seen, ",")
	if !strings.Contains(joined, "a.md") || !strings.Contains(joined, "folder/b.md") {
		t.Errorf("walked %v", seen)
	}
}
