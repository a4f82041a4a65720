package vecstore

import (
	"strings"
	"testing"
)

func TestChunkNoteByHeaders(t *testing.T) {
	md := `# Title

Intro paragraph.

## Section A

Content A here.

## Section B

Content B here.
`
	chunks := ChunkNote("note.md", md, 800)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	if !strings.Contains(chunks[0].Text, "Title") {
		t.Errorf("first chunk should contain Title: %q", chunks[0].Text)
	}

	foundA, foundB := false, false
	for _, c := range chunks {
		if strings.Contains(c.Text, "Section A") {
			foundA = true
		}
		if strings.Contains(c.Text, "Section B") {
			foundB = true
		}
	}
	if !foundA || !foundB {
		t.Errorf("expected sections A and B in separate chunks, foundA=%v foundB=%v", foundA, foundB)
	}
}

func TestChunkNoteLongSection(t *testing.T) {
	long := "## Big Section\n\n"
	for i := 0; i < 20; i++ {
		long += "This is paragraph number " + string(rune('A'+i)) + ". It has some content.\n\n"
	}

	chunks := ChunkNote("note.md", long, 200)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long section, got %d", len(chunks))
	}

	for _, c := range chunks {
		if c.Note != "note.md" {
			t.Errorf("expected note 'note.md', got %q", c.Note)
		}
		if c.ID == "" {
			t.Error("chunk ID should not be empty")
		}
	}
}

func TestChunkNoteDeterministicIDs(t *testing.T) {
	md := "## Hello\n\nWorld"
	c1 := ChunkNote("note.md", md, 800)
	c2 := ChunkNote("note.md", md, 800)

	if len(c1) != len(c2) {
		t.Fatalf("chunk counts differ: %d vs %d", len(c1), len(c2))
	}
	for i := range c1 {
		if c1[i].ID != c2[i].ID {
			t.Errorf("chunk %d: IDs differ %q vs %q", i, c1[i].ID, c2[i].ID)
		}
	}
}

func TestChunkNoteEmpty(t *testing.T) {
	chunks := ChunkNote("note.md", "", 800)
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty text, got %d", len(chunks))
	}
}

func TestChunkIDUniqueness(t *testing.T) {
	// Same text, different note → different ID
	id1 := chunkID("a.md", "hello")
	id2 := chunkID("b.md", "hello")
	if id1 == id2 {
		t.Error("IDs should differ for different notes")
	}

	// Same note, different text → different ID
	id3 := chunkID("a.md", "hello")
	id4 := chunkID("a.md", "world")
	if id3 == id4 {
		t.Error("IDs should differ for different text")
	}
}

func TestChunkNoteStripsFrontmatter(t *testing.T) {
	md := `---
tags: [daily]
created: 2026-08-30
---
# Journal

Wrote some words.
`
	chunks := ChunkNote("journal.md", md, 800)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if strings.Contains(chunks[0].Text, "tags:") {
		t.Errorf("frontmatter should not be embedded: %q", chunks[0].Text)
	}
	if !strings.Contains(chunks[0].Text, "Wrote some words.") {
		t.Errorf("body missing from chunk: %q", chunks[0].Text)
	}
}

func TestChunkNoteBreadcrumbs(t *testing.T) {
	md := `# Recipes

## Bread

Flour and water.
`
	chunks := ChunkNote("recipes.md", md, 800)
	var found bool
	for _, c := range chunks {
		if strings.HasPrefix(c.Text, "Recipes > Bread") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a 'Recipes > Bread' breadcrumb, got %+v", chunks)
	}
}

func TestChunkNoteTitleFallsBackToFilename(t *testing.T) {
	chunks := ChunkNote("projects/fence.md", "No headings, just text.", 800)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "fence") {
		t.Errorf("expected filename-derived title, got %q", chunks[0].Text)
	}
}

func TestHeadingLine(t *testing.T) {
	cases := []struct {
		line    string
		level   int
		heading string
		ok      bool
	}{
		{"# Title", 1, "Title", true},
		{"### Deep", 3, "Deep", true},
		{"####### Too deep", 0, "", false},
		{"#NoSpace", 0, "", false},
		{"plain text", 0, "", false},
	}
	for _, tc := range cases {
		level, heading, ok := headingLine(tc.line)
		if level != tc.level || heading != tc.heading || ok != tc.ok {
			t.Errorf("headingLine(%q) = (%d, %q, %v), want (%d, %q, %v)",
				tc.line, level, heading, ok, tc.level, tc.heading, tc.ok)
		}
	}
}
