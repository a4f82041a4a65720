package vecstore

import (
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
	"time"
)

const defaultChunkChars = 800

// ChunkNote turns one markdown note into indexable chunks. YAML frontmatter
// is stripped, the note is cut into sections at heading lines of any level,
// and long sections are packed paragraph by paragraph up to maxChars. Every
// chunk is prefixed with a "Title > Heading" breadcrumb so a retrieved
// passage names its origin even when the text itself does not.
func ChunkNote(note, text string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = defaultChunkChars
	}

	sections := parseSections(stripFrontmatter(text))
	title := noteTitle(note, sections)
	now := time.Now()

	var chunks []Chunk
	for _, sec := range sections {
		crumb := breadcrumb(title, sec)
		for _, body := range packParagraphs(sec.paragraphs, maxChars) {
			chunkText := crumb + "\n\n" + body
			chunks = append(chunks, Chunk{
				ID:        chunkID(note, chunkText),
				Text:      chunkText,
				Note:      note,
				IndexedAt: now,
			})
		}
	}
	return chunks
}

// section is one heading plus the paragraphs under it. The preamble before
// the first heading is a section with an empty heading.
type section struct {
	level      int
	heading    string
	paragraphs []string
}

// stripFrontmatter removes a leading YAML block fenced by --- lines.
// Frontmatter is metadata for the vault, not prose worth embedding.
func stripFrontmatter(text string) string {
	if !strings.HasPrefix(text, "---\n") && text != "---" {
		return text
	}
	rest := strings.TrimPrefix(text, "---\n")
	if end := strings.Index(rest, "\n---"); end >= 0 {
		rest = rest[end+len("\n---"):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			return rest[nl+1:]
		}
		return ""
	}
	return text
}

func parseSections(text string) []section {
	var sections []section
	current := section{}
	var para strings.Builder

	flushPara := func() {
		p := strings.TrimSpace(para.String())
		para.Reset()
		if p != "" {
			current.paragraphs = append(current.paragraphs, p)
		}
	}
	flushSection := func() {
		flushPara()
		if current.heading != "" || len(current.paragraphs) > 0 {
			sections = append(sections, current)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if level, heading, ok := headingLine(line); ok {
			flushSection()
			current = section{level: level, heading: heading}
			continue
		}
		if strings.TrimSpace(line) == "" {
			flushPara()
			continue
		}
		para.WriteString(line)
		para.WriteByte('\n')
	}
	flushSection()
	return sections
}

func headingLine(line string) (level int, heading string, ok bool) {
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(line[level+1:]), true
}

// noteTitle prefers the first level-1 heading, falling back to the note's
// file name without its extension.
func noteTitle(note string, sections []section) string {
	for _, sec := range sections {
		if sec.level == 1 && sec.heading != "" {
			return sec.heading
		}
	}
	base := path.Base(note)
	return strings.TrimSuffix(base, path.Ext(base))
}

func breadcrumb(title string, sec section) string {
	if sec.heading == "" || sec.heading == title {
		return title
	}
	return title + " > " + sec.heading
}

// packParagraphs greedily joins consecutive paragraphs into bodies of at
// most maxChars. A single paragraph over the cap is emitted on its own
// rather than split mid-sentence.
func packParagraphs(paragraphs []string, maxChars int) []string {
	var bodies []string
	var current strings.Builder

	for _, p := range paragraphs {
		if current.Len() > 0 && current.Len()+len(p)+2 > maxChars {
			bodies = append(bodies, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		bodies = append(bodies, current.String())
	}
	return bodies
}

func chunkID(note, text string) string {
	h := sha256.Sum256([]byte(note + ":" + text))
	return fmt.Sprintf("%x", h[:6])
}
