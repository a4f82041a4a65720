package vecstore

import (
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Chunk is a fragment of a vault note together with its embedding vector.
type Chunk struct {
	ID        string
	Text      string
	Note      string // vault-relative path of the note the chunk came from
	Vector    []float32
	IndexedAt time.Time
}

// Match is a search hit with its similarity score.
type Match struct {
	Chunk
	Score float32
}

// Index is an in-memory vector index with gob persistence.
type Index struct {
	path   string
	chunks []Chunk
	mu     sync.RWMutex
}

// NewIndex creates an index that persists to the given path.
func NewIndex(path string) *Index {
	return &Index{path: path}
}

// Load reads the index from disk. A missing file yields an empty index.
func (ix *Index) Load() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	f, err := os.Open(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			ix.chunks = nil
			return nil
		}
		return err
	}
	defer f.Close()

	var chunks []Chunk
	if err := gob.NewDecoder(f).Decode(&chunks); err != nil {
		// Corrupt file, start fresh
		ix.chunks = nil
		return nil
	}
	ix.chunks = chunks
	return nil
}

// Save writes the index to disk.
func (ix *Index) Save() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(ix.path), 0755); err != nil {
		return err
	}

	f, err := os.Create(ix.path)
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(ix.chunks)
}

// Search returns the top-K chunks most similar to the query vector.
func (ix *Index) Search(query []float32, topK int) []Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.chunks) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		if len(c.Vector) == 0 {
			continue
		}
		matches = append(matches, Match{Chunk: c, Score: cosine(query, c.Vector)})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK]
}

// Upsert adds or replaces chunks by ID.
func (ix *Index) Upsert(chunks []Chunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	byID := make(map[string]int, len(ix.chunks))
	for i, c := range ix.chunks {
		byID[c.ID] = i
	}

	for _, c := range chunks {
		if i, ok := byID[c.ID]; ok {
			ix.chunks[i] = c
		} else {
			ix.chunks = append(ix.chunks, c)
		}
	}
}

// DeleteByNote removes all chunks that came from the given note.
func (ix *Index) DeleteByNote(note string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	kept := ix.chunks[:0]
	for _, c := range ix.chunks {
		if c.Note != note {
			kept = append(kept, c)
		}
	}
	ix.chunks = kept
}

// Notes returns the distinct note paths currently indexed.
func (ix *Index) Notes() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]bool)
	var notes []string
	for _, c := range ix.chunks {
		if !seen[c.Note] {
			seen[c.Note] = true
			notes = append(notes, c.Note)
		}
	}
	sort.Strings(notes)
	return notes
}

// Len returns the number of chunks in the index.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// cosine computes cosine similarity between two vectors.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}
