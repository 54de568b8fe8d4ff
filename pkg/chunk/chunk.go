// Package chunk splits raw document text into overlapping passages suitable
// for embedding and vector indexing.
//
// Splitting is hierarchical: paragraph breaks are preferred over sentence
// breaks, and sentence breaks over nothing at all. A unit that cannot be
// split any further (a single very long sentence) is emitted whole rather
// than cut mid-token, so individual chunks can exceed the configured size in
// that one case.
package chunk

import (
	"fmt"
	"strings"
)

// Default splitting parameters, matching the corpus ingestion defaults.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// defaultSeparators are tried in priority order: paragraph break, line
// break, then sentence-ending punctuation.
var defaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? "}

// Chunk is one passage produced from a source document.
//
// Chunks from one document are produced in document order; Index is stable
// and disambiguates otherwise-identical text. ID is "{DocumentID}_{Index}".
type Chunk struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
}

// Splitter splits text into chunks bounded by ChunkSize characters with
// Overlap characters of shared context between adjacent chunks.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter creates a splitter with the given size and overlap.
//
// A non-positive chunkSize falls back to DefaultChunkSize and a negative
// overlap falls back to DefaultOverlap. An overlap that is not smaller than
// the chunk size is rejected: such a configuration cannot make forward
// progress.
func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}, nil
}

// ChunkSize returns the configured maximum chunk length in characters.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap length in characters.
func (s *Splitter) Overlap() int { return s.overlap }

// Split breaks text into an ordered sequence of non-empty chunks.
//
// Every chunk is at most ChunkSize characters long unless it corresponds to
// a single unit that no separator can divide, in which case the unit is kept
// whole. Adjacent chunks share up to Overlap characters of source text.
// Empty or whitespace-only input yields nil, not an error.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	raw := s.split(text, s.separators)
	chunks := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c != "" {
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	return chunks
}

// SplitDocument splits text and wraps each passage in a Chunk carrying the
// document id and a stable sequence index.
func (s *Splitter) SplitDocument(documentID, text string) []Chunk {
	parts := s.Split(text)
	if len(parts) == 0 {
		return nil
	}

	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{
			ID:         fmt.Sprintf("%s_%d", documentID, i),
			Text:       p,
			DocumentID: documentID,
			Index:      i,
		}
	}
	return chunks
}

// split recursively divides text using the highest-priority separator
// present, merging small pieces back together up to the chunk size.
func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, cand := range separators {
		if strings.Contains(text, cand) {
			sep = cand
			rest = separators[i+1:]
			break
		}
	}

	// No separator applies: this is an indivisible unit, kept whole even
	// when it exceeds the chunk size.
	if sep == "" {
		return []string{text}
	}

	pieces := splitKeepingSeparator(text, sep)

	var out []string
	var pending []string
	for _, p := range pieces {
		if len(p) <= s.chunkSize {
			pending = append(pending, p)
			continue
		}
		// Flush accumulated small pieces before descending into the
		// oversized one so document order is preserved.
		if len(pending) > 0 {
			out = append(out, s.merge(pending)...)
			pending = nil
		}
		out = append(out, s.split(p, rest)...)
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending)...)
	}
	return out
}

// merge packs consecutive pieces into chunks of at most chunkSize
// characters. When a chunk is emitted, trailing pieces totalling up to
// overlap characters are carried into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0

	for _, p := range pieces {
		if total+len(p) > s.chunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for len(window) > 0 && (total > s.overlap || total+len(p) > s.chunkSize) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += len(p)
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}

// splitKeepingSeparator splits text on sep, keeping the separator attached
// to the preceding piece so chunks remain contiguous substrings of the
// source document.
func splitKeepingSeparator(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	pieces := parts[:0]
	for _, p := range parts {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}
