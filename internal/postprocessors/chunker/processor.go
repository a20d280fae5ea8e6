// Package chunker splits document content into overlapping windows.
//
// Each window ends on the most natural boundary available (paragraph, then
// line, then sentence, then word) and falls back to a hard cut when the
// window holds none. The next window always starts exactly overlap runes
// before the previous one ended, so dropping the first overlap runes of
// every chunk after the first reconstructs the input.
package chunker

import (
	"context"
	"strings"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// separators are tried in order; the empty separator is the hard cut.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune(" "),
}

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor splits document content into chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured window size.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
// Blank documents produce no chunks.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	parts := p.Split(doc.Content)
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, domain.Chunk{
			DocumentID: doc.ID,
			AppID:      doc.AppID,
			Content:    part,
			Position:   i,
		})
	}

	return chunks, nil
}

// Split divides text into windows of at most chunkSize runes.
// Split is deterministic and never drops a character.
func (p *Processor) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)

	// Estimate number of chunks
	step := p.chunkSize - p.overlap
	parts := make([]string, 0, total/step+1)

	start := 0
	for {
		if total-start <= p.chunkSize {
			parts = append(parts, string(runes[start:]))
			return parts
		}

		end := p.cut(runes, start)
		parts = append(parts, string(runes[start:end]))
		start = end - p.overlap
	}
}

// cut picks where the window starting at start should end.
// The result always lies beyond start+overlap so the next window advances.
func (p *Processor) cut(runes []rune, start int) int {
	hardEnd := start + p.chunkSize

	// A boundary in the first half would produce short chunks that
	// overlap heavily, so only the back half of the window is searched.
	minEnd := start + p.overlap + 1
	if half := start + p.chunkSize/2; half > minEnd {
		minEnd = half
	}

	for _, sep := range separators {
		if end := lastBoundary(runes, sep, minEnd, hardEnd); end > 0 {
			return end
		}
	}
	return hardEnd
}

// lastBoundary returns the position just after the last occurrence of sep
// that ends within [lo, hi], or -1 when there is none.
func lastBoundary(runes, sep []rune, lo, hi int) int {
	for end := hi; end >= lo; end-- {
		begin := end - len(sep)
		if begin < 0 {
			return -1
		}
		if equalRunes(runes[begin:end], sep) {
			return end
		}
	}
	return -1
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
