package chunking

import (
	"regexp"
	"strings"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
)

const (
	defaultMaxTokens   = 900
	headingPathJoiner  = " > "
	paragraphSeparator = "\n\n"
)

var (
	headingPattern   = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	paragraphPattern = regexp.MustCompile(`\n\s*\n`)
)

// Chunker splits markdown into bounded retrieval units. Every heading starts
// a new chunk, so a chunk never straddles two sibling sections; non-heading
// lines accumulate until the token budget would be exceeded. The output is a
// pure function of the input text.
type Chunker struct {
	MaxTokens int
}

func NewChunker(maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Chunker{MaxTokens: maxTokens}
}

func (c *Chunker) Chunk(markdown string) []domain.Chunk {
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	var chunks []domain.Chunk
	var buf []string
	var headingPath []string
	bufTokens := 0

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		bufTokens = 0
		if text == "" {
			return
		}
		chunks = append(chunks, domain.Chunk{
			HeadingPath: strings.Join(headingPath, headingPathJoiner),
			Text:        text,
			TokenCount:  CountTokens(text),
		})
	}

	for _, line := range strings.Split(markdown, "\n") {
		if match := headingPattern.FindStringSubmatch(line); match != nil {
			// Close the running chunk under the heading path it was
			// written under, then descend.
			flush()
			level := len(match[1])
			if level-1 < len(headingPath) {
				headingPath = headingPath[:level-1]
			}
			headingPath = append(headingPath, strings.TrimSpace(match[2]))
			buf = append(buf, line)
			bufTokens = CountTokens(line)
			continue
		}

		lineTokens := CountTokens(line)
		if bufTokens+lineTokens > c.MaxTokens && len(buf) > 0 {
			flush()
		}
		buf = append(buf, line)
		bufTokens += lineTokens
	}
	flush()

	out := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.TokenCount > c.MaxTokens {
			out = append(out, c.splitOversized(chunk)...)
			continue
		}
		out = append(out, chunk)
	}
	for i := range out {
		out[i].Index = i
	}
	return out
}

// splitOversized breaks a chunk that exceeded the budget in one line run into
// paragraph-bounded sub-chunks sharing the same heading path. A single
// paragraph larger than the budget stays intact; that is the one allowed
// overflow.
func (c *Chunker) splitOversized(chunk domain.Chunk) []domain.Chunk {
	paragraphs := paragraphPattern.Split(chunk.Text, -1)

	var out []domain.Chunk
	var current []string
	currentTokens := 0

	emit := func() {
		if len(current) == 0 {
			return
		}
		text := strings.Join(current, paragraphSeparator)
		out = append(out, domain.Chunk{
			HeadingPath: chunk.HeadingPath,
			Text:        text,
			TokenCount:  CountTokens(text),
		})
		current = current[:0]
		currentTokens = 0
	}

	for _, paragraph := range paragraphs {
		tokens := CountTokens(paragraph)
		if currentTokens+tokens > c.MaxTokens && len(current) > 0 {
			emit()
		}
		current = append(current, paragraph)
		currentTokens += tokens
	}
	emit()
	return out
}
