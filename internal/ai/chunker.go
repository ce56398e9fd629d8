package ai

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultChunkChars bounds a chunk's size in characters.
const DefaultChunkChars = 500

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// StripMarkup flattens stored site content (rendered HTML, markdown or
// plain text) into plain text suitable for chunking.
func StripMarkup(input string) string {
	stripped := htmlTagRegex.ReplaceAllString(input, " ")
	md := goldmark.New()
	reader := text.NewReader([]byte(stripped))
	doc := md.Parser().Parse(reader)

	var sb strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(reader.Source()))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	flat := strings.Join(strings.Fields(sb.String()), " ")
	if flat == "" {
		// Inputs with no text nodes (e.g. bare punctuation) fall back to the
		// tag-stripped form.
		flat = strings.Join(strings.Fields(stripped), " ")
	}
	return flat
}

// ChunkText splits text into word-aligned chunks of at most maxChunkChars
// characters. A word longer than the limit becomes its own chunk rather
// than being dropped. Deterministic, no side effects.
func ChunkText(input string, maxChunkChars int) []string {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultChunkChars
	}
	words := strings.Fields(StripMarkup(input))
	if len(words) == 0 {
		return nil
	}
	var chunks []string
	var cur strings.Builder
	for _, word := range words {
		if cur.Len() > 0 && cur.Len()+1+len(word) > maxChunkChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
