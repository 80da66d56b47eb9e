package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"claim-dossier/models"
)

// CharsPerToken ist die bewusst grobe Näherung für die Chunk-Größe (kein echter Tokenizer).
const CharsPerToken = 4

const (
	DefaultChunkTokens   = 500
	DefaultOverlapTokens = 100
)

var (
	paragraphSplitRE = regexp.MustCompile(`\n\s*\n`)
	sentenceEndRE    = regexp.MustCompile(`[.!?]+["')\]]*\s+`)
	// Abkürzungen, an denen kein Satzende erkannt werden darf.
	abbreviations = []string{"et al.", "i.e.", "e.g.", "cf.", "vs.", "etc.", "Dr.", "Prof.", "Fig.", "Tab.", "approx."}
)

// EstimateTokens schätzt die Tokenzahl als ceil(Zeichen / CharsPerToken).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// Chunker zerlegt Abstracts deterministisch in überlappende, größenbegrenzte Fragmente.
type Chunker struct {
	MaxTokens     int
	OverlapTokens int
}

func NewChunker(maxTokens, overlapTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultChunkTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	return &Chunker{MaxTokens: maxTokens, OverlapTokens: overlapTokens}
}

// Split liefert die Chunks eines Textes mit fortlaufenden Indizes ab 0.
// Reihenfolge: ganzer Text, Absätze, Sätze, harte Teilung nach Zeichen.
// Ab dem zweiten Chunk wird ein an Wortgrenzen ausgerichtetes Ende des vorherigen Chunks vorangestellt.
func (c *Chunker) Split(text string) []models.TextChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	maxChars := c.MaxTokens * CharsPerToken
	if utf8.RuneCountInString(text) <= maxChars {
		return []models.TextChunk{{Content: text, ChunkIndex: 0, EstimatedTokens: EstimateTokens(text)}}
	}

	raw := c.pack(text, maxChars)
	overlapChars := c.OverlapTokens * CharsPerToken

	chunks := make([]models.TextChunk, 0, len(raw))
	for i, part := range raw {
		content := part
		if i > 0 && overlapChars > 0 {
			if tail := overlapTail(raw[i-1], overlapChars); tail != "" {
				content = tail + " " + part
			}
		}
		chunks = append(chunks, models.TextChunk{
			Content:         content,
			ChunkIndex:      i,
			EstimatedTokens: EstimateTokens(content),
		})
	}
	return chunks
}

// pack füllt Absätze gierig bis maxChars auf; zu lange Absätze werden in Sätze zerlegt.
func (c *Chunker) pack(text string, maxChars int) []string {
	var out []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphSplitRE.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) > maxChars {
			flush()
			out = append(out, packSentences(splitSentences(para), maxChars)...)
			continue
		}
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+2+utf8.RuneCountInString(para) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return out
}

func packSentences(sentences []string, maxChars int) []string {
	var out []string
	current := ""
	for _, s := range sentences {
		if utf8.RuneCountInString(s) > maxChars {
			if current != "" {
				out = append(out, current)
				current = ""
			}
			out = append(out, hardSplit(s, maxChars)...)
			continue
		}
		if current == "" {
			current = s
			continue
		}
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(s) > maxChars {
			out = append(out, current)
			current = s
			continue
		}
		current += " " + s
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// hardSplit teilt nach Zeichenzahl; ein Fragment ist höchstens maxChars Runen lang.
func hardSplit(s string, maxChars int) []string {
	r := []rune(s)
	var out []string
	for start := 0; start < len(r); start += maxChars {
		end := start + maxChars
		if end > len(r) {
			end = len(r)
		}
		if part := strings.TrimSpace(string(r[start:end])); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitSentences trennt an Satzzeichen, ohne bekannte Abkürzungen aufzubrechen.
func splitSentences(text string) []string {
	protected := text
	for i, abbr := range abbreviations {
		protected = strings.ReplaceAll(protected, abbr, fmt.Sprintf("__ABBR_%d__", i))
	}

	var sentences []string
	last := 0
	for _, loc := range sentenceEndRE.FindAllStringIndex(protected, -1) {
		sentences = append(sentences, protected[last:loc[1]])
		last = loc[1]
	}
	if last < len(protected) {
		sentences = append(sentences, protected[last:])
	}

	out := sentences[:0]
	for _, s := range sentences {
		for i, abbr := range abbreviations {
			s = strings.ReplaceAll(s, fmt.Sprintf("__ABBR_%d__", i), abbr)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// overlapTail liefert höchstens maxChars Zeichen vom Ende von s, beginnend an einer Wortgrenze.
// Liegt im Fenster keine Wortgrenze (hart geteilter Text ohne Leerzeichen), wird nach Zeichen geschnitten.
func overlapTail(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return strings.TrimSpace(s)
	}
	cut := len(r) - maxChars
	start := cut
	if !unicode.IsSpace(r[start-1]) {
		for start < len(r) && !unicode.IsSpace(r[start]) {
			start++
		}
	}
	if tail := strings.TrimSpace(string(r[start:])); tail != "" {
		return tail
	}
	return strings.TrimSpace(string(r[cut:]))
}
