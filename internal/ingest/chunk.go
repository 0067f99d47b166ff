package ingest

import (
	"strings"
	"unicode/utf8"
)

// ChunkText splits text into overlapping chunks of roughly size characters.
// Splits land on paragraph boundaries when one falls inside the chunk window,
// so table rows and clauses are not cut mid-sentence more than necessary.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}

		// Prefer breaking at a paragraph, then a line, then whitespace.
		cut := end
		window := text[start:end]
		if i := strings.LastIndex(window, "\n\n"); i > size/2 {
			cut = start + i
		} else if i := strings.LastIndex(window, "\n"); i > size/2 {
			cut = start + i
		} else if i := strings.LastIndexByte(window, ' '); i > size/2 {
			cut = start + i
		}

		// A cut with no whitespace in the window lands on a byte offset and
		// can split a multi-byte rune.
		for cut > start && !utf8.RuneStart(text[cut]) {
			cut--
		}

		chunk := strings.TrimSpace(text[start:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}
