package chunker

import (
	"unicode"
	"unicode/utf8"
)

// Tokenize splits text into tokens whose concatenation is exactly text.
// A token is a run of non-space runes, or a single CJK rune, followed by
// any whitespace. Leading whitespace belongs to the first token.
func Tokenize(text string) []string {
	if isBlank(text) {
		return nil
	}
	var tokens []string
	start := 0
	i := 0
	for i < len(text) && isSpaceAt(text, i) {
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if !isCJK(r) {
			for i < len(text) {
				next, nsize := utf8.DecodeRuneInString(text[i:])
				if unicode.IsSpace(next) || isCJK(next) {
					break
				}
				i += nsize
			}
		}
		for i < len(text) && isSpaceAt(text, i) {
			_, wsize := utf8.DecodeRuneInString(text[i:])
			i += wsize
		}
		tokens = append(tokens, text[start:i])
		start = i
	}
	return tokens
}

// CountTokens is the number of tokens Tokenize would return.
func CountTokens(text string) int {
	return len(Tokenize(text))
}

func isSpaceAt(text string, i int) bool {
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}

func isBlank(text string) bool {
	for _, r := range text {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func isCJK(r rune) bool {
	if r <= 127 {
		return false
	}
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
