package chunking

import "unicode"

// CountTokens estimates the token count of s the way a BPE tokenizer would
// see it: short words are one token, longer words roughly one token per four
// characters. The estimate only has to be stable and monotone in text length;
// re-ingestion compares chunker output byte-for-byte, so any drift here would
// invalidate unchanged documents.
func CountTokens(s string) int {
	tokens := 0
	wordLen := 0
	flush := func() {
		if wordLen == 0 {
			return
		}
		tokens += 1 + (wordLen-1)/4
		wordLen = 0
	}
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			wordLen++
		default:
			// Punctuation is its own token.
			flush()
			tokens++
		}
	}
	flush()
	return tokens
}
