// Package evaluate scores free-text answers with width, case and
// whitespace folding, and produces first-letter hints for cloze questions.
package evaluate

import (
	"strings"
	"unicode"
)

// hintMask is the fixed blank shown after the first letter of a hint.
const hintMask = "_____"

// hyphens are the characters stripped when hyphen folding is enabled.
const hyphens = "-‐‑‒–—―"

// Normalize folds a free-text answer for comparison: fullwidth
// ASCII-range characters (and the ideographic space) become halfwidth,
// letters are lowercased, internal whitespace runs collapse to a single
// space, and the result is trimmed. When foldHyphen is set, all hyphen
// characters are removed as well. Apostrophes are never folded.
func Normalize(s string, foldHyphen bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0xFF01 && r <= 0xFF5E:
			r -= 0xFEE0
		case r == 0x3000:
			r = ' '
		}
		if foldHyphen && strings.ContainsRune(hyphens, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Match reports whether a learner's free-text answer matches the
// expected one. Hyphen presence is optional but must be self-consistent:
// the two strings must be equal either with hyphens stripped from both
// or with hyphens kept in both.
func Match(user, expected string) bool {
	return Normalize(user, true) == Normalize(expected, true) ||
		Normalize(user, false) == Normalize(expected, false)
}

// FirstLetterHint returns the lowercase first letter of the answer's
// first word followed by a fixed five-underscore mask. An empty answer
// yields the mask alone. Callers suppress the hint entirely at the
// advanced difficulty tier.
func FirstLetterHint(answer string) string {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return hintMask
	}
	first := []rune(trimmed)[0]
	return string(unicode.ToLower(first)) + hintMask
}
