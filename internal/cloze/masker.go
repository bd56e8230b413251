// Package cloze builds fill-in-the-blank masks by locating a target
// phrase, or an inflected variant of it, inside an example sentence.
package cloze

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Segment is one piece of a masked sentence: either literal text or the
// blank standing in for the matched phrase.
type Segment struct {
	Text  string
	Blank bool
	Width int // non-whitespace character count of the blank, min 1
}

// Mask is the result of splitting a sentence around a matched phrase.
type Mask struct {
	Segments []Segment
	Matched  string // the exact substring that was blanked out
}

// irregularForms covers the small fixed set of irregular verbs whose
// inflections the regular heuristics cannot derive.
var irregularForms = map[string][]string{
	"be":   {"be", "am", "is", "are", "was", "were", "been", "being"},
	"have": {"have", "has", "had", "having"},
	"do":   {"do", "does", "did", "done", "doing"},
}

// participleOverrides maps irregular verbs to their past participle.
var participleOverrides = map[string]string{
	"be":   "been",
	"have": "had",
	"do":   "done",
}

// placeholders are generic object/subject markers inside a target phrase
// that act as wildcards, so "scold someone" also matches "scold him".
var placeholders = map[string]bool{
	"someone":   true,
	"somebody":  true,
	"sb":        true,
	"sb.":       true,
	"something": true,
	"sth":       true,
	"sth.":      true,
	"one's":     true,
	"oneself":   true,
}

const bePattern = `(?:am|is|are|was|were|be|been|being)`

// token is one word slot of a variant: Text for length ranking, Pattern
// for matching.
type token struct {
	Text    string
	Pattern string
}

type variant struct {
	tokens []token
}

func (v variant) phrase() string {
	parts := make([]string, len(v.tokens))
	for i, t := range v.tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// Build locates targetPhrase (or an inflected/passive/placeholder
// variant of it) inside sentence and splits the sentence into literal
// and blank segments. Matching is case-insensitive and tolerant of
// arbitrary whitespace runs between words. Overlapping variants are
// resolved longest-pattern-first, not leftmost-first. Returns nil when
// either argument is empty or no variant occurs in the sentence.
func Build(sentence, targetPhrase string) *Mask {
	if strings.TrimSpace(sentence) == "" || strings.TrimSpace(targetPhrase) == "" {
		return nil
	}

	variants := buildVariants(targetPhrase)
	sort.SliceStable(variants, func(i, j int) bool {
		return len(variants[i].phrase()) > len(variants[j].phrase())
	})

	for _, v := range variants {
		re, err := compileVariant(v)
		if err != nil {
			continue
		}
		loc := re.FindStringIndex(sentence)
		if loc == nil {
			continue
		}
		return buildMask(sentence, loc[0], loc[1])
	}
	return nil
}

func buildMask(sentence string, start, end int) *Mask {
	matched := sentence[start:end]

	width := 0
	for _, r := range matched {
		if !unicode.IsSpace(r) {
			width++
		}
	}
	if width < 1 {
		width = 1
	}

	var segs []Segment
	if before := sentence[:start]; before != "" {
		segs = append(segs, Segment{Text: before})
	}
	segs = append(segs, Segment{Blank: true, Width: width})
	if after := sentence[end:]; after != "" {
		segs = append(segs, Segment{Text: after})
	}

	return &Mask{Segments: segs, Matched: matched}
}

// buildVariants expands the target phrase into every form the matcher
// should accept: the literal phrase, inflections of the first word, and
// be-form + participle (passive) constructions. Only the first word is
// inflected; the remaining words stay fixed apart from placeholder
// wildcards.
func buildVariants(targetPhrase string) []variant {
	words := strings.Fields(strings.ToLower(targetPhrase))
	first := words[0]
	rest := make([]token, 0, len(words)-1)
	for _, w := range words[1:] {
		rest = append(rest, wordToken(w))
	}

	forms, irregular := irregularForms[first], true
	if forms == nil {
		forms, irregular = regularForms(first), false
	}

	var variants []variant
	seen := make(map[string]bool)
	add := func(v variant) {
		key := v.phrase()
		if !seen[key] {
			seen[key] = true
			variants = append(variants, v)
		}
	}

	for _, form := range forms {
		add(variant{tokens: append([]token{wordToken(form)}, rest...)})
	}

	// Passive and participle constructions: a be-form followed by the
	// first word's past participle. The irregular "be" itself already
	// enumerates its full form set above.
	if first != "be" {
		for _, pp := range participles(first, irregular) {
			tokens := []token{
				{Text: "were", Pattern: bePattern},
				wordToken(pp),
			}
			add(variant{tokens: append(tokens, rest...)})
		}
	}

	return variants
}

func wordToken(w string) token {
	if placeholders[w] {
		return token{Text: w, Pattern: `\S+`}
	}
	return token{Text: w, Pattern: regexp.QuoteMeta(w)}
}

// regularForms applies the regular-inflection heuristics to a word:
// append s/es/ed/ing, y→ies/ied, and drop a trailing e before ing/d.
func regularForms(w string) []string {
	forms := []string{w, w + "s", w + "es", w + "ed", w + "ing"}
	if len(w) > 1 && strings.HasSuffix(w, "y") {
		stem := w[:len(w)-1]
		forms = append(forms, stem+"ies", stem+"ied")
	}
	if len(w) > 1 && strings.HasSuffix(w, "e") {
		stem := w[:len(w)-1]
		forms = append(forms, stem+"ing", w+"d")
	}
	return dedup(forms)
}

func participles(w string, irregular bool) []string {
	if irregular {
		if pp, ok := participleOverrides[w]; ok {
			return []string{pp}
		}
		return nil
	}
	pps := []string{w + "ed"}
	if len(w) > 1 && strings.HasSuffix(w, "y") {
		pps = append(pps, w[:len(w)-1]+"ied")
	}
	if len(w) > 1 && strings.HasSuffix(w, "e") {
		pps = append(pps, w+"d")
	}
	return dedup(pps)
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func compileVariant(v variant) (*regexp.Regexp, error) {
	patterns := make([]string, len(v.tokens))
	for i, t := range v.tokens {
		patterns[i] = t.Pattern
	}
	return regexp.Compile(`(?i)\b` + strings.Join(patterns, `\s+`) + `\b`)
}
