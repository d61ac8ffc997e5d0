package transcript

import (
	"sort"
	"strings"
	"unicode"
)

// nuktaBase folds precomposed nukta letters to their base consonant so that
// "हज़ार" and "हजार" normalize identically.
var nuktaBase = map[rune]rune{
	'\u0958': '\u0915',
	'\u0959': '\u0916',
	'\u095A': '\u0917',
	'\u095B': '\u091C',
	'\u095C': '\u0921',
	'\u095D': '\u0922',
	'\u095E': '\u092B',
	'\u095F': '\u092F',
}

const (
	devanagariZero   = '\u0966'
	devanagariNine   = '\u096F'
	devanagariNukta  = '\u093C'
	chandrabindu     = '\u0901'
	anusvara         = '\u0902'
	rupeeSign        = '\u20B9'
	wordSeparator    = ' '
	digitGroupMarker = ','
)

// Normalize lowercases text and folds script variants, digit groups and
// punctuation so the offer extractor sees one canonical token stream.
func Normalize(text string, replacements map[string]string) string {
	return newPhraseReplacer(replacements).apply(normalizeRunes(text))
}

func normalizeRunes(text string) string {
	in := []rune(strings.ToLower(text))
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range in {
		switch {
		case r >= devanagariZero && r <= devanagariNine:
			r = '0' + (r - devanagariZero)
		case r == devanagariNukta:
			continue
		case r == chandrabindu:
			r = anusvara
		}
		if base, ok := nuktaBase[r]; ok {
			r = base
		}
		switch {
		case r == rupeeSign:
			b.WriteRune(wordSeparator)
			b.WriteRune(r)
			b.WriteRune(wordSeparator)
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			b.WriteRune(r)
		case (r == digitGroupMarker || r == '.') && betweenDigits(in, i):
			if r == '.' {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(wordSeparator)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func betweenDigits(in []rune, i int) bool {
	if i == 0 || i+1 >= len(in) {
		return false
	}
	return isAnyDigit(in[i-1]) && isAnyDigit(in[i+1])
}

func isAnyDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= devanagariZero && r <= devanagariNine)
}

type phraseReplacer struct {
	phrases []phrase
}

type phrase struct {
	from []string
	to   []string
}

// newPhraseReplacer orders phrases longest first so overlapping entries resolve
// the same way on every run.
func newPhraseReplacer(replacements map[string]string) phraseReplacer {
	var p phraseReplacer
	for from, to := range replacements {
		key := strings.Fields(normalizeRunes(from))
		if len(key) == 0 {
			continue
		}
		p.phrases = append(p.phrases, phrase{from: key, to: strings.Fields(normalizeRunes(to))})
	}
	sort.Slice(p.phrases, func(i, j int) bool {
		a, b := p.phrases[i].from, p.phrases[j].from
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return strings.Join(a, " ") < strings.Join(b, " ")
	})
	return p
}

// apply replaces whole-token phrase matches left to right. Replaced output is
// not rescanned.
func (p phraseReplacer) apply(s string) string {
	if len(p.phrases) == 0 || s == "" {
		return s
	}
	tokens := strings.Fields(s)
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		matched := false
		for _, ph := range p.phrases {
			if hasPrefixTokens(tokens[i:], ph.from) {
				out = append(out, ph.to...)
				i += len(ph.from)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return strings.Join(out, " ")
}

func hasPrefixTokens(tokens, prefix []string) bool {
	if len(prefix) > len(tokens) {
		return false
	}
	for i := range prefix {
		if tokens[i] != prefix[i] {
			return false
		}
	}
	return true
}
