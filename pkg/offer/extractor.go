package offer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/desiyatra/bargainer/pkg/transcript"
)

const (
	DefaultAdjacentCertainty = 1.0
	DefaultDetachedCertainty = 0.7
)

type ExtractorConfig struct {
	Vocabulary *Vocabulary
	// AdjacentCertainty scales confidence when a currency token touches the number.
	AdjacentCertainty float64
	// DetachedCertainty scales confidence when only a unit or price cue anchors it.
	DetachedCertainty float64
}

// Extractor is stateless after construction and safe to share across sessions.
type Extractor struct {
	vocab    Vocabulary
	adjacent float64
	detached float64
}

func NewExtractor(cfg ExtractorConfig) *Extractor {
	vocab := DefaultVocabulary("", UnitUnspecified)
	if cfg.Vocabulary != nil {
		vocab = *cfg.Vocabulary
	}
	if cfg.AdjacentCertainty <= 0 || cfg.AdjacentCertainty > 1 {
		cfg.AdjacentCertainty = DefaultAdjacentCertainty
	}
	if cfg.DetachedCertainty <= 0 || cfg.DetachedCertainty > 1 {
		cfg.DetachedCertainty = DefaultDetachedCertainty
	}
	return &Extractor{
		vocab:    vocab.normalized(),
		adjacent: cfg.AdjacentCertainty,
		detached: cfg.DetachedCertainty,
	}
}

// Extract reads at most one offer from u. It returns ErrNoOffer when no amount
// is present and an *AmbiguousError when amounts are present but none can be
// chosen. The same utterance always yields the same result.
func (e *Extractor) Extract(u transcript.Utterance, src Source) (Offer, error) {
	text := u.NormalizedText
	if text == "" {
		text = transcript.Normalize(u.RawText, nil)
	}
	tokens := e.tokenize(text)
	spans := e.spans(tokens)
	if len(spans) == 0 {
		return Offer{}, ErrNoOffer
	}

	var anchored []span
	for _, s := range spans {
		if s.anchored {
			anchored = append(anchored, s)
		}
	}

	var (
		chosen    span
		certainty float64
	)
	switch {
	case len(anchored) > 0:
		amount, ok := single(anchored)
		if !ok {
			return Offer{}, &AmbiguousError{Candidates: amounts(anchored)}
		}
		chosen, certainty = span{value: amount}, e.adjacent
	default:
		amount, ok := single(spans)
		if !ok || !e.talksPrice(tokens) {
			return Offer{}, &AmbiguousError{Candidates: amounts(spans)}
		}
		chosen, certainty = span{value: amount}, e.detached
	}

	return Offer{
		Amount:      chosen.value,
		Currency:    e.vocab.Currency,
		Unit:        e.unit(tokens),
		Source:      src,
		Confidence:  u.Confidence * certainty,
		UtteranceID: u.ID,
	}, nil
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokLiteral
	tokNumeral
	tokMultiplier
	tokModifier
)

type token struct {
	text  string
	kind  tokenKind
	value float64
}

type span struct {
	start, end int
	value      Amount
	anchored   bool
}

var (
	literalRe   = regexp.MustCompile(`^(\d+(?:\.\d+)?)(k)?$`)
	gluedUnitRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)(\D+)$`)
)

// tokenize classifies every word. Digits glued to a suffix ("1500rs") are split.
func (e *Extractor) tokenize(text string) []token {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if m := gluedUnitRe.FindStringSubmatch(f); m != nil && m[2] != "k" {
			words = append(words, m[1], m[2])
			continue
		}
		words = append(words, f)
	}

	out := make([]token, 0, len(words))
	for i, w := range words {
		t := token{text: w}
		switch {
		case literalRe.MatchString(w):
			m := literalRe.FindStringSubmatch(w)
			v, _ := strconv.ParseFloat(m[1], 64)
			if m[2] == "k" {
				v *= 1000
			}
			t.kind, t.value = tokLiteral, v
		case e.vocab.Multipliers[w] > 0:
			t.kind, t.value = tokMultiplier, e.vocab.Multipliers[w]
		case e.vocab.Modifiers[w] != 0:
			t.kind, t.value = tokModifier, e.vocab.Modifiers[w]
		case e.vocab.Numerals[w] > 0:
			t.kind, t.value = tokNumeral, e.vocab.Numerals[w]
			if e.vocab.WeakNumerals[w] && !e.strengthens(words, i+1) {
				t.kind, t.value = tokWord, 0
			}
		}
		out = append(out, t)
	}
	// A modifier only counts in front of a number.
	for i := range out {
		if out[i].kind != tokModifier {
			continue
		}
		if i+1 >= len(out) || (out[i+1].kind != tokNumeral && out[i+1].kind != tokLiteral) {
			out[i].kind = tokWord
		}
	}
	return out
}

func (e *Extractor) strengthens(words []string, next int) bool {
	if next >= len(words) {
		return false
	}
	w := words[next]
	return e.vocab.Multipliers[w] > 0 || e.vocab.CurrencyTokens[w]
}

// spans groups number tokens into amounts, Hindi style: "do hazaar paanch sau"
// is one span worth 2500, while "1500 2000" is two spans.
func (e *Extractor) spans(tokens []token) []span {
	var out []span
	i := 0
	for i < len(tokens) {
		if tokens[i].kind == tokWord {
			i++
			continue
		}
		start := i
		var (
			total, cur, mod float64
			lastBig         float64
			prev            = tokWord
		)
	scan:
		for ; i < len(tokens); i++ {
			t := tokens[i]
			switch t.kind {
			case tokLiteral, tokNumeral:
				if prev == tokLiteral || prev == tokNumeral {
					break scan
				}
				cur += t.value + mod
				mod = 0
			case tokModifier:
				if prev == tokLiteral || prev == tokNumeral || prev == tokModifier {
					break scan
				}
				mod = t.value
			case tokMultiplier:
				if prev == tokMultiplier || (t.value >= 1000 && lastBig > 0 && t.value >= lastBig) {
					break scan
				}
				if cur == 0 {
					cur = 1
				}
				if t.value >= 1000 {
					total += cur * t.value
					cur = 0
					lastBig = t.value
				} else {
					cur *= t.value
				}
			default:
				break scan
			}
			prev = t.kind
		}
		end := i
		s := span{start: start, end: end, value: Amount(math.Round(total + cur))}
		if s.value <= 0 || e.disqualified(tokens, s) {
			continue
		}
		s.anchored = e.isCurrency(tokens, start-1) || e.isCurrency(tokens, end)
		out = append(out, s)
	}
	return out
}

func (e *Extractor) disqualified(tokens []token, s span) bool {
	if s.end >= len(tokens) {
		return false
	}
	next := tokens[s.end].text
	if e.vocab.Negations[next] {
		return true
	}
	if !e.vocab.QuantityNouns[next] {
		return false
	}
	// "2 raat" counts nights; "1500 raat ka" is a nightly price.
	if _, isUnit := e.vocab.UnitWords[next]; isUnit {
		return s.value < 100
	}
	return true
}

func (e *Extractor) isCurrency(tokens []token, i int) bool {
	return i >= 0 && i < len(tokens) && tokens[i].kind == tokWord && e.vocab.CurrencyTokens[tokens[i].text]
}

func (e *Extractor) talksPrice(tokens []token) bool {
	for _, t := range tokens {
		if t.kind != tokWord {
			continue
		}
		if e.vocab.PriceCues[t.text] {
			return true
		}
		if _, ok := e.vocab.UnitWords[t.text]; ok {
			return true
		}
	}
	return false
}

func (e *Extractor) unit(tokens []token) Unit {
	for _, t := range tokens {
		if u, ok := e.vocab.UnitWords[t.text]; ok && t.kind == tokWord {
			return u
		}
	}
	return e.vocab.DefaultUnit
}

// single returns the common amount when every span agrees.
func single(spans []span) (Amount, bool) {
	v := spans[0].value
	for _, s := range spans[1:] {
		if s.value != v {
			return 0, false
		}
	}
	return v, true
}

func amounts(spans []span) []Amount {
	out := make([]Amount, 0, len(spans))
	seen := make(map[Amount]bool, len(spans))
	for _, s := range spans {
		if !seen[s.value] {
			seen[s.value] = true
			out = append(out, s.value)
		}
	}
	return out
}
