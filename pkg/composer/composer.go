// Package composer turns negotiation actions into the line spoken to the vendor.
package composer

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/desiyatra/bargainer/pkg/negotiation"
	"github.com/desiyatra/bargainer/pkg/offer"
)

type Language string

const (
	LangHindi    Language = "hi"
	LangHinglish Language = "hinglish"
	LangEnglish  Language = "en"
)

// ParseLanguage accepts config spellings such as "hi-IN" or "Hinglish".
func ParseLanguage(v string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "hi", "hi-in", "hindi":
		return LangHindi, true
	case "hinglish", "hi-latn":
		return LangHinglish, true
	case "en", "en-in", "english":
		return LangEnglish, true
	default:
		return "", false
	}
}

// Tag is the speech synthesis language tag.
func (l Language) Tag() string {
	if l == LangEnglish {
		return "en-IN"
	}
	return "hi-IN"
}

var (
	ErrUnknownLanguage = errors.New("composer: unknown language")
	ErrNoTemplate      = errors.New("composer: no template for action")
)

// Utterance is outbound text ready for speech synthesis.
type Utterance struct {
	Text        string
	LanguageTag string
}

type Config struct {
	// Seed picks among template variants. Zero always picks the first variant.
	Seed uint64
	// Templates override or extend the built-in set: language -> key -> variants.
	Templates map[string]map[string][]string
}

// Composer is read-only after New and safe for concurrent use.
type Composer struct {
	seed      uint64
	templates map[Language]map[string][]string
}

func New(cfg Config) (*Composer, error) {
	templates := defaultTemplates()
	for rawLang, keys := range cfg.Templates {
		lang, ok := ParseLanguage(rawLang)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, rawLang)
		}
		for key, variants := range keys {
			if len(variants) == 0 {
				continue
			}
			templates[lang][strings.ToLower(key)] = append([]string(nil), variants...)
		}
	}
	return &Composer{seed: cfg.Seed, templates: templates}, nil
}

// Compose renders act in lang. The same action, language and seed always
// produce the same text.
func (c *Composer) Compose(act negotiation.Action, lang Language) (Utterance, error) {
	set, ok := c.templates[lang]
	if !ok {
		return Utterance{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	key := templateKey(act)
	variants := lookup(set, key)
	if len(variants) == 0 {
		return Utterance{}, fmt.Errorf("%w: %s", ErrNoTemplate, key)
	}

	text := variants[c.pick(act, key, len(variants))]
	r := strings.NewReplacer(
		PlaceholderAmount, money(act.Offer.Amount, lang),
		PlaceholderCandidates, candidates(act, lang),
		PlaceholderRound, strconv.Itoa(act.Round),
	)
	return Utterance{Text: r.Replace(text), LanguageTag: lang.Tag()}, nil
}

func templateKey(act negotiation.Action) string {
	switch act.Kind {
	case negotiation.ActionCounter:
		if late(act) {
			return KeyCounterLate
		}
		return KeyCounterEarly
	case negotiation.ActionAccept:
		return KeyAccept
	case negotiation.ActionReject:
		return detailKey(KeyReject, string(act.Reason))
	case negotiation.ActionClarify:
		q := act.Question
		if q.Kind == negotiation.QuestionWhichAmount && len(q.Candidates) == 0 {
			return detailKey(KeyClarify, negotiation.QuestionRepeat.String())
		}
		return detailKey(KeyClarify, q.Kind.String())
	default:
		return detailKey(KeyWalkAway, string(act.Reason))
	}
}

// late marks the final third of the allowed rounds.
func late(act negotiation.Action) bool {
	return act.MaxRounds > 0 && act.Round*3 >= act.MaxRounds*2
}

func detailKey(kind, detail string) string {
	if detail == "" {
		return kind
	}
	return kind + "." + detail
}

func lookup(set map[string][]string, key string) []string {
	for {
		if v := set[key]; len(v) > 0 {
			return v
		}
		i := strings.LastIndexByte(key, '.')
		if i < 0 {
			return nil
		}
		key = key[:i]
	}
}

func (c *Composer) pick(act negotiation.Action, key string, n int) int {
	if c.seed == 0 || n == 1 {
		return 0
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d|%s|%d", key, act.Offer.Amount, act.Question.Amount, act.Reason, act.Round)
	rng := rand.New(rand.NewPCG(c.seed, h.Sum64()))
	return rng.IntN(n)
}

func money(a offer.Amount, lang Language) string {
	switch lang {
	case LangHindi:
		return HindiNumber(int64(a)) + " रुपये"
	case LangEnglish:
		return strconv.FormatInt(int64(a), 10) + " rupees"
	default:
		return strconv.FormatInt(int64(a), 10) + " rupaye"
	}
}

func candidates(act negotiation.Action, lang Language) string {
	amounts := act.Question.Candidates
	if len(amounts) == 0 && act.Question.Amount > 0 {
		amounts = []offer.Amount{act.Question.Amount}
	}
	parts := make([]string, 0, len(amounts))
	for _, a := range amounts {
		parts = append(parts, money(a, lang))
	}
	sep := " ya "
	switch lang {
	case LangHindi:
		sep = " या "
	case LangEnglish:
		sep = " or "
	}
	return strings.Join(parts, sep)
}
