// Package intent detects whether a vendor turn agrees, declines, or neither.
package intent

import (
	"context"
	"strings"

	"github.com/desiyatra/bargainer/pkg/transcript"
)

type Intent int

const (
	None Intent = iota
	Agree
	Decline
)

func (i Intent) String() string {
	switch i {
	case Agree:
		return "agree"
	case Decline:
		return "decline"
	default:
		return "none"
	}
}

// Parse maps a label ("agree", "DECLINE.") back to an Intent. ok is false
// for labels it does not know.
func Parse(v string) (Intent, bool) {
	v = strings.ToLower(strings.Trim(strings.TrimSpace(v), ".!\"'"))
	switch v {
	case "agree", "accept", "yes":
		return Agree, true
	case "decline", "refuse", "reject", "no":
		return Decline, true
	case "none", "other", "":
		return None, v != ""
	default:
		return None, false
	}
}

// Classifier labels a finished vendor utterance.
type Classifier interface {
	Classify(ctx context.Context, u transcript.Utterance) (Intent, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, u transcript.Utterance) (Intent, error)

func (f ClassifierFunc) Classify(ctx context.Context, u transcript.Utterance) (Intent, error) {
	return f(ctx, u)
}

var defaultDecline = []string{
	"nahi hoga", "nahin hoga", "nahi ho payega", "nahi chalega", "nahi kar sakte", "nahi kar payenge",
	"nahi milega", "nahi jayenge", "nahi jaana", "kahin aur dekh lo", "kahin aur dekh lijiye",
	"aur kahin dekh lo", "aur kahin dekh lijiye", "mat karo", "gaadi nahi hai", "room nahi hai",
	"khali nahi hai", "not possible", "cannot do", "can't do", "look elsewhere",
	"नहीं होगा", "नहीं हो पाएगा", "नहीं चलेगा", "नहीं कर सकते", "नहीं मिलेगा", "कहीं और देख लो",
	"कहीं और देख लीजिए", "गाड़ी नहीं है", "खाली नहीं है",
}

var defaultAgree = []string{
	"haan", "haan ji", "ha ji", "ji haan", "theek hai", "thik hai", "chalega", "chalo theek hai",
	"ho jayega", "kar denge", "done", "deal", "pakka", "ok", "okay", "yes", "sure", "confirm",
	"हां", "हाँ", "जी हां", "ठीक है", "चलेगा", "हो जाएगा", "कर देंगे", "डन", "पक्का", "ओके",
}

// KeywordClassifier matches whole normalized phrases. Decline wins over agree,
// so "theek hai, nahi hoga" is a decline. It is immutable after construction.
type KeywordClassifier struct {
	decline []string
	agree   []string
}

// NewKeywordClassifier extends the built-in phrase lists with extra ones.
func NewKeywordClassifier(extraDecline, extraAgree []string) *KeywordClassifier {
	return &KeywordClassifier{
		decline: normalizePhrases(append(append([]string(nil), defaultDecline...), extraDecline...)),
		agree:   normalizePhrases(append(append([]string(nil), defaultAgree...), extraAgree...)),
	}
}

func (k *KeywordClassifier) Classify(_ context.Context, u transcript.Utterance) (Intent, error) {
	return k.classify(u), nil
}

func (k *KeywordClassifier) classify(u transcript.Utterance) Intent {
	text := u.NormalizedText
	if text == "" {
		text = transcript.Normalize(u.RawText, nil)
	}
	padded := " " + text + " "
	for _, p := range k.decline {
		if strings.Contains(padded, p) {
			return Decline
		}
	}
	for _, p := range k.agree {
		if strings.Contains(padded, p) {
			return Agree
		}
	}
	return None
}

func normalizePhrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if n := transcript.Normalize(p, nil); n != "" {
			out = append(out, " "+n+" ")
		}
	}
	return out
}
