package transcript

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrIncompleteTurn is returned when a turn ends before any text was buffered.
var ErrIncompleteTurn = errors.New("transcript: turn ended with no recognized speech")

type Config struct {
	// Replacements are whole-phrase rewrites applied after normalization,
	// e.g. STT spellings of local place names or "rs" -> "rupaye".
	Replacements map[string]string
	// NewID generates utterance ids. Defaults to uuid.NewString.
	NewID func() string
	// Now stamps utterances whose fragments carry no timestamp.
	Now func() time.Time
}

// Normalizer buffers fragments per speaker and emits one Utterance per turn.
// It is safe for concurrent use, though a session normally drives it from one goroutine.
type Normalizer struct {
	replacer phraseReplacer
	newID    func() string
	now      func() time.Time

	mu    sync.Mutex
	turns map[Speaker]*turnBuffer
}

type turnBuffer struct {
	segments  []string
	minConf   float64
	committed bool

	tentative     string
	tentativeConf float64

	started  time.Time
	language string
}

func NewNormalizer(cfg Config) *Normalizer {
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Normalizer{
		replacer: newPhraseReplacer(cfg.Replacements),
		newID:    cfg.NewID,
		now:      cfg.Now,
		turns:    make(map[Speaker]*turnBuffer),
	}
}

// Push adds a fragment to its speaker's turn. It returns a complete Utterance
// and true when the fragment closes the turn. A turn closed with nothing
// buffered yields ErrIncompleteTurn.
func (n *Normalizer) Push(f Fragment) (Utterance, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	buf := n.turns[f.Speaker]
	if buf == nil {
		buf = &turnBuffer{}
		n.turns[f.Speaker] = buf
	}

	text := strings.TrimSpace(f.Text)
	if text != "" {
		conf := clampConfidence(f.Confidence)
		if buf.started.IsZero() {
			buf.started = f.Timestamp
		}
		if f.Language != "" {
			buf.language = f.Language
		}
		if f.Partial {
			buf.tentative = text
			buf.tentativeConf = conf
		} else {
			buf.segments = append(buf.segments, text)
			if !buf.committed || conf < buf.minConf {
				buf.minConf = conf
			}
			buf.committed = true
			buf.tentative = ""
		}
	}

	if !f.EndOfTurn {
		return Utterance{}, false, nil
	}
	delete(n.turns, f.Speaker)

	parts := buf.segments
	conf := buf.minConf
	if buf.tentative != "" {
		parts = append(parts, buf.tentative)
		if !buf.committed || buf.tentativeConf < conf {
			conf = buf.tentativeConf
		}
	}
	if len(parts) == 0 {
		return Utterance{}, false, ErrIncompleteTurn
	}

	raw := strings.Join(parts, " ")
	ts := buf.started
	if ts.IsZero() {
		ts = n.now()
	}
	lang := buf.language
	if lang == "" {
		lang = f.Language
	}
	return Utterance{
		ID:             n.newID(),
		Speaker:        f.Speaker,
		RawText:        raw,
		NormalizedText: n.replacer.apply(normalizeRunes(raw)),
		Confidence:     conf,
		Timestamp:      ts,
		Language:       lang,
	}, true, nil
}

// Pending reports whether a speaker has buffered text not yet closed by end of turn.
func (n *Normalizer) Pending(s Speaker) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	buf := n.turns[s]
	return buf != nil && (len(buf.segments) > 0 || buf.tentative != "")
}

// Reset drops every buffered turn.
func (n *Normalizer) Reset() {
	n.mu.Lock()
	n.turns = make(map[Speaker]*turnBuffer)
	n.mu.Unlock()
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
