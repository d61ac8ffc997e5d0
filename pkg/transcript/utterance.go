// Package transcript turns streamed speech fragments into complete, normalized
// utterances, one per speaker turn.
package transcript

import (
	"strings"
	"time"
)

// Speaker identifies who produced an utterance on the call.
type Speaker int

const (
	SpeakerUnknown Speaker = iota
	SpeakerUser
	SpeakerVendor
	SpeakerSystem
)

func (s Speaker) String() string {
	switch s {
	case SpeakerUser:
		return "user"
	case SpeakerVendor:
		return "vendor"
	case SpeakerSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ParseSpeaker maps a transport speaker tag to a Speaker.
func ParseSpeaker(v string) Speaker {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "user", "caller", "agent":
		return SpeakerUser
	case "vendor", "callee", "inbound":
		return SpeakerVendor
	case "system", "bot", "outbound":
		return SpeakerSystem
	default:
		return SpeakerUnknown
	}
}

// Fragment is one piece of recognized speech as delivered by STT or a text transport.
// Partial fragments are revisable hypotheses; a newer partial replaces the previous one.
type Fragment struct {
	Speaker    Speaker
	Text       string
	Confidence float64
	Partial    bool
	EndOfTurn  bool
	Timestamp  time.Time
	Language   string
}

// Utterance is a complete speaker turn. It is a value type and never mutated
// after the Normalizer emits it.
type Utterance struct {
	ID             string
	Speaker        Speaker
	RawText        string
	NormalizedText string
	Confidence     float64
	Timestamp      time.Time
	Language       string
}
