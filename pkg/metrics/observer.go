package metrics

import "time"

// Event names recorded during a call.
const (
	EventCallStarted    = "call_started"
	EventFragment       = "stt_fragment"
	EventUtterance      = "utterance_final"
	EventTransition     = "negotiation_transition"
	EventResponseSpoken = "response_spoken"
	EventOutcome        = "negotiation_outcome"
)

// Tag keys shared by every call event.
const (
	TagSessionID = "session_id"
	TagCallSID   = "call_sid"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// SessionID returns the session tag, falling back to the call SID.
func (ev MetricsEvent) SessionID() string {
	if ev.Tags == nil {
		return ""
	}
	if id := ev.Tags[TagSessionID]; id != "" {
		return id
	}
	return ev.Tags[TagCallSID]
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
