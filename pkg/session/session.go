// Package session drives one negotiation call from the opening question to
// the reported outcome, and keeps the set of live calls.
package session

import (
	"context"
	"errors"

	"github.com/desiyatra/bargainer/pkg/transcript"
)

var (
	// ErrSessionTimedOut means the vendor went silent past the per-turn timeout
	// or the call deadline passed.
	ErrSessionTimedOut = errors.New("session: timed out waiting for vendor")
	// ErrCallDropped means telephony ended the call or the session was cancelled.
	ErrCallDropped = errors.New("session: call dropped")
)

type EventKind int

const (
	EventFragment EventKind = iota
	EventCallDropped
)

// Event is what telephony pushes into a running session.
type Event struct {
	Kind     EventKind
	Fragment transcript.Fragment
	// Reason carries the telephony reason for a dropped call.
	Reason string
}

func FragmentEvent(f transcript.Fragment) Event {
	return Event{Kind: EventFragment, Fragment: f}
}

func CallDroppedEvent(reason string) Event {
	return Event{Kind: EventCallDropped, Reason: reason}
}

// Speaker is the telephony side that voices text and ends calls.
type Speaker interface {
	Speak(ctx context.Context, callSID, text, languageTag string) error
	Hangup(ctx context.Context, callSID string) error
}
