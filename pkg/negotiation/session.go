// Package negotiation holds the negotiation state machine. Sessions are plain
// values and Transition is a pure function over them, so every rule can be
// exercised without a call in progress.
package negotiation

import (
	"slices"

	"github.com/desiyatra/bargainer/pkg/offer"
)

// Outcome is set once the session reaches a terminal phase.
type Outcome struct {
	Phase  Phase
	Reason Reason
	// AcceptedPrice is nil unless Phase is PhaseAccepted.
	AcceptedPrice *offer.Amount
}

// Session is the negotiation state of one call. Only Transition and Open
// produce new sessions; callers must treat a Session as read-only.
type Session struct {
	ID         string
	Phase      Phase
	PriorPhase Phase
	// History is append-only and chronological, vendor offers and counters interleaved.
	History []offer.Offer
	Terms   Terms

	RoundCount      int
	ClarifyAttempts int
	IdleTurns       int

	// Pending is a low-confidence offer awaiting confirmation. It is not in History.
	Pending *offer.Offer
	// Asked is the last clarification question put to the vendor.
	Asked   Question
	Outcome *Outcome
}

// NewSession starts a session in PhaseOpening.
func NewSession(id string, terms Terms) Session {
	return Session{ID: id, Phase: PhaseOpening, Terms: terms.WithDefaults()}
}

// Terminal reports whether an outcome has been decided.
func (s Session) Terminal() bool {
	return s.Outcome != nil || s.Phase.Terminal()
}

// LastCounter returns the most recent counter the user side proposed.
func (s Session) LastCounter() (offer.Offer, bool) {
	return s.last(offer.SourceUser)
}

// LastVendorOffer returns the most recent vendor offer in History.
func (s Session) LastVendorOffer() (offer.Offer, bool) {
	return s.last(offer.SourceVendor)
}

func (s Session) last(src offer.Source) (offer.Offer, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Source == src {
			return s.History[i], true
		}
	}
	return offer.Offer{}, false
}

// outstandingCounter is a counter the vendor has not answered with a new offer.
func (s Session) outstandingCounter() (offer.Offer, bool) {
	if n := len(s.History); n > 0 && s.History[n-1].Source == offer.SourceUser {
		return s.History[n-1], true
	}
	return offer.Offer{}, false
}

// record appends without touching the backing array of earlier session values.
func (s *Session) record(o offer.Offer) {
	s.History = append(slices.Clip(s.History), o)
}

func (s *Session) finish(phase Phase, reason Reason, price *offer.Amount) {
	s.Phase = phase
	s.Pending = nil
	s.Outcome = &Outcome{Phase: phase, Reason: reason, AcceptedPrice: price}
}
