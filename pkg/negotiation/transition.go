package negotiation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/offer"
)

// ErrSessionTerminal is returned for any event after an outcome is set.
var ErrSessionTerminal = errors.New("negotiation: session is terminal")

type EventKind int

const (
	EventOffer EventKind = iota
	EventAmbiguous
	EventNoOffer
	EventIncompleteTurn
	EventDecline
	EventAgree
	EventTimeout
	EventCallDropped
)

func (k EventKind) String() string {
	switch k {
	case EventOffer:
		return "offer"
	case EventAmbiguous:
		return "ambiguous"
	case EventNoOffer:
		return "no_offer"
	case EventIncompleteTurn:
		return "incomplete_turn"
	case EventDecline:
		return "decline"
	case EventAgree:
		return "agree"
	case EventTimeout:
		return "timeout"
	case EventCallDropped:
		return "call_dropped"
	default:
		return "unknown"
	}
}

// Event is one input to the state machine.
type Event struct {
	Kind EventKind
	// Offer is set for EventOffer.
	Offer offer.Offer
	// Candidates are set for EventAmbiguous.
	Candidates []offer.Amount
}

func OfferEvent(o offer.Offer) Event { return Event{Kind: EventOffer, Offer: o} }

func AmbiguousEvent(candidates ...offer.Amount) Event {
	return Event{Kind: EventAmbiguous, Candidates: candidates}
}

// Open produces the first line of the call: asking the vendor for a rate.
func Open(s Session) (Session, Action) {
	s.Asked = Question{Kind: QuestionAskPrice}
	act := Clarify(s.Asked)
	act.Round, act.MaxRounds = s.RoundCount, s.Terms.MaxRounds
	return s, act
}

// Transition applies ev to s and returns the next session with exactly one
// action. s itself is never modified. Accept is always preferred over Counter.
func Transition(s Session, ev Event) (Session, Action, error) {
	if s.Terminal() {
		return s, Action{}, errorsx.Wrap(ErrSessionTerminal, errorsx.ReasonSessionTerminal)
	}

	next := s
	var act Action
	switch ev.Kind {
	case EventTimeout:
		next.finish(PhaseTimedOut, ReasonTimedOut, nil)
		act = WalkAway(ReasonTimedOut)
	case EventCallDropped:
		next.finish(PhaseCallDropped, ReasonCallDropped, nil)
		act = WalkAway(ReasonCallDropped)
	case EventDecline:
		next.finish(PhaseWalkedAway, ReasonVendorDeclined, nil)
		act = WalkAway(ReasonVendorDeclined)
	case EventOffer:
		act = next.onOffer(ev.Offer)
	case EventAmbiguous:
		act = next.clarify(Question{Kind: QuestionWhichAmount, Candidates: slices.Clone(ev.Candidates)})
	case EventIncompleteTurn:
		act = next.clarify(Question{Kind: QuestionRepeat})
	case EventAgree:
		act = next.onAgree()
	case EventNoOffer:
		act = next.onNoOffer()
	default:
		return s, Action{}, errorsx.New(errorsx.ReasonInvalidTransition, "negotiation: unknown event kind %d", ev.Kind)
	}

	if !transitionValid(s.Phase, next.Phase) {
		return s, Action{}, errorsx.Wrap(&InvalidTransitionError{From: s.Phase, To: next.Phase}, errorsx.ReasonInvalidTransition)
	}
	act.Round, act.MaxRounds = next.RoundCount, next.Terms.MaxRounds
	return next, act, nil
}

func (s *Session) onOffer(o offer.Offer) Action {
	o.Source = offer.SourceVendor
	if o.Currency == "" {
		o.Currency = s.Terms.Currency
	}
	if o.Confidence < s.Terms.ConfidenceThreshold {
		pending := o
		s.Pending = &pending
		return s.clarify(Question{Kind: QuestionConfirmAmount, Amount: o.Amount})
	}
	s.resolve()
	return s.decide(o)
}

func (s *Session) onAgree() Action {
	if s.Phase == PhaseClarifying && s.Pending != nil {
		o := *s.Pending
		s.resolve()
		return s.decide(o)
	}
	// A bare yes while asking which amount answers nothing.
	if s.Phase == PhaseClarifying && s.Pending == nil {
		return s.clarify(s.Asked)
	}
	if c, ok := s.outstandingCounter(); ok {
		price := c.Amount
		s.finish(PhaseAccepted, ReasonVendorAgreed, &price)
		return Accept(c)
	}
	return s.onNoOffer()
}

// onNoOffer re-asks: the open clarification question while clarifying, the
// price otherwise.
func (s *Session) onNoOffer() Action {
	if s.Phase == PhaseClarifying {
		return s.clarify(s.Asked)
	}
	s.IdleTurns++
	if s.IdleTurns > s.Terms.NoOfferTurnLimit {
		s.finish(PhaseWalkedAway, ReasonNoOfferReceived, nil)
		return WalkAway(ReasonNoOfferReceived)
	}
	s.Asked = Question{Kind: QuestionAskPrice}
	return Clarify(s.Asked)
}

// clarify counts one clarification attempt and moves into PhaseClarifying.
// QuestionRepeat re-prompts without leaving the current phase.
func (s *Session) clarify(q Question) Action {
	s.ClarifyAttempts++
	if s.ClarifyAttempts > s.Terms.ClarificationLimit {
		s.finish(PhaseWalkedAway, ReasonClarificationExhausted, nil)
		return WalkAway(ReasonClarificationExhausted)
	}
	if q.Kind != QuestionRepeat {
		if s.Phase != PhaseClarifying {
			s.PriorPhase = s.Phase
			s.Phase = PhaseClarifying
		}
		s.Asked = q
	}
	return Clarify(q)
}

// resolve leaves PhaseClarifying for the phase it interrupted.
func (s *Session) resolve() {
	if s.Phase == PhaseClarifying {
		s.Phase = s.PriorPhase
	}
	s.Pending = nil
	s.ClarifyAttempts = 0
	s.IdleTurns = 0
}

// decide applies the vendor offer rules in priority order.
func (s *Session) decide(o offer.Offer) Action {
	t := s.Terms
	s.record(o)

	switch {
	case o.Amount < t.FloorBound:
		s.finish(PhaseRejected, ReasonBelowFloor, nil)
		return Reject(ReasonBelowFloor)
	case o.Amount <= t.TargetPrice+t.Tolerance():
		price := o.Amount
		s.finish(PhaseAccepted, ReasonWithinTarget, &price)
		return Accept(o)
	case s.RoundCount >= t.MaxRounds && o.Amount <= t.CeilingBound:
		price := o.Amount
		s.finish(PhaseAccepted, ReasonFinalRound, &price)
		return Accept(o)
	case s.RoundCount >= t.MaxRounds:
		s.finish(PhaseWalkedAway, ReasonCeilingExceeded, nil)
		return WalkAway(ReasonCeilingExceeded)
	}

	amount, first := s.nextCounter(o.Amount)
	counter := offer.Offer{
		Amount:     amount,
		Currency:   t.Currency,
		Unit:       o.Unit,
		Source:     offer.SourceUser,
		Confidence: 1,
	}
	if counter.Unit == offer.UnitUnspecified {
		counter.Unit = t.Unit
	}
	s.record(counter)
	s.RoundCount++
	if first {
		s.Phase = PhaseOffering
	} else {
		s.Phase = PhaseCounterOffering
	}
	return Counter(counter)
}

// nextCounter computes the user-side counter to a vendor amount. Counters never
// regress, never pass min(target, ceiling) and stay below the vendor's amount.
func (s Session) nextCounter(vendor offer.Amount) (offer.Amount, bool) {
	t := s.Terms
	capAt := t.counterCap()

	prev, ok := s.LastCounter()
	var c, low offer.Amount
	if !ok {
		c = max(t.FloorBound, ceilAmount(float64(t.TargetPrice)*t.AnchorRatio))
		low = t.FloorBound
	} else {
		gap := float64(t.TargetPrice - prev.Amount)
		c = prev.Amount + ceilAmount(gap*t.Decay())
		low = prev.Amount
	}

	c = min(max(c, low), capAt)
	if c >= vendor {
		c = max(vendor-1, low)
	}
	return c, !ok
}

func ceilAmount(v float64) offer.Amount {
	if v <= 0 {
		return 0
	}
	return offer.Amount(math.Ceil(v - 1e-9))
}

// Describe is a short log-friendly summary of a transition.
func Describe(from, to Session, act Action) string {
	return fmt.Sprintf("%s -> %s (%s, round %d/%d)", from.Phase, to.Phase, act.Kind, to.RoundCount, to.Terms.MaxRounds)
}
