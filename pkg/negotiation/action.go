package negotiation

import "github.com/desiyatra/bargainer/pkg/offer"

type ActionKind int

const (
	ActionCounter ActionKind = iota
	ActionAccept
	ActionReject
	ActionClarify
	ActionWalkAway
)

func (k ActionKind) String() string {
	switch k {
	case ActionCounter:
		return "counter"
	case ActionAccept:
		return "accept"
	case ActionReject:
		return "reject"
	case ActionClarify:
		return "clarify"
	case ActionWalkAway:
		return "walk_away"
	default:
		return "unknown"
	}
}

type QuestionKind int

const (
	QuestionAskPrice QuestionKind = iota
	QuestionConfirmAmount
	QuestionWhichAmount
	QuestionRepeat
)

func (k QuestionKind) String() string {
	switch k {
	case QuestionAskPrice:
		return "ask_price"
	case QuestionConfirmAmount:
		return "confirm_amount"
	case QuestionWhichAmount:
		return "which_amount"
	case QuestionRepeat:
		return "repeat"
	default:
		return "unknown"
	}
}

// Question is what a Clarify action asks the vendor.
type Question struct {
	Kind QuestionKind
	// Amount is the heard amount for QuestionConfirmAmount.
	Amount offer.Amount
	// Candidates are the competing amounts for QuestionWhichAmount.
	Candidates []offer.Amount
}

// Reason explains a terminal outcome or a rejection.
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonWithinTarget           Reason = "within_target"
	ReasonFinalRound             Reason = "final_round"
	ReasonVendorAgreed           Reason = "vendor_agreed"
	ReasonBelowFloor             Reason = "below_floor"
	ReasonCeilingExceeded        Reason = "ceiling_exceeded"
	ReasonVendorDeclined         Reason = "vendor_declined"
	ReasonNoOfferReceived        Reason = "no_offer_received"
	ReasonClarificationExhausted Reason = "clarification_exhausted"
	ReasonTimedOut               Reason = "session_timed_out"
	ReasonCallDropped            Reason = "call_dropped"
)

// Action is the single decision a transition hands to the composer. Only the
// fields matching Kind are meaningful.
type Action struct {
	Kind     ActionKind
	Offer    offer.Offer
	Reason   Reason
	Question Question

	// Round and MaxRounds let the composer pick early or late phrasing.
	Round     int
	MaxRounds int
}

func Counter(o offer.Offer) Action { return Action{Kind: ActionCounter, Offer: o} }

func Accept(o offer.Offer) Action { return Action{Kind: ActionAccept, Offer: o} }

func Reject(r Reason) Action { return Action{Kind: ActionReject, Reason: r} }

func Clarify(q Question) Action { return Action{Kind: ActionClarify, Question: q} }

func WalkAway(r Reason) Action { return Action{Kind: ActionWalkAway, Reason: r} }

// Closing reports whether the action ends the call.
func (a Action) Closing() bool {
	return a.Kind == ActionAccept || a.Kind == ActionReject || a.Kind == ActionWalkAway
}
