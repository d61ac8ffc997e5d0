// Package offer extracts structured price offers from normalized utterances.
package offer

import (
	"errors"
	"strconv"
	"strings"
)

// Amount is a price in whole units of the negotiation currency (rupees).
type Amount int64

func (a Amount) String() string {
	return "₹" + strconv.FormatInt(int64(a), 10)
}

// Unit qualifies what an amount pays for.
type Unit string

const (
	UnitUnspecified Unit = ""
	UnitPerTrip     Unit = "per_trip"
	UnitPerNight    Unit = "per_night"
	UnitPerDay      Unit = "per_day"
	UnitPerPerson   Unit = "per_person"
)

// ParseUnit accepts the config spelling of a unit.
func ParseUnit(v string) Unit {
	switch Unit(strings.ToLower(strings.TrimSpace(v))) {
	case UnitPerTrip:
		return UnitPerTrip
	case UnitPerNight:
		return UnitPerNight
	case UnitPerDay:
		return UnitPerDay
	case UnitPerPerson:
		return UnitPerPerson
	default:
		return UnitUnspecified
	}
}

// Source tells whose offer it is.
type Source int

const (
	SourceVendor Source = iota
	SourceUser
)

func (s Source) String() string {
	if s == SourceUser {
		return "user"
	}
	return "vendor"
}

// Offer is a price proposal. Currency is always the negotiation's configured
// currency; UtteranceID points back to the utterance it came from, if any.
type Offer struct {
	Amount      Amount
	Currency    string
	Unit        Unit
	Source      Source
	Confidence  float64
	UtteranceID string
}

var (
	// ErrNoOffer means the utterance carries no price at all.
	ErrNoOffer = errors.New("offer: no amount in utterance")
	// ErrAmbiguousOffer means a price was mentioned but could not be pinned down.
	ErrAmbiguousOffer = errors.New("offer: amount is ambiguous")
)

// AmbiguousError lists the competing readings. It matches ErrAmbiguousOffer.
type AmbiguousError struct {
	Candidates []Amount
}

func (e *AmbiguousError) Error() string {
	if len(e.Candidates) == 0 {
		return ErrAmbiguousOffer.Error()
	}
	parts := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		parts = append(parts, c.String())
	}
	return ErrAmbiguousOffer.Error() + ": " + strings.Join(parts, ", ")
}

func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguousOffer
}
