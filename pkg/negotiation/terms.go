package negotiation

import (
	"fmt"
	"math"
	"strings"

	"github.com/desiyatra/bargainer/pkg/offer"
)

const (
	DefaultMaxRounds           = 6
	DefaultTolerancePercent    = 5.0
	DefaultDecayFactor         = 0.5
	DefaultAnchorRatio         = 0.8
	DefaultConfidenceThreshold = 0.5
	DefaultClarificationLimit  = 2
	DefaultNoOfferTurnLimit    = 3

	stubbornDecay = 0.65
	flexibleDecay = 0.35
)

// VendorStyle tunes how fast counters approach the target.
type VendorStyle string

const (
	StyleDefault  VendorStyle = ""
	StyleStubborn VendorStyle = "stubborn"
	StyleFlexible VendorStyle = "flexible"
)

// ParseVendorStyle maps a config value to a style; unknown values are default.
func ParseVendorStyle(v string) VendorStyle {
	switch VendorStyle(strings.ToLower(strings.TrimSpace(v))) {
	case StyleStubborn:
		return StyleStubborn
	case StyleFlexible:
		return StyleFlexible
	default:
		return StyleDefault
	}
}

// Terms are the per-call negotiation bounds and policy knobs.
type Terms struct {
	Currency string
	Unit     offer.Unit

	TargetPrice  offer.Amount
	FloorBound   offer.Amount
	CeilingBound offer.Amount
	MaxRounds    int

	// TolerancePercent widens the accept band above TargetPrice.
	TolerancePercent float64
	// DecayFactor is the share of the remaining gap to target closed per counter.
	DecayFactor float64
	// AnchorRatio sets the opening counter as a share of TargetPrice.
	AnchorRatio         float64
	ConfidenceThreshold float64
	ClarificationLimit  int
	NoOfferTurnLimit    int
	VendorStyle         VendorStyle
}

// DefaultTerms returns the documented policy defaults around the given prices.
func DefaultTerms(target, floor, ceiling offer.Amount) Terms {
	return Terms{
		TargetPrice:      target,
		FloorBound:       floor,
		CeilingBound:     ceiling,
		TolerancePercent: DefaultTolerancePercent,
	}.WithDefaults()
}

// WithDefaults fills unset policy knobs. Prices are never defaulted, and a zero
// TolerancePercent means an exact target.
func (t Terms) WithDefaults() Terms {
	if t.Currency == "" {
		t.Currency = "INR"
	}
	if t.MaxRounds <= 0 {
		t.MaxRounds = DefaultMaxRounds
	}
	if t.TolerancePercent < 0 {
		t.TolerancePercent = DefaultTolerancePercent
	}
	if t.DecayFactor <= 0 || t.DecayFactor > 1 {
		t.DecayFactor = DefaultDecayFactor
	}
	if t.AnchorRatio <= 0 || t.AnchorRatio > 1 {
		t.AnchorRatio = DefaultAnchorRatio
	}
	if t.ConfidenceThreshold <= 0 || t.ConfidenceThreshold > 1 {
		t.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if t.ClarificationLimit <= 0 {
		t.ClarificationLimit = DefaultClarificationLimit
	}
	if t.NoOfferTurnLimit <= 0 {
		t.NoOfferTurnLimit = DefaultNoOfferTurnLimit
	}
	return t
}

// Validate checks that the price bounds are ordered.
func (t Terms) Validate() error {
	if t.TargetPrice <= 0 {
		return fmt.Errorf("negotiation: target price must be positive")
	}
	if t.FloorBound < 0 || t.FloorBound > t.TargetPrice {
		return fmt.Errorf("negotiation: floor bound %s must be within [0, target %s]", t.FloorBound, t.TargetPrice)
	}
	if t.CeilingBound < t.TargetPrice {
		return fmt.Errorf("negotiation: ceiling bound %s is below target %s", t.CeilingBound, t.TargetPrice)
	}
	if t.MaxRounds <= 0 {
		return fmt.Errorf("negotiation: max rounds must be positive")
	}
	return nil
}

// Tolerance is the accept band above target, in whole rupees.
func (t Terms) Tolerance() offer.Amount {
	return offer.Amount(math.Round(float64(t.TargetPrice) * t.TolerancePercent / 100))
}

// Decay returns the step factor for the configured vendor style.
func (t Terms) Decay() float64 {
	switch t.VendorStyle {
	case StyleStubborn:
		return stubbornDecay
	case StyleFlexible:
		return flexibleDecay
	default:
		return t.DecayFactor
	}
}

// counterCap is the highest counter the policy may ever propose.
func (t Terms) counterCap() offer.Amount {
	return min(t.TargetPrice, t.CeilingBound)
}
