package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonAmbiguousOffer)
	if Reason(err) != ReasonAmbiguousOffer {
		t.Fatalf("expected reason %s, got %s", ReasonAmbiguousOffer, Reason(err))
	}
	if !HasReason(err, ReasonAmbiguousOffer) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonSTTSend)
	second := Wrap(fmt.Errorf("outer: %w", first), ReasonCallDropped)
	if Reason(second) != ReasonSTTSend {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestNewKeepsSentinelChain(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := New(ReasonSessionTimedOut, "turn deadline: %w", sentinel)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected errors.Is to find sentinel")
	}
	if Reason(err) != ReasonSessionTimedOut {
		t.Fatalf("expected reason %s, got %s", ReasonSessionTimedOut, Reason(err))
	}
}

func TestReasonOfNilAndPlainErrors(t *testing.T) {
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown for nil")
	}
	if Reason(assertErr{}) != ReasonUnknown {
		t.Fatalf("expected unknown for plain error")
	}
	if Wrap(nil, ReasonCallDropped) != nil {
		t.Fatalf("expected Wrap(nil) to stay nil")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
