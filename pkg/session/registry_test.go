package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desiyatra/bargainer/pkg/composer"
	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/negotiation"
	"github.com/desiyatra/bargainer/pkg/outcome"
)

func testFactory(t *testing.T, sp Speaker) Factory {
	t.Helper()
	comp, err := composer.New(composer.Config{})
	if err != nil {
		t.Fatalf("composer: %v", err)
	}
	return func(callSID string, meta map[string]string) (*Orchestrator, error) {
		return NewOrchestrator(Config{
			CallSID:        callSID,
			Vendor:         outcome.Vendor{Name: meta["vendor_name"]},
			Terms:          negotiation.DefaultTerms(700, 500, 900),
			PerTurnTimeout: time.Minute,
		}, Deps{Speaker: sp, Composer: comp, Logger: quietLogger()})
	}
}

func waitDone(t *testing.T, h *Handle) (outcome.Outcome, error) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session %s did not finish", h.CallSID)
	}
	return h.Result()
}

func TestRegistryRunsCallToOutcome(t *testing.T) {
	done := make(chan outcome.Outcome, 1)
	reg := NewRegistry(testFactory(t, &stubSpeaker{}), RegistryConfig{
		OnDone: func(out outcome.Outcome, _ error) { done <- out },
		Logger: quietLogger(),
	})

	h, created, err := reg.Start("CA1", map[string]string{"vendor_name": "Hotel Shanti"})
	if err != nil || !created {
		t.Fatalf("Start: created=%v err=%v", created, err)
	}
	again, created, err := reg.Start("CA1", nil)
	if err != nil || created || again != h {
		t.Fatalf("repeated start must return the live handle")
	}
	if err := reg.Dispatch(context.Background(), "CA1", vendorSays("700 rupaye")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	out, err := waitDone(t, h)
	if err != nil || out.Kind != outcome.KindAccepted || out.VendorName != "Hotel Shanti" {
		t.Fatalf("unexpected result %+v / %v", out, err)
	}
	if got := <-done; got.CallSID != "CA1" {
		t.Fatalf("OnDone got %+v", got)
	}
	if reg.Count() != 0 {
		t.Fatalf("expected empty registry, count=%d", reg.Count())
	}
	if err := reg.Dispatch(context.Background(), "CA1", vendorSays("800")); !errors.Is(err, ErrUnknownCall) {
		t.Fatalf("expected ErrUnknownCall, got %v", err)
	}
}

func TestRegistryEnforcesCapacity(t *testing.T) {
	reg := NewRegistry(testFactory(t, &stubSpeaker{}), RegistryConfig{MaxConcurrentCalls: 1, Logger: quietLogger()})
	h, _, err := reg.Start("CA1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, _, err = reg.Start("CA2", nil)
	if !errors.Is(err, ErrCapacity) || !errorsx.HasReason(err, errorsx.ReasonCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}

	reg.Remove("CA1")
	if _, err := waitDone(t, h); !errors.Is(err, ErrCallDropped) {
		t.Fatalf("removed call should end as dropped, got %v", err)
	}
	if _, _, err := reg.Start("CA2", nil); err != nil {
		t.Fatalf("slot should be free again: %v", err)
	}
	reg.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !reg.WaitForEmpty(ctx, 5*time.Millisecond) {
		t.Fatalf("registry did not drain")
	}
}

func TestRegistryDrainingRejectsNewCalls(t *testing.T) {
	reg := NewRegistry(testFactory(t, &stubSpeaker{}), RegistryConfig{Logger: quietLogger()})
	reg.SetDraining(true)
	if !reg.Draining() {
		t.Fatalf("expected draining")
	}
	if _, _, err := reg.Start("CA1", nil); !errors.Is(err, ErrDraining) {
		t.Fatalf("expected ErrDraining, got %v", err)
	}
	if reg.Count() != 0 {
		t.Fatalf("rejected start must not count")
	}
}

func TestRegistryCallTimeout(t *testing.T) {
	reg := NewRegistry(testFactory(t, &stubSpeaker{}), RegistryConfig{CallTimeout: 20 * time.Millisecond, Logger: quietLogger()})
	h, _, err := reg.Start("CA1", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, err := waitDone(t, h)
	if !errors.Is(err, ErrSessionTimedOut) || out.Kind != outcome.KindTimedOut {
		t.Fatalf("unexpected result %+v / %v", out, err)
	}
}

func TestRegistryFactoryErrorReleasesSlot(t *testing.T) {
	reg := NewRegistry(func(string, map[string]string) (*Orchestrator, error) {
		return nil, errors.New("bad terms")
	}, RegistryConfig{MaxConcurrentCalls: 1})
	if _, _, err := reg.Start("CA1", nil); err == nil {
		t.Fatalf("expected factory error")
	}
	if reg.Count() != 0 {
		t.Fatalf("count leaked: %d", reg.Count())
	}
}

func TestDispatchToFinishedCallIsRejected(t *testing.T) {
	reg := NewRegistry(testFactory(t, &stubSpeaker{}), RegistryConfig{Logger: quietLogger()})
	h := &Handle{CallSID: "CA1", events: make(chan Event, 4), done: make(chan struct{})}
	close(h.done)
	reg.sessions.Store(h.CallSID, h)

	for i := 0; i < 50; i++ {
		if err := reg.Dispatch(context.Background(), "CA1", CallDroppedEvent("hangup")); !errors.Is(err, ErrUnknownCall) {
			t.Fatalf("dispatch %d: expected ErrUnknownCall, got %v", i, err)
		}
	}
	if n := len(h.events); n != 0 {
		t.Fatalf("finished call buffered %d events", n)
	}
}
