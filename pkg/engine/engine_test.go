package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/desiyatra/bargainer/pkg/composer"
	"github.com/desiyatra/bargainer/pkg/frames"
	"github.com/desiyatra/bargainer/pkg/negotiation"
	"github.com/desiyatra/bargainer/pkg/outcome"
	mockstt "github.com/desiyatra/bargainer/pkg/providers/mock"
	"github.com/desiyatra/bargainer/pkg/session"
	"github.com/desiyatra/bargainer/pkg/transports/mock"
)

type harness struct {
	tr       *mock.Transport
	reg      *session.Registry
	reporter *outcome.MemoryReporter
	done     chan outcome.Outcome
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, cfg Config, maxCalls int) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	comp, err := composer.New(composer.Config{})
	if err != nil {
		t.Fatalf("composer: %v", err)
	}
	tr := mock.New()
	rep := outcome.NewMemoryReporter()
	done := make(chan outcome.Outcome, 4)
	factory := NewSessionFactory(Defaults{
		Terms:          negotiation.DefaultTerms(700, 500, 900),
		Language:       composer.LangHinglish,
		PerTurnTimeout: time.Minute,
	}, session.Deps{Speaker: tr, Composer: comp, Reporter: rep, Logger: logger})
	reg := session.NewRegistry(factory, session.RegistryConfig{
		MaxConcurrentCalls: maxCalls,
		OnDone:             func(out outcome.Outcome, _ error) { done <- out },
		Logger:             logger,
	})
	cfg.Logger = logger
	eng := New(tr, reg, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = eng.Run(ctx) }()
	t.Cleanup(cancel)
	return &harness{tr: tr, reg: reg, reporter: rep, done: done, cancel: cancel}
}

func (h *harness) wait(t *testing.T) outcome.Outcome {
	t.Helper()
	select {
	case out := <-h.done:
		return out
	case <-time.After(2 * time.Second):
		t.Fatalf("call did not finish")
		return outcome.Outcome{}
	}
}

func startFrame(callSID string, extra map[string]string) frames.Frame {
	meta := map[string]string{frames.MetaCallSID: callSID}
	for k, v := range extra {
		meta[k] = v
	}
	return frames.NewSystemFrame("MZ-"+callSID, time.Now().UnixNano(), frames.SystemCallStart, meta)
}

func vendorText(callSID, text string) frames.Frame {
	return frames.NewTextFrame("", time.Now().UnixNano(), text, map[string]string{frames.MetaCallSID: callSID})
}

func spokenLines(tr *mock.Transport) []string {
	var out []string
	for {
		select {
		case f := <-tr.Sent():
			if tf, ok := f.(frames.TextFrame); ok {
				out = append(out, tf.Text())
			}
		default:
			return out
		}
	}
}

func TestTextCallNegotiatesToAcceptance(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	h.tr.Push(startFrame("CA1", map[string]string{
		frames.MetaVendorName:   "Hotel Shanti",
		frames.MetaTargetPrice:  "2000",
		frames.MetaFloorBound:   "1500",
		frames.MetaCeilingBound: "2600",
		frames.MetaLanguage:     "hi-IN",
	}))
	h.tr.Push(vendorText("CA1", "2500 rupaye per night"))
	h.tr.Push(vendorText("CA1", "chaliye 2050 rupaye"))

	out := h.wait(t)
	if out.Kind != outcome.KindAccepted || out.AcceptedPrice == nil || *out.AcceptedPrice != 2050 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.VendorName != "Hotel Shanti" || out.CallSID != "CA1" {
		t.Fatalf("vendor meta not applied: %+v", out)
	}
	lines := spokenLines(h.tr)
	if len(lines) != 3 || !strings.Contains(lines[1], "सोलह सौ रुपये") {
		t.Fatalf("expected Hindi opening, counter and closing, got %q", lines)
	}
}

func TestAudioCallUsesRecognizer(t *testing.T) {
	h := newHarness(t, Config{STT: mockstt.NewSTTFactory(mockstt.STTConfig{
		Script:      []string{"bhaiya 1000 rupaye lagega", "theek hai"},
		EmitInterim: true,
	})}, 0)
	h.tr.Push(startFrame("CA2", nil))
	time.Sleep(20 * time.Millisecond)
	h.tr.Push(frames.NewAudioFrame("MZ-CA2", 1, []byte{0xff}, 8000, 1, map[string]string{frames.MetaCallSID: "CA2"}))
	time.Sleep(20 * time.Millisecond)
	h.tr.Push(frames.NewAudioFrame("MZ-CA2", 2, []byte{0xff}, 8000, 1, map[string]string{frames.MetaCallSID: "CA2"}))

	out := h.wait(t)
	if out.Kind != outcome.KindAccepted || out.Reason != string(negotiation.ReasonVendorAgreed) || *out.AcceptedPrice != 560 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestCallEndDropsSession(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	h.tr.Push(startFrame("CA3", nil))
	h.tr.Push(frames.NewSystemFrame("MZ-CA3", time.Now().UnixNano(), frames.SystemCallEnd, map[string]string{
		frames.MetaCallSID:       "CA3",
		frames.MetaCallEndReason: "completed",
	}))
	out := h.wait(t)
	if out.Kind != outcome.KindCallDropped {
		t.Fatalf("expected dropped call, got %+v", out)
	}
}

func TestCapacityRejectionHangsUp(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.tr.Push(startFrame("CA1", nil))
	h.tr.Push(startFrame("CA2", nil))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-h.tr.Sent():
			if cf, ok := f.(frames.ControlFrame); ok && cf.Code() == frames.ControlHangup {
				if cf.Meta()[frames.MetaCallSID] != "CA2" {
					t.Fatalf("hung up the wrong call: %v", cf.Meta())
				}
				if h.reg.Count() != 1 {
					t.Fatalf("expected one live call, got %d", h.reg.Count())
				}
				return
			}
		case <-deadline:
			t.Fatalf("rejected call was not hung up")
		}
	}
}

func TestSessionConfigFromMeta(t *testing.T) {
	def := Defaults{Terms: negotiation.DefaultTerms(700, 500, 900), Language: composer.LangHinglish}
	cfg, err := sessionConfig(def, "CA1", map[string]string{
		frames.MetaSessionID:    "sess-9",
		frames.MetaCeilingBound: "950",
		frames.MetaVendorType:   "taxi",
		frames.MetaLanguage:     "english",
	})
	if err != nil {
		t.Fatalf("sessionConfig: %v", err)
	}
	if cfg.SessionID != "sess-9" || cfg.Terms.CeilingBound != 950 || cfg.Terms.TargetPrice != 700 || cfg.Language != composer.LangEnglish || cfg.Vendor.Type != "taxi" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := sessionConfig(def, "CA1", map[string]string{frames.MetaTargetPrice: "saat sau"}); err == nil {
		t.Fatalf("expected bad price error")
	}
	if _, err := sessionConfig(def, "CA1", map[string]string{frames.MetaLanguage: "tamil"}); !errors.Is(err, composer.ErrUnknownLanguage) {
		t.Fatalf("expected unknown language, got %v", err)
	}
	if cfg, _ := sessionConfig(def, "CA1", nil); cfg.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
}
