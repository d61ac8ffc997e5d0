package outcome

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/negotiation"
	"github.com/desiyatra/bargainer/pkg/offer"
)

func acceptedSession(t *testing.T) negotiation.Session {
	t.Helper()
	s := negotiation.NewSession("sess-1", negotiation.DefaultTerms(700, 500, 900))
	var err error
	s, _, err = negotiation.Transition(s, negotiation.OfferEvent(offer.Offer{Amount: 1000, Confidence: 1}))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	s, _, err = negotiation.Transition(s, negotiation.OfferEvent(offer.Offer{Amount: 720, Confidence: 1}))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	return s
}

func TestFromSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	o := FromSession(acceptedSession(t), "CA1", Vendor{Name: "Sharma Travels", Type: "taxi"}, start, start.Add(time.Minute))
	if o.Kind != KindAccepted || o.Reason != "within_target" {
		t.Fatalf("unexpected kind/reason %s/%s", o.Kind, o.Reason)
	}
	if o.AcceptedPrice == nil || *o.AcceptedPrice != 720 {
		t.Fatalf("unexpected price %v", o.AcceptedPrice)
	}
	if o.RoundCount != 1 || len(o.History) != 3 || o.Currency != "INR" {
		t.Fatalf("unexpected outcome %+v", o)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(negotiation.PhaseTimedOut) != KindTimedOut || KindOf(negotiation.PhaseCallDropped) != KindCallDropped {
		t.Fatalf("unexpected kind mapping")
	}
	if KindOf(negotiation.PhaseOffering) != KindUnknown {
		t.Fatalf("non-terminal phases have no kind")
	}
}

func TestMultiReporterJoinsErrors(t *testing.T) {
	mem := NewMemoryReporter()
	failing := ReporterFunc(func(context.Context, Outcome) error { return errors.New("down") })
	m := NewMultiReporter(mem, nil, failing)

	err := m.Report(context.Background(), Outcome{SessionID: "s1"})
	if err == nil || !errorsx.HasReason(err, errorsx.ReasonOutcomeReport) {
		t.Fatalf("expected outcome_report error, got %v", err)
	}
	if len(mem.Outcomes()) != 1 {
		t.Fatalf("healthy reporter must still receive the outcome")
	}
	if err := NewMultiReporter(mem).Report(context.Background(), Outcome{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	price := offer.Amount(850)
	o := Outcome{SessionID: "s1", CallSID: "CA1", Kind: KindAccepted, AcceptedPrice: &price, Currency: "INR", RoundCount: 2}

	if err := NewLogReporter(slog.New(slog.NewTextHandler(&buf, nil))).Report(context.Background(), o); err != nil {
		t.Fatalf("log report: %v", err)
	}
	if !strings.Contains(buf.String(), "negotiation_outcome") || !strings.Contains(buf.String(), "accepted_price=850") {
		t.Fatalf("unexpected log %q", buf.String())
	}
}

func TestRowFromOutcome(t *testing.T) {
	start := time.Now()
	o := FromSession(acceptedSession(t), "CA1", Vendor{Name: "Hotel Shanti"}, start, start.Add(time.Second))
	o.TranscriptReference = "/tmp/sess-1.jsonl"
	row := rowFromOutcome(o)
	if row.Kind != "accepted" || row.TranscriptRef != o.TranscriptReference {
		t.Fatalf("unexpected row %+v", row)
	}
	if amount, ok := row.AcceptedAmount(); !ok || amount != 720 {
		t.Fatalf("unexpected accepted amount %v %v", amount, ok)
	}
	if len(row.History) != 3 || row.History[1].Source != "user" || row.History[1].Amount != 560 {
		t.Fatalf("unexpected history %+v", row.History)
	}

	o.AcceptedPrice = nil
	if _, ok := rowFromOutcome(o).AcceptedAmount(); ok {
		t.Fatalf("expected no accepted amount")
	}
}

func TestNewBunArchiveRequiresDSN(t *testing.T) {
	if _, err := NewBunArchive(context.Background(), ""); !errorsx.HasReason(err, errorsx.ReasonOutcomeStore) {
		t.Fatalf("expected outcome_store error, got %v", err)
	}
}
