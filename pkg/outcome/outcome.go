// Package outcome reports finished negotiations to vendor management.
package outcome

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/negotiation"
	"github.com/desiyatra/bargainer/pkg/offer"
)

type Kind string

const (
	KindAccepted    Kind = "accepted"
	KindRejected    Kind = "rejected"
	KindWalkedAway  Kind = "walked_away"
	KindTimedOut    Kind = "timed_out"
	KindCallDropped Kind = "call_dropped"
	KindUnknown     Kind = "unknown"
)

// KindOf maps a terminal phase to its outcome kind.
func KindOf(p negotiation.Phase) Kind {
	switch p {
	case negotiation.PhaseAccepted:
		return KindAccepted
	case negotiation.PhaseRejected:
		return KindRejected
	case negotiation.PhaseWalkedAway:
		return KindWalkedAway
	case negotiation.PhaseTimedOut:
		return KindTimedOut
	case negotiation.PhaseCallDropped:
		return KindCallDropped
	default:
		return KindUnknown
	}
}

// Outcome is the final record of one negotiation call.
type Outcome struct {
	SessionID  string
	CallSID    string
	VendorName string
	VendorType string

	Kind   Kind
	Reason string
	// AcceptedPrice is nil unless Kind is KindAccepted.
	AcceptedPrice *offer.Amount
	Currency      string
	Unit          offer.Unit
	RoundCount    int

	// TranscriptReference locates the call timeline, when one was recorded.
	TranscriptReference string
	History             []offer.Offer
	StartedAt           time.Time
	EndedAt             time.Time
}

// Vendor identifies who was called.
type Vendor struct {
	Name string
	Type string
}

// FromSession builds the outcome of a terminal session.
func FromSession(s negotiation.Session, callSID string, vendor Vendor, startedAt, endedAt time.Time) Outcome {
	out := Outcome{
		SessionID:  s.ID,
		CallSID:    callSID,
		VendorName: vendor.Name,
		VendorType: vendor.Type,
		Kind:       KindOf(s.Phase),
		Currency:   s.Terms.Currency,
		Unit:       s.Terms.Unit,
		RoundCount: s.RoundCount,
		History:    append([]offer.Offer(nil), s.History...),
		StartedAt:  startedAt,
		EndedAt:    endedAt,
	}
	if s.Outcome != nil {
		out.Reason = string(s.Outcome.Reason)
		if s.Outcome.AcceptedPrice != nil {
			price := *s.Outcome.AcceptedPrice
			out.AcceptedPrice = &price
		}
	}
	return out
}

// Reporter receives finished outcomes.
type Reporter interface {
	Report(ctx context.Context, o Outcome) error
}

type ReporterFunc func(ctx context.Context, o Outcome) error

func (f ReporterFunc) Report(ctx context.Context, o Outcome) error { return f(ctx, o) }

// LogReporter writes outcomes to the structured log.
type LogReporter struct {
	log *slog.Logger
}

func NewLogReporter(log *slog.Logger) *LogReporter {
	if log == nil {
		log = slog.Default()
	}
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(ctx context.Context, o Outcome) error {
	attrs := []any{
		"session_id", o.SessionID,
		"call_sid", o.CallSID,
		"vendor", o.VendorName,
		"kind", string(o.Kind),
		"reason", o.Reason,
		"rounds", o.RoundCount,
		"duration_ms", o.EndedAt.Sub(o.StartedAt).Milliseconds(),
	}
	if o.AcceptedPrice != nil {
		attrs = append(attrs, "accepted_price", int64(*o.AcceptedPrice), "currency", o.Currency)
	}
	if o.TranscriptReference != "" {
		attrs = append(attrs, "transcript", o.TranscriptReference)
	}
	r.log.InfoContext(ctx, "negotiation_outcome", attrs...)
	return nil
}

// MultiReporter fans out to every reporter and joins their errors.
type MultiReporter struct {
	list []Reporter
}

func NewMultiReporter(list ...Reporter) *MultiReporter {
	return &MultiReporter{list: list}
}

func (m *MultiReporter) Report(ctx context.Context, o Outcome) error {
	var errs error
	for _, r := range m.list {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, o); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errorsx.Wrap(errs, errorsx.ReasonOutcomeReport)
}

// MemoryReporter keeps outcomes in memory.
type MemoryReporter struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{}
}

func (m *MemoryReporter) Report(_ context.Context, o Outcome) error {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, o)
	m.mu.Unlock()
	return nil
}

func (m *MemoryReporter) Outcomes() []Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Outcome(nil), m.outcomes...)
}
