package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/desiyatra/bargainer/pkg/composer"
	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/intent"
	"github.com/desiyatra/bargainer/pkg/logging"
	"github.com/desiyatra/bargainer/pkg/metrics"
	"github.com/desiyatra/bargainer/pkg/negotiation"
	"github.com/desiyatra/bargainer/pkg/offer"
	"github.com/desiyatra/bargainer/pkg/outcome"
	"github.com/desiyatra/bargainer/pkg/redact"
	"github.com/desiyatra/bargainer/pkg/transcript"
)

const (
	DefaultPerTurnTimeout = 20 * time.Second
	closingTimeout        = 5 * time.Second
)

// Config is the per-call setup.
type Config struct {
	SessionID      string
	CallSID        string
	Vendor         outcome.Vendor
	Terms          negotiation.Terms
	Language       composer.Language
	PerTurnTimeout time.Duration
	Replacements   map[string]string
}

// Deps are the collaborators shared across calls. Extractor, Composer and
// Classifier are read-only and safe to share.
type Deps struct {
	Speaker    Speaker
	Extractor  *offer.Extractor
	Composer   *composer.Composer
	Classifier intent.Classifier
	Reporter   outcome.Reporter
	Observer   metrics.Observer
	// Transcripts resolves the transcript reference of a session, if recorded.
	Transcripts interface{ Path(sessionID string) string }
	Logger      *slog.Logger
	Now         func() time.Time
}

// Orchestrator runs exactly one call. All of its state is touched only from
// the goroutine executing Run.
type Orchestrator struct {
	cfg        Config
	deps       Deps
	normalizer *transcript.Normalizer
	session    negotiation.Session
	closing    negotiation.Action
	startedAt  time.Time
	logger     *slog.Logger
}

func NewOrchestrator(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Speaker == nil {
		return nil, errors.New("session: speaker is required")
	}
	if deps.Composer == nil {
		return nil, errors.New("session: composer is required")
	}
	terms := cfg.Terms.WithDefaults()
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if cfg.PerTurnTimeout <= 0 {
		cfg.PerTurnTimeout = DefaultPerTurnTimeout
	}
	if cfg.Language == "" {
		cfg.Language = composer.LangHinglish
	}
	if cfg.SessionID == "" {
		cfg.SessionID = cfg.CallSID
	}
	if deps.Extractor == nil {
		voc := offer.DefaultVocabulary(terms.Currency, terms.Unit)
		deps.Extractor = offer.NewExtractor(offer.ExtractorConfig{Vocabulary: &voc})
	}
	if deps.Classifier == nil {
		deps.Classifier = intent.NewKeywordClassifier(nil, nil)
	}
	if deps.Reporter == nil {
		deps.Reporter = outcome.NewLogReporter(deps.Logger)
	}
	if deps.Observer == nil {
		deps.Observer = metrics.NoopObserver{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := logging.NewComponentLogger(deps.Logger, "session").With(
		"session_id", cfg.SessionID,
		"call_sid", cfg.CallSID,
	)
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		normalizer: transcript.NewNormalizer(transcript.Config{
			Replacements: cfg.Replacements,
			Now:          deps.Now,
		}),
		session: negotiation.NewSession(cfg.SessionID, terms),
		logger:  logger,
	}, nil
}

// Session returns the current negotiation state. Only safe once Run returned.
func (o *Orchestrator) Session() negotiation.Session {
	return o.session
}

// Run drives the call until the negotiation is terminal, then voices the
// closing line, hangs up and reports the outcome. The returned error is
// ErrSessionTimedOut or ErrCallDropped for infrastructure endings.
func (o *Orchestrator) Run(ctx context.Context, events <-chan Event) (outcome.Outcome, error) {
	defer o.normalizer.Reset()

	o.startedAt = o.deps.Now()
	o.record(metrics.EventCallStarted, 0, nil)
	o.logger.Info("negotiation_started",
		"vendor", o.cfg.Vendor.Name,
		"target", int64(o.session.Terms.TargetPrice),
		"ceiling", int64(o.session.Terms.CeilingBound),
		"max_rounds", o.session.Terms.MaxRounds,
	)

	s, act := negotiation.Open(o.session)
	o.session = s
	o.say(ctx, act)

	timer := time.NewTimer(o.cfg.PerTurnTimeout)
	defer timer.Stop()

	for !o.session.Terminal() {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				o.apply(ctx, negotiation.Event{Kind: negotiation.EventTimeout})
			} else {
				o.apply(ctx, negotiation.Event{Kind: negotiation.EventCallDropped})
			}
		case <-timer.C:
			o.logger.Info("per_turn_timeout", "timeout_ms", o.cfg.PerTurnTimeout.Milliseconds())
			o.apply(ctx, negotiation.Event{Kind: negotiation.EventTimeout})
		case ev, ok := <-events:
			if !ok {
				o.apply(ctx, negotiation.Event{Kind: negotiation.EventCallDropped})
				continue
			}
			switch ev.Kind {
			case EventCallDropped:
				o.logger.Info("call_dropped", "reason", ev.Reason)
				o.apply(ctx, negotiation.Event{Kind: negotiation.EventCallDropped})
			case EventFragment:
				o.onFragment(ctx, ev.Fragment)
				resetTimer(timer, o.cfg.PerTurnTimeout)
			}
		}
	}
	return o.finish(ctx)
}

func (o *Orchestrator) onFragment(ctx context.Context, f transcript.Fragment) {
	o.record(metrics.EventFragment, f.Confidence, map[string]any{
		"speaker":     f.Speaker.String(),
		"partial":     f.Partial,
		"end_of_turn": f.EndOfTurn,
	})
	u, done, err := o.normalizer.Push(f)
	if errors.Is(err, transcript.ErrIncompleteTurn) {
		if f.Speaker == transcript.SpeakerVendor {
			o.logger.Debug("incomplete_turn", "reason_code", string(errorsx.ReasonIncompleteTurn))
			o.apply(ctx, negotiation.Event{Kind: negotiation.EventIncompleteTurn})
		}
		return
	}
	if err != nil || !done {
		return
	}

	o.record(metrics.EventUtterance, u.Confidence, map[string]any{
		"speaker":      u.Speaker.String(),
		"utterance_id": u.ID,
		"text":         u.RawText,
	})
	o.logger.Info("utterance_final",
		"speaker", u.Speaker.String(),
		"utterance_id", u.ID,
		"confidence", u.Confidence,
		"text", redact.Text(u.RawText),
	)
	if u.Speaker != transcript.SpeakerVendor {
		return
	}
	o.apply(ctx, o.interpret(ctx, u))
}

// interpret turns a vendor utterance into a negotiation event. A price always
// wins over intent; intent only matters when there is no amount at all.
func (o *Orchestrator) interpret(ctx context.Context, u transcript.Utterance) negotiation.Event {
	got, err := o.deps.Extractor.Extract(u, offer.SourceVendor)
	if err == nil {
		return negotiation.OfferEvent(got)
	}
	var amb *offer.AmbiguousError
	if errors.As(err, &amb) {
		o.logger.Info("offer_ambiguous", "reason_code", string(errorsx.ReasonAmbiguousOffer), "candidates", fmt.Sprint(amb.Candidates))
		return negotiation.AmbiguousEvent(amb.Candidates...)
	}

	it, cerr := o.deps.Classifier.Classify(ctx, u)
	if cerr != nil {
		o.logger.Warn("intent_classify_error", "reason_code", string(errorsx.Reason(cerr)), "error", cerr)
	}
	switch it {
	case intent.Decline:
		return negotiation.Event{Kind: negotiation.EventDecline}
	case intent.Agree:
		return negotiation.Event{Kind: negotiation.EventAgree}
	default:
		o.logger.Debug("no_offer", "reason_code", string(errorsx.ReasonExtractionFailure))
		return negotiation.Event{Kind: negotiation.EventNoOffer}
	}
}

func (o *Orchestrator) apply(ctx context.Context, ev negotiation.Event) {
	prev := o.session
	next, act, err := negotiation.Transition(prev, ev)
	if err != nil {
		o.logger.Error("negotiation_transition_error", "event", ev.Kind.String(), "reason_code", string(errorsx.Reason(err)), "error", err)
		return
	}
	o.session = next
	o.record(metrics.EventTransition, float64(act.Offer.Amount), map[string]any{
		"event":  ev.Kind.String(),
		"from":   prev.Phase.String(),
		"to":     next.Phase.String(),
		"action": act.Kind.String(),
		"reason": string(act.Reason),
		"round":  next.RoundCount,
	})
	o.logger.Info("negotiation_transition",
		"event", ev.Kind.String(),
		"transition", negotiation.Describe(prev, next, act),
		"amount", int64(act.Offer.Amount),
	)
	if next.Terminal() {
		o.closing = act
		return
	}
	o.say(ctx, act)
}

func (o *Orchestrator) say(ctx context.Context, act negotiation.Action) {
	line, err := o.deps.Composer.Compose(act, o.cfg.Language)
	if err != nil {
		o.logger.Error("compose_error", "action", act.Kind.String(), "error", err)
		return
	}
	if err := o.deps.Speaker.Speak(ctx, o.cfg.CallSID, line.Text, line.LanguageTag); err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonTransportSpeak)
		o.logger.Error("speak_error", "reason_code", string(errorsx.Reason(err)), "error", err)
		return
	}
	o.record(metrics.EventResponseSpoken, 0, map[string]any{
		"action": act.Kind.String(),
		"text":   line.Text,
	})
}

func (o *Orchestrator) finish(ctx context.Context) (outcome.Outcome, error) {
	s := o.session
	// The call context may already be gone; closing work gets its own budget.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closingTimeout)
	defer cancel()

	if s.Phase != negotiation.PhaseCallDropped {
		o.say(fctx, o.closing)
		if err := o.deps.Speaker.Hangup(fctx, o.cfg.CallSID); err != nil {
			err = errorsx.Wrap(err, errorsx.ReasonTransportHangup)
			o.logger.Warn("hangup_error", "reason_code", string(errorsx.Reason(err)), "error", err)
		}
	}

	out := outcome.FromSession(s, o.cfg.CallSID, o.cfg.Vendor, o.startedAt, o.deps.Now())
	if o.deps.Transcripts != nil {
		out.TranscriptReference = o.deps.Transcripts.Path(s.ID)
	}
	var price float64
	if out.AcceptedPrice != nil {
		price = float64(*out.AcceptedPrice)
	}
	o.record(metrics.EventOutcome, price, map[string]any{
		"kind":   string(out.Kind),
		"reason": out.Reason,
		"rounds": out.RoundCount,
	})

	var errs error
	if err := o.deps.Reporter.Report(fctx, out); err != nil {
		errs = errorsx.Wrap(err, errorsx.ReasonOutcomeReport)
		o.logger.Error("outcome_report_error", "error", err)
	}
	switch s.Phase {
	case negotiation.PhaseTimedOut:
		errs = errors.Join(errorsx.New(errorsx.ReasonSessionTimedOut, "%w", ErrSessionTimedOut), errs)
	case negotiation.PhaseCallDropped:
		errs = errors.Join(errorsx.New(errorsx.ReasonCallDropped, "%w", ErrCallDropped), errs)
	}
	return out, errs
}

func (o *Orchestrator) record(name string, value float64, fields map[string]any) {
	o.deps.Observer.RecordEvent(metrics.MetricsEvent{
		Name:  name,
		Time:  o.deps.Now(),
		Value: value,
		Tags: map[string]string{
			metrics.TagSessionID: o.cfg.SessionID,
			metrics.TagCallSID:   o.cfg.CallSID,
		},
		Fields: fields,
	})
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
