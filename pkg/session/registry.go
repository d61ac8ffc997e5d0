package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/logging"
	"github.com/desiyatra/bargainer/pkg/outcome"
)

var (
	ErrCapacity    = errors.New("session: max concurrent calls reached")
	ErrDraining    = errors.New("session: registry is draining")
	ErrUnknownCall = errors.New("session: no live call for sid")
)

const eventBuffer = 64

// Factory builds the orchestrator for a new call. meta carries whatever the
// telephony start event provided (vendor name, language, prices).
type Factory func(callSID string, meta map[string]string) (*Orchestrator, error)

// Handle is one live call.
type Handle struct {
	CallSID string
	Created time.Time

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	result outcome.Outcome
	err    error
}

// Done is closed once the call has been reported.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result is valid after Done is closed.
func (h *Handle) Result() (outcome.Outcome, error) {
	<-h.done
	return h.result, h.err
}

type RegistryConfig struct {
	// MaxConcurrentCalls caps live calls. Zero means unlimited.
	MaxConcurrentCalls int
	// CallTimeout bounds a whole call. Zero means no deadline.
	CallTimeout time.Duration
	// OnDone is called from the session goroutine after a call finished.
	OnDone func(out outcome.Outcome, err error)
	Logger *slog.Logger
}

// Registry owns every live call and the goroutine driving it.
type Registry struct {
	sessions sync.Map
	count    atomic.Int64
	draining atomic.Bool
	factory  Factory
	cfg      RegistryConfig
	logger   *slog.Logger
}

func NewRegistry(factory Factory, cfg RegistryConfig) *Registry {
	return &Registry{
		factory: factory,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(cfg.Logger, "registry"),
	}
}

// Start launches the session for callSID. A repeated start for a live call
// returns the existing handle and false.
func (r *Registry) Start(callSID string, meta map[string]string) (*Handle, bool, error) {
	if callSID == "" {
		return nil, false, errors.New("session: empty call sid")
	}
	if v, ok := r.sessions.Load(callSID); ok {
		return v.(*Handle), false, nil
	}
	if r.draining.Load() {
		return nil, false, errorsx.Wrap(ErrDraining, errorsx.ReasonCapacity)
	}
	if n := r.count.Add(1); r.cfg.MaxConcurrentCalls > 0 && n > int64(r.cfg.MaxConcurrentCalls) {
		r.count.Add(-1)
		return nil, false, errorsx.Wrap(ErrCapacity, errorsx.ReasonCapacity)
	}

	orch, err := r.factory(callSID, meta)
	if err != nil {
		r.count.Add(-1)
		return nil, false, err
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if r.cfg.CallTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.cfg.CallTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	h := &Handle{
		CallSID: callSID,
		Created: time.Now(),
		events:  make(chan Event, eventBuffer),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if actual, loaded := r.sessions.LoadOrStore(callSID, h); loaded {
		cancel()
		r.count.Add(-1)
		return actual.(*Handle), false, nil
	}

	go r.run(ctx, h, orch)
	return h, true, nil
}

func (r *Registry) run(ctx context.Context, h *Handle, orch *Orchestrator) {
	defer func() {
		h.cancel()
		r.sessions.CompareAndDelete(h.CallSID, h)
		r.count.Add(-1)
		close(h.done)
	}()
	h.result, h.err = orch.Run(ctx, h.events)
	if h.err != nil {
		r.logger.Info("session_ended", "call_sid", h.CallSID, "kind", string(h.result.Kind), "reason_code", string(errorsx.Reason(h.err)))
	}
	if r.cfg.OnDone != nil {
		r.cfg.OnDone(h.result, h.err)
	}
}

func (r *Registry) Get(callSID string) (*Handle, bool) {
	if v, ok := r.sessions.Load(callSID); ok {
		return v.(*Handle), true
	}
	return nil, false
}

// Dispatch hands ev to the call's session. It blocks while the session's
// buffer is full and fails once the session is gone.
func (r *Registry) Dispatch(ctx context.Context, callSID string, ev Event) error {
	h, ok := r.Get(callSID)
	if !ok {
		return ErrUnknownCall
	}
	// A finished call never buffers events.
	select {
	case <-h.done:
		return ErrUnknownCall
	default:
	}
	select {
	case h.events <- ev:
		return nil
	case <-h.done:
		return ErrUnknownCall
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Remove cancels the call. Its session reports the call as dropped.
func (r *Registry) Remove(callSID string) {
	if h, ok := r.Get(callSID); ok {
		h.cancel()
	}
}

func (r *Registry) CloseAll() {
	r.sessions.Range(func(_, value any) bool {
		value.(*Handle).cancel()
		return true
	})
}

func (r *Registry) Count() int64 {
	return r.count.Load()
}

func (r *Registry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *Registry) Draining() bool {
	return r.draining.Load()
}

func (r *Registry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
