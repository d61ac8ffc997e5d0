package mock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desiyatra/bargainer/pkg/frames"
)

// Transport is an in-memory telephony transport. Inbound frames are injected
// with Push; spoken lines and hangups show up on Sent as text and control frames.
type Transport struct {
	recvCh chan frames.Frame
	sentCh chan frames.Frame
	closed atomic.Bool
	mu     sync.Mutex

	// SpeakErr, when set, is returned by every Speak call.
	SpeakErr error
}

func New() *Transport {
	return &Transport{
		recvCh: make(chan frames.Frame, 256),
		sentCh: make(chan frames.Frame, 256),
	}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	if t.closed.CompareAndSwap(false, true) {
		t.mu.Lock()
		close(t.recvCh)
		close(t.sentCh)
		t.mu.Unlock()
	}
	return nil
}

func (t *Transport) Recv() <-chan frames.Frame { return t.recvCh }

func (t *Transport) Speak(_ context.Context, callSID, text, languageTag string) error {
	if t.SpeakErr != nil {
		return t.SpeakErr
	}
	return t.send(frames.NewTextFrame("", time.Now().UnixNano(), text, map[string]string{
		frames.MetaCallSID:  callSID,
		frames.MetaLanguage: languageTag,
		frames.MetaSource:   "speaker",
	}))
}

func (t *Transport) Hangup(_ context.Context, callSID string) error {
	return t.send(frames.NewControlFrame("", time.Now().UnixNano(), frames.ControlHangup, map[string]string{
		frames.MetaCallSID: callSID,
	}))
}

func (t *Transport) send(f frames.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return errors.New("mock transport: closed")
	}
	select {
	case t.sentCh <- f:
	default:
	}
	return nil
}

// Push injects an inbound frame into the transport.
func (t *Transport) Push(f frames.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return
	}
	select {
	case t.recvCh <- f:
	default:
	}
}

// Sent exposes outbound frames for inspection.
func (t *Transport) Sent() <-chan frames.Frame { return t.sentCh }
