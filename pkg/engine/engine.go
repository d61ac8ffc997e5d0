// Package engine routes telephony frames to negotiation sessions.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/desiyatra/bargainer/pkg/adapters/stt"
	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/frames"
	"github.com/desiyatra/bargainer/pkg/logging"
	"github.com/desiyatra/bargainer/pkg/session"
	"github.com/desiyatra/bargainer/pkg/transcript"
	"github.com/desiyatra/bargainer/pkg/transports"
)

type Config struct {
	// STT transcribes inbound audio. Nil means the transport delivers text.
	STT    stt.Factory
	Logger *slog.Logger
}

// Engine connects a transport to the session registry: call_start opens a
// session, audio goes through STT, text and end_of_turn become fragments,
// call_end drops the call.
type Engine struct {
	transport transports.Transport
	registry  *session.Registry
	stt       stt.Factory
	logger    *slog.Logger

	mu          sync.Mutex
	recognizers map[string]stt.StreamingSTT
}

func New(tr transports.Transport, reg *session.Registry, cfg Config) *Engine {
	return &Engine{
		transport:   tr,
		registry:    reg,
		stt:         cfg.STT,
		logger:      logging.NewComponentLogger(cfg.Logger, "engine"),
		recognizers: make(map[string]stt.StreamingSTT),
	}
}

// Run routes frames until ctx ends or the transport closes its channel.
func (e *Engine) Run(ctx context.Context) error {
	defer e.closeRecognizers()
	recv := e.transport.Recv()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-recv:
			if !ok {
				return nil
			}
			e.Route(ctx, f)
		}
	}
}

// Route handles one frame. It is safe to call from several goroutines.
func (e *Engine) Route(ctx context.Context, f frames.Frame) {
	meta := f.Meta()
	callSID := meta[frames.MetaCallSID]
	if callSID == "" {
		return
	}
	switch fr := f.(type) {
	case frames.SystemFrame:
		switch fr.Name() {
		case frames.SystemCallStart:
			e.startCall(ctx, callSID, meta)
		case frames.SystemCallReconnect:
			e.logger.Debug("call_reconnect", "call_sid", callSID, "stream_id", meta[frames.MetaStreamID])
		case frames.SystemCallEnd:
			e.endCall(ctx, callSID, meta[frames.MetaCallEndReason])
		}
	case frames.AudioFrame:
		if rec := e.recognizer(callSID); rec != nil {
			if err := rec.SendAudio(fr); err != nil {
				e.logger.Debug("stt_send_error", "call_sid", callSID, "reason_code", string(errorsx.Reason(err)), "error", err)
			}
		}
	case frames.TextFrame:
		e.dispatch(ctx, callSID, session.FragmentEvent(textFragment(fr)))
	case frames.ControlFrame:
		switch fr.Code() {
		case frames.ControlEndOfTurn:
			e.dispatch(ctx, callSID, session.FragmentEvent(transcript.Fragment{
				Speaker:   speakerOf(meta),
				EndOfTurn: true,
				Timestamp: time.Now(),
			}))
		case frames.ControlHangup:
			e.registry.Remove(callSID)
		}
	}
}

func (e *Engine) startCall(ctx context.Context, callSID string, meta map[string]string) {
	h, created, err := e.registry.Start(callSID, meta)
	if err != nil {
		e.logger.Warn("call_rejected", "call_sid", callSID, "reason_code", string(errorsx.Reason(err)), "error", err)
		if hErr := e.transport.Hangup(ctx, callSID); hErr != nil {
			e.logger.Warn("call_reject_hangup_failed", "call_sid", callSID, "error", hErr)
		}
		return
	}
	if !created {
		return
	}
	e.logger.Info("session_started", "call_sid", callSID, "vendor", meta[frames.MetaVendorName], "active_calls", e.registry.Count())

	if e.stt != nil {
		rec, err := e.stt(stt.Config{
			StreamID: meta[frames.MetaStreamID],
			CallSID:  callSID,
			TraceID:  meta[frames.MetaTraceID],
		})
		if err == nil {
			err = rec.Start(context.WithoutCancel(ctx))
		}
		if err != nil {
			e.logger.Error("stt_start_failed", "call_sid", callSID, "reason_code", string(errorsx.Reason(err)), "error", err)
			e.registry.Remove(callSID)
			return
		}
		e.mu.Lock()
		e.recognizers[callSID] = rec
		e.mu.Unlock()
		go func() {
			for f := range rec.Results() {
				e.Route(ctx, f)
			}
		}()
	}
	go func() {
		<-h.Done()
		e.closeRecognizer(callSID)
	}()
}

func (e *Engine) endCall(ctx context.Context, callSID, reason string) {
	e.closeRecognizer(callSID)
	err := e.registry.Dispatch(ctx, callSID, session.CallDroppedEvent(reason))
	if err != nil && !errors.Is(err, session.ErrUnknownCall) {
		e.logger.Warn("call_end_dispatch_failed", "call_sid", callSID, "error", err)
	}
}

func (e *Engine) dispatch(ctx context.Context, callSID string, ev session.Event) {
	if err := e.registry.Dispatch(ctx, callSID, ev); err != nil {
		e.logger.Debug("dispatch_dropped", "call_sid", callSID, "error", err)
	}
}

func (e *Engine) recognizer(callSID string) stt.StreamingSTT {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recognizers[callSID]
}

func (e *Engine) closeRecognizer(callSID string) {
	e.mu.Lock()
	rec := e.recognizers[callSID]
	delete(e.recognizers, callSID)
	e.mu.Unlock()
	if rec != nil {
		_ = rec.Close()
	}
}

func (e *Engine) closeRecognizers() {
	e.mu.Lock()
	recs := e.recognizers
	e.recognizers = make(map[string]stt.StreamingSTT)
	e.mu.Unlock()
	for _, rec := range recs {
		_ = rec.Close()
	}
}

// textFragment reads STT meta. A frame without is_final is a complete turn,
// as delivered by text transports.
func textFragment(f frames.TextFrame) transcript.Fragment {
	meta := f.Meta()
	frag := transcript.Fragment{
		Speaker:    speakerOf(meta),
		Text:       f.Text(),
		Confidence: 1,
		Language:   meta[frames.MetaLanguage],
	}
	if pts := f.PTS(); pts > 0 {
		frag.Timestamp = time.Unix(0, pts)
	}
	if v, err := strconv.ParseFloat(meta[frames.MetaConfidence], 64); err == nil {
		frag.Confidence = v
	}
	switch meta[frames.MetaIsFinal] {
	case "false":
		frag.Partial = true
	case "true":
	default:
		frag.EndOfTurn = true
	}
	return frag
}

// speakerOf defaults to the vendor: inbound call audio is the vendor's side.
func speakerOf(meta map[string]string) transcript.Speaker {
	if s := transcript.ParseSpeaker(meta[frames.MetaSpeaker]); s != transcript.SpeakerUnknown {
		return s
	}
	return transcript.SpeakerVendor
}
