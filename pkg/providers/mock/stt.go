package mock

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/desiyatra/bargainer/pkg/adapters/stt"
	"github.com/desiyatra/bargainer/pkg/frames"
)

// STTConfig scripts what the vendor "says". Each audio frame releases the
// next scripted line as a final transcript followed by an end of turn.
type STTConfig struct {
	Script     []string
	Confidence float64
	// EmitInterim sends a partial hypothesis (the first word) before each line.
	EmitInterim bool
}

// NewSTTFactory hands every call its own copy of the script.
func NewSTTFactory(cfg STTConfig) stt.Factory {
	return func(call stt.Config) (stt.StreamingSTT, error) {
		return NewSTT(cfg, call), nil
	}
}

type StreamingSTT struct {
	cfg  STTConfig
	call stt.Config
	out  chan frames.Frame

	mu      sync.Mutex
	started bool
	next    int
}

func NewSTT(cfg STTConfig, call stt.Config) *StreamingSTT {
	if cfg.Confidence <= 0 {
		cfg.Confidence = 0.95
	}
	return &StreamingSTT{cfg: cfg, call: call, out: make(chan frames.Frame, 64)}
}

func (s *StreamingSTT) Name() string { return "mock_stt" }

func (s *StreamingSTT) Start(context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *StreamingSTT) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out != nil {
		close(s.out)
		s.out = nil
	}
	s.started = false
	return nil
}

func (s *StreamingSTT) SendAudio(frames.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.out == nil {
		return errors.New("mock stt: not started")
	}
	if s.next >= len(s.cfg.Script) {
		return nil
	}
	line := s.cfg.Script[s.next]
	s.next++

	if s.cfg.EmitInterim {
		if first, _, ok := cutWord(line); ok {
			s.push(frames.NewTextFrame(s.call.StreamID, time.Now().UnixNano(), first, s.meta("false")))
		}
	}
	s.push(frames.NewTextFrame(s.call.StreamID, time.Now().UnixNano(), line, s.meta("true")))
	end := s.meta("")
	end[frames.MetaReason] = "speech_final"
	s.push(frames.NewControlFrame(s.call.StreamID, time.Now().UnixNano(), frames.ControlEndOfTurn, end))
	return nil
}

func (s *StreamingSTT) Results() <-chan frames.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

func (s *StreamingSTT) push(f frames.Frame) {
	select {
	case s.out <- f:
	default:
	}
}

func (s *StreamingSTT) meta(isFinal string) map[string]string {
	meta := map[string]string{
		frames.MetaCallSID:    s.call.CallSID,
		frames.MetaSource:     "stt",
		frames.MetaSpeaker:    "vendor",
		frames.MetaConfidence: strconv.FormatFloat(s.cfg.Confidence, 'f', 2, 64),
	}
	if isFinal != "" {
		meta[frames.MetaIsFinal] = isFinal
	}
	return meta
}

func cutWord(line string) (string, string, bool) {
	for i, r := range line {
		if r == ' ' {
			return line[:i], line[i+1:], i > 0
		}
	}
	return "", "", false
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
