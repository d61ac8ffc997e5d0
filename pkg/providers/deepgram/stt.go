package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desiyatra/bargainer/pkg/adapters/stt"
	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/frames"
	"github.com/desiyatra/bargainer/pkg/logging"
	"github.com/desiyatra/bargainer/pkg/resilience"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Config holds provider settings; the stt.Config fields are filled per call.
type Config struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	Encoding       string `mapstructure:"encoding"`
	SampleRate     int    `mapstructure:"sample_rate"`
	UtteranceEndMS int    `mapstructure:"utterance_end_ms"`
	Interim        bool   `mapstructure:"interim"`
	ConnectRetries int    `mapstructure:"connect_retries"`
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.Language == "" {
		c.Language = "hi"
	}
	if c.Encoding == "" {
		c.Encoding = "mulaw"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 8000
	}
	if c.UtteranceEndMS == 0 {
		c.UtteranceEndMS = 1000
	}
	return c
}

// NewFactory returns a per-call recognizer factory.
func NewFactory(cfg Config) stt.Factory {
	return func(call stt.Config) (stt.StreamingSTT, error) {
		if cfg.APIKey == "" {
			return nil, errorsx.New(errorsx.ReasonSTTConnect, "deepgram: api_key is required")
		}
		return New(cfg, call), nil
	}
}

// StreamingSTT streams one call's audio to Deepgram live transcription. Every
// transcript is the vendor's side of the call.
type StreamingSTT struct {
	cfg  Config
	call stt.Config

	dgClient   *client.WSCallback
	out        chan frames.Frame
	ctx        context.Context
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	logger     *slog.Logger
	retry      resilience.RetryPolicy

	closeOnce  sync.Once
	mu         sync.Mutex
	closed     bool
	metaLogged bool
	// turnClosed is set once the current vendor turn has been ended and
	// cleared by the next non-empty transcript.
	turnClosed atomic.Bool
}

func New(cfg Config, call stt.Config) *StreamingSTT {
	cfg = cfg.withDefaults()
	if call.SampleRate > 0 {
		cfg.SampleRate = call.SampleRate
	}
	if call.Encoding != "" {
		cfg.Encoding = call.Encoding
	}
	if call.Language != "" {
		cfg.Language = call.Language
	}
	return &StreamingSTT{
		cfg:  cfg,
		call: call,
		out:  make(chan frames.Frame, 256),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt").With(
			"call_sid", call.CallSID,
			"stream_id", call.StreamID,
		),
		retry: resilience.NewRetryPolicy(cfg.ConnectRetries, 200*time.Millisecond),
	}
}

func (s *StreamingSTT) Name() string { return "deepgram_streaming" }

func (s *StreamingSTT) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.pipeReader, s.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          s.cfg.Model,
		Language:       s.cfg.Language,
		Encoding:       s.cfg.Encoding,
		SampleRate:     s.cfg.SampleRate,
		InterimResults: s.cfg.Interim || s.cfg.UtteranceEndMS > 0,
		VadEvents:      s.cfg.UtteranceEndMS > 0,
		SmartFormat:    true,
		Numerals:       true,
		Punctuate:      true,
	}
	if s.cfg.UtteranceEndMS > 0 {
		transcriptOptions.UtteranceEndMs = strconv.Itoa(s.cfg.UtteranceEndMS)
	}

	err := s.retry.Do(s.ctx, func() error {
		dg, err := client.NewWSUsingCallback(s.ctx, s.cfg.APIKey, clientOptions, transcriptOptions, &callback{parent: s})
		if err != nil {
			return err
		}
		if !dg.Connect() {
			return errors.New("deepgram connection failed")
		}
		s.dgClient = dg
		return nil
	})
	if err != nil {
		s.logger.Error("deepgram_connect_failed", "reason_code", string(errorsx.ReasonSTTConnect), "error", err)
		return errorsx.Wrap(err, errorsx.ReasonSTTConnect)
	}
	s.logger.Info("deepgram_connected", "model", s.cfg.Model, "language", s.cfg.Language)

	go func() {
		if err := s.dgClient.Stream(s.pipeReader); err != nil && s.ctx.Err() == nil {
			s.logger.Error("deepgram_stream_error", "error", err.Error())
		}
	}()
	return nil
}

func (s *StreamingSTT) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.pipeWriter != nil {
			_ = s.pipeWriter.Close()
		}
		if s.dgClient != nil {
			s.dgClient.Stop()
		}
		s.mu.Lock()
		s.closed = true
		close(s.out)
		s.mu.Unlock()
	})
	return nil
}

func (s *StreamingSTT) SendAudio(frame frames.AudioFrame) error {
	if s.pipeWriter == nil {
		return fmt.Errorf("deepgram: not started")
	}
	if _, err := s.pipeWriter.Write(frame.RawPayload()); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSTTSend)
	}
	return nil
}

func (s *StreamingSTT) Results() <-chan frames.Frame { return s.out }

func (s *StreamingSTT) meta() map[string]string {
	meta := map[string]string{
		frames.MetaCallSID: s.call.CallSID,
		frames.MetaSource:  "stt",
		frames.MetaSpeaker: "vendor",
	}
	if s.call.TraceID != "" {
		meta[frames.MetaTraceID] = s.call.TraceID
	}
	return meta
}

func (s *StreamingSTT) emit(f frames.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- f:
	default:
		s.logger.Warn("deepgram_out_channel_full")
	}
}

// transcriptFrames maps one Deepgram result to a text frame and, on
// speech_final, an end_of_turn control frame.
func (s *StreamingSTT) transcriptFrames(mr *msginterfaces.MessageResponse) []frames.Frame {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	var out []frames.Frame
	if alt.Transcript != "" {
		meta := s.meta()
		meta[frames.MetaIsFinal] = strconv.FormatBool(mr.IsFinal)
		meta[frames.MetaConfidence] = strconv.FormatFloat(alt.Confidence, 'f', 3, 64)
		if s.cfg.Language != "" {
			meta[frames.MetaLanguage] = s.cfg.Language
		}
		out = append(out, frames.NewTextFrame(s.call.StreamID, time.Now().UnixNano(), alt.Transcript, meta))
		s.turnClosed.Store(false)
	}
	if mr.SpeechFinal && !s.turnClosed.Swap(true) {
		meta := s.meta()
		meta[frames.MetaReason] = "speech_final"
		out = append(out, frames.NewControlFrame(s.call.StreamID, time.Now().UnixNano(), frames.ControlEndOfTurn, meta))
	}
	return out
}

type callback struct {
	parent *StreamingSTT
}

func (c *callback) Open(*msginterfaces.OpenResponse) error {
	c.parent.logger.Debug("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	for _, f := range c.parent.transcriptFrames(mr) {
		c.parent.emit(f)
	}
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	if !c.parent.metaLogged {
		c.parent.metaLogged = true
		c.parent.logger.Info("deepgram_metadata_received", "request_id", md.RequestID)
	}
	return nil
}

func (c *callback) SpeechStarted(*msginterfaces.SpeechStartedResponse) error {
	return nil
}

// UtteranceEnd closes the turn when speech_final never arrived.
func (c *callback) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	if c.parent.turnClosed.Swap(true) {
		return nil
	}
	meta := c.parent.meta()
	meta[frames.MetaReason] = "utterance_end"
	c.parent.emit(frames.NewControlFrame(c.parent.call.StreamID, time.Now().UnixNano(), frames.ControlEndOfTurn, meta))
	return nil
}

func (c *callback) Close(*msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error", "error_code", er.ErrCode, "error_message", er.ErrMsg)
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event", "data", string(byData))
	return nil
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
