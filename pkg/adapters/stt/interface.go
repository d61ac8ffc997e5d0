package stt

import (
	"context"

	"github.com/desiyatra/bargainer/pkg/frames"
)

// StreamingSTT turns one call's inbound audio into text frames (is_final,
// confidence and speaker meta) and end_of_turn control frames.
type StreamingSTT interface {
	Name() string
	Start(ctx context.Context) error
	Close() error
	SendAudio(frame frames.AudioFrame) error
	Results() <-chan frames.Frame
}

// Config identifies the call a recognizer is attached to.
type Config struct {
	StreamID   string
	CallSID    string
	TraceID    string
	SampleRate int
	Encoding   string
	Language   string
}

// Factory opens a recognizer per call.
type Factory func(cfg Config) (StreamingSTT, error)
