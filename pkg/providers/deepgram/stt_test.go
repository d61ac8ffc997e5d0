package deepgram

import (
	"testing"

	"github.com/desiyatra/bargainer/pkg/adapters/stt"
	"github.com/desiyatra/bargainer/pkg/frames"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
)

func result(text string, conf float64, isFinal, speechFinal bool) *msginterfaces.MessageResponse {
	return &msginterfaces.MessageResponse{
		IsFinal:     isFinal,
		SpeechFinal: speechFinal,
		Channel: msginterfaces.Channel{
			Alternatives: []msginterfaces.Alternative{{Transcript: text, Confidence: conf}},
		},
	}
}

func TestTranscriptFramesCarryConfidenceAndTurnEnd(t *testing.T) {
	s := New(Config{APIKey: "k"}, stt.Config{CallSID: "CA1", StreamID: "MZ1"})

	got := s.transcriptFrames(result("bhaiya 1000 rupaye", 0.87, true, true))
	if len(got) != 2 {
		t.Fatalf("expected text plus end of turn, got %d frames", len(got))
	}
	tf := got[0].(frames.TextFrame)
	meta := tf.Meta()
	if tf.Text() != "bhaiya 1000 rupaye" || meta[frames.MetaIsFinal] != "true" || meta[frames.MetaConfidence] != "0.870" {
		t.Fatalf("unexpected text frame %q %v", tf.Text(), meta)
	}
	if meta[frames.MetaSpeaker] != "vendor" || meta[frames.MetaCallSID] != "CA1" || meta[frames.MetaLanguage] != "hi" {
		t.Fatalf("unexpected meta %v", meta)
	}
	if cf := got[1].(frames.ControlFrame); cf.Code() != frames.ControlEndOfTurn {
		t.Fatalf("expected end_of_turn, got %s", cf.Code())
	}

	interim := s.transcriptFrames(result("bhaiya", 0.5, false, false))
	if len(interim) != 1 || interim[0].Meta()[frames.MetaIsFinal] != "false" {
		t.Fatalf("unexpected interim frames %v", interim)
	}
	if len(s.transcriptFrames(result("", 0, true, false))) != 0 {
		t.Fatalf("empty transcript must produce nothing")
	}
}

func TestUtteranceEndClosesTurnAndCloseIsIdempotent(t *testing.T) {
	s := New(Config{APIKey: "k"}, stt.Config{CallSID: "CA1"})
	cb := &callback{parent: s}
	_ = cb.UtteranceEnd(&msginterfaces.UtteranceEndResponse{})
	f := <-s.Results()
	if cf, ok := f.(frames.ControlFrame); !ok || cf.Code() != frames.ControlEndOfTurn || cf.Meta()[frames.MetaReason] != "utterance_end" {
		t.Fatalf("unexpected frame %v", f)
	}
	_ = s.Close()
	_ = s.Close()
	cb.parent.emit(frames.NewTextFrame("", 0, "late", nil))
	if _, ok := <-s.Results(); ok {
		t.Fatalf("results must be closed")
	}
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	if _, err := NewFactory(Config{})(stt.Config{}); err == nil {
		t.Fatalf("expected missing api key error")
	}
	rec, err := NewFactory(Config{APIKey: "k"})(stt.Config{SampleRate: 16000, Encoding: "linear16"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	d := rec.(*StreamingSTT)
	if d.cfg.SampleRate != 16000 || d.cfg.Encoding != "linear16" || d.cfg.Model != "nova-2" {
		t.Fatalf("unexpected config %+v", d.cfg)
	}
}

func drain(ch <-chan frames.Frame) []frames.Frame {
	var out []frames.Frame
	for {
		select {
		case f := <-ch:
			out = append(out, f)
		default:
			return out
		}
	}
}

func endsOfTurn(fs []frames.Frame) []string {
	var reasons []string
	for _, f := range fs {
		if cf, ok := f.(frames.ControlFrame); ok && cf.Code() == frames.ControlEndOfTurn {
			reasons = append(reasons, cf.Meta()[frames.MetaReason])
		}
	}
	return reasons
}

func TestUtteranceEndAfterSpeechFinalDoesNotEndTurnTwice(t *testing.T) {
	s := New(Config{APIKey: "k"}, stt.Config{CallSID: "CA1", StreamID: "MZ1"})
	cb := &callback{parent: s}

	_ = cb.Message(result("bhaiya 1000 rupaye lagega", 0.9, true, true))
	_ = cb.UtteranceEnd(&msginterfaces.UtteranceEndResponse{})
	if got := endsOfTurn(drain(s.Results())); len(got) != 1 || got[0] != "speech_final" {
		t.Fatalf("expected a single speech_final end of turn, got %v", got)
	}

	_ = cb.Message(result("theek hai 900", 0.9, true, false))
	_ = cb.UtteranceEnd(&msginterfaces.UtteranceEndResponse{})
	_ = cb.UtteranceEnd(&msginterfaces.UtteranceEndResponse{})
	if got := endsOfTurn(drain(s.Results())); len(got) != 1 || got[0] != "utterance_end" {
		t.Fatalf("expected a single utterance_end end of turn, got %v", got)
	}
}
