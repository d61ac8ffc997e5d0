package mock

import (
	"context"
	"testing"

	"github.com/desiyatra/bargainer/pkg/adapters/stt"
	"github.com/desiyatra/bargainer/pkg/frames"
)

func TestScriptedSTTReleasesOneLinePerAudioFrame(t *testing.T) {
	rec, _ := NewSTTFactory(STTConfig{Script: []string{"1000 rupaye lagega", "900 final"}, EmitInterim: true})(stt.Config{CallSID: "CA1"})
	if err := rec.SendAudio(frames.AudioFrame{}); err == nil {
		t.Fatalf("expected error before Start")
	}
	_ = rec.Start(context.Background())
	_ = rec.SendAudio(frames.AudioFrame{})

	interim := (<-rec.Results()).(frames.TextFrame)
	final := (<-rec.Results()).(frames.TextFrame)
	end := (<-rec.Results()).(frames.ControlFrame)
	if interim.Text() != "1000" || interim.Meta()[frames.MetaIsFinal] != "false" {
		t.Fatalf("unexpected interim %q", interim.Text())
	}
	if final.Text() != "1000 rupaye lagega" || final.Meta()[frames.MetaConfidence] != "0.95" {
		t.Fatalf("unexpected final %q %v", final.Text(), final.Meta())
	}
	if end.Code() != frames.ControlEndOfTurn {
		t.Fatalf("expected end of turn")
	}

	_ = rec.SendAudio(frames.AudioFrame{})
	_ = rec.SendAudio(frames.AudioFrame{})
	if n := len(rec.Results()); n != 3 {
		t.Fatalf("script exhausted after two lines, got %d queued frames", n)
	}
	_ = rec.Close()
}
