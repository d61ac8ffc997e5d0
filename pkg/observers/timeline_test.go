package observers

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desiyatra/bargainer/pkg/metrics"
	"github.com/desiyatra/bargainer/pkg/redact"
)

func TestTimelineObserverWritesJSONLPerSession(t *testing.T) {
	redact.SetEnabled(true)
	defer redact.SetEnabled(false)

	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	tags := map[string]string{metrics.TagSessionID: "sess/1", metrics.TagCallSID: "CA1"}

	obs.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventUtterance,
		Time:   time.Now(),
		Tags:   tags,
		Fields: map[string]any{"text": "mera number 9876543210 hai, 1500 rupaye"},
	})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventOutcome, Time: time.Now(), Tags: tags})
	_ = obs.Close()

	path := obs.Path("sess/1")
	if path != filepath.Join(dir, "sess_1.jsonl") {
		t.Fatalf("unexpected path %q", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	text := string(b)
	if strings.Count(text, "\n") != 2 {
		t.Fatalf("expected two lines, got %q", text)
	}
	if strings.Contains(text, "9876543210") {
		t.Fatalf("expected phone number redacted: %s", text)
	}
	if !strings.Contains(text, "1500 rupaye") || !strings.Contains(text, metrics.EventOutcome) {
		t.Fatalf("missing content: %s", text)
	}
}

func TestTimelineObserverDisabledWithoutDir(t *testing.T) {
	obs := NewTimelineObserver("")
	if obs.Path("s1") != "" {
		t.Fatalf("expected no path when disabled")
	}
	obs.RecordEvent(metrics.MetricsEvent{Name: "x", Tags: map[string]string{metrics.TagSessionID: "s1"}})
}

func TestPurgeExpiredKeepsLiveAndFreshTimelines(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	defer obs.Close()

	// A call that is still talking keeps its timeline open.
	obs.RecordEvent(metrics.MetricsEvent{Name: "vendor_utterance", Tags: map[string]string{metrics.TagSessionID: "live"}})
	live := obs.Path("live")
	old := obs.Path("old")
	fresh := obs.Path("fresh")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("{}\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	for _, p := range []string{old, other, live} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	n, err := obs.PurgeExpired(24 * time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("expected one removal, got %d %v", n, err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expired timeline kept: %v", err)
	}
	for _, p := range []string{live, fresh, other} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s removed: %v", filepath.Base(p), err)
		}
	}

	if n, err := obs.PurgeExpired(0); n != 0 || err != nil {
		t.Fatalf("zero retention should keep everything, got %d %v", n, err)
	}
	missing := NewTimelineObserver(filepath.Join(dir, "missing"))
	if n, err := missing.PurgeExpired(time.Hour); n != 0 || err != nil {
		t.Fatalf("missing dir should be a no-op, got %d %v", n, err)
	}
}

func TestLatencyObserverPairsUtteranceWithResponse(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	obs := NewLatencyObserver(log, 50*time.Millisecond)
	start := time.Now()
	tags := map[string]string{metrics.TagSessionID: "s1"}

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventUtterance, Time: start, Tags: tags, Fields: map[string]any{"speaker": "user"}})
	if obs.Pending() != 0 {
		t.Fatalf("our own speech must not open a turn")
	}
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventUtterance, Time: start, Tags: tags, Fields: map[string]any{"speaker": "vendor"}})
	if obs.Pending() != 1 {
		t.Fatalf("expected pending turn")
	}
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventResponseSpoken, Time: start.Add(200 * time.Millisecond), Tags: tags})
	if obs.Pending() != 0 {
		t.Fatalf("expected turn closed")
	}
	if !strings.Contains(buf.String(), "turn_latency_over_budget") || !strings.Contains(buf.String(), "latency_ms=200") {
		t.Fatalf("unexpected log %q", buf.String())
	}
}

func TestMultiObserverFansOut(t *testing.T) {
	a, b := metrics.NewMemoryObserver(), metrics.NewMemoryObserver()
	m := NewMultiObserver(a, nil, b)
	m.RecordEvent(metrics.MetricsEvent{Name: metrics.EventCallStarted})
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("expected both observers to receive the event")
	}
}

func TestLoggerObserverLevels(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	tags := map[string]string{metrics.TagSessionID: "s1"}

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventFragment, Tags: tags})
	if buf.Len() != 0 {
		t.Fatalf("fragments should log at debug, got %q", buf.String())
	}
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTransition, Value: 560, Tags: tags, Fields: map[string]any{"to": "countering"}})
	out := buf.String()
	if !strings.Contains(out, "event=negotiation_transition") || !strings.Contains(out, "to=countering") || !strings.Contains(out, "value=560") {
		t.Fatalf("unexpected transition log %q", out)
	}
}
