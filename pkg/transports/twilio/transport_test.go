package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/frames"
	"github.com/gorilla/websocket"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type stubCallUpdater struct {
	lastSID    string
	lastTwiml  string
	lastStatus string
	err        error
}

func (s *stubCallUpdater) UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
	s.lastSID = sid
	if params != nil && params.Twiml != nil {
		s.lastTwiml = *params.Twiml
	}
	if params != nil && params.Status != nil {
		s.lastStatus = *params.Status
	}
	if s.err != nil {
		return nil, s.err
	}
	return &api.ApiV2010Call{}, nil
}

func recvFrame(t *testing.T, tr *Transport) frames.Frame {
	t.Helper()
	select {
	case f := <-tr.Recv():
		return f
	case <-time.After(time.Second):
		t.Fatalf("expected a frame")
		return nil
	}
}

func TestHandleVoiceSignatureValidation(t *testing.T) {
	cfg := Config{AuthToken: "token", PublicURL: "https://example.com", VoicePath: "/voice"}
	tr := New(cfg)

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("From", "+123")
	body := form.Encode()

	req := httptest.NewRequest(http.MethodPost, "https://example.com/voice?vendor_name=Sharma&target_price=700", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	params := map[string]string{"CallSid": "CA123", "From": "+123"}
	req.Header.Set("X-Twilio-Signature", computeSignature(cfg.AuthToken, tr.requestURL(req), params))

	w := httptest.NewRecorder()
	tr.handleVoice(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	twiml := w.Body.String()
	if !strings.Contains(twiml, `<Stream url="wss://example.com/ws">`) ||
		!strings.Contains(twiml, `<Parameter name="vendor_name" value="Sharma"/>`) ||
		!strings.Contains(twiml, `<Parameter name="target_price" value="700"/>`) {
		t.Fatalf("unexpected twiml %s", twiml)
	}

	reqInvalid := httptest.NewRequest(http.MethodPost, "https://example.com/voice", strings.NewReader(body))
	reqInvalid.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	reqInvalid.Header.Set("X-Twilio-Signature", "invalid")
	wInvalid := httptest.NewRecorder()
	tr.handleVoice(wInvalid, reqInvalid)
	if wInvalid.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", wInvalid.Code)
	}
}

func TestSpeakUpdatesCallWithSayAndStream(t *testing.T) {
	tr := New(Config{PublicURL: "https://example.com", SayVoice: "Polly.Aditi"})
	stub := &stubCallUpdater{}
	tr.updateClient = stub
	tr.calls["CA1"] = &call{streamID: "MZ1"}

	if err := tr.Speak(context.Background(), "CA1", `700 में "डील"?`, "hi-IN"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	want := `<Response><Say language="hi-IN" voice="Polly.Aditi">700 में &quot;डील&quot;?</Say><Connect><Stream url="wss://example.com/ws"/></Connect></Response>`
	if stub.lastSID != "CA1" || stub.lastTwiml != want {
		t.Fatalf("unexpected twiml %q", stub.lastTwiml)
	}
	if !tr.calls["CA1"].reconnecting {
		t.Fatalf("expected call to await a reconnect")
	}

	stub.err = errors.New("boom")
	err := tr.Speak(context.Background(), "CA1", "hello", "en-IN")
	if !errorsx.HasReason(err, errorsx.ReasonTransportSpeak) {
		t.Fatalf("expected speak reason, got %v", err)
	}
	if tr.calls["CA1"].reconnecting {
		t.Fatalf("failed speak must not wait for a reconnect")
	}
}

func TestHangupCompletesCall(t *testing.T) {
	tr := New(Config{})
	stub := &stubCallUpdater{}
	tr.updateClient = stub
	if err := tr.Hangup(context.Background(), "CA1"); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	if stub.lastStatus != "completed" {
		t.Fatalf("expected status completed, got %q", stub.lastStatus)
	}
	if err := New(Config{}).Hangup(context.Background(), "CA1"); err == nil {
		t.Fatalf("expected missing credentials error")
	}
}

func TestMediaStreamLifecycle(t *testing.T) {
	tr := New(Config{})
	srv := httptest.NewServer(tr)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	start := `{"event":"start","start":{"callSid":"CA1","streamSid":"MZ1","customParameters":{"vendor_name":"Hotel Shanti","ceiling_bound":"2500","ignored":"x"}}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(start)); err != nil {
		t.Fatalf("write: %v", err)
	}
	sys := recvFrame(t, tr).(frames.SystemFrame)
	meta := sys.Meta()
	if sys.Name() != frames.SystemCallStart || meta[frames.MetaCallSID] != "CA1" || meta[frames.MetaVendorName] != "Hotel Shanti" || meta[frames.MetaCeilingBound] != "2500" {
		t.Fatalf("unexpected start frame %s %v", sys.Name(), meta)
	}
	if _, ok := meta["ignored"]; ok {
		t.Fatalf("unknown parameters must not pass through")
	}

	payload := base64.StdEncoding.EncodeToString([]byte{0xff, 0x7f})
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"media","media":{"payload":"`+payload+`"}}`))
	af := recvFrame(t, tr).(frames.AudioFrame)
	if len(af.RawPayload()) != 2 || af.Meta()[frames.MetaCallSID] != "CA1" {
		t.Fatalf("unexpected audio frame %v", af.Meta())
	}

	// A spoken line replaces the stream; the old stream stopping is not a call end.
	tr.updateClient = &stubCallUpdater{}
	if err := tr.Speak(context.Background(), "CA1", "namaste", "hi-IN"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"stop","stop":{"reason":"completed"}}`))
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("redial: %v", err)
	}
	defer conn2.Close()
	_ = conn2.WriteMessage(websocket.TextMessage, []byte(`{"event":"start","start":{"callSid":"CA1","streamSid":"MZ2"}}`))
	re := recvFrame(t, tr).(frames.SystemFrame)
	if re.Name() != frames.SystemCallReconnect || re.Meta()[frames.MetaStreamID] != "MZ2" {
		t.Fatalf("expected reconnect, got %s %v", re.Name(), re.Meta())
	}

	_ = conn2.WriteMessage(websocket.TextMessage, []byte(`{"event":"stop","stop":{"reason":"completed"}}`))
	end := recvFrame(t, tr).(frames.SystemFrame)
	if end.Name() != frames.SystemCallEnd || end.Meta()[frames.MetaCallEndReason] != "completed" {
		t.Fatalf("expected call end, got %s %v", end.Name(), end.Meta())
	}
}

func TestHandleStatusCallbackEndsCall(t *testing.T) {
	cfg := Config{AuthToken: "token", PublicURL: "https://example.com", StatusCallbackPath: "/status"}
	tr := New(cfg)
	tr.calls["CA123"] = &call{streamID: "stream-1", traceID: "trace"}

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("CallStatus", "no-answer")
	req := httptest.NewRequest(http.MethodPost, "https://example.com/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	params := map[string]string{"CallSid": "CA123", "CallStatus": "no-answer"}
	req.Header.Set("X-Twilio-Signature", computeSignature(cfg.AuthToken, tr.requestURL(req), params))

	w := httptest.NewRecorder()
	tr.handleStatusCallback(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	sys, ok := recvFrame(t, tr).(frames.SystemFrame)
	if !ok || sys.Name() != frames.SystemCallEnd {
		t.Fatalf("expected call_end frame")
	}
	meta := sys.Meta()
	if meta[frames.MetaCallEndReason] != "no_answer" || meta[frames.MetaCallSID] != "CA123" {
		t.Fatalf("unexpected meta %v", meta)
	}
	if _, live := tr.calls["CA123"]; live {
		t.Fatalf("call must be forgotten after it ends")
	}
}

func TestNormalizeCallEndReason(t *testing.T) {
	cases := map[string]string{
		"in-progress": "",
		"COMPLETED":   "completed",
		"busy":        "busy",
		"no-answer":   "no_answer",
		"canceled":    "failed",
		"weird":       "unknown",
	}
	for in, want := range cases {
		if got := normalizeCallEndReason(in); got != want {
			t.Fatalf("normalizeCallEndReason(%q) = %q, want %q", in, got, want)
		}
	}
}

func computeSignature(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	base := url
	for _, k := range keys {
		base += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	_, _ = mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
