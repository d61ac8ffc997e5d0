package twilio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/frames"
	"github.com/desiyatra/bargainer/pkg/logging"
	"github.com/desiyatra/bargainer/pkg/transports"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type Config struct {
	ServerAddr         string   `mapstructure:"server_addr"`
	PublicURL          string   `mapstructure:"public_url"`
	AuthToken          string   `mapstructure:"auth_token"`
	AccountSID         string   `mapstructure:"account_sid"`
	VoicePath          string   `mapstructure:"voice_path"`
	WebsocketPath      string   `mapstructure:"ws_path"`
	StatusCallbackPath string   `mapstructure:"status_callback_path"`
	SayVoice           string   `mapstructure:"say_voice"`
	FromNumber         string   `mapstructure:"from_number"`
	AllowAnyOrigin     bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.VoicePath == "" {
		c.VoicePath = "/voice"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if c.StatusCallbackPath == "" {
		c.StatusCallbackPath = "/status"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// Transport serves the Twilio voice webhook and media stream, and speaks by
// updating the live call with <Say> followed by a fresh <Connect><Stream>.
type Transport struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	recvCh   chan frames.Frame
	logger   *slog.Logger

	updateClient callUpdater

	mu      sync.Mutex
	streams map[string]*stream
	calls   map[string]*call

	draining atomic.Bool
}

type callUpdater interface {
	UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

// stream is one media websocket. A call goes through several of them since
// each spoken line reconnects the stream.
type stream struct {
	conn    *websocket.Conn
	callSID string
}

type call struct {
	streamID string
	traceID  string
	from     string
	// reconnecting is set while a <Say> update replaces the current stream.
	reconnecting bool
}

func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		recvCh:  make(chan frames.Frame, 512),
		logger:  logging.NewComponentLogger(slog.Default(), "twilio"),
		streams: make(map[string]*stream),
		calls:   make(map[string]*call),
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "twilio" }

func (t *Transport) Recv() <-chan frames.Frame { return t.recvCh }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"webhook_url":         t.voiceWebhookURL(),
		"status_callback_url": t.statusCallbackURL(),
	}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.VoicePath, t.handleVoice)
	mux.Handle(t.cfg.WebsocketPath, t)
	mux.HandleFunc(t.cfg.StatusCallbackPath, t.handleStatusCallback)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("twilio_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	if !t.draining.CompareAndSwap(false, true) {
		return nil
	}
	if t.server != nil {
		_ = t.server.Close()
	}
	t.mu.Lock()
	for _, s := range t.streams {
		_ = s.conn.Close()
	}
	t.streams = make(map[string]*stream)
	t.calls = make(map[string]*call)
	close(t.recvCh)
	t.mu.Unlock()
	return nil
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var streamID string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var evt TwilioEvent
		if err := json.Unmarshal(msg, &evt); err != nil {
			continue
		}
		switch evt.Event {
		case "start":
			if evt.Start == nil {
				continue
			}
			streamID = evt.Start.StreamID
			t.onStart(streamID, evt.Start, conn)
		case "media":
			if evt.Media == nil || streamID == "" {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(evt.Media.Payload)
			if err != nil {
				continue
			}
			meta := t.metaForStream(streamID)
			meta[frames.MetaEncoding] = "mulaw"
			meta[frames.MetaCodec] = "ulaw"
			meta[frames.MetaFormat] = "ulaw_8000_1ch_8bit"
			t.emit(frames.NewAudioFrame(streamID, time.Now().UnixNano(), payload, 8000, 1, meta))
		case "stop":
			reason := ""
			if evt.Stop != nil {
				reason = normalizeCallEndReason(evt.Stop.Reason)
			}
			t.onStreamEnd(streamID, reason)
			return
		}
	}
	if streamID != "" {
		t.onStreamEnd(streamID, "transport_closed")
	}
}

func (t *Transport) onStart(streamID string, st *TwilioStart, conn *websocket.Conn) {
	t.mu.Lock()
	c, reconnect := t.calls[st.CallSID]
	if !reconnect {
		c = &call{traceID: uuid.NewString(), from: st.From}
		t.calls[st.CallSID] = c
	}
	oldStream := c.streamID
	c.streamID = streamID
	c.reconnecting = false
	if old := t.streams[oldStream]; old != nil && oldStream != streamID {
		delete(t.streams, oldStream)
		_ = old.conn.Close()
	}
	t.streams[streamID] = &stream{conn: conn, callSID: st.CallSID}
	t.mu.Unlock()

	meta := t.metaForStream(streamID)
	meta[frames.MetaSource] = "transport"
	if reconnect {
		meta[frames.MetaOldStreamID] = oldStream
		t.emit(frames.NewSystemFrame(streamID, time.Now().UnixNano(), frames.SystemCallReconnect, meta))
		return
	}
	for _, k := range frames.CallParams {
		if v := strings.TrimSpace(st.CustomParameters[k]); v != "" {
			meta[k] = v
		}
	}
	t.emit(frames.NewSystemFrame(streamID, time.Now().UnixNano(), frames.SystemCallStart, meta))
}

// onStreamEnd ends the call unless the stream is being replaced by a spoken
// line, in which case only the stream is dropped.
func (t *Transport) onStreamEnd(streamID, reason string) {
	t.mu.Lock()
	s := t.streams[streamID]
	if s == nil {
		t.mu.Unlock()
		return
	}
	delete(t.streams, streamID)
	c := t.calls[s.callSID]
	if c != nil && c.reconnecting {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.endCall(s.callSID, reason)
}

func (t *Transport) endCall(callSID, reason string) {
	if reason == "" {
		reason = "completed"
	}
	meta := t.metaForCall(callSID)
	meta[frames.MetaCallEndReason] = reason
	t.mu.Lock()
	c := t.calls[callSID]
	delete(t.calls, callSID)
	if c != nil {
		if s := t.streams[c.streamID]; s != nil {
			delete(t.streams, c.streamID)
			_ = s.conn.Close()
		}
	}
	t.mu.Unlock()
	if c == nil {
		return
	}
	t.emit(frames.NewSystemFrame(c.streamID, time.Now().UnixNano(), frames.SystemCallEnd, meta))
}

// Speak replaces the call's TwiML with the line followed by a new media stream.
func (t *Transport) Speak(ctx context.Context, callSID, text, languageTag string) error {
	if strings.TrimSpace(callSID) == "" {
		return errors.New("call sid required")
	}
	updater, err := t.updater()
	if err != nil {
		return err
	}
	t.mu.Lock()
	if c := t.calls[callSID]; c != nil {
		c.reconnecting = true
	}
	t.mu.Unlock()

	params := &api.UpdateCallParams{}
	params.SetTwiml(buildSayTwiml(text, languageTag, t.cfg.SayVoice, t.streamURL()))
	if _, err := updater.UpdateCall(callSID, params); err != nil {
		t.mu.Lock()
		if c := t.calls[callSID]; c != nil {
			c.reconnecting = false
		}
		t.mu.Unlock()
		t.logger.WarnContext(ctx, "twilio_say_failed", "call_sid", callSID, "reason_code", string(errorsx.ReasonTransportSpeak), "error", err)
		return errorsx.Wrap(err, errorsx.ReasonTransportSpeak)
	}
	return nil
}

// Hangup completes the call.
func (t *Transport) Hangup(ctx context.Context, callSID string) error {
	if strings.TrimSpace(callSID) == "" {
		return errors.New("call sid required")
	}
	updater, err := t.updater()
	if err != nil {
		return err
	}
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := updater.UpdateCall(callSID, params); err != nil {
		t.logger.WarnContext(ctx, "twilio_hangup_failed", "call_sid", callSID, "error", err)
		return errorsx.Wrap(err, errorsx.ReasonTransportHangup)
	}
	return nil
}

// Dial places an outbound call through the REST API.
func (t *Transport) Dial(ctx context.Context, to, from string, opts transports.DialOptions) (string, error) {
	return NewDialer(t.cfg).Dial(ctx, to, from, opts)
}

func (t *Transport) updater() (callUpdater, error) {
	if t.updateClient != nil {
		return t.updateClient, nil
	}
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" {
		return nil, errors.New("missing twilio credentials")
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: t.cfg.AccountSID,
		Password: t.cfg.AuthToken,
	})
	return rest.Api, nil
}

// handleVoice answers the call with a media stream. Negotiation parameters on
// the webhook query string travel as stream custom parameters.
func (t *Transport) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateTwilioRequest(r) {
		t.logger.Warn("twilio_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	params := map[string]string{}
	q := r.URL.Query()
	for _, k := range frames.CallParams {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			params[k] = v
		}
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(`<Response><Connect>` + streamElement(t.websocketURL(r), params) + `</Connect></Response>`))
}

func (t *Transport) handleStatusCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateTwilioRequest(r) {
		t.logger.Warn("twilio_status_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	callSID := r.FormValue("CallSid")
	reason := normalizeCallEndReason(r.FormValue("CallStatus"))
	if reason != "" && callSID != "" {
		t.endCall(callSID, reason)
	}
	w.WriteHeader(http.StatusOK)
}

func (t *Transport) emit(f frames.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draining.Load() {
		return
	}
	select {
	case t.recvCh <- f:
	default:
		t.logger.Warn("twilio_recv_channel_full", "kind", string(f.Kind()))
	}
}

func (t *Transport) websocketURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		return t.streamURL()
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return "wss://" + host + t.cfg.WebsocketPath
}

func (t *Transport) streamURL() string {
	if t.cfg.PublicURL != "" {
		return "wss://" + normalizePublicURL(t.cfg.PublicURL) + t.cfg.WebsocketPath
	}
	return "wss://" + localAddr(t.cfg.ServerAddr) + t.cfg.WebsocketPath
}

func (t *Transport) voiceWebhookURL() string {
	return webhookURL(t.cfg, t.cfg.VoicePath)
}

func (t *Transport) statusCallbackURL() string {
	return webhookURL(t.cfg, t.cfg.StatusCallbackPath)
}

func webhookURL(cfg Config, path string) string {
	if cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(cfg.PublicURL) + path
	}
	return "http://" + localAddr(cfg.ServerAddr) + path
}

func localAddr(addr string) string {
	if addr == "" {
		addr = ":8080"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return addr
}

func (t *Transport) metaForStream(streamID string) map[string]string {
	t.mu.Lock()
	callSID := ""
	if s := t.streams[streamID]; s != nil {
		callSID = s.callSID
	}
	t.mu.Unlock()
	meta := t.metaForCall(callSID)
	meta[frames.MetaStreamID] = streamID
	return meta
}

func (t *Transport) metaForCall(callSID string) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	meta := map[string]string{}
	if callSID == "" {
		return meta
	}
	meta[frames.MetaCallSID] = callSID
	if c := t.calls[callSID]; c != nil {
		meta[frames.MetaStreamID] = c.streamID
		meta[frames.MetaTraceID] = c.traceID
		if c.from != "" {
			meta[frames.MetaFromNumber] = c.from
		}
	}
	return meta
}

func (t *Transport) validateTwilioRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" || t.cfg.AuthToken == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	validator := twilioclient.NewRequestValidator(t.cfg.AuthToken)
	return validator.ValidateBody(t.requestURL(r), body, signature)
}

func (t *Transport) requestURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		base := strings.TrimRight(t.cfg.PublicURL, "/")
		return base + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	host := origin
	if err == nil && u.Host != "" {
		host = u.Host
	}
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.Contains(a, "://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, host) {
			return true
		}
	}
	return false
}

func buildSayTwiml(text, languageTag, voice, wsURL string) string {
	var b strings.Builder
	b.WriteString(`<Response><Say`)
	if languageTag != "" {
		b.WriteString(` language="` + xmlEscape(languageTag) + `"`)
	}
	if voice != "" {
		b.WriteString(` voice="` + xmlEscape(voice) + `"`)
	}
	b.WriteString(`>` + xmlEscape(text) + `</Say><Connect>`)
	b.WriteString(streamElement(wsURL, nil))
	b.WriteString(`</Connect></Response>`)
	return b.String()
}

func streamElement(wsURL string, params map[string]string) string {
	if len(params) == 0 {
		return `<Stream url="` + xmlEscape(wsURL) + `"/>`
	}
	var b strings.Builder
	b.WriteString(`<Stream url="` + xmlEscape(wsURL) + `">`)
	for _, k := range frames.CallParams {
		if v, ok := params[k]; ok {
			b.WriteString(`<Parameter name="` + k + `" value="` + xmlEscape(v) + `"/>`)
		}
	}
	b.WriteString(`</Stream>`)
	return b.String()
}

func xmlEscape(in string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(in)
}

func normalizeCallEndReason(raw string) string {
	r := strings.ToLower(strings.TrimSpace(raw))
	if r == "" {
		return ""
	}
	switch r {
	case "queued", "ringing", "in-progress", "inprogress", "initiated", "answered":
		return ""
	case "completed", "call_ended", "call-ended", "completed_by_user", "hangup":
		return "completed"
	case "busy":
		return "busy"
	case "no_answer", "noanswer", "no-answer":
		return "no_answer"
	case "failed", "error", "canceled", "cancelled", "transport_closed":
		return "failed"
	default:
		return "unknown"
	}
}

type TwilioStart struct {
	CallSID          string            `json:"callSid"`
	StreamID         string            `json:"streamSid"`
	From             string            `json:"from"`
	CustomParameters map[string]string `json:"customParameters"`
}

type TwilioMedia struct {
	Payload string `json:"payload"`
}

type TwilioStop struct {
	Reason string `json:"reason"`
}

type TwilioEvent struct {
	Event string       `json:"event"`
	Start *TwilioStart `json:"start,omitempty"`
	Media *TwilioMedia `json:"media,omitempty"`
	Stop  *TwilioStop  `json:"stop,omitempty"`
}

func normalizePublicURL(v string) string {
	v = strings.TrimPrefix(strings.TrimPrefix(v, "https://"), "http://")
	return strings.TrimRight(v, "/")
}

var _ transports.Transport = (*Transport)(nil)
