package transports

import (
	"context"

	"github.com/desiyatra/bargainer/pkg/frames"
)

// Transport is the telephony boundary. Inbound audio, text and call lifecycle
// arrive as frames; outbound speech goes through Speaker.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Recv() <-chan frames.Frame
	Speaker
}

// Speaker voices a line on a live call and ends calls.
type Speaker interface {
	Speak(ctx context.Context, callSID, text, languageTag string) error
	Hangup(ctx context.Context, callSID string) error
}

// OutboundDialer places calls to vendors.
type OutboundDialer interface {
	Dial(ctx context.Context, to, from string, opts DialOptions) (callSID string, err error)
}

// DialOptions carries optional outbound dial settings.
type DialOptions struct {
	// URL overrides the voice webhook.
	URL string
	// Params are appended to the webhook URL and come back as call_start meta.
	Params map[string]string
	// TimeLimit caps the call length in seconds.
	TimeLimit int
}

// ReadyReporter exposes readiness metadata such as webhook URLs, for logging.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
