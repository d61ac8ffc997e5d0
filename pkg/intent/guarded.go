package intent

import (
	"context"
	"log/slog"
	"time"

	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/logging"
	"github.com/desiyatra/bargainer/pkg/redact"
	"github.com/desiyatra/bargainer/pkg/resilience"
	"github.com/desiyatra/bargainer/pkg/transcript"
)

// Guarded wraps a remote classifier with a retry policy, a rate-limit circuit
// breaker and a local fallback. It never returns an error when a fallback is set.
type Guarded struct {
	primary  Classifier
	fallback Classifier
	retry    resilience.RetryPolicy
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	name     string
	logger   *slog.Logger
}

type GuardedConfig struct {
	Name             string
	Timeout          time.Duration
	MaxRetries       int
	Backoff          time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func NewGuarded(primary, fallback Classifier, cfg GuardedConfig) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "remote"
	}
	return &Guarded{
		primary:  primary,
		fallback: fallback,
		retry:    resilience.NewRetryPolicy(cfg.MaxRetries, cfg.Backoff),
		breaker:  resilience.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		timeout:  cfg.Timeout,
		name:     cfg.Name,
		logger:   logging.NewComponentLogger(slog.Default(), "intent"),
	}
}

func (g *Guarded) Classify(ctx context.Context, u transcript.Utterance) (Intent, error) {
	if !g.breaker.Allow() {
		err := errorsx.New(errorsx.ReasonIntentCircuitOpen, "intent: %s circuit open", g.name)
		return g.degrade(ctx, u, err)
	}

	var got Intent
	err := g.retry.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		v, err := g.primary.Classify(callCtx, u)
		if err != nil {
			g.breaker.OnError(err)
			return err
		}
		got = v
		return nil
	})
	if err != nil {
		reason := errorsx.ReasonIntentClassify
		if resilience.IsRateLimit(err) {
			reason = errorsx.ReasonIntentRateLimit
		}
		return g.degrade(ctx, u, errorsx.Wrap(err, reason))
	}
	g.breaker.OnSuccess()
	return got, nil
}

func (g *Guarded) degrade(ctx context.Context, u transcript.Utterance, err error) (Intent, error) {
	g.logger.Warn("intent_classify_degraded",
		"provider", g.name,
		"utterance_id", u.ID,
		"text", redact.Text(u.RawText),
		"reason_code", string(errorsx.Reason(err)),
		"error", err,
	)
	if g.fallback == nil {
		return None, err
	}
	return g.fallback.Classify(ctx, u)
}
