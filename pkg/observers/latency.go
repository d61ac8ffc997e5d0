package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/desiyatra/bargainer/pkg/metrics"
)

// LatencyObserver logs how long the bargainer took to answer each vendor
// turn: from the finished utterance to the spoken response.
type LatencyObserver struct {
	mu      sync.Mutex
	pending map[string]time.Time
	log     *slog.Logger
	budget  time.Duration
}

// NewLatencyObserver warns when a turn takes longer than budget. Zero disables warnings.
func NewLatencyObserver(log *slog.Logger, budget time.Duration) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{pending: make(map[string]time.Time), log: log, budget: budget}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.SessionID()
	if id == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch ev.Name {
	case metrics.EventUtterance:
		if speaker, _ := ev.Fields["speaker"].(string); speaker == "vendor" {
			o.pending[id] = ev.Time
		}
	case metrics.EventResponseSpoken:
		start, ok := o.pending[id]
		if !ok {
			return
		}
		delete(o.pending, id)
		o.report(id, ev.Time.Sub(start))
	case metrics.EventOutcome:
		delete(o.pending, id)
	}
}

func (o *LatencyObserver) report(id string, d time.Duration) {
	if o.budget > 0 && d > o.budget {
		o.log.Warn("turn_latency_over_budget", "session_id", id, "latency_ms", d.Milliseconds(), "budget_ms", o.budget.Milliseconds())
		return
	}
	o.log.Info("turn_latency", "session_id", id, "latency_ms", d.Milliseconds())
}

// Pending reports how many sessions await a response.
func (o *LatencyObserver) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
