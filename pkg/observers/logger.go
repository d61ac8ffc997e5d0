package observers

import (
	"context"
	"log/slog"

	"github.com/desiyatra/bargainer/pkg/metrics"
	"github.com/desiyatra/bargainer/pkg/redact"
)

// LoggerObserver mirrors call events into the log. Fragments and
// utterances go to debug; transitions and outcomes go to info so a
// negotiation can be followed at the default level.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	level := slog.LevelDebug
	switch ev.Name {
	case metrics.EventTransition, metrics.EventOutcome:
		level = slog.LevelInfo
	}
	if !o.log.Enabled(context.Background(), level) {
		return
	}
	attrs := make([]slog.Attr, 0, 2+len(ev.Tags)+len(ev.Fields))
	attrs = append(attrs, slog.String("event", ev.Name))
	if ev.Value != 0 {
		attrs = append(attrs, slog.Float64("value", ev.Value))
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		if s, ok := v.(string); ok && k == "text" {
			v = redact.Text(s)
		}
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(context.Background(), level, "call_event", attrs...)
}

// MultiObserver fans one event out to several observers. Nil entries are skipped.
type MultiObserver []metrics.Observer

func NewMultiObserver(list ...metrics.Observer) MultiObserver {
	return MultiObserver(list)
}

func (m MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m {
		if obs != nil {
			obs.RecordEvent(ev)
		}
	}
}
