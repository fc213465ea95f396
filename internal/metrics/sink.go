package metrics

import "github.com/wms-platform/picker-terminal/internal/logging"

// EventSink receives business events from the core components. The core never
// depends on a sink call succeeding; implementations must not block or panic.
type EventSink interface {
	Emit(event string, fields map[string]any)
}

// NopSink discards all events
type NopSink struct{}

// Emit implements EventSink
func (NopSink) Emit(string, map[string]any) {}

// LogSink forwards events to a structured logger
type LogSink struct {
	Logger *logging.Logger
}

// Emit implements EventSink
func (s LogSink) Emit(event string, fields map[string]any) {
	if s.Logger == nil {
		return
	}
	s.Logger.WithFields(fields).Info(event)
}
