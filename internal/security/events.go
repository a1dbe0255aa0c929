package security

import (
	"time"

	"go.uber.org/zap"
)

type EventKind string

const (
	// Abuse signal, counts toward blocking
	EventViolation EventKind = "violation"
	// The wrapped operation failed, never counts toward blocking
	EventOperational EventKind = "operational"
	EventBlocked     EventKind = "blocked"
	EventCleared     EventKind = "cleared"
)

type Event struct {
	SessionID string
	Kind      EventKind
	Message   string
	Time      time.Time
}

type EventSink interface {
	Record(Event)
}

type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(e Event) {
	fields := []zap.Field{
		zap.String("session_id", e.SessionID),
		zap.String("kind", string(e.Kind)),
		zap.String("message", e.Message),
		zap.Time("at", e.Time),
	}

	switch e.Kind {
	case EventViolation, EventBlocked:
		s.logger.Warn("Security event", fields...)
	default:
		s.logger.Info("Security event", fields...)
	}
}

type MultiSink []EventSink

func (m MultiSink) Record(e Event) {
	for _, sink := range m {
		sink.Record(e)
	}
}

type nopSink struct{}

func (nopSink) Record(Event) {}
