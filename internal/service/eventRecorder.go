package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/security"
	"go.uber.org/zap"
)

type EventWriter interface {
	CreateBatch(ctx context.Context, events []models.SecurityEvent) error
}

// EventRecorder persists security events in batches from a background worker.
// Record never blocks: events are dropped when the buffer is full.
type EventRecorder struct {
	events    chan models.SecurityEvent
	writer    EventWriter
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
	dropped   atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type RecorderOption func(*EventRecorder)

func WithBatchSize(n int) RecorderOption {
	return func(r *EventRecorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) RecorderOption {
	return func(r *EventRecorder) {
		if d > 0 {
			r.interval = d
		}
	}
}

func NewEventRecorder(writer EventWriter, logger *zap.Logger, bufferSize int, opts ...RecorderOption) *EventRecorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	r := &EventRecorder{
		events:    make(chan models.SecurityEvent, bufferSize),
		writer:    writer,
		logger:    logger,
		batchSize: 100,
		interval:  5 * time.Second,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *EventRecorder) Record(e security.Event) {
	entry := models.SecurityEvent{
		Timestamp: e.Time,
		SessionID: e.SessionID,
		Kind:      string(e.Kind),
		Message:   e.Message,
	}

	select {
	case r.events <- entry:
	default:
		r.dropped.Add(1)
		r.logger.Warn("Security event channel full, dropping event",
			zap.String("session_id", e.SessionID),
			zap.String("kind", string(e.Kind)))
	}
}

// Number of events dropped because the buffer was full
func (r *EventRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Flushes buffered events and stops the worker
func (r *EventRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

func (r *EventRecorder) run() {
	defer r.wg.Done()

	batch := make([]models.SecurityEvent, 0, r.batchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case e := <-r.events:
			batch = append(batch, e)

			if len(batch) >= r.batchSize {
				batch = r.flush(batch)
			}
		case <-ticker.C:
			batch = r.flush(batch)
		case <-r.done:
			for {
				select {
				case e := <-r.events:
					batch = append(batch, e)
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

// Writes batch and returns an empty one
func (r *EventRecorder) flush(batch []models.SecurityEvent) []models.SecurityEvent {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.writer.CreateBatch(ctx, batch); err != nil {
		r.logger.Error("Failed to insert security events",
			zap.Int("count", len(batch)),
			zap.Error(err))
	}

	return make([]models.SecurityEvent, 0, r.batchSize)
}
