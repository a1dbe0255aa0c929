package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type batchWriter struct {
	mu      sync.Mutex
	batches [][]models.SecurityEvent
	err     error
}

func (w *batchWriter) CreateBatch(_ context.Context, events []models.SecurityEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.batches = append(w.batches, append([]models.SecurityEvent(nil), events...))
	return w.err
}

func (w *batchWriter) total() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, b := range w.batches {
		n += len(b)
	}
	return n
}

func event(kind security.EventKind) security.Event {
	return security.Event{SessionID: "s1", Kind: kind, Message: "m", Time: time.Now()}
}

func TestEventRecorder_FlushesFullBatches(t *testing.T) {
	w := &batchWriter{}
	r := NewEventRecorder(w, zap.NewNop(), 10, WithBatchSize(2), WithFlushInterval(time.Hour))
	defer r.Close()

	r.Record(event(security.EventViolation))
	r.Record(event(security.EventOperational))

	require.Eventually(t, func() bool { return w.total() == 2 }, time.Second, 5*time.Millisecond)

	w.mu.Lock()
	assert.Equal(t, "violation", w.batches[0][0].Kind)
	assert.Equal(t, "operational", w.batches[0][1].Kind)
	assert.Equal(t, "s1", w.batches[0][0].SessionID)
	w.mu.Unlock()
}

func TestEventRecorder_CloseFlushesRemainder(t *testing.T) {
	w := &batchWriter{}
	r := NewEventRecorder(w, zap.NewNop(), 10, WithBatchSize(100), WithFlushInterval(time.Hour))

	for i := 0; i < 3; i++ {
		r.Record(event(security.EventViolation))
	}
	r.Close()
	r.Close()

	assert.Equal(t, 3, w.total())
}

func TestEventRecorder_IntervalFlush(t *testing.T) {
	w := &batchWriter{}
	r := NewEventRecorder(w, zap.NewNop(), 10, WithFlushInterval(10*time.Millisecond))
	defer r.Close()

	r.Record(event(security.EventBlocked))

	require.Eventually(t, func() bool { return w.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEventRecorder_WriteErrorKeepsRunning(t *testing.T) {
	w := &batchWriter{err: errors.New("db down")}
	r := NewEventRecorder(w, zap.NewNop(), 10, WithBatchSize(1))
	defer r.Close()

	r.Record(event(security.EventViolation))
	r.Record(event(security.EventViolation))

	require.Eventually(t, func() bool { return w.total() == 2 }, time.Second, 5*time.Millisecond)
}
