// Package dispatch implements the event delivery pipeline: the batch window
// that accumulates events for a short interval, and the transmitter that
// sends batches (or empty heartbeat polls) to the collect-events endpoint and
// drives the self-rescheduling poll loop.
package dispatch

import (
	"sync"
	"time"

	"github.com/zaikorea/blux-go-client-sdk/bluxevents"
)

// DefaultBatchWindow is how long the Recorder accumulates events before
// flushing them as one batch.
const DefaultBatchWindow = 100 * time.Millisecond

// BatchSink receives a drained batch. Implemented by the Transmitter.
type BatchSink interface {
	Send(events []bluxevents.Event)
}

// Recorder accumulates events over a short window and flushes them as a
// single batch. At most one flush callback is pending at any instant:
// recording into a non-empty buffer never schedules a second one.
type Recorder struct {
	sink   BatchSink
	window time.Duration

	mu         sync.Mutex
	pending    []bluxevents.Event
	flushTimer *time.Timer
}

// NewRecorder creates a Recorder flushing into sink. A non-positive window
// gets DefaultBatchWindow.
func NewRecorder(sink BatchSink, window time.Duration) *Recorder {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	return &Recorder{sink: sink, window: window}
}

// Record appends an event to the pending buffer and schedules a flush if none
// is pending.
func (r *Recorder) Record(event bluxevents.Event) {
	r.RecordAll([]bluxevents.Event{event})
}

// RecordAll appends events in order, preserving their relative order in the
// transmitted batch.
func (r *Recorder) RecordAll(events []bluxevents.Event) {
	if len(events) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, events...)
	if r.flushTimer == nil {
		r.flushTimer = time.AfterFunc(r.window, r.FlushNow)
	}
}

// FlushNow cancels any scheduled flush and drains the buffer into the sink.
// An empty buffer is a no-op: explicit empty sends are heartbeat polls, which
// only the transmitter's own timer issues. The host application must call
// this before suspension or exit so in-window events are not lost.
func (r *Recorder) FlushNow() {
	r.mu.Lock()
	if r.flushTimer != nil {
		r.flushTimer.Stop()
		r.flushTimer = nil
	}
	events := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(events) > 0 {
		r.sink.Send(events)
	}
}
