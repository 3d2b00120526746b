package dispatch

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/zaikorea/blux-go-client-sdk/bluxevents"
	"github.com/zaikorea/blux-go-client-sdk/internal/endpoints"
	"github.com/zaikorea/blux-go-client-sdk/internal/identity"
	"github.com/zaikorea/blux-go-client-sdk/internal/inapp"
	"github.com/zaikorea/blux-go-client-sdk/internal/taskq"
	"github.com/zaikorea/blux-go-client-sdk/internal/transport"
)

const (
	// MinPollDelay is the floor applied to the server-declared poll delay, so
	// a misconfigured backend cannot drive the SDK into a tight poll loop.
	MinPollDelay = 3000 * time.Millisecond

	// Retry backoff bounds for transport failures. The retry delay doubles on
	// each consecutive failure and stops growing at the ceiling.
	initialRetryDelay = 3 * time.Second
	maxRetryDelay     = 10 * time.Minute
)

// MessageSink receives the in-app payload of a successful response.
// Implemented by the in-app presentation queue.
type MessageSink interface {
	HandleResponse(msg inapp.Message)
}

// Transmitter submits event batches to the collect-events endpoint through
// the serial task queue, and owns the poll state: the timer that issues empty
// heartbeat sends, the server-controlled poll delay, and the failure backoff.
//
// Batches are never retried. A failed batch is dropped (accepted loss) and
// only the poll schedule reacts, with exponential backoff.
type Transmitter struct {
	queue    *taskq.Queue
	sender   transport.Sender
	identity *identity.Manager
	messages MessageSink
	loggers  ldlog.Loggers

	pollMu       sync.Mutex
	pollTimer    *time.Timer
	sending      bool
	retry        *backoff.ExponentialBackOff
	minPollDelay time.Duration
	closed       bool
}

// NewTransmitter creates a Transmitter. messages may be nil if in-app
// delivery is disabled.
func NewTransmitter(
	queue *taskq.Queue,
	sender transport.Sender,
	ids *identity.Manager,
	messages MessageSink,
	loggers ldlog.Loggers,
) *Transmitter {
	return &Transmitter{
		queue:        queue,
		sender:       sender,
		identity:     ids,
		messages:     messages,
		loggers:      loggers,
		retry:        newRetryBackOff(),
		minPollDelay: MinPollDelay,
	}
}

func newRetryBackOff() *backoff.ExponentialBackOff {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = initialRetryDelay
	retry.RandomizationFactor = 0
	retry.Multiplier = 2
	retry.MaxInterval = maxRetryDelay
	retry.Reset()
	return retry
}

// Send submits events (possibly empty, for a heartbeat poll) as one request.
// A real send supersedes any scheduled heartbeat, so the pending poll timer
// is always cancelled first. The call returns immediately; the request runs
// on the serial task queue.
func (t *Transmitter) Send(events []bluxevents.Event) {
	t.pollMu.Lock()
	if t.closed {
		t.pollMu.Unlock()
		return
	}
	t.cancelPollTimerLocked()
	t.sending = true
	t.pollMu.Unlock()

	t.queue.Submit(func(done func()) {
		defer done()
		t.performSend(events)
	})
}

// Close stops the poll loop. In-flight sends are not interrupted.
func (t *Transmitter) Close() {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()
	t.closed = true
	t.cancelPollTimerLocked()
}

func (t *Transmitter) performSend(events []bluxevents.Event) {
	defer t.setSending(false)

	id := t.identity.Current()
	deviceID, ok := id.DeviceID.Get()
	if !ok {
		// Not registered yet. Drop silently; the next user event or poll tick
		// will retry naturally once registration completes.
		t.loggers.Debug("Skipping send: device identity not available")
		return
	}

	body := encodeCollectEventsRequest(events, deviceID, id)
	respBody, err := t.sender.PostJSON(t.collectEventsPath(), body)
	if err != nil {
		t.handleFailure(len(events), err)
		return
	}

	resp, err := parseCollectEventsResponse(respBody)
	if err != nil {
		t.handleFailure(len(events), err)
		return
	}

	t.pollMu.Lock()
	t.retry.Reset()
	if resp.hasPollDelay {
		t.schedulePollLocked(clampPollDelay(resp.pollDelayMs, t.minPollDelay))
	}
	t.pollMu.Unlock()

	if resp.message != nil && t.messages != nil {
		t.messages.HandleResponse(*resp.message)
	}
}

// handleFailure drops the batch and schedules a backoff-delayed retry poll.
func (t *Transmitter) handleFailure(eventCount int, err error) {
	t.pollMu.Lock()
	delay := t.retry.NextBackOff()
	if !t.closed {
		t.schedulePollLocked(delay)
	}
	t.pollMu.Unlock()
	t.loggers.Warnf("Failed to deliver %d events (dropped): %s; will poll again in %s", eventCount, err, delay)
}

func (t *Transmitter) schedulePollLocked(delay time.Duration) {
	t.cancelPollTimerLocked()
	t.pollTimer = time.AfterFunc(delay, t.pollTick)
}

func (t *Transmitter) cancelPollTimerLocked() {
	if t.pollTimer != nil {
		t.pollTimer.Stop()
		t.pollTimer = nil
	}
}

// pollTick fires when the poll timer elapses, issuing an empty heartbeat send
// unless a real send is already outstanding.
func (t *Transmitter) pollTick() {
	t.pollMu.Lock()
	if t.sending || t.closed {
		t.pollMu.Unlock()
		return
	}
	t.pollMu.Unlock()
	t.Send(nil)
}

// clampPollDelay converts the server-declared delay to a duration, enforcing
// the floor.
func clampPollDelay(delayMs int, floor time.Duration) time.Duration {
	delay := time.Duration(delayMs) * time.Millisecond
	if delay < floor {
		return floor
	}
	return delay
}

func (t *Transmitter) setSending(value bool) {
	t.pollMu.Lock()
	t.sending = value
	t.pollMu.Unlock()
}

func (t *Transmitter) collectEventsPath() string {
	return "/applications/" + t.identity.ClientID() + endpoints.CollectEventsPath
}

func encodeCollectEventsRequest(events []bluxevents.Event, deviceID string, id bluxevents.Identity) []byte {
	w := jwriter.NewWriter()
	obj := w.Object()
	arr := obj.Name("events").Array()
	for _, e := range events {
		e.WithIdentity(id).WriteToJSONWriter(&w)
	}
	arr.End()
	obj.Name("device_id").String(deviceID)
	obj.End()
	return w.Bytes()
}
