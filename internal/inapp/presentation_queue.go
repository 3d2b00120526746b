package inapp

import (
	"net/url"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// PresentationQueue serializes in-app message presentation: requests are
// served strictly FIFO, at most one surface is on screen at a time, and the
// snooze check happens when a message is dequeued rather than when it
// arrives.
type PresentationQueue struct {
	gate    *Gate
	snooze  *SnoozeStore
	surface Surface
	opener  URLOpener
	events  EventSink
	loggers ldlog.Loggers

	mu           sync.Mutex
	pending      []Message
	showing      bool
	customAction func(actionID string, data ldvalue.Value)
}

// NewPresentationQueue wires the queue to its collaborators. surface may be
// nil when the host application has no presentation capability, in which case
// every message is discarded at dequeue time.
func NewPresentationQueue(
	gate *Gate,
	snooze *SnoozeStore,
	surface Surface,
	opener URLOpener,
	events EventSink,
	loggers ldlog.Loggers,
) *PresentationQueue {
	return &PresentationQueue{
		gate:    gate,
		snooze:  snooze,
		surface: surface,
		opener:  opener,
		events:  events,
		loggers: loggers,
	}
}

// SetCustomActionHandler registers the application callback for app-defined
// action messages posted by embedded content.
func (q *PresentationQueue) SetCustomActionHandler(handler func(actionID string, data ldvalue.Value)) {
	q.mu.Lock()
	q.customAction = handler
	q.mu.Unlock()
}

// HandleResponse receives the in-app payload of a collect-events response.
// If the availability gate is closed the message is dropped, not queued: the
// server will redeliver it on a later poll, since suppression is never
// acknowledged.
func (q *PresentationQueue) HandleResponse(msg Message) {
	if !q.gate.CanDispatch() {
		q.loggers.Debugf("Discarding in-app message %s (app inactive or offline)", msg.InappID)
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, msg)
	q.mu.Unlock()
	q.processQueue()
}

func (q *PresentationQueue) processQueue() {
	for {
		q.mu.Lock()
		if q.showing || len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		msg := q.pending[0]
		q.pending = q.pending[1:]

		if q.snooze.IsHidden(msg.InappID) {
			q.mu.Unlock()
			q.loggers.Debugf("In-app message %s is snoozed, skipping", msg.InappID)
			continue
		}
		if q.surface == nil {
			q.mu.Unlock()
			q.loggers.Warn("No presentation surface configured; discarding in-app message")
			continue
		}
		q.showing = true
		q.mu.Unlock()

		if q.present(msg) {
			return
		}
		q.mu.Lock()
		q.showing = false
		q.mu.Unlock()
	}
}

// present renders one message. It returns false if nothing ended up on
// screen, in which case the caller releases the slot and tries the next
// message.
func (q *PresentationQueue) present(msg Message) bool {
	// The handle only exists once Present returns, but a surface may route a
	// content message to a handler at any point after that; handlers block on
	// ready so they never observe a missing handle.
	var handle Handle
	ready := make(chan struct{})
	awaitHandle := func() Handle {
		<-ready
		return handle
	}
	var finishOnce sync.Once
	finish := func() {
		finishOnce.Do(func() {
			q.mu.Lock()
			q.showing = false
			q.mu.Unlock()
			q.processQueue()
		})
	}

	handlers := ContentHandlers{
		Hide: func(daysToHide int) {
			q.snooze.Snooze(msg.InappID, daysToHide)
			awaitHandle().Dismiss()
			finish()
		},
		Link: func(link string) {
			q.openLink(msg, link, awaitHandle())
			finish()
		},
		CustomAction: func(actionID string, data ldvalue.Value) {
			q.mu.Lock()
			handler := q.customAction
			q.mu.Unlock()
			awaitHandle().Dismiss()
			if handler != nil {
				handler(actionID, data)
			} else {
				q.loggers.Debugf("No custom action handler registered for action %s", actionID)
			}
			finish()
		},
		Dismissed: finish,
	}

	h, err := q.surface.Present(msg, handlers)
	if err != nil {
		q.loggers.Warnf("Failed to present in-app message %s: %s", msg.InappID, err)
		return false
	}
	if h == nil {
		h = noopHandle{}
	}
	handle = h
	close(ready)
	q.events.RecordMessageDelivered(msg)
	return true
}

type noopHandle struct{}

func (noopHandle) Dismiss() {}

func (q *PresentationQueue) openLink(msg Message, link string, handle Handle) {
	parsed, err := url.Parse(link)
	if err != nil {
		q.loggers.Warnf("Ignoring malformed in-app link %q: %s", link, err)
		handle.Dismiss()
		return
	}
	switch parsed.Scheme {
	case "http", "https":
		q.events.RecordMessageOpened(msg)
		handle.Dismiss()
		if err := q.surface.PresentURL(link); err != nil {
			q.loggers.Warnf("Failed to present browser surface for %q: %s", link, err)
		}
	default:
		handle.Dismiss()
		if q.opener != nil {
			if err := q.opener.OpenURL(link); err != nil {
				q.loggers.Warnf("Failed to open URL %q: %s", link, err)
			}
		}
	}
}
