// Package inapp implements server-driven in-app message delivery: the
// availability gate that decides whether a message may be shown at all, the
// per-message snooze store, and the single-flight presentation queue that
// serializes rendering and routes embedded-content actions back to the
// application.
package inapp

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Message is one server-selected in-app message, delivered piggybacked on a
// collect-events response.
type Message struct {
	// NotificationID identifies the delivery, used in follow-up events.
	NotificationID string
	// InappID identifies the message content, used as the snooze key.
	InappID string
	// HTML is the content to render.
	HTML string
	// BaseURL resolves relative resources inside HTML.
	BaseURL string
}

// ContentHandlers are the inbound named-message handlers the presentation
// queue registers on a surface. The surface invokes them when the embedded
// content posts the corresponding message, and invokes Dismissed if the user
// closes the surface by some other means.
type ContentHandlers struct {
	Hide         func(daysToHide int)
	Link         func(url string)
	CustomAction func(actionID string, data ldvalue.Value)
	Dismissed    func()
}

// Handle controls one on-screen presentation.
type Handle interface {
	// Dismiss removes the surface from the screen. The presentation slot is
	// released by the queue, not by Dismiss itself.
	Dismiss()
}

// Surface is the modal content renderer provided by the host application.
type Surface interface {
	// Present renders a message and registers its content handlers. A non-nil
	// error means nothing was shown. Handlers may be invoked from any
	// goroutine once Present has been called, but not synchronously within
	// Present itself.
	Present(msg Message, handlers ContentHandlers) (Handle, error)
	// PresentURL shows a plain browser-style surface for an http(s) link
	// opened from inside a message.
	PresentURL(url string) error
}

// URLOpener hands non-web URLs (custom schemes) to the operating system's
// generic open facility.
type URLOpener interface {
	OpenURL(url string) error
}

// EventSink receives the delivery/interaction events the queue emits. It is
// implemented by the SDK's event batcher.
type EventSink interface {
	RecordMessageDelivered(msg Message)
	RecordMessageOpened(msg Message)
}
