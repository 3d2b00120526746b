package blux

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/zaikorea/blux-go-client-sdk/bluxevents"
)

// Notification is a push notification originating from Blux, as decoded by
// the host platform's push binding.
type Notification struct {
	// ID identifies the notification delivery.
	ID string
	// Title and Body are the displayed text.
	Title string
	Body  string
	// URL is an optional link to open when the notification is clicked.
	URL string
	// ImageURL is an optional attachment image.
	ImageURL string
	// Data carries any additional key-value payload.
	Data map[string]string
}

// OnNotificationReceived registers the callback invoked when a push
// notification arrives while the application is in the foreground. Replaces
// any previously registered callback.
func (c *Client) OnNotificationReceived(handler func(Notification)) {
	c.notifMu.Lock()
	c.receivedHandler = handler
	c.notifMu.Unlock()
}

// OnNotificationClicked registers the callback invoked when the user opens a
// push notification. If a click happened before any callback was registered
// (the app was cold-started from a notification), it is replayed immediately.
func (c *Client) OnNotificationClicked(handler func(Notification)) {
	c.notifMu.Lock()
	c.clickedHandler = handler
	replay := c.unhandledClick
	c.unhandledClick = nil
	c.notifMu.Unlock()

	if handler != nil && replay != nil {
		handler(*replay)
	}
}

// HandleNotificationReceived records delivery of a push notification and
// invokes the received callback, if one is registered. Host push bindings
// call this from their notification-arrived hook.
func (c *Client) HandleNotificationReceived(notification Notification) {
	c.recordNotificationEvent(bluxevents.EventTypePushDelivered, notification)

	c.notifMu.Lock()
	handler := c.receivedHandler
	c.notifMu.Unlock()
	if handler != nil {
		handler(notification)
	}
}

// HandleNotificationClicked records a push notification click and invokes the
// clicked callback. A click with no callback registered yet is kept and
// replayed when one is registered; only the most recent such click is kept.
func (c *Client) HandleNotificationClicked(notification Notification) {
	c.recordNotificationEvent(bluxevents.EventTypePushClicked, notification)

	c.notifMu.Lock()
	handler := c.clickedHandler
	if handler == nil {
		saved := notification
		c.unhandledClick = &saved
	}
	c.notifMu.Unlock()
	if handler != nil {
		handler(notification)
	}
}

func (c *Client) recordNotificationEvent(eventType string, notification Notification) {
	event, err := bluxevents.NewBuilder(eventType).
		CustomProperty("notification_id", ldvalue.String(notification.ID)).
		Build()
	if err != nil {
		c.loggers.Errorf("Dropping malformed %s event: %s", eventType, err)
		return
	}
	c.recorder.Record(event)
}
