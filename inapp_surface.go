package blux

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/zaikorea/blux-go-client-sdk/internal/inapp"
)

// InappMessage is one server-selected in-app message to render.
type InappMessage struct {
	// NotificationID identifies this delivery of the message.
	NotificationID string
	// InappID identifies the message content. Used as the key when the user
	// asks not to see the message again.
	InappID string
	// HTML is the content to render.
	HTML string
	// BaseURL resolves relative resources inside HTML.
	BaseURL string
}

// InappContentHandlers are the callbacks a surface must route messages from
// the embedded content to. They may be invoked from any goroutine, but not
// synchronously within Present itself.
type InappContentHandlers struct {
	// Hide is invoked when the content asks not to be shown again for a
	// number of days.
	Hide func(daysToHide int)
	// Link is invoked when the content opens a URL.
	Link func(url string)
	// CustomAction is invoked when the content signals an app-defined
	// action.
	CustomAction func(actionID string, data ldvalue.Value)
	// Dismissed is invoked when the user closes the surface by any other
	// means. The SDK will not present the next queued message until one of
	// these callbacks has fired.
	Dismissed func()
}

// InappHandle controls one on-screen presentation.
type InappHandle interface {
	// Dismiss removes the surface from the screen.
	Dismiss()
}

// InappSurface is the modal content renderer provided by the host
// application. Implementations render HTML in some web view analogue and
// bridge its postMessage-style channel to the handlers.
type InappSurface interface {
	// Present renders a message. A non-nil error means nothing was shown and
	// the SDK moves on to the next queued message.
	Present(msg InappMessage, handlers InappContentHandlers) (InappHandle, error)
	// PresentURL shows a plain browser-style surface for an http(s) link
	// opened from inside a message.
	PresentURL(url string) error
}

// URLOpener hands custom-scheme URLs to the host platform's generic open
// facility (deep links into other applications).
type URLOpener interface {
	OpenURL(url string) error
}

// surfaceAdapter bridges the public surface interface to the internal
// presentation queue types.
type surfaceAdapter struct {
	surface InappSurface
}

func (a surfaceAdapter) Present(msg inapp.Message, handlers inapp.ContentHandlers) (inapp.Handle, error) {
	return a.surface.Present(
		InappMessage{
			NotificationID: msg.NotificationID,
			InappID:        msg.InappID,
			HTML:           msg.HTML,
			BaseURL:        msg.BaseURL,
		},
		InappContentHandlers{
			Hide:         handlers.Hide,
			Link:         handlers.Link,
			CustomAction: handlers.CustomAction,
			Dismissed:    handlers.Dismissed,
		},
	)
}

func (a surfaceAdapter) PresentURL(url string) error {
	return a.surface.PresentURL(url)
}
