package blux

import (
	"errors"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/zaikorea/blux-go-client-sdk/bluxevents"
	"github.com/zaikorea/blux-go-client-sdk/internal/dispatch"
	"github.com/zaikorea/blux-go-client-sdk/internal/endpoints"
	"github.com/zaikorea/blux-go-client-sdk/internal/identity"
	"github.com/zaikorea/blux-go-client-sdk/internal/inapp"
	"github.com/zaikorea/blux-go-client-sdk/internal/prefs"
	"github.com/zaikorea/blux-go-client-sdk/internal/taskq"
	"github.com/zaikorea/blux-go-client-sdk/internal/transport"
)

// closeDrainTimeout bounds how long Close waits for the final batch to be
// delivered before giving up on it.
const closeDrainTimeout = 5 * time.Second

// Initialization errors returned by MakeClient and MakeCustomClient. In both
// cases a non-nil client is still returned; it can record events, which are
// delivered once device registration eventually succeeds.
var (
	// ErrInitializationTimeout means device registration did not finish
	// within the waitFor period. Registration continues in the background.
	ErrInitializationTimeout = errors.New("timeout encountered waiting for client initialization")
	// ErrInitializationFailed means device registration failed. It will be
	// retried the next time the client is constructed.
	ErrInitializationFailed = errors.New("client initialization failed")
)

// Client is the Blux client. Use MakeClient or MakeCustomClient to construct
// one; a Client created any other way is not usable.
//
// All methods are safe for concurrent use.
type Client struct {
	loggers     ldlog.Loggers
	store       prefs.Store
	ownStore    bool
	identity    *identity.Manager
	queue       *taskq.Queue
	gate        *inapp.Gate
	inappQueue  *inapp.PresentationQueue
	transmitter *dispatch.Transmitter
	recorder    *dispatch.Recorder

	registration chan error

	notifMu         sync.Mutex
	receivedHandler func(Notification)
	clickedHandler  func(Notification)
	unhandledClick  *Notification

	closeOnce sync.Once
}

// MakeClient creates a client with a default configuration and waits up to
// waitFor for the device to register with the backend.
//
// If registration does not finish in time, the client is returned along with
// ErrInitializationTimeout; it is still usable, and recorded events are
// delivered once registration completes in the background. A waitFor of zero
// returns immediately without waiting.
func MakeClient(clientID string, apiKey string, waitFor time.Duration) (*Client, error) {
	return MakeCustomClient(clientID, apiKey, Config{}, waitFor)
}

// MakeCustomClient creates a client with a custom configuration. See
// MakeClient for the meaning of waitFor.
func MakeCustomClient(clientID string, apiKey string, config Config, waitFor time.Duration) (*Client, error) {
	if clientID == "" {
		return nil, errors.New("client id is required")
	}
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	loggers := config.Loggers
	baseURI := endpoints.SelectBaseURI(config.BaseURI, endpoints.Stage(config.Stage), loggers)

	store, ownStore, err := makePreferenceStore(config, loggers)
	if err != nil {
		return nil, err
	}

	sdkType := config.SDKType
	if sdkType == "" {
		sdkType = DefaultSDKType
	}
	headers := transport.DefaultHeaders(clientID, apiKey, sdkType+"/"+Version)
	sender := transport.NewHTTPSender(config.HTTPClient, baseURI, headers, loggers)

	ids := identity.NewManager(store, sender, clientID,
		identity.DefaultDeviceInfo(sdkType, Version), loggers)

	queue := taskq.NewQueue()
	gate := inapp.NewGate(loggers)
	snooze := makeSnoozeStore(config, store, loggers)

	client := &Client{
		loggers:      loggers,
		store:        store,
		ownStore:     ownStore,
		identity:     ids,
		queue:        queue,
		gate:         gate,
		registration: make(chan error, 1),
	}

	var surface inapp.Surface
	if config.InappSurface != nil {
		surface = surfaceAdapter{surface: config.InappSurface}
	}
	client.inappQueue = inapp.NewPresentationQueue(
		gate, snooze, surface, urlOpenerFor(config), inappEventSink{client: client}, loggers)
	client.transmitter = dispatch.NewTransmitter(queue, sender, ids, client.inappQueue, loggers)
	client.recorder = dispatch.NewRecorder(client.transmitter, config.BatchWindow)

	go client.register()

	if waitFor > 0 {
		select {
		case err := <-client.registration:
			if err != nil {
				return client, ErrInitializationFailed
			}
		case <-time.After(waitFor):
			loggers.Warn("Timeout exceeded when initializing client; will retry in background")
			return client, ErrInitializationTimeout
		}
	}
	return client, nil
}

func makePreferenceStore(config Config, loggers ldlog.Loggers) (prefs.Store, bool, error) {
	if config.PreferenceStore != nil {
		return config.PreferenceStore, false, nil
	}
	if config.PreferenceFilePath != "" {
		store, err := prefs.NewFileStore(config.PreferenceFilePath, loggers)
		if err != nil {
			return nil, false, err
		}
		return store, true, nil
	}
	loggers.Warn("No preference file configured; device identity will not persist across restarts")
	return prefs.NewMemoryStore(), true, nil
}

// makeSnoozeStore decides where "don't show again" state is kept. A custom
// preference store carries it alongside the device identity; with a
// preference file it lives in a sidecar file next to it; otherwise it is
// memory-only.
func makeSnoozeStore(config Config, store prefs.Store, loggers ldlog.Loggers) *inapp.SnoozeStore {
	if config.PreferenceStore != nil {
		return inapp.NewStoreBackedSnoozeStore(store, loggers)
	}
	if config.PreferenceFilePath != "" {
		return inapp.NewSnoozeStore(config.PreferenceFilePath+".inapp", loggers)
	}
	return inapp.NewSnoozeStore("", loggers)
}

func urlOpenerFor(config Config) inapp.URLOpener {
	if config.URLOpener == nil {
		return nil
	}
	return config.URLOpener
}

// register performs device registration, then opens the task queue so that
// any operations submitted in the meantime run in order.
func (c *Client) register() {
	err := c.identity.RegisterOrActivate()
	if err != nil {
		c.loggers.Errorf("Device registration failed: %s", err)
	}
	// Sends that need identity no-op harmlessly until a later registration
	// succeeds, so the queue opens either way rather than wedging.
	c.queue.SetReady()
	c.registration <- err
}

// Initialized returns true once device registration has succeeded.
func (c *Client) Initialized() bool {
	return c.identity.DeviceID().IsDefined()
}

// RecordEvent records a single event. It returns immediately; the event is
// batched and delivered in the background.
func (c *Client) RecordEvent(event bluxevents.Event) {
	c.recorder.Record(event)
}

// SendRequest records all events in a request, preserving their order within
// the delivered batch.
func (c *Client) SendRequest(request bluxevents.Request) {
	c.recorder.RecordAll(request.Events())
}

// FlushPendingEvents immediately delivers any events still inside the batch
// window. Host applications should call this when moving to the background,
// since batched events are held in memory only.
func (c *Client) FlushPendingEvents() {
	c.recorder.FlushNow()
}

// SetUserID associates an application-assigned user id with this device, or
// clears the association if userID is empty. The update runs behind any
// operations already queued, so events recorded before this call are
// attributed to the previous user.
func (c *Client) SetUserID(userID string) {
	c.queue.Submit(func(done func()) {
		defer done()
		if err := c.identity.SetUserID(userID); err != nil {
			c.loggers.Errorf("Failed to update user id: %s", err)
		}
	})
}

// UserProperties are profile attributes attached to the signed-in user.
// Empty strings mean "leave unset"; Custom follows the same value rules as
// event custom properties.
type UserProperties struct {
	PhoneNumber  string
	EmailAddress string
	Custom       map[string]ldvalue.Value
}

// SetUserProperties updates profile attributes for the current user on the
// backend. It is a silent no-op before device registration completes.
func (c *Client) SetUserProperties(props UserProperties) {
	c.queue.Submit(func(done func()) {
		defer done()
		err := c.identity.SetUserProperties(identity.UserProperties{
			PhoneNumber:  props.PhoneNumber,
			EmailAddress: props.EmailAddress,
			Custom:       props.Custom,
		})
		if err != nil {
			c.loggers.Errorf("Failed to update user properties: %s", err)
		}
	})
}

// StartAvailabilityMonitoring begins tracking app/network availability for
// in-app message presentation. Until it is called, the SDK treats the
// application as unavailable and discards in-app messages. Host bindings
// call this once their lifecycle observers are installed.
func (c *Client) StartAvailabilityMonitoring() {
	c.gate.StartMonitoring()
}

// SetAppActive tells the SDK whether the application is in the foreground.
// Transitioning to inactive also flushes pending events, since a suspended
// process may never get another chance to send them.
func (c *Client) SetAppActive(active bool) {
	c.gate.SetAppActive(active)
	if !active {
		c.recorder.FlushNow()
	}
}

// SetNetworkReachable tells the SDK whether the network is currently
// reachable. Ignored before StartAvailabilityMonitoring.
func (c *Client) SetNetworkReachable(reachable bool) {
	c.gate.SetNetworkReachable(reachable)
}

// AddAvailabilityListener subscribes to changes in in-app dispatch
// availability, the combined app-active and network-reachable state driven by
// SetAppActive and SetNetworkReachable. The channel receives the new combined
// value whenever it changes. Hosts typically bind this to pausing and
// resuming their own rendering work.
func (c *Client) AddAvailabilityListener() <-chan bool {
	return c.gate.Changes()
}

// RemoveAvailabilityListener unsubscribes a channel returned by
// AddAvailabilityListener and closes it.
func (c *Client) RemoveAvailabilityListener(ch <-chan bool) {
	c.gate.StopChanges(ch)
}

// SetCustomInappActionHandler registers the callback invoked when in-app
// message content signals an application-defined action. Replaces any
// previously registered handler.
func (c *Client) SetCustomInappActionHandler(handler func(actionID string, data ldvalue.Value)) {
	c.inappQueue.SetCustomActionHandler(handler)
}

// Close shuts the client down, flushing any events still inside the batch
// window and waiting for in-flight deliveries to finish. The client cannot be
// used afterwards.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.recorder.FlushNow()
		if !c.queue.Drain(closeDrainTimeout) {
			c.loggers.Warn("Timed out waiting for final event delivery during Close")
		}
		c.transmitter.Close()
		c.queue.Close()
		c.gate.Close()
		if c.ownStore {
			if err := c.store.Close(); err != nil {
				c.loggers.Warnf("Error closing preference store: %s", err)
			}
		}
	})
	return nil
}

// inappEventSink reports in-app lifecycle events back through the batcher.
type inappEventSink struct {
	client *Client
}

func (s inappEventSink) RecordMessageDelivered(msg inapp.Message) {
	s.client.recordInappEvent(bluxevents.EventTypeInappDelivered, msg)
}

func (s inappEventSink) RecordMessageOpened(msg inapp.Message) {
	s.client.recordInappEvent(bluxevents.EventTypeInappOpened, msg)
}

func (c *Client) recordInappEvent(eventType string, msg inapp.Message) {
	event, err := bluxevents.NewBuilder(eventType).
		CustomProperty("notification_id", ldvalue.String(msg.NotificationID)).
		CustomProperty("inapp_id", ldvalue.String(msg.InappID)).
		Build()
	if err != nil {
		c.loggers.Errorf("Dropping malformed %s event: %s", eventType, err)
		return
	}
	c.recorder.Record(event)
}
