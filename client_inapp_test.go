package blux

import (
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaikorea/blux-go-client-sdk/bluxevents"
	"github.com/zaikorea/blux-go-client-sdk/internal/prefs"
)

type testPresentation struct {
	msg      InappMessage
	handlers InappContentHandlers
}

type testSurface struct {
	presentations chan testPresentation
	urls          chan string
}

type testHandle struct {
	mu        sync.Mutex
	dismissed bool
}

func (h *testHandle) Dismiss() {
	h.mu.Lock()
	h.dismissed = true
	h.mu.Unlock()
}

func newTestSurface() *testSurface {
	return &testSurface{
		presentations: make(chan testPresentation, 5),
		urls:          make(chan string, 5),
	}
}

func (s *testSurface) Present(msg InappMessage, handlers InappContentHandlers) (InappHandle, error) {
	s.presentations <- testPresentation{msg: msg, handlers: handlers}
	return &testHandle{}, nil
}

func (s *testSurface) PresentURL(url string) error {
	s.urls <- url
	return nil
}

func (s *testSurface) expectPresentation(t *testing.T) testPresentation {
	t.Helper()
	select {
	case p := <-s.presentations:
		return p
	case <-time.After(3 * time.Second):
		require.Fail(t, "timed out waiting for presentation")
		return testPresentation{}
	}
}

const inappCollectResponse = `{
	"inapp": {
		"notification_id": "n-1",
		"inapp_id": "promo",
		"html_string": "<html/>",
		"base_url": "https://cdn.example.com"
	}
}`

func setupInappClient(t *testing.T) (*Client, *testService, *testSurface) {
	service := newTestService()
	service.collectResponse = inappCollectResponse
	surface := newTestSurface()
	client, _ := withTestClient(t, service, func(c *Config) {
		c.InappSurface = surface
	})
	client.StartAvailabilityMonitoring()
	return client, service, surface
}

func recordLike(t *testing.T, client *Client, itemID string) {
	t.Helper()
	req, err := bluxevents.Like(itemID)
	require.NoError(t, err)
	client.SendRequest(req)
}

func TestClientPresentsInappMessageFromCollectResponse(t *testing.T) {
	client, service, surface := setupInappClient(t)

	recordLike(t, client, "item-1")
	service.expectCollect(t)

	p := surface.expectPresentation(t)
	assert.Equal(t, "promo", p.msg.InappID)
	assert.Equal(t, "n-1", p.msg.NotificationID)
	assert.Equal(t, "<html/>", p.msg.HTML)
	assert.Equal(t, "https://cdn.example.com", p.msg.BaseURL)

	// Presenting the message reports an inapp_delivered event on the next
	// batch. Further responses would re-present, so stop answering with one.
	service.mu.Lock()
	service.collectResponse = `{}`
	service.mu.Unlock()

	delivered := service.expectCollect(t)
	require.Len(t, delivered.Events, 1)
	assert.Equal(t, "inapp_delivered", delivered.Events[0].EventType)
	assert.Equal(t, "n-1", delivered.Events[0].Properties["notification_id"])
	assert.Equal(t, "promo", delivered.Events[0].Properties["inapp_id"])
}

func TestClientInappWebLinkRecordsOpenedEvent(t *testing.T) {
	client, service, surface := setupInappClient(t)

	recordLike(t, client, "item-1")
	service.expectCollect(t)
	p := surface.expectPresentation(t)

	service.mu.Lock()
	service.collectResponse = `{}`
	service.mu.Unlock()
	service.expectCollect(t) // inapp_delivered batch

	p.handlers.Link("https://example.com/sale")

	select {
	case url := <-surface.urls:
		assert.Equal(t, "https://example.com/sale", url)
	case <-time.After(3 * time.Second):
		require.Fail(t, "timed out waiting for browser surface")
	}

	opened := service.expectCollect(t)
	require.Len(t, opened.Events, 1)
	assert.Equal(t, "inapp_opened", opened.Events[0].EventType)
}

func TestClientInappMessageDroppedWhenAppInactive(t *testing.T) {
	client, service, surface := setupInappClient(t)
	client.SetAppActive(false)

	recordLike(t, client, "item-1")
	service.expectCollect(t)

	select {
	case <-surface.presentations:
		require.Fail(t, "message should have been dropped")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClientCustomInappAction(t *testing.T) {
	client, service, surface := setupInappClient(t)

	actions := make(chan string, 1)
	client.SetCustomInappActionHandler(func(actionID string, data ldvalue.Value) {
		actions <- actionID
	})

	recordLike(t, client, "item-1")
	service.expectCollect(t)
	p := surface.expectPresentation(t)

	service.mu.Lock()
	service.collectResponse = `{}`
	service.mu.Unlock()

	p.handlers.CustomAction("open-cart", ldvalue.Null())

	select {
	case id := <-actions:
		assert.Equal(t, "open-cart", id)
	case <-time.After(3 * time.Second):
		require.Fail(t, "timed out waiting for custom action")
	}
}

func TestClientSnoozeSurvivesRestartWithCustomPreferenceStore(t *testing.T) {
	store := prefs.NewMemoryStore()
	service := newTestService()
	service.collectResponse = inappCollectResponse

	surface1 := newTestSurface()
	client1, _ := withTestClient(t, service, func(c *Config) {
		c.InappSurface = surface1
		c.PreferenceStore = store
	})
	client1.StartAvailabilityMonitoring()

	recordLike(t, client1, "item-1")
	service.expectCollect(t)
	p := surface1.expectPresentation(t)
	assert.Equal(t, "promo", p.msg.InappID)
	p.handlers.Hide(1)
	require.NoError(t, client1.Close())

	// A second client sharing the same preference store must still honor the
	// hide window for the same message.
	surface2 := newTestSurface()
	client2, _ := withTestClient(t, service, func(c *Config) {
		c.InappSurface = surface2
		c.PreferenceStore = store
	})
	client2.StartAvailabilityMonitoring()
	recordLike(t, client2, "item-2")

	deadline := time.After(3 * time.Second)
	for seen := false; !seen; {
		select {
		case req := <-service.collects:
			seen = len(req.Events) == 1 && req.Events[0].ItemID == "item-2"
		case <-deadline:
			require.Fail(t, "timed out waiting for the second client's event")
		}
	}

	select {
	case <-surface2.presentations:
		require.Fail(t, "snoozed message should not have been re-presented")
	case <-time.After(300 * time.Millisecond):
	}
}
