package inapp

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presentation struct {
	msg      Message
	handlers ContentHandlers
	handle   *fakeHandle
}

type fakeHandle struct {
	mu        sync.Mutex
	dismissed bool
}

func (h *fakeHandle) Dismiss() {
	h.mu.Lock()
	h.dismissed = true
	h.mu.Unlock()
}

func (h *fakeHandle) wasDismissed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dismissed
}

// fakeSurface records each Present call and hands the test control over the
// registered handlers.
type fakeSurface struct {
	presentations chan presentation
	urls          chan string
	presentErr    error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		presentations: make(chan presentation, 10),
		urls:          make(chan string, 10),
	}
}

func (s *fakeSurface) Present(msg Message, handlers ContentHandlers) (Handle, error) {
	if s.presentErr != nil {
		return nil, s.presentErr
	}
	h := &fakeHandle{}
	s.presentations <- presentation{msg: msg, handlers: handlers, handle: h}
	return h, nil
}

func (s *fakeSurface) PresentURL(url string) error {
	s.urls <- url
	return nil
}

func (s *fakeSurface) expectPresentation(t *testing.T) presentation {
	t.Helper()
	select {
	case p := <-s.presentations:
		return p
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for presentation")
		return presentation{}
	}
}

func (s *fakeSurface) expectNoPresentation(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case p := <-s.presentations:
		require.Failf(t, "unexpected presentation", "message %s", p.msg.InappID)
	case <-time.After(timeout):
	}
}

type recordingSink struct {
	mu        sync.Mutex
	delivered []string
	opened    []string
}

func (s *recordingSink) RecordMessageDelivered(msg Message) {
	s.mu.Lock()
	s.delivered = append(s.delivered, msg.NotificationID)
	s.mu.Unlock()
}

func (s *recordingSink) RecordMessageOpened(msg Message) {
	s.mu.Lock()
	s.opened = append(s.opened, msg.NotificationID)
	s.mu.Unlock()
}

type recordingOpener struct {
	urls chan string
}

func (o *recordingOpener) OpenURL(url string) error {
	o.urls <- url
	return nil
}

type queueFixture struct {
	gate    *Gate
	snooze  *SnoozeStore
	surface *fakeSurface
	opener  *recordingOpener
	sink    *recordingSink
	queue   *PresentationQueue
}

func newQueueFixture(t *testing.T) *queueFixture {
	f := &queueFixture{
		gate:    NewGate(ldlog.NewDisabledLoggers()),
		snooze:  NewSnoozeStore("", ldlog.NewDisabledLoggers()),
		surface: newFakeSurface(),
		opener:  &recordingOpener{urls: make(chan string, 10)},
		sink:    &recordingSink{},
	}
	f.gate.StartMonitoring()
	f.queue = NewPresentationQueue(f.gate, f.snooze, f.surface, f.opener, f.sink, ldlog.NewDisabledLoggers())
	t.Cleanup(f.gate.Close)
	return f
}

func message(id string) Message {
	return Message{NotificationID: "n-" + id, InappID: id, HTML: "<html/>", BaseURL: "https://cdn.example.com"}
}

func TestQueuePresentsMessageAndRecordsDelivery(t *testing.T) {
	f := newQueueFixture(t)

	f.queue.HandleResponse(message("promo"))

	p := f.surface.expectPresentation(t)
	assert.Equal(t, "promo", p.msg.InappID)

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	assert.Equal(t, []string{"n-promo"}, f.sink.delivered)
}

func TestQueueDropsMessageWhenGateClosed(t *testing.T) {
	f := newQueueFixture(t)
	f.gate.SetAppActive(false)

	f.queue.HandleResponse(message("promo"))
	f.surface.expectNoPresentation(t, 50*time.Millisecond)

	// The drop is permanent: reopening the gate does not revive the message.
	f.gate.SetAppActive(true)
	f.surface.expectNoPresentation(t, 50*time.Millisecond)
}

func TestQueueShowsOneMessageAtATimeInOrder(t *testing.T) {
	f := newQueueFixture(t)

	f.queue.HandleResponse(message("first"))
	f.queue.HandleResponse(message("second"))

	p1 := f.surface.expectPresentation(t)
	assert.Equal(t, "first", p1.msg.InappID)
	f.surface.expectNoPresentation(t, 50*time.Millisecond)

	p1.handlers.Dismissed()

	p2 := f.surface.expectPresentation(t)
	assert.Equal(t, "second", p2.msg.InappID)
}

func TestQueueChecksSnoozeAtDequeueTime(t *testing.T) {
	f := newQueueFixture(t)

	// Queue two messages; snooze the second while the first is on screen.
	// The snooze must be honored even though the message was already queued.
	f.queue.HandleResponse(message("first"))
	f.queue.HandleResponse(message("snoozed"))
	f.queue.HandleResponse(message("third"))

	p1 := f.surface.expectPresentation(t)
	f.snooze.Snooze("snoozed", 1)
	p1.handlers.Dismissed()

	p2 := f.surface.expectPresentation(t)
	assert.Equal(t, "third", p2.msg.InappID)
}

func TestQueueHideHandlerSnoozesAndAdvances(t *testing.T) {
	f := newQueueFixture(t)

	f.queue.HandleResponse(message("promo"))
	f.queue.HandleResponse(message("next"))

	p := f.surface.expectPresentation(t)
	p.handlers.Hide(30)

	assert.True(t, p.handle.wasDismissed())
	assert.True(t, f.snooze.IsHidden("promo"))

	p2 := f.surface.expectPresentation(t)
	assert.Equal(t, "next", p2.msg.InappID)
}

func TestQueueWebLinkOpensBrowserSurfaceAndRecordsOpened(t *testing.T) {
	f := newQueueFixture(t)

	f.queue.HandleResponse(message("promo"))
	p := f.surface.expectPresentation(t)

	p.handlers.Link("https://example.com/sale")

	assert.True(t, p.handle.wasDismissed())
	select {
	case url := <-f.surface.urls:
		assert.Equal(t, "https://example.com/sale", url)
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for browser surface")
	}
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	assert.Equal(t, []string{"n-promo"}, f.sink.opened)
}

func TestQueueCustomSchemeLinkGoesToOpener(t *testing.T) {
	f := newQueueFixture(t)

	f.queue.HandleResponse(message("promo"))
	p := f.surface.expectPresentation(t)

	p.handlers.Link("myapp://settings")

	assert.True(t, p.handle.wasDismissed())
	select {
	case url := <-f.opener.urls:
		assert.Equal(t, "myapp://settings", url)
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for opener")
	}
	// Custom-scheme links do not count as message opens.
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	assert.Empty(t, f.sink.opened)
}

func TestQueueCustomActionInvokesHandlerAndDismisses(t *testing.T) {
	f := newQueueFixture(t)

	actions := make(chan string, 1)
	payloads := make(chan ldvalue.Value, 1)
	f.queue.SetCustomActionHandler(func(actionID string, data ldvalue.Value) {
		actions <- actionID
		payloads <- data
	})

	f.queue.HandleResponse(message("promo"))
	p := f.surface.expectPresentation(t)

	data := ldvalue.ObjectBuild().SetString("coupon", "SAVE10").Build()
	p.handlers.CustomAction("apply-coupon", data)

	assert.True(t, p.handle.wasDismissed())
	select {
	case id := <-actions:
		assert.Equal(t, "apply-coupon", id)
		assert.Equal(t, data, <-payloads)
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for custom action")
	}
}

func TestQueueSkipsMessageWhenPresentFails(t *testing.T) {
	f := newQueueFixture(t)
	f.surface.presentErr = errors.New("no window")

	f.queue.HandleResponse(message("first"))
	f.surface.expectNoPresentation(t, 50*time.Millisecond)

	// A later message still gets its chance once presenting works again.
	f.surface.presentErr = nil
	f.queue.HandleResponse(message("second"))
	p := f.surface.expectPresentation(t)
	assert.Equal(t, "second", p.msg.InappID)

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	assert.Equal(t, []string{"n-second"}, f.sink.delivered)
}

func TestQueueWithNilSurfaceDiscardsMessages(t *testing.T) {
	gate := NewGate(ldlog.NewDisabledLoggers())
	defer gate.Close()
	gate.StartMonitoring()
	snooze := NewSnoozeStore("", ldlog.NewDisabledLoggers())
	q := NewPresentationQueue(gate, snooze, nil, nil, &recordingSink{}, ldlog.NewDisabledLoggers())

	q.HandleResponse(message("promo")) // must not panic
}
