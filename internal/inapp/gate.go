package inapp

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/zaikorea/blux-go-client-sdk/internal"
)

// Gate tracks whether the application is interactively visible and the
// network is reachable. It is purely advisory: the presentation queue
// consults CanDispatch before showing anything, and nothing else depends on
// it.
//
// Until StartMonitoring is called the gate reports not-dispatchable, so a
// host that forgets to start monitoring loses messages rather than
// presenting over a backgrounded app.
type Gate struct {
	mu               sync.Mutex
	started          bool
	appActive        bool
	networkReachable bool
	broadcaster      *internal.Broadcaster[bool]
	loggers          ldlog.Loggers
}

// NewGate creates a Gate in the unmonitored state.
func NewGate(loggers ldlog.Loggers) *Gate {
	return &Gate{
		broadcaster: internal.NewBroadcaster[bool](),
		loggers:     loggers,
	}
}

// StartMonitoring begins state tracking, assuming the app is active and the
// network reachable until told otherwise. Calling it again has no effect.
func (g *Gate) StartMonitoring() {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.appActive = true
	g.networkReachable = true
	g.mu.Unlock()
	g.broadcaster.Broadcast(true)
}

// SetAppActive records an application lifecycle transition. The host calls
// this from its foreground/background hooks.
func (g *Gate) SetAppActive(active bool) {
	g.setState(func() { g.appActive = active })
}

// SetNetworkReachable records a network reachability transition.
func (g *Gate) SetNetworkReachable(reachable bool) {
	g.setState(func() { g.networkReachable = reachable })
}

func (g *Gate) setState(update func()) {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	before := g.canDispatchLocked()
	update()
	after := g.canDispatchLocked()
	g.mu.Unlock()
	if before != after {
		g.loggers.Debugf("In-app dispatch availability changed to %t", after)
		g.broadcaster.Broadcast(after)
	}
}

// CanDispatch reports whether an in-app message may be presented right now.
func (g *Gate) CanDispatch() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canDispatchLocked()
}

func (g *Gate) canDispatchLocked() bool {
	return g.started && g.appActive && g.networkReachable
}

// Changes returns a channel receiving the combined dispatchability value
// whenever it changes.
func (g *Gate) Changes() <-chan bool {
	return g.broadcaster.AddListener()
}

// StopChanges unsubscribes a channel returned by Changes.
func (g *Gate) StopChanges(ch <-chan bool) {
	g.broadcaster.RemoveListener(ch)
}

// Close releases all listener channels.
func (g *Gate) Close() {
	g.broadcaster.Close()
}
