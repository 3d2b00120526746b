package internal

import (
	"sync"

	"golang.org/x/exp/slices"
)

// This file defines the publish-subscribe mechanism used for SDK status
// notifications, currently the availability gate's dispatchability changes.
//
// AddListener returns a new receive-only channel; RemoveListener unsubscribes
// that channel and closes its sending end; Broadcast sends a value to every
// subscribed channel; Close unsubscribes and closes all of them.

// Subscriber channels are buffered so a slow listener is unlikely to block a
// broadcast, but consuming the channel remains the listener's responsibility.
const subscriberChannelBufferLength = 10

// Broadcaster fans out values of type V to any number of listener channels.
type Broadcaster[V any] struct {
	subscribers []channelPair[V]
	lock        sync.Mutex
}

// Both ends of each subscriber channel are retained: the send end for
// Broadcast/Close, the receive end so RemoveListener can match the channel a
// caller hands back (the two ends have different types and cannot be
// compared with each other).
type channelPair[V any] struct {
	sendCh    chan<- V
	receiveCh <-chan V
}

// NewBroadcaster creates a Broadcaster for the given value type.
func NewBroadcaster[V any]() *Broadcaster[V] {
	return &Broadcaster[V]{}
}

// AddListener subscribes and returns the channel on which the listener will
// receive values.
func (b *Broadcaster[V]) AddListener() <-chan V {
	ch := make(chan V, subscriberChannelBufferLength)
	var receiveCh <-chan V = ch
	b.lock.Lock()
	defer b.lock.Unlock()
	b.subscribers = append(b.subscribers, channelPair[V]{sendCh: ch, receiveCh: receiveCh})
	return receiveCh
}

// RemoveListener unsubscribes a channel previously returned by AddListener
// and closes it.
func (b *Broadcaster[V]) RemoveListener(ch <-chan V) {
	b.lock.Lock()
	defer b.lock.Unlock()
	ss := b.subscribers
	for i, s := range ss {
		if s.receiveCh == ch {
			copy(ss[i:], ss[i+1:])
			ss[len(ss)-1] = channelPair[V]{}
			b.subscribers = ss[:len(ss)-1]
			close(s.sendCh)
			break
		}
	}
}

// HasListeners reports whether any subscriptions exist.
func (b *Broadcaster[V]) HasListeners() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subscribers) > 0
}

// Broadcast sends a value to all current subscribers.
func (b *Broadcaster[V]) Broadcast(value V) {
	b.lock.Lock()
	ss := slices.Clone(b.subscribers)
	b.lock.Unlock()
	for _, ch := range ss {
		ch.sendCh <- value
	}
}

// Close closes all subscriber channels and removes them.
func (b *Broadcaster[V]) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, s := range b.subscribers {
		close(s.sendCh)
	}
	b.subscribers = nil
}
