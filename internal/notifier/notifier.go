// Package notifier provides a simple broadcast mechanism for state
// change events: connection state transitions, configuration reloads
// and schema refreshes.
package notifier

import "sync"

// Event identifies what changed. Listeners re-query the relevant
// component rather than carrying payloads through the channel.
type Event string

const (
	EventConnections Event = "connections"
	EventConfig      Event = "config"
	EventSchema      Event = "schema"
	EventHistory     Event = "history"
)

// Notifier broadcasts events to all subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives events as they happen.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 8)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends an event to all listeners.
// Non-blocking: if a listener's channel is full, the event is skipped.
func (n *Notifier) Broadcast(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
			// Channel full, skip (listener will catch up on next broadcast)
		}
	}
}
