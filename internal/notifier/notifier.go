// Package notifier provides a broadcast mechanism for live-reload
// pings: the dev server publishes a build ID after each rebuild and
// every connected SSE client receives it.
package notifier

import "sync"

// Notifier fans a value out to all subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan string]struct{}
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel receiving broadcast values. The caller
// must Unsubscribe when done to avoid leaking the channel.
func (n *Notifier) Subscribe() chan string {
	ch := make(chan string, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan string) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends v to all listeners. Non-blocking: a listener whose
// buffer is full misses this value and catches up on the next one.
func (n *Notifier) Broadcast(v string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- v:
		default:
		}
	}
}

// Len reports the current number of listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
