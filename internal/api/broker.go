package api

import (
	"sync"
)

// Broker is an in-process pub/sub of encoded notifications, keyed by session ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives the notifications of a session.
func (b *Broker) Subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan []byte]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(sessionID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[sessionID], ch)
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
	b.mu.Unlock()
}

// Publish delivers data to every subscriber of the session. Slow subscribers miss it.
func (b *Broker) Publish(sessionID string, data []byte) {
	b.mu.RLock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- data:
		default:
		}
	}
	b.mu.RUnlock()
}
