// Package relay fans broadcast messages out to SSE clients.
package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const subscriberBufSize = 256

// FeedScraped carries {type:"scraped",data:<record>} messages.
const FeedScraped = "scraped"

// Event represents a single relay event to be sent via SSE.
type Event struct {
	ID      string
	Feed    string
	Payload string
}

// Message is the broadcast envelope.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewMessage wraps data in a {type,data} envelope on the feed of the same
// name.
func NewMessage(msgType string, data any) (Event, error) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return Event{}, fmt.Errorf("relay: marshal %s message: %w", msgType, err)
	}
	return Event{ID: uuid.NewString(), Feed: msgType, Payload: string(payload)}, nil
}

// Broker fans out events to all subscribed SSE clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

// NewBroker creates a new SSE event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new client. Returns the subscriber ID and a channel
// to receive events on. The channel is buffered; slow consumers will have
// events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers and returns how many received
// it. Non-blocking: slow clients have events dropped.
func (b *Broker) Publish(evt Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
			delivered++
		default:
		}
	}
	return delivered
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
