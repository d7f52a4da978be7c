package relay

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNewMessageEnvelope(t *testing.T) {
	evt, err := NewMessage(FeedScraped, map[string]string{"title": "Case"})
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	if evt.Feed != FeedScraped {
		t.Fatalf("Feed = %q, want %q", evt.Feed, FeedScraped)
	}
	if _, err := uuid.Parse(evt.ID); err != nil {
		t.Fatalf("ID %q is not a uuid: %v", evt.ID, err)
	}

	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal([]byte(evt.Payload), &msg); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if msg.Type != "scraped" || msg.Data["title"] != "Case" {
		t.Fatalf("payload = %s", evt.Payload)
	}
}

func TestNewMessageRejectsUnencodableData(t *testing.T) {
	if _, err := NewMessage(FeedScraped, make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestBrokerDropsForSlowSubscribers(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", b.ClientCount())
	}

	for i := 0; i < subscriberBufSize; i++ {
		if n := b.Publish(Event{Feed: "x", Payload: "p"}); n != 1 {
			t.Fatalf("Publish() delivered %d, want 1", n)
		}
	}
	if n := b.Publish(Event{Feed: "x", Payload: "overflow"}); n != 0 {
		t.Fatalf("Publish() on full buffer delivered %d, want 0", n)
	}
	if len(ch) != subscriberBufSize {
		t.Fatalf("buffered = %d, want %d", len(ch), subscriberBufSize)
	}

	b.Unsubscribe(id)
	if b.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d after unsubscribe", b.ClientCount())
	}
	for range ch {
	}
	b.Unsubscribe(id) // second call is a no-op
}
