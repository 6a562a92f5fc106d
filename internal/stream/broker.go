// Package stream holds the in-process event broadcaster and the pluggable
// publisher used to push lightweight pings to connected SSE clients.
package stream

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/collab-core/pkg/logger"
)

// Event is one framed message headed for a client sink.
type Event struct {
	Name string
	Data json.RawMessage
}

// Publisher abstracts event fan-out so the in-process broker can be swapped
// for a shared transport (see RedisBridge) without changing callers.
type Publisher interface {
	// Broadcast delivers the event to every connected client.
	Broadcast(name string, payload any) error
	// PublishUser delivers the event to the given user's clients only.
	PublishUser(userID, name string, payload any) error
}

// Client is one registered sink: an SSE connection owned by a single user.
// Never persisted; a process restart drops all clients and they reconnect.
type Client struct {
	ID     string
	UserID string
	ch     chan Event
}

// C returns the receive side of the client's event channel.
func (c *Client) C() <-chan Event { return c.ch }

// Broker fans events out to all registered clients. Fan-out is best-effort:
// a full client buffer drops the event for that client only and the publisher
// never blocks. The registry is process-local.
type Broker struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  int
}

func NewBroker(clientBuffer int) *Broker {
	if clientBuffer <= 0 {
		clientBuffer = 64
	}
	return &Broker{clients: make(map[string]*Client), buffer: clientBuffer}
}

// Subscribe registers a new client sink for userID.
func (b *Broker) Subscribe(userID string) *Client {
	c := &Client{ID: uuid.New().String(), UserID: userID, ch: make(chan Event, b.buffer)}
	b.mu.Lock()
	b.clients[c.ID] = c
	b.mu.Unlock()
	return c
}

// Unsubscribe removes a client and closes its channel. Idempotent.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
		close(c.ch)
	}
	b.mu.Unlock()
}

// ClientCount reports the number of registered sinks.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broker) Broadcast(name string, payload any) error {
	return b.publish("", name, payload)
}

func (b *Broker) PublishUser(userID, name string, payload any) error {
	return b.publish(userID, name, payload)
}

// publish serializes payload once and writes the same event to every matching
// sink; userID=="" matches all.
func (b *Broker) publish(userID, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	ev := Event{Name: name, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.clients {
		if userID != "" && c.UserID != userID {
			continue
		}
		select {
		case c.ch <- ev:
		default:
			logger.Warn("stream client buffer full, drop event",
				zap.String("client", c.ID),
				zap.String("event", name))
		}
	}
	return nil
}
