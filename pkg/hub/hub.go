package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-kinect/internal/log"
)

// Stats are hub counters.
type Stats struct {
	Clients    int    `json:"clients"`
	Broadcasts uint64 `json:"broadcasts"`
	Delivered  uint64 `json:"delivered"`
	Dropped    uint64 `json:"dropped"`
	SlowKicks  uint64 `json:"slow_kicks"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name string
	log  *slog.Logger

	// Registered clients, owned by Run
	clients map[*Client]bool

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Client count for readers outside Run
	mu    sync.RWMutex
	count int

	running    atomic.Bool
	broadcasts atomic.Uint64
	delivered  atomic.Uint64
	dropped    atomic.Uint64
	slowKicks  atomic.Uint64
}

// New creates a new Hub
func New(name string) *Hub {
	return &Hub{
		name:       name,
		log:        log.Component("hub").With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Name returns the hub name.
func (h *Hub) Name() string { return h.name }

// Run starts the hub's main loop and returns when ctx is done.
// Remaining clients are disconnected on return.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		for client := range h.clients {
			h.drop(client)
		}
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount()
			h.log.Info("client connected", "topic", client.topic, "clients", len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.log.Info("client disconnected", "topic", client.topic, "clients", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if !message.matches(client.topic) {
					continue
				}
				select {
				case client.send <- message:
					h.delivered.Add(1)
				default:
					// Client's buffer is full, they're too slow
					h.drop(client)
					h.slowKicks.Add(1)
					h.log.Warn("dropped slow client", "topic", client.topic)
				}
			}
		}
	}
}

// drop removes a client and closes its send channel. Run goroutine only.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// Broadcast queues a message for matching clients. Messages are dropped
// when the hub is backed up.
func (h *Hub) Broadcast(msg Message) {
	h.broadcasts.Add(1)
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.log.Debug("broadcast channel full, dropping message", "topic", msg.Topic)
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(topic, data))
	return nil
}

// BroadcastBinary broadcasts binary data such as JPEG frames
func (h *Hub) BroadcastBinary(topic string, data []byte) {
	h.Broadcast(NewBinaryMessage(topic, data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Done is closed after Run returns.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Stats returns hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:    h.ClientCount(),
		Broadcasts: h.broadcasts.Load(),
		Delivered:  h.delivered.Load(),
		Dropped:    h.dropped.Load(),
		SlowKicks:  h.slowKicks.Load(),
	}
}
