package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the container.
const (
	EventUpdateStarted   = "updateStarted"
	EventUpdateAborted   = "updateAborted"
	EventUpdateCompleted = "updateCompleted"
	EventVarChanged      = "varChanged"
	EventBehaviorStopped = "behaviorStopped"
)

// Event is one telemetry event with SSE formatting.
type Event struct {
	ID   int64                  `json:"id,omitempty"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type client struct {
	id     string
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Hub fans out events to all subscribed SSE clients. Slow clients
// drop events rather than blocking publishers.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	nextID  atomic.Int64
	closed  chan struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		closed:  make(chan struct{}),
	}
}

// Publish assigns the event a monotonic ID and delivers it to every
// subscriber.
func (h *Hub) Publish(event Event) {
	if event.ID == 0 {
		event.ID = h.nextID.Add(1)
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-c.done:
		case <-h.closed:
			return
		case c.events <- event:
		default:
			// Drop rather than block a publisher on a slow client.
		}
	}
}

// PublishType is a convenience wrapper for events with ad-hoc data.
func (h *Hub) PublishType(eventType string, data map[string]interface{}) {
	h.Publish(Event{Type: eventType, Data: data})
}

// Subscribe attaches an SSE client and blocks until it disconnects or
// the hub closes.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	c := &client{
		id:     fmt.Sprintf("client_%d", time.Now().UnixNano()),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	defer h.unregister(c)

	// Initial ready event so clients know the stream is live.
	if err := writeEvent(w, flusher, Event{ID: h.nextID.Add(1), Type: "ready", Data: map[string]interface{}{}}); err != nil {
		return err
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.closed:
			return nil
		case event := <-c.events:
			if err := writeEvent(w, flusher, event); err != nil {
				return err
			}
		}
	}
}

// Close shuts the hub down; subscribers return.
func (h *Hub) Close() {
	select {
	case <-h.closed:
	default:
		close(h.closed)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.once.Do(func() { close(c.done) })
	delete(h.clients, c.id)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	flusher.Flush()
	return nil
}
