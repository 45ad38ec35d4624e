package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Hub manages Server-Sent Events connections for real-time run updates.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
}

// Client represents a single SSE connection. Broadcasts arrive on request
// goroutines while KeepAlive pings arrive on the client's own goroutine, so
// every write to the response goes through mu.
type Client struct {
	hub     *Hub
	mu      sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

// Register adds a new client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.done)
	}
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	for client := range h.clients {
		select {
		case <-client.done:
		default:
			client.send(data)
		}
	}
}

// NewClient creates a new SSE client from an HTTP response writer.
func NewClient(hub *Hub, w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &Client{
		hub:     hub,
		writer:  w,
		flusher: flusher,
		done:    make(chan struct{}),
	}, nil
}

func (c *Client) send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.writer, "data: %s\n\n", data)
	c.flusher.Flush()
}

// SendPing sends a comment line to keep the connection alive.
func (c *Client) SendPing() {
	select {
	case <-c.done:
		return
	default:
		c.mu.Lock()
		defer c.mu.Unlock()
		fmt.Fprintf(c.writer, ": ping\n\n")
		c.flusher.Flush()
	}
}

// KeepAlive sends periodic pings until the client disconnects.
func (c *Client) KeepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.SendPing()
		}
	}
}
