// Package sse provides Server-Sent Events broadcasting of session
// lifecycle updates, so a UI can react when a generated question or
// the enhanced prompt lands.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// WriteTimeout is the timeout for writing to SSE clients.
// Prevents blocking on stale connections.
const WriteTimeout = 2 * time.Second

// Event is one session lifecycle update pushed to clients.
type Event struct {
	SessionID string `json:"session_id"`
	Event     string `json:"event"`
}

// Client represents a connected SSE client.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
}

// Broadcaster manages SSE client connections and event broadcasting.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient adds a new SSE client connection.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("client-%d", b.nextID)
	client := &Client{
		ID:      id,
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}
	b.clients[id] = client
	clientCount := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", id).
		Int("totalClients", clientCount).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient removes a client connection.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	delete(b.clients, client.ID)
	clientCount := len(b.clients)
	b.mu.Unlock()

	close(client.Done)

	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", clientCount).
		Msg("SSE client disconnected")
}

// SessionUpdated implements the session.Notifier interface: the
// lifecycle controller and write-back commands publish through it.
func (b *Broadcaster) SessionUpdated(sessionID, event string) {
	data, err := json.Marshal(Event{SessionID: sessionID, Event: event})
	if err != nil {
		return
	}

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	var dead []string
	for _, client := range clients {
		if !b.write(client, data) {
			dead = append(dead, client.ID)
		}
	}

	for _, id := range dead {
		b.removeClientByID(id)
	}
}

// write sends one event to a client, bounded by WriteTimeout.
func (b *Broadcaster) write(client *Client, data []byte) bool {
	done := make(chan bool, 1)
	go func() {
		_, err := fmt.Fprintf(client.Writer, "event: session\ndata: %s\n\n", data)
		if err == nil {
			client.Flusher.Flush()
		}
		done <- err == nil
	}()

	select {
	case ok := <-done:
		return ok
	case <-time.After(WriteTimeout):
		return false
	case <-client.Done:
		return false
	}
}

// removeClientByID removes a client by ID (for dead client cleanup).
func (b *Broadcaster) removeClientByID(id string) {
	b.mu.Lock()
	client, exists := b.clients[id]
	if exists {
		delete(b.clients, id)
	}
	b.mu.Unlock()

	if exists {
		close(client.Done)
		log.Debug().Str("clientId", id).Msg("SSE client removed after failed write")
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
