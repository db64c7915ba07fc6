// Package sse streams portal changes to open pages as Server-Sent Events.
//
// Every change is sent under its own event name. Pages reload on
// "documents.changed", which is sent at most once per throttle window so a
// burst of votes does not reload every page once per vote.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Change kinds accepted by PublishChange.
const (
	ChangeDeleted  = "deleted"
	ChangeVoted    = "voted"
	ChangeUploaded = "uploaded"
)

// EventReload tells pages that the document list is stale.
const EventReload = "documents.changed"

var eventNames = map[string]string{
	ChangeDeleted:  "version.deleted",
	ChangeVoted:    "vote.recorded",
	ChangeUploaded: "document.uploaded",
}

// Change describes a mutation performed through the portal.
type Change struct {
	Kind    string `json:"-"`
	DocID   string `json:"doc_id"`
	Version int    `json:"version,omitempty"`
}

// clientBuffer is how many frames a page may lag behind before frames are
// dropped for it.
const clientBuffer = 64

// Broker fans changes out to connected pages.
type Broker struct {
	throttle time.Duration

	mu         sync.Mutex
	clients    map[chan []byte]struct{}
	lastReload time.Time
	closed     bool
}

// NewBroker creates a broker that sends at most one reload event per throttle.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	return &Broker{
		throttle: throttle,
		clients:  make(map[chan []byte]struct{}),
	}
}

func frame(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload)), nil
}

// PublishChange sends c to every page, followed by a reload event unless one
// went out within the throttle window. Unknown kinds are ignored.
func (b *Broker) PublishChange(c Change) {
	name, ok := eventNames[c.Kind]
	if !ok {
		return
	}
	msg, err := frame(name, c)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.sendLocked(msg)

	if now := time.Now(); now.Sub(b.lastReload) >= b.throttle {
		b.lastReload = now
		reload, _ := frame(EventReload, struct{}{})
		b.sendLocked(reload)
	}
}

func (b *Broker) sendLocked(msg []byte) {
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribe registers a page. The channel is closed by Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a page and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected pages.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every page. Later changes are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.clients {
		close(ch)
	}
	b.clients = make(map[chan []byte]struct{})
}

// ServeHTTP streams changes to one page (GET /events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
