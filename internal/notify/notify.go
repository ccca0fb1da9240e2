// Package notify implements the in-process notification bus and its
// websocket bridge.
//
// Producers publish [Message] payloads to named groups; subscribers receive
// them on buffered channels. Delivery is best-effort: a subscriber that
// cannot keep up has messages dropped rather than blocking the publisher,
// so a stalled UI connection can never hold up a download.
package notify

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Subscription groups. Playlist lifecycle and download progress go to
// GroupPlaylists; uploader and avatar events go to GroupUploaders.
const (
	GroupPlaylists = "playlists"
	GroupUploaders = "uploaders"
)

// Message is one notification payload. Field names follow the wire format
// consumed by websocket clients (playlist_id, video_id, status, progress,
// download_stage, ...).
type Message map[string]any

// Subscriber receives messages for one group over a buffered channel.
type Subscriber struct {
	ch chan Message
}

// C returns the subscriber's receive channel. It is closed on unsubscribe.
func (s *Subscriber) C() <-chan Message {
	return s.ch
}

// Hub fans published messages out to group subscribers.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Subscriber]struct{}
	logger *log.Logger
}

// NewHub creates an empty notification hub
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscriber on the given group
func (h *Hub) Subscribe(group string) *Subscriber {
	sub := &Subscriber{ch: make(chan Message, 64)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[group] == nil {
		h.groups[group] = make(map[*Subscriber]struct{})
	}
	h.groups[group][sub] = struct{}{}

	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Unsubscribing
// twice is a no-op.
func (h *Hub) Unsubscribe(group string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.groups[group]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}

	delete(subs, sub)
	close(sub.ch)
}

// Publish delivers the message to every subscriber of the group. Subscribers
// with a full buffer are skipped.
func (h *Hub) Publish(group string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.groups[group] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("subscriber buffer full, dropping notification", "group", group)
		}
	}
}

// SubscriberCount returns the number of subscribers on the group
func (h *Hub) SubscriberCount(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
