// Package realtime fans session lifecycle events out to subscribed
// WebSocket clients, one topic per session.
package realtime

import (
	"sync"

	realtimeTypes "github.com/chasqui-io/chasqui/pkg/realtime"
)

// member is a registered client plus the topic set the hub tracks for it.
type member struct {
	client *Client
	topics map[string]struct{}
}

// Hub indexes subscriptions by topic, so publishing touches only the
// clients that asked for the session in question.
type Hub struct {
	mu      sync.RWMutex
	members map[string]*member
	topics  map[string]map[string]*member
}

func NewHub() *Hub {
	return &Hub{
		members: make(map[string]*member),
		topics:  make(map[string]map[string]*member),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.members[client.ID()] = &member{client: client, topics: make(map[string]struct{})}
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	m, ok := h.members[clientID]
	if ok {
		delete(h.members, clientID)
		for topic := range m.topics {
			h.dropFromTopic(topic, clientID)
		}
	}
	h.mu.Unlock()

	if ok {
		m.client.Close()
	}
}

// dropFromTopic removes one client from the topic index. Caller holds h.mu.
func (h *Hub) dropFromTopic(topic, clientID string) {
	set, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(set, clientID)
	if len(set) == 0 {
		delete(h.topics, topic)
	}
}

func (h *Hub) Subscribe(clientID string, topics []string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.members[clientID]
	if !ok {
		return false
	}
	for _, topic := range topics {
		m.topics[topic] = struct{}{}
		set, ok := h.topics[topic]
		if !ok {
			set = make(map[string]*member)
			h.topics[topic] = set
		}
		set[clientID] = m
	}
	return true
}

func (h *Hub) Unsubscribe(clientID string, topics []string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.members[clientID]
	if !ok {
		return false
	}
	for _, topic := range topics {
		delete(m.topics, topic)
		h.dropFromTopic(topic, clientID)
	}
	return true
}

// Subscribers reports how many clients follow the topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish queues msg for every client subscribed to the topic. A client
// whose outbound buffer is full is dropped rather than allowed to stall
// the rest.
func (h *Hub) Publish(topic string, msg realtimeTypes.ServerEnvelope) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.topics[topic]))
	for _, m := range h.topics[topic] {
		targets = append(targets, m.client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if client.Queue(msg) {
			continue
		}
		h.Unregister(client.ID())
	}
}
