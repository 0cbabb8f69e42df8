package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/chasqui-io/chasqui/internal/domain"
	"github.com/chasqui-io/chasqui/internal/realtime"
	realtimeTypes "github.com/chasqui-io/chasqui/pkg/realtime"
)

var realtimeUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) realtimeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := realtimeUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := realtime.NewClient(generateID(), conn)
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID())

	go client.WriteLoop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg realtimeTypes.ClientEnvelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendRealtimeError(client, "invalid message")
			continue
		}

		switch msg.Type {
		case realtimeTypes.ClientMessageTypeSubscribe:
			h.handleRealtimeSubscribe(client, msg.Topics)
		case realtimeTypes.ClientMessageTypeUnsubscribe:
			h.handleRealtimeUnsubscribe(client, msg.Topics)
		case realtimeTypes.ClientMessageTypePing:
			if !client.Queue(realtimeTypes.ServerEnvelope{Type: realtimeTypes.ServerMessageTypePong}) {
				return
			}
		default:
			h.sendRealtimeError(client, "unsupported message type")
		}
	}
}

func (h *Handler) handleRealtimeSubscribe(client *realtime.Client, topics []string) {
	valid := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !realtime.IsSupportedTopic(topic) {
			h.sendRealtimeError(client, "unsupported topic: "+topic)
			continue
		}
		valid = append(valid, topic)
	}
	if len(valid) == 0 {
		return
	}

	h.hub.Subscribe(client.ID(), valid)
	for _, topic := range valid {
		if !client.Queue(realtimeTypes.ServerEnvelope{
			Type:    realtimeTypes.ServerMessageTypeSnapshot,
			Topic:   topic,
			Payload: h.sessionSnapshot(topic),
		}) {
			h.hub.Unregister(client.ID())
			return
		}
	}
}

func (h *Handler) handleRealtimeUnsubscribe(client *realtime.Client, topics []string) {
	valid := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !realtime.IsSupportedTopic(topic) {
			continue
		}
		valid = append(valid, topic)
	}
	if len(valid) == 0 {
		return
	}
	h.hub.Unsubscribe(client.ID(), valid)
}

// sessionSnapshot builds the current state of the topic's session so a new
// subscriber does not wait for the next event. A pending QR is included,
// since the subscriber may have missed the qr-issued event.
func (h *Handler) sessionSnapshot(topic string) realtimeTypes.SessionSnapshot {
	sessionID, _ := realtime.ParseSessionTopic(topic)

	status, err := h.manager.GetStatus(sessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		h.log.Error("failed to build snapshot", "session", sessionID, "error", err)
	}

	return realtimeTypes.SessionSnapshot{
		SessionID:   sessionID,
		State:       status.State,
		Connected:   status.Connected,
		QRAvailable: status.QRAvailable,
		QRCode:      h.manager.QRCode(sessionID),
		ConnectedAt: status.ConnectedAt,
	}
}

func (h *Handler) sendRealtimeError(client *realtime.Client, message string) {
	if !client.Queue(realtimeTypes.ServerEnvelope{
		Type:    realtimeTypes.ServerMessageTypeError,
		Message: message,
	}) {
		h.hub.Unregister(client.ID())
	}
}
