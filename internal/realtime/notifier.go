package realtime

import (
	"time"

	"github.com/chasqui-io/chasqui/internal/domain"
	realtimeTypes "github.com/chasqui-io/chasqui/pkg/realtime"
)

// Lifecycle event names published to subscribers.
const (
	EventQRIssued      = "qr-issued"
	EventAuthenticated = "authenticated"
	EventConnected     = "connected"
	EventDisconnected  = "disconnected"
	EventReconnecting  = "reconnecting"
)

// Notifier bridges session lifecycle callbacks onto hub topics.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) QRIssued(sessionID, qrCode string) {
	n.publish(sessionID, realtimeTypes.LifecycleEvent{
		Event:     EventQRIssued,
		SessionID: sessionID,
		Timestamp: time.Now(),
		QRCode:    qrCode,
	})
}

func (n *Notifier) Authenticated(sessionID string) {
	n.publish(sessionID, realtimeTypes.LifecycleEvent{
		Event:     EventAuthenticated,
		SessionID: sessionID,
		Timestamp: time.Now(),
	})
}

func (n *Notifier) Connected(sessionID string, profile domain.Status) {
	n.publish(sessionID, realtimeTypes.LifecycleEvent{
		Event:     EventConnected,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Profile:   &profile,
	})
}

func (n *Notifier) Disconnected(sessionID string, reason domain.DisconnectReason) {
	n.publish(sessionID, realtimeTypes.LifecycleEvent{
		Event:     EventDisconnected,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Reason:    reason.String(),
	})
}

func (n *Notifier) Reconnecting(sessionID string, reason domain.DisconnectReason) {
	n.publish(sessionID, realtimeTypes.LifecycleEvent{
		Event:     EventReconnecting,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Reason:    reason.String(),
	})
}

func (n *Notifier) publish(sessionID string, ev realtimeTypes.LifecycleEvent) {
	n.hub.Publish(SessionLifecycleTopic(sessionID), realtimeTypes.ServerEnvelope{
		Type:    realtimeTypes.ServerMessageTypeEvent,
		Topic:   SessionLifecycleTopic(sessionID),
		Payload: ev,
	})
}
