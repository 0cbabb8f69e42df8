package realtime

import "time"

type ClientMessageType string

const (
	ClientMessageTypeSubscribe   ClientMessageType = "subscribe"
	ClientMessageTypeUnsubscribe ClientMessageType = "unsubscribe"
	ClientMessageTypePing        ClientMessageType = "ping"
)

type ServerMessageType string

const (
	ServerMessageTypeSnapshot ServerMessageType = "snapshot"
	ServerMessageTypeEvent    ServerMessageType = "event"
	ServerMessageTypeError    ServerMessageType = "error"
	ServerMessageTypePong     ServerMessageType = "pong"
)

type ClientEnvelope struct {
	Type   ClientMessageType `json:"type"`
	Topics []string          `json:"topics,omitempty"`
}

type ServerEnvelope struct {
	Type    ServerMessageType `json:"type"`
	Topic   string            `json:"topic,omitempty"`
	Payload any               `json:"payload,omitempty"`
	Message string            `json:"message,omitempty"`
}

// LifecycleEvent is the payload published on a session's lifecycle topic.
type LifecycleEvent struct {
	Event     string    `json:"event"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	QRCode    string    `json:"qr,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Profile   any       `json:"profile,omitempty"`
}

// SessionSnapshot is the state sent to a client right after it subscribes
// to a session's lifecycle topic.
type SessionSnapshot struct {
	SessionID   string     `json:"session_id"`
	State       string     `json:"state"`
	Connected   bool       `json:"connected"`
	QRAvailable bool       `json:"qr_available"`
	QRCode      string     `json:"qr,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}
