package domain

import "time"

type EventType int

const (
	EventTypeQRIssued EventType = iota
	EventTypeAuthenticated
	EventTypeConnected
	EventTypeDisconnected
	EventTypeMessage
)

func (t EventType) String() string {
	switch t {
	case EventTypeQRIssued:
		return "qr_issued"
	case EventTypeAuthenticated:
		return "authenticated"
	case EventTypeConnected:
		return "connected"
	case EventTypeDisconnected:
		return "disconnected"
	case EventTypeMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is a lifecycle or inbound-message notification emitted by a
// provider adapter. Exactly one of the payload fields is populated,
// selected by Type. Events for a session are applied in emission order by
// that session's lifecycle loop; no other component drives state.
type Event struct {
	Type      EventType
	SessionID string
	Timestamp time.Time

	// EventTypeQRIssued
	QRCode string

	// EventTypeConnected
	PhoneNumber string

	// EventTypeDisconnected
	Reason DisconnectReason

	// EventTypeMessage
	Message *InboundMessage
}

// InboundMessage is the tagged, provider-agnostic shape of a raw inbound
// chat event. Both adapters build this one type; the normalizer never sees
// transport-native structures.
type InboundMessage struct {
	ID string

	// From is the top-level sender address as reported by the transport.
	// It may be a linking identifier rather than a real contact address.
	From string

	// Participant is populated by transports that report the real device
	// address separately when From is a linking identifier.
	Participant string

	// AltAddress is an explicit resolved contact address accompanying the
	// event, when the transport supplies one. It wins over every other
	// source during identity resolution.
	AltAddress string

	// PushName is the sender's self-reported display name, may be empty.
	PushName string

	// RawType is the transport's native message type string
	// ("chat", "image", "ptt", ...).
	RawType string

	Body    string
	Caption string

	FromMe bool
	Group  bool

	Media *MediaBlob

	// Latitude/Longitude are set for location messages.
	Latitude  float64
	Longitude float64
	Place     string

	Timestamp time.Time
}

// MediaBlob is downloaded media content attached to an inbound message.
type MediaBlob struct {
	Base64   string
	MimeType string
	Filename string
}

func NewQRIssuedEvent(sessionID, qr string) Event {
	return Event{Type: EventTypeQRIssued, SessionID: sessionID, Timestamp: time.Now(), QRCode: qr}
}

func NewAuthenticatedEvent(sessionID string) Event {
	return Event{Type: EventTypeAuthenticated, SessionID: sessionID, Timestamp: time.Now()}
}

func NewConnectedEvent(sessionID, phoneNumber string) Event {
	return Event{Type: EventTypeConnected, SessionID: sessionID, Timestamp: time.Now(), PhoneNumber: phoneNumber}
}

func NewDisconnectedEvent(sessionID string, reason DisconnectReason) Event {
	return Event{Type: EventTypeDisconnected, SessionID: sessionID, Timestamp: time.Now(), Reason: reason}
}

func NewMessageEvent(sessionID string, msg *InboundMessage) Event {
	return Event{Type: EventTypeMessage, SessionID: sessionID, Timestamp: time.Now(), Message: msg}
}
